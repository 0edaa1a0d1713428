package remote

import "github.com/pkg/errors"

var (
	// ErrNotConnected indicates the link has no connection.
	ErrNotConnected = errors.New("not connected")
	// ErrTimeout indicates the relay did not reply in time.
	ErrTimeout = errors.New("reply timeout")
	// ErrDisconnected indicates the relay closed the connection.
	ErrDisconnected = errors.New("disconnected by relay")
)
