package device

import (
	"fmt"

	"github.com/pkg/errors"
)

var (
	// ErrClosed indicates the link has no open port.
	// The caller must Open or Reconnect before the next exchange.
	ErrClosed = errors.New("link closed")
	// ErrTimeout indicates no complete reply arrived within the read timeout.
	ErrTimeout = errors.New("reply timeout")
	// ErrMalformed indicates the reply is not a valid line.
	ErrMalformed = errors.New("malformed reply")
)

// OpenError is returned when the serial port can't be opened.
type OpenError struct {
	Path string
	Err  error
}

// Error implements error.
func (e *OpenError) Error() string {
	return fmt.Sprintf("open %s: %v", e.Path, e.Err)
}

// Unwrap returns the transport error.
func (e *OpenError) Unwrap() error { return e.Err }

// IOError wraps a transport level failure during an exchange.
type IOError struct {
	Path string
	Op   string
	Err  error
}

// Error implements error.
func (e *IOError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

// Unwrap returns the transport error.
func (e *IOError) Unwrap() error { return e.Err }
