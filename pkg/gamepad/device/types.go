// Package device reads raw events from a Linux joystick device node.
package device

import (
	"io"

	"github.com/pkg/errors"
)

// ErrUnsupported is returned where joystick devices are not available.
var ErrUnsupported = errors.New("joystick devices not supported on this platform")

// Kind is the control an Event comes from.
type Kind uint8

// Event kinds.
const (
	KindButton Kind = iota + 1
	KindAxis
)

// AxisMax is the magnitude of a fully deflected axis.
const AxisMax = 32767

// Event is a single state change.
type Event struct {
	Kind Kind
	// Init is set for the synthetic events reporting the state at open.
	Init bool
	// Index is the button or axis number.
	Index int
	// Value is the axis position in [-AxisMax, AxisMax], or 0/1 for buttons.
	Value int
}

// Pressed tells if a button event is a press.
func (e Event) Pressed() bool {
	return e.Kind == KindButton && e.Value != 0
}

// Device represents an opened joystick.
type Device interface {
	io.Closer
	// Index returns the index of the device on the system.
	Index() int
	// Name returns the name reported by the driver.
	Name() string
	AxisCount() int
	ButtonCount() int
	// ReadEvent blocks until the next event.
	ReadEvent() (Event, error)
}

// OpenFunc opens the device with the index.
type OpenFunc func(index int) (Device, error)
