// Package device talks to the serial attached microcontrollers.
//
// A Link frames one newline terminated command and reads back one
// newline terminated reply. A failed exchange always closes the port;
// recovery is an explicit Open or Reconnect by the caller.
package device

import (
	"io"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/golang/glog"
	"github.com/pkg/errors"
	"github.com/tarm/serial"

	"github.com/robotalks/rovlink/pkg/wire"
)

// Port is an opened serial port.
type Port interface {
	io.ReadWriteCloser
	// Flush discards data received but not read.
	Flush() error
}

// Opener opens a serial port.
type Opener interface {
	OpenPort(path string, baud int, readTimeout time.Duration) (Port, error)
}

// OpenFunc is the func form of Opener.
type OpenFunc func(path string, baud int, readTimeout time.Duration) (Port, error)

// OpenPort implements Opener.
func (f OpenFunc) OpenPort(path string, baud int, readTimeout time.Duration) (Port, error) {
	return f(path, baud, readTimeout)
}

// SerialOpener opens real serial ports.
var SerialOpener = OpenFunc(func(path string, baud int, readTimeout time.Duration) (Port, error) {
	port, err := serial.OpenPort(&serial.Config{
		Name:        path,
		Baud:        baud,
		ReadTimeout: readTimeout,
	})
	if err != nil {
		return nil, err
	}
	return port, nil
})

// Link is a session with one serial peripheral.
type Link struct {
	path        string
	baud        int
	readTimeout time.Duration
	opener      Opener

	lock sync.Mutex
	port Port
	rw   *wire.LineReadWriter
}

// NewLink creates a closed Link. A nil opener uses SerialOpener.
func NewLink(path string, baud int, readTimeout time.Duration, opener Opener) *Link {
	if opener == nil {
		opener = SerialOpener
	}
	return &Link{path: path, baud: baud, readTimeout: readTimeout, opener: opener}
}

// Path returns the device path.
func (l *Link) Path() string {
	return l.path
}

// IsOpen tells if the port is currently open.
func (l *Link) IsOpen() bool {
	l.lock.Lock()
	defer l.lock.Unlock()
	return l.port != nil
}

// Open opens the port and discards stale input.
// It's a no-op on an open link.
func (l *Link) Open() error {
	l.lock.Lock()
	defer l.lock.Unlock()
	return l.openLocked()
}

// Reconnect closes the port, if open, and opens it again.
func (l *Link) Reconnect() error {
	l.lock.Lock()
	defer l.lock.Unlock()
	glog.Warningf("reconnecting %s", l.path)
	l.closeLocked()
	return l.openLocked()
}

// Close closes the port. Closing a closed link does nothing.
func (l *Link) Close() error {
	l.lock.Lock()
	defer l.lock.Unlock()
	return l.closeLocked()
}

// Exchange sends one command and returns the trimmed reply.
// It never reopens the port: a closed link fails with ErrClosed.
// On any failure the port is closed before returning.
func (l *Link) Exchange(cmd string) (reply string, err error) {
	l.lock.Lock()
	defer l.lock.Unlock()
	if l.port == nil {
		return "", ErrClosed
	}
	defer func() {
		if err != nil {
			glog.Errorf("%s: exchange %q failed: %v", l.path, cmd, err)
			l.closeLocked()
		}
	}()

	if err = l.rw.WriteLine(cmd); err != nil {
		if err == wire.ErrLineTooLong {
			return "", errors.WithMessage(ErrMalformed, "command too long")
		}
		return "", &IOError{Path: l.path, Op: "write", Err: err}
	}
	line, err := l.rw.ReadLine()
	if err != nil {
		return "", l.readError(err)
	}
	reply = strings.TrimSpace(line)
	glog.V(2).Infof("%s: %q -> %q", l.path, cmd, reply)
	return reply, nil
}

func (l *Link) readError(err error) error {
	switch err {
	case io.EOF, io.ErrUnexpectedEOF, io.ErrNoProgress:
		return ErrTimeout
	case wire.ErrLineTooLong, wire.ErrInvalidUTF8:
		return errors.WithMessage(ErrMalformed, err.Error())
	}
	if netErr, ok := err.(net.Error); ok && netErr.Timeout() {
		return ErrTimeout
	}
	return &IOError{Path: l.path, Op: "read", Err: err}
}

func (l *Link) openLocked() error {
	if l.port != nil {
		return nil
	}
	port, err := l.opener.OpenPort(l.path, l.baud, l.readTimeout)
	if err != nil {
		glog.Errorf("device not available at %s (baud %d): %v", l.path, l.baud, err)
		return &OpenError{Path: l.path, Err: err}
	}
	if err := port.Flush(); err != nil {
		port.Close()
		return &OpenError{Path: l.path, Err: errors.Wrap(err, "flush")}
	}
	l.port, l.rw = port, wire.New(port)
	glog.Infof("connected to %s at %d", l.path, l.baud)
	return nil
}

func (l *Link) closeLocked() error {
	if l.port == nil {
		return nil
	}
	glog.Infof("closing %s", l.path)
	err := l.port.Close()
	l.port, l.rw = nil, nil
	return err
}
