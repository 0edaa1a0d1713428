// Package devicetest provides in-memory serial ports for tests.
package devicetest

import (
	"bytes"
	"errors"
	"io"
	"os"
	"sync"
	"time"

	"github.com/robotalks/rovlink/pkg/device"
)

// Responder computes the reply line of a command.
// Returning ok == false simulates a read timeout.
type Responder func(cmd string) (reply string, ok bool)

// Port is a fake serial port driven by a Responder.
// Reads with nothing pending return io.EOF, the way a serial port
// reports an expired read timeout.
type Port struct {
	Responder Responder

	lock     sync.Mutex
	pending  bytes.Buffer
	incoming bytes.Buffer
	received []string
	closed   bool
	flushed  int
	readErr  error
}

// Read implements io.Reader.
func (p *Port) Read(b []byte) (int, error) {
	p.lock.Lock()
	defer p.lock.Unlock()
	if p.closed {
		return 0, os.ErrClosed
	}
	if p.readErr != nil {
		return 0, p.readErr
	}
	if p.pending.Len() == 0 {
		return 0, io.EOF
	}
	return p.pending.Read(b)
}

// Write implements io.Writer.
func (p *Port) Write(b []byte) (int, error) {
	p.lock.Lock()
	defer p.lock.Unlock()
	if p.closed {
		return 0, os.ErrClosed
	}
	p.incoming.Write(b)
	for {
		line, err := p.incoming.ReadString('\n')
		if err != nil {
			// put back the incomplete command.
			p.incoming.Reset()
			p.incoming.WriteString(line)
			break
		}
		cmd := line[:len(line)-1]
		p.received = append(p.received, cmd)
		if p.Responder == nil {
			continue
		}
		if reply, ok := p.Responder(cmd); ok {
			p.pending.WriteString(reply + "\n")
		}
	}
	return len(b), nil
}

// Flush implements device.Port.
func (p *Port) Flush() error {
	p.lock.Lock()
	defer p.lock.Unlock()
	p.pending.Reset()
	p.flushed++
	return nil
}

// Close implements io.Closer.
func (p *Port) Close() error {
	p.lock.Lock()
	defer p.lock.Unlock()
	p.closed = true
	return nil
}

// Inject queues raw bytes to be read, e.g. stale data before open.
func (p *Port) Inject(data string) {
	p.lock.Lock()
	defer p.lock.Unlock()
	p.pending.WriteString(data)
}

// FailReads makes every following read fail with err.
func (p *Port) FailReads(err error) {
	p.lock.Lock()
	defer p.lock.Unlock()
	p.readErr = err
}

// Received returns the commands written so far.
func (p *Port) Received() []string {
	p.lock.Lock()
	defer p.lock.Unlock()
	return append([]string(nil), p.received...)
}

// Closed tells if the port was closed.
func (p *Port) Closed() bool {
	p.lock.Lock()
	defer p.lock.Unlock()
	return p.closed
}

// Flushed returns how many times Flush was called.
func (p *Port) Flushed() int {
	p.lock.Lock()
	defer p.lock.Unlock()
	return p.flushed
}

// ErrNoDevice is returned by Opener for unknown paths.
var ErrNoDevice = errors.New("no such device")

// Opener opens fake ports by path. Each open creates a new Port using
// the Responder registered for the path.
type Opener struct {
	Devices map[string]Responder
	// Unreachable lists paths failing to open.
	Unreachable map[string]bool

	lock  sync.Mutex
	opens map[string][]*Port
}

// NewOpener creates an Opener with the devices.
func NewOpener(devices map[string]Responder) *Opener {
	return &Opener{Devices: devices, Unreachable: make(map[string]bool)}
}

// OpenPort implements device.Opener.
func (o *Opener) OpenPort(path string, baud int, readTimeout time.Duration) (device.Port, error) {
	o.lock.Lock()
	defer o.lock.Unlock()
	if o.Unreachable[path] {
		return nil, ErrNoDevice
	}
	responder, ok := o.Devices[path]
	if !ok {
		return nil, ErrNoDevice
	}
	if o.opens == nil {
		o.opens = make(map[string][]*Port)
	}
	port := &Port{Responder: responder}
	o.opens[path] = append(o.opens[path], port)
	return port, nil
}

// SetDevice replaces the responder of path, simulating a device swap.
func (o *Opener) SetDevice(path string, responder Responder) {
	o.lock.Lock()
	defer o.lock.Unlock()
	if responder == nil {
		delete(o.Devices, path)
	} else {
		o.Devices[path] = responder
	}
}

// Ports returns all ports opened on path, oldest first.
func (o *Opener) Ports(path string) []*Port {
	o.lock.Lock()
	defer o.lock.Unlock()
	return append([]*Port(nil), o.opens[path]...)
}

// Last returns the most recently opened port on path.
func (o *Opener) Last(path string) *Port {
	ports := o.Ports(path)
	if len(ports) == 0 {
		return nil
	}
	return ports[len(ports)-1]
}

// Firmware simulates the controller firmware answering TYPE with
// typ. GET is answered with sensorLine, other commands echo
// "OK <cmd>".
func Firmware(typ, sensorLine string) Responder {
	return func(cmd string) (string, bool) {
		switch cmd {
		case "TYPE":
			return typ, true
		case "GET":
			return sensorLine, true
		}
		return "OK " + cmd, true
	}
}

// Silent never replies.
func Silent(string) (string, bool) { return "", false }
