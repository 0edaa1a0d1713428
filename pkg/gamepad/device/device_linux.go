// +build linux

package device

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"syscall"
	"unsafe"

	"github.com/pkg/errors"
)

const (
	iocGAXES    uint = 0x80016a11
	iocGBUTTONS uint = 0x80016a12
	iocGNAME    uint = 0x80ff6a13

	typeINIT   uint8 = 0x80
	typeBUTTON uint8 = 0x01
	typeAXIS   uint8 = 0x02

	eventSize = 8
)

// js_event layout from linux/joystick.h.
type rawEvent struct {
	Time   uint32
	Value  int16
	Type   uint8
	Number uint8
}

type jsDevice struct {
	file        *os.File
	index       int
	name        string
	axisCount   uint8
	buttonCount uint8
	buf         [eventSize]byte
}

// NodePath returns the device node of the joystick index.
func NodePath(index int) string {
	return fmt.Sprintf("/dev/input/js%d", index)
}

// Open opens the joystick with the index.
func Open(index int) (Device, error) {
	f, err := os.OpenFile(NodePath(index), os.O_RDONLY, 0)
	if err != nil {
		return nil, err
	}
	d := &jsDevice{file: f, index: index}
	if err := d.query(); err != nil {
		f.Close()
		return nil, errors.Wrap(err, NodePath(index))
	}
	return d, nil
}

// DetectAndOpen opens the first available joystick from startIndex.
// It returns nil without error when none is present.
func DetectAndOpen(startIndex int) (Device, error) {
	for index := startIndex; index < 256; index++ {
		d, err := Open(index)
		if os.IsNotExist(err) {
			continue
		}
		return d, err
	}
	return nil, nil
}

func (d *jsDevice) query() error {
	if errno := d.ioctl(iocGAXES, unsafe.Pointer(&d.axisCount)); errno != 0 {
		return errno
	}
	if errno := d.ioctl(iocGBUTTONS, unsafe.Pointer(&d.buttonCount)); errno != 0 {
		return errno
	}
	var name [256]byte
	if errno := d.ioctl(iocGNAME, unsafe.Pointer(&name)); errno != 0 {
		return errno
	}
	if pos := bytes.IndexByte(name[:], 0); pos >= 0 {
		d.name = string(name[:pos])
	} else {
		d.name = string(name[:])
	}
	return nil
}

func (d *jsDevice) ioctl(req uint, ptr unsafe.Pointer) syscall.Errno {
	_, _, errno := syscall.Syscall(syscall.SYS_IOCTL, d.file.Fd(), uintptr(req), uintptr(ptr))
	return errno
}

func (d *jsDevice) Close() error     { return d.file.Close() }
func (d *jsDevice) Index() int       { return d.index }
func (d *jsDevice) Name() string     { return d.name }
func (d *jsDevice) AxisCount() int   { return int(d.axisCount) }
func (d *jsDevice) ButtonCount() int { return int(d.buttonCount) }

// ReadEvent implements Device. Events of unknown type are skipped.
func (d *jsDevice) ReadEvent() (Event, error) {
	for {
		if _, err := io.ReadFull(d.file, d.buf[:]); err != nil {
			return Event{}, err
		}
		var raw rawEvent
		if err := binary.Read(bytes.NewReader(d.buf[:]), binary.LittleEndian, &raw); err != nil {
			return Event{}, err
		}
		ev := Event{
			Init:  raw.Type&typeINIT != 0,
			Index: int(raw.Number),
			Value: int(raw.Value),
		}
		switch raw.Type &^ typeINIT {
		case typeBUTTON:
			ev.Kind = KindButton
		case typeAXIS:
			ev.Kind = KindAxis
		default:
			continue
		}
		return ev, nil
	}
}
