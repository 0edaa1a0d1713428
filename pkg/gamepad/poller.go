package gamepad

import (
	"context"
	"time"

	"github.com/golang/glog"

	"github.com/robotalks/rovlink/pkg/gamepad/device"
)

// Poller keeps a Pad updated from a joystick device, reopening the
// device whenever it is unplugged.
type Poller struct {
	Pad *Pad
	// DeviceIndex selects /dev/input/jsN, -1 detects the first one.
	DeviceIndex   int
	RetryInterval time.Duration
	Verbose       bool
	Open          device.OpenFunc
	Detect        func(startIndex int) (device.Device, error)
}

// NewPoller creates a Poller feeding pad.
func NewPoller(pad *Pad, deviceIndex int) *Poller {
	return &Poller{
		Pad:           pad,
		DeviceIndex:   deviceIndex,
		RetryInterval: time.Second,
		Open:          device.Open,
		Detect:        device.DetectAndOpen,
	}
}

// Name implements Named.
func (p *Poller) Name() string {
	return "gamepad"
}

// Run implements Runnable.
func (p *Poller) Run(ctx context.Context) error {
	var dev device.Device
	var doneCh chan error
	defer func() {
		if dev != nil {
			dev.Close()
		}
	}()
	retry := time.After(0)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-retry:
			retry = nil
			if dev = p.openDevice(); dev == nil {
				retry = time.After(p.RetryInterval)
				continue
			}
			glog.Infof("gamepad %d %q opened: %d axes, %d buttons",
				dev.Index(), dev.Name(), dev.AxisCount(), dev.ButtonCount())
			doneCh = make(chan error, 1)
			go p.poll(dev, doneCh)
		case err := <-doneCh:
			glog.Warningf("gamepad %d lost: %v", dev.Index(), err)
			// no input must not keep the vehicle moving.
			p.Pad.Reset()
			dev.Close()
			dev, doneCh = nil, nil
			retry = time.After(p.RetryInterval)
		}
	}
}

func (p *Poller) openDevice() device.Device {
	if p.DeviceIndex >= 0 {
		dev, err := p.Open(p.DeviceIndex)
		if err != nil {
			glog.V(1).Infof("open gamepad %d: %v", p.DeviceIndex, err)
			return nil
		}
		return dev
	}
	dev, err := p.Detect(0)
	if err != nil {
		glog.V(1).Infof("detect gamepad: %v", err)
		return nil
	}
	if dev == nil {
		glog.V(1).Info("no gamepad detected")
	}
	return dev
}

func (p *Poller) poll(dev device.Device, doneCh chan<- error) {
	for {
		ev, err := dev.ReadEvent()
		if err != nil {
			doneCh <- err
			return
		}
		if p.Verbose {
			prefix := ""
			if ev.Init {
				prefix = "[INIT] "
			}
			switch ev.Kind {
			case device.KindAxis:
				glog.Infof("%saxis %d: %d", prefix, ev.Index, ev.Value)
			case device.KindButton:
				glog.Infof("%sbutton %d: %v", prefix, ev.Index, ev.Pressed())
			}
		}
		p.Pad.Apply(ev)
	}
}
