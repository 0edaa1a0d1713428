package topside

import (
	"context"

	"github.com/golang/glog"

	fx "github.com/robotalks/rovlink/pkg/framework"
	"github.com/robotalks/rovlink/pkg/gamepad"
	"github.com/robotalks/rovlink/pkg/remote"
	"github.com/robotalks/rovlink/pkg/telemetry"
)

// Client connects both relay channels and runs the loops.
type Client struct {
	Motor, Sensor *remote.Link
	Control       *ControlLoop
	Telemetry     *TelemetryLoop
	Running       *RunFlag
	Started       *RunFlag
}

// Name implements Named.
func (c *Client) Name() string {
	return "topside"
}

// Run implements Runnable. It returns nil after the stop gesture.
func (c *Client) Run(ctx context.Context) error {
	if err := remote.ConnectPair(ctx, c.Motor, c.Sensor); err != nil {
		return err
	}
	defer c.Sensor.Close()
	defer c.Motor.Close()
	glog.Info("press B to start sending commands, Back+Start to stop")
	return fx.NewRunnerWith(ctx).
		WithStopOnError(true).
		Go(c.Control, c.Telemetry).
		Wait()
}

// NewClient creates a Client reading pad and delivering rows to sinks.
func (c *Config) NewClient(pad gamepad.Source, motor, sensor *remote.Link, sinks ...telemetry.Sink) *Client {
	running, started := NewRunFlag(true), NewRunFlag(false)
	return &Client{
		Motor:   motor,
		Sensor:  sensor,
		Running: running,
		Started: started,
		Control: &ControlLoop{
			Gamepad:      pad,
			Motor:        motor,
			Running:      running,
			Started:      started,
			Interval:     c.ControlInterval,
			IdleInterval: c.IdleInterval,
		},
		Telemetry: &TelemetryLoop{
			Sensor:       sensor,
			Running:      running,
			Started:      started,
			Sinks:        sinks,
			Interval:     c.TelemetryInterval,
			PollInterval: c.TelemetryInterval / 5,
		},
	}
}
