package topside

import (
	"context"
	"time"

	"github.com/golang/glog"

	fx "github.com/robotalks/rovlink/pkg/framework"
	"github.com/robotalks/rovlink/pkg/gamepad"
	"github.com/robotalks/rovlink/pkg/relay"
	"github.com/robotalks/rovlink/pkg/telemetry"
)

const defaultGesturePoll = 10 * time.Millisecond

// Link is a relay channel.
type Link interface {
	Connect(ctx context.Context) error
	Exchange(cmd string) (string, error)
}

// ControlLoop sends the gamepad state to the motor channel.
//
// Commands are only sent after B has been pressed once. Back and
// Start pressed together clear Running, ending both loops.
type ControlLoop struct {
	Gamepad gamepad.Source
	Motor   Link
	Running *RunFlag
	Started *RunFlag
	// Interval is the pause between commands, 0 sends back to back.
	Interval time.Duration
	// IdleInterval is the polling period before the start gesture.
	IdleInterval time.Duration
}

// Name implements Named.
func (c *ControlLoop) Name() string {
	return "control"
}

// Run implements Runnable. It returns nil once Running is cleared.
func (c *ControlLoop) Run(ctx context.Context) error {
	return runLoop(ctx, c.Running, c.Interval, c.iterate)
}

func (c *ControlLoop) iterate(ctx context.Context, now time.Time) error {
	if !c.Running.IsSet() {
		return fx.ErrStopLoop
	}
	triggers := c.Gamepad.ReadTriggers()
	sticks := c.Gamepad.ReadSticks()
	buttons := c.Gamepad.ReadButtons()

	started := c.Started.IsSet()
	if started {
		cmd := relay.CmdMotor + FormatMotorCommand(sticks, triggers)
		reply, err := c.Motor.Exchange(cmd)
		switch {
		case err != nil:
			glog.Errorf("motor command failed: %v", err)
			stopWatch := c.watchStopGesture(ctx)
			reconnect(ctx, "motor", c.Motor)
			stopWatch()
			if !c.Running.IsSet() {
				return fx.ErrStopLoop
			}
		case reply == relay.ReplyError || reply == relay.ReplyInvalid:
			glog.Warningf("motor command %q rejected: %s", cmd, reply)
		default:
			glog.V(2).Infof("motor: %s", reply)
		}
	}

	if c.checkStopGesture(buttons) {
		return fx.ErrStopLoop
	}
	if !started && pressed(buttons, gamepad.ButtonB) {
		glog.Info("start gesture, sending motor commands")
		c.Started.Set()
		return nil
	}
	if !started && c.IdleInterval > 0 {
		select {
		case <-ctx.Done():
		case <-time.After(c.IdleInterval):
		}
	}
	return nil
}

func (c *ControlLoop) checkStopGesture(buttons []int) bool {
	if pressed(buttons, gamepad.ButtonBack) && pressed(buttons, gamepad.ButtonStart) {
		glog.Warning("stop gesture, stopping loops")
		c.Running.Clear()
		return true
	}
	return false
}

// watchStopGesture keeps reading the gamepad while the iteration is
// blocked in a reconnect. Clearing Running cancels the reconnect.
func (c *ControlLoop) watchStopGesture(ctx context.Context) (stop func()) {
	interval := c.IdleInterval
	if interval <= 0 {
		interval = defaultGesturePoll
	}
	ctx, cancel := context.WithCancel(ctx)
	doneCh := make(chan struct{})
	go func() {
		defer close(doneCh)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if c.checkStopGesture(c.Gamepad.ReadButtons()) {
					return
				}
			}
		}
	}()
	return func() {
		cancel()
		<-doneCh
	}
}

// TelemetryLoop samples the sensor channel and hands rows to the sinks.
type TelemetryLoop struct {
	Sensor  Link
	Running *RunFlag
	Started *RunFlag
	Sinks   []telemetry.Sink
	// Interval is the minimum time between the end of a sample and
	// the start of the next one.
	Interval time.Duration
	// PollInterval is how often the gate is checked.
	PollInterval time.Duration
	Now          func() time.Time

	last time.Time
}

// Name implements Named.
func (t *TelemetryLoop) Name() string {
	return "telemetry"
}

// Run implements Runnable. It returns nil once Running is cleared.
func (t *TelemetryLoop) Run(ctx context.Context) error {
	if t.Now == nil {
		t.Now = time.Now
	}
	t.last = t.Now()
	return runLoop(ctx, t.Running, t.PollInterval, t.iterate)
}

func (t *TelemetryLoop) iterate(ctx context.Context, _ time.Time) error {
	if !t.Running.IsSet() {
		return fx.ErrStopLoop
	}
	if !t.Started.IsSet() || t.Now().Sub(t.last) < t.Interval {
		return nil
	}
	defer func() { t.last = t.Now() }()

	reply, err := t.Sensor.Exchange(relay.CmdSensor)
	if err != nil {
		glog.Errorf("sensor request failed: %v", err)
		reconnect(ctx, "sensor", t.Sensor)
		return nil
	}
	if reply == relay.ReplyError || reply == relay.ReplyInvalid {
		glog.Warningf("sensor request rejected: %s", reply)
		return nil
	}
	row := telemetry.MakeRow(t.Now().UnixNano()/int64(time.Millisecond), reply)
	glog.V(1).Infof("telemetry %v", row)
	for _, sink := range t.Sinks {
		if err := sink.Append(row); err != nil {
			glog.Errorf("telemetry sink: %v", err)
		}
	}
	return nil
}

func pressed(buttons []int, index int) bool {
	return index < len(buttons) && buttons[index] != 0
}

func reconnect(ctx context.Context, name string, link Link) {
	glog.Warningf("reconnecting %s channel", name)
	if err := link.Connect(ctx); err != nil {
		glog.V(1).Infof("%s reconnect aborted: %v", name, err)
	}
}

func runLoop(ctx context.Context, running *RunFlag, interval time.Duration, fn fx.Iteration) error {
	ctx, cancel := WithRunFlag(ctx, running)
	defer cancel()
	err := fx.NewLoop(interval, fn).Run(ctx)
	if !running.IsSet() {
		return nil
	}
	return err
}
