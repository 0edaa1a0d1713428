package framework

import (
	"context"
	"time"

	"github.com/golang/glog"
)

// Iteration is invoked once per loop iteration with the iteration time.
// Returning an error is logged unless it is ErrStopLoop, which ends
// the loop without an error.
type Iteration func(ctx context.Context, now time.Time) error

// ErrStopLoop can be returned by an Iteration to end the loop.
var ErrStopLoop = errorString("stop loop")

type errorString string

func (e errorString) Error() string { return string(e) }

// Loop runs an Iteration repeatedly.
// With a zero Interval the iterations run back to back, only checking
// the context in between. Otherwise an iteration runs every Interval,
// or immediately after TriggerNext.
type Loop struct {
	Interval time.Duration
	Fn       Iteration

	wakeUpCh chan struct{}
}

// NewLoop creates a Loop.
func NewLoop(interval time.Duration, fn Iteration) *Loop {
	return &Loop{Interval: interval, Fn: fn, wakeUpCh: make(chan struct{}, 1)}
}

// Run implements Runnable.
func (l *Loop) Run(ctx context.Context) error {
	if l.wakeUpCh == nil {
		l.wakeUpCh = make(chan struct{}, 1)
	}
	if l.Interval <= 0 {
		for {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}
			if l.runIteration(ctx) {
				return nil
			}
		}
	}

	ticker := time.NewTicker(l.Interval)
	defer ticker.Stop()
	if l.runIteration(ctx) {
		return nil
	}
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		case <-l.wakeUpCh:
		}
		if l.runIteration(ctx) {
			return nil
		}
	}
}

// TriggerNext schedules the next iteration immediately.
func (l *Loop) TriggerNext() {
	select {
	case l.wakeUpCh <- struct{}{}:
	default:
	}
}

func (l *Loop) runIteration(ctx context.Context) (stop bool) {
	err := l.Fn(ctx, time.Now())
	if err == ErrStopLoop {
		return true
	}
	if err != nil {
		glog.Errorf("loop iteration error: %v", err)
	}
	return false
}
