package topside

import (
	"context"
	"sync"
	"sync/atomic"
)

// RunFlag is a boolean shared between the loops. Once cleared, Done
// is closed.
type RunFlag struct {
	state  int32
	once   sync.Once
	doneCh chan struct{}
}

// NewRunFlag creates a RunFlag with the initial state.
func NewRunFlag(set bool) *RunFlag {
	f := &RunFlag{doneCh: make(chan struct{})}
	if set {
		f.state = 1
	}
	return f
}

// IsSet reads the flag.
func (f *RunFlag) IsSet() bool {
	return atomic.LoadInt32(&f.state) != 0
}

// Set sets the flag.
func (f *RunFlag) Set() {
	atomic.StoreInt32(&f.state, 1)
}

// Clear clears the flag.
func (f *RunFlag) Clear() {
	atomic.StoreInt32(&f.state, 0)
	f.once.Do(func() { close(f.doneCh) })
}

// Done is closed the first time the flag is cleared.
func (f *RunFlag) Done() <-chan struct{} {
	return f.doneCh
}

// WithRunFlag returns a context canceled when flag is cleared.
func WithRunFlag(parent context.Context, flag *RunFlag) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)
	go func() {
		select {
		case <-flag.Done():
			cancel()
		case <-ctx.Done():
		}
	}()
	return ctx, cancel
}
