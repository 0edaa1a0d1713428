package framework

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

var errBoom = errors.New("boom")

func TestRunnerAggregatesErrors(t *testing.T) {
	r := NewRunner()
	r.Go(
		RunFunc(func(context.Context) error { return errBoom }),
		RunFunc(func(context.Context) error { return nil }),
	)
	err := r.Wait()
	require.Error(t, err)
	require.True(t, IsOrContains(err, errBoom))
}

func TestRunnerStopOnError(t *testing.T) {
	r := NewRunner().WithStopOnError(true)
	r.Go(
		NamedRun("failing", RunFunc(func(context.Context) error { return errBoom })),
		NamedRun("blocking", RunFunc(func(ctx context.Context) error {
			<-ctx.Done()
			return ctx.Err()
		})),
	)
	done := make(chan error, 1)
	go func() { done <- r.Wait() }()
	select {
	case err := <-done:
		require.True(t, IsOrContains(err, errBoom))
	case <-time.After(time.Second):
		t.Fatal("runner did not stop")
	}
}

func TestRunnerStopIgnoresCanceled(t *testing.T) {
	r := NewRunner()
	r.Go(RunFunc(func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	}))
	r.Stop()
	require.NoError(t, r.Wait())
}

func TestLoopStops(t *testing.T) {
	var count int
	l := NewLoop(0, func(ctx context.Context, now time.Time) error {
		if count++; count == 3 {
			return ErrStopLoop
		}
		return nil
	})
	require.NoError(t, l.Run(context.Background()))
	require.Equal(t, 3, count)
}

func TestLoopInterval(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 120*time.Millisecond)
	defer cancel()
	var count int
	l := NewLoop(50*time.Millisecond, func(ctx context.Context, now time.Time) error {
		count++
		return nil
	})
	require.Equal(t, context.DeadlineExceeded, l.Run(ctx))
	require.True(t, count >= 2 && count <= 4, "count=%d", count)
}

type closerFunc func() error

func (f closerFunc) Close() error { return f() }

func TestRunWithContextCloser(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	unblock := make(chan struct{})
	var closed int
	closer := closerFunc(func() error {
		closed++
		close(unblock)
		return nil
	})
	go cancel()
	err := RunWithContextCloser(ctx, closer, func() error {
		<-unblock
		return nil
	})
	require.Equal(t, context.Canceled, err)
	require.Equal(t, 1, closed)
}
