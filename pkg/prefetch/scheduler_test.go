package prefetch

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestScheduler_FiresImmediately(t *testing.T) {
	var calls atomic.Int32
	s := New(func(ctx context.Context) (Status, error) {
		calls.Add(1)
		return Status{QueueSize: 1, Target: 8}, nil
	}, WithInterval(time.Hour))

	s.Start(context.Background())
	defer s.Stop()

	assert.Eventually(t, func() bool { return calls.Load() == 1 }, time.Second, 5*time.Millisecond)
	assert.True(t, s.Running())
}

func TestScheduler_StopsWhenFull(t *testing.T) {
	var calls atomic.Int32
	s := New(func(ctx context.Context) (Status, error) {
		n := int(calls.Add(1))
		return Status{QueueSize: n, Target: 3}, nil
	}, WithInterval(time.Millisecond))

	s.Start(context.Background())

	assert.Eventually(t, func() bool { return !s.Running() }, time.Second, 5*time.Millisecond)
	assert.Equal(t, int32(3), calls.Load())
	assert.Equal(t, Status{QueueSize: 3, Target: 3}, s.Last())
}

func TestScheduler_ErrorsAreSwallowed(t *testing.T) {
	var calls atomic.Int32
	s := New(func(ctx context.Context) (Status, error) {
		calls.Add(1)
		return Status{}, errors.New("connection refused")
	}, WithInterval(time.Millisecond))

	s.Start(context.Background())
	defer s.Stop()

	assert.Eventually(t, func() bool { return calls.Load() >= 3 }, time.Second, time.Millisecond)
	assert.True(t, s.Running())
}

func TestScheduler_StartIsIdempotent(t *testing.T) {
	var calls atomic.Int32
	s := New(func(ctx context.Context) (Status, error) {
		calls.Add(1)
		return Status{Target: 8}, nil
	}, WithInterval(time.Hour))

	s.Start(context.Background())
	s.Start(context.Background())
	s.Start(context.Background())
	defer s.Stop()

	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, int32(1), calls.Load())
}

func TestScheduler_StopCancelsInFlight(t *testing.T) {
	entered := make(chan struct{}, 1)
	s := New(func(ctx context.Context) (Status, error) {
		entered <- struct{}{}
		<-ctx.Done()
		return Status{QueueSize: 8, Target: 8}, ctx.Err()
	}, WithInterval(time.Hour))

	s.Start(context.Background())
	<-entered
	s.Stop()
	s.Stop() // second stop is harmless

	assert.False(t, s.Running())
	assert.Equal(t, Status{}, s.Last(), "result of a stopped loop is discarded")
}

func TestScheduler_StopWaitsForInFlight(t *testing.T) {
	entered := make(chan struct{}, 1)
	var active atomic.Int32
	s := New(func(ctx context.Context) (Status, error) {
		active.Add(1)
		defer active.Add(-1)
		entered <- struct{}{}
		<-ctx.Done()
		time.Sleep(5 * time.Millisecond)
		return Status{}, ctx.Err()
	}, WithInterval(time.Hour))

	s.Start(context.Background())
	<-entered
	s.Stop()
	assert.Zero(t, active.Load(), "trigger still running after Stop returned")
}

func TestScheduler_NoTriggerAfterStop(t *testing.T) {
	var stopped atomic.Bool
	var late atomic.Int32
	s := New(func(ctx context.Context) (Status, error) {
		if stopped.Load() {
			late.Add(1)
		}
		return Status{Target: 8}, nil
	}, WithInterval(50*time.Microsecond))

	for range 500 {
		stopped.Store(false)
		s.Start(context.Background())
		time.Sleep(100 * time.Microsecond)
		s.Stop()
		stopped.Store(true)
		time.Sleep(20 * time.Microsecond)
	}

	assert.Zero(t, late.Load(), "triggers issued after Stop returned")
}

func TestScheduler_RestartAfterStop(t *testing.T) {
	var calls atomic.Int32
	s := New(func(ctx context.Context) (Status, error) {
		calls.Add(1)
		return Status{Target: 8}, nil
	}, WithInterval(time.Hour))

	s.Start(context.Background())
	assert.Eventually(t, func() bool { return calls.Load() == 1 }, time.Second, time.Millisecond)
	s.Stop()
	assert.False(t, s.Running())

	s.Start(context.Background())
	defer s.Stop()
	assert.Eventually(t, func() bool { return calls.Load() == 2 }, time.Second, time.Millisecond)
}

func TestStatus_Full(t *testing.T) {
	assert.False(t, Status{}.Full())
	assert.False(t, Status{QueueSize: 7, Target: 8}.Full())
	assert.True(t, Status{QueueSize: 8, Target: 8}.Full())
	assert.True(t, Status{QueueSize: 9, Target: 8}.Full())
}
