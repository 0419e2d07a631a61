package jobs

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSchedulerRunAllExecutesEveryTask(t *testing.T) {
	var first, second int32
	s := NewScheduler([]Task{
		{Name: "first", Run: func(context.Context) error { atomic.AddInt32(&first, 1); return nil }},
		{Name: "second", Run: func(context.Context) error { atomic.AddInt32(&second, 1); return nil }},
	}, SchedulerConfig{Interval: time.Hour})

	require.NoError(t, s.RunAll(context.Background()))
	assert.Equal(t, int32(1), atomic.LoadInt32(&first))
	assert.Equal(t, int32(1), atomic.LoadInt32(&second))
}

func TestSchedulerRunAllReturnsFirstErrorButContinues(t *testing.T) {
	var ran int32
	boom := errors.New("boom")
	s := NewScheduler([]Task{
		{Name: "failing", Run: func(context.Context) error { return boom }},
		{Name: "after", Run: func(context.Context) error { atomic.AddInt32(&ran, 1); return nil }},
	}, SchedulerConfig{Interval: time.Hour})

	err := s.RunAll(context.Background())
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, int32(1), atomic.LoadInt32(&ran), "later tasks still run")
}

func TestSchedulerRecoversFromPanic(t *testing.T) {
	s := NewScheduler([]Task{
		{Name: "panicky", Run: func(context.Context) error { panic("nope") }},
	}, SchedulerConfig{Interval: time.Hour})

	err := s.RunAll(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "panicked")
}

func TestSchedulerStartStop(t *testing.T) {
	var runs int32
	s := NewScheduler([]Task{
		{Name: "tick", Run: func(context.Context) error { atomic.AddInt32(&runs, 1); return nil }},
	}, SchedulerConfig{Interval: 5 * time.Millisecond, RunOnStart: true})

	s.Start(context.Background())
	time.Sleep(25 * time.Millisecond)
	s.Stop()

	assert.GreaterOrEqual(t, atomic.LoadInt32(&runs), int32(1))

	// Stop twice must not block or panic.
	s.Stop()
}
