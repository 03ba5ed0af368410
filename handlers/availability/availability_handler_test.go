package availability_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"aitherapist/core"
	"aitherapist/handlers/availability"
)

type checkerFunc func(ctx context.Context) error

func (f checkerFunc) CheckHealth(ctx context.Context) error { return f(ctx) }

func TestCheck_Healthy(t *testing.T) {
	m := availability.NewMonitor(checkerFunc(func(ctx context.Context) error { return nil }), availability.DefaultConfig(), core.NewNopLogger())

	assert.Equal(t, core.AvailabilityAvailable, m.Check(context.Background()))
}

func TestCheck_ErrorIsUnavailable(t *testing.T) {
	m := availability.NewMonitor(checkerFunc(func(ctx context.Context) error {
		return core.ErrBackendUnreachable
	}), availability.DefaultConfig(), core.NewNopLogger())

	assert.Equal(t, core.AvailabilityUnavailable, m.Check(context.Background()))
}

func TestCheck_SlowProbeTimesOut(t *testing.T) {
	m := availability.NewMonitor(checkerFunc(func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	}), availability.AvailabilityConfig{ProbeTimeout: core.Duration(20 * time.Millisecond)}, core.NewNopLogger())

	start := time.Now()
	got := m.Check(context.Background())

	assert.Equal(t, core.AvailabilityUnavailable, got)
	assert.Less(t, time.Since(start), time.Second)
}

func TestCheck_ProbeSeesDeadline(t *testing.T) {
	var deadline time.Time
	m := availability.NewMonitor(checkerFunc(func(ctx context.Context) error {
		deadline, _ = ctx.Deadline()
		return nil
	}), availability.AvailabilityConfig{}, core.NewNopLogger())

	before := time.Now()
	m.Check(context.Background())

	assert.WithinDuration(t, before.Add(5*time.Second), deadline, time.Second)
}

func TestCheck_PanicIsUnavailable(t *testing.T) {
	m := availability.NewMonitor(checkerFunc(func(ctx context.Context) error {
		panic(errors.New("nil transport"))
	}), availability.DefaultConfig(), core.NewNopLogger())

	assert.Equal(t, core.AvailabilityUnavailable, m.Check(context.Background()))
}
