package timer

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"pigbank/internal/clock"
	"pigbank/internal/ledger"
)

func TestStopwatchAccumulatesAcrossPauses(t *testing.T) {
	clk := clock.NewFake(time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC))
	sw := NewStopwatch(clk, 0)

	sw.Start()
	clk.Advance(90 * time.Second)
	sw.Pause()
	require.Equal(t, 90*time.Second, sw.Elapsed())

	// Paused time must not count.
	clk.Advance(time.Hour)
	require.Equal(t, 90*time.Second, sw.Elapsed())

	sw.Start()
	clk.Advance(30 * time.Second)
	require.Equal(t, 2*time.Minute, sw.Elapsed())
	require.Equal(t, 2, sw.Minutes())
}

func TestStopwatchClampsAtCap(t *testing.T) {
	clk := clock.NewFake(time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC))
	sw := NewStopwatch(clk, 7*time.Minute)

	sw.Start()
	clk.Advance(20 * time.Minute)
	require.Equal(t, 7*time.Minute, sw.Elapsed())
	require.Equal(t, 7, sw.Minutes())
	require.True(t, sw.Running())
}

func TestStopwatchReset(t *testing.T) {
	clk := clock.NewFake(time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC))
	sw := NewStopwatch(clk, 0)

	sw.Start()
	clk.Advance(5 * time.Minute)
	sw.Reset()
	require.Equal(t, time.Duration(0), sw.Elapsed())
	require.False(t, sw.Running())
}

func TestStopwatchDoubleStartIsNoop(t *testing.T) {
	clk := clock.NewFake(time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC))
	sw := NewStopwatch(clk, 0)

	sw.Start()
	clk.Advance(time.Minute)
	sw.Start()
	clk.Advance(time.Minute)
	require.Equal(t, 2*time.Minute, sw.Elapsed())
}

func TestSubscribeDeliversImmediately(t *testing.T) {
	clk := clock.NewFake(time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC))
	sw := NewStopwatch(clk, 7*time.Minute)
	sw.Start()
	clk.Advance(9 * time.Minute)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	ch := sw.Subscribe(ctx)

	select {
	case got := <-ch:
		require.Equal(t, 7*time.Minute, got)
	case <-time.After(time.Second):
		t.Fatal("no immediate snapshot")
	}
}

func TestRegistryPerPlayerPerJob(t *testing.T) {
	clk := clock.NewFake(time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC))
	reg := NewRegistry(clk, nil)

	a := reg.For("alice", ledger.JobCompany)
	b := reg.For("alice", ledger.JobFreelance)
	require.NotSame(t, a, b)
	require.Same(t, a, reg.For("alice", ledger.JobCompany))

	a.Start()
	clk.Advance(10 * time.Minute)
	require.Equal(t, 7*time.Minute, a.Elapsed())

	reg.ResetAll("alice")
	require.Equal(t, time.Duration(0), a.Elapsed())

	// Another player's stopwatch is untouched by the reset.
	c := reg.For("bob", ledger.JobCompany)
	c.Start()
	clk.Advance(2 * time.Minute)
	reg.ResetAll("alice")
	require.Equal(t, 2*time.Minute, c.Elapsed())
}
