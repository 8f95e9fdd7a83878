// Package timer implements the per-job work stopwatches. Each player gets one
// stopwatch per job category; elapsed time is clamped to the category cap and
// converted to whole minutes when the day advances.
package timer

import (
	"context"
	"sync"
	"time"

	"pigbank/internal/clock"
	"pigbank/internal/ledger"
)

// TickInterval is how often subscribers receive elapsed-time snapshots.
const TickInterval = 200 * time.Millisecond

// Caps maps each job category to its maximum tracked session length.
type Caps map[ledger.Job]time.Duration

// DefaultCaps returns the standard session caps per job.
func DefaultCaps() Caps {
	return Caps{
		ledger.JobCompany:   7 * time.Minute,
		ledger.JobFreelance: 8 * time.Minute,
		ledger.JobPartTime:  6 * time.Minute,
	}
}

// Stopwatch is a pausable elapsed-time counter. Elapsed values never exceed
// the cap even while the underlying counter keeps running.
type Stopwatch struct {
	mu          sync.Mutex
	clk         clock.Clock
	cap         time.Duration
	accumulated time.Duration
	startedAt   time.Time // zero while paused
}

func NewStopwatch(clk clock.Clock, cap time.Duration) *Stopwatch {
	if clk == nil {
		clk = clock.Real{}
	}
	return &Stopwatch{clk: clk, cap: cap}
}

// Start begins or resumes counting. Starting a running stopwatch, or one
// already at its cap, is a no-op.
func (s *Stopwatch) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.startedAt.IsZero() {
		return
	}
	if s.cap > 0 && s.accumulated >= s.cap {
		return
	}
	s.startedAt = s.clk.Now()
}

// Pause stops counting and folds the running segment into the accumulated
// total. Pausing a paused stopwatch is a no-op.
func (s *Stopwatch) Pause() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.startedAt.IsZero() {
		s.accumulated += s.clk.Now().Sub(s.startedAt)
		s.startedAt = time.Time{}
	}
}

// Reset zeroes the stopwatch and leaves it paused.
func (s *Stopwatch) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.accumulated = 0
	s.startedAt = time.Time{}
}

// Elapsed returns counted time clamped to the cap.
func (s *Stopwatch) Elapsed() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.elapsedLocked()
}

func (s *Stopwatch) elapsedLocked() time.Duration {
	d := s.accumulated
	if !s.startedAt.IsZero() {
		d += s.clk.Now().Sub(s.startedAt)
	}
	if s.cap > 0 && d > s.cap {
		d = s.cap
	}
	return d
}

// Running reports whether the stopwatch is currently counting.
func (s *Stopwatch) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return !s.startedAt.IsZero()
}

// Minutes is the whole-minute tally credited as worked time.
func (s *Stopwatch) Minutes() int {
	return int(s.Elapsed() / time.Minute)
}

// Subscribe streams clamped elapsed snapshots until ctx is done. The current
// value is delivered immediately, then on every tick.
func (s *Stopwatch) Subscribe(ctx context.Context) <-chan time.Duration {
	ch := make(chan time.Duration, 1)
	ch <- s.Elapsed()
	go func() {
		defer close(ch)
		ticker := time.NewTicker(TickInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				select {
				case ch <- s.Elapsed():
				default: // slow reader, skip the tick
				}
			}
		}
	}()
	return ch
}

// Registry holds the live stopwatches for all connected players, keyed by
// player and job category. Stopwatches are created lazily and live in memory
// only; worked minutes are persisted to the ledger at day advance.
type Registry struct {
	mu      sync.Mutex
	clk     clock.Clock
	caps    Caps
	watches map[string]*Stopwatch
}

func NewRegistry(clk clock.Clock, caps Caps) *Registry {
	if clk == nil {
		clk = clock.Real{}
	}
	if caps == nil {
		caps = DefaultCaps()
	}
	return &Registry{clk: clk, caps: caps, watches: map[string]*Stopwatch{}}
}

// For returns the player's stopwatch for the given job, creating it on first
// use. Jobs without a cap entry get an uncapped stopwatch.
func (r *Registry) For(userID string, job ledger.Job) *Stopwatch {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := userID + "/" + string(job)
	sw, ok := r.watches[key]
	if !ok {
		sw = NewStopwatch(r.clk, r.caps[job])
		r.watches[key] = sw
	}
	return sw
}

// ResetAll clears every stopwatch belonging to the player. Called when the
// day advances so the next work session starts from zero.
func (r *Registry) ResetAll(userID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	prefix := userID + "/"
	for key, sw := range r.watches {
		if len(key) > len(prefix) && key[:len(prefix)] == prefix {
			sw.Reset()
		}
	}
}

// Drop removes the player's stopwatches entirely, e.g. on account deletion.
func (r *Registry) Drop(userID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	prefix := userID + "/"
	for key := range r.watches {
		if len(key) > len(prefix) && key[:len(prefix)] == prefix {
			delete(r.watches, key)
		}
	}
}
