// Package lap provides an explicit timing context for measuring build and
// query phases.
//
// A Stopwatch is created by the caller and passed to whatever needs timing.
// There is no process-wide timer: two builds running in the same process keep
// independent stopwatches.
package lap

import (
	"sync"
	"time"
)

// Clock is the time source of a Stopwatch.
type Clock interface {
	Now() time.Time
}

// RealClock reads the wall clock.
type RealClock struct{}

// Now returns the current time.
func (RealClock) Now() time.Time {
	return time.Now()
}

// Stopwatch measures elapsed time between laps.
//
// Thread-safety: Stopwatch is safe for concurrent use via internal mutex.
type Stopwatch struct {
	mu      sync.Mutex
	clock   Clock
	started time.Time
	last    time.Time
	laps    int
}

// New creates a stopwatch started at the clock's current time.
// A nil clock means RealClock.
func New(clock Clock) *Stopwatch {
	if clock == nil {
		clock = RealClock{}
	}
	now := clock.Now()
	return &Stopwatch{clock: clock, started: now, last: now}
}

// Lap returns the time since the previous call to Lap.
// The first call returns zero and only marks the starting point.
func (s *Stopwatch) Lap() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock.Now()
	s.laps++
	if s.laps == 1 {
		s.last = now
		return 0
	}
	d := now.Sub(s.last)
	s.last = now
	return d
}

// Elapsed returns the time since the stopwatch was created.
func (s *Stopwatch) Elapsed() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.clock.Now().Sub(s.started)
}

// Laps returns how many times Lap has been called.
func (s *Stopwatch) Laps() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.laps
}

// Time runs fn and returns how long it took.
func (s *Stopwatch) Time(fn func() error) (time.Duration, error) {
	start := s.clock.Now()
	err := fn()
	return s.clock.Now().Sub(start), err
}
