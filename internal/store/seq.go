package store

import "sync/atomic"

// SeqClock is the monotonic logical clock that orders journal rows.
//
// Every build and job row is stamped with a strictly increasing seq taken
// from this clock, so journal order never depends on wall-clock time.
// Safe for concurrent use.
type SeqClock struct {
	seq atomic.Int64
}

// NewSeqClockAt creates a clock whose next value is start+1.
// Used to resume after the highest seq already in the journal.
func NewSeqClockAt(start int64) *SeqClock {
	c := &SeqClock{}
	c.seq.Store(start)
	return c
}

// Next returns the next sequence number and increments the clock.
func (c *SeqClock) Next() int64 {
	return c.seq.Add(1)
}

// Current returns the last issued sequence number.
func (c *SeqClock) Current() int64 {
	return c.seq.Load()
}
