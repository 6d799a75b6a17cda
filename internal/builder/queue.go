package builder

import (
	"context"
	"sync"

	"github.com/roach88/gfstore/internal/backend"
)

// job is one partition waiting for a worker.
type job struct {
	Partition backend.Partition
}

// jobQueue is a thread-safe FIFO queue of partition jobs.
//
// The queue uses a channel for signaling so that workers can wait for work
// and observe context cancellation at the same time.
type jobQueue struct {
	mu     sync.Mutex
	jobs   []job
	closed bool
	signal chan struct{} // Signals job availability (buffered, size 1)
}

func newJobQueue() *jobQueue {
	return &jobQueue{
		jobs:   make([]job, 0, 16),
		signal: make(chan struct{}, 1),
	}
}

// Enqueue adds a job to the back of the queue.
// Returns false if the queue is closed.
func (q *jobQueue) Enqueue(j job) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return false
	}
	q.jobs = append(q.jobs, j)

	// Non-blocking; the buffer of 1 coalesces multiple signals.
	select {
	case q.signal <- struct{}{}:
	default:
	}
	return true
}

// TryDequeue removes the front job without blocking.
func (q *jobQueue) TryDequeue() (job, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.jobs) == 0 {
		return job{}, false
	}
	j := q.jobs[0]
	q.jobs[0] = job{}
	if len(q.jobs) == 1 {
		q.jobs = q.jobs[:0]
	} else {
		q.jobs = q.jobs[1:]
	}
	return j, true
}

// Next blocks until a job is available, the queue is closed and drained,
// or ctx is done.
func (q *jobQueue) Next(ctx context.Context) (job, bool) {
	for {
		if ctx.Err() != nil {
			return job{}, false
		}
		if j, ok := q.TryDequeue(); ok {
			return j, true
		}

		q.mu.Lock()
		drained := q.closed && len(q.jobs) == 0
		q.mu.Unlock()
		if drained {
			return job{}, false
		}

		select {
		case <-ctx.Done():
			return job{}, false
		case <-q.signal:
		}
	}
}

// Len returns the number of waiting jobs.
func (q *jobQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.jobs)
}

// Drain removes and returns every waiting job.
func (q *jobQueue) Drain() []job {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := q.jobs
	q.jobs = nil
	return out
}

// Close signals that no more jobs will be enqueued and wakes all waiters.
func (q *jobQueue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return
	}
	q.closed = true
	close(q.signal)
}
