// Package queue holds accepted webhooks in a bounded in-memory FIFO and runs
// them on a single background worker with retry and backoff.
package queue

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/UDDITwork/shipsarthi-sub005/internal/config"
	"github.com/UDDITwork/shipsarthi-sub005/internal/payload"
)

var (
	// ErrQueueFull is returned by Enqueue when the queue is at capacity.
	ErrQueueFull = errors.New("job queue is full")
	// ErrStopped is returned by Enqueue after Stop.
	ErrStopped = errors.New("job queue is stopped")
)

const (
	DefaultMaxSize     = 10000
	DefaultMaxAttempts = 3
	DefaultBaseBackoff = time.Second
	DefaultJobTimeout  = 10 * time.Second
)

// Stats is a point-in-time view of the queue counters.
type Stats struct {
	Depth      int    `json:"depth"`
	Processing bool   `json:"processing"`
	Scheduled  int    `json:"scheduled"`
	Enqueued   uint64 `json:"enqueued"`
	Processed  uint64 `json:"processed"`
	Failed     uint64 `json:"failed"`
	Retries    uint64 `json:"retries"`
	Rejected   uint64 `json:"rejected"`
}

// Queue is a bounded FIFO of jobs. Enqueue never blocks; retries are
// re-admitted at the tail by timer and bypass the capacity check.
type Queue struct {
	cfg    config.QueueConfig
	logger *zap.Logger

	mu         sync.Mutex
	jobs       []*Job
	timers     map[uuid.UUID]*time.Timer
	processing bool
	stopped    bool
	enqueued   uint64
	processed  uint64
	failed     uint64
	retries    uint64
	rejected   uint64

	wake chan struct{}
}

// New creates a queue. Zero values in cfg fall back to the package defaults.
func New(cfg config.QueueConfig, logger *zap.Logger) *Queue {
	if cfg.MaxSize <= 0 {
		cfg.MaxSize = DefaultMaxSize
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = DefaultMaxAttempts
	}
	if cfg.BaseBackoff <= 0 {
		cfg.BaseBackoff = DefaultBaseBackoff
	}
	if cfg.JobTimeout <= 0 {
		cfg.JobTimeout = DefaultJobTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Queue{
		cfg:    cfg,
		logger: logger,
		timers: make(map[uuid.UUID]*time.Timer),
		wake:   make(chan struct{}, 1),
	}
}

// Enqueue appends a new job for p. When the queue is at capacity it returns
// ErrQueueFull and leaves the queue untouched. The returned job is a copy.
func (q *Queue) Enqueue(kind payload.Kind, p payload.Payload, requestID string) (*Job, error) {
	if p == nil {
		return nil, fmt.Errorf("enqueue %s: nil payload", kind)
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	if q.stopped {
		return nil, ErrStopped
	}
	if len(q.jobs) >= q.cfg.MaxSize {
		q.rejected++
		return nil, ErrQueueFull
	}

	job := &Job{
		ID:          uuid.New(),
		Kind:        kind,
		Payload:     p,
		RequestID:   requestID,
		EnqueuedAt:  time.Now(),
		MaxAttempts: q.cfg.MaxAttempts,
		State:       StateQueued,
	}
	q.jobs = append(q.jobs, job)
	q.enqueued++
	q.signal()

	snapshot := *job
	return &snapshot, nil
}

// Stats returns the current counters.
func (q *Queue) Stats() Stats {
	q.mu.Lock()
	defer q.mu.Unlock()
	return Stats{
		Depth:      len(q.jobs),
		Processing: q.processing,
		Scheduled:  len(q.timers),
		Enqueued:   q.enqueued,
		Processed:  q.processed,
		Failed:     q.failed,
		Retries:    q.retries,
		Rejected:   q.rejected,
	}
}

// Stop refuses further jobs and cancels pending retries. Jobs still queued
// are abandoned.
func (q *Queue) Stop() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.stopped {
		return
	}
	q.stopped = true
	for id, t := range q.timers {
		t.Stop()
		delete(q.timers, id)
	}
	if len(q.jobs) > 0 {
		q.logger.Warn("Job queue stopped with pending jobs",
			zap.Int("pending", len(q.jobs)),
		)
	}
	q.signal()
}

// next pops the head job and marks it processing, or returns nil.
func (q *Queue) next() *Job {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.stopped || len(q.jobs) == 0 {
		return nil
	}
	job := q.jobs[0]
	q.jobs[0] = nil
	q.jobs = q.jobs[1:]
	job.State = StateProcessing
	job.Attempts++
	q.processing = true
	return job
}

// finish applies the decision for the attempt that just ended.
func (q *Queue) finish(job *Job, d Decision) {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.processing = false
	job.LastError = d.LastError
	job.State = d.State

	switch d.State {
	case StateCompleted:
		q.processed++
	case StateFailed:
		q.failed++
	case StateRetryScheduled:
		q.retries++
		if q.stopped {
			return
		}
		job.NotBefore = time.Now().Add(d.Delay)
		q.timers[job.ID] = time.AfterFunc(d.Delay, func() { q.readmit(job) })
	}
}

func (q *Queue) readmit(job *Job) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if _, ok := q.timers[job.ID]; !ok {
		return
	}
	delete(q.timers, job.ID)
	if q.stopped {
		return
	}
	job.State = StateQueued
	q.jobs = append(q.jobs, job)
	q.signal()
}

// signal wakes the worker without blocking. Caller holds q.mu.
func (q *Queue) signal() {
	select {
	case q.wake <- struct{}{}:
	default:
	}
}

func (q *Queue) isStopped() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.stopped
}
