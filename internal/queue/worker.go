package queue

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/UDDITwork/shipsarthi-sub005/internal/payload"
)

// Handler processes one job attempt. Errors wrapped with Transient, and
// deadline overruns, are retried; anything else fails the job.
type Handler interface {
	Handle(ctx context.Context, job *Job) error
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, job *Job) error

func (f HandlerFunc) Handle(ctx context.Context, job *Job) error { return f(ctx, job) }

// Observer receives per-attempt results, typically for metrics.
type Observer interface {
	JobFinished(kind payload.Kind, state State, elapsed time.Duration)
	RetryScheduled(kind payload.Kind, attempt int, delay time.Duration)
}

// Worker drains a Queue on a single goroutine, so jobs run strictly one at a
// time in admission order.
type Worker struct {
	queue    *Queue
	handler  Handler
	observer Observer
	logger   *zap.Logger
	done     chan struct{}
}

// NewWorker creates a worker for q. observer may be nil.
func NewWorker(q *Queue, handler Handler, observer Observer, logger *zap.Logger) *Worker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Worker{
		queue:    q,
		handler:  handler,
		observer: observer,
		logger:   logger,
		done:     make(chan struct{}),
	}
}

// Run processes jobs until ctx is cancelled or the queue is stopped. An
// attempt already in flight is allowed to finish within the job timeout.
func (w *Worker) Run(ctx context.Context) {
	defer close(w.done)

	w.logger.Info("Job worker started",
		zap.Int("max_size", w.queue.cfg.MaxSize),
		zap.Int("max_attempts", w.queue.cfg.MaxAttempts),
		zap.Duration("base_backoff", w.queue.cfg.BaseBackoff),
	)

	for {
		if ctx.Err() != nil {
			w.logger.Info("Job worker context cancelled, stopping")
			return
		}

		job := w.queue.next()
		if job == nil {
			if w.queue.isStopped() {
				w.logger.Info("Job queue stopped, worker exiting")
				return
			}
			select {
			case <-ctx.Done():
				w.logger.Info("Job worker context cancelled, stopping")
				return
			case <-w.queue.wake:
			}
			continue
		}

		w.process(ctx, job)
	}
}

// Done is closed when Run returns.
func (w *Worker) Done() <-chan struct{} {
	return w.done
}

func (w *Worker) process(ctx context.Context, job *Job) {
	log := w.logger.With(
		zap.String("job_id", job.ID.String()),
		zap.String("request_id", job.RequestID),
		zap.String("kind", string(job.Kind)),
		zap.Int("attempt", job.Attempts),
	)
	log.Debug("Processing job")

	jobCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), w.queue.cfg.JobTimeout)
	started := time.Now()
	err := w.invoke(jobCtx, job)
	cancel()
	elapsed := time.Since(started)

	decision := Decide(err, job.Attempts, job.MaxAttempts, w.queue.cfg.BaseBackoff)
	if w.observer != nil {
		w.observer.JobFinished(job.Kind, decision.State, elapsed)
		if decision.State == StateRetryScheduled {
			w.observer.RetryScheduled(job.Kind, job.Attempts, decision.Delay)
		}
	}
	w.queue.finish(job, decision)

	switch decision.State {
	case StateCompleted:
		log.Info("Job completed", zap.Duration("elapsed", elapsed))
	case StateRetryScheduled:
		log.Warn("Job will be retried",
			zap.Duration("delay", decision.Delay),
			zap.String("last_error", decision.LastError),
		)
	case StateFailed:
		log.Error("Job failed",
			zap.Int("max_attempts", job.MaxAttempts),
			zap.String("last_error", decision.LastError),
		)
	}
}

// invoke runs the handler, turning a panic into a permanent failure so the
// single worker survives it.
func (w *Worker) invoke(ctx context.Context, job *Job) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panic: %v", r)
		}
	}()
	return w.handler.Handle(ctx, job)
}
