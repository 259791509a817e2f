// Package notify delivers shipment notifications to an external sink off the
// processing path.
package notify

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/UDDITwork/shipsarthi-sub005/internal/models"
)

const (
	DefaultBufferSize = 1000
	DefaultTimeout    = 3 * time.Second
)

// Sink emits one notification.
type Sink interface {
	Name() string
	Emit(ctx context.Context, n models.Notification) error
}

// Observer is told about notifications that did not make it out.
type Observer interface {
	NotificationDropped(sink string)
	NotificationFailed(sink string)
}

// Dispatcher hands notifications to a Sink from its own goroutine. Notify
// never blocks: when the buffer is full the notification is dropped.
type Dispatcher struct {
	sink     Sink
	timeout  time.Duration
	observer Observer
	logger   *zap.Logger

	mu     sync.RWMutex
	ch     chan models.Notification
	closed bool
	done   chan struct{}

	sent    atomic.Uint64
	failed  atomic.Uint64
	dropped atomic.Uint64
}

// NewDispatcher creates a dispatcher. Start must be called before
// notifications are delivered.
func NewDispatcher(sink Sink, bufferSize int, timeout time.Duration, observer Observer, logger *zap.Logger) *Dispatcher {
	if bufferSize <= 0 {
		bufferSize = DefaultBufferSize
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Dispatcher{
		sink:     sink,
		timeout:  timeout,
		observer: observer,
		logger:   logger,
		ch:       make(chan models.Notification, bufferSize),
		done:     make(chan struct{}),
	}
}

// Start launches the delivery goroutine.
func (d *Dispatcher) Start() {
	go d.run()
}

// Notify queues n for delivery.
func (d *Dispatcher) Notify(n models.Notification) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		d.drop(n, "dispatcher closed")
		return
	}
	select {
	case d.ch <- n:
	default:
		d.drop(n, "buffer full")
	}
}

// Close stops accepting notifications and waits for the buffered ones to be
// delivered, or for ctx to expire.
func (d *Dispatcher) Close(ctx context.Context) error {
	d.mu.Lock()
	if !d.closed {
		d.closed = true
		close(d.ch)
	}
	d.mu.Unlock()

	select {
	case <-d.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Stats returns delivery counters.
func (d *Dispatcher) Stats() (sent, failed, dropped uint64) {
	return d.sent.Load(), d.failed.Load(), d.dropped.Load()
}

func (d *Dispatcher) run() {
	defer close(d.done)
	for n := range d.ch {
		d.emit(n)
	}
}

func (d *Dispatcher) emit(n models.Notification) {
	ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
	defer cancel()

	defer func() {
		if r := recover(); r != nil {
			d.failed.Add(1)
			d.logger.Error("Notification sink panicked",
				zap.String("sink", d.sink.Name()),
				zap.Any("panic", r),
			)
		}
	}()

	if err := d.sink.Emit(ctx, n); err != nil {
		d.failed.Add(1)
		if d.observer != nil {
			d.observer.NotificationFailed(d.sink.Name())
		}
		d.logger.Warn("Failed to emit notification",
			zap.String("sink", d.sink.Name()),
			zap.String("event_type", string(n.EventType)),
			zap.String("awb", n.AWB),
			zap.String("request_id", n.RequestID),
			zap.Error(err),
		)
		return
	}
	d.sent.Add(1)
}

func (d *Dispatcher) drop(n models.Notification, reason string) {
	d.dropped.Add(1)
	if d.observer != nil {
		d.observer.NotificationDropped(d.sink.Name())
	}
	d.logger.Warn("Notification dropped",
		zap.String("reason", reason),
		zap.String("event_type", string(n.EventType)),
		zap.String("awb", n.AWB),
		zap.String("request_id", n.RequestID),
	)
}
