// Package worker runs the background delivery of lifecycle notifications.
package worker

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/sav-service/internal/notify"
	"github.com/spec-kit/sav-service/internal/observability"
)

// ErrQueueFull is recorded when a notification cannot be queued.
var ErrQueueFull = errors.New("notification queue full")

// ErrStopped is recorded when a notification arrives after Stop.
var ErrStopped = errors.New("notification worker stopped")

// Options configures an AsyncNotifier.
type Options struct {
	Workers   int
	QueueSize int
	Timeout   time.Duration
}

// AsyncNotifier is a notify.Notifier that queues deliveries and hands them to a
// downstream notifier from a fixed pool of goroutines. Enqueueing never blocks and never
// fails from the caller's point of view; undeliverable messages go to the dead-letter sink.
type AsyncNotifier struct {
	next        notify.Notifier
	deadLetters notify.DeadLetters
	logger      *zap.Logger
	metrics     *observability.Metrics
	opts        Options
	now         func() time.Time

	queue chan notify.Message

	mu      sync.RWMutex
	stopped bool
	wg      sync.WaitGroup
}

// NewAsyncNotifier builds the worker pool. Call Start before use.
func NewAsyncNotifier(next notify.Notifier, deadLetters notify.DeadLetters, logger *zap.Logger, metrics *observability.Metrics, opts Options) *AsyncNotifier {
	if opts.Workers <= 0 {
		opts.Workers = 1
	}
	if opts.QueueSize <= 0 {
		opts.QueueSize = 64
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 5 * time.Second
	}
	return &AsyncNotifier{
		next:        next,
		deadLetters: deadLetters,
		logger:      logger,
		metrics:     metrics,
		opts:        opts,
		now:         time.Now,
		queue:       make(chan notify.Message, opts.QueueSize),
	}
}

// Start launches the delivery goroutines.
func (a *AsyncNotifier) Start() {
	for i := 0; i < a.opts.Workers; i++ {
		a.wg.Add(1)
		go a.run()
	}
	a.logger.Info("notification workers started", zap.Int("workers", a.opts.Workers), zap.Int("queue_size", a.opts.QueueSize))
}

// Stop rejects new messages, drains the queue and waits for the workers or ctx.
func (a *AsyncNotifier) Stop(ctx context.Context) error {
	a.mu.Lock()
	if a.stopped {
		a.mu.Unlock()
		return nil
	}
	a.stopped = true
	close(a.queue)
	a.mu.Unlock()

	done := make(chan struct{})
	go func() {
		a.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (a *AsyncNotifier) NotifyAssigned(_ context.Context, ticketID, technicianID string) error {
	a.enqueue(notify.Message{Kind: notify.KindAssigned, TicketID: ticketID, TechnicianID: technicianID, CreatedAt: a.now().UTC()})
	return nil
}

func (a *AsyncNotifier) NotifyResolved(_ context.Context, ticketID, solutionSummary string) error {
	a.enqueue(notify.Message{Kind: notify.KindResolved, TicketID: ticketID, Solution: solutionSummary, CreatedAt: a.now().UTC()})
	return nil
}

func (a *AsyncNotifier) enqueue(msg notify.Message) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.stopped {
		a.fail(msg, ErrStopped, "dropped")
		return
	}
	select {
	case a.queue <- msg:
	default:
		a.fail(msg, ErrQueueFull, "dropped")
	}
}

func (a *AsyncNotifier) run() {
	defer a.wg.Done()
	for msg := range a.queue {
		a.deliver(msg)
	}
}

func (a *AsyncNotifier) deliver(msg notify.Message) {
	ctx, cancel := context.WithTimeout(context.Background(), a.opts.Timeout)
	defer cancel()

	if err := notify.Send(ctx, a.next, msg); err != nil {
		a.fail(msg, err, "failed")
		return
	}
	a.metrics.RecordNotification(string(msg.Kind), "delivered")
}

func (a *AsyncNotifier) fail(msg notify.Message, cause error, outcome string) {
	a.metrics.RecordNotification(string(msg.Kind), outcome)
	a.logger.Warn("notification not delivered",
		zap.String("kind", string(msg.Kind)),
		zap.String("ticket_id", msg.TicketID),
		zap.String("outcome", outcome),
		zap.Error(cause))

	if a.deadLetters == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), a.opts.Timeout)
	defer cancel()
	failure := notify.Failure{Message: msg, Reason: cause.Error(), FailedAt: a.now().UTC()}
	if err := a.deadLetters.Record(ctx, failure); err != nil {
		a.logger.Error("dead letter write failed", zap.String("ticket_id", msg.TicketID), zap.Error(err))
	}
}
