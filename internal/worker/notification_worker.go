package worker

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/auth-service/internal/mail"
)

const sendTimeout = 30 * time.Second

var (
	ErrQueueFull   = errors.New("notification queue full")
	ErrQueueClosed = errors.New("notification queue closed")
)

// NotificationWorker queues outgoing mail and delivers it from a fixed pool of goroutines,
// keeping SMTP latency out of request handling. It satisfies mail.Sender.
type NotificationWorker struct {
	sender  mail.Sender
	logger  *zap.Logger
	workers int
	jobs    chan mail.Message

	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup
}

// NewNotificationWorker builds a worker pool with the given queue capacity.
func NewNotificationWorker(sender mail.Sender, logger *zap.Logger, workers, capacity int) *NotificationWorker {
	if workers <= 0 {
		workers = 1
	}
	if capacity <= 0 {
		capacity = 100
	}
	return &NotificationWorker{
		sender:  sender,
		logger:  logger,
		workers: workers,
		jobs:    make(chan mail.Message, capacity),
	}
}

// Start launches the delivery goroutines. They exit when ctx is cancelled or after Stop
// has drained the queue.
func (w *NotificationWorker) Start(ctx context.Context) {
	for i := 0; i < w.workers; i++ {
		w.wg.Add(1)
		go w.run(ctx, i)
	}
}

func (w *NotificationWorker) run(ctx context.Context, id int) {
	defer w.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-w.jobs:
			if !ok {
				return
			}
			w.deliver(ctx, id, msg)
		}
	}
}

func (w *NotificationWorker) deliver(ctx context.Context, id int, msg mail.Message) {
	sendCtx, cancel := context.WithTimeout(ctx, sendTimeout)
	defer cancel()

	if err := w.sender.Send(sendCtx, msg); err != nil {
		w.logger.Error("mail delivery failed",
			zap.Int("worker", id),
			zap.Strings("to", msg.To),
			zap.String("subject", msg.Subject),
			zap.Error(err))
	}
}

// Send enqueues msg without blocking.
func (w *NotificationWorker) Send(ctx context.Context, msg mail.Message) error {
	w.mu.RLock()
	defer w.mu.RUnlock()
	if w.closed {
		return ErrQueueClosed
	}

	select {
	case w.jobs <- msg:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	default:
		return ErrQueueFull
	}
}

// Stop rejects new messages, lets the workers drain what is queued and waits for them.
func (w *NotificationWorker) Stop() {
	w.mu.Lock()
	if !w.closed {
		w.closed = true
		close(w.jobs)
	}
	w.mu.Unlock()
	w.wg.Wait()
}
