package notify

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

const (
	defaultWorkers     = 2
	defaultBuffer      = 256
	defaultSendTimeout = 10 * time.Second
)

// QueuedNotifier decouples message delivery from the request path with a
// bounded queue and a small worker pool. When the queue is full the
// message is dropped and logged rather than blocking the caller.
type QueuedNotifier struct {
	sender      Sender
	queue       chan Message
	wg          sync.WaitGroup
	logger      *slog.Logger
	metrics     *Metrics
	workers     int
	buffer      int
	sendTimeout time.Duration

	mu     sync.RWMutex
	closed bool
}

// Option configures the QueuedNotifier.
type Option func(*QueuedNotifier)

// WithLogger sets the logger used for delivery failures and drops.
func WithLogger(logger *slog.Logger) Option {
	return func(q *QueuedNotifier) {
		q.logger = logger
	}
}

// WithWorkers sets the number of delivery goroutines.
func WithWorkers(n int) Option {
	return func(q *QueuedNotifier) {
		if n > 0 {
			q.workers = n
		}
	}
}

// WithBuffer sets the queue capacity.
func WithBuffer(size int) Option {
	return func(q *QueuedNotifier) {
		if size > 0 {
			q.buffer = size
		}
	}
}

// WithSendTimeout bounds each delivery attempt.
func WithSendTimeout(d time.Duration) Option {
	return func(q *QueuedNotifier) {
		if d > 0 {
			q.sendTimeout = d
		}
	}
}

// WithMetrics attaches delivery counters.
func WithMetrics(m *Metrics) Option {
	return func(q *QueuedNotifier) {
		q.metrics = m
	}
}

// NewQueued starts a queued notifier delivering through sender.
func NewQueued(sender Sender, opts ...Option) *QueuedNotifier {
	q := &QueuedNotifier{
		sender:      sender,
		logger:      slog.Default(),
		workers:     defaultWorkers,
		buffer:      defaultBuffer,
		sendTimeout: defaultSendTimeout,
	}
	for _, opt := range opts {
		opt(q)
	}

	q.queue = make(chan Message, q.buffer)
	for i := 0; i < q.workers; i++ {
		q.wg.Add(1)
		go q.run()
	}
	return q
}

// Enqueue queues a message for delivery. It never blocks: when the queue
// is full the message is dropped and a warning logged. After Close the
// message is dropped the same way.
func (q *QueuedNotifier) Enqueue(_ context.Context, msg Message) {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		if q.metrics != nil {
			q.metrics.IncDropped()
		}
		q.logger.Warn("notification queue closed, message dropped",
			"to", msg.To,
			"subject", msg.Subject,
		)
		return
	}
	select {
	case q.queue <- msg:
		if q.metrics != nil {
			q.metrics.IncEnqueued()
		}
	default:
		if q.metrics != nil {
			q.metrics.IncDropped()
		}
		q.logger.Warn("notification queue full, message dropped",
			"to", msg.To,
			"subject", msg.Subject,
		)
	}
}

// Close stops accepting messages and waits for queued deliveries to
// drain, or returns early when ctx expires.
func (q *QueuedNotifier) Close(ctx context.Context) error {
	q.mu.Lock()
	if !q.closed {
		q.closed = true
		close(q.queue)
	}
	q.mu.Unlock()

	done := make(chan struct{})
	go func() {
		q.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (q *QueuedNotifier) run() {
	defer q.wg.Done()
	for msg := range q.queue {
		ctx, cancel := context.WithTimeout(context.Background(), q.sendTimeout)
		start := time.Now()
		err := q.sender.Send(ctx, msg)
		cancel()

		if err != nil {
			if q.metrics != nil {
				q.metrics.IncFailed()
			}
			q.logger.Error("notification delivery failed",
				"error", err,
				"to", msg.To,
				"subject", msg.Subject,
			)
			continue
		}
		if q.metrics != nil {
			q.metrics.ObserveSendDuration(time.Since(start).Seconds())
			q.metrics.IncDelivered()
		}
	}
}
