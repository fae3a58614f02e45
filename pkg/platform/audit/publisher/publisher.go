// Package publisher delivers audit events to a sink from a bounded buffer.
// Callers never block on the sink; failed writes are retried with
// exponential backoff and dropped after the retry budget.
package publisher

import (
	"context"
	"log/slog"
	"sync"
	"time"

	dErrors "github.com/jasonachkar/secure-api-gateway-sub001/pkg/domain-errors"
	audit "github.com/jasonachkar/secure-api-gateway-sub001/pkg/platform/audit"
)

// Sink persists or forwards one event.
type Sink interface {
	Write(ctx context.Context, event audit.Event) error
}

// Publisher buffers audit events and writes them to a Sink in the background.
type Publisher struct {
	sink    Sink
	events  chan audit.Event
	logger  *slog.Logger
	metrics *Metrics

	maxRetries   int
	retryBackoff time.Duration
	writeTimeout time.Duration

	mu     sync.RWMutex
	closed bool
	wg       sync.WaitGroup
	stop     chan struct{}
	stopOnce sync.Once
}

// Option configures the Publisher.
type Option func(*Publisher)

// WithLogger sets a logger for delivery failures.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Publisher) {
		p.logger = logger
	}
}

// WithMetrics sets the metrics collector.
func WithMetrics(m *Metrics) Option {
	return func(p *Publisher) {
		p.metrics = m
	}
}

// WithBufferSize sets the buffer capacity.
func WithBufferSize(size int) Option {
	return func(p *Publisher) {
		if size > 0 {
			p.events = make(chan audit.Event, size)
		}
	}
}

// WithMaxRetries sets the maximum retry attempts per event.
func WithMaxRetries(n int) Option {
	return func(p *Publisher) {
		if n >= 0 {
			p.maxRetries = n
		}
	}
}

// WithRetryBackoff sets the base retry backoff duration.
func WithRetryBackoff(d time.Duration) Option {
	return func(p *Publisher) {
		p.retryBackoff = d
	}
}

// WithWriteTimeout bounds a single sink write.
func WithWriteTimeout(d time.Duration) Option {
	return func(p *Publisher) {
		if d > 0 {
			p.writeTimeout = d
		}
	}
}

// New creates a publisher and starts its delivery goroutine.
func New(sink Sink, opts ...Option) *Publisher {
	p := &Publisher{
		sink:         sink,
		events:       make(chan audit.Event, 4096),
		maxRetries:   3,
		retryBackoff: 100 * time.Millisecond,
		writeTimeout: 5 * time.Second,
		stop:         make(chan struct{}),
	}
	for _, opt := range opts {
		opt(p)
	}

	p.wg.Add(1)
	go p.run()
	return p
}

// Emit queues an event. It never blocks: a full buffer drops the event and
// returns an error.
func (p *Publisher) Emit(ctx context.Context, event audit.Event) error {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return dErrors.New(dErrors.CodeUnavailable, "audit publisher closed")
	}

	select {
	case p.events <- event:
		if p.metrics != nil {
			p.metrics.SetQueueDepth(len(p.events))
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	default:
		if p.metrics != nil {
			p.metrics.IncDropped()
		}
		if p.logger != nil {
			p.logger.WarnContext(ctx, "audit buffer full, event dropped",
				"action", string(event.Action),
			)
		}
		return dErrors.New(dErrors.CodeUnavailable, "audit buffer full")
	}
}

// Close stops accepting events, drains the buffer and waits for delivery.
func (p *Publisher) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	close(p.events)
	p.mu.Unlock()

	p.wg.Wait()
}

// Abort stops delivery without draining. Queued events are dropped.
func (p *Publisher) Abort() {
	p.stopOnce.Do(func() { close(p.stop) })
	p.Close()
}

func (p *Publisher) run() {
	defer p.wg.Done()
	for event := range p.events {
		select {
		case <-p.stop:
			continue
		default:
		}
		p.deliver(event)
		if p.metrics != nil {
			p.metrics.SetQueueDepth(len(p.events))
		}
	}
}

func (p *Publisher) deliver(event audit.Event) {
	var lastErr error
	for attempt := 0; attempt <= p.maxRetries; attempt++ {
		if attempt > 0 {
			if p.metrics != nil {
				p.metrics.IncRetries()
			}
			backoff := p.retryBackoff * time.Duration(1<<(attempt-1))
			select {
			case <-p.stop:
				return
			case <-time.After(backoff):
			}
		}

		ctx, cancel := context.WithTimeout(context.Background(), p.writeTimeout)
		lastErr = p.sink.Write(ctx, event)
		cancel()
		if lastErr == nil {
			if p.metrics != nil {
				p.metrics.IncPublished()
			}
			return
		}
	}

	if p.metrics != nil {
		p.metrics.IncFailed()
	}
	if p.logger != nil {
		p.logger.Warn("audit event dropped after retries",
			"action", string(event.Action),
			"error", lastErr,
		)
	}
}
