// Package cleanup periodically evicts expired entries from in-process state
// stores. Redis expires keys on its own; the memory store only drops them
// lazily on access, so idle keys would otherwise hold capacity until evicted.
package cleanup

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"
)

// Sweeper removes expired entries and reports how many it dropped.
type Sweeper interface {
	Sweep() int
}

// Result maps each registered store name to the entries removed in one run.
type Result map[string]int

// Total sums removals across every store.
func (r Result) Total() int {
	n := 0
	for _, v := range r {
		n += v
	}
	return n
}

// Service sweeps a fixed set of named stores on an interval.
type Service struct {
	stores   map[string]Sweeper
	interval time.Duration
	logger   *slog.Logger
}

// Option configures Service.
type Option func(*Service)

// WithInterval overrides the sweep interval when greater than zero.
func WithInterval(interval time.Duration) Option {
	return func(s *Service) {
		if interval > 0 {
			s.interval = interval
		}
	}
}

// WithLogger overrides the logger used for sweep summaries.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// New constructs a Service over the named stores. Nil stores are skipped so
// callers can pass optional stores without branching.
func New(stores map[string]Sweeper, opts ...Option) (*Service, error) {
	svc := &Service{
		stores:   make(map[string]Sweeper, len(stores)),
		interval: time.Minute,
		logger:   slog.Default(),
	}
	for name, st := range stores {
		if st == nil {
			continue
		}
		if name == "" {
			return nil, fmt.Errorf("store name is required")
		}
		svc.stores[name] = st
	}
	if len(svc.stores) == 0 {
		return nil, fmt.Errorf("at least one store is required")
	}
	for _, opt := range opts {
		if opt != nil {
			opt(svc)
		}
	}
	return svc, nil
}

// Start sweeps periodically until ctx is cancelled.
func (s *Service) Start(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			res := s.RunOnce()
			if total := res.Total(); total > 0 {
				s.logger.DebugContext(ctx, "state store sweep", "removed", total)
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// RunOnce sweeps every store once, in name order.
func (s *Service) RunOnce() Result {
	names := make([]string, 0, len(s.stores))
	for name := range s.stores {
		names = append(names, name)
	}
	sort.Strings(names)

	res := make(Result, len(names))
	for _, name := range names {
		res[name] = s.stores[name].Sweep()
	}
	return res
}
