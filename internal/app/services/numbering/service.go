// Package numbering assigns human-facing order numbers, reset at local-day
// boundaries.
package numbering

import (
	"context"
	"sync"
	"time"

	"github.com/restamate/pos-server/internal/app/storage"
	"github.com/restamate/pos-server/internal/logging"
)

const dayFormat = "2006-01-02"

// Service issues daily-scoped order numbers backed by a durable counter. When
// the counter store is unavailable it degrades to an in-memory counter rather
// than failing the order: availability wins over strict uniqueness, and the
// degradation is logged.
type Service struct {
	store storage.CounterStore
	log   *logging.Logger
	now   func() time.Time

	mu          sync.Mutex
	fallbackDay string
	fallback    int
}

// Option customises the service.
type Option func(*Service)

// WithClock overrides the wall clock, for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// New constructs a numbering service.
func New(store storage.CounterStore, log *logging.Logger, opts ...Option) *Service {
	if log == nil {
		log = logging.NewDefault("numbering")
	}
	s := &Service{store: store, log: log, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Next returns the next order number for the current local day. Numbers are
// contiguous for sequential calls within one process; concurrent processes
// sharing the store rely on the store's atomic increment-or-reset.
func (s *Service) Next(ctx context.Context) int {
	day := s.now().Format(dayFormat)

	if s.store != nil {
		n, err := s.store.NextOrderNumber(ctx, day)
		if err == nil {
			return n
		}
		s.log.WithContext(ctx).WithError(err).Warn("counter store unavailable, falling back to in-memory numbering")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fallbackDay != day {
		s.fallbackDay = day
		s.fallback = 1
	} else {
		s.fallback++
	}
	return s.fallback
}
