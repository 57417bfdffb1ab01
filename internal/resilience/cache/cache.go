// Package cache memoizes provider-derived results for a bounded time.
//
// Entries live in an otter cache capped at Config.MaxEntries. Expiry is decided
// against the store's clock, so an entry is invisible to Get the moment its TTL
// has elapsed even if otter has not reclaimed it yet.
package cache

import (
	"fmt"
	"time"

	"github.com/maypok86/otter/v2"
)

// DefaultMaxEntries caps the store when Config.MaxEntries is not set.
const DefaultMaxEntries = 10000

// Entry is a single cached value.
type Entry struct {
	Key       string
	Value     any
	ExpiresAt time.Time
}

// Config configures a Store.
type Config struct {
	MaxEntries int
}

// Clock returns the current time.
type Clock func() time.Time

// Option configures a Store.
type Option func(*Store)

// WithClock overrides the clock used for expiry decisions.
func WithClock(clock Clock) Option {
	return func(s *Store) {
		if clock != nil {
			s.now = clock
		}
	}
}

// Store is a TTL key/value cache. It is safe for concurrent use.
type Store struct {
	entries *otter.Cache[string, Entry]
	now     Clock
	metrics *cacheMetrics
}

// New builds a Store.
func New(cfg Config, opts ...Option) (*Store, error) {
	if cfg.MaxEntries <= 0 {
		cfg.MaxEntries = DefaultMaxEntries
	}

	entries, err := otter.New(&otter.Options[string, Entry]{
		MaximumSize: cfg.MaxEntries,
		// Set overrides this per entry; the default only applies to entries written without a TTL.
		ExpiryCalculator: otter.ExpiryWriting[string, Entry](24 * time.Hour),
	})
	if err != nil {
		return nil, fmt.Errorf("build cache: %w", err)
	}

	s := &Store{
		entries: entries,
		now:     time.Now,
		metrics: getCacheMetrics(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Get returns the value stored under key if it has not expired.
func (s *Store) Get(key string) (any, bool) {
	e, ok := s.entries.GetIfPresent(key)
	if !ok {
		s.metrics.miss()
		return nil, false
	}
	if !s.now().Before(e.ExpiresAt) {
		s.entries.Invalidate(key)
		s.metrics.miss()
		return nil, false
	}
	s.metrics.hit()
	return e.Value, true
}

// Set stores value under key for ttl. A non-positive ttl is ignored.
func (s *Store) Set(key string, value any, ttl time.Duration) {
	if ttl <= 0 {
		return
	}
	s.entries.Set(key, Entry{Key: key, Value: value, ExpiresAt: s.now().Add(ttl)})
	s.entries.SetExpiresAfter(key, ttl)
}

// Delete removes key.
func (s *Store) Delete(key string) {
	s.entries.Invalidate(key)
}

// FlushAll removes every entry.
func (s *Store) FlushAll() {
	s.entries.InvalidateAll()
}

// Len returns an estimate of the number of stored entries, expired ones included.
func (s *Store) Len() int {
	return s.entries.EstimatedSize()
}

// Close stops the cache's background goroutines.
func (s *Store) Close() {
	s.entries.StopAllGoroutines()
}
