package cache

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestStore(t *testing.T, clock *fakeClock) *Store {
	t.Helper()
	s, err := New(Config{MaxEntries: 100}, WithClock(clock.Now))
	require.NoError(t, err)
	t.Cleanup(s.Close)
	return s
}

func TestStore_RoundTrip(t *testing.T) {
	clock := newFakeClock()
	s := newTestStore(t, clock)

	s.Set("k", "v", time.Minute)

	got, ok := s.Get("k")
	require.True(t, ok)
	assert.Equal(t, "v", got)
}

func TestStore_ExpiresAfterTTL(t *testing.T) {
	clock := newFakeClock()
	s := newTestStore(t, clock)

	s.Set("k", 42, 30*time.Minute)

	clock.Advance(29 * time.Minute)
	got, ok := s.Get("k")
	require.True(t, ok, "entry should still be visible before the TTL elapses")
	assert.Equal(t, 42, got)

	clock.Advance(time.Minute)
	_, ok = s.Get("k")
	assert.False(t, ok, "entry should be invisible once the TTL has elapsed")
}

func TestStore_Miss(t *testing.T) {
	s := newTestStore(t, newFakeClock())

	got, ok := s.Get("absent")
	assert.False(t, ok)
	assert.Nil(t, got)
}

func TestStore_NonPositiveTTLIgnored(t *testing.T) {
	s := newTestStore(t, newFakeClock())

	s.Set("zero", "v", 0)
	s.Set("negative", "v", -time.Second)

	_, ok := s.Get("zero")
	assert.False(t, ok)
	_, ok = s.Get("negative")
	assert.False(t, ok)
}

func TestStore_OverwriteResetsExpiry(t *testing.T) {
	clock := newFakeClock()
	s := newTestStore(t, clock)

	s.Set("k", "old", time.Minute)
	clock.Advance(50 * time.Second)
	s.Set("k", "new", time.Minute)
	clock.Advance(50 * time.Second)

	got, ok := s.Get("k")
	require.True(t, ok)
	assert.Equal(t, "new", got)
}

func TestStore_DeleteAndFlushAll(t *testing.T) {
	s := newTestStore(t, newFakeClock())

	s.Set("a", 1, time.Hour)
	s.Set("b", 2, time.Hour)
	s.Set("c", 3, time.Hour)

	s.Delete("a")
	_, ok := s.Get("a")
	assert.False(t, ok)
	_, ok = s.Get("b")
	assert.True(t, ok)

	s.FlushAll()
	_, ok = s.Get("b")
	assert.False(t, ok)
	_, ok = s.Get("c")
	assert.False(t, ok)
}

func TestNew_DefaultMaxEntries(t *testing.T) {
	s, err := New(Config{})
	require.NoError(t, err)
	defer s.Close()

	s.Set("k", "v", time.Hour)
	got, ok := s.Get("k")
	require.True(t, ok)
	assert.Equal(t, "v", got)
}

func TestKey(t *testing.T) {
	type docFields struct {
		DocumentID int64  `json:"document_id"`
		Body       string `json:"body"`
	}

	t.Run("same relevant fields collide", func(t *testing.T) {
		k1, err := Key(KindDocument, docFields{DocumentID: 1, Body: "text"})
		require.NoError(t, err)
		k2, err := Key(KindDocument, docFields{DocumentID: 1, Body: "text"})
		require.NoError(t, err)
		assert.Equal(t, k1, k2)
	})

	t.Run("different fields differ", func(t *testing.T) {
		k1, _ := Key(KindDocument, docFields{DocumentID: 1, Body: "text"})
		k2, _ := Key(KindDocument, docFields{DocumentID: 2, Body: "text"})
		assert.NotEqual(t, k1, k2)
	})

	t.Run("kind is part of the key", func(t *testing.T) {
		k1, _ := Key(KindDocument, docFields{DocumentID: 1})
		k2, _ := Key(KindAnswer, docFields{DocumentID: 1})
		assert.NotEqual(t, k1, k2)
		assert.Contains(t, k1, "document:")
	})

	t.Run("map ordering does not matter", func(t *testing.T) {
		k1, _ := Key(KindAnswer, map[string]string{"a": "1", "b": "2"})
		k2, _ := Key(KindAnswer, map[string]string{"b": "2", "a": "1"})
		assert.Equal(t, k1, k2)
	})

	t.Run("unmarshalable fields", func(t *testing.T) {
		_, err := Key(KindAnswer, make(chan int))
		assert.Error(t, err)
	})
}

func TestTTLs_For(t *testing.T) {
	ttls := DefaultTTLs()

	tests := []struct {
		kind Kind
		want time.Duration
	}{
		{KindRecommendation, time.Hour},
		{KindAnswer, 30 * time.Minute},
		{KindDocument, 24 * time.Hour},
		{Kind("unknown"), 0},
	}
	for _, tt := range tests {
		t.Run(string(tt.kind), func(t *testing.T) {
			assert.Equal(t, tt.want, ttls.For(tt.kind))
		})
	}
}
