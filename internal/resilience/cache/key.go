package cache

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/cespare/xxhash/v2"
)

// Kind names an operation whose results are cached.
type Kind string

const (
	KindRecommendation Kind = "recommendation"
	KindAnswer         Kind = "answer"
	KindDocument       Kind = "document"
)

// TTLs holds the time-to-live per Kind.
type TTLs struct {
	Recommendation time.Duration
	Answer         time.Duration
	Document       time.Duration
}

// DefaultTTLs returns 1h for recommendations, 30m for answers and 24h for document analyses.
func DefaultTTLs() TTLs {
	return TTLs{
		Recommendation: time.Hour,
		Answer:         30 * time.Minute,
		Document:       24 * time.Hour,
	}
}

// For returns the TTL for kind, or zero for an unknown kind.
func (t TTLs) For(kind Kind) time.Duration {
	switch kind {
	case KindRecommendation:
		return t.Recommendation
	case KindAnswer:
		return t.Answer
	case KindDocument:
		return t.Document
	}
	return 0
}

// Key derives a deterministic cache key from kind and fields.
//
// fields should hold only the request attributes that change the result; callers
// pass a dedicated struct so metadata such as request ids never reaches the key.
// Struct fields marshal in declaration order and map keys sorted, which makes the
// encoding canonical.
func Key(kind Kind, fields any) (string, error) {
	b, err := json.Marshal(fields)
	if err != nil {
		return "", fmt.Errorf("cache key for %s: %w", kind, err)
	}
	return string(kind) + ":" + strconv.FormatUint(xxhash.Sum64(b), 16), nil
}
