// Package shard writes index partitions as batch-numbered shards, records
// which batch ids make up a field's complete shard set, and combines that set
// into the canonical index for the field.
package shard

import (
	"context"
	"fmt"
	"math/rand/v2"
	"strconv"
	"sync"
	"time"

	"github.com/afscgap-dse/flatindex/pkg/config"
)

// IDIssuer hands out shard batch ids for a field. Ids issued for one field
// during one run must be pairwise distinct for Sequence and Redis issuers.
type IDIssuer interface {
	Next(ctx context.Context, field string) (int64, error)
}

// SequenceIssuer issues 0, 1, 2, ... per field within one process.
type SequenceIssuer struct {
	mu   sync.Mutex
	next map[string]int64
}

func NewSequenceIssuer() *SequenceIssuer {
	return &SequenceIssuer{next: make(map[string]int64)}
}

func (s *SequenceIssuer) Next(_ context.Context, field string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.next[field]
	s.next[field] = id + 1
	return id, nil
}

// Counter is the subset of the Redis client the RedisIssuer needs.
type Counter interface {
	Key(parts ...string) string
	Incr(ctx context.Context, key string) (int64, error)
	Expire(ctx context.Context, key string, ttl time.Duration) error
}

// RedisIssuer draws ids from a Redis counter scoped to one run and field, so
// writers in several processes never collide.
type RedisIssuer struct {
	counter Counter
	runID   string
	ttl     time.Duration
}

func NewRedisIssuer(counter Counter, runID string) *RedisIssuer {
	return &RedisIssuer{counter: counter, runID: runID, ttl: 7 * 24 * time.Hour}
}

func (r *RedisIssuer) Next(ctx context.Context, field string) (int64, error) {
	key := r.counter.Key("batch", r.runID, field)
	n, err := r.counter.Incr(ctx, key)
	if err != nil {
		return 0, fmt.Errorf("issuing batch id for %s: %w", field, err)
	}
	if n == 1 {
		if err := r.counter.Expire(ctx, key, r.ttl); err != nil {
			return 0, fmt.Errorf("setting ttl on %s: %w", key, err)
		}
	}
	return n - 1, nil
}

// RandomIssuer draws ids uniformly from [0, upper]. Collisions are possible
// and are caught by CheckUnique before combining.
type RandomIssuer struct {
	mu    sync.Mutex
	rng   *rand.Rand
	upper int64
}

// NewRandomIssuer seeds from the runtime when src is nil.
func NewRandomIssuer(upper int64, src rand.Source) *RandomIssuer {
	if src == nil {
		src = rand.NewPCG(rand.Uint64(), rand.Uint64())
	}
	return &RandomIssuer{rng: rand.New(src), upper: upper}
}

func (r *RandomIssuer) Next(context.Context, string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rng.Int64N(r.upper + 1), nil
}

// NewIssuer builds the issuer selected by cfg.Mode. counter is only used in
// redis mode and may be nil otherwise.
func NewIssuer(cfg config.BatchIDsConfig, counter Counter, runID string) (IDIssuer, error) {
	switch cfg.Mode {
	case "", "sequence":
		return NewSequenceIssuer(), nil
	case "redis":
		if counter == nil {
			return nil, fmt.Errorf("batch id mode redis requires a redis client")
		}
		if runID == "" {
			runID = strconv.FormatInt(time.Now().Unix(), 10)
		}
		return NewRedisIssuer(counter, runID), nil
	case "random":
		return NewRandomIssuer(cfg.RandomMax, nil), nil
	default:
		return nil, fmt.Errorf("unknown batch id mode %q", cfg.Mode)
	}
}
