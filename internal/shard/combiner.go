package shard

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/afscgap-dse/flatindex/internal/executor"
	"github.com/afscgap-dse/flatindex/internal/index"
	"github.com/afscgap-dse/flatindex/internal/record"
	"github.com/afscgap-dse/flatindex/pkg/codec"
	apperrors "github.com/afscgap-dse/flatindex/pkg/errors"
	"github.com/afscgap-dse/flatindex/pkg/metrics"
	"github.com/afscgap-dse/flatindex/pkg/store"
)

// Combiner concatenates a field's shards into index/{field}.
type Combiner struct {
	store   store.RecordStore
	encoder *codec.Encoder
	exec    *executor.Executor
	metrics *metrics.Metrics
	logger  *slog.Logger
}

// NewCombiner creates a Combiner. m may be nil.
func NewCombiner(s store.RecordStore, enc *codec.Encoder, exec *executor.Executor, m *metrics.Metrics) *Combiner {
	return &Combiner{
		store:   s,
		encoder: enc,
		exec:    exec,
		metrics: m,
		logger:  slog.Default().With("component", "shard-combiner"),
	}
}

// Combine reads the shards ids of field, concatenates their entries in ids
// order, re-normalizes every value and writes the canonical index. Entries
// whose values only coincide after re-normalization stay separate. It
// returns the number of entries written.
func (c *Combiner) Combine(ctx context.Context, field string, ids []int64) (int, error) {
	policy, err := index.PolicyFor(field)
	if err != nil {
		return 0, err
	}
	if err := CheckUnique(field, ids); err != nil {
		return 0, err
	}
	start := time.Now()

	shards, err := executor.Map(ctx, c.exec, ids, func(ctx context.Context, id int64) ([]record.IndexEntry, error) {
		return c.read(ctx, field, id)
	})
	if err != nil {
		return 0, err
	}
	var entries []record.IndexEntry
	for _, s := range shards {
		entries = append(entries, s...)
	}
	for i := range entries {
		entries[i].Value = index.Normalize(policy, entries[i].Value)
	}

	data, err := codec.Encode(c.encoder, record.IndexSchema, entries)
	if err != nil {
		return 0, fmt.Errorf("encoding %s index: %w", field, err)
	}
	path := record.IndexPath(field)
	if err := c.store.Put(ctx, path, data); err != nil {
		return 0, fmt.Errorf("writing %s: %w", path, err)
	}
	if c.metrics != nil {
		c.metrics.IndexEntriesTotal.WithLabelValues(field, "combine").Add(float64(len(entries)))
	}
	c.logger.Info("shards combined",
		"field", field,
		"shards", len(ids),
		"entries", len(entries),
		"duration", time.Since(start),
	)
	return len(entries), nil
}

func (c *Combiner) read(ctx context.Context, field string, id int64) ([]record.IndexEntry, error) {
	path := record.ShardPath(field, id)
	data, err := c.store.Get(ctx, path)
	if errors.Is(err, store.ErrNotFound) {
		return nil, apperrors.New(apperrors.ErrIncompleteShards, field, "missing shard "+path)
	}
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	entries, err := codec.Decode[record.IndexEntry](data, record.IndexSchema)
	if err != nil {
		return nil, fmt.Errorf("decoding %s: %w", path, err)
	}
	return entries, nil
}
