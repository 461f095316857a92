package index

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/afscgap-dse/flatindex/internal/executor"
	"github.com/afscgap-dse/flatindex/internal/record"
	"github.com/afscgap-dse/flatindex/pkg/codec"
	"github.com/afscgap-dse/flatindex/pkg/metrics"
	"github.com/afscgap-dse/flatindex/pkg/store"
)

// Builder reads joined Observation batches and builds one field's index.
type Builder struct {
	store      store.RecordStore
	exec       *executor.Executor
	partitions int
	metrics    *metrics.Metrics
	logger     *slog.Logger
}

// NewBuilder creates a Builder folding over the given number of partitions.
// m may be nil.
func NewBuilder(s store.RecordStore, exec *executor.Executor, partitions int, m *metrics.Metrics) *Builder {
	return &Builder{
		store:      s,
		exec:       exec,
		partitions: partitions,
		metrics:    m,
		logger:     slog.Default().With("component", "index-builder"),
	}
}

// Build returns the index entries of field over the joined batches of keys.
// Grouped fields yield one entry per normalized value, sorted by value, with
// keys ascending. Flat fields yield one entry per contributing Observation in
// key order.
func (b *Builder) Build(ctx context.Context, field string, keys []record.Key) ([]record.IndexEntry, error) {
	policy, err := PolicyFor(field)
	if err != nil {
		return nil, err
	}
	start := time.Now()
	dict := NewKeyDictionary(keys)

	perHaul, err := executor.Map(ctx, b.exec, dict.Keys(), func(ctx context.Context, k record.Key) ([]Entry, error) {
		return b.project(ctx, policy, dict, k)
	})
	if err != nil {
		return nil, fmt.Errorf("building %s index: %w", field, err)
	}
	var projected []Entry
	for _, entries := range perHaul {
		projected = append(projected, entries...)
	}

	var out []record.IndexEntry
	if policy.Flat {
		out = make([]record.IndexEntry, len(projected))
		for i, e := range projected {
			out[i] = Resolve(e, dict)
		}
	} else {
		groups, err := executor.GroupAndCombine(ctx, b.exec, projected, b.partitions,
			func(e Entry) record.Value { return e.Value },
			func(e Entry) Entry { return e },
			Combine,
		)
		if err != nil {
			return nil, fmt.Errorf("grouping %s index: %w", field, err)
		}
		values := make([]record.Value, 0, len(groups))
		for v := range groups {
			values = append(values, v)
		}
		slices.SortFunc(values, record.Compare)
		out = make([]record.IndexEntry, len(values))
		for i, v := range values {
			out[i] = Resolve(groups[v], dict)
		}
	}

	if b.metrics != nil {
		b.metrics.IndexEntriesTotal.WithLabelValues(field, "build").Add(float64(len(out)))
	}
	b.logger.Info("index built",
		"field", field,
		"flat", policy.Flat,
		"hauls", dict.Len(),
		"observations", len(projected),
		"entries", len(out),
		"duration", time.Since(start),
	)
	return out, nil
}

func (b *Builder) project(ctx context.Context, policy Policy, dict *KeyDictionary, k record.Key) ([]Entry, error) {
	path := record.JoinedPath(k)
	data, err := b.store.Get(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	observations, err := codec.Decode[record.Observation](data, record.ObservationSchema)
	if err != nil {
		return nil, fmt.Errorf("decoding %s: %w", path, err)
	}
	id, _ := dict.ID(k)
	entries := make([]Entry, 0, len(observations))
	for i := range observations {
		e, ok, err := Project(policy, id, &observations[i])
		if err != nil {
			return nil, err
		}
		if ok {
			entries = append(entries, e)
		}
	}
	return entries, nil
}
