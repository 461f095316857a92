package shard

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/afscgap-dse/flatindex/internal/record"
	"github.com/afscgap-dse/flatindex/pkg/codec"
	apperrors "github.com/afscgap-dse/flatindex/pkg/errors"
	"github.com/afscgap-dse/flatindex/pkg/metrics"
	"github.com/afscgap-dse/flatindex/pkg/store"
)

// Writer stores one partition of a field's index as a shard batch.
type Writer struct {
	store   store.RecordStore
	encoder *codec.Encoder
	issuer  IDIssuer
	metrics *metrics.Metrics
	logger  *slog.Logger
}

// NewWriter creates a Writer. m may be nil.
func NewWriter(s store.RecordStore, enc *codec.Encoder, issuer IDIssuer, m *metrics.Metrics) *Writer {
	return &Writer{
		store:   s,
		encoder: enc,
		issuer:  issuer,
		metrics: m,
		logger:  slog.Default().With("component", "shard-writer"),
	}
}

// Write stores partition at index_sharded/{field}_{batch} and returns the
// batch id. An empty partition stores nothing and returns written == false.
func (w *Writer) Write(ctx context.Context, field string, partition []record.IndexEntry) (batch int64, written bool, err error) {
	if len(partition) == 0 {
		if w.metrics != nil {
			w.metrics.EmptyPartitionTotal.WithLabelValues(field).Inc()
		}
		return 0, false, nil
	}
	batch, err = w.issuer.Next(ctx, field)
	if err != nil {
		return 0, false, err
	}
	data, err := codec.Encode(w.encoder, record.IndexSchema, partition)
	if err != nil {
		return 0, false, fmt.Errorf("encoding shard %s/%d: %w", field, batch, err)
	}
	path := record.ShardPath(field, batch)
	if err := w.store.Put(ctx, path, data); err != nil {
		return 0, false, fmt.Errorf("writing shard %s: %w", path, err)
	}
	if w.metrics != nil {
		w.metrics.ShardsWrittenTotal.WithLabelValues(field).Inc()
	}
	w.logger.Debug("shard written", "field", field, "batch", batch, "entries", len(partition))
	return batch, true, nil
}

// CheckUnique fails with ErrDuplicateBatch if any id repeats.
func CheckUnique(field string, ids []int64) error {
	seen := make(map[int64]struct{}, len(ids))
	for _, id := range ids {
		if _, dup := seen[id]; dup {
			return apperrors.New(apperrors.ErrDuplicateBatch, field, "batch id "+strconv.FormatInt(id, 10)+" issued twice")
		}
		seen[id] = struct{}{}
	}
	return nil
}
