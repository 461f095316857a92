// Package catalog enumerates haul Keys from store paths and writes the
// global key listing at index/main.
package catalog

import (
	"context"
	"fmt"
	"log/slog"
	"slices"

	"github.com/afscgap-dse/flatindex/internal/record"
	"github.com/afscgap-dse/flatindex/pkg/codec"
	"github.com/afscgap-dse/flatindex/pkg/store"
)

// ListKeys parses every batch path under prefix into a Key. Objects that are
// not record batches are skipped; a batch whose name is not a key path is an
// error. Keys are returned sorted and without duplicates.
func ListKeys(ctx context.Context, s store.RecordStore, prefix string) ([]record.Key, error) {
	paths, err := s.List(ctx, prefix)
	if err != nil {
		return nil, fmt.Errorf("listing %s: %w", prefix, err)
	}
	keys := make([]record.Key, 0, len(paths))
	for _, p := range paths {
		if !record.IsBatch(p) {
			continue
		}
		k, err := record.ParseKeyPath(p)
		if err != nil {
			return nil, err
		}
		keys = append(keys, k)
	}
	slices.SortFunc(keys, record.CompareKeys)
	return slices.Compact(keys), nil
}

// WriteMainIndex writes every joined haul Key to index/main and returns how
// many were written.
func WriteMainIndex(ctx context.Context, s store.RecordStore, enc *codec.Encoder) (int, error) {
	keys, err := ListKeys(ctx, s, record.JoinedPrefix)
	if err != nil {
		return 0, err
	}
	data, err := codec.Encode(enc, record.KeySchema, keys)
	if err != nil {
		return 0, fmt.Errorf("encoding main index: %w", err)
	}
	if err := s.Put(ctx, record.MainIndexPath, data); err != nil {
		return 0, fmt.Errorf("writing %s: %w", record.MainIndexPath, err)
	}
	slog.Default().Info("main index written", "component", "catalog", "keys", len(keys))
	return len(keys), nil
}
