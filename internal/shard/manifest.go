package shard

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/afscgap-dse/flatindex/internal/record"
	apperrors "github.com/afscgap-dse/flatindex/pkg/errors"
	"github.com/afscgap-dse/flatindex/pkg/store"
)

// buildingMarker opens a manifest whose shard set is being rewritten.
const buildingMarker = "building"

// MarkBuilding replaces field's manifest with a marker that LoadManifest
// rejects until SaveManifest records the new shard set. Call it before the
// first shard of a build is written.
func MarkBuilding(ctx context.Context, s store.RecordStore, field, runID string) error {
	path := record.ManifestPath(field)
	if err := s.Put(ctx, path, []byte(buildingMarker+" "+runID+"\n")); err != nil {
		return fmt.Errorf("marking manifest %s: %w", path, err)
	}
	return nil
}

// SaveManifest records ids, in order, as the complete shard set of field.
// Call it only once every partition of the field has been written.
func SaveManifest(ctx context.Context, s store.RecordStore, field string, ids []int64) error {
	var buf bytes.Buffer
	for _, id := range ids {
		buf.WriteString(strconv.FormatInt(id, 10))
		buf.WriteByte('\n')
	}
	path := record.ManifestPath(field)
	if err := s.Put(ctx, path, buf.Bytes()); err != nil {
		return fmt.Errorf("writing manifest %s: %w", path, err)
	}
	return nil
}

// LoadManifest returns the shard set saved for field. A missing or unreadable
// manifest means the shard set cannot be trusted and yields
// ErrIncompleteShards.
func LoadManifest(ctx context.Context, s store.RecordStore, field string) ([]int64, error) {
	path := record.ManifestPath(field)
	data, err := s.Get(ctx, path)
	if errors.Is(err, store.ErrNotFound) {
		return nil, apperrors.New(apperrors.ErrIncompleteShards, field, "no manifest at "+path)
	}
	if err != nil {
		return nil, fmt.Errorf("reading manifest %s: %w", path, err)
	}
	var ids []int64
	sc := bufio.NewScanner(bytes.NewReader(data))
	for line := 1; sc.Scan(); line++ {
		text := strings.TrimSpace(sc.Text())
		if text == "" {
			continue
		}
		if line == 1 && strings.HasPrefix(text, buildingMarker) {
			return nil, apperrors.Newf(apperrors.ErrIncompleteShards, field,
				"shard set is still being written or its build failed (%s)", text)
		}
		id, err := strconv.ParseInt(text, 10, 64)
		if err != nil {
			return nil, apperrors.Newf(apperrors.ErrIncompleteShards, field, "manifest line %d: %q is not a batch id", line, text)
		}
		ids = append(ids, id)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("scanning manifest %s: %w", path, err)
	}
	return ids, nil
}
