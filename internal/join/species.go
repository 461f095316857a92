package join

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/afscgap-dse/flatindex/internal/record"
	"github.com/afscgap-dse/flatindex/pkg/codec"
	"github.com/afscgap-dse/flatindex/pkg/store"
)

// SpeciesTable is the species reference set. It is never mutated after
// construction and is shared by every join worker.
type SpeciesTable struct {
	byCode map[int64]record.SpeciesRecord
	codes  []int64
}

// NewSpeciesTable indexes records by species code. A later record replaces
// an earlier one with the same code; the number replaced is returned.
func NewSpeciesTable(records []record.SpeciesRecord) (*SpeciesTable, int) {
	t := &SpeciesTable{byCode: make(map[int64]record.SpeciesRecord, len(records))}
	replaced := 0
	for _, r := range records {
		if _, dup := t.byCode[r.SpeciesCode]; dup {
			replaced++
		}
		t.byCode[r.SpeciesCode] = r
	}
	t.codes = make([]int64, 0, len(t.byCode))
	for code := range t.byCode {
		t.codes = append(t.codes, code)
	}
	slices.Sort(t.codes)
	return t, replaced
}

func (t *SpeciesTable) Lookup(code int64) (record.SpeciesRecord, bool) {
	r, ok := t.byCode[code]
	return r, ok
}

// Codes returns every species code in ascending order. Callers must not
// modify the result.
func (t *SpeciesTable) Codes() []int64 {
	return t.codes
}

func (t *SpeciesTable) Len() int {
	return len(t.codes)
}

// SpeciesLoader reads every batch under species/ once and caches the table.
// Concurrent callers share a single load.
type SpeciesLoader struct {
	store  store.RecordStore
	group  singleflight.Group
	mu     sync.Mutex
	table  *SpeciesTable
	logger *slog.Logger
}

func NewSpeciesLoader(s store.RecordStore) *SpeciesLoader {
	return &SpeciesLoader{
		store:  s,
		logger: slog.Default().With("component", "species-loader"),
	}
}

func (l *SpeciesLoader) Load(ctx context.Context) (*SpeciesTable, error) {
	l.mu.Lock()
	cached := l.table
	l.mu.Unlock()
	if cached != nil {
		return cached, nil
	}

	v, err, _ := l.group.Do("species", func() (any, error) {
		table, err := l.load(ctx)
		if err != nil {
			return nil, err
		}
		l.mu.Lock()
		l.table = table
		l.mu.Unlock()
		return table, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*SpeciesTable), nil
}

func (l *SpeciesLoader) load(ctx context.Context) (*SpeciesTable, error) {
	paths, err := l.store.List(ctx, record.SpeciesPrefix)
	if err != nil {
		return nil, fmt.Errorf("listing species: %w", err)
	}
	var all []record.SpeciesRecord
	for _, p := range paths {
		if !record.IsBatch(p) {
			continue
		}
		data, err := l.store.Get(ctx, p)
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", p, err)
		}
		rows, err := codec.Decode[record.SpeciesRecord](data, record.SpeciesSchema)
		if err != nil {
			return nil, fmt.Errorf("decoding %s: %w", p, err)
		}
		all = append(all, rows...)
	}
	table, replaced := NewSpeciesTable(all)
	if replaced > 0 {
		l.logger.Warn("duplicate species codes in reference data", "replaced", replaced)
	}
	l.logger.Info("species reference loaded", "files", len(paths), "species", table.Len())
	return table, nil
}
