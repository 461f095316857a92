// Package join merges haul, catch and species records into flat Observation
// batches, one per haul, and fills in zero-catch rows for species that were
// looked for but not caught.
package join

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/afscgap-dse/flatindex/internal/record"
	"github.com/afscgap-dse/flatindex/pkg/codec"
	apperrors "github.com/afscgap-dse/flatindex/pkg/errors"
	"github.com/afscgap-dse/flatindex/pkg/logger"
	"github.com/afscgap-dse/flatindex/pkg/metrics"
	"github.com/afscgap-dse/flatindex/pkg/store"
)

// Engine joins one haul at a time. It holds no mutable state and is safe for
// concurrent use.
type Engine struct {
	store   store.RecordStore
	encoder *codec.Encoder
	species *SpeciesTable
	metrics *metrics.Metrics
	logger  *slog.Logger
}

// NewEngine creates an Engine. m may be nil.
func NewEngine(s store.RecordStore, enc *codec.Encoder, species *SpeciesTable, m *metrics.Metrics) *Engine {
	return &Engine{
		store:   s,
		encoder: enc,
		species: species,
		metrics: m,
		logger:  slog.Default().With("component", "join"),
	}
}

// Build is the pure join. catches == nil means the haul has no catch file;
// every Observation is then a copy of the haul marked incomplete and no
// zero-fill is produced, since nothing is known about what was looked for.
// Catch rows whose species code has no reference record are kept but marked
// incomplete with species fields left null.
func Build(haul record.HaulRecord, catches []record.CatchRecord, species *SpeciesTable) []record.Observation {
	if catches == nil {
		return []record.Observation{{HaulRecord: haul, Complete: ptr(false)}}
	}

	out := make([]record.Observation, 0, len(catches)+species.Len())
	observed := make(map[int64]struct{}, len(catches))
	for _, c := range catches {
		obs := record.Observation{
			HaulRecord:    haul,
			CatchMeasures: c.CatchMeasures,
			Complete:      ptr(false),
		}
		if c.SpeciesCode != nil {
			observed[*c.SpeciesCode] = struct{}{}
			if ref, ok := species.Lookup(*c.SpeciesCode); ok {
				obs.SpeciesDescription = ref.SpeciesDescription
				obs.Complete = ptr(true)
			}
		}
		out = append(out, obs)
	}
	return append(out, ZeroFill(haul, species, observed)...)
}

// Join reads the haul and its catch, builds the Observations, writes them to
// joined/{key} and returns the counts. A missing or duplicated haul record is
// a precondition failure; a missing catch file is not an error.
func (e *Engine) Join(ctx context.Context, key record.Key) (Summary, error) {
	log := logger.FromContext(ctx).With("component", "join", "haul", key.String())

	haul, err := e.readHaul(ctx, key)
	if err != nil {
		e.count("failed")
		return Summary{}, err
	}

	catches, err := e.readCatch(ctx, key)
	if err != nil {
		e.count("failed")
		return Summary{}, err
	}
	if catches == nil {
		log.Debug("no catch file, haul marked incomplete")
	}

	observations := Build(haul, catches, e.species)
	data, err := codec.Encode(e.encoder, record.ObservationSchema, observations)
	if err != nil {
		e.count("failed")
		return Summary{}, fmt.Errorf("encoding observations for %s: %w", key, err)
	}
	path := record.JoinedPath(key)
	if err := e.store.Put(ctx, path, data); err != nil {
		e.count("failed")
		return Summary{}, fmt.Errorf("writing %s: %w", path, err)
	}

	summary := Summarize(key, observations)
	e.count("ok")
	if e.metrics != nil {
		e.metrics.ObservationsTotal.WithLabelValues("complete").Add(float64(summary.Complete))
		e.metrics.ObservationsTotal.WithLabelValues("incomplete").Add(float64(summary.Incomplete))
		e.metrics.ObservationsTotal.WithLabelValues("zero").Add(float64(summary.Zero))
	}
	log.Debug("haul joined",
		"observations", len(observations),
		"complete", summary.Complete,
		"incomplete", summary.Incomplete,
		"zero", summary.Zero,
	)
	return summary, nil
}

func (e *Engine) count(status string) {
	if e.metrics != nil {
		e.metrics.HaulsJoinedTotal.WithLabelValues(status).Inc()
	}
}

func (e *Engine) readHaul(ctx context.Context, key record.Key) (record.HaulRecord, error) {
	path := record.HaulPath(key)
	data, err := e.store.Get(ctx, path)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return record.HaulRecord{}, apperrors.New(apperrors.ErrPrecondition, key.String(), "no haul record")
		}
		return record.HaulRecord{}, fmt.Errorf("reading %s: %w", path, err)
	}
	hauls, err := codec.Decode[record.HaulRecord](data, record.HaulSchema)
	if err != nil {
		return record.HaulRecord{}, fmt.Errorf("decoding %s: %w", path, err)
	}
	if len(hauls) != 1 {
		return record.HaulRecord{}, apperrors.Newf(apperrors.ErrPrecondition, key.String(),
			"expected exactly one haul record, found %d", len(hauls))
	}
	return hauls[0], nil
}

// readCatch returns nil when the catch file does not exist and a non-nil,
// possibly empty slice when it does.
func (e *Engine) readCatch(ctx context.Context, key record.Key) ([]record.CatchRecord, error) {
	path := record.CatchPath(key.Haul)
	data, err := e.store.Get(ctx, path)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	catches, err := codec.Decode[record.CatchRecord](data, record.CatchSchema)
	if err != nil {
		return nil, fmt.Errorf("decoding %s: %w", path, err)
	}
	if catches == nil {
		catches = []record.CatchRecord{}
	}
	return catches, nil
}
