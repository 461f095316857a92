// Package pipeline runs the batch stages in order: join every haul, build
// and shard per-field indices, combine shards into canonical indices, and
// write the main key listing. Each stage completes fully before the next
// one reads its output.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/afscgap-dse/flatindex/internal/catalog"
	"github.com/afscgap-dse/flatindex/internal/events"
	"github.com/afscgap-dse/flatindex/internal/executor"
	"github.com/afscgap-dse/flatindex/internal/index"
	"github.com/afscgap-dse/flatindex/internal/join"
	"github.com/afscgap-dse/flatindex/internal/record"
	"github.com/afscgap-dse/flatindex/internal/shard"
	"github.com/afscgap-dse/flatindex/internal/summary"
	"github.com/afscgap-dse/flatindex/pkg/codec"
	"github.com/afscgap-dse/flatindex/pkg/logger"
	"github.com/afscgap-dse/flatindex/pkg/metrics"
	"github.com/afscgap-dse/flatindex/pkg/store"
	"github.com/afscgap-dse/flatindex/pkg/tracing"
)

// Options wires a Runner. Store and Encoder are required; nil optional
// fields fall back to in-process defaults.
type Options struct {
	Store      store.RecordStore
	Encoder    *codec.Encoder
	Executor   *executor.Executor
	Partitions int
	Issuer     shard.IDIssuer
	Recorder   summary.Recorder
	Events     events.Publisher
	Metrics    *metrics.Metrics
}

// Runner executes pipeline stages against one store.
type Runner struct {
	store      store.RecordStore
	encoder    *codec.Encoder
	exec       *executor.Executor
	partitions int
	issuer     shard.IDIssuer
	species    *join.SpeciesLoader
	recorder   summary.Recorder
	events     events.Publisher
	metrics    *metrics.Metrics
}

func New(opts Options) *Runner {
	r := &Runner{
		store:      opts.Store,
		encoder:    opts.Encoder,
		exec:       opts.Executor,
		partitions: opts.Partitions,
		issuer:     opts.Issuer,
		species:    join.NewSpeciesLoader(opts.Store),
		recorder:   opts.Recorder,
		events:     opts.Events,
		metrics:    opts.Metrics,
	}
	if r.exec == nil {
		r.exec = executor.New(0)
	}
	if r.partitions <= 0 {
		r.partitions = 20
	}
	if r.issuer == nil {
		r.issuer = shard.NewSequenceIssuer()
	}
	if r.recorder == nil {
		r.recorder = summary.Nop{}
	}
	if r.events == nil {
		r.events = events.Nop{}
	}
	return r
}

// RenderResult is the outcome of the join stage.
type RenderResult struct {
	Summaries []join.Summary
	Failed    []string
	Total     summary.Total
}

// RenderFlat joins every haul under haul/ and writes the per-haul summary
// CSV to report when it is non-nil. A failing haul does not stop the others;
// if any failed, the returned error names every failed haul and wraps each
// cause.
func (r *Runner) RenderFlat(ctx context.Context, report io.Writer) (RenderResult, error) {
	defer r.observe(events.StageRender, time.Now())
	ctx, span := tracing.Start(ctx, events.StageRender)
	defer span.End()
	log := logger.FromContext(ctx).With("component", "pipeline", "stage", events.StageRender)

	keys, err := catalog.ListKeys(ctx, r.store, record.HaulPrefix)
	if err != nil {
		return RenderResult{}, err
	}
	species, err := r.species.Load(ctx)
	if err != nil {
		return RenderResult{}, fmt.Errorf("loading species: %w", err)
	}
	log.Info("joining hauls", "hauls", len(keys), "species", species.Len())

	engine := join.NewEngine(r.store, r.encoder, species, r.metrics)
	results := executor.MapAll(ctx, r.exec, keys, engine.Join)

	var res RenderResult
	var errs []error
	for _, out := range results {
		if out.Err != nil {
			res.Failed = append(res.Failed, out.Item.String())
			errs = append(errs, out.Err)
			log.Error("haul join failed", "haul", out.Item.String(), "error", out.Err)
			continue
		}
		res.Summaries = append(res.Summaries, out.Value)
	}
	res.Total = summary.Totals(res.Summaries)
	span.SetAttr("hauls", len(keys))
	span.SetAttr("failed", len(res.Failed))

	if report != nil {
		if err := summary.WriteCSV(report, res.Summaries); err != nil {
			return res, err
		}
	}
	if err := r.recorder.Record(ctx, logger.RunID(ctx), res.Summaries); err != nil {
		return res, fmt.Errorf("recording summaries: %w", err)
	}
	log.Info("hauls joined",
		"ok", len(res.Summaries),
		"failed", len(res.Failed),
		"complete", res.Total.Complete,
		"incomplete", res.Total.Incomplete,
		"zero", res.Total.Zero,
	)
	if len(errs) > 0 {
		return res, fmt.Errorf("join failed for %d of %d hauls [%s]: %w",
			len(errs), len(keys), strings.Join(res.Failed, ", "), errors.Join(errs...))
	}
	r.publish(ctx, events.StageCompleted{Stage: events.StageRender, Items: len(res.Summaries)})
	return res, nil
}

// BuildIndex builds, shards and records the manifest for every field in
// turn. Fields are validated before any work starts.
func (r *Runner) BuildIndex(ctx context.Context, fields []string) error {
	for _, f := range fields {
		if _, err := index.PolicyFor(f); err != nil {
			return err
		}
	}
	ctx, span := tracing.Start(ctx, events.StageIndex)
	defer span.End()
	keys, err := catalog.ListKeys(ctx, r.store, record.JoinedPrefix)
	if err != nil {
		return err
	}
	span.SetAttr("hauls", len(keys))
	for _, f := range fields {
		if err := r.buildField(ctx, f, keys); err != nil {
			return err
		}
	}
	return nil
}

func (r *Runner) buildField(ctx context.Context, field string, keys []record.Key) error {
	defer r.observe(events.StageIndex, time.Now())
	ctx, span := tracing.Start(ctx, field)
	defer span.End()
	log := logger.FromContext(ctx).With("component", "pipeline", "stage", events.StageIndex, "field", field)

	entries, err := index.NewBuilder(r.store, r.exec, r.partitions, r.metrics).Build(ctx, field, keys)
	if err != nil {
		return err
	}

	if err := shard.MarkBuilding(ctx, r.store, field, logger.RunID(ctx)); err != nil {
		return err
	}

	type written struct {
		batch int64
		ok    bool
	}
	writer := shard.NewWriter(r.store, r.encoder, r.issuer, r.metrics)
	parts := executor.Repartition(entries, r.partitions)
	outcomes, err := executor.Map(ctx, r.exec, parts, func(ctx context.Context, part []record.IndexEntry) (written, error) {
		batch, ok, err := writer.Write(ctx, field, part)
		return written{batch: batch, ok: ok}, err
	})
	if err != nil {
		return fmt.Errorf("writing %s shards: %w", field, err)
	}
	var ids []int64
	for _, o := range outcomes {
		if o.ok {
			ids = append(ids, o.batch)
		}
	}
	if err := shard.CheckUnique(field, ids); err != nil {
		return err
	}
	if err := shard.SaveManifest(ctx, r.store, field, ids); err != nil {
		return err
	}
	span.SetAttr("entries", len(entries))
	span.SetAttr("shards", len(ids))
	log.Info("index sharded", "entries", len(entries), "shards", len(ids), "partitions", len(parts))
	r.publish(ctx, events.StageCompleted{Stage: events.StageIndex, Field: field, Items: len(ids)})
	return nil
}

// CombineShards combines the shard set recorded in field's manifest into
// index/{field} and returns the number of entries written.
func (r *Runner) CombineShards(ctx context.Context, field string) (int, error) {
	defer r.observe(events.StageCombine, time.Now())
	ctx, span := tracing.Start(ctx, events.StageCombine+":"+field)
	defer span.End()
	if _, err := index.PolicyFor(field); err != nil {
		return 0, err
	}
	ids, err := shard.LoadManifest(ctx, r.store, field)
	if err != nil {
		return 0, err
	}
	n, err := shard.NewCombiner(r.store, r.encoder, r.exec, r.metrics).Combine(ctx, field, ids)
	if err != nil {
		return 0, err
	}
	r.publish(ctx, events.StageCompleted{Stage: events.StageCombine, Field: field, Items: n})
	return n, nil
}

// WriteMainIndex lists every joined haul into index/main.
func (r *Runner) WriteMainIndex(ctx context.Context) (int, error) {
	defer r.observe(events.StageMainIndex, time.Now())
	n, err := catalog.WriteMainIndex(ctx, r.store, r.encoder)
	if err != nil {
		return 0, err
	}
	r.publish(ctx, events.StageCompleted{Stage: events.StageMainIndex, Items: n})
	return n, nil
}

// publish never fails a stage: the stage output is already in the store.
func (r *Runner) publish(ctx context.Context, e events.StageCompleted) {
	e.RunID = logger.RunID(ctx)
	if err := r.events.Publish(ctx, e); err != nil {
		logger.FromContext(ctx).Warn("failed to publish stage completion",
			"stage", e.Stage,
			"field", e.Field,
			"error", err,
		)
	}
}

func (r *Runner) observe(stage string, start time.Time) {
	if r.metrics != nil {
		r.metrics.StageDuration.WithLabelValues(stage).Observe(time.Since(start).Seconds())
	}
}
