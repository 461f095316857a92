package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/afscgap-dse/flatindex/internal/events"
	"github.com/afscgap-dse/flatindex/internal/executor"
	"github.com/afscgap-dse/flatindex/internal/pipeline"
	"github.com/afscgap-dse/flatindex/internal/shard"
	"github.com/afscgap-dse/flatindex/internal/summary"
	"github.com/afscgap-dse/flatindex/pkg/codec"
	"github.com/afscgap-dse/flatindex/pkg/config"
	apperrors "github.com/afscgap-dse/flatindex/pkg/errors"
	"github.com/afscgap-dse/flatindex/pkg/kafka"
	"github.com/afscgap-dse/flatindex/pkg/logger"
	"github.com/afscgap-dse/flatindex/pkg/metrics"
	"github.com/afscgap-dse/flatindex/pkg/postgres"
	"github.com/afscgap-dse/flatindex/pkg/redis"
	"github.com/afscgap-dse/flatindex/pkg/store"
)

// app holds what every subcommand shares: the loaded config, the run id and
// the clients opened on demand, closed once the command returns.
type app struct {
	configPath string
	runID      string
	// registry defaults to prometheus.DefaultRegisterer.
	registry prometheus.Registerer

	cfg     *config.Config
	metrics *metrics.Metrics
	closers []func() error
}

func (a *app) init(cmd *cobra.Command) error {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return fmt.Errorf("%w: %v", apperrors.ErrInvalidInput, err)
	}
	a.cfg = cfg
	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)
	if a.runID == "" {
		a.runID = time.Now().UTC().Format("20060102T150405")
	}
	if a.registry == nil {
		a.registry = prometheus.DefaultRegisterer
	}
	a.metrics = metrics.New(a.registry)
	slog.Debug("configuration loaded", "command", cmd.Name(), "run_id", a.runID, "store", cfg.Store.Driver)
	return nil
}

func (a *app) context(cmd *cobra.Command) context.Context {
	return logger.WithRunID(cmd.Context(), a.runID)
}

func (a *app) onClose(fn func() error) {
	a.closers = append(a.closers, fn)
}

func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			slog.Warn("close failed", "error", err)
		}
	}
	a.closers = nil
}

// serveMetrics starts the metrics endpoint when enabled in config.
func (a *app) serveMetrics() {
	if !a.cfg.Metrics.Enabled {
		return
	}
	shutdown := metrics.StartServer(a.cfg.Metrics.Port, nil)
	a.onClose(func() error {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return shutdown(ctx)
	})
}

func (a *app) openStore(ctx context.Context, bucket string) (store.RecordStore, error) {
	a.cfg.Store.Bucket = bucket
	return store.Open(ctx, a.cfg, a.metrics)
}

func (a *app) encoder() (*codec.Encoder, error) {
	c, err := codec.ParseCompression(a.cfg.Codec.Compression)
	if err != nil {
		return nil, err
	}
	return codec.NewEncoder(c), nil
}

func (a *app) issuer() (shard.IDIssuer, error) {
	var counter shard.Counter
	if a.cfg.Pipeline.BatchIDs.Mode == "redis" {
		rc, err := redis.NewClient(a.cfg.Redis)
		if err != nil {
			return nil, err
		}
		a.onClose(rc.Close)
		counter = rc
	}
	return shard.NewIssuer(a.cfg.Pipeline.BatchIDs, counter, a.runID)
}

func (a *app) postgres() (*postgres.Client, error) {
	if !a.cfg.Postgres.Enabled {
		return nil, nil
	}
	pg, err := postgres.New(a.cfg.Postgres)
	if err != nil {
		return nil, err
	}
	a.onClose(pg.Close)
	return pg, nil
}

func (a *app) recorder() (summary.Recorder, error) {
	pg, err := a.postgres()
	if err != nil || pg == nil {
		return summary.Nop{}, err
	}
	return summary.NewStore(pg), nil
}

func (a *app) publisher() events.Publisher {
	if !a.cfg.Kafka.Enabled {
		return events.Nop{}
	}
	p := kafka.NewProducer(a.cfg.Kafka, a.cfg.Kafka.Topics.IndexComplete)
	a.onClose(p.Close)
	return events.NewKafkaPublisher(p)
}

func (a *app) runner(ctx context.Context, bucket string) (*pipeline.Runner, error) {
	s, err := a.openStore(ctx, bucket)
	if err != nil {
		return nil, err
	}
	enc, err := a.encoder()
	if err != nil {
		return nil, err
	}
	issuer, err := a.issuer()
	if err != nil {
		return nil, err
	}
	rec, err := a.recorder()
	if err != nil {
		return nil, err
	}
	a.serveMetrics()
	return pipeline.New(pipeline.Options{
		Store:      s,
		Encoder:    enc,
		Executor:   executor.New(a.cfg.Pipeline.Workers),
		Partitions: a.cfg.Pipeline.Partitions,
		Issuer:     issuer,
		Recorder:   rec,
		Events:     a.publisher(),
		Metrics:    a.metrics,
	}), nil
}
