package main

import (
	"context"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/afscgap-dse/flatindex/internal/catalog"
	"github.com/afscgap-dse/flatindex/internal/join"
	"github.com/afscgap-dse/flatindex/internal/record"
	"github.com/afscgap-dse/flatindex/internal/summary"
	"github.com/afscgap-dse/flatindex/internal/worker"
	"github.com/afscgap-dse/flatindex/pkg/health"
	"github.com/afscgap-dse/flatindex/pkg/kafka"
	"github.com/afscgap-dse/flatindex/pkg/metrics"
	"github.com/afscgap-dse/flatindex/pkg/store"
)

func dispatchCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "dispatch [bucket]",
		Short: "Enqueue one join request per haul for the join workers",
		Args:  exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cmd.SilenceUsage = true
			ctx := a.context(cmd)
			s, err := a.openStore(ctx, args[0])
			if err != nil {
				return err
			}
			keys, err := catalog.ListKeys(ctx, s, record.HaulPrefix)
			if err != nil {
				return err
			}
			p := kafka.NewProducer(a.cfg.Kafka, a.cfg.Kafka.Topics.HaulJoin)
			a.onClose(p.Close)
			return worker.Dispatch(ctx, p, a.runID, keys)
		},
	}
}

// storeProbe adapts a RecordStore to health.Pinger.
type storeProbe struct{ s store.RecordStore }

func (p storeProbe) Ping(ctx context.Context) error { return store.Ping(ctx, p.s) }

func workerCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "worker [bucket]",
		Short: "Join hauls as join requests arrive from Kafka",
		Args:  exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cmd.SilenceUsage = true
			ctx := a.context(cmd)
			s, err := a.openStore(ctx, args[0])
			if err != nil {
				return err
			}
			enc, err := a.encoder()
			if err != nil {
				return err
			}
			species, err := join.NewSpeciesLoader(s).Load(ctx)
			if err != nil {
				return err
			}
			pg, err := a.postgres()
			if err != nil {
				return err
			}
			var rec summary.Recorder = summary.Nop{}
			if pg != nil {
				rec = summary.NewStore(pg)
			}

			checker := health.NewChecker()
			checker.Register("store", health.PingCheck(storeProbe{s}, true))
			if pg != nil {
				checker.Register("postgres", health.PingCheck(pg, false))
			}
			shutdown := metrics.StartServer(a.cfg.Metrics.Port, checker.Handlers())
			defer func() {
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := shutdown(ctx); err != nil {
					slog.Warn("metrics server shutdown failed", "error", err)
				}
			}()

			engine := join.NewEngine(s, enc, species, a.metrics)
			consumer := kafka.NewConsumer(a.cfg.Kafka, a.cfg.Kafka.Topics.HaulJoin, worker.HandleJoinRequest(engine, rec))
			slog.Info("join worker ready",
				"topic", a.cfg.Kafka.Topics.HaulJoin,
				"group", a.cfg.Kafka.ConsumerGroup,
				"species", species.Len(),
			)
			return consumer.Start(ctx)
		},
	}
}
