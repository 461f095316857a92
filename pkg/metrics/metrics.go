// Package metrics defines the Prometheus metric collectors used across the
// pipeline and exposes an HTTP handler for scraping.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus collectors for the pipeline.
type Metrics struct {
	HaulsJoinedTotal    *prometheus.CounterVec
	ObservationsTotal   *prometheus.CounterVec
	ShardsWrittenTotal  *prometheus.CounterVec
	EmptyPartitionTotal *prometheus.CounterVec
	IndexEntriesTotal   *prometheus.CounterVec
	StoreOpsTotal       *prometheus.CounterVec
	StoreOpDuration     *prometheus.HistogramVec
	StageDuration       *prometheus.HistogramVec
}

// New creates the collectors and registers them with reg. Tests pass a fresh
// prometheus.NewRegistry(); binaries pass prometheus.DefaultRegisterer.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		HaulsJoinedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "flatindex_hauls_joined_total",
				Help: "Hauls processed by the join engine by outcome (ok, failed).",
			},
			[]string{"status"},
		),
		ObservationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "flatindex_observations_total",
				Help: "Observations written by kind (complete, incomplete, zero).",
			},
			[]string{"kind"},
		),
		ShardsWrittenTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "flatindex_shards_written_total",
				Help: "Index shards written per field.",
			},
			[]string{"field"},
		),
		EmptyPartitionTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "flatindex_empty_partitions_total",
				Help: "Partitions that produced no shard, per field.",
			},
			[]string{"field"},
		),
		IndexEntriesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "flatindex_index_entries_total",
				Help: "Index entries produced per field and stage (build, combine).",
			},
			[]string{"field", "stage"},
		),
		StoreOpsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "flatindex_store_operations_total",
				Help: "Record store operations by op (get, put, list) and status (ok, not_found, error).",
			},
			[]string{"op", "status"},
		),
		StoreOpDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "flatindex_store_operation_duration_seconds",
				Help:    "Record store operation latency in seconds.",
				Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
			},
			[]string{"op"},
		),
		StageDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "flatindex_stage_duration_seconds",
				Help:    "Wall time of pipeline stages (render, index, combine, main-index).",
				Buckets: prometheus.ExponentialBuckets(0.01, 4, 10),
			},
			[]string{"stage"},
		),
	}

	reg.MustRegister(
		m.HaulsJoinedTotal,
		m.ObservationsTotal,
		m.ShardsWrittenTotal,
		m.EmptyPartitionTotal,
		m.IndexEntriesTotal,
		m.StoreOpsTotal,
		m.StoreOpDuration,
		m.StageDuration,
	)

	return m
}

// Handler returns the Prometheus scrape HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}
