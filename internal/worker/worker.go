// Package worker distributes haul joins over Kafka: Dispatch enqueues one
// request per haul and HandleJoinRequest joins each request as it arrives.
package worker

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/afscgap-dse/flatindex/internal/join"
	"github.com/afscgap-dse/flatindex/internal/record"
	"github.com/afscgap-dse/flatindex/internal/summary"
	"github.com/afscgap-dse/flatindex/pkg/kafka"
	"github.com/afscgap-dse/flatindex/pkg/logger"
)

// JoinRequest asks a worker to join one haul.
type JoinRequest struct {
	RunID  string `json:"run_id,omitempty"`
	Year   int32  `json:"year"`
	Survey string `json:"survey"`
	Haul   int64  `json:"haul"`
}

func (r JoinRequest) Key() record.Key {
	return record.Key{Year: r.Year, Survey: r.Survey, Haul: r.Haul}
}

// Sender is satisfied by *kafka.Producer.
type Sender interface {
	Publish(ctx context.Context, events ...kafka.Event) error
}

// Joiner is satisfied by *join.Engine.
type Joiner interface {
	Join(ctx context.Context, key record.Key) (join.Summary, error)
}

// Dispatch publishes one JoinRequest per key, keyed by the haul so retries
// of the same haul land on the same partition.
func Dispatch(ctx context.Context, sender Sender, runID string, keys []record.Key) error {
	events := make([]kafka.Event, len(keys))
	for i, k := range keys {
		events[i] = kafka.Event{
			Key:   k.String(),
			Value: JoinRequest{RunID: runID, Year: k.Year, Survey: k.Survey, Haul: k.Haul},
		}
	}
	if err := sender.Publish(ctx, events...); err != nil {
		return fmt.Errorf("dispatching %d join requests: %w", len(keys), err)
	}
	logger.FromContext(ctx).Info("join requests dispatched", "component", "worker", "hauls", len(keys))
	return nil
}

// HandleJoinRequest returns a Kafka MessageHandler that joins the requested
// haul and records its summary. Malformed requests are logged and skipped.
func HandleJoinRequest(engine Joiner, recorder summary.Recorder) kafka.MessageHandler {
	log := slog.Default().With("component", "join-worker")
	return func(ctx context.Context, key []byte, value []byte) error {
		req, err := kafka.DecodeJSON[JoinRequest](value)
		if err != nil {
			log.Error("failed to decode join request", "error", err, "key", string(key))
			return nil
		}
		if req.RunID != "" {
			ctx = logger.WithRunID(ctx, req.RunID)
		}
		s, err := engine.Join(ctx, req.Key())
		if err != nil {
			return fmt.Errorf("joining haul %s: %w", req.Key(), err)
		}
		if err := recorder.Record(ctx, req.RunID, []join.Summary{s}); err != nil {
			return fmt.Errorf("recording summary for %s: %w", req.Key(), err)
		}
		return nil
	}
}
