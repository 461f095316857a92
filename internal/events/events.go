// Package events announces completed pipeline stages so downstream consumers
// can pick up fresh indices without polling the store.
package events

import (
	"context"
	"log/slog"
	"time"

	"github.com/afscgap-dse/flatindex/pkg/kafka"
)

// Stage names.
const (
	StageRender    = "render"
	StageIndex     = "index"
	StageCombine   = "combine"
	StageMainIndex = "main-index"
)

// StageCompleted is published after a stage finished without error. Field is
// empty for stages that are not per field.
type StageCompleted struct {
	RunID string    `json:"run_id"`
	Stage string    `json:"stage"`
	Field string    `json:"field,omitempty"`
	Items int       `json:"items"`
	At    time.Time `json:"at"`
}

func (e StageCompleted) key() string {
	if e.Field == "" {
		return e.Stage
	}
	return e.Stage + ":" + e.Field
}

type Publisher interface {
	Publish(ctx context.Context, e StageCompleted) error
}

// Sender is satisfied by *kafka.Producer.
type Sender interface {
	Publish(ctx context.Context, events ...kafka.Event) error
}

// KafkaPublisher sends events through a Kafka producer keyed by stage and
// field.
type KafkaPublisher struct {
	sender Sender
	logger *slog.Logger
}

func NewKafkaPublisher(sender Sender) *KafkaPublisher {
	return &KafkaPublisher{
		sender: sender,
		logger: slog.Default().With("component", "events"),
	}
}

func (p *KafkaPublisher) Publish(ctx context.Context, e StageCompleted) error {
	if e.At.IsZero() {
		e.At = time.Now().UTC()
	}
	if err := p.sender.Publish(ctx, kafka.Event{Key: e.key(), Value: e}); err != nil {
		return err
	}
	p.logger.Debug("stage completion published", "stage", e.Stage, "field", e.Field, "items", e.Items)
	return nil
}

// Nop drops every event.
type Nop struct{}

func (Nop) Publish(context.Context, StageCompleted) error { return nil }
