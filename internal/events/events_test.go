package events

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/afscgap-dse/flatindex/pkg/kafka"
)

type recordingSender struct {
	sent []kafka.Event
	err  error
}

func (r *recordingSender) Publish(_ context.Context, events ...kafka.Event) error {
	if r.err != nil {
		return r.err
	}
	r.sent = append(r.sent, events...)
	return nil
}

func TestKafkaPublisher(t *testing.T) {
	s := &recordingSender{}
	p := NewKafkaPublisher(s)

	require.NoError(t, p.Publish(context.Background(), StageCompleted{RunID: "r1", Stage: StageCombine, Field: "depth_m", Items: 42}))
	require.NoError(t, p.Publish(context.Background(), StageCompleted{RunID: "r1", Stage: StageMainIndex, Items: 7}))

	require.Len(t, s.sent, 2)
	assert.Equal(t, "combine:depth_m", s.sent[0].Key)
	assert.Equal(t, "main-index", s.sent[1].Key)
	ev := s.sent[0].Value.(StageCompleted)
	assert.Equal(t, 42, ev.Items)
	assert.WithinDuration(t, time.Now(), ev.At, time.Minute)
}

func TestKafkaPublisherError(t *testing.T) {
	p := NewKafkaPublisher(&recordingSender{err: errors.New("broker down")})
	assert.ErrorContains(t, p.Publish(context.Background(), StageCompleted{Stage: StageIndex}), "broker down")
}

func TestNop(t *testing.T) {
	var p Publisher = Nop{}
	assert.NoError(t, p.Publish(context.Background(), StageCompleted{}))
}
