package worker

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/afscgap-dse/flatindex/internal/join"
	"github.com/afscgap-dse/flatindex/internal/record"
	apperrors "github.com/afscgap-dse/flatindex/pkg/errors"
	"github.com/afscgap-dse/flatindex/pkg/kafka"
)

type recordingSender struct{ sent []kafka.Event }

func (r *recordingSender) Publish(_ context.Context, events ...kafka.Event) error {
	r.sent = append(r.sent, events...)
	return nil
}

type fakeJoiner struct {
	joined []record.Key
	err    error
}

func (f *fakeJoiner) Join(_ context.Context, k record.Key) (join.Summary, error) {
	if f.err != nil {
		return join.Summary{}, f.err
	}
	f.joined = append(f.joined, k)
	return join.Summary{Key: k, Path: record.JoinedPath(k), Complete: 1}, nil
}

type fakeRecorder struct {
	runs      []string
	summaries []join.Summary
}

func (f *fakeRecorder) Record(_ context.Context, runID string, s []join.Summary) error {
	f.runs = append(f.runs, runID)
	f.summaries = append(f.summaries, s...)
	return nil
}

func TestDispatch(t *testing.T) {
	s := &recordingSender{}
	keys := []record.Key{{Year: 2023, Survey: "NBS", Haul: 1}, {Year: 2023, Survey: "NBS", Haul: 2}}
	require.NoError(t, Dispatch(context.Background(), s, "run-9", keys))

	require.Len(t, s.sent, 2)
	assert.Equal(t, "2023_NBS_2", s.sent[1].Key)
	assert.Equal(t, JoinRequest{RunID: "run-9", Year: 2023, Survey: "NBS", Haul: 2}, s.sent[1].Value)
}

func TestHandleJoinRequest(t *testing.T) {
	j := &fakeJoiner{}
	r := &fakeRecorder{}
	h := HandleJoinRequest(j, r)

	err := h(context.Background(), []byte("2023_NBS_5"), []byte(`{"run_id":"r1","year":2023,"survey":"NBS","haul":5}`))
	require.NoError(t, err)
	assert.Equal(t, []record.Key{{Year: 2023, Survey: "NBS", Haul: 5}}, j.joined)
	assert.Equal(t, []string{"r1"}, r.runs)
	assert.Equal(t, 1, r.summaries[0].Complete)
}

func TestHandleJoinRequestSkipsMalformed(t *testing.T) {
	j := &fakeJoiner{}
	h := HandleJoinRequest(j, &fakeRecorder{})
	assert.NoError(t, h(context.Background(), nil, []byte(`{"year":`)))
	assert.Empty(t, j.joined)
}

func TestHandleJoinRequestPropagatesIntegrity(t *testing.T) {
	j := &fakeJoiner{err: apperrors.New(apperrors.ErrPrecondition, "2023_NBS_5", "no haul record")}
	h := HandleJoinRequest(j, &fakeRecorder{})
	err := h(context.Background(), nil, []byte(`{"year":2023,"survey":"NBS","haul":5}`))
	assert.True(t, apperrors.IsIntegrity(err))

	j.err = errors.New("store unavailable")
	err = h(context.Background(), nil, []byte(`{"year":2023,"survey":"NBS","haul":5}`))
	assert.False(t, apperrors.IsIntegrity(err))
}
