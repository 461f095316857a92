package kafka

import (
	"testing"

	apperrors "github.com/afscgap-dse/flatindex/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type joinRequest struct {
	Year   int32  `json:"year"`
	Survey string `json:"survey"`
	Haul   int64  `json:"haul"`
}

func TestDecodeJSON(t *testing.T) {
	got, err := DecodeJSON[joinRequest]([]byte(`{"year":2023,"survey":"NBS","haul":5}`))
	require.NoError(t, err)
	assert.Equal(t, joinRequest{Year: 2023, Survey: "NBS", Haul: 5}, got)

	_, err = DecodeJSON[joinRequest]([]byte(`{"year":`))
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
}

func TestEncodeEvents(t *testing.T) {
	msgs, err := encode([]Event{{Key: "2023_NBS_5", Value: joinRequest{Year: 2023, Survey: "NBS", Haul: 5}}})
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, "2023_NBS_5", string(msgs[0].Key))
	assert.JSONEq(t, `{"year":2023,"survey":"NBS","haul":5}`, string(msgs[0].Value))

	_, err = encode([]Event{{Key: "bad", Value: make(chan int)}})
	assert.Error(t, err)
}
