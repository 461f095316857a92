package redis

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/afscgap-dse/flatindex/pkg/config"
)

func TestKey(t *testing.T) {
	c := &Client{prefix: "flatindex"}
	assert.Equal(t, "flatindex:batch:run-1:depth_m", c.Key("batch", "run-1", "depth_m"))

	bare := &Client{}
	assert.Equal(t, "batch:depth_m", bare.Key("batch", "depth_m"))
}

// TestClient_Integration requires Redis on localhost:6379 and is skipped
// otherwise.
func TestClient_Integration(t *testing.T) {
	c, err := NewClient(config.RedisConfig{Addr: "localhost:6379", PoolSize: 2, KeyPrefix: "flatindex-test"})
	if err != nil {
		t.Skipf("redis not available: %v", err)
	}
	defer c.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	key := c.Key("it", fmt.Sprint(time.Now().UnixNano()))

	_, err = c.Get(ctx, key)
	assert.True(t, IsNilError(err))

	n, err := c.Incr(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	n, err = c.Incr(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	require.NoError(t, c.Expire(ctx, key, time.Minute))

	v, err := c.Get(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, "2", v)
	assert.NoError(t, c.Ping(ctx))
}
