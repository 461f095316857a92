package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "local", cfg.Store.Driver)
	assert.Equal(t, "zstd", cfg.Codec.Compression)
	assert.Equal(t, 20, cfg.Pipeline.Partitions)
	assert.Equal(t, "sequence", cfg.Pipeline.BatchIDs.Mode)
	assert.Positive(t, cfg.Pipeline.Workers)
	assert.Equal(t, "index.complete", cfg.Kafka.Topics.IndexComplete)
}

func TestLoadFileAndEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pipeline.yaml")
	yml := `
store:
  driver: minio
  endpoint: localhost:9000
  bucket: afscgap
pipeline:
  workers: 4
  partitions: 8
  storeTimeout: 5s
  batchIds:
    mode: random
    randomMax: 5000
`
	require.NoError(t, os.WriteFile(path, []byte(yml), 0o644))
	t.Setenv("FI_STORE_BUCKET", "override-bucket")
	t.Setenv("FI_CODEC_COMPRESSION", "lz4")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "minio", cfg.Store.Driver)
	assert.Equal(t, "localhost:9000", cfg.Store.Endpoint)
	assert.Equal(t, "override-bucket", cfg.Store.Bucket)
	assert.Equal(t, "lz4", cfg.Codec.Compression)
	assert.Equal(t, 4, cfg.Pipeline.Workers)
	assert.Equal(t, 8, cfg.Pipeline.Partitions)
	assert.Equal(t, 5*time.Second, cfg.Pipeline.StoreTimeout)
	assert.Equal(t, int64(5000), cfg.Pipeline.BatchIDs.RandomMax)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"bad driver", func(c *Config) { c.Store.Driver = "ftp" }},
		{"bad compression", func(c *Config) { c.Codec.Compression = "gzip" }},
		{"bad batch mode", func(c *Config) { c.Pipeline.BatchIDs.Mode = "uuid" }},
		{"zero workers", func(c *Config) { c.Pipeline.Workers = 0 }},
		{"random range too small", func(c *Config) {
			c.Pipeline.BatchIDs.Mode = "random"
			c.Pipeline.BatchIDs.RandomMax = 3
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := defaultConfig()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
	assert.NoError(t, defaultConfig().Validate())
}

func TestPostgresDSN(t *testing.T) {
	dsn := defaultConfig().Postgres.DSN()
	assert.Contains(t, dsn, "dbname=flatindex")
	assert.Contains(t, dsn, "sslmode=disable")
}
