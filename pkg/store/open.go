package store

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/afscgap-dse/flatindex/pkg/config"
	apperrors "github.com/afscgap-dse/flatindex/pkg/errors"
	"github.com/afscgap-dse/flatindex/pkg/metrics"
	"github.com/afscgap-dse/flatindex/pkg/resilience"
	"github.com/afscgap-dse/flatindex/pkg/store/minio"
	"github.com/afscgap-dse/flatindex/pkg/store/s3"
)

// Open builds the backend named by cfg.Store.Driver and wraps it with rate
// limiting, per-call timeouts, retries and metrics, innermost first.
func Open(ctx context.Context, cfg *config.Config, m *metrics.Metrics) (RecordStore, error) {
	var base RecordStore
	switch cfg.Store.Driver {
	case "memory":
		base = NewMemoryStore()
	case "local":
		root := cfg.Store.Root
		if cfg.Store.Bucket != "" {
			root = filepath.Join(root, cfg.Store.Bucket)
		}
		base = NewLocalStore(root)
	case "s3":
		s, err := s3.New(ctx, cfg.Store)
		if err != nil {
			return nil, fmt.Errorf("opening s3 store: %w", err)
		}
		base = s
	case "minio":
		s, err := minio.New(cfg.Store)
		if err != nil {
			return nil, fmt.Errorf("opening minio store: %w", err)
		}
		base = s
	default:
		return nil, apperrors.Newf(apperrors.ErrInvalidInput, cfg.Store.Driver, "unknown store driver")
	}

	s := WithRateLimit(base, cfg.Store.RequestsPerSecond)
	s = WithTimeout(s, cfg.Pipeline.StoreTimeout)
	s = WithRetry(s, resilience.RetryConfig{
		MaxAttempts:  cfg.Pipeline.Retry.MaxAttempts,
		InitialDelay: cfg.Pipeline.Retry.InitialDelay,
		MaxDelay:     cfg.Pipeline.Retry.MaxDelay,
	})
	return WithMetrics(s, m), nil
}

// Pinger is implemented by backends with a cheap reachability probe.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Ping probes the innermost backend of s. Backends without a probe are
// checked with a List of the empty prefix.
func Ping(ctx context.Context, s RecordStore) error {
	for {
		if p, ok := s.(Pinger); ok {
			return p.Ping(ctx)
		}
		u, ok := s.(interface{ Unwrap() RecordStore })
		if !ok {
			break
		}
		s = u.Unwrap()
	}
	_, err := s.List(ctx, "")
	return err
}

// Ping reports whether the root directory is usable.
func (s *LocalStore) Ping(ctx context.Context) error {
	if err := os.MkdirAll(s.root, 0o755); err != nil {
		return fmt.Errorf("store root %s: %w", s.root, err)
	}
	return nil
}
