package store

import (
	"context"
	"errors"
	"time"

	apperrors "github.com/afscgap-dse/flatindex/pkg/errors"
	"github.com/afscgap-dse/flatindex/pkg/metrics"
	"github.com/afscgap-dse/flatindex/pkg/resilience"
	"golang.org/x/time/rate"
)

// retrying retries transient failures with backoff. Missing objects and
// invalid paths are returned immediately.
type retrying struct {
	next RecordStore
	cfg  resilience.RetryConfig
}

func WithRetry(next RecordStore, cfg resilience.RetryConfig) RecordStore {
	return &retrying{next: next, cfg: cfg}
}

func permanentIfFinal(err error) error {
	if errors.Is(err, ErrNotFound) || errors.Is(err, apperrors.ErrInvalidInput) ||
		errors.Is(err, context.Canceled) {
		return resilience.Permanent(err)
	}
	return err
}

func (s *retrying) Get(ctx context.Context, path string) ([]byte, error) {
	var data []byte
	err := resilience.Retry(ctx, "store.get", s.cfg, func() error {
		var err error
		data, err = s.next.Get(ctx, path)
		return permanentIfFinal(err)
	})
	return data, err
}

func (s *retrying) Put(ctx context.Context, path string, data []byte) error {
	return resilience.Retry(ctx, "store.put", s.cfg, func() error {
		return permanentIfFinal(s.next.Put(ctx, path, data))
	})
}

func (s *retrying) List(ctx context.Context, prefix string) ([]string, error) {
	var paths []string
	err := resilience.Retry(ctx, "store.list", s.cfg, func() error {
		var err error
		paths, err = s.next.List(ctx, prefix)
		return permanentIfFinal(err)
	})
	return paths, err
}

// limited caps the request rate against the backend. Object stores throttle
// per prefix, and the join stage issues one Get per haul.
type limited struct {
	next    RecordStore
	limiter *rate.Limiter
}

// WithRateLimit allows rps requests per second with a burst of one second's
// worth. rps <= 0 disables limiting.
func WithRateLimit(next RecordStore, rps float64) RecordStore {
	if rps <= 0 {
		return next
	}
	burst := int(rps)
	if burst < 1 {
		burst = 1
	}
	return &limited{next: next, limiter: rate.NewLimiter(rate.Limit(rps), burst)}
}

func (s *limited) Get(ctx context.Context, path string) ([]byte, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	return s.next.Get(ctx, path)
}

func (s *limited) Put(ctx context.Context, path string, data []byte) error {
	if err := s.limiter.Wait(ctx); err != nil {
		return err
	}
	return s.next.Put(ctx, path, data)
}

func (s *limited) List(ctx context.Context, prefix string) ([]string, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	return s.next.List(ctx, prefix)
}

// timed bounds every call by a per-operation timeout.
type timed struct {
	next    RecordStore
	timeout time.Duration
}

func WithTimeout(next RecordStore, timeout time.Duration) RecordStore {
	if timeout <= 0 {
		return next
	}
	return &timed{next: next, timeout: timeout}
}

func (s *timed) Get(ctx context.Context, path string) ([]byte, error) {
	var data []byte
	err := resilience.WithTimeout(ctx, s.timeout, "store.get "+path, func(ctx context.Context) error {
		var err error
		data, err = s.next.Get(ctx, path)
		return err
	})
	if err != nil {
		return nil, err
	}
	return data, nil
}

func (s *timed) Put(ctx context.Context, path string, data []byte) error {
	return resilience.WithTimeout(ctx, s.timeout, "store.put "+path, func(ctx context.Context) error {
		return s.next.Put(ctx, path, data)
	})
}

func (s *timed) List(ctx context.Context, prefix string) ([]string, error) {
	var paths []string
	err := resilience.WithTimeout(ctx, s.timeout, "store.list "+prefix, func(ctx context.Context) error {
		var err error
		paths, err = s.next.List(ctx, prefix)
		return err
	})
	if err != nil {
		return nil, err
	}
	return paths, nil
}

// instrumented records operation counts and latency.
type instrumented struct {
	next RecordStore
	m    *metrics.Metrics
}

func WithMetrics(next RecordStore, m *metrics.Metrics) RecordStore {
	if m == nil {
		return next
	}
	return &instrumented{next: next, m: m}
}

func (s *instrumented) observe(op string, start time.Time, err error) {
	status := "ok"
	switch {
	case errors.Is(err, ErrNotFound):
		status = "not_found"
	case err != nil:
		status = "error"
	}
	s.m.StoreOpsTotal.WithLabelValues(op, status).Inc()
	s.m.StoreOpDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
}

func (s *instrumented) Get(ctx context.Context, path string) ([]byte, error) {
	start := time.Now()
	data, err := s.next.Get(ctx, path)
	s.observe("get", start, err)
	return data, err
}

func (s *instrumented) Put(ctx context.Context, path string, data []byte) error {
	start := time.Now()
	err := s.next.Put(ctx, path, data)
	s.observe("put", start, err)
	return err
}

func (s *instrumented) List(ctx context.Context, prefix string) ([]string, error) {
	start := time.Now()
	paths, err := s.next.List(ctx, prefix)
	s.observe("list", start, err)
	return paths, err
}

func (s *retrying) Unwrap() RecordStore     { return s.next }
func (s *limited) Unwrap() RecordStore      { return s.next }
func (s *timed) Unwrap() RecordStore        { return s.next }
func (s *instrumented) Unwrap() RecordStore { return s.next }
