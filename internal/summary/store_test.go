package summary

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/afscgap-dse/flatindex/pkg/config"
	"github.com/afscgap-dse/flatindex/pkg/postgres"
)

const createSummaries = `
CREATE TABLE IF NOT EXISTS join_summaries (
    run_id      TEXT NOT NULL,
    haul_key    TEXT NOT NULL,
    path        TEXT NOT NULL,
    complete    INTEGER NOT NULL,
    incomplete  INTEGER NOT NULL,
    zero        INTEGER NOT NULL,
    recorded_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    PRIMARY KEY (run_id, haul_key)
)`

// TestStore_Integration requires PostgreSQL with the default local
// credentials and is skipped otherwise.
func TestStore_Integration(t *testing.T) {
	cfg, err := config.Load("")
	require.NoError(t, err)
	pg, err := postgres.New(cfg.Postgres)
	if err != nil {
		t.Skipf("postgres not available: %v", err)
	}
	defer pg.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	_, err = pg.DB.ExecContext(ctx, createSummaries)
	require.NoError(t, err)

	runID := fmt.Sprintf("it-%d", time.Now().UnixNano())
	s := NewStore(pg)
	require.NoError(t, s.Record(ctx, runID, sample()))
	require.NoError(t, s.Record(ctx, runID, sample()), "re-recording a run replaces its rows")

	total, err := s.RunTotals(ctx, runID)
	require.NoError(t, err)
	assert.Equal(t, Totals(sample()), total)

	_, err = pg.DB.ExecContext(ctx, `DELETE FROM join_summaries WHERE run_id = $1`, runID)
	require.NoError(t, err)
}
