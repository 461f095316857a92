package summary

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/afscgap-dse/flatindex/internal/join"
	"github.com/afscgap-dse/flatindex/pkg/postgres"
)

// Recorder persists the summaries of one run.
type Recorder interface {
	Record(ctx context.Context, runID string, summaries []join.Summary) error
}

// Store persists join summaries in PostgreSQL.
//
// It requires a `join_summaries` table:
//
//	CREATE TABLE join_summaries (
//	    run_id      TEXT NOT NULL,
//	    haul_key    TEXT NOT NULL,
//	    path        TEXT NOT NULL,
//	    complete    INTEGER NOT NULL,
//	    incomplete  INTEGER NOT NULL,
//	    zero        INTEGER NOT NULL,
//	    recorded_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
//	    PRIMARY KEY (run_id, haul_key)
//	);
type Store struct {
	db     *postgres.Client
	logger *slog.Logger
}

func NewStore(db *postgres.Client) *Store {
	return &Store{
		db:     db,
		logger: slog.Default().With("component", "summary-store"),
	}
}

const upsertSummary = `
INSERT INTO join_summaries (run_id, haul_key, path, complete, incomplete, zero, recorded_at)
VALUES ($1, $2, $3, $4, $5, $6, $7)
ON CONFLICT (run_id, haul_key) DO UPDATE SET
    path = EXCLUDED.path,
    complete = EXCLUDED.complete,
    incomplete = EXCLUDED.incomplete,
    zero = EXCLUDED.zero,
    recorded_at = EXCLUDED.recorded_at`

// Record writes every summary in one transaction. Re-recording a haul for the
// same run replaces its row.
func (s *Store) Record(ctx context.Context, runID string, summaries []join.Summary) error {
	now := time.Now().UTC()
	err := s.db.InTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, upsertSummary)
		if err != nil {
			return fmt.Errorf("preparing summary insert: %w", err)
		}
		defer stmt.Close()
		for _, sum := range summaries {
			if _, err := stmt.ExecContext(ctx,
				runID, sum.Key.String(), sum.Path,
				sum.Complete, sum.Incomplete, sum.Zero, now,
			); err != nil {
				return fmt.Errorf("inserting summary for %s: %w", sum.Key, err)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	s.logger.Info("join summaries recorded", "run_id", runID, "hauls", len(summaries))
	return nil
}

// RunTotals loads the aggregate counts recorded for runID.
func (s *Store) RunTotals(ctx context.Context, runID string) (Total, error) {
	var t Total
	err := s.db.DB.QueryRowContext(ctx,
		`SELECT COUNT(*), COALESCE(SUM(complete), 0), COALESCE(SUM(incomplete), 0), COALESCE(SUM(zero), 0)
		 FROM join_summaries WHERE run_id = $1`,
		runID,
	).Scan(&t.Hauls, &t.Complete, &t.Incomplete, &t.Zero)
	if err != nil {
		return Total{}, fmt.Errorf("querying totals for run %s: %w", runID, err)
	}
	return t, nil
}

// Nop discards summaries. It is used when PostgreSQL is disabled.
type Nop struct{}

func (Nop) Record(context.Context, string, []join.Summary) error { return nil }
