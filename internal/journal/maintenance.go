package journal

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// Counts summarizes the journal contents.
type Counts struct {
	Applies  int
	Runs     int
	Warnings int
}

// Counts returns the number of rows per table.
func (s *Store) Counts(ctx context.Context) (Counts, error) {
	var c Counts
	err := s.db.QueryRowContext(ctx,
		`SELECT (SELECT COUNT(1) FROM applies), (SELECT COUNT(1) FROM runs), (SELECT COUNT(1) FROM warnings)`,
	).Scan(&c.Applies, &c.Runs, &c.Warnings)
	if err != nil {
		return Counts{}, fmt.Errorf("journal counts: %w", err)
	}
	return c, nil
}

// Prune keeps the newest keep reconciliations and drops everything recorded
// before the oldest of them. It returns the number of deleted applies.
func (s *Store) Prune(ctx context.Context, keep int) (int64, error) {
	if keep < 0 {
		keep = 0
	}
	var cutoffID int64
	var cutoff string
	err := s.db.QueryRowContext(ctx,
		`SELECT id, created_at FROM applies ORDER BY id DESC LIMIT 1 OFFSET ?`, keep,
	).Scan(&cutoffID, &cutoff)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("find prune cutoff: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin prune tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM runs WHERE apply_id <= ? OR (apply_id IS NULL AND created_at <= ?)`, cutoffID, cutoff,
	); err != nil {
		return 0, fmt.Errorf("prune runs: %w", err)
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM applies WHERE id <= ?`, cutoffID)
	if err != nil {
		return 0, fmt.Errorf("prune applies: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM warnings WHERE created_at <= ?`, cutoff); err != nil {
		return 0, fmt.Errorf("prune warnings: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit prune: %w", err)
	}
	return res.RowsAffected()
}
