package journal

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/SoftFever/OrcaSlicer-sub043/internal/objectid"
)

// Apply records one reconciliation.
type Apply struct {
	ID        int64
	Scene     string
	ModelID   objectid.ID
	Severity  string
	Objects   int
	Regions   int
	Duration  time.Duration
	CreatedAt time.Time
}

// Run records one processing pass. ApplyID links it to the reconciliation
// that kicked it off, when known.
type Run struct {
	ID         int64
	RequestID  string
	ApplyID    int64
	ObjectRuns int
	PrintRuns  int
	Failures   int
	Canceled   bool
	Error      string
	Duration   time.Duration
	CreatedAt  time.Time
}

// Warning is a step warning raised while processing.
type Warning struct {
	ID        int64
	RequestID string
	Owner     objectid.ID
	Step      string
	Level     string
	Message   string
	CreatedAt time.Time
}

func stamp(t *time.Time) {
	if t.IsZero() {
		*t = time.Now()
	}
}

// RecordApply inserts a and fills in its ID.
func (s *Store) RecordApply(ctx context.Context, a *Apply) error {
	stamp(&a.CreatedAt)
	res, err := s.exec(ctx,
		`INSERT INTO applies (scene, model_id, severity, objects, regions, duration_us, created_at)
         VALUES (?, ?, ?, ?, ?, ?, ?)`,
		a.Scene, int64(a.ModelID), a.Severity, a.Objects, a.Regions, a.Duration.Microseconds(), formatTime(a.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("insert apply: %w", err)
	}
	if a.ID, err = res.LastInsertId(); err != nil {
		return fmt.Errorf("last insert id: %w", err)
	}
	return nil
}

// RecordRun inserts r and fills in its ID.
func (s *Store) RecordRun(ctx context.Context, r *Run) error {
	stamp(&r.CreatedAt)
	res, err := s.exec(ctx,
		`INSERT INTO runs (request_id, apply_id, object_runs, print_runs, failures, canceled, error_message, duration_us, created_at)
         VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.RequestID, nullableID(r.ApplyID), r.ObjectRuns, r.PrintRuns, r.Failures, r.Canceled,
		nullableString(r.Error), r.Duration.Microseconds(), formatTime(r.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	if r.ID, err = res.LastInsertId(); err != nil {
		return fmt.Errorf("last insert id: %w", err)
	}
	return nil
}

// RecordWarning inserts w and fills in its ID.
func (s *Store) RecordWarning(ctx context.Context, w *Warning) error {
	stamp(&w.CreatedAt)
	res, err := s.exec(ctx,
		`INSERT INTO warnings (request_id, owner_id, step, level, message, created_at)
         VALUES (?, ?, ?, ?, ?, ?)`,
		nullableString(w.RequestID), int64(w.Owner), w.Step, w.Level, w.Message, formatTime(w.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("insert warning: %w", err)
	}
	if w.ID, err = res.LastInsertId(); err != nil {
		return fmt.Errorf("last insert id: %w", err)
	}
	return nil
}

// RecentApplies returns up to limit reconciliations, newest first.
func (s *Store) RecentApplies(ctx context.Context, limit int) ([]Apply, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, scene, model_id, severity, objects, regions, duration_us, created_at
         FROM applies ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query applies: %w", err)
	}
	defer rows.Close()

	var out []Apply
	for rows.Next() {
		var (
			a         Apply
			modelID   int64
			durUS     int64
			createdAt string
		)
		if err := rows.Scan(&a.ID, &a.Scene, &modelID, &a.Severity, &a.Objects, &a.Regions, &durUS, &createdAt); err != nil {
			return nil, fmt.Errorf("scan apply: %w", err)
		}
		a.ModelID = objectid.ID(modelID)
		a.Duration = time.Duration(durUS) * time.Microsecond
		a.CreatedAt = parseTime(createdAt)
		out = append(out, a)
	}
	return out, rows.Err()
}

// RunsFor returns the processing passes linked to applyID, oldest first.
func (s *Store) RunsFor(ctx context.Context, applyID int64) ([]Run, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, request_id, apply_id, object_runs, print_runs, failures, canceled, error_message, duration_us, created_at
         FROM runs WHERE apply_id = ? ORDER BY id`, applyID)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var out []Run
	for rows.Next() {
		var (
			r         Run
			applyRef  sql.NullInt64
			errMsg    sql.NullString
			durUS     int64
			createdAt string
		)
		if err := rows.Scan(&r.ID, &r.RequestID, &applyRef, &r.ObjectRuns, &r.PrintRuns, &r.Failures,
			&r.Canceled, &errMsg, &durUS, &createdAt); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		r.ApplyID = applyRef.Int64
		r.Error = errMsg.String
		r.Duration = time.Duration(durUS) * time.Microsecond
		r.CreatedAt = parseTime(createdAt)
		out = append(out, r)
	}
	return out, rows.Err()
}

// RecentWarnings returns up to limit warnings, newest first.
func (s *Store) RecentWarnings(ctx context.Context, limit int) ([]Warning, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, request_id, owner_id, step, level, message, created_at
         FROM warnings ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query warnings: %w", err)
	}
	defer rows.Close()

	var out []Warning
	for rows.Next() {
		var (
			w         Warning
			requestID sql.NullString
			owner     int64
			createdAt string
		)
		if err := rows.Scan(&w.ID, &requestID, &owner, &w.Step, &w.Level, &w.Message, &createdAt); err != nil {
			return nil, fmt.Errorf("scan warning: %w", err)
		}
		w.RequestID = requestID.String
		w.Owner = objectid.ID(owner)
		w.CreatedAt = parseTime(createdAt)
		out = append(out, w)
	}
	return out, rows.Err()
}
