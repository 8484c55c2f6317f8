package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

const runColumns = "id, dir, status, stage, compose_only, deliverable_path, video_id, error_kind, error_message, created_at, updated_at"

// CreateRun inserts a new run record.
func (s *Store) CreateRun(ctx context.Context, run *Run) error {
	if run == nil || strings.TrimSpace(run.ID) == "" {
		return errors.New("run id is required")
	}
	now := time.Now().UTC()
	if run.CreatedAt.IsZero() {
		run.CreatedAt = now
	}
	run.UpdatedAt = now
	if run.Status == "" {
		run.Status = RunPending
	}
	_, err := s.execWithRetry(ctx,
		`INSERT INTO runs (`+runColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID,
		run.Dir,
		run.Status,
		nullableString(run.Stage),
		boolToInt(run.ComposeOnly),
		nullableString(run.DeliverablePath),
		nullableString(run.VideoID),
		nullableString(run.ErrorKind),
		nullableString(run.ErrorMessage),
		formatTime(run.CreatedAt),
		formatTime(run.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	return nil
}

// UpdateRun persists changes to an existing run.
func (s *Store) UpdateRun(ctx context.Context, run *Run) error {
	if run == nil {
		return errors.New("run is nil")
	}
	run.UpdatedAt = time.Now().UTC()
	res, err := s.execWithRetry(ctx,
		`UPDATE runs
         SET dir = ?, status = ?, stage = ?, compose_only = ?, deliverable_path = ?,
             video_id = ?, error_kind = ?, error_message = ?, updated_at = ?
         WHERE id = ?`,
		run.Dir,
		run.Status,
		nullableString(run.Stage),
		boolToInt(run.ComposeOnly),
		nullableString(run.DeliverablePath),
		nullableString(run.VideoID),
		nullableString(run.ErrorKind),
		nullableString(run.ErrorMessage),
		formatTime(run.UpdatedAt),
		run.ID,
	)
	if err != nil {
		return fmt.Errorf("update run: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("update run %s: %w", run.ID, sql.ErrNoRows)
	}
	return nil
}

// GetRun fetches a run by id. It returns nil, nil when no run matches.
func (s *Store) GetRun(ctx context.Context, id string) (*Run, error) {
	row := s.db.QueryRowContext(ensureContext(ctx), `SELECT `+runColumns+` FROM runs WHERE id = ?`, id)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get run: %w", err)
	}
	return run, nil
}

// ListRuns returns runs newest first, filtered by status when any are given.
// A limit <= 0 returns every match.
func (s *Store) ListRuns(ctx context.Context, limit int, statuses ...RunStatus) ([]*Run, error) {
	query := `SELECT ` + runColumns + ` FROM runs`
	args := make([]any, 0, len(statuses)+1)
	if len(statuses) > 0 {
		query += ` WHERE status IN (` + makePlaceholders(len(statuses)) + `)`
		for _, status := range statuses {
			args = append(args, status)
		}
	}
	query += ` ORDER BY created_at DESC, id DESC`
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ensureContext(ctx), query, args...)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []*Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// RunStats returns a count of runs grouped by status.
func (s *Store) RunStats(ctx context.Context) (map[RunStatus]int, error) {
	rows, err := s.db.QueryContext(ensureContext(ctx), `SELECT status, COUNT(1) FROM runs GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("run stats: %w", err)
	}
	defer rows.Close()

	stats := make(map[RunStatus]int)
	for rows.Next() {
		var status RunStatus
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		stats[status] = count
	}
	return stats, rows.Err()
}

// ResetInterrupted marks runs left in running state by a crashed process as
// failed so they can be resumed explicitly.
func (s *Store) ResetInterrupted(ctx context.Context) (int64, error) {
	res, err := s.execWithRetry(ctx,
		`UPDATE runs SET status = ?, error_kind = 'Interrupted',
             error_message = 'process exited while the run was in progress', updated_at = ?
         WHERE status = ?`,
		RunFailed,
		formatTime(time.Now()),
		RunRunning,
	)
	if err != nil {
		return 0, fmt.Errorf("reset interrupted runs: %w", err)
	}
	return res.RowsAffected()
}

func scanRun(scanner interface{ Scan(dest ...any) error }) (*Run, error) {
	var (
		run          Run
		stage        sql.NullString
		composeOnly  int64
		deliverable  sql.NullString
		videoID      sql.NullString
		errorKind    sql.NullString
		errorMessage sql.NullString
		createdRaw   string
		updatedRaw   string
	)
	if err := scanner.Scan(
		&run.ID,
		&run.Dir,
		&run.Status,
		&stage,
		&composeOnly,
		&deliverable,
		&videoID,
		&errorKind,
		&errorMessage,
		&createdRaw,
		&updatedRaw,
	); err != nil {
		return nil, err
	}
	run.Stage = stage.String
	run.ComposeOnly = composeOnly != 0
	run.DeliverablePath = deliverable.String
	run.VideoID = videoID.String
	run.ErrorKind = errorKind.String
	run.ErrorMessage = errorMessage.String
	if created, err := parseTimeString(createdRaw); err == nil {
		run.CreatedAt = created
	}
	if updated, err := parseTimeString(updatedRaw); err == nil {
		run.UpdatedAt = updated
	}
	return &run, nil
}
