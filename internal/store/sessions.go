package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

const sessionColumns = "id, run_id, file_path, file_size, location, acked_offset, state, video_id, error_message, created_at, updated_at, expires_at"

// SaveSession inserts or replaces an upload session.
func (s *Store) SaveSession(ctx context.Context, session *UploadSession) error {
	if session == nil || strings.TrimSpace(session.ID) == "" {
		return errors.New("session id is required")
	}
	now := time.Now().UTC()
	if session.CreatedAt.IsZero() {
		session.CreatedAt = now
	}
	session.UpdatedAt = now
	if session.State == "" {
		session.State = SessionPending
	}
	_, err := s.execWithRetry(ctx,
		`INSERT INTO upload_sessions (`+sessionColumns+`)
         VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
         ON CONFLICT(id) DO UPDATE SET
             location = excluded.location,
             acked_offset = excluded.acked_offset,
             state = excluded.state,
             video_id = excluded.video_id,
             error_message = excluded.error_message,
             updated_at = excluded.updated_at,
             expires_at = excluded.expires_at`,
		session.ID,
		session.RunID,
		session.FilePath,
		session.FileSize,
		nullableString(session.Location),
		session.AckedOffset,
		session.State,
		nullableString(session.VideoID),
		nullableString(session.ErrorMessage),
		formatTime(session.CreatedAt),
		formatTime(session.UpdatedAt),
		formatTime(session.ExpiresAt),
	)
	if err != nil {
		return fmt.Errorf("save upload session: %w", err)
	}
	return nil
}

// UpdateSessionOffset records a newly acknowledged byte offset.
func (s *Store) UpdateSessionOffset(ctx context.Context, id string, offset int64) error {
	_, err := s.execWithRetry(ctx,
		`UPDATE upload_sessions SET acked_offset = ?, state = ?, updated_at = ? WHERE id = ?`,
		offset,
		SessionInProgress,
		formatTime(time.Now()),
		id,
	)
	if err != nil {
		return fmt.Errorf("update session offset: %w", err)
	}
	return nil
}

// GetSession fetches a session by id. It returns nil, nil when none matches.
func (s *Store) GetSession(ctx context.Context, id string) (*UploadSession, error) {
	row := s.db.QueryRowContext(ensureContext(ctx), `SELECT `+sessionColumns+` FROM upload_sessions WHERE id = ?`, id)
	session, err := scanSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get upload session: %w", err)
	}
	return session, nil
}

// FindResumableSession returns the most recently updated session for runID
// and filePath that is still pending or in progress and has not expired at
// now. It returns nil, nil when there is nothing to resume.
func (s *Store) FindResumableSession(ctx context.Context, runID, filePath string, now time.Time) (*UploadSession, error) {
	row := s.db.QueryRowContext(ensureContext(ctx),
		`SELECT `+sessionColumns+` FROM upload_sessions
         WHERE run_id = ? AND file_path = ? AND state IN (?, ?) AND expires_at > ?
         ORDER BY updated_at DESC LIMIT 1`,
		runID, filePath, SessionPending, SessionInProgress, formatTime(now),
	)
	session, err := scanSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find resumable session: %w", err)
	}
	return session, nil
}

// ListSessions returns sessions newest first, optionally filtered by run.
func (s *Store) ListSessions(ctx context.Context, runID string, states ...SessionState) ([]*UploadSession, error) {
	var (
		clauses []string
		args    []any
	)
	if runID != "" {
		clauses = append(clauses, "run_id = ?")
		args = append(args, runID)
	}
	if len(states) > 0 {
		clauses = append(clauses, "state IN ("+makePlaceholders(len(states))+")")
		for _, state := range states {
			args = append(args, state)
		}
	}
	query := `SELECT ` + sessionColumns + ` FROM upload_sessions`
	if len(clauses) > 0 {
		query += ` WHERE ` + strings.Join(clauses, " AND ")
	}
	query += ` ORDER BY updated_at DESC`

	rows, err := s.db.QueryContext(ensureContext(ctx), query, args...)
	if err != nil {
		return nil, fmt.Errorf("list upload sessions: %w", err)
	}
	defer rows.Close()

	var sessions []*UploadSession
	for rows.Next() {
		session, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, session)
	}
	return sessions, rows.Err()
}

// ExpireSessions marks unfinished sessions whose lifetime has ended at now as
// failed and returns how many were changed.
func (s *Store) ExpireSessions(ctx context.Context, now time.Time) (int64, error) {
	res, err := s.execWithRetry(ctx,
		`UPDATE upload_sessions SET state = ?, error_message = 'session expired', updated_at = ?
         WHERE state IN (?, ?) AND expires_at <= ?`,
		SessionFailed,
		formatTime(now),
		SessionPending,
		SessionInProgress,
		formatTime(now),
	)
	if err != nil {
		return 0, fmt.Errorf("expire upload sessions: %w", err)
	}
	return res.RowsAffected()
}

func scanSession(scanner interface{ Scan(dest ...any) error }) (*UploadSession, error) {
	var (
		session      UploadSession
		location     sql.NullString
		videoID      sql.NullString
		errorMessage sql.NullString
		createdRaw   string
		updatedRaw   string
		expiresRaw   string
	)
	if err := scanner.Scan(
		&session.ID,
		&session.RunID,
		&session.FilePath,
		&session.FileSize,
		&location,
		&session.AckedOffset,
		&session.State,
		&videoID,
		&errorMessage,
		&createdRaw,
		&updatedRaw,
		&expiresRaw,
	); err != nil {
		return nil, err
	}
	session.Location = location.String
	session.VideoID = videoID.String
	session.ErrorMessage = errorMessage.String
	if t, err := parseTimeString(createdRaw); err == nil {
		session.CreatedAt = t
	}
	if t, err := parseTimeString(updatedRaw); err == nil {
		session.UpdatedAt = t
	}
	if t, err := parseTimeString(expiresRaw); err == nil {
		session.ExpiresAt = t
	}
	return &session, nil
}
