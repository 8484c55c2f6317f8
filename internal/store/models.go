package store

import "time"

// RunStatus is the lifecycle state of a pipeline run.
type RunStatus string

const (
	RunPending   RunStatus = "pending"
	RunRunning   RunStatus = "running"
	RunComposed  RunStatus = "composed"
	RunCompleted RunStatus = "completed"
	RunFailed    RunStatus = "failed"
)

// Run is the persisted record of one pipeline run. Artifacts live in Dir;
// the database only tracks where the run is and how it ended.
type Run struct {
	ID              string
	Dir             string
	Status          RunStatus
	Stage           string
	ComposeOnly     bool
	DeliverablePath string
	VideoID         string
	ErrorKind       string
	ErrorMessage    string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// SessionState is the lifecycle state of a resumable upload session.
type SessionState string

const (
	SessionPending    SessionState = "pending"
	SessionInProgress SessionState = "in_progress"
	SessionCompleted  SessionState = "completed"
	SessionFailed     SessionState = "failed"
)

// Resumable reports whether a session in this state can still accept bytes.
func (s SessionState) Resumable() bool {
	return s == SessionPending || s == SessionInProgress
}

// UploadSession is a persisted resumable upload. Location is the remote
// session URI; AckedOffset is the number of bytes the platform has confirmed.
type UploadSession struct {
	ID           string
	RunID        string
	FilePath     string
	FileSize     int64
	Location     string
	AckedOffset  int64
	State        SessionState
	VideoID      string
	ErrorMessage string
	CreatedAt    time.Time
	UpdatedAt    time.Time
	ExpiresAt    time.Time
}

// Expired reports whether the remote session location is past its lifetime.
func (s *UploadSession) Expired(now time.Time) bool {
	return !s.ExpiresAt.IsZero() && !now.Before(s.ExpiresAt)
}

// DatabaseHealth describes database diagnostics for the status command.
type DatabaseHealth struct {
	DBPath           string
	DatabaseExists   bool
	DatabaseReadable bool
	SchemaVersion    int
	Error            string
}
