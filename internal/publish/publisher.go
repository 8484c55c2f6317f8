package publish

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"

	"reelsmith/internal/config"
	"reelsmith/internal/logging"
	"reelsmith/internal/services"
	"reelsmith/internal/store"
)

// SessionStore persists upload sessions so an interrupted upload can resume.
type SessionStore interface {
	FindResumableSession(ctx context.Context, runID, filePath string, now time.Time) (*store.UploadSession, error)
	SaveSession(ctx context.Context, session *store.UploadSession) error
	UpdateSessionOffset(ctx context.Context, id string, offset int64) error
}

// Request names the deliverable to publish.
type Request struct {
	// RunID scopes persisted sessions. Sessions are not persisted when empty.
	RunID    string
	FilePath string
	Metadata Metadata
}

// Result reports a completed upload.
type Result struct {
	VideoID     string    `json:"video_id"`
	SessionID   string    `json:"session_id"`
	Bytes       int64     `json:"bytes"`
	Resumed     bool      `json:"resumed"`
	ResumedFrom int64     `json:"resumed_from,omitempty"`
	Chunks      int       `json:"chunks"`
	CompletedAt time.Time `json:"completed_at"`
}

// Publisher uploads a deliverable through a resumable session.
type Publisher struct {
	auth       Authenticator
	client     *Client
	sessions   SessionStore
	chunkSize  int64
	sessionTTL time.Duration
	progress   ProgressFactory
	now        func() time.Time
	logger     *slog.Logger
}

// Option configures a Publisher.
type Option func(*options)

type options struct {
	httpClient *http.Client
	auth       Authenticator
	sessions   SessionStore
	chunkSize  *int64
	progress   ProgressFactory
	now        func() time.Time
}

// WithHTTPClient routes token and upload requests through client.
func WithHTTPClient(client *http.Client) Option {
	return func(o *options) { o.httpClient = client }
}

// WithAuthenticator replaces the OAuth refresh-token authenticator.
func WithAuthenticator(auth Authenticator) Option {
	return func(o *options) { o.auth = auth }
}

// WithSessionStore persists sessions in sessions.
func WithSessionStore(sessions SessionStore) Option {
	return func(o *options) { o.sessions = sessions }
}

// WithChunkSize overrides the configured chunk size in bytes. Zero sends the
// whole file in one request.
func WithChunkSize(bytes int64) Option {
	return func(o *options) { o.chunkSize = &bytes }
}

// WithProgress replaces the default progress reporting.
func WithProgress(factory ProgressFactory) Option {
	return func(o *options) { o.progress = factory }
}

// WithClock overrides time.Now for session bookkeeping.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

// New constructs a Publisher from publish configuration.
func New(cfg config.Publish, logger *slog.Logger, opts ...Option) *Publisher {
	if logger == nil {
		logger = logging.NewNop()
	}
	logger = logging.NewComponentLogger(logger, "publisher")

	o := options{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.httpClient == nil {
		o.httpClient = &http.Client{}
	}
	if o.auth == nil {
		o.auth = NewOAuthAuthenticator(cfg, o.httpClient)
	}
	chunk := int64(cfg.ChunkSizeKiB) * 1024
	if o.chunkSize != nil {
		chunk = *o.chunkSize
	}
	if o.progress == nil {
		o.progress = DefaultProgress(logger)
	}
	if o.now == nil {
		o.now = time.Now
	}
	ttl := time.Duration(cfg.SessionTTLHours) * time.Hour
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Publisher{
		auth:       o.auth,
		client:     NewClient(cfg.UploadURL, o.httpClient, time.Duration(cfg.RequestTimeoutSeconds)*time.Second),
		sessions:   o.sessions,
		chunkSize:  max(chunk, 0),
		sessionTTL: ttl,
		progress:   o.progress,
		now:        o.now,
		logger:     logger,
	}
}

// Authenticate exchanges the configured credential for an access token.
func (p *Publisher) Authenticate(ctx context.Context) (string, error) {
	return p.auth.Token(ctx)
}

// Publish uploads req.FilePath and returns the platform's video id. A
// persisted session for the same run and file is resumed from the offset
// the platform reports instead of starting over.
func (p *Publisher) Publish(ctx context.Context, req Request) (Result, error) {
	return p.publish(ctx, req, false)
}

// Resume continues a persisted session for req. Unlike Publish it never
// opens a new session and fails with ErrSession when none is resumable.
func (p *Publisher) Resume(ctx context.Context, req Request) (Result, error) {
	return p.publish(ctx, req, true)
}

func (p *Publisher) publish(ctx context.Context, req Request, resumeOnly bool) (Result, error) {
	logger := logging.WithContext(ctx, p.logger)
	m := newMachine(logger)

	if err := req.Metadata.Validate(); err != nil {
		return Result{}, err
	}
	info, err := os.Stat(req.FilePath)
	if err != nil {
		return Result{}, services.Wrap(services.ErrInput, stageName, "stat deliverable", req.FilePath, err)
	}
	if !info.Mode().IsRegular() || info.Size() == 0 {
		return Result{}, services.Wrap(services.ErrInput, stageName, "stat deliverable", "deliverable is empty or not a regular file", nil)
	}
	size := info.Size()

	token, err := p.auth.Token(ctx)
	if err != nil {
		return Result{}, err
	}
	if err := m.to(StateAuthenticated); err != nil {
		return Result{}, err
	}

	session, start, done, err := p.resume(ctx, logger, token, req, size)
	if err != nil {
		m.fail()
		return Result{}, err
	}
	if done != nil {
		if err := m.to(StateCompleted); err != nil {
			return Result{}, err
		}
		return *done, nil
	}

	resumed := session != nil
	if session == nil && resumeOnly {
		m.fail()
		return Result{}, services.Wrap(services.ErrSession, stageName, "resume", "no resumable session for "+req.FilePath, nil)
	}
	if session == nil {
		location, err := p.client.OpenSession(ctx, token, req.Metadata, size)
		if err != nil {
			m.fail()
			return Result{}, err
		}
		now := p.now().UTC()
		session = &store.UploadSession{
			ID:        uuid.NewString(),
			RunID:     req.RunID,
			FilePath:  req.FilePath,
			FileSize:  size,
			Location:  location,
			State:     store.SessionPending,
			ExpiresAt: now.Add(p.sessionTTL),
		}
		if err := p.save(ctx, session); err != nil {
			m.fail()
			return Result{}, err
		}
		logger.Info("upload session opened",
			logging.String("session_id", session.ID),
			logging.Bytes("size", size),
			logging.String(logging.FieldEventType, "session_opened"),
		)
	}
	if err := m.to(StateSessionOpen); err != nil {
		return Result{}, err
	}
	if err := m.to(StateUploading); err != nil {
		return Result{}, err
	}

	result, err := p.transfer(ctx, logger, session, start)
	if err != nil {
		m.fail()
		p.recordFailure(ctx, logger, session, err)
		return Result{}, err
	}
	if err := m.to(StateCompleted); err != nil {
		return Result{}, err
	}
	result.Resumed = resumed
	if resumed {
		result.ResumedFrom = start
	}
	session.State = store.SessionCompleted
	session.AckedOffset = size
	session.VideoID = result.VideoID
	session.ErrorMessage = ""
	if err := p.save(ctx, session); err != nil {
		logging.WarnWithContext(logger, "failed to record completed session", "session_save_failed",
			logging.String("session_id", session.ID),
			logging.Error(err),
			logging.String(logging.FieldImpact, "session row still shows the upload as unfinished"),
		)
	}
	logger.Info("upload completed",
		logging.String("video_id", result.VideoID),
		logging.String("session_id", session.ID),
		logging.Bool("resumed", resumed),
		logging.String(logging.FieldEventType, "upload_completed"),
	)
	return result, nil
}

// resume looks for a persisted session and asks the platform where it left
// off. A nil session means a new one must be opened. A non-nil done result
// means the platform already holds the whole file.
func (p *Publisher) resume(ctx context.Context, logger *slog.Logger, token string, req Request, size int64) (*store.UploadSession, int64, *Result, error) {
	if p.sessions == nil || req.RunID == "" {
		return nil, 0, nil, nil
	}
	session, err := p.sessions.FindResumableSession(ctx, req.RunID, req.FilePath, p.now().UTC())
	if err != nil {
		return nil, 0, nil, services.Wrap(services.ErrSession, stageName, "find session", "session store lookup failed", err)
	}
	if session == nil {
		return nil, 0, nil, nil
	}
	if session.FileSize != size || session.Location == "" {
		p.abandon(ctx, logger, session, "deliverable changed since the session was opened")
		return nil, 0, nil, nil
	}

	ack, err := p.client.QueryOffset(ctx, token, session.Location, size)
	switch {
	case errors.Is(err, ErrSessionExpired):
		p.abandon(ctx, logger, session, "platform no longer recognizes the session")
		return nil, 0, nil, nil
	case err != nil:
		return nil, 0, nil, err
	}
	if ack.Complete {
		session.State = store.SessionCompleted
		session.AckedOffset = size
		session.VideoID = ack.VideoID
		if err := p.save(ctx, session); err != nil {
			return nil, 0, nil, err
		}
		return session, size, &Result{
			VideoID:     ack.VideoID,
			SessionID:   session.ID,
			Bytes:       size,
			Resumed:     true,
			ResumedFrom: size,
			CompletedAt: p.now().UTC(),
		}, nil
	}
	if ack.Offset > size {
		return nil, 0, nil, services.Wrap(services.ErrTransfer, stageName, "query offset", fmt.Sprintf("platform reports %d of %d bytes", ack.Offset, size), nil)
	}
	session.AckedOffset = ack.Offset
	logger.Info("resuming upload session",
		logging.String("session_id", session.ID),
		logging.Bytes("acknowledged", ack.Offset),
		logging.Bytes("size", size),
		logging.String(logging.FieldEventType, "session_resumed"),
	)
	return session, ack.Offset, nil, nil
}

func (p *Publisher) transfer(ctx context.Context, logger *slog.Logger, session *store.UploadSession, start int64) (Result, error) {
	file, err := os.Open(session.FilePath)
	if err != nil {
		return Result{}, services.Wrap(services.ErrInput, stageName, "open deliverable", session.FilePath, err)
	}
	defer file.Close()

	size := session.FileSize
	progress := p.progress(size, start)
	defer progress.Finish()

	offset := start
	chunks := 0
	for {
		if err := ctx.Err(); err != nil {
			return Result{}, services.Wrap(services.ErrTransfer, stageName, "upload", "cancelled", err)
		}
		if offset >= size {
			// Every byte is acknowledged but no id was returned.
			return p.finalize(ctx, session, chunks)
		}
		end := size
		if p.chunkSize > 0 {
			end = min(offset+p.chunkSize, size)
		}

		token, err := p.auth.Token(ctx)
		if err != nil {
			return Result{}, err
		}
		body := io.TeeReader(io.NewSectionReader(file, offset, end-offset), progress)
		ack, err := p.client.PutChunk(ctx, token, session.Location, body, offset, end, size)
		if err != nil {
			return Result{}, err
		}
		chunks++
		if ack.Complete {
			progress.Set(size)
			return Result{
				VideoID:     ack.VideoID,
				SessionID:   session.ID,
				Bytes:       size,
				Chunks:      chunks,
				CompletedAt: p.now().UTC(),
			}, nil
		}
		if ack.Offset <= offset {
			return Result{}, services.Wrap(services.ErrTransfer, stageName, "upload",
				fmt.Sprintf("platform acknowledged %d bytes after chunk starting at %d", ack.Offset, offset), nil)
		}
		offset = min(ack.Offset, size)
		progress.Set(offset)
		session.AckedOffset = offset
		session.State = store.SessionInProgress
		if err := p.updateOffset(ctx, session.ID, offset); err != nil {
			logging.WarnWithContext(logger, "failed to persist upload offset", "session_offset_failed",
				logging.String("session_id", session.ID),
				logging.Int64("offset", offset),
				logging.Error(err),
				logging.String(logging.FieldImpact, "a resumed upload will re-query the platform for its offset"),
			)
		}
	}
}

func (p *Publisher) finalize(ctx context.Context, session *store.UploadSession, chunks int) (Result, error) {
	token, err := p.auth.Token(ctx)
	if err != nil {
		return Result{}, err
	}
	ack, err := p.client.QueryOffset(ctx, token, session.Location, session.FileSize)
	if err != nil {
		return Result{}, err
	}
	if !ack.Complete {
		return Result{}, services.Wrap(services.ErrTransfer, stageName, "upload",
			fmt.Sprintf("platform holds %d of %d bytes but did not complete", ack.Offset, session.FileSize), nil)
	}
	return Result{
		VideoID:     ack.VideoID,
		SessionID:   session.ID,
		Bytes:       session.FileSize,
		Chunks:      chunks,
		CompletedAt: p.now().UTC(),
	}, nil
}

// recordFailure keeps transfer failures resumable and closes sessions that
// can never complete.
func (p *Publisher) recordFailure(ctx context.Context, logger *slog.Logger, session *store.UploadSession, cause error) {
	session.ErrorMessage = strings.TrimSpace(cause.Error())
	switch {
	case errors.Is(cause, services.ErrTransfer), errors.Is(cause, services.ErrAuth):
		if session.AckedOffset > 0 {
			session.State = store.SessionInProgress
		}
	default:
		session.State = store.SessionFailed
	}
	if err := p.save(context.WithoutCancel(ctx), session); err != nil {
		logging.WarnWithContext(logger, "failed to record upload failure", "session_save_failed",
			logging.String("session_id", session.ID),
			logging.Error(err),
		)
	}
}

func (p *Publisher) abandon(ctx context.Context, logger *slog.Logger, session *store.UploadSession, reason string) {
	logging.WarnWithContext(logger, "discarding upload session", "session_discarded",
		logging.String("session_id", session.ID),
		logging.String("reason", reason),
		logging.String(logging.FieldImpact, "upload restarts from the first byte"),
	)
	session.State = store.SessionFailed
	session.ErrorMessage = reason
	if err := p.save(ctx, session); err != nil {
		logging.WarnWithContext(logger, "failed to record discarded session", "session_save_failed",
			logging.String("session_id", session.ID),
			logging.Error(err),
		)
	}
}

func (p *Publisher) save(ctx context.Context, session *store.UploadSession) error {
	if p.sessions == nil || session.RunID == "" {
		return nil
	}
	if err := p.sessions.SaveSession(ctx, session); err != nil {
		return services.Wrap(services.ErrSession, stageName, "save session", session.ID, err)
	}
	return nil
}

func (p *Publisher) updateOffset(ctx context.Context, id string, offset int64) error {
	if p.sessions == nil {
		return nil
	}
	return p.sessions.UpdateSessionOffset(ctx, id, offset)
}
