package pipeline

import (
	"context"
	"fmt"
	"strings"
	"time"

	"reelsmith/internal/logging"
	"reelsmith/internal/notifications"
	"reelsmith/internal/services"
	"reelsmith/internal/store"
)

type stageFunc func(context.Context, *run) (string, error)

// runStage executes fn as stage name, persisting the transition before and
// the outcome after. Failures are attributed to the stage, recorded in the
// store and run.json, and returned unchanged in kind.
func (o *Orchestrator) runStage(ctx context.Context, r *run, name string, fn stageFunc) error {
	stageCtx := services.WithStage(ctx, name)
	logger := logging.WithContext(stageCtx, logging.ForStage(o.logger, name, o.cfg.Logging.StageOverrides))

	started := time.Now().UTC()
	logger.Info("stage started", logging.String(logging.FieldEventType, "stage_start"))

	r.record.Stage = name
	r.record.Status = store.RunRunning
	if err := o.store.UpdateRun(stageCtx, r.record); err != nil {
		return fmt.Errorf("persist stage start: %w", err)
	}

	detail, err := fn(stageCtx, r)
	if err != nil {
		return o.failStage(stageCtx, r, name, started, err)
	}

	r.manifest.record(StageRecord{
		Name:       name,
		Status:     StageCompleted,
		StartedAt:  started,
		FinishedAt: time.Now().UTC(),
		Detail:     detail,
	})
	if err := r.manifest.save(r.layout.Manifest()); err != nil {
		return fmt.Errorf("persist stage result: %w", err)
	}
	logger.Info("stage completed",
		logging.String(logging.FieldEventType, "stage_complete"),
		logging.String("detail", detail),
		logging.Duration("elapsed", time.Since(started).Round(time.Millisecond)),
	)
	return nil
}

func (o *Orchestrator) skipStage(ctx context.Context, r *run, name, reason string) {
	now := time.Now().UTC()
	r.manifest.record(StageRecord{Name: name, Status: StageSkipped, StartedAt: now, FinishedAt: now, Detail: reason})
	logging.WithContext(services.WithStage(ctx, name), o.logger).Info("stage skipped",
		logging.String(logging.FieldEventType, "stage_skipped"),
		logging.String("reason", reason),
	)
}

func (o *Orchestrator) failStage(ctx context.Context, r *run, name string, started time.Time, stageErr error) error {
	err := &services.StageError{Stage: name, Err: stageErr}
	details := services.Details(err)
	message := strings.TrimSpace(stageErr.Error())

	logger := logging.WithContext(ctx, o.logger)
	logging.ErrorWithContext(logger, "stage failed", "stage_failure",
		logging.String(logging.FieldErrorKind, details.Kind),
		logging.Bool("timeout", details.Timeout),
		logging.Error(stageErr),
		logging.String(logging.FieldErrorHint, "artifacts are kept in "+r.layout.Dir),
	)

	// The caller's context may already be cancelled; the failure still has
	// to reach the store.
	persistCtx := context.WithoutCancel(ctx)
	r.record.Status = store.RunFailed
	r.record.Stage = name
	r.record.ErrorKind = details.Kind
	r.record.ErrorMessage = message
	if updateErr := o.store.UpdateRun(persistCtx, r.record); updateErr != nil {
		logger.Error("failed to persist stage failure", logging.Error(updateErr))
	}

	r.manifest.Status = store.RunFailed
	r.manifest.Failure = &details
	r.manifest.record(StageRecord{
		Name:       name,
		Status:     StageFailed,
		StartedAt:  started,
		FinishedAt: time.Now().UTC(),
		Detail:     message,
	})
	if saveErr := r.manifest.save(r.layout.Manifest()); saveErr != nil {
		logger.Error("failed to write run manifest", logging.Error(saveErr))
	}

	o.notify(persistCtx, notifications.EventError, notifications.Payload{
		"error":   stageErr,
		"context": fmt.Sprintf("%s (run %s)", name, r.record.ID),
	})
	return err
}
