package services

import (
	"errors"
	"fmt"
	"strings"
)

// Stage failure markers. Every error that leaves a pipeline stage carries
// exactly one of the stage markers below, optionally combined with
// ErrTimeout when the failure was a deadline.
var (
	ErrProbe     = errors.New("probe error")
	ErrNormalize = errors.New("normalize error")
	ErrCompose   = errors.New("compose error")
	ErrAuth      = errors.New("auth error")
	ErrSession   = errors.New("session error")
	ErrTransfer  = errors.New("transfer error")
	ErrInput     = errors.New("input error")

	ErrTimeout       = errors.New("timeout")
	ErrConfiguration = errors.New("configuration error")
	ErrExternalTool  = errors.New("external tool error")
)

// kinds lists markers in classification order. Stage markers come first so a
// timeout during a transfer is still reported as a TransferError.
var kinds = []struct {
	marker error
	name   string
}{
	{ErrProbe, "ProbeError"},
	{ErrNormalize, "NormalizeError"},
	{ErrCompose, "ComposeError"},
	{ErrAuth, "AuthError"},
	{ErrSession, "SessionError"},
	{ErrTransfer, "TransferError"},
	{ErrInput, "InputError"},
	{ErrTimeout, "TimeoutError"},
	{ErrConfiguration, "ConfigurationError"},
	{ErrExternalTool, "ExternalToolError"},
}

// Wrap builds an error message that includes stage context while tagging it with
// the provided marker for later classification. The marker should be one of
// the exported sentinel errors above.
func Wrap(marker error, stage, operation, message string, err error) error {
	detail := buildDetail(stage, operation, message)
	if marker == nil {
		marker = ErrExternalTool
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// WrapTimeout tags err with both the stage marker and ErrTimeout.
func WrapTimeout(marker error, stage, operation, message string, err error) error {
	wrapped := Wrap(marker, stage, operation, message, err)
	return fmt.Errorf("%w: %w", ErrTimeout, wrapped)
}

// Kind returns the taxonomy name for err, or "Error" when no marker matches.
func Kind(err error) string {
	if err == nil {
		return ""
	}
	for _, k := range kinds {
		if errors.Is(err, k.marker) {
			return k.name
		}
	}
	return "Error"
}

// IsTimeout reports whether err was caused by a deadline.
func IsTimeout(err error) bool {
	return errors.Is(err, ErrTimeout)
}

// ErrorDetails summarizes a failure for run reports.
type ErrorDetails struct {
	Kind    string `json:"kind"`
	Stage   string `json:"stage,omitempty"`
	Message string `json:"message"`
	Timeout bool   `json:"timeout,omitempty"`
}

// Details extracts a report-friendly summary from err.
func Details(err error) ErrorDetails {
	if err == nil {
		return ErrorDetails{}
	}
	details := ErrorDetails{
		Kind:    Kind(err),
		Message: strings.TrimSpace(err.Error()),
		Timeout: IsTimeout(err),
	}
	var stageErr *StageError
	if errors.As(err, &stageErr) {
		details.Stage = stageErr.Stage
	}
	return details
}

// StageError attributes a failure to the pipeline stage that produced it.
type StageError struct {
	Stage string
	Err   error
}

func (e *StageError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("stage %s failed", e.Stage)
	}
	return fmt.Sprintf("stage %s failed: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

// FailedStage returns the stage recorded on err, if any.
func FailedStage(err error) (string, bool) {
	var stageErr *StageError
	if errors.As(err, &stageErr) && stageErr.Stage != "" {
		return stageErr.Stage, true
	}
	return "", false
}

func buildDetail(stage, operation, message string) string {
	parts := make([]string, 0, 3)
	if stage = strings.TrimSpace(stage); stage != "" {
		parts = append(parts, stage)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}
