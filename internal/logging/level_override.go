package logging

import (
	"context"
	"log/slog"
)

// minLevelHandler drops records below min before they reach the wrapped
// handler. The wrapped handler keeps the process-wide level.
type minLevelHandler struct {
	slog.Handler
	min slog.Leveler
}

func (h minLevelHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return level >= h.min.Level() && h.Handler.Enabled(ctx, level)
}

func (h minLevelHandler) Handle(ctx context.Context, record slog.Record) error {
	if record.Level < h.min.Level() {
		return nil
	}
	return h.Handler.Handle(ctx, record)
}

func (h minLevelHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return minLevelHandler{Handler: h.Handler.WithAttrs(attrs), min: h.min}
}

func (h minLevelHandler) WithGroup(name string) slog.Handler {
	return minLevelHandler{Handler: h.Handler.WithGroup(name), min: h.min}
}

// WithLevelOverride returns logger with its minimum level replaced by level.
// Attributes already bound to logger are kept; repeated overrides do not nest.
func WithLevelOverride(logger *slog.Logger, level slog.Level) *slog.Logger {
	if logger == nil {
		return NewNop()
	}
	handler := logger.Handler()
	if existing, ok := handler.(minLevelHandler); ok {
		handler = existing.Handler
	}
	return slog.New(minLevelHandler{Handler: handler, min: level})
}
