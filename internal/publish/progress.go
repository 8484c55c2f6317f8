package publish

import (
	"log/slog"
	"os"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/schollz/progressbar/v3"

	"reelsmith/internal/logging"
)

// Progress observes transferred bytes. Write receives bytes as they are
// sent; Set records the offset the platform acknowledged.
type Progress interface {
	Write(p []byte) (int, error)
	Set(done int64)
	Finish()
}

// ProgressFactory creates a Progress for a transfer of total bytes that
// starts at done.
type ProgressFactory func(total, done int64) Progress

// DefaultProgress draws a bar on an interactive stderr and falls back to
// sampled log lines otherwise.
func DefaultProgress(logger *slog.Logger) ProgressFactory {
	return func(total, done int64) Progress {
		if isatty.IsTerminal(os.Stderr.Fd()) || isatty.IsCygwinTerminal(os.Stderr.Fd()) {
			return newBarProgress(total, done)
		}
		return newLogProgress(logger, total, done)
	}
}

type barProgress struct {
	bar *progressbar.ProgressBar
}

func newBarProgress(total, done int64) *barProgress {
	bar := progressbar.NewOptions64(total,
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionSetDescription("uploading"),
		progressbar.OptionShowBytes(true),
		progressbar.OptionShowCount(),
		progressbar.OptionSetWidth(30),
		progressbar.OptionThrottle(65*time.Millisecond),
		progressbar.OptionOnCompletion(func() { _, _ = os.Stderr.WriteString("\n") }),
		progressbar.OptionSpinnerType(14),
	)
	_ = bar.Set64(done)
	return &barProgress{bar: bar}
}

func (b *barProgress) Write(p []byte) (int, error) { return b.bar.Write(p) }
func (b *barProgress) Set(done int64)              { _ = b.bar.Set64(done) }
func (b *barProgress) Finish()                     { _ = b.bar.Finish() }

type logProgress struct {
	logger  *slog.Logger
	sampler *logging.ProgressSampler
	total   int64
	done    int64
}

func newLogProgress(logger *slog.Logger, total, done int64) *logProgress {
	if logger == nil {
		logger = logging.NewNop()
	}
	p := &logProgress{logger: logger, sampler: logging.NewProgressSampler(10), total: total, done: done}
	p.emit()
	return p
}

func (p *logProgress) Write(b []byte) (int, error) {
	p.done += int64(len(b))
	p.emit()
	return len(b), nil
}

func (p *logProgress) Set(done int64) {
	p.done = done
	p.emit()
}

func (p *logProgress) Finish() {
	p.done = p.total
	p.emit()
}

func (p *logProgress) emit() {
	if !p.sampler.ShouldLogBytes(p.done, p.total, "uploading") {
		return
	}
	percent := 0.0
	if p.total > 0 {
		percent = float64(p.done) * 100 / float64(p.total)
	}
	p.logger.Info("upload progress",
		logging.Bytes("sent", p.done),
		logging.Bytes("total", p.total),
		logging.Float64("percent", float64(int(percent*10))/10),
	)
}

type discardProgress struct{}

func (discardProgress) Write(p []byte) (int, error) { return len(p), nil }
func (discardProgress) Set(int64)                   {}
func (discardProgress) Finish()                     {}

// NoProgress reports nothing.
func NoProgress(int64, int64) Progress { return discardProgress{} }
