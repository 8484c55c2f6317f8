package normalize

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/samber/lo"
	"golang.org/x/sync/errgroup"

	"reelsmith/internal/logging"
	"reelsmith/internal/services"
)

// Failure records a clip that could not be normalized.
type Failure struct {
	Source string `json:"source"`
	Error  string `json:"error"`
}

// Batch is the outcome of normalizing a clip set. Clips keeps input order.
type Batch struct {
	Clips  []Clip    `json:"clips"`
	Failed []Failure `json:"failed,omitempty"`
}

// OutputName returns the normalized file name for the i-th input (0-based).
func OutputName(i int) string {
	return fmt.Sprintf("v_%d.mp4", i+1)
}

// NormalizeAll normalizes inputs into outDir with bounded concurrency. When
// failed clips are skipped, failures are logged and reported in
// Batch.Failed; otherwise the first failure cancels the batch. A batch with
// no usable clip fails with services.ErrInput.
func (n *Normalizer) NormalizeAll(ctx context.Context, inputs []string, outDir string) (Batch, error) {
	logger := logging.WithContext(ctx, n.logger)
	if len(inputs) == 0 {
		return Batch{}, services.Wrap(services.ErrInput, stageName, "normalize batch", "no input clips", nil)
	}

	results := make([]*Clip, len(inputs))
	failures := make([]error, len(inputs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(n.workers)
	for i, input := range inputs {
		g.Go(func() error {
			clip, err := n.Normalize(gctx, input, filepath.Join(outDir, OutputName(i)))
			if err != nil {
				if n.skipFailed && gctx.Err() == nil {
					failures[i] = err
					logging.WarnWithContext(logger, "skipping clip that failed to normalize", "clip_skipped",
						logging.String("source", input),
						logging.Error(err),
						logging.String(logging.FieldErrorKind, services.Kind(err)),
						logging.String(logging.FieldImpact, "clip omitted from the timeline"),
						logging.String(logging.FieldErrorHint, "inspect the source file with ffprobe"),
					)
					return nil
				}
				return err
			}
			results[i] = &clip
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Batch{}, err
	}

	batch := Batch{
		Clips: lo.FilterMap(results, func(c *Clip, _ int) (Clip, bool) {
			if c == nil {
				return Clip{}, false
			}
			return *c, true
		}),
	}
	for i, err := range failures {
		if err != nil {
			batch.Failed = append(batch.Failed, Failure{Source: inputs[i], Error: err.Error()})
		}
	}

	if len(batch.Clips) == 0 {
		return batch, services.Wrap(services.ErrInput, stageName, "normalize batch",
			fmt.Sprintf("all %d clips failed to normalize", len(inputs)), nil)
	}
	logger.Info("clip batch normalized",
		logging.Int("normalized", len(batch.Clips)),
		logging.Int("failed", len(batch.Failed)),
		logging.Int("workers", n.workers),
	)
	return batch, nil
}
