package pipeline

import (
	"context"

	"reelsmith/internal/compose"
	"reelsmith/internal/metadata"
	"reelsmith/internal/normalize"
	"reelsmith/internal/publish"
)

// ScriptWriter produces the narration script for a topic.
type ScriptWriter interface {
	WriteScript(ctx context.Context, topic string) (string, error)
}

// Narrator synthesizes script into an audio file at outPath.
type Narrator interface {
	Narrate(ctx context.Context, script, outPath string) error
}

// FootageSource fills dir with source clips and returns their paths.
type FootageSource interface {
	FetchClips(ctx context.Context, dir string) ([]string, error)
}

// MetadataWriter describes script for the hosting platform.
type MetadataWriter interface {
	WriteMetadata(ctx context.Context, script string) (metadata.Metadata, error)
}

// DurationProber measures media durations.
type DurationProber interface {
	Duration(ctx context.Context, path string) (float64, error)
}

// ClipNormalizer converts source clips to the canonical format.
type ClipNormalizer interface {
	NormalizeAll(ctx context.Context, inputs []string, outDir string) (normalize.Batch, error)
}

// DeliverableComposer renders the final video.
type DeliverableComposer interface {
	Compose(ctx context.Context, req compose.Request) (compose.Result, error)
}

// Uploader publishes a deliverable.
type Uploader interface {
	Publish(ctx context.Context, req publish.Request) (publish.Result, error)
}

// Components wires the orchestrator to its collaborators. Uploader may be
// nil for compose-only runs; MetadataWriter may be nil when no metadata is
// wanted.
type Components struct {
	Script     ScriptWriter
	Narrator   Narrator
	Footage    FootageSource
	Metadata   MetadataWriter
	Prober     DurationProber
	Normalizer ClipNormalizer
	Composer   DeliverableComposer
	Uploader   Uploader
}
