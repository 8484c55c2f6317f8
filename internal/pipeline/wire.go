package pipeline

import (
	"log/slog"
	"strings"

	"reelsmith/internal/compose"
	"reelsmith/internal/config"
	"reelsmith/internal/media/ffprobe"
	"reelsmith/internal/metadata"
	"reelsmith/internal/normalize"
	"reelsmith/internal/publish"
	"reelsmith/internal/services/local"
	"reelsmith/internal/services/openai"
	"reelsmith/internal/services/pexels"
	"reelsmith/internal/store"
)

// NewComponents builds the production collaborators: OpenAI for text and
// speech, Pexels for footage, ffmpeg for media, and the resumable publisher
// with sessions persisted in st.
func NewComponents(cfg *config.Config, st *store.Store, logger *slog.Logger) Components {
	prober := ffprobe.NewProber(cfg.FFprobeBinary(), cfg.ProbeTimeout())
	llm := openai.New(cfg.LLM, logger)
	return Components{
		Script:     llm,
		Narrator:   llm,
		Footage:    pexels.New(cfg.Footage, logger),
		Metadata:   llm,
		Prober:     prober,
		Normalizer: normalize.New(cfg.Media, prober, logger),
		Composer:   compose.New(cfg.Media, cfg.Overlays, prober, logger),
		Uploader:   publish.New(cfg.Publish, logger, publish.WithSessionStore(st)),
	}
}

// LocalInputs replaces remote collaborators with files on disk. Empty
// fields keep the existing collaborator.
type LocalInputs struct {
	ScriptPath   string
	AudioPath    string
	ClipsDir     string
	MetadataPath string
	// Links are appended to a metadata description, as the remote writer does.
	Links string
}

// Apply returns parts with the collaborators named in in swapped
// for local adapters. A local script also switches metadata to the local
// writer, which reads MetadataPath or derives a title from the script.
func (in LocalInputs) Apply(parts Components) Components {
	if p := strings.TrimSpace(in.ScriptPath); p != "" {
		parts.Script = local.ScriptFile{Path: p}
	}
	if p := strings.TrimSpace(in.AudioPath); p != "" {
		parts.Narrator = local.AudioFile{Path: p}
	}
	if p := strings.TrimSpace(in.ClipsDir); p != "" {
		parts.Footage = local.ClipDir{Dir: p}
	}
	if p := strings.TrimSpace(in.MetadataPath); p != "" || in.ScriptPath != "" {
		parts.Metadata = local.StaticMetadata{Path: p, Links: metadata.SplitList(in.Links)}
	}
	return parts
}
