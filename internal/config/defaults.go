package config

import "runtime"

const (
	defaultConfigPath          = "~/.config/reelsmith/config.toml"
	defaultRunsDir             = "~/.local/share/reelsmith/runs"
	defaultLogDir              = "~/.local/share/reelsmith/logs"
	defaultStateDir            = "~/.local/share/reelsmith"
	defaultFFmpegBinary        = "ffmpeg"
	defaultFFprobeBinary       = "ffprobe"
	defaultWidth               = 1080
	defaultHeight              = 1920
	defaultFrameRate           = 30
	defaultCRF                 = 23
	defaultPreset              = "veryfast"
	defaultPadColor            = "black"
	defaultAudioCodec          = "aac"
	defaultAudioBitrate        = "192k"
	defaultMaxNormalizeWorkers = 4
	defaultSafetyMargin        = 1.0
	defaultMaxEntries          = 50
	defaultCapPolicy           = CapPolicyWarn
	defaultProbeTimeout        = 30
	defaultLLMBaseURL          = "https://api.openai.com/v1"
	defaultLLMModel            = "gpt-4o-mini"
	defaultTTSModel            = "gpt-4o-mini-tts"
	defaultVoice               = "alloy"
	defaultTemperature         = 0.9
	defaultMaxTokens           = 220
	defaultLLMTimeout          = 120
	defaultFootageBaseURL      = "https://api.pexels.com"
	defaultFootageQuery        = "artificial intelligence, technology, typing computer"
	defaultFootageCount        = 5
	defaultFootagePerPage      = 20
	defaultFootageMinHeight    = 1280
	defaultFootageTimeout      = 120
	defaultTokenURL            = "https://oauth2.googleapis.com/token"
	defaultUploadURL           = "https://www.googleapis.com/upload/youtube/v3/videos"
	defaultPrivacy             = "public"
	defaultCategoryID          = "28"
	defaultChunkSizeKiB        = 8192
	defaultPublishTimeout      = 300
	defaultSessionTTLHours     = 24
	defaultNotifyTimeout       = 10
	defaultLogFormat           = "console"
	defaultLogLevel            = "info"
)

// Repetition cap policies.
const (
	CapPolicyWarn = "warn"
	CapPolicyFail = "fail"
)

// Overlay anchors.
const (
	AnchorStart = "start"
	AnchorEnd   = "end"
)

// DefaultOverlays returns the hook caption and call-to-action used when the
// configuration does not declare any overlays.
func DefaultOverlays() []Overlay {
	return []Overlay{
		{
			Text:      "AI Money Hacks",
			FontSize:  64,
			FontColor: "white",
			X:         "(w-text_w)/2",
			Y:         "80",
			Start:     0,
			End:       3,
			Anchor:    AnchorStart,
		},
		{
			Text:      "Links in description",
			FontSize:  42,
			FontColor: "white",
			X:         "(w-text_w)/2",
			Y:         "h-th-100",
			Start:     6,
			End:       10,
			Anchor:    AnchorStart,
		},
	}
}

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			RunsDir:  defaultRunsDir,
			LogDir:   defaultLogDir,
			StateDir: defaultStateDir,
		},
		Media: Media{
			FFmpegBinary:        defaultFFmpegBinary,
			FFprobeBinary:       defaultFFprobeBinary,
			Width:               defaultWidth,
			Height:              defaultHeight,
			FrameRate:           defaultFrameRate,
			CRF:                 defaultCRF,
			Preset:              defaultPreset,
			PadColor:            defaultPadColor,
			AudioCodec:          defaultAudioCodec,
			AudioBitrate:        defaultAudioBitrate,
			NormalizeWorkers:    defaultNormalizeWorkers(),
			SkipFailedClips:     true,
			SafetyMarginSeconds: defaultSafetyMargin,
			MaxEntries:          defaultMaxEntries,
			CapPolicy:           defaultCapPolicy,
			ProbeTimeoutSeconds: defaultProbeTimeout,
		},
		LLM: LLM{
			BaseURL:        defaultLLMBaseURL,
			Model:          defaultLLMModel,
			TTSModel:       defaultTTSModel,
			Voice:          defaultVoice,
			Temperature:    defaultTemperature,
			MaxTokens:      defaultMaxTokens,
			TimeoutSeconds: defaultLLMTimeout,
		},
		Footage: Footage{
			BaseURL:        defaultFootageBaseURL,
			Query:          defaultFootageQuery,
			Count:          defaultFootageCount,
			PerPage:        defaultFootagePerPage,
			MinHeight:      defaultFootageMinHeight,
			TimeoutSeconds: defaultFootageTimeout,
		},
		Publish: Publish{
			TokenURL:              defaultTokenURL,
			UploadURL:             defaultUploadURL,
			Privacy:               defaultPrivacy,
			CategoryID:            defaultCategoryID,
			ChunkSizeKiB:          defaultChunkSizeKiB,
			RequestTimeoutSeconds: defaultPublishTimeout,
			SessionTTLHours:       defaultSessionTTLHours,
		},
		Notifications: Notifications{
			RequestTimeout: defaultNotifyTimeout,
			RunComplete:    true,
			Published:      true,
			Errors:         true,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}

func defaultNormalizeWorkers() int {
	return max(1, min(defaultMaxNormalizeWorkers, runtime.NumCPU()))
}
