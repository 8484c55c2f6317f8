package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory configuration.
type Paths struct {
	RunsDir  string `toml:"runs_dir"`
	LogDir   string `toml:"log_dir"`
	StateDir string `toml:"state_dir"`
}

// Media contains transcoding and composition settings.
type Media struct {
	FFmpegBinary        string  `toml:"ffmpeg_binary"`
	FFprobeBinary       string  `toml:"ffprobe_binary"`
	Width               int     `toml:"width"`
	Height              int     `toml:"height"`
	FrameRate           int     `toml:"frame_rate"`
	CRF                 int     `toml:"crf"`
	Preset              string  `toml:"preset"`
	PadColor            string  `toml:"pad_color"`
	AudioCodec          string  `toml:"audio_codec"`
	AudioBitrate        string  `toml:"audio_bitrate"`
	NormalizeWorkers    int     `toml:"normalize_workers"`
	SkipFailedClips     bool    `toml:"skip_failed_clips"`
	SafetyMarginSeconds float64 `toml:"safety_margin_seconds"`
	MaxEntries          int     `toml:"max_entries"`
	CapPolicy           string  `toml:"cap_policy"`
	ProbeTimeoutSeconds int     `toml:"probe_timeout_seconds"`
	FontFile            string  `toml:"font_file"`
}

// Overlay describes one burned-in caption and its visibility window.
//
// With anchor "start" the window is measured in seconds from the beginning of
// the deliverable. With anchor "end" both values count backwards from the end
// of the narration, so start=0 end=4 shows the caption for the final 4 seconds.
type Overlay struct {
	Text      string  `toml:"text"`
	FontSize  int     `toml:"font_size"`
	FontColor string  `toml:"font_color"`
	X         string  `toml:"x"`
	Y         string  `toml:"y"`
	Start     float64 `toml:"start"`
	End       float64 `toml:"end"`
	Anchor    string  `toml:"anchor"`
}

// LLM contains text and speech generation settings.
type LLM struct {
	APIKey         string  `toml:"api_key"`
	BaseURL        string  `toml:"base_url"`
	Model          string  `toml:"model"`
	TTSModel       string  `toml:"tts_model"`
	Voice          string  `toml:"voice"`
	Temperature    float64 `toml:"temperature"`
	MaxTokens      int     `toml:"max_tokens"`
	TimeoutSeconds int     `toml:"timeout_seconds"`
	AffiliateLinks string  `toml:"affiliate_links"`
}

// Footage contains stock footage search settings.
type Footage struct {
	APIKey         string `toml:"api_key"`
	BaseURL        string `toml:"base_url"`
	Query          string `toml:"query"`
	Count          int    `toml:"count"`
	PerPage        int    `toml:"per_page"`
	MinHeight      int    `toml:"min_height"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// Publish contains hosting platform credentials and upload tuning.
type Publish struct {
	ClientID              string `toml:"client_id"`
	ClientSecret          string `toml:"client_secret"`
	RefreshToken          string `toml:"refresh_token"`
	TokenURL              string `toml:"token_url"`
	UploadURL             string `toml:"upload_url"`
	Privacy               string `toml:"privacy"`
	CategoryID            string `toml:"category_id"`
	ChunkSizeKiB          int    `toml:"chunk_size_kib"`
	RequestTimeoutSeconds int    `toml:"request_timeout_seconds"`
	SessionTTLHours       int    `toml:"session_ttl_hours"`
}

// Notifications contains configuration for ntfy push notifications.
type Notifications struct {
	NtfyTopic      string `toml:"ntfy_topic"`
	RequestTimeout int    `toml:"request_timeout"`
	RunComplete    bool   `toml:"run_complete"`
	Published      bool   `toml:"published"`
	Errors         bool   `toml:"errors"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format         string            `toml:"format"`
	Level          string            `toml:"level"`
	StageOverrides map[string]string `toml:"stage_overrides"`
}

// Config encapsulates all configuration values for reelsmith.
//
// Configuration sections by subsystem:
//   - Paths: run, log, and state directories
//   - Media: ffmpeg binaries, canvas geometry, encode and timeline bounds
//   - Overlays: timed captions burned into the deliverable
//   - LLM: script, narration, and metadata generation
//   - Footage: stock clip search
//   - Publish: platform credentials and resumable upload tuning
//   - Notifications: ntfy push notification settings
//   - Logging: log format and level
type Config struct {
	Paths         Paths         `toml:"paths"`
	Media         Media         `toml:"media"`
	Overlays      []Overlay     `toml:"overlays"`
	LLM           LLM           `toml:"llm"`
	Footage       Footage       `toml:"footage"`
	Publish       Publish       `toml:"publish"`
	Notifications Notifications `toml:"notifications"`
	Logging       Logging       `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath(defaultConfigPath)
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := expandPath(defaultConfigPath)
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("reelsmith.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates the run, log, and state directories.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.RunsDir, c.Paths.LogDir, c.Paths.StateDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// DatabasePath returns the location of the run/session store.
func (c *Config) DatabasePath() string {
	return filepath.Join(c.Paths.StateDir, "reelsmith.db")
}

// FFmpegBinary returns the ffmpeg executable used for transcoding.
func (c *Config) FFmpegBinary() string {
	if v := strings.TrimSpace(c.Media.FFmpegBinary); v != "" {
		return v
	}
	return defaultFFmpegBinary
}

// FFprobeBinary returns the ffprobe executable name used for media validation.
func (c *Config) FFprobeBinary() string {
	if v := strings.TrimSpace(c.Media.FFprobeBinary); v != "" {
		return v
	}
	return defaultFFprobeBinary
}

// ProbeTimeout returns the per-file ffprobe deadline.
func (c *Config) ProbeTimeout() time.Duration {
	return time.Duration(c.Media.ProbeTimeoutSeconds) * time.Second
}

// SessionTTL bounds how long a persisted upload session is considered resumable.
func (c *Config) SessionTTL() time.Duration {
	return time.Duration(c.Publish.SessionTTLHours) * time.Hour
}

// ChunkSize returns the upload segment size in bytes; zero means a single request.
func (c *Config) ChunkSize() int64 {
	return int64(c.Publish.ChunkSizeKiB) * 1024
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
