package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	if err := c.normalizeMedia(); err != nil {
		return err
	}
	c.normalizeOverlays()
	c.normalizeLLM()
	c.normalizeFootage()
	c.normalizePublish()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.RunsDir) == "" {
		c.Paths.RunsDir = defaultRunsDir
	}
	if c.Paths.RunsDir, err = expandPath(c.Paths.RunsDir); err != nil {
		return fmt.Errorf("paths.runs_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.StateDir) == "" {
		c.Paths.StateDir = defaultStateDir
	}
	if c.Paths.StateDir, err = expandPath(c.Paths.StateDir); err != nil {
		return fmt.Errorf("paths.state_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeMedia() error {
	c.Media.FFmpegBinary = strings.TrimSpace(c.Media.FFmpegBinary)
	if c.Media.FFmpegBinary == "" {
		c.Media.FFmpegBinary = defaultFFmpegBinary
	}
	c.Media.FFprobeBinary = strings.TrimSpace(c.Media.FFprobeBinary)
	if c.Media.FFprobeBinary == "" {
		c.Media.FFprobeBinary = defaultFFprobeBinary
	}
	c.Media.Preset = strings.ToLower(strings.TrimSpace(c.Media.Preset))
	if c.Media.Preset == "" {
		c.Media.Preset = defaultPreset
	}
	c.Media.PadColor = strings.TrimSpace(c.Media.PadColor)
	if c.Media.PadColor == "" {
		c.Media.PadColor = defaultPadColor
	}
	c.Media.AudioCodec = strings.TrimSpace(c.Media.AudioCodec)
	if c.Media.AudioCodec == "" {
		c.Media.AudioCodec = defaultAudioCodec
	}
	c.Media.AudioBitrate = strings.TrimSpace(c.Media.AudioBitrate)
	if c.Media.AudioBitrate == "" {
		c.Media.AudioBitrate = defaultAudioBitrate
	}
	if c.Media.NormalizeWorkers <= 0 {
		c.Media.NormalizeWorkers = defaultNormalizeWorkers()
	}
	c.Media.CapPolicy = strings.ToLower(strings.TrimSpace(c.Media.CapPolicy))
	if c.Media.CapPolicy == "" {
		c.Media.CapPolicy = defaultCapPolicy
	}
	if strings.TrimSpace(c.Media.FontFile) != "" {
		var err error
		if c.Media.FontFile, err = expandPath(c.Media.FontFile); err != nil {
			return fmt.Errorf("media.font_file: %w", err)
		}
	}
	return nil
}

func (c *Config) normalizeOverlays() {
	if len(c.Overlays) == 0 {
		c.Overlays = DefaultOverlays()
		return
	}
	for i := range c.Overlays {
		o := &c.Overlays[i]
		o.Anchor = strings.ToLower(strings.TrimSpace(o.Anchor))
		if o.Anchor == "" {
			o.Anchor = AnchorStart
		}
		if o.FontSize <= 0 {
			o.FontSize = 48
		}
		o.FontColor = strings.TrimSpace(o.FontColor)
		if o.FontColor == "" {
			o.FontColor = "white"
		}
		o.X = strings.TrimSpace(o.X)
		if o.X == "" {
			o.X = "(w-text_w)/2"
		}
		o.Y = strings.TrimSpace(o.Y)
		if o.Y == "" {
			o.Y = "(h-text_h)/2"
		}
	}
}

func (c *Config) normalizeLLM() {
	c.LLM.APIKey = strings.TrimSpace(c.LLM.APIKey)
	if c.LLM.APIKey == "" {
		if value, ok := os.LookupEnv("OPENAI_API_KEY"); ok {
			c.LLM.APIKey = strings.TrimSpace(value)
		}
	}
	c.LLM.BaseURL = strings.TrimRight(strings.TrimSpace(c.LLM.BaseURL), "/")
	if c.LLM.BaseURL == "" {
		c.LLM.BaseURL = defaultLLMBaseURL
	}
	c.LLM.Model = strings.TrimSpace(c.LLM.Model)
	if c.LLM.Model == "" {
		c.LLM.Model = defaultLLMModel
	}
	c.LLM.TTSModel = strings.TrimSpace(c.LLM.TTSModel)
	if c.LLM.TTSModel == "" {
		c.LLM.TTSModel = defaultTTSModel
	}
	c.LLM.Voice = strings.TrimSpace(c.LLM.Voice)
	if c.LLM.Voice == "" {
		c.LLM.Voice = defaultVoice
	}
	if c.LLM.MaxTokens <= 0 {
		c.LLM.MaxTokens = defaultMaxTokens
	}
	if c.LLM.TimeoutSeconds <= 0 {
		c.LLM.TimeoutSeconds = defaultLLMTimeout
	}
	c.LLM.AffiliateLinks = strings.TrimSpace(c.LLM.AffiliateLinks)
	if c.LLM.AffiliateLinks == "" {
		if value, ok := os.LookupEnv("AFFILIATE_LINKS"); ok {
			c.LLM.AffiliateLinks = strings.TrimSpace(value)
		}
	}
}

func (c *Config) normalizeFootage() {
	c.Footage.APIKey = strings.TrimSpace(c.Footage.APIKey)
	if c.Footage.APIKey == "" {
		if value, ok := os.LookupEnv("PEXELS_API_KEY"); ok {
			c.Footage.APIKey = strings.TrimSpace(value)
		}
	}
	c.Footage.BaseURL = strings.TrimRight(strings.TrimSpace(c.Footage.BaseURL), "/")
	if c.Footage.BaseURL == "" {
		c.Footage.BaseURL = defaultFootageBaseURL
	}
	c.Footage.Query = strings.TrimSpace(c.Footage.Query)
	if c.Footage.Query == "" {
		c.Footage.Query = defaultFootageQuery
	}
	if c.Footage.PerPage <= 0 {
		c.Footage.PerPage = defaultFootagePerPage
	}
	if c.Footage.TimeoutSeconds <= 0 {
		c.Footage.TimeoutSeconds = defaultFootageTimeout
	}
}

func (c *Config) normalizePublish() {
	lookup := func(current *string, env string) {
		*current = strings.TrimSpace(*current)
		if *current != "" {
			return
		}
		if value, ok := os.LookupEnv(env); ok {
			*current = strings.TrimSpace(value)
		}
	}
	lookup(&c.Publish.ClientID, "GOOGLE_CLIENT_ID")
	lookup(&c.Publish.ClientSecret, "GOOGLE_CLIENT_SECRET")
	lookup(&c.Publish.RefreshToken, "GOOGLE_REFRESH_TOKEN")
	if value, ok := os.LookupEnv("YT_PRIVACY"); ok && strings.TrimSpace(value) != "" {
		c.Publish.Privacy = value
	}
	c.Publish.Privacy = strings.ToLower(strings.TrimSpace(c.Publish.Privacy))
	if c.Publish.Privacy == "" {
		c.Publish.Privacy = defaultPrivacy
	}
	c.Publish.TokenURL = strings.TrimSpace(c.Publish.TokenURL)
	if c.Publish.TokenURL == "" {
		c.Publish.TokenURL = defaultTokenURL
	}
	c.Publish.UploadURL = strings.TrimSpace(c.Publish.UploadURL)
	if c.Publish.UploadURL == "" {
		c.Publish.UploadURL = defaultUploadURL
	}
	c.Publish.CategoryID = strings.TrimSpace(c.Publish.CategoryID)
	if c.Publish.CategoryID == "" {
		c.Publish.CategoryID = defaultCategoryID
	}
	if c.Publish.SessionTTLHours <= 0 {
		c.Publish.SessionTTLHours = defaultSessionTTLHours
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch c.Logging.Format {
	case "", "console":
		c.Logging.Format = "console"
	case "json":
	default:
		c.Logging.Format = "console"
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}
