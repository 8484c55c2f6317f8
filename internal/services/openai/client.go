package openai

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	goopenai "github.com/sashabaranov/go-openai"

	"reelsmith/internal/config"
	"reelsmith/internal/fileutil"
	"reelsmith/internal/logging"
	"reelsmith/internal/metadata"
	"reelsmith/internal/services"
)

const defaultTimeout = 120 * time.Second

const (
	scriptSystemPrompt   = "You write short, high-retention scripts."
	metadataSystemPrompt = "You craft SEO-optimized YouTube Shorts metadata that boosts CTR and CPM. Respond with a JSON object only."
	defaultTopic         = "AI side hustles using ChatGPT and automation"
)

// Client generates scripts, narration and publishing metadata with the
// OpenAI chat and speech APIs.
type Client struct {
	api       *goopenai.Client
	cfg       config.LLM
	links     []string
	timeout   time.Duration
	logger    *slog.Logger
	hasAPIKey bool
}

// Option customizes the client.
type Option func(*clientOptions)

type clientOptions struct {
	httpClient *http.Client
}

// WithHTTPClient overrides the HTTP client used for API calls.
func WithHTTPClient(client *http.Client) Option {
	return func(o *clientOptions) {
		if client != nil {
			o.httpClient = client
		}
	}
}

// New constructs a client from LLM configuration.
func New(cfg config.LLM, logger *slog.Logger, opts ...Option) *Client {
	options := clientOptions{}
	for _, opt := range opts {
		opt(&options)
	}
	timeout := defaultTimeout
	if cfg.TimeoutSeconds > 0 {
		timeout = time.Duration(cfg.TimeoutSeconds) * time.Second
	}

	apiCfg := goopenai.DefaultConfig(strings.TrimSpace(cfg.APIKey))
	if base := strings.TrimSpace(cfg.BaseURL); base != "" {
		apiCfg.BaseURL = strings.TrimRight(base, "/")
	}
	if options.httpClient != nil {
		apiCfg.HTTPClient = options.httpClient
	} else {
		apiCfg.HTTPClient = &http.Client{Timeout: timeout}
	}

	return &Client{
		api:       goopenai.NewClientWithConfig(apiCfg),
		cfg:       cfg,
		links:     metadata.SplitList(cfg.AffiliateLinks),
		timeout:   timeout,
		logger:    logging.NewComponentLogger(logger, "openai"),
		hasAPIKey: strings.TrimSpace(cfg.APIKey) != "",
	}
}

// WriteScript generates a 30-60 second narration script for topic.
func (c *Client) WriteScript(ctx context.Context, topic string) (string, error) {
	const stage = "script"
	if err := c.requireKey(stage); err != nil {
		return "", err
	}
	topic = strings.TrimSpace(topic)
	if topic == "" {
		topic = defaultTopic
	}
	prompt := strings.Join([]string{
		"You are a YouTube Shorts scriptwriter.",
		"Write a punchy 30-60 second script (90-130 words) for a vertical video in the AI & making-money-with-AI niche.",
		"Goal: maximize retention and CPM. Include hook, 2-3 value points, and a CTA to check links.",
		"Style: global audience, simple language, hype but credible. No hashtags. No emojis.",
		"Topic hint: " + topic,
		"Output ONLY the script lines.",
	}, "\n")

	content, err := c.complete(ctx, stage, goopenai.ChatCompletionRequest{
		Model: c.cfg.Model,
		Messages: []goopenai.ChatCompletionMessage{
			{Role: goopenai.ChatMessageRoleSystem, Content: scriptSystemPrompt},
			{Role: goopenai.ChatMessageRoleUser, Content: prompt},
		},
		Temperature: float32(c.cfg.Temperature),
		MaxTokens:   c.cfg.MaxTokens,
	})
	if err != nil {
		return "", err
	}
	return content, nil
}

// Narrate synthesizes script to an mp3 file at outPath.
func (c *Client) Narrate(ctx context.Context, script, outPath string) error {
	const stage = "narration"
	if err := c.requireKey(stage); err != nil {
		return err
	}
	if strings.TrimSpace(script) == "" {
		return services.Wrap(services.ErrInput, stage, "synthesize speech", "script is empty", nil)
	}
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	resp, err := c.api.CreateSpeech(ctx, goopenai.CreateSpeechRequest{
		Model:          goopenai.SpeechModel(c.cfg.TTSModel),
		Input:          script,
		Voice:          goopenai.SpeechVoice(c.cfg.Voice),
		ResponseFormat: goopenai.SpeechResponseFormatMp3,
	})
	if err != nil {
		return c.classify(ctx, stage, "synthesize speech", err)
	}
	defer resp.Close()

	n, err := fileutil.WriteStreamAtomic(outPath, resp)
	if err != nil {
		return c.classify(ctx, stage, "write narration", err)
	}
	if n == 0 {
		return services.Wrap(services.ErrExternalTool, stage, "synthesize speech", "speech response was empty", nil)
	}
	logging.WithContext(ctx, c.logger).Info("narration synthesized",
		logging.String("path", outPath),
		logging.Bytes("size", n),
	)
	return nil
}

// WriteMetadata asks for a JSON {title, description, tags} object describing
// script. Free-text replies fall back to line parsing. Affiliate links are
// appended to the description when the model left them out.
func (c *Client) WriteMetadata(ctx context.Context, script string) (metadata.Metadata, error) {
	const stage = "metadata"
	if err := c.requireKey(stage); err != nil {
		return metadata.Metadata{}, err
	}
	prompt := fmt.Sprintf("Script:\n\n%s\n\nReturn a JSON object with keys title, description and tags:\n"+
		"- title: at most %d characters\n"+
		"- description: 2-3 lines including these affiliate links if relevant: %s. Add a clear CTA.\n"+
		"- tags: an array of 12 tags focused on AI and money-making.",
		strings.TrimSpace(script), metadata.MaxTitleRunes, strings.Join(c.links, " "))

	content, err := c.complete(ctx, stage, goopenai.ChatCompletionRequest{
		Model: c.cfg.Model,
		Messages: []goopenai.ChatCompletionMessage{
			{Role: goopenai.ChatMessageRoleSystem, Content: metadataSystemPrompt},
			{Role: goopenai.ChatMessageRoleUser, Content: prompt},
		},
		Temperature:    0.8,
		MaxTokens:      300,
		ResponseFormat: &goopenai.ChatCompletionResponseFormat{Type: goopenai.ChatCompletionResponseFormatTypeJSONObject},
	})
	if err != nil {
		return metadata.Metadata{}, err
	}

	meta, parseErr := metadata.ParseJSON(content)
	if parseErr != nil {
		logging.WarnWithContext(logging.WithContext(ctx, c.logger), "metadata reply was not structured; parsing free text", "metadata_fallback",
			logging.Error(parseErr),
			logging.String(logging.FieldImpact, "title or tags may be less precise"),
		)
		meta = metadata.ParseOrDefault(content, script)
	}
	meta.Description = metadata.AppendLinks(meta.Description, c.links)
	return meta, nil
}

// HealthCheck verifies the API key by listing models.
func (c *Client) HealthCheck(ctx context.Context) error {
	const stage = "preflight"
	if err := c.requireKey(stage); err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	if _, err := c.api.ListModels(ctx); err != nil {
		return c.classify(ctx, stage, "list models", err)
	}
	return nil
}

func (c *Client) complete(ctx context.Context, stage string, req goopenai.ChatCompletionRequest) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	resp, err := c.api.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", c.classify(ctx, stage, "chat completion", err)
	}
	for _, choice := range resp.Choices {
		if content := strings.TrimSpace(choice.Message.Content); content != "" {
			return content, nil
		}
	}
	reason := ""
	if len(resp.Choices) > 0 {
		reason = string(resp.Choices[0].FinishReason)
	}
	return "", services.Wrap(services.ErrExternalTool, stage, "chat completion", fmt.Sprintf("empty content (finish_reason=%q)", reason), nil)
}

func (c *Client) requireKey(stage string) error {
	if c.hasAPIKey {
		return nil
	}
	return services.Wrap(services.ErrConfiguration, stage, "openai", "api key required (llm.api_key or OPENAI_API_KEY)", nil)
}

func (c *Client) classify(ctx context.Context, stage, operation string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return services.WrapTimeout(services.ErrExternalTool, stage, operation, fmt.Sprintf("no response within %s", c.timeout), err)
	}
	var apiErr *goopenai.APIError
	if errors.As(err, &apiErr) && (apiErr.HTTPStatusCode == http.StatusUnauthorized || apiErr.HTTPStatusCode == http.StatusForbidden) {
		return services.Wrap(services.ErrConfiguration, stage, operation, "api key rejected", err)
	}
	return services.Wrap(services.ErrExternalTool, stage, operation, "openai request failed", err)
}
