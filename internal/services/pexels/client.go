package pexels

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/samber/lo"

	"reelsmith/internal/config"
	"reelsmith/internal/fileutil"
	"reelsmith/internal/logging"
	"reelsmith/internal/services"
)

const (
	stageName      = "footage"
	defaultTimeout = 120 * time.Second
)

// VideoFile is one rendition of a stock video.
type VideoFile struct {
	Link     string `json:"link"`
	Width    int    `json:"width"`
	Height   int    `json:"height"`
	FileType string `json:"file_type"`
	Quality  string `json:"quality"`
}

// Video is a stock video search hit.
type Video struct {
	ID         int64       `json:"id"`
	Duration   float64     `json:"duration"`
	VideoFiles []VideoFile `json:"video_files"`
}

type searchResponse struct {
	Videos []Video `json:"videos"`
}

// Client searches and downloads portrait stock footage.
type Client struct {
	cfg      config.Footage
	api      *resty.Client
	download *resty.Client
	logger   *slog.Logger
}

// Option customizes the client.
type Option func(*clientOptions)

type clientOptions struct {
	httpClient *http.Client
}

// WithHTTPClient routes API and download traffic through client.
func WithHTTPClient(client *http.Client) Option {
	return func(o *clientOptions) {
		o.httpClient = client
	}
}

// New constructs a client from footage configuration.
func New(cfg config.Footage, logger *slog.Logger, opts ...Option) *Client {
	options := clientOptions{}
	for _, opt := range opts {
		opt(&options)
	}
	timeout := defaultTimeout
	if cfg.TimeoutSeconds > 0 {
		timeout = time.Duration(cfg.TimeoutSeconds) * time.Second
	}
	newResty := func() *resty.Client {
		if options.httpClient != nil {
			return resty.NewWithClient(options.httpClient)
		}
		return resty.New().SetTimeout(timeout)
	}
	return &Client{
		cfg: cfg,
		api: newResty().
			SetBaseURL(strings.TrimRight(cfg.BaseURL, "/")).
			SetHeader("Accept", "application/json").
			SetHeader("Authorization", strings.TrimSpace(cfg.APIKey)),
		download: newResty(),
		logger:   logging.NewComponentLogger(logger, "pexels"),
	}
}

// Search returns portrait videos matching query.
func (c *Client) Search(ctx context.Context, query string) ([]Video, error) {
	return c.search(ctx, query, max(1, c.cfg.PerPage))
}

func (c *Client) search(ctx context.Context, query string, perPage int) ([]Video, error) {
	if strings.TrimSpace(c.cfg.APIKey) == "" {
		return nil, services.Wrap(services.ErrConfiguration, stageName, "search", "api key required (footage.api_key or PEXELS_API_KEY)", nil)
	}
	var result searchResponse
	resp, err := c.api.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"query":       query,
			"orientation": "portrait",
			"per_page":    strconv.Itoa(perPage),
		}).
		SetResult(&result).
		ForceContentType("application/json").
		Get("/videos/search")
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, services.WrapTimeout(services.ErrExternalTool, stageName, "search", query, err)
		}
		return nil, services.Wrap(services.ErrExternalTool, stageName, "search", query, err)
	}
	switch {
	case resp.StatusCode() == http.StatusUnauthorized || resp.StatusCode() == http.StatusForbidden:
		return nil, services.Wrap(services.ErrConfiguration, stageName, "search", "api key rejected", nil)
	case resp.IsError():
		return nil, services.Wrap(services.ErrExternalTool, stageName, "search", fmt.Sprintf("http %d: %s", resp.StatusCode(), strings.TrimSpace(resp.String())), nil)
	}
	return result.Videos, nil
}

// HealthCheck verifies the API key with a one-result search.
func (c *Client) HealthCheck(ctx context.Context) error {
	_, err := c.search(ctx, c.cfg.Query, 1)
	return err
}

// SelectFiles picks, per video, the smallest portrait rendition at least
// minHeight tall, stopping after count picks.
func SelectFiles(videos []Video, minHeight, count int) []VideoFile {
	picks := lo.FilterMap(videos, func(v Video, _ int) (VideoFile, bool) {
		portrait := lo.Filter(v.VideoFiles, func(f VideoFile, _ int) bool {
			return f.Link != "" && f.Height >= minHeight && f.Width <= f.Height
		})
		if len(portrait) == 0 {
			return VideoFile{}, false
		}
		return slices.MinFunc(portrait, func(a, b VideoFile) int { return a.Height - b.Height }), true
	})
	if count > 0 && len(picks) > count {
		picks = picks[:count]
	}
	return picks
}

// FetchClips searches for the configured query and downloads up to
// footage.count clips into dir as clip_N.mp4. A failed download skips that
// clip; callers decide what an empty result means.
func (c *Client) FetchClips(ctx context.Context, dir string) ([]string, error) {
	logger := logging.WithContext(ctx, c.logger)
	videos, err := c.Search(ctx, c.cfg.Query)
	if err != nil {
		return nil, err
	}
	picks := SelectFiles(videos, c.cfg.MinHeight, c.cfg.Count)
	logger.Info("stock footage selected",
		logging.Int("results", len(videos)),
		logging.Int("selected", len(picks)),
	)

	var paths []string
	for i, file := range picks {
		dest := filepath.Join(dir, fmt.Sprintf("clip_%d.mp4", i+1))
		size, err := c.Download(ctx, file.Link, dest)
		if err != nil {
			if ctx.Err() != nil {
				return paths, ctx.Err()
			}
			logging.WarnWithContext(logger, "clip download failed; skipping", "clip_download_failed",
				logging.String("url", file.Link),
				logging.Error(err),
				logging.String(logging.FieldImpact, "one fewer clip in the video"),
			)
			continue
		}
		logger.Debug("clip downloaded", logging.String("path", dest), logging.Bytes("size", size))
		paths = append(paths, dest)
	}
	return paths, nil
}

// Download streams url to dest atomically.
func (c *Client) Download(ctx context.Context, url, dest string) (int64, error) {
	resp, err := c.download.R().
		SetContext(ctx).
		SetDoNotParseResponse(true).
		Get(url)
	if err != nil {
		return 0, services.Wrap(services.ErrExternalTool, stageName, "download", url, err)
	}
	body := resp.RawBody()
	defer body.Close()
	if resp.IsError() {
		return 0, services.Wrap(services.ErrExternalTool, stageName, "download", fmt.Sprintf("http %d for %s", resp.StatusCode(), url), nil)
	}
	n, err := fileutil.WriteStreamAtomic(dest, body)
	if err != nil {
		return n, services.Wrap(services.ErrExternalTool, stageName, "download", dest, err)
	}
	if n == 0 {
		return 0, services.Wrap(services.ErrExternalTool, stageName, "download", "empty body from "+url, nil)
	}
	return n, nil
}
