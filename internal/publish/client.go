package publish

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"reelsmith/internal/services"
)

const (
	stageName        = "publish"
	videoContentType = "video/*"

	statusResumeIncomplete = 308
)

// ErrSessionExpired marks a session the platform no longer recognizes.
var ErrSessionExpired = errors.New("upload session expired")

// Ack is the platform's view of an upload after a request.
type Ack struct {
	// Offset is the number of leading bytes the platform has persisted.
	Offset   int64
	Complete bool
	VideoID  string
}

// Client speaks the resumable upload protocol against one upload endpoint.
type Client struct {
	uploadURL string
	http      *http.Client
	api       *resty.Client
	timeout   time.Duration
}

// NewClient returns a Client for uploadURL. Each request is bounded by
// timeout when it is positive.
func NewClient(uploadURL string, httpClient *http.Client, timeout time.Duration) *Client {
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	return &Client{
		uploadURL: uploadURL,
		http:      httpClient,
		api:       resty.NewWithClient(httpClient),
		timeout:   timeout,
	}
}

// OpenSession registers an upload of size bytes and returns the session
// location.
func (c *Client) OpenSession(ctx context.Context, token string, meta Metadata, size int64) (string, error) {
	ctx, cancel := c.requestContext(ctx)
	defer cancel()

	resp, err := c.api.R().
		SetContext(ctx).
		SetAuthToken(token).
		SetQueryParams(map[string]string{
			"uploadType": "resumable",
			"part":       "snippet,status",
		}).
		SetHeader("Content-Type", "application/json; charset=UTF-8").
		SetHeader("X-Upload-Content-Type", videoContentType).
		SetHeader("X-Upload-Content-Length", strconv.FormatInt(size, 10)).
		SetBody(meta.resource()).
		Post(c.uploadURL)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return "", services.WrapTimeout(services.ErrSession, stageName, "open session", "platform did not respond", err)
		}
		return "", services.Wrap(services.ErrSession, stageName, "open session", "request failed", err)
	}
	switch code := resp.StatusCode(); {
	case code == http.StatusUnauthorized || code == http.StatusForbidden:
		return "", services.Wrap(services.ErrAuth, stageName, "open session", fmt.Sprintf("platform rejected credentials (http %d)", code), nil)
	case code != http.StatusOK && code != http.StatusCreated:
		return "", services.Wrap(services.ErrSession, stageName, "open session", fmt.Sprintf("platform rejected session (http %d): %s", code, snippetOf(resp.Body())), nil)
	}
	location := strings.TrimSpace(resp.Header().Get("Location"))
	if location == "" {
		return "", services.Wrap(services.ErrSession, stageName, "open session", "response carried no session location", nil)
	}
	return location, nil
}

// QueryOffset asks the platform how many bytes of a session it holds.
func (c *Client) QueryOffset(ctx context.Context, token, location string, total int64) (Ack, error) {
	ctx, cancel := c.requestContext(ctx)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, location, http.NoBody)
	if err != nil {
		return Ack{}, services.Wrap(services.ErrSession, stageName, "query offset", "build request", err)
	}
	req.ContentLength = 0
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Range", fmt.Sprintf("bytes */%d", total))
	return c.do(req, "query offset")
}

// PutChunk sends bytes [start, end) of a total-byte upload.
func (c *Client) PutChunk(ctx context.Context, token, location string, body io.Reader, start, end, total int64) (Ack, error) {
	if start < 0 || end <= start || end > total {
		return Ack{}, services.Wrap(services.ErrTransfer, stageName, "put chunk", fmt.Sprintf("invalid range %d-%d of %d", start, end, total), nil)
	}
	ctx, cancel := c.requestContext(ctx)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, location, io.NopCloser(body))
	if err != nil {
		return Ack{}, services.Wrap(services.ErrTransfer, stageName, "put chunk", "build request", err)
	}
	req.ContentLength = end - start
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", videoContentType)
	req.Header.Set("Content-Range", fmt.Sprintf("bytes %d-%d/%d", start, end-1, total))
	return c.do(req, "put chunk")
}

func (c *Client) do(req *http.Request, op string) (Ack, error) {
	resp, err := c.http.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return Ack{}, services.WrapTimeout(services.ErrTransfer, stageName, op, "platform did not respond", err)
		}
		return Ack{}, services.Wrap(services.ErrTransfer, stageName, op, "request failed", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))

	switch code := resp.StatusCode; {
	case code == statusResumeIncomplete:
		offset, err := parseRange(resp.Header.Get("Range"))
		if err != nil {
			return Ack{}, services.Wrap(services.ErrTransfer, stageName, op, "unreadable range header", err)
		}
		return Ack{Offset: offset}, nil
	case code == http.StatusOK || code == http.StatusCreated:
		var video struct {
			ID string `json:"id"`
		}
		if err := json.Unmarshal(body, &video); err != nil || strings.TrimSpace(video.ID) == "" {
			return Ack{}, services.Wrap(services.ErrTransfer, stageName, op, "completed upload returned no video id", err)
		}
		return Ack{Complete: true, VideoID: video.ID}, nil
	case code == http.StatusNotFound || code == http.StatusGone:
		return Ack{}, services.Wrap(services.ErrSession, stageName, op, fmt.Sprintf("http %d", code), ErrSessionExpired)
	case code == http.StatusUnauthorized || code == http.StatusForbidden:
		return Ack{}, services.Wrap(services.ErrAuth, stageName, op, fmt.Sprintf("platform rejected credentials (http %d)", code), nil)
	default:
		return Ack{}, services.Wrap(services.ErrTransfer, stageName, op, fmt.Sprintf("unexpected status %d: %s", code, snippetOf(body)), nil)
	}
}

func (c *Client) requestContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, c.timeout)
}

// parseRange reads a "bytes=0-N" header into the persisted byte count N+1.
// An absent header means nothing was persisted.
func parseRange(header string) (int64, error) {
	header = strings.TrimSpace(header)
	if header == "" {
		return 0, nil
	}
	spec, ok := strings.CutPrefix(header, "bytes=")
	if !ok {
		return 0, fmt.Errorf("range %q: missing bytes unit", header)
	}
	first, last, ok := strings.Cut(spec, "-")
	if !ok {
		return 0, fmt.Errorf("range %q: missing separator", header)
	}
	if strings.TrimSpace(first) != "0" {
		return 0, fmt.Errorf("range %q: does not start at zero", header)
	}
	end, err := strconv.ParseInt(strings.TrimSpace(last), 10, 64)
	if err != nil || end < 0 {
		return 0, fmt.Errorf("range %q: bad end offset", header)
	}
	return end + 1, nil
}

func snippetOf(body []byte) string {
	text := strings.TrimSpace(string(body))
	if len(text) > 200 {
		text = text[:200] + "..."
	}
	if text == "" {
		return "(empty body)"
	}
	return text
}
