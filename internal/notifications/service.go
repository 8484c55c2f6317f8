package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"reelsmith/internal/config"
)

const userAgent = "reelsmith/0.1.0"

// Event names a pipeline milestone worth a push notification.
type Event string

const (
	EventRunCompleted Event = "run_completed"
	EventPublished    Event = "published"
	EventDegraded     Event = "degraded"
	EventError        Event = "error"
	EventTest         Event = "test"
)

// Payload carries event-specific values keyed by name.
type Payload map[string]any

// Service delivers pipeline events.
type Service interface {
	Publish(ctx context.Context, event Event, payload Payload) error
}

// NewService builds a notification service backed by ntfy when configured.
// When no ntfy topic is configured, a noop implementation is returned.
func NewService(cfg *config.Config) Service {
	if cfg == nil {
		return noopService{}
	}
	topic := strings.TrimSpace(cfg.Notifications.NtfyTopic)
	if topic == "" {
		return noopService{}
	}

	timeout := time.Duration(cfg.Notifications.RequestTimeout) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &ntfyService{
		endpoint: topic,
		client:   &http.Client{Timeout: timeout},
		enabled: map[Event]bool{
			EventRunCompleted: cfg.Notifications.RunComplete,
			EventDegraded:     cfg.Notifications.RunComplete,
			EventPublished:    cfg.Notifications.Published,
			EventError:        cfg.Notifications.Errors,
			EventTest:         true,
		},
	}
}

type message struct {
	title    string
	body     string
	tags     []string
	priority string
}

type ntfyService struct {
	endpoint string
	client   *http.Client
	enabled  map[Event]bool
}

func (n *ntfyService) Publish(ctx context.Context, event Event, payload Payload) error {
	if n == nil || !n.enabled[event] {
		return nil
	}
	msg, ok := format(event, payload)
	if !ok {
		return fmt.Errorf("unsupported notification event %q", event)
	}
	return n.send(ctx, msg)
}

func format(event Event, payload Payload) (message, bool) {
	switch event {
	case EventRunCompleted:
		body := fmt.Sprintf("🎬 Short ready: %s", payload.str("runID"))
		if path := payload.str("deliverable"); path != "" {
			body += "\nFile: " + path
		}
		return message{
			title: "reelsmith - Run Complete",
			body:  body,
			tags:  []string{"reelsmith", "run", "completed"},
		}, true
	case EventDegraded:
		return message{
			title: "reelsmith - Short Footage",
			body: fmt.Sprintf("⚠️ Run %s: footage covers %s of %s narration",
				payload.str("runID"), payload.str("videoDuration"), payload.str("audioDuration")),
			tags: []string{"reelsmith", "compose", "degraded"},
		}, true
	case EventPublished:
		title := payload.str("title")
		if title == "" {
			title = payload.str("videoID")
		}
		return message{
			title:    "reelsmith - Published",
			body:     fmt.Sprintf("✅ Published: %s (%s)", title, payload.str("videoID")),
			tags:     []string{"reelsmith", "publish", "completed"},
			priority: "high",
		}, true
	case EventError:
		var b strings.Builder
		b.WriteString("❌ Error")
		if label := payload.str("context"); label != "" {
			b.WriteString(" in ")
			b.WriteString(label)
		}
		b.WriteString(": ")
		if err, ok := payload["error"].(error); ok && err != nil {
			b.WriteString(strings.TrimSpace(err.Error()))
		} else if text := payload.str("error"); text != "" {
			b.WriteString(text)
		} else {
			b.WriteString("unknown")
		}
		return message{
			title:    "reelsmith - Error",
			body:     b.String(),
			tags:     []string{"reelsmith", "error", "alert"},
			priority: "high",
		}, true
	case EventTest:
		return message{
			title:    "reelsmith - Test",
			body:     "🧪 Notification system test",
			tags:     []string{"reelsmith", "test"},
			priority: "low",
		}, true
	default:
		return message{}, false
	}
}

func (p Payload) str(key string) string {
	value, ok := p[key]
	if !ok || value == nil {
		return ""
	}
	if s, ok := value.(string); ok {
		return strings.TrimSpace(s)
	}
	return strings.TrimSpace(fmt.Sprint(value))
}

func (n *ntfyService) send(ctx context.Context, data message) error {
	if n.client == nil {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, strings.NewReader(data.body))
	if err != nil {
		return fmt.Errorf("build ntfy request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	if data.title != "" {
		req.Header.Set("Title", data.title)
	}
	if len(data.tags) > 0 {
		req.Header.Set("Tags", strings.Join(data.tags, ","))
	}
	if data.priority != "" && data.priority != "default" {
		req.Header.Set("Priority", data.priority)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send ntfy notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("ntfy returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

type noopService struct{}

func (noopService) Publish(context.Context, Event, Payload) error { return nil }
