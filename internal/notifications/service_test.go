package notifications_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"reelsmith/internal/config"
	"reelsmith/internal/notifications"
)

type captured struct {
	title, body, tags, priority string
}

func newNtfyServer(t *testing.T, status int) (*httptest.Server, *[]captured) {
	t.Helper()
	var got []captured
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		got = append(got, captured{
			title:    r.Header.Get("Title"),
			body:     string(body),
			tags:     r.Header.Get("Tags"),
			priority: r.Header.Get("Priority"),
		})
		w.WriteHeader(status)
	}))
	t.Cleanup(srv.Close)
	return srv, &got
}

func TestNewServiceReturnsNoopWhenTopicMissing(t *testing.T) {
	cfg := config.Default()
	cfg.Notifications.NtfyTopic = ""
	svc := notifications.NewService(&cfg)
	if err := svc.Publish(context.Background(), notifications.EventRunCompleted, notifications.Payload{"runID": "r1"}); err != nil {
		t.Fatalf("expected noop notifier to return nil, got %v", err)
	}
}

func TestNtfyServiceFormatsPayloads(t *testing.T) {
	tests := []struct {
		name           string
		event          notifications.Event
		payload        notifications.Payload
		expectTitle    string
		expectMessage  string
		expectTags     string
		expectPriority string
	}{
		{
			name:          "run completed",
			event:         notifications.EventRunCompleted,
			payload:       notifications.Payload{"runID": "2026-10-16-ab12cd34", "deliverable": "/runs/x/final.mp4"},
			expectTitle:   "reelsmith - Run Complete",
			expectMessage: "🎬 Short ready: 2026-10-16-ab12cd34\nFile: /runs/x/final.mp4",
			expectTags:    "reelsmith,run,completed",
		},
		{
			name:          "degraded",
			event:         notifications.EventDegraded,
			payload:       notifications.Payload{"runID": "r1", "videoDuration": "12.0s", "audioDuration": "40.0s"},
			expectTitle:   "reelsmith - Short Footage",
			expectMessage: "⚠️ Run r1: footage covers 12.0s of 40.0s narration",
			expectTags:    "reelsmith,compose,degraded",
		},
		{
			name:           "published",
			event:          notifications.EventPublished,
			payload:        notifications.Payload{"videoID": "abc123", "title": "AI Money Hacks"},
			expectTitle:    "reelsmith - Published",
			expectMessage:  "✅ Published: AI Money Hacks (abc123)",
			expectTags:     "reelsmith,publish,completed",
			expectPriority: "high",
		},
		{
			name:           "error",
			event:          notifications.EventError,
			payload:        notifications.Payload{"error": errors.New("boom"), "context": "compose"},
			expectTitle:    "reelsmith - Error",
			expectMessage:  "❌ Error in compose: boom",
			expectTags:     "reelsmith,error,alert",
			expectPriority: "high",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, got := newNtfyServer(t, http.StatusOK)
			cfg := config.Default()
			cfg.Notifications.NtfyTopic = srv.URL
			svc := notifications.NewService(&cfg)

			if err := svc.Publish(context.Background(), tt.event, tt.payload); err != nil {
				t.Fatalf("Publish: %v", err)
			}
			if len(*got) != 1 {
				t.Fatalf("expected one request, got %d", len(*got))
			}
			req := (*got)[0]
			if req.title != tt.expectTitle {
				t.Errorf("title = %q, want %q", req.title, tt.expectTitle)
			}
			if req.body != tt.expectMessage {
				t.Errorf("message = %q, want %q", req.body, tt.expectMessage)
			}
			if req.tags != tt.expectTags {
				t.Errorf("tags = %q, want %q", req.tags, tt.expectTags)
			}
			if req.priority != tt.expectPriority {
				t.Errorf("priority = %q, want %q", req.priority, tt.expectPriority)
			}
		})
	}
}

func TestDisabledEventsAreSkipped(t *testing.T) {
	srv, got := newNtfyServer(t, http.StatusOK)
	cfg := config.Default()
	cfg.Notifications.NtfyTopic = srv.URL
	cfg.Notifications.Published = false
	svc := notifications.NewService(&cfg)

	if err := svc.Publish(context.Background(), notifications.EventPublished, notifications.Payload{"videoID": "x"}); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if len(*got) != 0 {
		t.Fatalf("expected disabled event to be skipped, got %d requests", len(*got))
	}
}

func TestNtfyErrorStatusIsReported(t *testing.T) {
	srv, _ := newNtfyServer(t, http.StatusTooManyRequests)
	cfg := config.Default()
	cfg.Notifications.NtfyTopic = srv.URL
	svc := notifications.NewService(&cfg)

	err := svc.Publish(context.Background(), notifications.EventTest, nil)
	if err == nil || !strings.Contains(err.Error(), "429") {
		t.Fatalf("expected status error, got %v", err)
	}
}
