package openai

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"reelsmith/internal/config"
	"reelsmith/internal/logging"
	"reelsmith/internal/services"
)

func testConfig(baseURL string) config.LLM {
	cfg := config.Default().LLM
	cfg.APIKey = "test"
	cfg.BaseURL = baseURL
	return cfg
}

func chatReply(w http.ResponseWriter, content string) {
	payload := map[string]any{
		"id":     "chatcmpl-1",
		"object": "chat.completion",
		"choices": []any{
			map[string]any{
				"index":         0,
				"finish_reason": "stop",
				"message":       map[string]any{"role": "assistant", "content": content},
			},
		},
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(payload)
}

func TestWriteScript(t *testing.T) {
	var body map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test" {
			t.Errorf("unexpected auth header %q", got)
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		chatReply(w, "  Stop scrolling. AI can pay you.  ")
	}))
	defer server.Close()

	client := New(testConfig(server.URL), logging.NewNop())
	script, err := client.WriteScript(context.Background(), "")
	if err != nil {
		t.Fatalf("WriteScript: %v", err)
	}
	if script != "Stop scrolling. AI can pay you." {
		t.Fatalf("unexpected script %q", script)
	}
	if body["model"] != "gpt-4o-mini" {
		t.Fatalf("unexpected model %v", body["model"])
	}
	if tokens, _ := body["max_tokens"].(float64); tokens != 220 {
		t.Fatalf("unexpected max_tokens %v", body["max_tokens"])
	}
	messages, _ := body["messages"].([]any)
	if len(messages) != 2 || !strings.Contains(messages[1].(map[string]any)["content"].(string), defaultTopic) {
		t.Fatalf("expected default topic in prompt: %v", messages)
	}
}

func TestWriteScriptRequiresKey(t *testing.T) {
	cfg := testConfig("http://127.0.0.1:0")
	cfg.APIKey = ""
	client := New(cfg, logging.NewNop())
	_, err := client.WriteScript(context.Background(), "topic")
	if !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}

func TestWriteScriptRejectedKey(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":{"message":"bad key","type":"invalid_request_error"}}`))
	}))
	defer server.Close()

	client := New(testConfig(server.URL), logging.NewNop())
	_, err := client.WriteScript(context.Background(), "topic")
	if !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected configuration error for rejected key, got %v", err)
	}
}

func TestNarrateWritesAudio(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/audio/speech" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		var req map[string]any
		_ = json.NewDecoder(r.Body).Decode(&req)
		if req["voice"] != "alloy" || req["model"] != "gpt-4o-mini-tts" {
			t.Errorf("unexpected speech request %v", req)
		}
		w.Header().Set("Content-Type", "audio/mpeg")
		_, _ = w.Write([]byte("ID3-fake-mp3"))
	}))
	defer server.Close()

	out := filepath.Join(t.TempDir(), "voice.mp3")
	client := New(testConfig(server.URL), logging.NewNop())
	if err := client.Narrate(context.Background(), "hello there", out); err != nil {
		t.Fatalf("Narrate: %v", err)
	}
	data, err := os.ReadFile(out)
	if err != nil || string(data) != "ID3-fake-mp3" {
		t.Fatalf("unexpected narration file %q: %v", data, err)
	}

	if err := client.Narrate(context.Background(), "  ", out); !errors.Is(err, services.ErrInput) {
		t.Fatalf("expected input error for empty script, got %v", err)
	}
}

func TestWriteMetadataStructured(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req map[string]any
		_ = json.NewDecoder(r.Body).Decode(&req)
		format, _ := req["response_format"].(map[string]any)
		if format["type"] != "json_object" {
			t.Errorf("expected json_object response format, got %v", req["response_format"])
		}
		chatReply(w, `{"title":"AI Pays","description":"Watch this.","tags":["ai","money"]}`)
	}))
	defer server.Close()

	cfg := testConfig(server.URL)
	cfg.AffiliateLinks = "https://a.example, https://b.example"
	client := New(cfg, logging.NewNop())
	meta, err := client.WriteMetadata(context.Background(), "script")
	if err != nil {
		t.Fatalf("WriteMetadata: %v", err)
	}
	if meta.Title != "AI Pays" || len(meta.Tags) != 2 {
		t.Fatalf("unexpected metadata %+v", meta)
	}
	if !strings.Contains(meta.Description, "https://a.example") || !strings.Contains(meta.Description, "https://b.example") {
		t.Fatalf("affiliate links missing: %q", meta.Description)
	}
}

func TestWriteMetadataFreeTextFallback(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		chatReply(w, "Title: Free Text Title\nGreat video.\nTags: one, two")
	}))
	defer server.Close()

	client := New(testConfig(server.URL), logging.NewNop())
	meta, err := client.WriteMetadata(context.Background(), "script")
	if err != nil {
		t.Fatalf("WriteMetadata: %v", err)
	}
	if meta.Title != "Free Text Title" || len(meta.Tags) != 2 {
		t.Fatalf("unexpected fallback metadata %+v", meta)
	}
}
