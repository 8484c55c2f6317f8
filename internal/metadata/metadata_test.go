package metadata_test

import (
	"errors"
	"slices"
	"strings"
	"testing"
	"unicode/utf8"

	"reelsmith/internal/metadata"
)

func TestParseJSON(t *testing.T) {
	text := "```json\n{\"title\": \"  5 AI Side Hustles  \", \"description\": \"Try these.\", \"tags\": [\"ai\", \"#AI\", \"money\", \"\"]}\n```"
	meta, err := metadata.ParseJSON(text)
	if err != nil {
		t.Fatalf("ParseJSON: %v", err)
	}
	if meta.Title != "5 AI Side Hustles" {
		t.Fatalf("unexpected title %q", meta.Title)
	}
	if !slices.Equal(meta.Tags, []string{"ai", "money"}) {
		t.Fatalf("unexpected tags %v", meta.Tags)
	}
}

func TestParseJSONAcceptsCommaSeparatedTags(t *testing.T) {
	meta, err := metadata.ParseJSON(`{"title":"x","tags":"a, b,,c"}`)
	if err != nil {
		t.Fatalf("ParseJSON: %v", err)
	}
	if !slices.Equal(meta.Tags, []string{"a", "b", "c"}) {
		t.Fatalf("unexpected tags %v", meta.Tags)
	}
}

func TestParseJSONRejectsMissingTitle(t *testing.T) {
	if _, err := metadata.ParseJSON(`{"description":"d"}`); !errors.Is(err, metadata.ErrEmpty) {
		t.Fatalf("expected ErrEmpty, got %v", err)
	}
	if _, err := metadata.ParseJSON("no json here"); err == nil {
		t.Fatal("expected error for free text")
	}
}

func TestParseOrDefaultFreeText(t *testing.T) {
	text := "Title: Make Money With AI Today\nDescription: Three tools that pay.\nCheck the links below!\nTags: ai, money, side hustle, AI"
	meta := metadata.ParseOrDefault(text, "ignored script")
	if meta.Title != "Make Money With AI Today" {
		t.Fatalf("unexpected title %q", meta.Title)
	}
	if !slices.Equal(meta.Tags, []string{"ai", "money", "side hustle"}) {
		t.Fatalf("unexpected tags %v", meta.Tags)
	}
	if !strings.Contains(meta.Description, "Three tools that pay.") || strings.Contains(meta.Description, "Tags") {
		t.Fatalf("unexpected description %q", meta.Description)
	}
}

func TestParseOrDefaultFallsBackToScript(t *testing.T) {
	meta := metadata.ParseOrDefault("", "stop scrolling. here is how AI pays you")
	if meta.Title != "Stop Scrolling" {
		t.Fatalf("unexpected fallback title %q", meta.Title)
	}
	if metadata.FallbackTitle("") != "Untitled" {
		t.Fatal("expected Untitled for empty script")
	}
}

func TestNormalizeBoundsTitle(t *testing.T) {
	long := strings.Repeat("automation ", 12)
	meta := metadata.Metadata{Title: long}.Normalize()
	if n := utf8.RuneCountInString(meta.Title); n > metadata.MaxTitleRunes || n == 0 {
		t.Fatalf("title length %d out of bounds: %q", n, meta.Title)
	}
	if strings.HasSuffix(meta.Title, " ") {
		t.Fatalf("title should not end with a space: %q", meta.Title)
	}
}

func TestAppendLinks(t *testing.T) {
	desc := "Watch till the end. https://a.example"
	got := metadata.AppendLinks(desc, []string{"https://a.example", "https://b.example", "https://b.example", ""})
	want := "Watch till the end. https://a.example\n\nhttps://b.example"
	if got != want {
		t.Fatalf("AppendLinks = %q, want %q", got, want)
	}
	if metadata.AppendLinks(desc, nil) != desc {
		t.Fatal("expected unchanged description without links")
	}
}

func TestSplitList(t *testing.T) {
	if got := metadata.SplitList(" a , ,b,"); !slices.Equal(got, []string{"a", "b"}) {
		t.Fatalf("SplitList = %v", got)
	}
}
