package local_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"reelsmith/internal/services"
	"reelsmith/internal/services/local"
)

func write(t *testing.T, path, content string) string {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestScriptFile(t *testing.T) {
	dir := t.TempDir()
	script, err := local.ScriptFile{Path: write(t, filepath.Join(dir, "s.txt"), "  hello world \n")}.WriteScript(context.Background(), "")
	if err != nil || script != "hello world" {
		t.Fatalf("WriteScript = %q, %v", script, err)
	}
	_, err = local.ScriptFile{Path: write(t, filepath.Join(dir, "empty.txt"), " ")}.WriteScript(context.Background(), "")
	if !errors.Is(err, services.ErrInput) {
		t.Fatalf("expected input error for empty script, got %v", err)
	}
}

func TestClipDirCopiesVideosInOrder(t *testing.T) {
	src := t.TempDir()
	write(t, filepath.Join(src, "b.MP4"), "b")
	write(t, filepath.Join(src, "a.mov"), "a")
	write(t, filepath.Join(src, "notes.txt"), "skip")

	dest := t.TempDir()
	paths, err := local.ClipDir{Dir: src}.FetchClips(context.Background(), dest)
	if err != nil {
		t.Fatalf("FetchClips: %v", err)
	}
	want := []string{filepath.Join(dest, "clip_1.mov"), filepath.Join(dest, "clip_2.mp4")}
	if len(paths) != 2 || paths[0] != want[0] || paths[1] != want[1] {
		t.Fatalf("unexpected paths %v", paths)
	}
	data, _ := os.ReadFile(paths[0])
	if string(data) != "a" {
		t.Fatalf("unexpected clip content %q", data)
	}

	empty, err := local.ClipDir{Dir: t.TempDir()}.FetchClips(context.Background(), dest)
	if err != nil || len(empty) != 0 {
		t.Fatalf("expected no clips, got %v, %v", empty, err)
	}
}

func TestAudioFileCopies(t *testing.T) {
	dir := t.TempDir()
	src := write(t, filepath.Join(dir, "in.mp3"), "audio")
	out := filepath.Join(dir, "run", "voice.mp3")
	if err := (local.AudioFile{Path: src}).Narrate(context.Background(), "", out); err != nil {
		t.Fatalf("Narrate: %v", err)
	}
	if data, _ := os.ReadFile(out); string(data) != "audio" {
		t.Fatalf("unexpected narration %q", data)
	}
}

func TestStaticMetadata(t *testing.T) {
	dir := t.TempDir()
	path := write(t, filepath.Join(dir, "meta.json"), `{"title":"Given","description":"d","tags":["x","X"]}`)
	meta, err := local.StaticMetadata{Path: path, Links: []string{"https://l.example"}}.WriteMetadata(context.Background(), "script")
	if err != nil {
		t.Fatalf("WriteMetadata: %v", err)
	}
	if meta.Title != "Given" || len(meta.Tags) != 1 || meta.Description != "d\n\nhttps://l.example" {
		t.Fatalf("unexpected metadata %+v", meta)
	}

	derived, err := local.StaticMetadata{}.WriteMetadata(context.Background(), "Earn more with AI. Really.")
	if err != nil || derived.Title != "Earn More With AI" {
		t.Fatalf("unexpected derived metadata %+v, %v", derived, err)
	}
}
