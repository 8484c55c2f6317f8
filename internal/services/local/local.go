package local

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/samber/lo"

	"reelsmith/internal/fileutil"
	"reelsmith/internal/metadata"
	"reelsmith/internal/services"
)

var videoExtensions = []string{".mp4", ".mov", ".m4v", ".mkv", ".webm"}

// ScriptFile supplies a narration script read from a text file.
type ScriptFile struct {
	Path string
}

// WriteScript returns the file contents; topic is ignored.
func (s ScriptFile) WriteScript(_ context.Context, _ string) (string, error) {
	data, err := os.ReadFile(s.Path)
	if err != nil {
		return "", services.Wrap(services.ErrInput, "script", "read script", s.Path, err)
	}
	script := strings.TrimSpace(string(data))
	if script == "" {
		return "", services.Wrap(services.ErrInput, "script", "read script", s.Path+" is empty", nil)
	}
	return script, nil
}

// AudioFile supplies narration from an existing audio file.
type AudioFile struct {
	Path string
}

// Narrate copies the audio file to outPath.
func (a AudioFile) Narrate(_ context.Context, _ string, outPath string) error {
	in, err := os.Open(a.Path)
	if err != nil {
		return services.Wrap(services.ErrInput, "narration", "open audio", a.Path, err)
	}
	defer in.Close()
	if _, err := fileutil.WriteStreamAtomic(outPath, in); err != nil {
		return services.Wrap(services.ErrInput, "narration", "copy audio", outPath, err)
	}
	return nil
}

// ClipDir supplies footage from video files in a directory.
type ClipDir struct {
	Dir string
}

// FetchClips copies every video file in the source directory, in name order,
// into dir as clip_N with the original extension.
func (c ClipDir) FetchClips(ctx context.Context, dir string) ([]string, error) {
	entries, err := os.ReadDir(c.Dir)
	if err != nil {
		return nil, services.Wrap(services.ErrInput, "footage", "list clips", c.Dir, err)
	}
	names := lo.FilterMap(entries, func(e os.DirEntry, _ int) (string, bool) {
		ext := strings.ToLower(filepath.Ext(e.Name()))
		return e.Name(), e.Type().IsRegular() && slices.Contains(videoExtensions, ext)
	})
	slices.Sort(names)

	paths := make([]string, 0, len(names))
	for i, name := range names {
		if err := ctx.Err(); err != nil {
			return paths, err
		}
		src := filepath.Join(c.Dir, name)
		dest := filepath.Join(dir, fmt.Sprintf("clip_%d%s", i+1, strings.ToLower(filepath.Ext(name))))
		in, err := os.Open(src)
		if err != nil {
			return paths, services.Wrap(services.ErrInput, "footage", "open clip", src, err)
		}
		_, err = fileutil.WriteStreamAtomic(dest, in)
		in.Close()
		if err != nil {
			return paths, services.Wrap(services.ErrInput, "footage", "copy clip", dest, err)
		}
		paths = append(paths, dest)
	}
	return paths, nil
}

// StaticMetadata supplies metadata from a JSON file, or derives a title from
// the script when Path is empty.
type StaticMetadata struct {
	Path  string
	Links []string
}

// WriteMetadata loads or derives metadata for script.
func (m StaticMetadata) WriteMetadata(_ context.Context, script string) (metadata.Metadata, error) {
	var meta metadata.Metadata
	if m.Path != "" {
		if err := fileutil.ReadJSON(m.Path, &meta); err != nil {
			return metadata.Metadata{}, services.Wrap(services.ErrInput, "metadata", "read metadata", m.Path, err)
		}
		meta = meta.Normalize()
	}
	if meta.Title == "" {
		meta = metadata.ParseOrDefault("", script)
	}
	meta.Description = metadata.AppendLinks(meta.Description, m.Links)
	return meta, nil
}
