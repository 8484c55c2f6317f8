package metadata

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/samber/lo"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

const (
	// MaxTitleRunes bounds generated titles.
	MaxTitleRunes = 60
	// maxTagChars is the platform limit on the combined length of all tags.
	maxTagChars = 500
)

// Metadata is the title, description and tags a deliverable is published with.
type Metadata struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Tags        []string `json:"tags"`
}

// ErrEmpty is returned when generated text contains no usable metadata.
var ErrEmpty = errors.New("metadata: no title")

// ParseJSON decodes the structured {title, description, tags} contract. Code
// fences around the object are tolerated. Tags may be an array or a
// comma-separated string.
func ParseJSON(text string) (Metadata, error) {
	body := stripFences(text)
	start, end := strings.Index(body, "{"), strings.LastIndex(body, "}")
	if start < 0 || end <= start {
		return Metadata{}, fmt.Errorf("metadata: no JSON object in response")
	}
	var raw struct {
		Title       string          `json:"title"`
		Description string          `json:"description"`
		Tags        json.RawMessage `json:"tags"`
	}
	if err := json.Unmarshal([]byte(body[start:end+1]), &raw); err != nil {
		return Metadata{}, fmt.Errorf("metadata: decode: %w", err)
	}
	meta := Metadata{Title: raw.Title, Description: raw.Description, Tags: decodeTags(raw.Tags)}
	meta = meta.Normalize()
	if meta.Title == "" {
		return Metadata{}, ErrEmpty
	}
	return meta, nil
}

func decodeTags(raw json.RawMessage) []string {
	if len(raw) == 0 {
		return nil
	}
	var list []string
	if err := json.Unmarshal(raw, &list); err == nil {
		return list
	}
	var csv string
	if err := json.Unmarshal(raw, &csv); err == nil {
		return SplitList(csv)
	}
	return nil
}

var (
	titleLine = regexp.MustCompile(`(?im)^\W*title\W*[:\-]\s*(.+)$`)
	tagsLine  = regexp.MustCompile(`(?im)^\W*tags?\W*[:\-]\s*(.+)$`)
	descLine  = regexp.MustCompile(`(?im)^\W*description\W*[:\-]\s*`)
)

// ParseOrDefault extracts metadata from model output. Structured JSON is
// preferred; otherwise "Title:" and "Tags:" lines are picked out of free text
// and the remainder becomes the description. When no title can be found the
// first sentence of script is used.
func ParseOrDefault(text, script string) Metadata {
	if meta, err := ParseJSON(text); err == nil {
		return meta
	}

	var meta Metadata
	rest := text
	if m := titleLine.FindStringSubmatch(rest); m != nil {
		meta.Title = strings.Trim(strings.TrimSpace(m[1]), `"*`)
		rest = strings.Replace(rest, m[0], "", 1)
	}
	if m := tagsLine.FindStringSubmatch(rest); m != nil {
		meta.Tags = SplitList(m[1])
		rest = strings.Replace(rest, m[0], "", 1)
	}
	meta.Description = strings.TrimSpace(descLine.ReplaceAllString(rest, ""))

	if strings.TrimSpace(meta.Title) == "" {
		meta.Title = FallbackTitle(script)
	}
	return meta.Normalize()
}

// FallbackTitle derives a title-cased title from the first sentence of script.
func FallbackTitle(script string) string {
	first := strings.TrimSpace(script)
	if i := strings.IndexAny(first, ".!?\n"); i > 0 {
		first = first[:i]
	}
	if first == "" {
		return "Untitled"
	}
	return truncateRunes(cases.Title(language.English, cases.NoLower).String(first), MaxTitleRunes)
}

// Normalize trims fields, bounds the title, strips hash marks from tags, and
// removes empty and case-insensitively duplicated tags.
func (m Metadata) Normalize() Metadata {
	m.Title = truncateRunes(strings.Join(strings.Fields(m.Title), " "), MaxTitleRunes)
	m.Description = strings.TrimSpace(m.Description)

	tags := lo.FilterMap(m.Tags, func(tag string, _ int) (string, bool) {
		tag = strings.Join(strings.Fields(strings.TrimLeft(strings.TrimSpace(tag), "#")), " ")
		return tag, tag != ""
	})
	tags = lo.UniqBy(tags, strings.ToLower)

	total := 0
	m.Tags = lo.Filter(tags, func(tag string, _ int) bool {
		total += utf8.RuneCountInString(tag) + 1
		return total <= maxTagChars
	})
	return m
}

// AppendLinks appends each link not already present in description on its
// own line.
func AppendLinks(description string, links []string) string {
	missing := lo.Filter(lo.Uniq(links), func(link string, _ int) bool {
		return link != "" && !strings.Contains(description, link)
	})
	if len(missing) == 0 {
		return description
	}
	description = strings.TrimRight(description, "\n ")
	if description != "" {
		description += "\n\n"
	}
	return description + strings.Join(missing, "\n")
}

// SplitList splits a comma-separated list, dropping blanks.
func SplitList(csv string) []string {
	return lo.FilterMap(strings.Split(csv, ","), func(item string, _ int) (string, bool) {
		item = strings.TrimSpace(item)
		return item, item != ""
	})
}

func stripFences(text string) string {
	text = strings.TrimSpace(text)
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(text, "```")
	return strings.TrimSpace(text)
}

// truncateRunes cuts s to at most n runes, preferring the last word boundary.
func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := []rune(s)[:n]
	cut := string(runes)
	if i := strings.LastIndex(cut, " "); i > n/2 {
		cut = cut[:i]
	}
	return strings.TrimRight(cut, " ,;:-")
}
