package publish

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"reelsmith/internal/config"
	"reelsmith/internal/metadata"
	"reelsmith/internal/services"
)

const (
	maxTitleRunes       = 100
	maxDescriptionBytes = 5000
)

var privacyStatuses = map[string]struct{}{
	"public":   {},
	"unlisted": {},
	"private":  {},
}

// Metadata is what the platform receives when a session is opened.
type Metadata struct {
	Title       string
	Description string
	Tags        []string
	CategoryID  string
	Privacy     string
	MadeForKids bool
}

// NewMetadata combines generated metadata with the configured category and
// visibility.
func NewMetadata(meta metadata.Metadata, cfg config.Publish) Metadata {
	return Metadata{
		Title:       meta.Title,
		Description: meta.Description,
		Tags:        append([]string(nil), meta.Tags...),
		CategoryID:  cfg.CategoryID,
		Privacy:     cfg.Privacy,
	}
}

// Validate rejects metadata the platform would refuse when opening a session.
func (m Metadata) Validate() error {
	var problems []string
	title := strings.TrimSpace(m.Title)
	switch {
	case title == "":
		problems = append(problems, "title is required")
	case utf8.RuneCountInString(title) > maxTitleRunes:
		problems = append(problems, fmt.Sprintf("title exceeds %d characters", maxTitleRunes))
	}
	if strings.ContainsAny(m.Title, "<>") || strings.ContainsAny(m.Description, "<>") {
		problems = append(problems, "title and description must not contain angle brackets")
	}
	if len(m.Description) > maxDescriptionBytes {
		problems = append(problems, fmt.Sprintf("description exceeds %d bytes", maxDescriptionBytes))
	}
	if _, ok := privacyStatuses[m.Privacy]; !ok {
		problems = append(problems, fmt.Sprintf("unknown privacy %q", m.Privacy))
	}
	if strings.TrimSpace(m.CategoryID) == "" {
		problems = append(problems, "category is required")
	}
	if len(problems) > 0 {
		return services.Wrap(services.ErrSession, stageName, "validate metadata", strings.Join(problems, "; "), nil)
	}
	return nil
}

type snippet struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Tags        []string `json:"tags,omitempty"`
	CategoryID  string   `json:"categoryId"`
}

type status struct {
	PrivacyStatus           string `json:"privacyStatus"`
	SelfDeclaredMadeForKids bool   `json:"selfDeclaredMadeForKids"`
}

type videoResource struct {
	Snippet snippet `json:"snippet"`
	Status  status  `json:"status"`
}

func (m Metadata) resource() videoResource {
	return videoResource{
		Snippet: snippet{
			Title:       strings.TrimSpace(m.Title),
			Description: m.Description,
			Tags:        m.Tags,
			CategoryID:  m.CategoryID,
		},
		Status: status{
			PrivacyStatus:           m.Privacy,
			SelfDeclaredMadeForKids: m.MadeForKids,
		},
	}
}
