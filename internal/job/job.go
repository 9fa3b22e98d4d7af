// Package job defines the canonical job posting record and the normalization
// that turns a raw scraped record into it.
package job

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ErrMissingField is matched by every NormalizationError.
var ErrMissingField = errors.New("missing mandatory field")

// NormalizationError reports a raw record that cannot become a Job.
type NormalizationError struct {
	Field string
}

func (e *NormalizationError) Error() string {
	return fmt.Sprintf("%s: %s", ErrMissingField.Error(), e.Field)
}

func (e *NormalizationError) Unwrap() error {
	return ErrMissingField
}

// RawJob is a record as produced by a source, before normalization.
type RawJob struct {
	Title        string    `json:"title" yaml:"title"`
	Company      string    `json:"company" yaml:"company"`
	Skills       []string  `json:"skills" yaml:"skills"`
	Seniority    string    `json:"seniority" yaml:"seniority"`
	DatePosted   string    `json:"date_posted" yaml:"date_posted"`
	SourceURL    string    `json:"source_url" yaml:"source_url"`
	Site         string    `json:"site" yaml:"site"`
	Location     string    `json:"location" yaml:"location"`
	Remuneration string    `json:"remuneration" yaml:"remuneration"`
	Description  string    `json:"description" yaml:"description"`
	ScrapedAt    time.Time `json:"scraped_at" yaml:"scraped_at"`
}

// Job is one normalized posting. Values are never mutated after Normalize
// returns them; Skills must be treated as read-only.
type Job struct {
	ID             string    `json:"id"`
	Title          string    `json:"title"`
	Company        string    `json:"company"`
	Skills         []string  `json:"skills"`
	Seniority      Seniority `json:"seniority"`
	DatePosted     Date      `json:"date_posted"`
	SourceURL      string    `json:"source_url"`
	Site           string    `json:"site,omitempty"`
	Location       string    `json:"location,omitempty"`
	Remuneration   string    `json:"remuneration,omitempty"`
	RawDescription string    `json:"description,omitempty"`
}

// HasSkill reports whether the job carries the normalized tag.
func (j Job) HasSkill(tag string) bool {
	for _, s := range j.Skills {
		if s == tag {
			return true
		}
	}
	return false
}

// IDFor derives the stable job ID for a source URL.
func IDFor(sourceURL string) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(strings.TrimSpace(sourceURL))).String()
}

// Normalize converts a raw record into a Job. It has no side effects:
// relative dates resolve against raw.ScrapedAt, not the wall clock. A blank
// or unrecognized seniority label falls back to the level named in the title.
func Normalize(raw RawJob) (Job, error) {
	title := strings.TrimSpace(raw.Title)
	if title == "" {
		return Job{}, &NormalizationError{Field: "title"}
	}
	company := strings.TrimSpace(raw.Company)
	if company == "" {
		return Job{}, &NormalizationError{Field: "company"}
	}
	sourceURL := strings.TrimSpace(raw.SourceURL)
	if sourceURL == "" {
		return Job{}, &NormalizationError{Field: "source_url"}
	}
	seniority, ok := ParseSeniority(raw.Seniority)
	if !ok {
		seniority = SeniorityFromTitle(title)
	}
	return Job{
		ID:             IDFor(sourceURL),
		Title:          title,
		Company:        company,
		Skills:         NormalizeSkills(raw.Skills),
		Seniority:      seniority,
		DatePosted:     ParseDate(raw.DatePosted, raw.ScrapedAt),
		SourceURL:      sourceURL,
		Site:           strings.TrimSpace(raw.Site),
		Location:       strings.TrimSpace(raw.Location),
		Remuneration:   strings.TrimSpace(raw.Remuneration),
		RawDescription: raw.Description,
	}, nil
}

// NormalizeSkill lowercases and trims a single tag and collapses inner
// whitespace runs to one space.
func NormalizeSkill(tag string) string {
	return strings.Join(strings.Fields(strings.ToLower(tag)), " ")
}

// NormalizeSkills returns the sorted set of non-blank normalized tags. The
// result is never nil.
func NormalizeSkills(tags []string) []string {
	seen := make(map[string]struct{}, len(tags))
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		n := NormalizeSkill(t)
		if n == "" {
			continue
		}
		if _, dup := seen[n]; dup {
			continue
		}
		seen[n] = struct{}{}
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}
