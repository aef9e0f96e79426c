package domain

import (
	"fmt"
	"strings"
	"time"
)

// PageInfo is what the page inspection collaborator reports for the active tab.
type PageInfo struct {
	URL          string `json:"url"`
	Title        string `json:"title"`
	SelectedText string `json:"selectedText,omitempty"`
	Description  string `json:"description,omitempty"`
	Keywords     string `json:"keywords,omitempty"`
}

// CaptureEdits are the user's form edits. Nil fields keep the page value.
type CaptureEdits struct {
	Title       *string  `json:"title,omitempty"`
	Description *string  `json:"description,omitempty"`
	Notes       *string  `json:"notes,omitempty"`
	Summary     *string  `json:"summary,omitempty"`
	Tags        []string `json:"tags,omitempty"`
}

// Capture is one bookmarking action. It is never mutated once dispatched.
type Capture struct {
	URL         string    `json:"url"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	Notes       string    `json:"notes,omitempty"`
	Summary     string    `json:"summary,omitempty"`
	Tags        []string  `json:"tags,omitempty"`
	Timestamp   time.Time `json:"timestamp"`
}

// NewCapture builds a capture from page inspection output and user edits.
func NewCapture(page PageInfo, edits CaptureEdits, now time.Time) Capture {
	c := Capture{
		URL:         strings.TrimSpace(page.URL),
		Title:       cleanText(page.Title),
		Description: cleanText(page.Description),
		Summary:     strings.TrimSpace(page.SelectedText),
		Tags:        NormalizeTags(splitKeywords(page.Keywords)),
		Timestamp:   now,
	}

	if edits.Title != nil {
		c.Title = cleanText(*edits.Title)
	}
	if edits.Description != nil {
		c.Description = strings.TrimSpace(*edits.Description)
	}
	if edits.Notes != nil {
		c.Notes = strings.TrimSpace(*edits.Notes)
	}
	if edits.Summary != nil {
		c.Summary = strings.TrimSpace(*edits.Summary)
	}
	if edits.Tags != nil {
		c.Tags = NormalizeTags(edits.Tags)
	}

	return c
}

// Validate checks the required fields.
func (c Capture) Validate() error {
	if strings.TrimSpace(c.URL) == "" {
		return fmt.Errorf("%w: url is required", ErrInvalidCapture)
	}
	if strings.TrimSpace(c.Title) == "" {
		return fmt.Errorf("%w: title is required", ErrInvalidCapture)
	}
	return nil
}

// Normalized returns a copy with trimmed text, unique tags and a timestamp.
func (c Capture) Normalized(now time.Time) Capture {
	out := c
	out.URL = strings.TrimSpace(c.URL)
	out.Title = cleanText(c.Title)
	out.Tags = NormalizeTags(c.Tags)
	if out.Timestamp.IsZero() {
		out.Timestamp = now
	}
	return out
}

// NormalizeTags trims tags and drops blanks and duplicates, keeping first occurrence order.
func NormalizeTags(tags []string) []string {
	if len(tags) == 0 {
		return nil
	}
	seen := make(map[string]bool, len(tags))
	out := make([]string, 0, len(tags))
	for _, tag := range tags {
		tag = strings.TrimSpace(tag)
		if tag == "" || seen[tag] {
			continue
		}
		seen[tag] = true
		out = append(out, tag)
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func splitKeywords(keywords string) []string {
	if strings.TrimSpace(keywords) == "" {
		return nil
	}
	return strings.FieldsFunc(keywords, func(r rune) bool {
		return r == ',' || r == '，' || r == ';'
	})
}

// cleanText collapses runs of whitespace.
func cleanText(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
