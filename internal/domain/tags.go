package domain

import (
	"sort"
	"strings"
)

const (
	// Tag match weights
	ScoreTagExact     = 100.0
	ScoreTagPrefix    = 75.0
	ScoreTagSubstring = 50.0
)

// TagCandidate is a suggested tag with its match score.
type TagCandidate struct {
	Tag   string  `json:"tag"`
	Score float64 `json:"score"`
}

// ScoreTag scores a tag against the text typed in the tag input.
// An empty filter matches every tag with the same score.
func ScoreTag(filter, tag string) float64 {
	filter = strings.ToLower(strings.TrimSpace(filter))
	lower := strings.ToLower(tag)

	if filter == "" {
		return ScoreTagSubstring
	}

	switch {
	case lower == filter:
		return ScoreTagExact
	case strings.HasPrefix(lower, filter):
		return ScoreTagPrefix
	case strings.Contains(lower, filter):
		return ScoreTagSubstring
	default:
		return 0.0
	}
}

// SuggestTags ranks tags for the filter: exact, then prefix, then substring
// matches, alphabetical within a rank. Tags already chosen are skipped.
func SuggestTags(filter string, tags, chosen []string) []TagCandidate {
	skip := make(map[string]bool, len(chosen))
	for _, c := range chosen {
		skip[c] = true
	}

	candidates := make([]TagCandidate, 0, len(tags))
	for _, tag := range NormalizeTags(tags) {
		if skip[tag] {
			continue
		}
		score := ScoreTag(filter, tag)
		if score == 0.0 {
			continue
		}
		candidates = append(candidates, TagCandidate{Tag: tag, Score: score})
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].Score != candidates[j].Score {
			return candidates[i].Score > candidates[j].Score
		}
		return candidates[i].Tag < candidates[j].Tag
	})

	return candidates
}
