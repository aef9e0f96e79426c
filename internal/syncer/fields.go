package syncer

import (
	"github.com/MrSnakeDoc/bitmark/internal/domain"
)

// BuildFields maps a capture onto remote column names. Empty optional values
// are left for FormatFields to drop.
func BuildFields(c domain.Capture, mapping domain.FieldMapping) map[string]any {
	fields := map[string]any{
		mapping.Column(domain.FieldURL):   c.URL,
		mapping.Column(domain.FieldTitle): c.Title,
	}

	optional := map[string]any{
		domain.FieldDescription: c.Description,
		domain.FieldNotes:       c.Notes,
		domain.FieldSummary:     c.Summary,
	}
	for field, v := range optional {
		fields[mapping.Column(field)] = v
	}

	if len(c.Tags) > 0 {
		fields[mapping.Column(domain.FieldTags)] = c.Tags
	}
	if !c.Timestamp.IsZero() {
		fields[mapping.Column(domain.FieldTime)] = c.Timestamp
	}
	return fields
}
