package settingsfile

import (
	"fmt"
	"strings"

	"github.com/MrSnakeDoc/bitmark/internal/domain"
)

var logicalFields = map[string]bool{
	domain.FieldTitle:       true,
	domain.FieldURL:         true,
	domain.FieldDescription: true,
	domain.FieldNotes:       true,
	domain.FieldTags:        true,
	domain.FieldSummary:     true,
	domain.FieldTime:        true,
}

// Apply overlays the file onto base. Values absent from the file keep
// their base value.
func Apply(file File, base domain.Settings) (domain.Settings, error) {
	out := base

	set := func(dst *string, v string) {
		if v = strings.TrimSpace(v); v != "" {
			*dst = v
		}
	}
	set(&out.AppID, file.Feishu.AppID)
	set(&out.AppSecret, file.Feishu.AppSecret)
	set(&out.TenantAccessToken, file.Feishu.TenantAccessToken)
	set(&out.BaseID, file.Feishu.BaseID)
	set(&out.TableID, file.Feishu.TableID)

	if len(file.Fields) > 0 {
		mapping := make(domain.FieldMapping, len(base.FieldMapping)+len(file.Fields))
		for k, v := range base.FieldMapping {
			mapping[k] = v
		}
		for field, column := range file.Fields {
			if !logicalFields[field] {
				return base, fmt.Errorf("unknown field %q in settings file", field)
			}
			mapping[field] = strings.TrimSpace(column)
		}
		out.FieldMapping = mapping
	}

	if tags := domain.NormalizeTags(file.DefaultTags); len(tags) > 0 {
		out.DefaultTags = tags
	}
	if file.MaxRetries < 0 {
		return base, fmt.Errorf("max_retries must not be negative, got %d", file.MaxRetries)
	}
	if file.MaxRetries > 0 {
		out.MaxRetries = file.MaxRetries
	}

	return out, nil
}
