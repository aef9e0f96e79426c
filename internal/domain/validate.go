package domain

import "strings"

const (
	appIDPrefix     = "cli_"
	tableIDPrefix   = "tbl"
	minBaseIDLength = 10
)

// Validation is the outcome of ValidateSettings.
type Validation struct {
	Valid  bool              `json:"valid"`
	Errors map[string]string `json:"errors,omitempty"`
}

// ValidateSettings checks that the settings are complete enough to talk to
// the remote table. It performs no I/O.
func ValidateSettings(s Settings) Validation {
	errs := make(map[string]string)

	appID := strings.TrimSpace(s.AppID)
	baseID := strings.TrimSpace(s.BaseID)
	tableID := strings.TrimSpace(s.TableID)

	if !s.HasAppCredentials() && !s.HasDirectToken() {
		if appID == "" {
			errs["appId"] = "app id is required"
		}
		if strings.TrimSpace(s.AppSecret) == "" {
			errs["appSecret"] = "app secret is required"
		}
	}

	if baseID == "" {
		errs["baseId"] = "base id is required"
	}
	if tableID == "" {
		errs["tableId"] = "table id is required"
	}

	if appID != "" && !strings.HasPrefix(appID, appIDPrefix) {
		errs["appId"] = `app id must start with "` + appIDPrefix + `"`
	}
	if baseID != "" && len(baseID) < minBaseIDLength {
		errs["baseId"] = "base id is too short"
	}
	if tableID != "" && !strings.HasPrefix(tableID, tableIDPrefix) {
		errs["tableId"] = `table id must start with "` + tableIDPrefix + `"`
	}

	if len(errs) == 0 {
		return Validation{Valid: true}
	}
	return Validation{Valid: false, Errors: errs}
}

// IsComplete reports whether the settings allow a remote sync attempt.
func (s Settings) IsComplete() bool {
	return ValidateSettings(s).Valid
}
