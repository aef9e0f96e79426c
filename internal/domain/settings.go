package domain

import "strings"

// Logical capture fields that can be mapped onto bitable columns.
const (
	FieldTitle       = "title"
	FieldURL         = "url"
	FieldDescription = "description"
	FieldNotes       = "notes"
	FieldTags        = "tags"
	FieldSummary     = "summary"
	FieldTime        = "time"
)

// DefaultColumns are the column names of the stock bookmark table template.
// They are used for every logical field the user did not map explicitly.
var DefaultColumns = map[string]string{
	FieldURL:         "网站地址",
	FieldTitle:       "网站标题",
	FieldDescription: "网站说明",
	FieldNotes:       "网站备注",
	FieldTags:        "网站标签",
	FieldSummary:     "页面摘要",
	FieldTime:        "创建时间",
}

// DefaultTags are the suggestions seeded on first run.
var DefaultTags = []string{"网页收藏", "知识管理", "技术文章", "学习资料", "工作参考"}

const (
	// DefaultMaxRetries is the retry budget for remote writes when none is configured.
	DefaultMaxRetries = 3

	redactedSecret = "***"
)

// FieldMapping maps logical field names to concrete bitable column names.
type FieldMapping map[string]string

// Column returns the mapped column for a logical field, falling back to the default name.
func (m FieldMapping) Column(field string) string {
	if m != nil {
		if col := strings.TrimSpace(m[field]); col != "" {
			return col
		}
	}
	return DefaultColumns[field]
}

// Settings is the user-editable configuration persisted in the config bucket.
type Settings struct {
	// ─────────────────────────────
	// Authentication
	// ─────────────────────────────

	// AppID is the Feishu application id (cli_...).
	AppID string `json:"appId,omitempty" yaml:"app_id"`

	// AppSecret is the Feishu application secret.
	AppSecret string `json:"appSecret,omitempty" yaml:"app_secret"`

	// TenantAccessToken is an optional long-lived token used instead of
	// the app id/secret exchange.
	TenantAccessToken string `json:"tenantAccessToken,omitempty" yaml:"tenant_access_token"`

	// ─────────────────────────────
	// Remote target
	// ─────────────────────────────

	// BaseID identifies the bitable app.
	BaseID string `json:"baseId,omitempty" yaml:"base_id"`

	// TableID identifies the table inside the bitable app (tbl...).
	TableID string `json:"tableId,omitempty" yaml:"table_id"`

	// FieldMapping overrides default column names per logical field.
	FieldMapping FieldMapping `json:"fieldMapping,omitempty" yaml:"field_mapping"`

	// ─────────────────────────────
	// Behaviour
	// ─────────────────────────────

	// DefaultTags are suggested in the capture form.
	DefaultTags []string `json:"defaultTags" yaml:"default_tags"`

	// MaxRetries bounds remote write attempts.
	MaxRetries int `json:"maxRetries" yaml:"max_retries"`
}

// DefaultSettings returns the configuration written on first run.
func DefaultSettings() Settings {
	tags := make([]string, len(DefaultTags))
	copy(tags, DefaultTags)
	return Settings{
		DefaultTags: tags,
		MaxRetries:  DefaultMaxRetries,
	}
}

// HasAppCredentials reports whether an app id/secret pair is present.
func (s Settings) HasAppCredentials() bool {
	return strings.TrimSpace(s.AppID) != "" && strings.TrimSpace(s.AppSecret) != ""
}

// HasDirectToken reports whether a long-lived token was supplied.
func (s Settings) HasDirectToken() bool {
	return strings.TrimSpace(s.TenantAccessToken) != ""
}

// Attempts returns the number of remote write attempts allowed (at least one).
func (s Settings) Attempts() int {
	if s.MaxRetries < 1 {
		return 1
	}
	return s.MaxRetries
}

// Redacted returns a copy safe to hand to the UI or an export file.
func (s Settings) Redacted() Settings {
	out := s
	if out.AppSecret != "" {
		out.AppSecret = redactedSecret
	}
	if out.TenantAccessToken != "" {
		out.TenantAccessToken = redactedSecret
	}
	return out
}

// MergeSecrets restores secrets that were redacted in s from current.
func (s Settings) MergeSecrets(current Settings) Settings {
	out := s
	if out.AppSecret == redactedSecret {
		out.AppSecret = current.AppSecret
	}
	if out.TenantAccessToken == redactedSecret {
		out.TenantAccessToken = current.TenantAccessToken
	}
	return out
}
