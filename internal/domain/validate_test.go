package domain

import "testing"

func validSettings() Settings {
	return Settings{
		AppID:     "cli_a1b2c3d4e5f6",
		AppSecret: "secret",
		BaseID:    "bascnAbCdEfGhIj",
		TableID:   "tblABC",
	}
}

func TestValidateSettings(t *testing.T) {
	tests := []struct {
		name       string
		mutate     func(s *Settings)
		wantValid  bool
		wantFields []string
	}{
		{
			name:      "complete settings",
			mutate:    func(s *Settings) {},
			wantValid: true,
		},
		{
			name:       "wrong app id prefix",
			mutate:     func(s *Settings) { s.AppID = "xyz_123" },
			wantFields: []string{"appId"},
		},
		{
			name:       "wrong table id prefix",
			mutate:     func(s *Settings) { s.TableID = "abc123" },
			wantFields: []string{"tableId"},
		},
		{
			name:       "short base id",
			mutate:     func(s *Settings) { s.BaseID = "short" },
			wantFields: []string{"baseId"},
		},
		{
			name: "no authentication at all",
			mutate: func(s *Settings) {
				s.AppID = ""
				s.AppSecret = ""
			},
			wantFields: []string{"appId", "appSecret"},
		},
		{
			name:       "secret missing without token",
			mutate:     func(s *Settings) { s.AppSecret = "" },
			wantFields: []string{"appSecret"},
		},
		{
			name: "direct token replaces credentials",
			mutate: func(s *Settings) {
				s.AppID = ""
				s.AppSecret = ""
				s.TenantAccessToken = "t-abcdef"
			},
			wantValid: true,
		},
		{
			name: "target missing",
			mutate: func(s *Settings) {
				s.BaseID = "  "
				s.TableID = ""
			},
			wantFields: []string{"baseId", "tableId"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := validSettings()
			tt.mutate(&s)

			got := ValidateSettings(s)
			if got.Valid != tt.wantValid {
				t.Fatalf("Valid = %v, want %v (errors: %v)", got.Valid, tt.wantValid, got.Errors)
			}
			if len(got.Errors) != len(tt.wantFields) {
				t.Errorf("got %d errors %v, want fields %v", len(got.Errors), got.Errors, tt.wantFields)
			}
			for _, f := range tt.wantFields {
				if _, ok := got.Errors[f]; !ok {
					t.Errorf("expected an error for %s, got %v", f, got.Errors)
				}
			}
		})
	}
}

func TestValidateSettingsIsDeterministic(t *testing.T) {
	s := validSettings()
	s.AppID = "bad"
	first := ValidateSettings(s)
	second := ValidateSettings(s)
	if first.Errors["appId"] != second.Errors["appId"] {
		t.Errorf("validation is not deterministic: %q vs %q", first.Errors["appId"], second.Errors["appId"])
	}
}

func TestFieldMappingColumn(t *testing.T) {
	m := FieldMapping{FieldTitle: "Title", FieldNotes: "  "}

	if got := m.Column(FieldTitle); got != "Title" {
		t.Errorf("Column(title) = %q, want Title", got)
	}
	if got := m.Column(FieldNotes); got != DefaultColumns[FieldNotes] {
		t.Errorf("blank mapping should fall back, got %q", got)
	}
	if got := FieldMapping(nil).Column(FieldURL); got != DefaultColumns[FieldURL] {
		t.Errorf("nil mapping should fall back, got %q", got)
	}
}

func TestSettingsRedactedAndMerge(t *testing.T) {
	s := validSettings()
	s.TenantAccessToken = "t-live"

	red := s.Redacted()
	if red.AppSecret != "***" || red.TenantAccessToken != "***" {
		t.Fatalf("secrets not redacted: %+v", red)
	}
	if red.AppID != s.AppID {
		t.Errorf("app id should be kept, got %q", red.AppID)
	}

	restored := red.MergeSecrets(s)
	if restored.AppSecret != s.AppSecret || restored.TenantAccessToken != s.TenantAccessToken {
		t.Errorf("MergeSecrets did not restore secrets: %+v", restored)
	}
}

func TestSettingsAttempts(t *testing.T) {
	if got := (Settings{MaxRetries: 0}).Attempts(); got != 1 {
		t.Errorf("Attempts() with 0 = %d, want 1", got)
	}
	if got := (Settings{MaxRetries: 4}).Attempts(); got != 4 {
		t.Errorf("Attempts() with 4 = %d, want 4", got)
	}
}
