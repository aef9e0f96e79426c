package settingsfile

import (
	"testing"

	"github.com/MrSnakeDoc/bitmark/internal/domain"
)

func TestApply(t *testing.T) {
	base := domain.DefaultSettings()
	base.AppSecret = "kept"
	base.FieldMapping = domain.FieldMapping{domain.FieldTitle: "Name"}

	file := File{
		Feishu: FeishuSection{
			AppID:   " cli_a1b2c3d4 ",
			BaseID:  "bascnAbCdEfGhIj",
			TableID: "tblBookmarks",
		},
		Fields:      map[string]string{"notes": "备注"},
		DefaultTags: []string{"go", " go ", ""},
	}

	got, err := Apply(file, base)
	if err != nil {
		t.Fatalf("Apply() error = %v", err)
	}

	if got.AppID != "cli_a1b2c3d4" {
		t.Errorf("AppID = %q, want trimmed value", got.AppID)
	}
	if got.AppSecret != "kept" {
		t.Errorf("AppSecret = %q, want base value", got.AppSecret)
	}
	if got.FieldMapping.Column(domain.FieldTitle) != "Name" || got.FieldMapping.Column(domain.FieldNotes) != "备注" {
		t.Errorf("FieldMapping = %v, want base and file entries merged", got.FieldMapping)
	}
	if len(got.DefaultTags) != 1 || got.DefaultTags[0] != "go" {
		t.Errorf("DefaultTags = %v, want [go]", got.DefaultTags)
	}
	if got.MaxRetries != domain.DefaultMaxRetries {
		t.Errorf("MaxRetries = %d, want default", got.MaxRetries)
	}
	if !got.IsComplete() {
		t.Errorf("settings should be complete: %v", domain.ValidateSettings(got).Errors)
	}
	if _, ok := base.FieldMapping[domain.FieldNotes]; ok {
		t.Error("Apply() modified the base field mapping")
	}
}

func TestApplyRejects(t *testing.T) {
	tests := []struct {
		name string
		file File
	}{
		{name: "unknown field", file: File{Fields: map[string]string{"author": "作者"}}},
		{name: "negative retries", file: File{MaxRetries: -1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Apply(tt.file, domain.DefaultSettings()); err == nil {
				t.Error("Apply() should have failed")
			}
		})
	}
}
