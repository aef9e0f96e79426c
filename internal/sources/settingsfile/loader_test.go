package settingsfile

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "settings.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("Failed to create test YAML file: %v", err)
	}
	return path
}

func TestLoaderLoad(t *testing.T) {
	path := writeFile(t, `---
feishu:
  app_id: cli_a1b2c3d4
  app_secret: ${BITMARK_TEST_SECRET}
  base_id: bascnAbCdEfGhIj
  table_id: tblBookmarks
fields:
  notes: 备注
default_tags: [go, reading]
max_retries: 5
`)

	loader := NewLoader(path)
	loader.lookup = func(name string) (string, bool) {
		if name == "BITMARK_TEST_SECRET" {
			return "s3cret", true
		}
		return "", false
	}

	file, err := loader.Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if file.Feishu.AppSecret != "s3cret" {
		t.Errorf("AppSecret = %q, want expanded secret", file.Feishu.AppSecret)
	}
	if file.Feishu.TableID != "tblBookmarks" {
		t.Errorf("TableID = %q, want tblBookmarks", file.Feishu.TableID)
	}
	if file.Fields["notes"] != "备注" {
		t.Errorf("Fields[notes] = %q, want 备注", file.Fields["notes"])
	}
	if file.MaxRetries != 5 || len(file.DefaultTags) != 2 {
		t.Errorf("unexpected behaviour section: %+v", file)
	}
}

func TestLoaderLoadMissingVariable(t *testing.T) {
	path := writeFile(t, "feishu:\n  app_secret: ${BITMARK_TEST_UNSET}\n")

	loader := NewLoader(path)
	loader.lookup = func(string) (string, bool) { return "", false }

	_, err := loader.Load()
	if err == nil || !strings.Contains(err.Error(), "BITMARK_TEST_UNSET") {
		t.Fatalf("Load() error = %v, want missing variable error", err)
	}
}

func TestLoaderLoadErrors(t *testing.T) {
	if _, err := NewLoader(filepath.Join(t.TempDir(), "absent.yaml")).Load(); err == nil {
		t.Error("Load() should fail on a missing file")
	}

	path := writeFile(t, "feishu: [not, a, map]\n")
	if _, err := NewLoader(path).Load(); err == nil {
		t.Error("Load() should fail on malformed yaml")
	}
}
