package settingsfile

import (
	"fmt"
	"os"
	"regexp"

	"gopkg.in/yaml.v3"
)

var envRef = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// Loader reads a settings file from disk.
type Loader struct {
	filePath string
	lookup   func(string) (string, bool)
}

// NewLoader creates a loader resolving ${VAR} references from the process environment.
func NewLoader(filePath string) *Loader {
	return &Loader{
		filePath: filePath,
		lookup:   os.LookupEnv,
	}
}

// Load reads and parses the settings file
func (l *Loader) Load() (File, error) {
	data, err := os.ReadFile(l.filePath)
	if err != nil {
		return File{}, fmt.Errorf("failed to read settings file: %w", err)
	}

	// Secrets are usually kept out of the file: ${FEISHU_APP_SECRET}
	data, err = l.expand(data)
	if err != nil {
		return File{}, err
	}

	var file File
	if err := yaml.Unmarshal(data, &file); err != nil {
		return File{}, fmt.Errorf("failed to parse settings yaml: %w", err)
	}

	return file, nil
}

// expand replaces ${VAR} references. An unset variable is an error so a
// missing secret is not silently saved as empty.
func (l *Loader) expand(data []byte) ([]byte, error) {
	var missing []string
	out := envRef.ReplaceAllFunc(data, func(ref []byte) []byte {
		name := string(envRef.FindSubmatch(ref)[1])
		v, ok := l.lookup(name)
		if !ok {
			missing = append(missing, name)
			return nil
		}
		return []byte(v)
	})
	if len(missing) > 0 {
		return nil, fmt.Errorf("settings file references unset variables: %v", missing)
	}
	return out, nil
}
