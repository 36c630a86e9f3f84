// internal/scriptstore/store.go

// Package scriptstore persists test scripts on disk as JSON or YAML. The
// two formats are structurally identical and round-trip to equal values.
package scriptstore

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/agileandy/testweaver/api/schemas"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Format names a serialization format.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// Store is a directory of script files, one script per file, named after
// the script.
type Store struct {
	dir    string
	logger *zap.Logger
}

// New opens a store rooted at dir, creating it if needed.
func New(dir string, logger *zap.Logger) (*Store, error) {
	if dir == "" {
		return nil, fmt.Errorf("script store directory is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create script directory %s: %w", dir, err)
	}
	return &Store{dir: dir, logger: logger.Named("scriptstore")}, nil
}

// Save validates and writes the script in the given format. An existing
// file for the same name and format is replaced atomically.
func (s *Store) Save(script *schemas.TestScript, format Format) (string, error) {
	if err := script.Validate(); err != nil {
		return "", err
	}

	var (
		data []byte
		err  error
	)
	switch format {
	case FormatJSON:
		data, err = json.MarshalIndent(script, "", "  ")
	case FormatYAML:
		data, err = yaml.Marshal(script)
	default:
		return "", fmt.Errorf("unsupported script format %q", format)
	}
	if err != nil {
		return "", fmt.Errorf("failed to marshal script %q: %w", script.Name, err)
	}

	path := filepath.Join(s.dir, sanitizeName(script.Name)+"."+string(format))

	tmp, err := os.CreateTemp(s.dir, ".script-*.tmp")
	if err != nil {
		return "", fmt.Errorf("failed to create temp script file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return "", fmt.Errorf("failed to write temp script file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return "", fmt.Errorf("failed to close temp script file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return "", fmt.Errorf("failed to replace script file %s: %w", path, err)
	}

	s.logger.Debug("Script saved", zap.String("name", script.Name), zap.String("path", path))
	return path, nil
}

// Load reads a script by name, trying JSON then YAML, or by explicit file
// path when name contains a path separator or known extension.
func (s *Store) Load(name string) (*schemas.TestScript, error) {
	path, err := s.resolve(name)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read script %s: %w", path, err)
	}

	var script schemas.TestScript
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		err = json.Unmarshal(data, &script)
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &script)
	default:
		return nil, fmt.Errorf("unsupported script file extension in %s", path)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse script %s: %w", path, err)
	}

	if err := script.Validate(); err != nil {
		return nil, fmt.Errorf("stored script %s is invalid: %w", path, err)
	}
	return &script, nil
}

// List returns the names of all stored scripts, sorted, without duplicates
// when a script exists in both formats.
func (s *Store) List() ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read script directory %s: %w", s.dir, err)
	}

	seen := make(map[string]struct{})
	var names []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(entry.Name()))
		if ext != ".json" && ext != ".yaml" && ext != ".yml" {
			continue
		}
		name := strings.TrimSuffix(entry.Name(), filepath.Ext(entry.Name()))
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

// resolve maps a script name or path onto an existing file.
func (s *Store) resolve(name string) (string, error) {
	if strings.ContainsRune(name, os.PathSeparator) || hasScriptExt(name) {
		if _, err := os.Stat(name); err == nil {
			return name, nil
		}
		candidate := filepath.Join(s.dir, name)
		if _, err := os.Stat(candidate); err == nil {
			return candidate, nil
		}
		return "", fmt.Errorf("script file %s not found", name)
	}

	base := filepath.Join(s.dir, sanitizeName(name))
	for _, ext := range []string{".json", ".yaml", ".yml"} {
		if _, err := os.Stat(base + ext); err == nil {
			return base + ext, nil
		}
	}
	return "", fmt.Errorf("script %q not found in %s", name, s.dir)
}

func hasScriptExt(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".json", ".yaml", ".yml":
		return true
	}
	return false
}

var nameSanitizer = regexp.MustCompile(`[^a-zA-Z0-9._-]+`)

func sanitizeName(name string) string {
	return strings.Trim(nameSanitizer.ReplaceAllString(name, "_"), "_")
}
