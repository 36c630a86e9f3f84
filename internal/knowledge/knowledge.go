// internal/knowledge/knowledge.go
package knowledge

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/agileandy/testweaver/api/schemas"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Base is the accumulated application knowledge: element-name to selector
// mappings plus discovered routes, components and API endpoints. All methods
// are safe for concurrent use.
type Base struct {
	mu           sync.RWMutex
	mappings     map[string]string
	routes       map[string]struct{}
	components   map[string]struct{}
	apiEndpoints map[string]struct{}
	logger       *zap.Logger
}

// NewBase creates an empty knowledge base.
func NewBase(logger *zap.Logger) *Base {
	return &Base{
		mappings:     make(map[string]string),
		routes:       make(map[string]struct{}),
		components:   make(map[string]struct{}),
		apiEndpoints: make(map[string]struct{}),
		logger:       logger.Named("knowledge"),
	}
}

// SetMapping records a selector for a friendly element name. A later mapping
// for the same name replaces the earlier one.
func (b *Base) SetMapping(name, selector string) {
	if name == "" || selector == "" {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if prev, ok := b.mappings[name]; ok && prev != selector {
		b.logger.Debug("Replacing element mapping",
			zap.String("name", name),
			zap.String("old", prev),
			zap.String("new", selector))
	}
	b.mappings[name] = selector
}

// Selector returns the recorded selector for an element name.
func (b *Base) Selector(name string) (string, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	sel, ok := b.mappings[name]
	return sel, ok
}

// AddRoute records a discovered application route.
func (b *Base) AddRoute(route string) {
	if route == "" {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.routes[route] = struct{}{}
}

// AddComponent records a discovered UI component name.
func (b *Base) AddComponent(component string) {
	if component == "" {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.components[component] = struct{}{}
}

// AddEndpoint records a discovered API endpoint.
func (b *Base) AddEndpoint(endpoint string) {
	if endpoint == "" {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.apiEndpoints[endpoint] = struct{}{}
}

// Merge folds a snapshot into the base. Mappings from the snapshot win over
// existing entries with the same name; set-valued fields are unioned.
func (b *Base) Merge(snap schemas.KnowledgeSnapshot) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for name, sel := range snap.ElementMappings {
		if name != "" && sel != "" {
			b.mappings[name] = sel
		}
	}
	for _, r := range snap.Routes {
		if r != "" {
			b.routes[r] = struct{}{}
		}
	}
	for _, c := range snap.Components {
		if c != "" {
			b.components[c] = struct{}{}
		}
	}
	for _, e := range snap.APIEndpoints {
		if e != "" {
			b.apiEndpoints[e] = struct{}{}
		}
	}
}

// Snapshot returns a deep copy of the current state with set fields sorted,
// suitable for serialization or display.
func (b *Base) Snapshot() schemas.KnowledgeSnapshot {
	b.mu.RLock()
	defer b.mu.RUnlock()

	snap := schemas.KnowledgeSnapshot{
		ElementMappings: make(map[string]string, len(b.mappings)),
		Routes:          setToSorted(b.routes),
		Components:      setToSorted(b.components),
		APIEndpoints:    setToSorted(b.apiEndpoints),
	}
	for k, v := range b.mappings {
		snap.ElementMappings[k] = v
	}
	return snap
}

// Load merges the contents of a previously saved snapshot file into the base.
// A missing file is not an error; the base simply starts empty.
func (b *Base) Load(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to read knowledge file %s: %w", path, err)
	}

	var snap schemas.KnowledgeSnapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return fmt.Errorf("failed to parse knowledge file %s: %w", path, err)
	}

	b.Merge(snap)
	return nil
}

// Save atomically persists the current snapshot to path. The snapshot is
// written to a temporary file in the target directory and renamed into place
// so a crash mid-write never leaves a truncated file behind.
func (b *Base) Save(path string) error {
	snap := b.Snapshot()

	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal knowledge snapshot: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create knowledge directory %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, ".knowledge-*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp knowledge file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to write temp knowledge file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to close temp knowledge file: %w", err)
	}

	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to replace knowledge file %s: %w", path, err)
	}
	return nil
}

func setToSorted(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
