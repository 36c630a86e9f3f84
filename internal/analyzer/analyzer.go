// internal/analyzer/analyzer.go

// Package analyzer implements smart mode's static source scan. It walks an
// application source tree, extracts routes, component names, API endpoints
// and element selectors, and feeds them into the knowledge base so the
// interpreter can resolve semantic names to real selectors.
package analyzer

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/agileandy/testweaver/api/schemas"
)

// skipDirs are never descended into.
var skipDirs = map[string]struct{}{
	"node_modules": {},
	".git":         {},
	"dist":         {},
	"build":        {},
	"vendor":       {},
	".next":        {},
}

// maxFileSize guards against scanning bundled or generated blobs.
const maxFileSize = 2 << 20

// Analyzer scans source trees concurrently.
type Analyzer struct {
	logger      *zap.Logger
	concurrency int
}

// New constructs an Analyzer. concurrency <= 0 selects a sane default.
func New(logger *zap.Logger, concurrency int) *Analyzer {
	if concurrency <= 0 {
		concurrency = 8
	}
	return &Analyzer{logger: logger.Named("analyzer"), concurrency: concurrency}
}

// Scan walks root and returns everything learned about the application.
// Files that fail to read or parse are logged and skipped; only the walk
// itself can fail the scan.
func (a *Analyzer) Scan(ctx context.Context, root string) (*schemas.KnowledgeSnapshot, error) {
	acc := newAccumulator()

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.concurrency)

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if _, skip := skipDirs[d.Name()]; skip {
				return filepath.SkipDir
			}
			return nil
		}
		if gctx.Err() != nil {
			return gctx.Err()
		}

		ext := strings.ToLower(filepath.Ext(path))
		switch ext {
		case ".html", ".htm", ".js", ".jsx", ".ts", ".tsx", ".vue":
		default:
			return nil
		}
		if info, err := d.Info(); err != nil || info.Size() > maxFileSize {
			return nil
		}

		g.Go(func() error {
			data, err := os.ReadFile(path)
			if err != nil {
				a.logger.Warn("Failed to read source file", zap.String("path", path), zap.Error(err))
				return nil
			}
			switch ext {
			case ".html", ".htm":
				if err := scanHTML(data, acc); err != nil {
					a.logger.Warn("Failed to parse HTML file", zap.String("path", path), zap.Error(err))
				}
			default:
				scanScript(string(data), acc)
			}
			return nil
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("source scan of %s failed: %w", root, err)
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	snap := acc.snapshot()
	a.logger.Info("Source scan complete",
		zap.String("root", root),
		zap.Int("element_mappings", len(snap.ElementMappings)),
		zap.Int("routes", len(snap.Routes)),
		zap.Int("components", len(snap.Components)),
		zap.Int("api_endpoints", len(snap.APIEndpoints)))
	return &snap, nil
}

// ApplyTo scans root and merges the findings into the knowledge base.
func (a *Analyzer) ApplyTo(ctx context.Context, root string, kb interface {
	Merge(schemas.KnowledgeSnapshot)
}) error {
	snap, err := a.Scan(ctx, root)
	if err != nil {
		return err
	}
	kb.Merge(*snap)
	return nil
}

// accumulator collects findings from concurrent file scans.
type accumulator struct {
	mu        sync.Mutex
	mappings  map[string]string
	routes    map[string]struct{}
	comps     map[string]struct{}
	endpoints map[string]struct{}
}

func newAccumulator() *accumulator {
	return &accumulator{
		mappings:  make(map[string]string),
		routes:    make(map[string]struct{}),
		comps:     make(map[string]struct{}),
		endpoints: make(map[string]struct{}),
	}
}

func (c *accumulator) addMapping(name, selector string) {
	if name == "" || selector == "" {
		return
	}
	c.mu.Lock()
	c.mappings[name] = selector
	c.mu.Unlock()
}

func (c *accumulator) addRoute(r string) {
	c.mu.Lock()
	c.routes[r] = struct{}{}
	c.mu.Unlock()
}

func (c *accumulator) addComponent(name string) {
	c.mu.Lock()
	c.comps[name] = struct{}{}
	c.mu.Unlock()
}

func (c *accumulator) addEndpoint(e string) {
	c.mu.Lock()
	c.endpoints[e] = struct{}{}
	c.mu.Unlock()
}

func (c *accumulator) snapshot() schemas.KnowledgeSnapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	snap := schemas.KnowledgeSnapshot{
		ElementMappings: make(map[string]string, len(c.mappings)),
	}
	for k, v := range c.mappings {
		snap.ElementMappings[k] = v
	}
	for r := range c.routes {
		snap.Routes = append(snap.Routes, r)
	}
	for n := range c.comps {
		snap.Components = append(snap.Components, n)
	}
	for e := range c.endpoints {
		snap.APIEndpoints = append(snap.APIEndpoints, e)
	}
	return snap
}

// humanizeIdentifier turns kebab/snake/camel identifiers into the
// lowercase, space-separated names users write in instructions.
var camelBoundary = regexp.MustCompile(`([a-z0-9])([A-Z])`)

func humanizeIdentifier(id string) string {
	s := camelBoundary.ReplaceAllString(id, "$1 $2")
	s = strings.NewReplacer("-", " ", "_", " ").Replace(s)
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}
