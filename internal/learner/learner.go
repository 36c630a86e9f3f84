// internal/learner/learner.go
package learner

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"sync"

	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/agileandy/testweaver/api/schemas"
	"github.com/agileandy/testweaver/internal/interpreter"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// patternEntry is the internal bookkeeping for one action sequence.
type patternEntry struct {
	Sequence []schemas.ActionType `json:"pattern"`
	Count    int                  `json:"count"`
	Examples []string             `json:"examples"`
	// Rank preserves first-observed order across save/load cycles.
	Rank int `json:"rank"`
}

// persistedState is the on-disk shape of the learner.
type persistedState struct {
	Patterns []patternEntry    `json:"patterns"`
	Observed map[string]string `json:"observed"`
}

// Learner mines recurring action sequences out of observed test scripts.
// Observing the same unchanged script twice does not inflate counts; a
// script whose content changed counts as a fresh observation.
type Learner struct {
	mu        sync.Mutex
	patterns  map[string]*patternEntry
	observed  map[string]string // script name -> content hash
	proposals map[string]string // element name -> selector
	nextRank  int
	logger    *zap.Logger
}

// New creates an empty learner.
func New(logger *zap.Logger) *Learner {
	return &Learner{
		patterns:  make(map[string]*patternEntry),
		observed:  make(map[string]string),
		proposals: make(map[string]string),
		logger:    logger.Named("learner"),
	}
}

// Observe records the action sequence of a script. Scripts with no steps are
// ignored.
func (l *Learner) Observe(script schemas.TestScript) {
	seq := script.ActionTypes()
	if len(seq) == 0 || script.Name == "" {
		return
	}

	hash := contentHash(script)
	proposals := selectorProposals(script)

	l.mu.Lock()
	defer l.mu.Unlock()

	// Selector mappings refresh on every observation, even an unchanged
	// one, so a fresh process still surfaces them.
	for name, sel := range proposals {
		l.proposals[name] = sel
	}

	if prev, ok := l.observed[script.Name]; ok && prev == hash {
		// Unchanged script, already counted.
		return
	}
	l.observed[script.Name] = hash

	key := sequenceKey(seq)
	entry, ok := l.patterns[key]
	if !ok {
		entry = &patternEntry{
			Sequence: append([]schemas.ActionType(nil), seq...),
			Rank:     l.nextRank,
		}
		l.nextRank++
		l.patterns[key] = entry
	}
	entry.Count++
	if !containsString(entry.Examples, script.Name) {
		entry.Examples = append(entry.Examples, script.Name)
	}

	l.logger.Debug("Observed script",
		zap.String("script", script.Name),
		zap.String("sequence", key),
		zap.Int("count", entry.Count))
}

// CommonPatterns returns every pattern observed at least minCount times,
// ordered by descending count. Patterns with equal counts keep the order in
// which they were first observed.
func (l *Learner) CommonPatterns(minCount int) []schemas.Pattern {
	if minCount < 1 {
		minCount = 1
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	entries := make([]*patternEntry, 0, len(l.patterns))
	for _, e := range l.patterns {
		if e.Count >= minCount {
			entries = append(entries, e)
		}
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Count != entries[j].Count {
			return entries[i].Count > entries[j].Count
		}
		return entries[i].Rank < entries[j].Rank
	})

	out := make([]schemas.Pattern, 0, len(entries))
	for _, e := range entries {
		examples := append([]string(nil), e.Examples...)
		sort.Strings(examples)
		out = append(out, schemas.Pattern{
			Sequence: append([]schemas.ActionType(nil), e.Sequence...),
			Count:    e.Count,
			Examples: examples,
		})
	}
	return out
}

// SelectorProposals returns the element-name to selector mappings mined from
// observed scripts, keyed by the interpreter's canonical element name. The
// caller merges them into the knowledge base, where the usual last-write-wins
// rule applies.
func (l *Learner) SelectorProposals() map[string]string {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make(map[string]string, len(l.proposals))
	for name, sel := range l.proposals {
		out[name] = sel
	}
	return out
}

// elementBearing lists the action types whose selector points at an element
// a user is likely to name again.
var elementBearing = map[schemas.ActionType]struct{}{
	schemas.ActionClick:         {},
	schemas.ActionTypeText:      {},
	schemas.ActionSelect:        {},
	schemas.ActionAssertText:    {},
	schemas.ActionAssertElement: {},
	schemas.ActionExtract:       {},
	schemas.ActionScroll:        {},
}

// selectorProposals derives element-name to selector mappings from the steps
// of one script. Steps whose instruction text names no element contribute
// nothing. Within a script, later steps win on a name conflict.
func selectorProposals(script schemas.TestScript) map[string]string {
	out := make(map[string]string)
	for _, step := range script.Steps {
		if step.Action.Selector == "" {
			continue
		}
		if _, ok := elementBearing[step.Action.Type]; !ok {
			continue
		}
		if name := elementNameOf(step); name != "" {
			out[name] = step.Action.Selector
		}
	}
	return out
}

var quotedPhraseRegex = regexp.MustCompile(`['"]([^'"]+)['"]`)

// elementPrepositions introduce the element phrase in instructions like
// "type 'admin' into the username field". Longer forms come first so that
// "into" is not cut at its embedded "in".
var elementPrepositions = []string{" into ", " in ", " on ", " from "}

var leadingVerbs = map[string]struct{}{
	"click": {}, "press": {}, "tap": {}, "select": {}, "check": {},
	"verify": {}, "assert": {}, "extract": {}, "scroll": {}, "see": {},
	"fill": {}, "set": {},
}

// elementNameOf recovers the element name a step's instruction text refers
// to, in the canonical knowledge-base form. It returns "" when the text
// names no element or already carries a raw selector.
func elementNameOf(step schemas.TestStep) string {
	desc := strings.TrimSpace(step.Description)
	if desc == "" {
		return ""
	}
	lower := strings.ToLower(desc)

	phrase := ""
	cut := -1
	for _, prep := range elementPrepositions {
		if idx := strings.LastIndex(lower, prep); idx > cut {
			cut = idx
			phrase = desc[idx+len(prep):]
		}
	}

	if cut < 0 {
		switch step.Action.Type {
		case schemas.ActionTypeText, schemas.ActionSelect, schemas.ActionAssertText:
			// The quoted text of these instructions is the value, never
			// the element, so only an explicit element phrase counts.
			if idx := strings.Index(lower, " with "); idx > 0 {
				phrase = stripLeadingVerb(desc[:idx])
			}
		default:
			if m := quotedPhraseRegex.FindStringSubmatch(desc); m != nil {
				phrase = m[1]
			} else {
				phrase = stripLeadingVerb(desc)
			}
		}
	}

	name := interpreter.NormalizeElementName(phrase)
	if name == "" || interpreter.LooksLikeSelector(name) {
		return ""
	}
	return name
}

func stripLeadingVerb(s string) string {
	s = strings.TrimSpace(s)
	fields := strings.Fields(s)
	if len(fields) < 2 {
		return ""
	}
	if _, ok := leadingVerbs[strings.ToLower(fields[0])]; !ok {
		return ""
	}
	return strings.TrimSpace(strings.TrimPrefix(s, fields[0]))
}

// Load merges previously persisted state into the learner. Counts for a
// sequence present on both sides take the larger value and example sets are
// unioned; the loaded file never decreases what is already in memory. A
// missing file is not an error.
func (l *Learner) Load(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to read patterns file %s: %w", path, err)
	}

	var state persistedState
	if err := json.Unmarshal(data, &state); err != nil {
		return fmt.Errorf("failed to parse patterns file %s: %w", path, err)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	sort.Slice(state.Patterns, func(i, j int) bool { return state.Patterns[i].Rank < state.Patterns[j].Rank })
	for _, loaded := range state.Patterns {
		if len(loaded.Sequence) == 0 {
			continue
		}
		key := sequenceKey(loaded.Sequence)
		entry, ok := l.patterns[key]
		if !ok {
			entry = &patternEntry{
				Sequence: append([]schemas.ActionType(nil), loaded.Sequence...),
				Rank:     l.nextRank,
			}
			l.nextRank++
			l.patterns[key] = entry
		}
		if loaded.Count > entry.Count {
			entry.Count = loaded.Count
		}
		for _, ex := range loaded.Examples {
			if !containsString(entry.Examples, ex) {
				entry.Examples = append(entry.Examples, ex)
			}
		}
	}

	for name, hash := range state.Observed {
		if _, ok := l.observed[name]; !ok {
			l.observed[name] = hash
		}
	}
	return nil
}

// Save atomically persists the learner state via a temp file and rename.
func (l *Learner) Save(path string) error {
	l.mu.Lock()
	state := persistedState{
		Patterns: make([]patternEntry, 0, len(l.patterns)),
		Observed: make(map[string]string, len(l.observed)),
	}
	for _, e := range l.patterns {
		state.Patterns = append(state.Patterns, *e)
	}
	for k, v := range l.observed {
		state.Observed[k] = v
	}
	l.mu.Unlock()

	sort.Slice(state.Patterns, func(i, j int) bool { return state.Patterns[i].Rank < state.Patterns[j].Rank })

	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal patterns: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create patterns directory %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, ".patterns-*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp patterns file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to write temp patterns file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to close temp patterns file: %w", err)
	}

	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to replace patterns file %s: %w", path, err)
	}
	return nil
}

// contentHash fingerprints a script's observable content. Metadata and
// timestamps are excluded so cosmetic edits do not count as new observations.
func contentHash(script schemas.TestScript) string {
	h := sha256.New()
	fmt.Fprintf(h, "%s\x00%s\x00", script.Name, script.Mode)
	for _, step := range script.Steps {
		fmt.Fprintf(h, "%s\x1f%s\x1f%s\x1f%s\x1f%d\x1e",
			step.Description,
			step.Action.Type,
			step.Action.Selector,
			step.Action.Value,
			step.Action.TimeoutMs)
	}
	return hex.EncodeToString(h.Sum(nil))
}

func sequenceKey(seq []schemas.ActionType) string {
	parts := make([]string, len(seq))
	for i, a := range seq {
		parts[i] = string(a)
	}
	return strings.Join(parts, ">")
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
