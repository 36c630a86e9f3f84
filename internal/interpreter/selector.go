// internal/interpreter/selector.go
package interpreter

import (
	"regexp"
	"strings"
)

// targetKind biases heuristic selector synthesis toward the element class
// an action operates on.
type targetKind int

const (
	kindInput targetKind = iota
	kindClickable
	kindAny
)

// wellKnownSelectors maps common element names to conventional selectors.
// These are consulted after the knowledge base but before the generic
// heuristic.
var wellKnownSelectors = map[string]string{
	"username":     "input[name='username']",
	"user name":    "input[name='username']",
	"password":     "input[name='password']",
	"email":        "input[name='email']",
	"search":       "input[name='q']",
	"search box":   "input[name='q']",
	"login":        "button[type='submit']",
	"login button": "button[type='submit']",
	"submit":       "button[type='submit']",
	"sign in":      "button[type='submit']",
}

var (
	cssTokenRegex = regexp.MustCompile(`^[a-zA-Z][\w-]*\[[^\]]+\]`)
	nonSlugRegex  = regexp.MustCompile(`[^a-z0-9]+`)
)

// trailing nouns users attach to element names that carry no selector
// information ("username field", "login button").
var noiseSuffixes = []string{
	" field", " input", " box", " textbox", " text box",
	" button", " link", " dropdown", " menu", " element",
}

// LooksLikeSelector reports whether the token is already a CSS or XPath
// selector rather than a human element name.
func LooksLikeSelector(s string) bool {
	switch {
	case s == "":
		return false
	case strings.HasPrefix(s, "#"),
		strings.HasPrefix(s, "."),
		strings.HasPrefix(s, "//"),
		strings.HasPrefix(s, "("),
		strings.HasPrefix(s, "["):
		return true
	case strings.ContainsAny(s, ">+~"):
		return true
	case cssTokenRegex.MatchString(s):
		return true
	}
	return false
}

// resolveSelector turns a human element name into a selector. Preference
// order: an explicit selector token in the instruction, a knowledge-base
// mapping for the name, a well-known conventional selector, and finally a
// generic heuristic built from the name itself.
func (i *Interpreter) resolveSelector(name string, kind targetKind) string {
	name = strings.TrimSpace(name)
	name = strings.Trim(name, `'"`)
	if LooksLikeSelector(name) {
		return name
	}

	normalized := NormalizeElementName(name)

	if i.kb != nil {
		if sel, ok := i.kb.Selector(normalized); ok {
			return sel
		}
		// Also try the un-stripped form so entries recorded with the
		// trailing noun still resolve.
		if sel, ok := i.kb.Selector(strings.ToLower(name)); ok {
			return sel
		}
	}

	if sel, ok := wellKnownSelectors[normalized]; ok {
		return sel
	}
	if sel, ok := wellKnownSelectors[strings.ToLower(name)]; ok {
		return sel
	}

	return heuristicSelector(name, normalized, kind)
}

// NormalizeElementName lowercases the name and strips leading articles and
// trailing element nouns. It is the canonical form under which knowledge-base
// mappings are stored and looked up, so other mapping producers use it too.
func NormalizeElementName(name string) string {
	n := strings.ToLower(strings.TrimSpace(name))
	n = strings.TrimPrefix(n, "the ")
	n = strings.TrimPrefix(n, "a ")
	n = strings.TrimPrefix(n, "an ")
	for _, suffix := range noiseSuffixes {
		if strings.HasSuffix(n, suffix) {
			n = strings.TrimSuffix(n, suffix)
			break
		}
	}
	return strings.TrimSpace(n)
}

// heuristicSelector is the lowest-ranked synthesis strategy. Inputs get a
// name-attribute guess; clickable targets get a text-content XPath.
func heuristicSelector(original, normalized string, kind targetKind) string {
	switch kind {
	case kindInput:
		return "input[name='" + slugify(normalized) + "']"
	case kindClickable:
		return "//*[self::button or self::a or @role='button'][contains(normalize-space(.), '" + xpathEscape(labelOf(original)) + "')]"
	default:
		return "//*[contains(normalize-space(.), '" + xpathEscape(labelOf(original)) + "')]"
	}
}

// labelOf recovers the visible label: the original casing with articles and
// trailing element nouns removed.
func labelOf(name string) string {
	n := strings.TrimSpace(name)
	lower := strings.ToLower(n)
	for _, prefix := range []string{"the ", "a ", "an "} {
		if strings.HasPrefix(lower, prefix) {
			n = n[len(prefix):]
			lower = lower[len(prefix):]
			break
		}
	}
	for _, suffix := range noiseSuffixes {
		if strings.HasSuffix(lower, suffix) {
			n = n[:len(n)-len(suffix)]
			break
		}
	}
	return strings.TrimSpace(n)
}

func slugify(s string) string {
	return strings.Trim(nonSlugRegex.ReplaceAllString(strings.ToLower(s), "_"), "_")
}

// xpathEscape guards the single-quoted XPath literal. Names containing a
// single quote fall back to the double-quoted form's safe subset.
func xpathEscape(s string) string {
	return strings.ReplaceAll(s, "'", "")
}
