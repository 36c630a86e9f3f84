// internal/interpreter/rules.go
package interpreter

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/agileandy/testweaver/api/schemas"
)

// rule pairs a matcher with an action builder. Rules are evaluated in
// declaration order and the first match wins, so quoted-value patterns and
// other specific forms must precede their bare-word fallbacks.
type rule struct {
	name  string
	re    *regexp.Regexp
	build func(i *Interpreter, m []string) (schemas.Action, error)
}

var rules = []rule{
	{
		name: "wait-networkidle",
		re:   regexp.MustCompile(`(?i)^wait\s+(?:for\s+|until\s+)?(?:the\s+)?network\s*(?:idle|is\s+idle|to\s+be\s+idle)?$`),
		build: func(i *Interpreter, m []string) (schemas.Action, error) {
			return schemas.Action{Type: schemas.ActionWait, Value: schemas.WaitNetworkIdle}, nil
		},
	},
	{
		name: "wait-load",
		re:   regexp.MustCompile(`(?i)^wait\s+(?:for\s+)?(?:the\s+)?(?:page\s+)?(?:to\s+)?load(?:ed)?$`),
		build: func(i *Interpreter, m []string) (schemas.Action, error) {
			return schemas.Action{Type: schemas.ActionWait, Value: schemas.WaitLoad}, nil
		},
	},
	{
		name: "wait-seconds",
		re:   regexp.MustCompile(`(?i)^wait\s+(?:for\s+)?(\d+)\s*s(?:ec(?:ond)?s?)?$`),
		build: func(i *Interpreter, m []string) (schemas.Action, error) {
			secs, err := strconv.Atoi(m[1])
			if err != nil {
				return schemas.Action{}, err
			}
			return schemas.Action{Type: schemas.ActionWait, Value: strconv.Itoa(secs * 1000)}, nil
		},
	},
	{
		name: "wait-milliseconds",
		re:   regexp.MustCompile(`(?i)^wait\s+(?:for\s+)?(\d+)\s*(?:ms|milliseconds?)?$`),
		build: func(i *Interpreter, m []string) (schemas.Action, error) {
			return schemas.Action{Type: schemas.ActionWait, Value: m[1]}, nil
		},
	},
	{
		name: "type-quoted",
		re:   regexp.MustCompile(`(?i)^(?:type|enter|input)\s+['"](.*?)['"]\s+(?:in|into|on)\s+(?:the\s+)?(.+)$`),
		build: func(i *Interpreter, m []string) (schemas.Action, error) {
			return schemas.Action{
				Type:     schemas.ActionTypeText,
				Selector: i.resolveSelector(m[2], kindInput),
				Value:    m[1],
			}, nil
		},
	},
	{
		name: "fill-with",
		re:   regexp.MustCompile(`(?i)^fill\s+(?:in\s+)?(?:the\s+)?(.+?)\s+with\s+['"](.*?)['"]$`),
		build: func(i *Interpreter, m []string) (schemas.Action, error) {
			return schemas.Action{
				Type:     schemas.ActionTypeText,
				Selector: i.resolveSelector(m[1], kindInput),
				Value:    m[2],
			}, nil
		},
	},
	{
		name: "select-quoted",
		re:   regexp.MustCompile(`(?i)^(?:select|choose|pick)\s+['"](.*?)['"]\s+(?:from|in)\s+(?:the\s+)?(.+)$`),
		build: func(i *Interpreter, m []string) (schemas.Action, error) {
			return schemas.Action{
				Type:     schemas.ActionSelect,
				Selector: i.resolveSelector(m[2], kindInput),
				Value:    m[1],
			}, nil
		},
	},
	{
		name: "assert-text",
		re:   regexp.MustCompile(`(?i)^(?:assert|verify|check|ensure)\s+(?:that\s+)?(?:the\s+)?(.+?)\s+(?:contains|shows|says|displays)\s+['"](.*?)['"]$`),
		build: func(i *Interpreter, m []string) (schemas.Action, error) {
			return schemas.Action{
				Type:     schemas.ActionAssertText,
				Selector: i.resolveSelector(m[1], kindAny),
				Value:    m[2],
			}, nil
		},
	},
	{
		name: "assert-element",
		re:   regexp.MustCompile(`(?i)^(?:assert|verify|check|ensure)\s+(?:that\s+)?(?:the\s+)?(.+?)\s+(?:exists|is\s+visible|is\s+present|appears)$`),
		build: func(i *Interpreter, m []string) (schemas.Action, error) {
			return schemas.Action{
				Type:     schemas.ActionAssertElement,
				Selector: i.resolveSelector(m[1], kindAny),
			}, nil
		},
	},
	{
		name: "extract-text",
		re:   regexp.MustCompile(`(?i)^(?:extract|get|read)\s+(?:the\s+)?text\s+(?:from|of)\s+(?:the\s+)?(.+)$`),
		build: func(i *Interpreter, m []string) (schemas.Action, error) {
			return schemas.Action{
				Type:     schemas.ActionExtract,
				Selector: i.resolveSelector(m[1], kindAny),
			}, nil
		},
	},
	{
		name: "navigate",
		re:   regexp.MustCompile(`(?i)^(?:go\s+to|navigate\s+to|open|visit)\s+(.+)$`),
		build: func(i *Interpreter, m []string) (schemas.Action, error) {
			return schemas.Action{Type: schemas.ActionNavigate, Value: canonicalURL(m[1])}, nil
		},
	},
	{
		name: "screenshot",
		re:   regexp.MustCompile(`(?i)^(?:take\s+(?:a\s+)?screenshot|screenshot|capture\s+(?:the\s+)?(?:page|screen))$`),
		build: func(i *Interpreter, m []string) (schemas.Action, error) {
			return schemas.Action{Type: schemas.ActionScreenshot}, nil
		},
	},
	{
		name: "scroll",
		re:   regexp.MustCompile(`(?i)^scroll(?:\s+(?:down|up))?(?:\s+to\s+(?:the\s+)?(.+))?$`),
		build: func(i *Interpreter, m []string) (schemas.Action, error) {
			a := schemas.Action{Type: schemas.ActionScroll}
			if m[1] != "" {
				a.Selector = i.resolveSelector(m[1], kindAny)
			}
			return a, nil
		},
	},
	{
		name: "click-quoted",
		re:   regexp.MustCompile(`(?i)^(?:click|press|tap)(?:\s+on)?\s+['"](.+?)['"](?:\s+button|\s+link)?$`),
		build: func(i *Interpreter, m []string) (schemas.Action, error) {
			return schemas.Action{
				Type:     schemas.ActionClick,
				Selector: i.resolveSelector(m[1], kindClickable),
			}, nil
		},
	},
	{
		name: "click-bare",
		re:   regexp.MustCompile(`(?i)^(?:click|press|tap)(?:\s+on)?\s+(?:the\s+)?(.+)$`),
		build: func(i *Interpreter, m []string) (schemas.Action, error) {
			return schemas.Action{
				Type:     schemas.ActionClick,
				Selector: i.resolveSelector(m[1], kindClickable),
			}, nil
		},
	},
}

var schemeRegex = regexp.MustCompile(`(?i)^[a-z][a-z0-9+.-]*://`)

// canonicalURL defaults bare hosts to https.
func canonicalURL(raw string) string {
	raw = strings.TrimSpace(strings.Trim(strings.TrimSpace(raw), `'"`))
	if schemeRegex.MatchString(raw) || strings.HasPrefix(raw, "about:") {
		return raw
	}
	return "https://" + raw
}

// clauseSeparators are tried longest-first so " and then " never splits as
// " and " followed by a dangling "then".
var clauseSeparators = []string{" and then ", " then ", " and ", ",", ";"}

// splitClauses breaks a multi-step instruction on clause boundaries,
// ignoring separators that fall inside quoted values. Produced order is the
// clause order of the input.
func splitClauses(text string) []string {
	var clauses []string
	var current strings.Builder
	var quote byte

	flush := func() {
		c := strings.TrimSpace(current.String())
		// A comma followed by "then click ..." leaves a dangling "then".
		c = strings.TrimSpace(strings.TrimPrefix(c, "then "))
		if c != "" {
			clauses = append(clauses, c)
		}
		current.Reset()
	}

	for pos := 0; pos < len(text); {
		c := text[pos]

		if quote != 0 {
			if c == quote {
				quote = 0
			}
			current.WriteByte(c)
			pos++
			continue
		}
		if c == '\'' || c == '"' {
			quote = c
			current.WriteByte(c)
			pos++
			continue
		}

		matched := false
		for _, sep := range clauseSeparators {
			if pos+len(sep) <= len(text) && strings.EqualFold(text[pos:pos+len(sep)], sep) {
				flush()
				pos += len(sep)
				matched = true
				break
			}
		}
		if matched {
			continue
		}

		current.WriteByte(c)
		pos++
	}
	flush()
	return clauses
}
