// internal/analyzer/extract.go
package analyzer

import (
	"bytes"
	"regexp"
	"strings"

	"golang.org/x/net/html"
)

// scanHTML extracts element selectors from markup. Priority of the derived
// selector, strongest first: data-testid, id, name attribute.
func scanHTML(data []byte, acc *accumulator) error {
	doc, err := html.Parse(bytes.NewReader(data))
	if err != nil {
		return err
	}

	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			attrs := make(map[string]string, len(n.Attr))
			for _, a := range n.Attr {
				attrs[a.Key] = a.Val
			}

			if v, ok := attrs["data-testid"]; ok && v != "" {
				acc.addMapping(humanizeIdentifier(v), "[data-testid='"+v+"']")
			} else if v, ok := attrs["id"]; ok && v != "" {
				acc.addMapping(humanizeIdentifier(v), "#"+v)
			} else if v, ok := attrs["name"]; ok && v != "" && isFormElement(n.Data) {
				acc.addMapping(humanizeIdentifier(v), n.Data+"[name='"+v+"']")
			}

			if n.Data == "form" {
				if action, ok := attrs["action"]; ok && strings.HasPrefix(action, "/") {
					acc.addEndpoint(action)
				}
			}
			if n.Data == "a" {
				if href, ok := attrs["href"]; ok && strings.HasPrefix(href, "/") {
					acc.addRoute(strings.SplitN(href, "?", 2)[0])
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	return nil
}

var (
	// <Route path="/x"> or { path: '/x' } router declarations.
	routeRegex = regexp.MustCompile(`(?:path\s*[:=]\s*|\bpath=)["'](/[^"'\s]*)["']`)
	// fetch('/api/x'), axios.get('/api/x'), http.post("/api/x"...).
	endpointRegex = regexp.MustCompile(`(?:fetch|axios(?:\.\w+)?|\.(?:get|post|put|patch|delete))\(\s*["'](/[^"'\s]+)["']`)
	// Exported component declarations: function, class or arrow.
	componentRegex = regexp.MustCompile(`(?m)^\s*(?:export\s+(?:default\s+)?)?(?:function|class|const)\s+([A-Z][A-Za-z0-9]*)`)
	// data-testid attributes inside JSX/Vue templates.
	testIDRegex = regexp.MustCompile(`data-testid=["']([^"']+)["']`)
)

// scanScript extracts knowledge from JS/TS/JSX/TSX/Vue sources with
// regexes; a full parse buys little for these few, stable shapes.
func scanScript(src string, acc *accumulator) {
	for _, m := range routeRegex.FindAllStringSubmatch(src, -1) {
		acc.addRoute(m[1])
	}
	for _, m := range endpointRegex.FindAllStringSubmatch(src, -1) {
		acc.addEndpoint(m[1])
	}
	for _, m := range componentRegex.FindAllStringSubmatch(src, -1) {
		acc.addComponent(m[1])
	}
	for _, m := range testIDRegex.FindAllStringSubmatch(src, -1) {
		acc.addMapping(humanizeIdentifier(m[1]), "[data-testid='"+m[1]+"']")
	}
}

func isFormElement(tag string) bool {
	switch tag {
	case "input", "select", "textarea", "button":
		return true
	}
	return false
}
