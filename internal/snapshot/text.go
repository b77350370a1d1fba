package snapshot

import (
	"strings"

	"golang.org/x/net/html"
)

// textless elements never contribute rendered text.
var textless = map[string]bool{
	"head":     true,
	"script":   true,
	"style":    true,
	"noscript": true,
	"template": true,
}

// VisibleText returns the whitespace-normalized concatenation of the text
// nodes below n. ok is false for nodes whose text is never rendered (anything
// inside <head>, <script>, <style>, <noscript> or <template>) and for nodes
// outside the tree.
func (t *Tree) VisibleText(n *html.Node) (text string, ok bool) {
	t.textOnce.Do(t.computeTexts)
	text, ok = t.texts[n]
	return text, ok
}

func (t *Tree) computeTexts() {
	t.texts = make(map[*html.Node]string)
	var visit func(n *html.Node) string
	visit = func(n *html.Node) string {
		switch n.Type {
		case html.TextNode:
			return n.Data
		case html.ElementNode:
			if textless[strings.ToLower(n.Data)] {
				return ""
			}
		case html.DocumentNode:
		default:
			return ""
		}
		var sb strings.Builder
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			sb.WriteString(visit(c))
		}
		raw := sb.String()
		if n.Type == html.ElementNode {
			t.texts[n] = NormalizeSpace(raw)
		}
		return raw
	}
	visit(t.root)
}

// NormalizeSpace trims s and collapses every run of whitespace to one space.
func NormalizeSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
