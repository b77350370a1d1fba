package locator

import (
	"strings"

	"github.com/antchfx/htmlquery"
	"golang.org/x/net/html"
)

// maxIdentityText bounds the text kept in a Fingerprint, in runes.
const maxIdentityText = 64

// Fingerprint is what an element looked like when its Locator was built. A
// positional XPath re-resolves to whatever sits at that position now; drivers
// compare the fingerprint so a sibling that shifted into place is not
// mistaken for the original element.
type Fingerprint struct {
	Tag  string
	ID   string
	Name string
	// Text is the element's own text, see IdentityText.
	Text string
}

// IsZero reports whether there is nothing to compare.
func (f Fingerprint) IsZero() bool { return f == Fingerprint{} }

// Matches reports whether live describes the same element as f. Tags compare
// case-insensitively since drivers report them in different cases.
func (f Fingerprint) Matches(live Fingerprint) bool {
	return strings.EqualFold(f.Tag, live.Tag) &&
		f.ID == live.ID &&
		f.Name == live.Name &&
		f.Text == live.Text
}

// Identify fingerprints an element node.
func Identify(n *html.Node) Fingerprint {
	if n == nil || n.Type != html.ElementNode {
		return Fingerprint{}
	}
	return Fingerprint{
		Tag:  strings.ToLower(n.Data),
		ID:   htmlquery.SelectAttr(n, "id"),
		Name: htmlquery.SelectAttr(n, "name"),
		Text: IdentityText(n),
	}
}

// unrendered elements hold text a browser never shows.
var unrendered = map[string]bool{
	"head":     true,
	"script":   true,
	"style":    true,
	"noscript": true,
	"template": true,
}

// IdentityText is n's rendered text with whitespace collapsed and cut to
// maxIdentityText runes. Editable content (textarea bodies, contenteditable
// subtrees) is left out so typing into an element does not change its
// identity.
func IdentityText(n *html.Node) string {
	text := renderedText(n, func(c *html.Node) bool {
		return strings.EqualFold(c.Data, "textarea") || isEditable(c)
	})
	if r := []rune(text); len(r) > maxIdentityText {
		text = string(r[:maxIdentityText])
	}
	return text
}

// renderedText concatenates the text below n, skipping unrendered elements
// and any element skip reports, and collapses whitespace.
func renderedText(n *html.Node, skip func(*html.Node) bool) string {
	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(c *html.Node) {
		switch c.Type {
		case html.TextNode:
			sb.WriteString(c.Data)
			return
		case html.ElementNode:
			if unrendered[strings.ToLower(c.Data)] || (skip != nil && skip(c)) {
				return
			}
		default:
			return
		}
		for child := c.FirstChild; child != nil; child = child.NextSibling {
			walk(child)
		}
	}
	walk(n)
	return strings.Join(strings.Fields(sb.String()), " ")
}

func isEditable(n *html.Node) bool {
	for _, a := range n.Attr {
		if a.Namespace == "" && a.Key == "contenteditable" {
			return !strings.EqualFold(a.Val, "false")
		}
	}
	return false
}
