// Package locator derives re-resolvable descriptions of DOM elements from
// their position in a parsed tree. A Locator only holds strings, so it stays
// usable after the tree it came from is discarded.
package locator

import (
	"fmt"
	"strings"

	"github.com/antchfx/htmlquery"
	"golang.org/x/net/html"

	"github.com/xkilldash9x/souper/internal/browsererr"
)

// Locator identifies one element in the live DOM.
type Locator struct {
	// XPath is the primary expression handed to drivers.
	XPath string
	// CSSPath is an equivalent structural selector built from :nth-of-type steps.
	CSSPath string
	// Tag is the lowercase tag name of the element at match time.
	Tag string
	// Description is a short human-readable summary for logs and errors.
	Description string
	// Fingerprint is checked against the element the XPath resolves to.
	Fingerprint Fingerprint
}

func (l Locator) String() string {
	if l.Description != "" {
		return l.Description + " @ " + l.XPath
	}
	return l.XPath
}

// IsZero reports whether l was never populated.
func (l Locator) IsZero() bool { return l.XPath == "" }

// Locate builds a Locator for node. The node must be an element attached to a
// document; anything else yields a LocatorError.
func Locate(node *html.Node) (Locator, error) {
	if node == nil {
		return Locator{}, browsererr.Newf(browsererr.ErrLocator, "locate", "", "node is nil")
	}
	if node.Type != html.ElementNode {
		return Locator{}, browsererr.Newf(browsererr.ErrLocator, "locate", node.Data, "node is not an element")
	}
	root := documentOf(node)
	if root == nil {
		return Locator{}, browsererr.Newf(browsererr.ErrLocator, "locate", node.Data, "node is detached from any document")
	}

	xp := UniqueXPath(node, root)
	if xp == "" {
		return Locator{}, browsererr.Newf(browsererr.ErrLocator, "locate", node.Data, "no element path could be derived")
	}
	return Locator{
		XPath:       xp,
		CSSPath:     CSSPath(node),
		Tag:         strings.ToLower(node.Data),
		Description: Describe(node),
		Fingerprint: Identify(node),
	}, nil
}

// UniqueXPath generates an XPath for node. The closest ancestor-or-self whose
// id is unique in the document anchors the path; otherwise the path is
// absolute with 1-based same-tag sibling indexes. SVG and MathML elements
// are matched by local-name(), since a bare name test only selects HTML
// elements in a browser.
func UniqueXPath(node *html.Node, root *html.Node) string {
	var path []string
	for n := node; n != nil && n.Type != html.DocumentNode; n = n.Parent {
		if n.Type != html.ElementNode || n.Data == "" {
			continue
		}

		if id := htmlquery.SelectAttr(n, "id"); id != "" && root != nil && idIsUnique(root, id) {
			path = append(path, "//*[@id="+QuoteXPath(id)+"]")
			break
		}

		if n.Namespace != "" {
			path = append(path, fmt.Sprintf("*[local-name()=%s][%d]", QuoteXPath(n.Data), sameTagIndex(n)))
			continue
		}
		path = append(path, fmt.Sprintf("%s[%d]", strings.ToLower(n.Data), sameTagIndex(n)))
	}

	if len(path) == 0 {
		return ""
	}

	for i, j := 0, len(path)-1; i < j; i, j = i+1, j-1 {
		path[i], path[j] = path[j], path[i]
	}

	xpath := strings.Join(path, "/")
	if !strings.HasPrefix(xpath, "//*[@id=") {
		xpath = "/" + xpath
	}
	return xpath
}

// CSSPath builds an absolute structural selector such as
// "html > body:nth-of-type(1) > div:nth-of-type(2)".
func CSSPath(node *html.Node) string {
	var steps []string
	for n := node; n != nil && n.Type != html.DocumentNode; n = n.Parent {
		if n.Type != html.ElementNode {
			continue
		}
		steps = append(steps, fmt.Sprintf("%s:nth-of-type(%d)", tagName(n), sameTagIndex(n)))
	}
	for i, j := 0, len(steps)-1; i < j; i, j = i+1, j-1 {
		steps[i], steps[j] = steps[j], steps[i]
	}
	return strings.Join(steps, " > ")
}

// QuoteXPath renders s as an XPath 1.0 string literal. XPath has no escape
// sequences, so strings holding both quote kinds are built with concat().
func QuoteXPath(s string) string {
	if !strings.Contains(s, "'") {
		return "'" + s + "'"
	}
	if !strings.Contains(s, `"`) {
		return `"` + s + `"`
	}
	parts := strings.Split(s, "'")
	var sb strings.Builder
	sb.WriteString("concat(")
	for i, p := range parts {
		if i > 0 {
			sb.WriteString(`, "'", `)
		}
		sb.WriteString("'" + p + "'")
	}
	sb.WriteString(")")
	return sb.String()
}

// sameTagIndex is n's 1-based position among element siblings with its name
// and namespace.
func sameTagIndex(n *html.Node) int {
	tag := tagName(n)
	index := 1
	for prev := n.PrevSibling; prev != nil; prev = prev.PrevSibling {
		if prev.Type == html.ElementNode && prev.Namespace == n.Namespace && tagName(prev) == tag {
			index++
		}
	}
	return index
}

// tagName lowercases HTML names. Foreign names keep their case (foreignObject).
func tagName(n *html.Node) string {
	if n.Namespace != "" {
		return n.Data
	}
	return strings.ToLower(n.Data)
}

func idIsUnique(root *html.Node, id string) bool {
	matches, err := htmlquery.QueryAll(root, "//*[@id="+QuoteXPath(id)+"]")
	return err == nil && len(matches) == 1
}

func documentOf(n *html.Node) *html.Node {
	for n.Parent != nil {
		n = n.Parent
	}
	if n.Type != html.DocumentNode {
		return nil
	}
	return n
}
