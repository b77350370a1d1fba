// Package snapshot materializes a live page's HTML into an immutable parsed
// tree. A Tree is built per query and thrown away afterwards; nothing in it is
// ever handed back to the live browser except through a locator.
package snapshot

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/antchfx/htmlquery"
	"golang.org/x/net/html"

	"github.com/xkilldash9x/souper/internal/browsererr"
)

// HTMLSource is anything that can report the full HTML of the page it is
// currently showing. Reading it must not change the page.
type HTMLSource interface {
	CurrentHTML(ctx context.Context) (string, error)
}

// Tree is a parsed, read-only view of a page at one point in time.
// Callers must treat the nodes it exposes as immutable.
type Tree struct {
	root     *html.Node
	order    map[*html.Node]int
	depth    map[*html.Node]int
	elements int
	takenAt  time.Time

	textOnce sync.Once
	texts    map[*html.Node]string
}

// Take reads the current page source and parses it. It never retries.
func Take(ctx context.Context, src HTMLSource) (*Tree, error) {
	raw, err := src.CurrentHTML(ctx)
	if err != nil {
		return nil, fmt.Errorf("snapshot: reading page source: %w", err)
	}
	return Parse(raw)
}

// Parse turns raw HTML into a Tree. The parser is lenient, so a ParseError is
// only returned when the input cannot be turned into a document at all.
func Parse(raw string) (*Tree, error) {
	doc, err := htmlquery.Parse(strings.NewReader(raw))
	if err != nil {
		return nil, browsererr.New(browsererr.ErrParse, "parse", "", err)
	}
	if doc == nil || doc.FirstChild == nil {
		return nil, browsererr.Newf(browsererr.ErrParse, "parse", "", "document has no content")
	}
	return newTree(doc), nil
}

func newTree(doc *html.Node) *Tree {
	t := &Tree{
		root:    doc,
		order:   make(map[*html.Node]int),
		depth:   make(map[*html.Node]int),
		takenAt: time.Now(),
	}
	idx := 0
	var walk func(n *html.Node, d int)
	walk = func(n *html.Node, d int) {
		t.order[n] = idx
		t.depth[n] = d
		idx++
		if n.Type == html.ElementNode {
			t.elements++
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c, d+1)
		}
	}
	walk(doc, 0)
	return t
}

// Root returns the document node.
func (t *Tree) Root() *html.Node { return t.root }

// TakenAt is when the tree was parsed.
func (t *Tree) TakenAt() time.Time { return t.takenAt }

// Contains reports whether n belongs to this tree.
func (t *Tree) Contains(n *html.Node) bool {
	_, ok := t.order[n]
	return ok
}

// Index returns n's position in document (pre-order) order.
func (t *Tree) Index(n *html.Node) (int, bool) {
	i, ok := t.order[n]
	return i, ok
}

// Depth returns the number of ancestors between n and the document node, or -1
// if n is not part of the tree.
func (t *Tree) Depth(n *html.Node) int {
	d, ok := t.depth[n]
	if !ok {
		return -1
	}
	return d
}

// Elements calls fn for every element in document order until fn returns false.
func (t *Tree) Elements(fn func(n *html.Node) bool) {
	var walk func(n *html.Node) bool
	walk = func(n *html.Node) bool {
		if n.Type == html.ElementNode && !fn(n) {
			return false
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if !walk(c) {
				return false
			}
		}
		return true
	}
	walk(t.root)
}

// Len is the number of element nodes in the tree.
func (t *Tree) Len() int { return t.elements }

// Title returns the trimmed text of the document's <title>, if any.
func (t *Tree) Title() string {
	if n := htmlquery.FindOne(t.root, "//title"); n != nil {
		return strings.TrimSpace(htmlquery.InnerText(n))
	}
	return ""
}

// Render serializes the tree back to HTML. Whitespace is not guaranteed to be
// byte-identical to the original source.
func (t *Tree) Render() (string, error) {
	var buf bytes.Buffer
	if err := html.Render(&buf, t.root); err != nil {
		return "", fmt.Errorf("snapshot: render: %w", err)
	}
	return buf.String(), nil
}

// Attr returns the value of attribute key on n, or "" when absent.
func Attr(n *html.Node, key string) string {
	return htmlquery.SelectAttr(n, key)
}
