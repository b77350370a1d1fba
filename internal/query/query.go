// Package query evaluates element queries against a snapshot.Tree. The set of
// query kinds is closed: CSS selector, exact id and visible text.
package query

import (
	"fmt"
	"sort"

	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/cascadia"
	"github.com/antchfx/htmlquery"
	"golang.org/x/net/html"

	"github.com/xkilldash9x/souper/internal/browsererr"
	"github.com/xkilldash9x/souper/internal/locator"
	"github.com/xkilldash9x/souper/internal/snapshot"
)

// Kind selects how a Query is evaluated.
type Kind int

const (
	KindCSS Kind = iota + 1
	KindID
	KindText
)

func (k Kind) String() string {
	switch k {
	case KindCSS:
		return "css"
	case KindID:
		return "id"
	case KindText:
		return "text"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// TextMatch controls how a text query compares visible text.
type TextMatch int

const (
	// TextExact requires the element's visible text to equal the target.
	TextExact TextMatch = iota
	// TextContains requires the element's visible text to contain the target.
	TextContains
)

func (m TextMatch) String() string {
	if m == TextContains {
		return "contains"
	}
	return "exact"
}

// ParseTextMatch maps a configuration value to a TextMatch.
func ParseTextMatch(s string) (TextMatch, error) {
	switch s {
	case "", "exact", "equals":
		return TextExact, nil
	case "contains", "partial":
		return TextContains, nil
	default:
		return TextExact, fmt.Errorf("unknown text match mode %q (want exact or contains)", s)
	}
}

// Query is one element query.
type Query struct {
	Kind  Kind
	Value string

	// Text-only options.
	Match           TextMatch
	CaseInsensitive bool
}

// ByCSS matches elements against a CSS selector.
func ByCSS(selector string) Query { return Query{Kind: KindCSS, Value: selector} }

// ByID matches elements whose id attribute equals id exactly.
func ByID(id string) Query { return Query{Kind: KindID, Value: id} }

// ByText matches elements whose visible text equals text.
func ByText(text string) Query { return Query{Kind: KindText, Value: text, Match: TextExact} }

// ByPartialText matches elements whose visible text contains text.
func ByPartialText(text string) Query { return Query{Kind: KindText, Value: text, Match: TextContains} }

// IgnoringCase returns a copy of q that folds case when comparing text.
func (q Query) IgnoringCase() Query {
	q.CaseInsensitive = true
	return q
}

func (q Query) String() string {
	if q.Kind == KindText {
		s := fmt.Sprintf("text(%s)=%q", q.Match, q.Value)
		if q.CaseInsensitive {
			s += "/i"
		}
		return s
	}
	return fmt.Sprintf("%s=%q", q.Kind, q.Value)
}

// Match is one element selected by a query.
type Match struct {
	Node  *html.Node
	Depth int
	Index int
}

// Find evaluates q against tree. It returns an empty, non-nil slice when
// nothing matches. CSS and id matches are in document order; text matches are
// deepest first, ties in document order.
func Find(tree *snapshot.Tree, q Query) ([]Match, error) {
	if tree == nil {
		return nil, fmt.Errorf("query: nil tree")
	}
	switch q.Kind {
	case KindCSS:
		return findCSS(tree, q)
	case KindID:
		return findID(tree, q)
	case KindText:
		return findText(tree, q)
	default:
		return nil, browsererr.Newf(browsererr.ErrInvalidQuery, "find", q.String(), "unsupported query kind")
	}
}

// FindFirst returns the first match of q or a NotFoundError.
func FindFirst(tree *snapshot.Tree, q Query) (Match, error) {
	m, ok, err := FindOptional(tree, q)
	if err != nil {
		return Match{}, err
	}
	if !ok {
		return Match{}, browsererr.New(browsererr.ErrNotFound, "find", q.String(), nil)
	}
	return m, nil
}

// FindOptional returns the first match of q, with ok false when there is none.
func FindOptional(tree *snapshot.Tree, q Query) (Match, bool, error) {
	matches, err := Find(tree, q)
	if err != nil || len(matches) == 0 {
		return Match{}, false, err
	}
	return matches[0], true, nil
}

func findCSS(tree *snapshot.Tree, q Query) ([]Match, error) {
	if q.Value == "" {
		return nil, browsererr.Newf(browsererr.ErrInvalidQuery, "find", q.String(), "empty selector")
	}
	// goquery silently matches nothing on a bad selector, so compile first.
	sel, err := cascadia.Compile(q.Value)
	if err != nil {
		return nil, browsererr.New(browsererr.ErrInvalidQuery, "find", q.String(), err)
	}
	doc := goquery.NewDocumentFromNode(tree.Root())
	found := doc.FindMatcher(sel)

	matches := make([]Match, 0, found.Length())
	for _, n := range found.Nodes {
		matches = append(matches, newMatch(tree, n))
	}
	sortDocumentOrder(matches)
	return matches, nil
}

func findID(tree *snapshot.Tree, q Query) ([]Match, error) {
	if q.Value == "" {
		return nil, browsererr.Newf(browsererr.ErrInvalidQuery, "find", q.String(), "empty id")
	}
	nodes, err := htmlquery.QueryAll(tree.Root(), "//*[@id="+locator.QuoteXPath(q.Value)+"]")
	if err != nil {
		return nil, browsererr.New(browsererr.ErrInvalidQuery, "find", q.String(), err)
	}
	matches := make([]Match, 0, len(nodes))
	for _, n := range nodes {
		matches = append(matches, newMatch(tree, n))
	}
	sortDocumentOrder(matches)
	return matches, nil
}

func newMatch(tree *snapshot.Tree, n *html.Node) Match {
	idx, _ := tree.Index(n)
	return Match{Node: n, Depth: tree.Depth(n), Index: idx}
}

func sortDocumentOrder(matches []Match) {
	sort.SliceStable(matches, func(i, j int) bool { return matches[i].Index < matches[j].Index })
}
