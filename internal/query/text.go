package query

import (
	"sort"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"

	"github.com/xkilldash9x/souper/internal/browsererr"
	"github.com/xkilldash9x/souper/internal/snapshot"
)

// findText walks every element, keeps those whose visible text satisfies q and
// orders them so the smallest satisfying element comes first. That element is
// nearly always the one a user means to click: the <span> inside a <button>
// rather than the button.
func findText(tree *snapshot.Tree, q Query) ([]Match, error) {
	target := normalizeText(q.Value, q.CaseInsensitive)
	if target == "" {
		return nil, browsererr.Newf(browsererr.ErrInvalidQuery, "find", q.String(), "empty text")
	}

	matches := make([]Match, 0)
	tree.Elements(func(n *html.Node) bool {
		text, ok := tree.VisibleText(n)
		if !ok || text == "" {
			return true
		}
		if textMatches(normalizeText(text, q.CaseInsensitive), target, q.Match) {
			matches = append(matches, newMatch(tree, n))
		}
		return true
	})

	sortDeepestFirst(matches)
	return matches, nil
}

func textMatches(text, target string, mode TextMatch) bool {
	if mode == TextContains {
		return strings.Contains(text, target)
	}
	return text == target
}

// normalizeText puts s in the form both sides of a comparison share:
// NFC, collapsed whitespace and optionally case-folded.
func normalizeText(s string, fold bool) string {
	s = snapshot.NormalizeSpace(norm.NFC.String(s))
	if fold {
		s = cases.Fold().String(s)
	}
	return s
}

func sortDeepestFirst(matches []Match) {
	sort.SliceStable(matches, func(i, j int) bool {
		if matches[i].Depth != matches[j].Depth {
			return matches[i].Depth > matches[j].Depth
		}
		return matches[i].Index < matches[j].Index
	})
}
