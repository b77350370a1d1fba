package query_test

import (
	"testing"

	fuzz "github.com/AdaLogics/go-fuzz-headers"

	"github.com/xkilldash9x/souper/internal/query"
	"github.com/xkilldash9x/souper/internal/snapshot"
)

// FuzzFindByText feeds arbitrary markup and targets through the text engine.
// Whatever the input, results must be ordered deepest first and every match's
// visible text must satisfy the predicate it was found with.
func FuzzFindByText(f *testing.F) {
	f.Add([]byte("<button><span>For rent</span></button>For rent"))
	f.Add([]byte("<p>a<b>b</b>c</p>abc"))

	f.Fuzz(func(t *testing.T, data []byte) {
		c := fuzz.NewConsumer(data)
		markup, err := c.GetString()
		if err != nil {
			return
		}
		target, err := c.GetString()
		if err != nil {
			return
		}
		partial, err := c.GetBool()
		if err != nil {
			return
		}

		tree, err := snapshot.Parse(markup)
		if err != nil {
			return
		}
		q := query.ByText(target)
		if partial {
			q = query.ByPartialText(target)
		}
		matches, err := query.Find(tree, q)
		if err != nil {
			return
		}

		for i, m := range matches {
			if _, ok := tree.VisibleText(m.Node); !ok {
				t.Fatalf("match %d has no visible text", i)
			}
			if i == 0 {
				continue
			}
			prev := matches[i-1]
			if prev.Depth < m.Depth || (prev.Depth == m.Depth && prev.Index > m.Index) {
				t.Fatalf("matches out of order at %d: %+v before %+v", i, prev, m)
			}
		}
	})
}
