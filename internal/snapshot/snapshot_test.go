package snapshot_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/antchfx/htmlquery"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/net/html"

	"github.com/xkilldash9x/souper/internal/snapshot"
)

const searchPage = `<!DOCTYPE html>
<html>
<head><title> Real Estate Search </title><style>.x{color:red}</style></head>
<body>
	<form id="search" action="/homes">
		<input type="text" name="q" placeholder="Enter an address">
		<button type="submit"><span>Search</span></button>
	</form>
	<div class="tabs">
		<button data-tab="buy">For sale</button>
		<button data-tab="rent"><span>For   rent</span></button>
	</div>
	<script>var forRent = "For rent";</script>
	<p>Text with <b>bold</b> and <i>italic</i> parts.</p>
</body>
</html>`

type staticSource struct {
	html string
	err  error
}

func (s staticSource) CurrentHTML(context.Context) (string, error) { return s.html, s.err }

// flatNode is the structural content of an element, ignoring formatting whitespace.
type flatNode struct {
	Tag   string
	Attrs []html.Attribute
	Text  string
}

func flatten(t *snapshot.Tree) []flatNode {
	var out []flatNode
	t.Elements(func(n *html.Node) bool {
		var own strings.Builder
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if c.Type == html.TextNode {
				own.WriteString(c.Data)
			}
		}
		out = append(out, flatNode{Tag: n.Data, Attrs: n.Attr, Text: snapshot.NormalizeSpace(own.String())})
		return true
	})
	return out
}

func TestParseRenderRoundTrip(t *testing.T) {
	inputs := map[string]string{
		"search page": searchPage,
		"fragment":    `<div id="a" class="b c"><p>one</p>two<br><img src="x.png" alt="pic"></div>`,
		"unclosed":    `<ul><li>first<li>second<li>third</ul><p>trailing`,
		"entities":    `<p title="a &amp; b">&lt;tag&gt; &copy; 2024</p>`,
	}

	for name, raw := range inputs {
		t.Run(name, func(t *testing.T) {
			first, err := snapshot.Parse(raw)
			require.NoError(t, err)

			rendered, err := first.Render()
			require.NoError(t, err)

			second, err := snapshot.Parse(rendered)
			require.NoError(t, err)

			if diff := cmp.Diff(flatten(first), flatten(second)); diff != "" {
				t.Errorf("round trip changed the tree (-first +second):\n%s", diff)
			}
			assert.Len(t, flatten(first), first.Len())
		})
	}
}

func TestTake(t *testing.T) {
	t.Run("reads the current page source", func(t *testing.T) {
		tree, err := snapshot.Take(context.Background(), staticSource{html: searchPage})
		require.NoError(t, err)
		assert.Equal(t, "Real Estate Search", tree.Title())
		assert.False(t, tree.TakenAt().IsZero())
	})

	t.Run("surfaces source errors without retrying", func(t *testing.T) {
		boom := errors.New("target closed")
		_, err := snapshot.Take(context.Background(), staticSource{err: boom})
		require.Error(t, err)
		assert.ErrorIs(t, err, boom)
	})
}

func TestVisibleText(t *testing.T) {
	tree, err := snapshot.Parse(searchPage)
	require.NoError(t, err)
	root := tree.Root()

	rent := htmlquery.FindOne(root, "//button[@data-tab='rent']")
	require.NotNil(t, rent)
	text, ok := tree.VisibleText(rent)
	assert.True(t, ok)
	assert.Equal(t, "For rent", text, "whitespace runs collapse to one space")

	p := htmlquery.FindOne(root, "//p")
	text, ok = tree.VisibleText(p)
	assert.True(t, ok)
	assert.Equal(t, "Text with bold and italic parts.", text)

	body := htmlquery.FindOne(root, "//body")
	text, _ = tree.VisibleText(body)
	assert.NotContains(t, text, "var forRent", "script bodies are not rendered text")

	title := htmlquery.FindOne(root, "//title")
	_, ok = tree.VisibleText(title)
	assert.False(t, ok, "head content has no visible text")
}

func TestIndexAndDepth(t *testing.T) {
	tree, err := snapshot.Parse(`<html><body><div><span>a</span></div><p>b</p></body></html>`)
	require.NoError(t, err)
	root := tree.Root()

	div := htmlquery.FindOne(root, "//div")
	span := htmlquery.FindOne(root, "//span")
	p := htmlquery.FindOne(root, "//p")

	assert.Equal(t, tree.Depth(div)+1, tree.Depth(span))
	assert.Equal(t, tree.Depth(div), tree.Depth(p))

	di, _ := tree.Index(div)
	si, _ := tree.Index(span)
	pi, _ := tree.Index(p)
	assert.Less(t, di, si)
	assert.Less(t, si, pi)

	foreign := &html.Node{Type: html.ElementNode, Data: "div"}
	assert.False(t, tree.Contains(foreign))
	assert.Equal(t, -1, tree.Depth(foreign))
	assert.Equal(t, 6, tree.Len(), "html, head, body, div, span, p")
}
