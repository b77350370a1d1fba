package locator_test

import (
	"strings"
	"testing"

	"github.com/andybalholm/cascadia"
	"github.com/antchfx/htmlquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/net/html"

	"github.com/xkilldash9x/souper/internal/browsererr"
	"github.com/xkilldash9x/souper/internal/locator"
)

const testHTML = `
	<html>
	<body>
		<div id="header">
			<h1>Welcome</h1>
		</div>
		<div class="content">
			<p>P1</p><p>P2</p>
			<ul>
				<li>Item 1</li>
				<li>Item 2</li>
				<li id="special">Item 3</li>
			</ul>
		</div>
		<div class="content"><p>P3</p></div>
		<section><span id="dup">a</span><span id="dup">b</span></section>
		<p id="it's">quoted</p>
	</body>
	</html>
	`

func TestUniqueXPath(t *testing.T) {
	doc, err := htmlquery.Parse(strings.NewReader(testHTML))
	require.NoError(t, err)

	tests := []struct {
		name          string
		targetXPath   string
		expectedXPath string
	}{
		{"Body", "//body", "/html[1]/body[1]"},
		{"Element with ID", "//div[@id='header']", `//*[@id='header']`},
		{"Child of ID element", "//h1", `//*[@id='header']/h1[1]`},
		{"Specific index", "(//p)[2]", "/html[1]/body[1]/div[2]/p[2]"},
		{"Ambiguous classes", "(//div[@class='content'])[2]/p", "/html[1]/body[1]/div[3]/p[1]"},
		{"List item", "//ul/li[2]", "/html[1]/body[1]/div[2]/ul[1]/li[2]"},
		{"List item with ID", "//li[@id='special']", `//*[@id='special']`},
		{"Duplicate IDs fall back to position", "(//span)[2]", "/html[1]/body[1]/section[1]/span[2]"},
		{"ID holding a quote", `//p[@id="it's"]`, `//*[@id="it's"]`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			target := htmlquery.FindOne(doc, tt.targetXPath)
			require.NotNil(t, target, "test setup: nothing matches %s", tt.targetXPath)

			loc, err := locator.Locate(target)
			require.NoError(t, err)
			assert.Equal(t, tt.expectedXPath, loc.XPath)

			// The generated XPath must select exactly the original node.
			found, err := htmlquery.QueryAll(doc, loc.XPath)
			require.NoError(t, err)
			require.Len(t, found, 1)
			assert.Same(t, target, found[0])

			// So must the CSS path.
			sel, err := cascadia.Compile(loc.CSSPath)
			require.NoError(t, err, "css path %q should compile", loc.CSSPath)
			assert.Same(t, target, sel.MatchFirst(doc))
		})
	}
}

func TestLocateRejectsUnlocatableNodes(t *testing.T) {
	doc, err := htmlquery.Parse(strings.NewReader(`<p>text</p>`))
	require.NoError(t, err)
	text := htmlquery.FindOne(doc, "//p").FirstChild
	detached := &html.Node{Type: html.ElementNode, Data: "div"}

	for name, node := range map[string]*html.Node{"nil": nil, "text node": text, "detached": detached} {
		t.Run(name, func(t *testing.T) {
			_, err := locator.Locate(node)
			require.Error(t, err)
			assert.ErrorIs(t, err, browsererr.ErrLocator)
		})
	}
}

func TestQuoteXPath(t *testing.T) {
	assert.Equal(t, `'plain'`, locator.QuoteXPath("plain"))
	assert.Equal(t, `"it's"`, locator.QuoteXPath("it's"))
	assert.Equal(t, `concat('say "hi"', "'", 's')`, locator.QuoteXPath(`say "hi"'s`))

	// The concat form must evaluate back to the original string.
	doc, err := htmlquery.Parse(strings.NewReader(`<b title='say "hi"&#39;s'>x</b>`))
	require.NoError(t, err)
	assert.NotNil(t, htmlquery.FindOne(doc, "//b[@title="+locator.QuoteXPath(`say "hi"'s`)+"]"))
}

func TestDescribe(t *testing.T) {
	doc, err := htmlquery.Parse(strings.NewReader(
		`<button id="go" class="btn primary x1a2" type="submit" aria-label="Search homes"><span>Search</span></button>`))
	require.NoError(t, err)

	btn := htmlquery.FindOne(doc, "//button")
	assert.Equal(t, `button#go.btn.primary[aria-label="Search homes"][type="submit"][text="Search"]`, locator.Describe(btn))
	assert.Empty(t, locator.Describe(nil))
}

func TestUniqueXPathForeignElements(t *testing.T) {
	doc, err := htmlquery.Parse(strings.NewReader(`<html><body>
		<p>Map</p>
		<svg viewBox="0 0 10 10"><text>For rent</text><g><text>A</text></g><text>For sale</text></svg>
		<math><mi>x</mi></math>
	</body></html>`))
	require.NoError(t, err)

	tests := []struct {
		name          string
		targetXPath   string
		expectedXPath string
	}{
		{"SVG root", "//*[local-name()='svg']", "/html[1]/body[1]/*[local-name()='svg'][1]"},
		{"Second SVG text", "//*[local-name()='svg']/*[local-name()='text'][2]", "/html[1]/body[1]/*[local-name()='svg'][1]/*[local-name()='text'][2]"},
		{"MathML child", "//*[local-name()='mi']", "/html[1]/body[1]/*[local-name()='math'][1]/*[local-name()='mi'][1]"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			target := htmlquery.FindOne(doc, tt.targetXPath)
			require.NotNil(t, target, "test setup: nothing matches %s", tt.targetXPath)
			require.NotEmpty(t, target.Namespace)

			loc, err := locator.Locate(target)
			require.NoError(t, err)
			assert.Equal(t, tt.expectedXPath, loc.XPath)

			found, err := htmlquery.QueryAll(doc, loc.XPath)
			require.NoError(t, err)
			require.Len(t, found, 1)
			assert.Same(t, target, found[0])

			sel, err := cascadia.Compile(loc.CSSPath)
			require.NoError(t, err, "css path %q should compile", loc.CSSPath)
			assert.Same(t, target, sel.MatchFirst(doc))
		})
	}
}

func TestDescribeSkipsScriptAndStyle(t *testing.T) {
	doc, err := htmlquery.Parse(strings.NewReader(
		`<div class="card"><script>window.track("card")</script><style>.card{color:red}</style>Loft <b>2 beds</b></div>`))
	require.NoError(t, err)

	div := htmlquery.FindOne(doc, "//div")
	assert.Equal(t, `div.card[text="Loft 2 beds"]`, locator.Describe(div))
}

func TestIdentify(t *testing.T) {
	doc, err := htmlquery.Parse(strings.NewReader(`<form>
		<label id="lbl">Notes <textarea name="notes">typed so far</textarea></label>
		<div id="editor"><span contenteditable="true">draft</span> Saved</div>
		<div contenteditable="false" id="fixed">Fixed <script>x()</script></div>
		<p id="long">` + strings.Repeat("word ", 40) + `</p>
	</form>`))
	require.NoError(t, err)

	label := locator.Identify(htmlquery.FindOne(doc, "//label"))
	assert.Equal(t, locator.Fingerprint{Tag: "label", ID: "lbl", Text: "Notes"}, label)

	textarea := locator.Identify(htmlquery.FindOne(doc, "//textarea"))
	assert.Equal(t, locator.Fingerprint{Tag: "textarea", Name: "notes"}, textarea)

	assert.Equal(t, "Saved", locator.IdentityText(htmlquery.FindOne(doc, "//div[@id='editor']")))
	assert.Equal(t, "Fixed", locator.IdentityText(htmlquery.FindOne(doc, "//div[@id='fixed']")))

	long := locator.IdentityText(htmlquery.FindOne(doc, "//p"))
	assert.Len(t, []rune(long), 64)
	assert.True(t, strings.HasPrefix(long, "word word"))

	assert.True(t, locator.Fingerprint{Tag: "button", Text: "Go"}.Matches(locator.Fingerprint{Tag: "BUTTON", Text: "Go"}))
	assert.False(t, locator.Fingerprint{Tag: "button", Text: "For rent"}.Matches(locator.Fingerprint{Tag: "button", Text: "For sale"}))
	assert.True(t, locator.Fingerprint{}.IsZero())
	assert.True(t, locator.Identify(nil).IsZero())
}

func TestLocateRecordsFingerprint(t *testing.T) {
	doc, err := htmlquery.Parse(strings.NewReader(testHTML))
	require.NoError(t, err)

	loc, err := locator.Locate(htmlquery.FindOne(doc, "//ul/li[2]"))
	require.NoError(t, err)
	assert.Equal(t, locator.Fingerprint{Tag: "li", Text: "Item 2"}, loc.Fingerprint)
}
