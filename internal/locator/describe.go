package locator

import (
	"fmt"
	"sort"
	"strings"

	"golang.org/x/net/html"
)

const maxDescribedText = 48

// describedAttributes are the attributes that say what an element is for.
var describedAttributes = []string{"aria-label", "data-testid", "href", "name", "placeholder", "role", "title", "type"}

// Describe summarizes an element as tag#id.class[attr="v"][text="..."].
// Script and style bodies are not part of the text.
func Describe(n *html.Node) string {
	if n == nil || n.Type != html.ElementNode {
		return ""
	}
	var sb strings.Builder
	sb.WriteString(strings.ToLower(n.Data))

	attrs := make(map[string]string, len(n.Attr))
	for _, a := range n.Attr {
		attrs[a.Key] = a.Val
	}

	if id := attrs["id"]; id != "" {
		sb.WriteString("#" + id)
	}

	if cls := attrs["class"]; cls != "" {
		classes := strings.Fields(cls)
		sort.Strings(classes)
		var stable []string
		for _, c := range classes {
			// Short classes with digits are usually generated CSS-in-JS hashes.
			if len(c) > 5 || !strings.ContainsAny(c, "0123456789") {
				stable = append(stable, c)
			}
		}
		if len(stable) > 0 && len(stable) < 5 {
			sb.WriteString("." + strings.Join(stable, "."))
		}
	}

	for _, key := range describedAttributes {
		if val := strings.TrimSpace(attrs[key]); val != "" {
			if len(val) > 64 {
				val = val[:64]
			}
			sb.WriteString(fmt.Sprintf(`[%s=%q]`, key, val))
		}
	}

	text := renderedText(n, nil)
	if text != "" {
		if r := []rune(text); len(r) > maxDescribedText {
			text = string(r[:maxDescribedText]) + "..."
		}
		sb.WriteString(fmt.Sprintf(`[text=%q]`, text))
	}
	return sb.String()
}
