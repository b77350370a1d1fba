package memory

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/antchfx/htmlquery"
	"golang.org/x/net/html"

	"github.com/xkilldash9x/souper/internal/browsererr"
	"github.com/xkilldash9x/souper/internal/locator"
)

// submitForm serializes form and loads its action. submitter is the button
// that triggered the submission, if any; its name/value pair is included.
func (d *Driver) submitForm(ctx context.Context, form *html.Node, submitter *html.Node) error {
	action := htmlquery.SelectAttr(form, "action")
	method := strings.ToUpper(htmlquery.SelectAttr(form, "method"))
	if method != http.MethodPost {
		method = http.MethodGet // Default HTML form method
	}
	if submitter != nil {
		if v := htmlquery.SelectAttr(submitter, "formaction"); v != "" {
			action = v
		}
	}

	target := d.currentURL
	if strings.TrimSpace(action) != "" {
		resolved, err := d.resolveURL(action)
		if err != nil {
			return browsererr.New(browsererr.ErrInteraction, "submit", locator.Describe(form), fmt.Errorf("failed to determine form submission URL: %w", err))
		}
		target = resolved
	}

	formData, err := serializeForm(form)
	if err != nil {
		return err
	}
	if submitter != nil {
		if name := htmlquery.SelectAttr(submitter, "name"); name != "" {
			formData.Add(name, htmlquery.SelectAttr(submitter, "value"))
		}
	}

	req := Request{Method: method, Form: formData}
	if method == http.MethodPost {
		req.URL = target
	} else {
		// GET replaces the action's query string with the form data.
		withQuery := *target
		withQuery.RawQuery = formData.Encode()
		withQuery.Fragment = ""
		req.URL = &withQuery
	}
	return d.load(ctx, req)
}

// serializeForm collects the successful controls of form.
func serializeForm(form *html.Node) (url.Values, error) {
	formData := url.Values{}
	inputs, err := htmlquery.QueryAll(form, ".//input | .//textarea | .//select")
	if err != nil {
		return nil, fmt.Errorf("failed to query form elements: %w", err)
	}

	for _, input := range inputs {
		name := htmlquery.SelectAttr(input, "name")
		if name == "" || hasAttr(input, "disabled") {
			continue
		}
		switch input.Data {
		case "input":
			switch inputType(input) {
			case "checkbox", "radio":
				if hasAttr(input, "checked") {
					value := htmlquery.SelectAttr(input, "value")
					if value == "" {
						value = "on"
					}
					formData.Add(name, value)
				}
			case "submit", "button", "image", "reset", "file":
				// Only the submitter is sent, and it is added by the caller.
			default:
				formData.Add(name, htmlquery.SelectAttr(input, "value"))
			}
		case "textarea":
			formData.Add(name, htmlquery.InnerText(input))
		case "select":
			selected, _ := htmlquery.QueryAll(input, ".//option[@selected]")
			if len(selected) == 0 && !hasAttr(input, "multiple") {
				if first := htmlquery.FindOne(input, ".//option"); first != nil {
					selected = []*html.Node{first}
				}
			}
			for _, opt := range selected {
				value, ok := attr(opt, "value")
				if !ok {
					value = strings.TrimSpace(htmlquery.InnerText(opt))
				}
				formData.Add(name, value)
			}
		}
	}
	return formData, nil
}

// selectRadio checks element and unchecks the rest of its group.
func selectRadio(element *html.Node) {
	name := htmlquery.SelectAttr(element, "name")
	if name == "" {
		setAttr(element, "checked", "checked")
		return
	}

	root := findParentForm(element)
	if root == nil {
		root = element
		for root.Parent != nil {
			root = root.Parent
		}
	}

	xpath := ".//input[@type='radio' and @name=" + locator.QuoteXPath(name) + "]"
	for _, radio := range htmlquery.Find(root, xpath) {
		if radio == element {
			setAttr(radio, "checked", "checked")
		} else {
			removeAttr(radio, "checked")
		}
	}
}

// checkInteractable approximates what a browser would refuse without layout:
// disabled controls and elements hidden by attribute or inline style.
func checkInteractable(op string, element *html.Node) error {
	switch element.Data {
	case "input", "button", "select", "textarea":
		if hasAttr(element, "disabled") {
			return browsererr.Newf(browsererr.ErrInteraction, op, locator.Describe(element), "element is disabled")
		}
	}
	if element.Data == "input" && inputType(element) == "hidden" {
		return browsererr.Newf(browsererr.ErrInteraction, op, locator.Describe(element), "element is not visible")
	}
	for n := element; n != nil && n.Type == html.ElementNode; n = n.Parent {
		if hasAttr(n, "hidden") || hiddenByStyle(htmlquery.SelectAttr(n, "style")) {
			return browsererr.Newf(browsererr.ErrInteraction, op, locator.Describe(element), "element is not visible")
		}
	}
	return nil
}

func hiddenByStyle(style string) bool {
	if style == "" {
		return false
	}
	for _, decl := range strings.Split(style, ";") {
		prop, value, ok := strings.Cut(decl, ":")
		if !ok {
			continue
		}
		prop = strings.ToLower(strings.TrimSpace(prop))
		value = strings.ToLower(strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(value), "!important")))
		if (prop == "display" && value == "none") || (prop == "visibility" && value == "hidden") {
			return true
		}
	}
	return false
}

func inputType(n *html.Node) string {
	return strings.ToLower(strings.TrimSpace(htmlquery.SelectAttr(n, "type")))
}

func acceptsText(kind string) bool {
	switch kind {
	case "", "text", "search", "email", "password", "tel", "url", "number":
		return true
	}
	return false
}

func isContentEditable(n *html.Node) bool {
	v, ok := attr(n, "contenteditable")
	if !ok {
		return false
	}
	v = strings.ToLower(v)
	return v == "" || v == "true" || v == "plaintext-only"
}

func appendText(n *html.Node, text string) {
	n.AppendChild(&html.Node{Type: html.TextNode, Data: text})
}

func collectText(sb *strings.Builder, n *html.Node) {
	switch n.Type {
	case html.TextNode:
		sb.WriteString(n.Data)
		return
	case html.ElementNode:
		switch n.Data {
		case "script", "style", "noscript", "template":
			return
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		collectText(sb, c)
	}
}

// activationTarget returns the element a click on n activates: n itself or
// its closest link or form control ancestor, as when a <span> inside a <a>
// is clicked.
func activationTarget(n *html.Node) *html.Node {
	for cur := n; cur != nil && cur.Type == html.ElementNode; cur = cur.Parent {
		switch cur.Data {
		case "a":
			if hasAttr(cur, "href") {
				return cur
			}
		case "button", "input":
			return cur
		}
	}
	return n
}

func findParentForm(element *html.Node) *html.Node {
	for form := element.Parent; form != nil; form = form.Parent {
		if form.Type == html.ElementNode && form.Data == "form" {
			return form
		}
	}
	return nil
}

func attr(n *html.Node, key string) (string, bool) {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val, true
		}
	}
	return "", false
}

func hasAttr(n *html.Node, key string) bool {
	_, ok := attr(n, key)
	return ok
}

func removeAttr(n *html.Node, key string) {
	for i, a := range n.Attr {
		if a.Key == key {
			n.Attr = append(n.Attr[:i], n.Attr[i+1:]...)
			return
		}
	}
}

func setAttr(n *html.Node, key, val string) {
	for i, a := range n.Attr {
		if a.Key == key {
			n.Attr[i].Val = val
			return
		}
	}
	n.Attr = append(n.Attr, html.Attribute{Key: key, Val: val})
}
