// Package memory implements session.Driver on top of an in-process DOM. Pages
// come from a Loader; links, forms and form controls behave the way a browser
// without a script engine would treat them.
package memory

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"github.com/antchfx/htmlquery"
	"go.uber.org/zap"
	"golang.org/x/net/html"

	"github.com/xkilldash9x/souper/internal/browsererr"
	"github.com/xkilldash9x/souper/internal/locator"
	"github.com/xkilldash9x/souper/internal/session"
)

const blankURL = "about:blank"

// Driver is a pure-Go session.Driver. The live DOM is stateful across
// interactions until the next navigation.
type Driver struct {
	loader Loader
	logger *zap.Logger

	mu         sync.Mutex
	currentURL *url.URL
	currentDOM *html.Node
	closed     bool
}

var _ session.Driver = (*Driver)(nil)

// New returns a driver showing about:blank.
func New(loader Loader, logger *zap.Logger) *Driver {
	if logger == nil {
		logger = zap.NewNop()
	}
	blank, _ := url.Parse(blankURL)
	return &Driver{
		loader:     loader,
		logger:     logger.Named("memory"),
		currentURL: blank,
		currentDOM: emptyDocument(),
	}
}

func emptyDocument() *html.Node {
	doc, _ := htmlquery.Parse(strings.NewReader(""))
	return doc
}

// Navigate loads targetURL, resolved against the current page.
func (d *Driver) Navigate(ctx context.Context, targetURL string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.checkOpen(); err != nil {
		return err
	}

	resolved, err := d.resolveURL(targetURL)
	if err != nil {
		return fmt.Errorf("failed to resolve URL '%s': %w", targetURL, err)
	}
	return d.load(ctx, Request{Method: http.MethodGet, URL: resolved})
}

// WaitForLoad returns at once: loads complete inside Navigate, Click and
// Submit.
func (d *Driver) WaitForLoad(ctx context.Context) error {
	return ctx.Err()
}

func (d *Driver) CurrentURL(ctx context.Context) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.checkOpen(); err != nil {
		return "", err
	}
	return d.currentURL.String(), nil
}

// CurrentHTML serializes the current DOM.
func (d *Driver) CurrentHTML(ctx context.Context) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.checkOpen(); err != nil {
		return "", err
	}
	var buf bytes.Buffer
	if err := html.Render(&buf, d.currentDOM); err != nil {
		return "", fmt.Errorf("failed to render DOM snapshot: %w", err)
	}
	return buf.String(), nil
}

// Resolve evaluates the locator's XPath against the current DOM. The returned
// ref is the live *html.Node.
func (d *Driver) Resolve(ctx context.Context, loc locator.Locator) (session.ElementRef, bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.checkOpen(); err != nil {
		return nil, false, err
	}
	element, err := htmlquery.Query(d.currentDOM, loc.XPath)
	if err != nil {
		return nil, false, browsererr.New(browsererr.ErrLocator, "resolve", loc.XPath, err)
	}
	if element == nil {
		return nil, false, nil
	}
	if !loc.Fingerprint.IsZero() && !loc.Fingerprint.Matches(locator.Identify(element)) {
		d.logger.Debug("Element at locator changed identity", zap.String("locator", loc.String()))
		return nil, false, nil
	}
	return element, true, nil
}

// Click follows links, submits forms from submit buttons and toggles
// checkboxes and radios. Other clicks have no effect without a script engine.
func (d *Driver) Click(ctx context.Context, ref session.ElementRef) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	element, err := d.liveElement("click", ref)
	if err != nil {
		return err
	}
	target := activationTarget(element)
	for _, n := range []*html.Node{element, target} {
		if err := checkInteractable("click", n); err != nil {
			return err
		}
	}
	return d.handleClickConsequence(ctx, target)
}

// SendKeys appends text to a text control's value, as typing would.
func (d *Driver) SendKeys(ctx context.Context, ref session.ElementRef, text string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	element, err := d.liveElement("send_keys", ref)
	if err != nil {
		return err
	}
	if err := checkInteractable("send_keys", element); err != nil {
		return err
	}
	if hasAttr(element, "readonly") {
		return browsererr.Newf(browsererr.ErrInteraction, "send_keys", locator.Describe(element), "element is read-only")
	}

	switch {
	case element.Data == "textarea":
		appendText(element, text)
	case element.Data == "input" && acceptsText(inputType(element)):
		setAttr(element, "value", htmlquery.SelectAttr(element, "value")+text)
	case isContentEditable(element):
		appendText(element, text)
	default:
		return browsererr.Newf(browsererr.ErrInteraction, "send_keys", locator.Describe(element), "element does not accept text")
	}
	return nil
}

// Submit submits the form ref belongs to, or ref itself when it is a form.
func (d *Driver) Submit(ctx context.Context, ref session.ElementRef) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	element, err := d.liveElement("submit", ref)
	if err != nil {
		return err
	}
	form := element
	if element.Data != "form" {
		form = findParentForm(element)
	}
	if form == nil {
		return browsererr.Newf(browsererr.ErrInteraction, "submit", locator.Describe(element), "element is not associated with a form")
	}
	return d.submitForm(ctx, form, nil)
}

// Text returns the element's whitespace-normalized rendered text.
func (d *Driver) Text(ctx context.Context, ref session.ElementRef) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	element, err := d.liveElement("text", ref)
	if err != nil {
		return "", err
	}
	var sb strings.Builder
	collectText(&sb, element)
	return strings.Join(strings.Fields(sb.String()), " "), nil
}

// Attribute reads an attribute from the live element. Typed input values are
// stored in the value attribute.
func (d *Driver) Attribute(ctx context.Context, ref session.ElementRef, name string) (string, bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	element, err := d.liveElement("attribute", ref)
	if err != nil {
		return "", false, err
	}
	for _, attr := range element.Attr {
		if attr.Key == name {
			return attr.Val, true, nil
		}
	}
	return "", false, nil
}

// Screenshot is not available without a layout engine.
func (d *Driver) Screenshot(ctx context.Context) ([]byte, error) {
	return nil, fmt.Errorf("memory driver cannot render screenshots")
}

// Close marks the driver closed and releases idle loader connections.
func (d *Driver) Close(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return nil
	}
	d.closed = true
	if l, ok := d.loader.(interface{ CloseIdleConnections() }); ok {
		l.CloseIdleConnections()
	}
	return nil
}

// Mutate runs fn against the live DOM, the way page scripts would change it.
func (d *Driver) Mutate(fn func(doc *html.Node) error) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return fn(d.currentDOM)
}

// SetHTML replaces the live DOM without navigating, as a client-side re-render
// does. Every element from the previous DOM becomes detached.
func (d *Driver) SetHTML(raw string) error {
	doc, err := htmlquery.Parse(strings.NewReader(raw))
	if err != nil {
		return fmt.Errorf("failed to parse HTML: %w", err)
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.currentDOM = doc
	return nil
}

// Remove detaches every element matching xpath and reports how many there
// were.
func (d *Driver) Remove(xpath string) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	nodes, err := htmlquery.QueryAll(d.currentDOM, xpath)
	if err != nil {
		return 0, fmt.Errorf("invalid XPath selector '%s': %w", xpath, err)
	}
	for _, n := range nodes {
		if n.Parent != nil {
			n.Parent.RemoveChild(n)
		}
	}
	return len(nodes), nil
}

func (d *Driver) checkOpen() error {
	if d.closed {
		return browsererr.New(browsererr.ErrClosed, "memory", "", nil)
	}
	return nil
}

// liveElement unwraps ref and checks it is still attached to the current DOM.
func (d *Driver) liveElement(op string, ref session.ElementRef) (*html.Node, error) {
	if err := d.checkOpen(); err != nil {
		return nil, err
	}
	element, ok := ref.(*html.Node)
	if !ok || element == nil || element.Type != html.ElementNode {
		return nil, fmt.Errorf("memory: %s: unexpected element reference %T", op, ref)
	}
	root := element
	for root.Parent != nil {
		root = root.Parent
	}
	if root != d.currentDOM {
		return nil, browsererr.Newf(browsererr.ErrStaleElement, op, locator.Describe(element), "element is no longer attached to the document")
	}
	return element, nil
}

// load performs req and replaces the page. d.mu must be held.
func (d *Driver) load(ctx context.Context, req Request) error {
	if req.Referer == "" && d.currentURL.String() != blankURL {
		req.Referer = d.currentURL.String()
	}
	d.logger.Debug("Loading page", zap.String("method", req.Method), zap.String("url", req.URL.String()))

	page, err := d.loader.Load(ctx, req)
	if err != nil {
		return err
	}

	finalURL := req.URL
	if page.URL != "" {
		parsed, err := url.Parse(page.URL)
		if err != nil {
			return fmt.Errorf("loader returned invalid URL '%s': %w", page.URL, err)
		}
		finalURL = parsed
	}
	doc, err := htmlquery.Parse(strings.NewReader(page.HTML))
	if err != nil {
		return fmt.Errorf("failed to parse HTML response from '%s': %w", finalURL, err)
	}

	d.currentURL = finalURL
	d.currentDOM = doc

	title := ""
	if titleNode := htmlquery.FindOne(doc, "//title"); titleNode != nil {
		title = strings.TrimSpace(htmlquery.InnerText(titleNode))
	}
	d.logger.Debug("Session state updated", zap.String("url", finalURL.String()), zap.String("title", title))
	return nil
}

// resolveURL resolves a potentially relative URL against the current page.
func (d *Driver) resolveURL(targetURL string) (*url.URL, error) {
	parsedURL, err := url.Parse(strings.TrimSpace(targetURL))
	if err != nil {
		return nil, err
	}
	if parsedURL.IsAbs() {
		return parsedURL, nil
	}
	if d.currentURL.String() == blankURL {
		return nil, fmt.Errorf("initial navigation target must be an absolute URL: '%s'", targetURL)
	}
	return d.currentURL.ResolveReference(parsedURL), nil
}

// handleClickConsequence determines the action resulting from a click.
func (d *Driver) handleClickConsequence(ctx context.Context, element *html.Node) error {
	tagName := element.Data
	kind := inputType(element)

	if tagName == "a" {
		href := htmlquery.SelectAttr(element, "href")
		if href != "" && !strings.HasPrefix(strings.ToLower(href), "javascript:") {
			target, err := d.resolveURL(href)
			if err != nil {
				return fmt.Errorf("failed to resolve link '%s': %w", href, err)
			}
			return d.load(ctx, Request{Method: http.MethodGet, URL: target})
		}
	}

	isSubmit := (tagName == "button" && (kind == "submit" || kind == "")) ||
		(tagName == "input" && (kind == "submit" || kind == "image"))
	if isSubmit {
		if form := findParentForm(element); form != nil {
			return d.submitForm(ctx, form, element)
		}
	}

	if tagName == "input" {
		switch kind {
		case "checkbox":
			if hasAttr(element, "checked") {
				removeAttr(element, "checked")
			} else {
				setAttr(element, "checked", "checked")
			}
			return nil
		case "radio":
			selectRadio(element)
			return nil
		}
	}

	d.logger.Debug("Click consequence ignored for element (no navigation or submission detected)", zap.String("tag", tagName))
	return nil
}
