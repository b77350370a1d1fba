package souper

import (
	"context"

	"github.com/xkilldash9x/souper/internal/locator"
	"github.com/xkilldash9x/souper/internal/session"
)

// Handle is a live reference to one element, found by a query. It holds only
// a locator and the session; every action resolves the locator against the
// page as it is at that moment. An element that has since left the page
// fails with ErrStaleElement; one that cannot take the action fails with
// ErrInteraction. Nothing is retried.
type Handle struct {
	loc     locator.Locator
	session *session.Session
	text    string
}

// Click clicks the element.
func (h *Handle) Click(ctx context.Context) error {
	return h.session.Click(ctx, h.loc)
}

// SendKeys types text into the element.
func (h *Handle) SendKeys(ctx context.Context, text string) error {
	return h.session.SendKeys(ctx, h.loc, text)
}

// Submit submits the element's form and waits for the next page to load.
func (h *Handle) Submit(ctx context.Context) error {
	return h.session.Submit(ctx, h.loc)
}

// Text reads the element's current rendered text from the live page.
func (h *Handle) Text(ctx context.Context) (string, error) {
	return h.session.Text(ctx, h.loc)
}

// Attribute reads an attribute from the live element.
func (h *Handle) Attribute(ctx context.Context, name string) (string, bool, error) {
	return h.session.Attribute(ctx, h.loc, name)
}

// Locator returns the element's locator.
func (h *Handle) Locator() locator.Locator { return h.loc }

// TagName is the element's tag when it was matched.
func (h *Handle) TagName() string { return h.loc.Tag }

// MatchedText is the element's visible text when it was matched.
func (h *Handle) MatchedText() string { return h.text }

func (h *Handle) String() string { return h.loc.String() }
