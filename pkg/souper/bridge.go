package souper

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/xkilldash9x/souper/internal/browsererr"
	"github.com/xkilldash9x/souper/internal/locator"
	"github.com/xkilldash9x/souper/internal/query"
	"github.com/xkilldash9x/souper/internal/session"
	"github.com/xkilldash9x/souper/internal/snapshot"
)

// Bridge owns one live browser session and answers queries against it.
// A Bridge is safe for concurrent use; calls are serialized.
type Bridge struct {
	session *session.Session
	logger  *zap.Logger

	textMatch       query.TextMatch
	caseInsensitive bool
}

// New builds a Bridge around driver. The Bridge owns the driver from now on.
func New(driver session.Driver, opts ...Option) *Bridge {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return &Bridge{
		session:         session.New(driver, o.session, o.logger),
		logger:          o.logger.Named("bridge"),
		textMatch:       o.textMatch,
		caseInsensitive: o.caseInsensitive,
	}
}

// SessionID identifies the underlying live session in logs.
func (b *Bridge) SessionID() string { return b.session.ID() }

// Goto navigates and blocks until the page has loaded. A page that does not
// load within the navigation timeout fails with ErrNavigation.
func (b *Bridge) Goto(ctx context.Context, url string) error {
	return b.session.Goto(ctx, url)
}

// Find runs q against a fresh snapshot and returns a Handle per match. An
// empty result is not an error.
func (b *Bridge) Find(ctx context.Context, q Query) ([]*Handle, error) {
	start := time.Now()
	tree, err := b.session.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	matches, err := query.Find(tree, q)
	if err != nil {
		return nil, err
	}

	handles := make([]*Handle, 0, len(matches))
	for _, m := range matches {
		h, err := b.wrap(tree, m)
		if err != nil {
			return nil, err
		}
		handles = append(handles, h)
	}

	b.logger.Debug("Query evaluated",
		zap.Stringer("query", q),
		zap.Int("matches", len(handles)),
		zap.Duration("elapsed", time.Since(start)),
	)
	return handles, nil
}

// FindFirst returns the first match of q or fails with ErrNotFound.
func (b *Bridge) FindFirst(ctx context.Context, q Query) (*Handle, error) {
	h, ok, err := b.QueryElement(ctx, q)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, browsererr.New(browsererr.ErrNotFound, "find", q.String(), nil)
	}
	return h, nil
}

// QueryElement returns the first match of q; ok is false when there is none.
func (b *Bridge) QueryElement(ctx context.Context, q Query) (h *Handle, ok bool, err error) {
	handles, err := b.Find(ctx, q)
	if err != nil || len(handles) == 0 {
		return nil, false, err
	}
	return handles[0], true, nil
}

// FindElementByCSSSelector returns the first element matching selector.
func (b *Bridge) FindElementByCSSSelector(ctx context.Context, selector string) (*Handle, error) {
	return b.FindFirst(ctx, query.ByCSS(selector))
}

// FindElementsByCSSSelector returns every element matching selector in
// document order.
func (b *Bridge) FindElementsByCSSSelector(ctx context.Context, selector string) ([]*Handle, error) {
	return b.Find(ctx, query.ByCSS(selector))
}

// FindElementByID returns the first element whose id is exactly id.
func (b *Bridge) FindElementByID(ctx context.Context, id string) (*Handle, error) {
	return b.FindFirst(ctx, query.ByID(id))
}

// FindElementsByID returns every element whose id is exactly id. Pages with
// duplicate ids yield more than one.
func (b *Bridge) FindElementsByID(ctx context.Context, id string) ([]*Handle, error) {
	return b.Find(ctx, query.ByID(id))
}

// FindElementByText returns the deepest element whose visible text matches
// text under the bridge's text mode (exact unless configured otherwise).
func (b *Bridge) FindElementByText(ctx context.Context, text string) (*Handle, error) {
	return b.FindFirst(ctx, b.textQuery(text, b.textMatch))
}

// FindElementsByText returns every element whose visible text matches text,
// deepest first.
func (b *Bridge) FindElementsByText(ctx context.Context, text string) ([]*Handle, error) {
	return b.Find(ctx, b.textQuery(text, b.textMatch))
}

// FindElementByPartialText returns the deepest element whose visible text
// contains text.
func (b *Bridge) FindElementByPartialText(ctx context.Context, text string) (*Handle, error) {
	return b.FindFirst(ctx, b.textQuery(text, query.TextContains))
}

// FindElementsByPartialText returns every element whose visible text contains
// text, deepest first.
func (b *Bridge) FindElementsByPartialText(ctx context.Context, text string) ([]*Handle, error) {
	return b.Find(ctx, b.textQuery(text, query.TextContains))
}

// Snapshot parses the current page. The tree is a copy; changing the page
// does not change it.
func (b *Bridge) Snapshot(ctx context.Context) (*snapshot.Tree, error) {
	return b.session.Snapshot(ctx)
}

// PageSource returns the current page's serialized DOM.
func (b *Bridge) PageSource(ctx context.Context) (string, error) {
	return b.session.CurrentHTML(ctx)
}

// CurrentURL reports the URL the browser is showing.
func (b *Bridge) CurrentURL(ctx context.Context) (string, error) {
	return b.session.CurrentURL(ctx)
}

// Screenshot captures the viewport as PNG.
func (b *Bridge) Screenshot(ctx context.Context) ([]byte, error) {
	return b.session.Screenshot(ctx)
}

// Close shuts the session down. It is safe to call more than once.
func (b *Bridge) Close(ctx context.Context) error {
	return b.session.Close(ctx)
}

func (b *Bridge) textQuery(text string, mode query.TextMatch) query.Query {
	q := query.Query{Kind: query.KindText, Value: text, Match: mode}
	if b.caseInsensitive {
		q = q.IgnoringCase()
	}
	return q
}

func (b *Bridge) wrap(tree *snapshot.Tree, m query.Match) (*Handle, error) {
	loc, err := locator.Locate(m.Node)
	if err != nil {
		return nil, err
	}
	text, _ := tree.VisibleText(m.Node)
	return &Handle{
		loc:     loc,
		session: b.session,
		text:    text,
	}, nil
}
