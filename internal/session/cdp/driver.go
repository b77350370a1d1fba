// Package cdp implements session.Driver over the Chrome DevTools Protocol with
// chromedp. Locators are resolved with DOM.performSearch, so the XPath a
// snapshot produced is evaluated by the browser against its live DOM.
package cdp

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	cdpproto "github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/dom"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/xkilldash9x/souper/internal/browsererr"
	"github.com/xkilldash9x/souper/internal/locator"
	"github.com/xkilldash9x/souper/internal/session"
)

const defaultStartupTimeout = 30 * time.Second

// Driver controls one browser tab.
type Driver struct {
	logger *zap.Logger

	tabCtx      context.Context
	tabCancel   context.CancelFunc
	allocCancel context.CancelFunc

	navMu   sync.Mutex
	pending *navigationWatch
}

var _ session.Driver = (*Driver)(nil)

// Launch starts (or attaches to) a browser and opens a tab. The browser
// lives until Close, independent of ctx, which only bounds startup.
func Launch(ctx context.Context, opts Options, logger *zap.Logger) (*Driver, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.Named("cdp")

	parent := context.WithoutCancel(ctx)
	var (
		allocCtx    context.Context
		allocCancel context.CancelFunc
	)
	if opts.RemoteURL != "" {
		logger.Info("Attaching to remote browser", zap.String("url", opts.RemoteURL))
		allocCtx, allocCancel = chromedp.NewRemoteAllocator(parent, opts.RemoteURL)
	} else {
		logger.Info("Initializing browser allocator...", zap.Bool("headless", opts.Headless))
		allocCtx, allocCancel = chromedp.NewExecAllocator(parent, allocatorOptions(opts)...)
	}

	sugar := logger.Sugar()
	tabCtx, tabCancel := chromedp.NewContext(allocCtx,
		chromedp.WithLogf(sugar.Debugf),
		chromedp.WithErrorf(sugar.Warnf),
	)

	d := &Driver{
		logger:      logger,
		tabCtx:      tabCtx,
		tabCancel:   tabCancel,
		allocCancel: allocCancel,
	}

	timeout := opts.StartupTimeout
	if timeout <= 0 {
		timeout = defaultStartupTimeout
	}
	startCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	// The first Run allocates the browser and must use the tab context itself;
	// a derived context would tear the browser down when it is cancelled.
	if err := chromedp.Run(tabCtx); err != nil {
		d.shutdown()
		return nil, fmt.Errorf("failed to initialize browser context/target connection: %w", err)
	}
	// Run a simple task to confirm the browser is alive.
	if err := d.run(startCtx, chromedp.Navigate("about:blank")); err != nil {
		d.shutdown()
		return nil, fmt.Errorf("browser failed to start or respond: %w", err)
	}

	logger.Info("Browser launched successfully and is responsive.")
	return d, nil
}

// run executes actions in the tab, bounded by ctx's deadline and
// cancellation.
func (d *Driver) run(ctx context.Context, actions ...chromedp.Action) error {
	runCtx, cancel := context.WithCancel(d.tabCtx)
	defer cancel()
	if deadline, ok := ctx.Deadline(); ok {
		var cancelDeadline context.CancelFunc
		runCtx, cancelDeadline = context.WithDeadline(runCtx, deadline)
		defer cancelDeadline()
	}
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	if err := chromedp.Run(runCtx, actions...); err != nil {
		if ctxErr := runCtx.Err(); ctxErr != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return ctxErr
		}
		return err
	}
	return nil
}

// Navigate loads url. chromedp waits for the frame's load event.
func (d *Driver) Navigate(ctx context.Context, url string) error {
	d.logger.Debug("Navigating to URL", zap.String("url", url))
	if err := d.run(ctx, chromedp.Navigate(url)); err != nil {
		return fmt.Errorf("navigation failed: %w", err)
	}
	return nil
}

// WaitForLoad waits for a navigation started by Submit to commit, then for a
// body element and document.readyState "complete".
func (d *Driver) WaitForLoad(ctx context.Context) error {
	if w := d.takePending(); w != nil {
		defer w.stop()
		if err := w.awaitSettled(ctx); err != nil {
			return fmt.Errorf("navigation did not commit: %w", err)
		}
	}
	var complete bool
	return d.run(ctx,
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.Poll(`document.readyState === "complete"`, &complete, chromedp.WithPollingInterval(100*time.Millisecond)),
	)
}

func (d *Driver) CurrentURL(ctx context.Context) (string, error) {
	var url string
	if err := d.run(ctx, chromedp.Location(&url)); err != nil {
		return "", fmt.Errorf("failed to read location: %w", err)
	}
	return url, nil
}

// CurrentHTML returns the outer HTML of the document element.
func (d *Driver) CurrentHTML(ctx context.Context) (string, error) {
	var content string
	if err := d.run(ctx, chromedp.OuterHTML("html", &content, chromedp.ByQuery)); err != nil {
		return "", fmt.Errorf("failed to read page HTML: %w", err)
	}
	return content, nil
}

// Resolve runs the locator's XPath through DOM.performSearch without waiting
// for it to appear. An element whose fingerprint no longer matches the
// locator's is reported as not found.
func (d *Driver) Resolve(ctx context.Context, loc locator.Locator) (session.ElementRef, bool, error) {
	var nodes []*cdpproto.Node
	err := d.run(ctx, chromedp.Nodes(loc.XPath, &nodes, chromedp.BySearch, chromedp.AtLeast(0)))
	if err != nil {
		return nil, false, classify("resolve", loc.String(), err)
	}
	var node *cdpproto.Node
	for _, n := range nodes {
		if n.NodeType == cdpproto.NodeTypeElement {
			node = n
			break
		}
	}
	if node == nil {
		return nil, false, nil
	}
	if loc.Fingerprint.IsZero() {
		return node, true, nil
	}

	var live locator.Fingerprint
	err = d.run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		var res struct {
			Tag  string `json:"tag"`
			ID   string `json:"id"`
			Name string `json:"name"`
			Text string `json:"text"`
		}
		if err := callOnNode(ctx, node, identityJS, &res); err != nil {
			return err
		}
		live = locator.Fingerprint{Tag: res.Tag, ID: res.ID, Name: res.Name, Text: res.Text}
		return nil
	}))
	if err != nil {
		return nil, false, classify("resolve", loc.String(), err)
	}
	if !loc.Fingerprint.Matches(live) {
		d.logger.Debug("Element at locator changed identity",
			zap.String("locator", loc.String()),
			zap.String("tag", live.Tag),
			zap.String("text", live.Text),
		)
		return nil, false, nil
	}
	return node, true, nil
}

// Click scrolls the element into view, checks it has a box and is enabled,
// and dispatches a left click at its center.
func (d *Driver) Click(ctx context.Context, ref session.ElementRef) error {
	node, err := asNode("click", ref)
	if err != nil {
		return err
	}
	err = d.run(ctx,
		d.checkActionable("click", node, false),
		chromedp.MouseClickNode(node),
	)
	return classify("click", node.FullXPath(), err)
}

// SendKeys focuses the element and types text into it.
func (d *Driver) SendKeys(ctx context.Context, ref session.ElementRef, text string) error {
	node, err := asNode("send_keys", ref)
	if err != nil {
		return err
	}
	err = d.run(ctx,
		d.checkActionable("send_keys", node, true),
		chromedp.KeyEventNode(node, text),
	)
	return classify("send_keys", node.FullXPath(), err)
}

// Submit submits the element's form through requestSubmit, so submit handlers
// run as they would for a user. When the main frame starts navigating within
// navigationStartGrace, the next WaitForLoad waits for the new document to
// commit; a form handled in-page returns without one.
func (d *Driver) Submit(ctx context.Context, ref session.ElementRef) error {
	node, err := asNode("submit", ref)
	if err != nil {
		return err
	}
	var (
		submitted bool
		watch     *navigationWatch
	)
	err = d.run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		tree, err := page.GetFrameTree().Do(ctx)
		if err != nil {
			return err
		}
		watch = d.watchNavigation(tree.Frame.ID)
		return callOnNode(ctx, node, submitFormJS, &submitted)
	}))
	if err != nil {
		if watch != nil {
			watch.stop()
		}
		return classify("submit", node.FullXPath(), err)
	}
	if !submitted {
		watch.stop()
		return browsererr.Newf(browsererr.ErrInteraction, "submit", node.FullXPath(), "element is not associated with a form")
	}

	navigating, err := watch.awaitStart(ctx, navigationStartGrace)
	if err != nil {
		watch.stop()
		return classify("submit", node.FullXPath(), err)
	}
	if !navigating {
		watch.stop()
		d.logger.Debug("Form submitted without navigation", zap.String("element", node.FullXPath()))
		return nil
	}
	d.setPending(watch)
	return nil
}

// Text returns the element's rendered innerText, whitespace-normalized.
func (d *Driver) Text(ctx context.Context, ref session.ElementRef) (string, error) {
	node, err := asNode("text", ref)
	if err != nil {
		return "", err
	}
	var text string
	err = d.run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		return callOnNode(ctx, node, innerTextJS, &text)
	}))
	if err != nil {
		return "", classify("text", node.FullXPath(), err)
	}
	return strings.Join(strings.Fields(text), " "), nil
}

// Attribute reads an attribute. "value" reads the live property so typed text
// is visible.
func (d *Driver) Attribute(ctx context.Context, ref session.ElementRef, name string) (string, bool, error) {
	node, err := asNode("attribute", ref)
	if err != nil {
		return "", false, err
	}
	var res struct {
		OK    bool   `json:"ok"`
		Value string `json:"value"`
	}
	err = d.run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		return callOnNode(ctx, node, attributeJS, &res, name)
	}))
	if err != nil {
		return "", false, classify("attribute", node.FullXPath(), err)
	}
	return res.Value, res.OK, nil
}

// Screenshot captures the viewport as PNG.
func (d *Driver) Screenshot(ctx context.Context) ([]byte, error) {
	var buf []byte
	if err := d.run(ctx, chromedp.CaptureScreenshot(&buf)); err != nil {
		return nil, fmt.Errorf("screenshot failed: %w", err)
	}
	return buf, nil
}

// Close closes the tab and shuts down (or detaches from) the browser.
func (d *Driver) Close(ctx context.Context) error {
	d.logger.Debug("Closing browser session.")
	var err error
	if cerr := chromedp.Cancel(d.tabCtx); cerr != nil && !errors.Is(cerr, context.Canceled) {
		err = fmt.Errorf("failed to close tab: %w", cerr)
	}
	d.shutdown()
	return err
}

func (d *Driver) shutdown() {
	if w := d.takePending(); w != nil {
		w.stop()
	}
	d.tabCancel()
	d.allocCancel()
}

// checkActionable fails with an interaction error when the element has no
// layout box, is disabled or (for typing) is read-only.
func (d *Driver) checkActionable(op string, node *cdpproto.Node, typing bool) chromedp.Action {
	return chromedp.ActionFunc(func(ctx context.Context) error {
		if err := dom.ScrollIntoViewIfNeeded().WithNodeID(node.NodeID).Do(ctx); err != nil {
			return err
		}
		box, err := dom.GetBoxModel().WithNodeID(node.NodeID).Do(ctx)
		if err != nil {
			return err
		}
		if box == nil || box.Width == 0 || box.Height == 0 {
			return browsererr.Newf(browsererr.ErrInteraction, op, node.FullXPath(), "element is not visible")
		}
		var reason string
		if err := callOnNode(ctx, node, actionBlockerJS, &reason, typing); err != nil {
			return err
		}
		if reason != "" {
			return browsererr.Newf(browsererr.ErrInteraction, op, node.FullXPath(), "%s", reason)
		}
		return nil
	})
}

// callOnNode calls fn with this bound to node and decodes its return value
// into res. The remote object is released afterwards.
func callOnNode(ctx context.Context, node *cdpproto.Node, fn string, res any, args ...any) error {
	obj, err := dom.ResolveNode().WithNodeID(node.NodeID).Do(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = runtime.ReleaseObject(obj.ObjectID).Do(ctx) }()
	return chromedp.CallFunctionOn(fn, res,
		func(p *runtime.CallFunctionOnParams) *runtime.CallFunctionOnParams {
			return p.WithObjectID(obj.ObjectID)
		},
		args...,
	).Do(ctx)
}

func asNode(op string, ref session.ElementRef) (*cdpproto.Node, error) {
	node, ok := ref.(*cdpproto.Node)
	if !ok || node == nil {
		return nil, fmt.Errorf("cdp: %s: unexpected element reference %T", op, ref)
	}
	return node, nil
}
