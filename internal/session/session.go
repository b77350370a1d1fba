package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/xkilldash9x/souper/internal/browsererr"
	"github.com/xkilldash9x/souper/internal/locator"
	"github.com/xkilldash9x/souper/internal/snapshot"
)

const (
	DefaultNavigationTimeout = 30 * time.Second
	DefaultActionTimeout     = 10 * time.Second
)

// Options tune a Session. Zero durations fall back to the defaults.
type Options struct {
	NavigationTimeout time.Duration
	ActionTimeout     time.Duration
	// ActionsPerSecond paces element actions; 0 disables pacing.
	ActionsPerSecond float64
}

func (o Options) withDefaults() Options {
	if o.NavigationTimeout <= 0 {
		o.NavigationTimeout = DefaultNavigationTimeout
	}
	if o.ActionTimeout <= 0 {
		o.ActionTimeout = DefaultActionTimeout
	}
	return o
}

// Session is a single live browser tab. All methods are safe for concurrent
// use, but calls are executed one at a time in arrival order.
type Session struct {
	id      string
	driver  Driver
	opts    Options
	logger  *zap.Logger
	limiter *rate.Limiter

	mu     sync.Mutex
	closed bool
}

// New wraps driver in a Session. The session takes ownership of the driver
// and closes it in Close.
func New(driver Driver, opts Options, logger *zap.Logger) *Session {
	if logger == nil {
		logger = zap.NewNop()
	}
	opts = opts.withDefaults()
	id := uuid.New().String()

	s := &Session{
		id:     id,
		driver: driver,
		opts:   opts,
		logger: logger.Named("session").With(zap.String("session_id", id)),
	}
	if opts.ActionsPerSecond > 0 {
		s.limiter = rate.NewLimiter(rate.Limit(opts.ActionsPerSecond), 1)
	}
	return s
}

// ID returns the session ID.
func (s *Session) ID() string { return s.id }

// Options returns the effective options.
func (s *Session) Options() Options { return s.opts }

// Goto navigates to url and blocks until the page has loaded or the navigation
// timeout elapses.
func (s *Session) Goto(ctx context.Context, url string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkOpen("goto", url); err != nil {
		return err
	}

	s.logger.Info("Navigating", zap.String("url", url))
	start := time.Now()

	navCtx, cancel := context.WithTimeout(ctx, s.opts.NavigationTimeout)
	defer cancel()

	if err := s.driver.Navigate(navCtx, url); err != nil {
		return s.navigationError("goto", url, err)
	}
	if err := s.driver.WaitForLoad(navCtx); err != nil {
		return s.navigationError("goto", url, err)
	}

	s.logger.Debug("Page loaded", zap.String("url", url), zap.Duration("elapsed", time.Since(start)))
	return nil
}

// CurrentURL reports the URL of the page the browser is showing.
func (s *Session) CurrentURL(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkOpen("current_url", ""); err != nil {
		return "", err
	}
	actionCtx, cancel := context.WithTimeout(ctx, s.opts.ActionTimeout)
	defer cancel()
	return s.driver.CurrentURL(actionCtx)
}

// CurrentHTML returns the live page's serialized DOM.
func (s *Session) CurrentHTML(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.currentHTML(ctx)
}

func (s *Session) currentHTML(ctx context.Context) (string, error) {
	if err := s.checkOpen("current_html", ""); err != nil {
		return "", err
	}
	actionCtx, cancel := context.WithTimeout(ctx, s.opts.NavigationTimeout)
	defer cancel()
	return s.driver.CurrentHTML(actionCtx)
}

// Snapshot reads and parses the live DOM in one critical section, so no other
// call on this session can change the page in between.
func (s *Session) Snapshot(ctx context.Context) (*snapshot.Tree, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tree, err := snapshot.Take(ctx, htmlSourceFunc(s.currentHTML))
	if err != nil {
		return nil, err
	}
	if ce := s.logger.Check(zap.DebugLevel, "Snapshot taken"); ce != nil {
		ce.Write(zap.Int("elements", tree.Len()))
	}
	return tree, nil
}

type htmlSourceFunc func(ctx context.Context) (string, error)

func (f htmlSourceFunc) CurrentHTML(ctx context.Context) (string, error) { return f(ctx) }

// Click clicks the element loc currently describes.
func (s *Session) Click(ctx context.Context, loc locator.Locator) error {
	return s.withElement(ctx, "click", loc, func(ctx context.Context, ref ElementRef) error {
		return s.driver.Click(ctx, ref)
	})
}

// SendKeys types text into the element loc currently describes.
func (s *Session) SendKeys(ctx context.Context, loc locator.Locator, text string) error {
	return s.withElement(ctx, "send_keys", loc, func(ctx context.Context, ref ElementRef) error {
		return s.driver.SendKeys(ctx, ref, text)
	})
}

// Submit submits the form owning the element and waits for the resulting page
// to load under the navigation timeout.
func (s *Session) Submit(ctx context.Context, loc locator.Locator) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := s.elementLocked(ctx, "submit", loc, func(ctx context.Context, ref ElementRef) error {
		return s.driver.Submit(ctx, ref)
	})
	if err != nil {
		return err
	}

	navCtx, cancel := context.WithTimeout(ctx, s.opts.NavigationTimeout)
	defer cancel()
	if err := s.driver.WaitForLoad(navCtx); err != nil {
		return s.navigationError("submit", loc.String(), err)
	}
	return nil
}

// Text returns the rendered text of the element loc currently describes.
func (s *Session) Text(ctx context.Context, loc locator.Locator) (string, error) {
	var text string
	err := s.withElement(ctx, "text", loc, func(ctx context.Context, ref ElementRef) error {
		var err error
		text, err = s.driver.Text(ctx, ref)
		return err
	})
	return text, err
}

// Attribute reads attribute name of the element loc currently describes.
func (s *Session) Attribute(ctx context.Context, loc locator.Locator, name string) (string, bool, error) {
	var (
		value string
		ok    bool
	)
	err := s.withElement(ctx, "attribute", loc, func(ctx context.Context, ref ElementRef) error {
		var err error
		value, ok, err = s.driver.Attribute(ctx, ref, name)
		return err
	})
	return value, ok, err
}

// Screenshot captures the visible page as PNG bytes.
func (s *Session) Screenshot(ctx context.Context) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkOpen("screenshot", ""); err != nil {
		return nil, err
	}
	actionCtx, cancel := context.WithTimeout(ctx, s.opts.ActionTimeout)
	defer cancel()
	return s.driver.Screenshot(actionCtx)
}

// Close releases the driver. Further calls fail with ErrClosed. Calling Close
// more than once is a no-op.
func (s *Session) Close(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	s.logger.Info("Closing session.")
	if err := s.driver.Close(ctx); err != nil {
		return fmt.Errorf("session: closing driver: %w", err)
	}
	return nil
}

func (s *Session) withElement(ctx context.Context, op string, loc locator.Locator, fn func(context.Context, ElementRef) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.elementLocked(ctx, op, loc, fn)
}

// elementLocked resolves loc against the live DOM and runs fn on the result.
// s.mu must be held.
func (s *Session) elementLocked(ctx context.Context, op string, loc locator.Locator, fn func(context.Context, ElementRef) error) error {
	target := loc.String()
	if err := s.checkOpen(op, target); err != nil {
		return err
	}
	if loc.IsZero() {
		return browsererr.Newf(browsererr.ErrLocator, op, target, "empty locator")
	}
	if s.limiter != nil {
		if err := s.limiter.Wait(ctx); err != nil {
			return browsererr.New(browsererr.ErrInteraction, op, target, err)
		}
	}

	actionCtx, cancel := context.WithTimeout(ctx, s.opts.ActionTimeout)
	defer cancel()

	ref, found, err := s.driver.Resolve(actionCtx, loc)
	if err != nil {
		return s.actionError(op, target, err)
	}
	if !found {
		s.logger.Debug("Element no longer in the live DOM", zap.String("op", op), zap.String("locator", target))
		return browsererr.Newf(browsererr.ErrStaleElement, op, target, "locator no longer resolves")
	}

	s.logger.Debug("Performing action", zap.String("op", op), zap.String("locator", target))
	if err := fn(actionCtx, ref); err != nil {
		return s.actionError(op, target, err)
	}
	return nil
}

func (s *Session) checkOpen(op, target string) error {
	if s.closed {
		return browsererr.New(browsererr.ErrClosed, op, target, nil)
	}
	return nil
}

// actionError keeps driver classifications and files everything else under
// ErrInteraction.
func (s *Session) actionError(op, target string, err error) error {
	if browsererr.KindOf(err) != "" {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return browsererr.New(browsererr.ErrInteraction, op, target,
			fmt.Errorf("no response within %s: %w", s.opts.ActionTimeout, err))
	}
	return browsererr.New(browsererr.ErrInteraction, op, target, err)
}

func (s *Session) navigationError(op, target string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		s.logger.Warn("Navigation timed out", zap.String("target", target), zap.Duration("timeout", s.opts.NavigationTimeout))
		return browsererr.New(browsererr.ErrNavigation, op, target,
			fmt.Errorf("page did not load within %s: %w", s.opts.NavigationTimeout, err))
	}
	if browsererr.Is(err, browsererr.ErrNavigation) {
		return err
	}
	return browsererr.New(browsererr.ErrNavigation, op, target, err)
}
