package souper

import (
	"time"

	"go.uber.org/zap"

	"github.com/xkilldash9x/souper/internal/query"
	"github.com/xkilldash9x/souper/internal/session"
)

type options struct {
	logger          *zap.Logger
	session         session.Options
	textMatch       query.TextMatch
	caseInsensitive bool
}

func defaultOptions() options {
	return options{
		logger:    zap.NewNop(),
		textMatch: query.TextExact,
	}
}

// Option configures a Bridge.
type Option func(*options)

// WithLogger sets the logger. Components name themselves below it.
func WithLogger(logger *zap.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithNavigationTimeout bounds Goto and Submit page loads.
func WithNavigationTimeout(d time.Duration) Option {
	return func(o *options) { o.session.NavigationTimeout = d }
}

// WithActionTimeout bounds single element actions.
func WithActionTimeout(d time.Duration) Option {
	return func(o *options) { o.session.ActionTimeout = d }
}

// WithActionsPerSecond paces element actions. Zero disables pacing.
func WithActionsPerSecond(n float64) Option {
	return func(o *options) { o.session.ActionsPerSecond = n }
}

// WithTextMatch sets the mode FindElementByText and FindElementsByText use.
func WithTextMatch(m TextMatch) Option {
	return func(o *options) { o.textMatch = m }
}

// WithCaseInsensitiveText makes text queries fold case.
func WithCaseInsensitiveText(on bool) Option {
	return func(o *options) { o.caseInsensitive = on }
}
