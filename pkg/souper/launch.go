package souper

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/xkilldash9x/souper/internal/session"
	"github.com/xkilldash9x/souper/internal/session/cdp"
	"github.com/xkilldash9x/souper/internal/session/memory"
)

// Driver names accepted by LaunchOptions.Driver.
const (
	// DriverChrome controls Chrome or Chromium over the DevTools Protocol.
	DriverChrome = "chrome"
	// DriverStatic fetches pages over HTTP into an in-process DOM. Links and
	// forms work; scripts do not run.
	DriverStatic = "static"
)

// LaunchOptions selects and configures the browser behind a Bridge.
type LaunchOptions struct {
	Driver string

	// Chrome settings.
	Headless        bool
	ExecPath        string
	RemoteURL       string
	Args            []string
	WindowWidth     int
	WindowHeight    int
	StartupTimeout  time.Duration
	IgnoreTLSErrors bool
	UserAgent       string

	// Static driver settings.
	RequestTimeout time.Duration

	NavigationTimeout time.Duration
	ActionTimeout     time.Duration
	ActionsPerSecond  float64

	TextMatch           TextMatch
	CaseInsensitiveText bool
}

// Launch starts the configured driver and wraps it in a Bridge.
func Launch(ctx context.Context, opts LaunchOptions, logger *zap.Logger) (*Bridge, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	var (
		driver session.Driver
		err    error
	)
	switch strings.ToLower(opts.Driver) {
	case "", DriverChrome, "cdp":
		driver, err = cdp.Launch(ctx, cdp.Options{
			RemoteURL:       opts.RemoteURL,
			ExecPath:        opts.ExecPath,
			Headless:        opts.Headless,
			IgnoreTLSErrors: opts.IgnoreTLSErrors,
			UserAgent:       opts.UserAgent,
			WindowWidth:     opts.WindowWidth,
			WindowHeight:    opts.WindowHeight,
			Args:            opts.Args,
			StartupTimeout:  opts.StartupTimeout,
		}, logger)
	case DriverStatic:
		var loader *memory.HTTPLoader
		loader, err = memory.NewHTTPLoader(memory.HTTPOptions{
			UserAgent:       opts.UserAgent,
			Timeout:         opts.RequestTimeout,
			IgnoreTLSErrors: opts.IgnoreTLSErrors,
		}, logger)
		if err == nil {
			driver = memory.New(loader, logger)
		}
	default:
		return nil, fmt.Errorf("unknown driver %q (want %s or %s)", opts.Driver, DriverChrome, DriverStatic)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to start %s driver: %w", driverName(opts.Driver), err)
	}

	return New(driver,
		WithLogger(logger),
		WithNavigationTimeout(opts.NavigationTimeout),
		WithActionTimeout(opts.ActionTimeout),
		WithActionsPerSecond(opts.ActionsPerSecond),
		WithTextMatch(opts.TextMatch),
		WithCaseInsensitiveText(opts.CaseInsensitiveText),
	), nil
}

// NewStatic returns a Bridge over an in-process DOM whose pages come from
// pages, keyed by URL. It needs no browser and no network.
func NewStatic(pages map[string]string, opts ...Option) *Bridge {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	driver := memory.New(memory.Pages(pages), o.logger)
	return New(driver, opts...)
}

func driverName(name string) string {
	if name == "" {
		return DriverChrome
	}
	return name
}
