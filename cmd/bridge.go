package cmd

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/xkilldash9x/souper/internal/config"
	"github.com/xkilldash9x/souper/internal/query"
	"github.com/xkilldash9x/souper/pkg/souper"
)

// launchOptions translates the loaded configuration into bridge settings.
func launchOptions(cfg config.Interface) (souper.LaunchOptions, error) {
	match, err := query.ParseTextMatch(strings.ToLower(cfg.Query().TextMatch))
	if err != nil {
		return souper.LaunchOptions{}, fmt.Errorf("query.text_match: %w", err)
	}

	browser := cfg.Browser()
	network := cfg.Network()
	width, height := browser.WindowSize()

	driver := strings.ToLower(browser.Driver)
	if driver == "cdp" {
		driver = souper.DriverChrome
	}

	return souper.LaunchOptions{
		Driver:              driver,
		Headless:            browser.Headless,
		ExecPath:            browser.ExecPath,
		RemoteURL:           browser.RemoteURL,
		Args:                browser.Args,
		WindowWidth:         width,
		WindowHeight:        height,
		StartupTimeout:      browser.StartupTimeout,
		IgnoreTLSErrors:     browser.IgnoreTLSErrors,
		UserAgent:           browser.UserAgent,
		RequestTimeout:      network.RequestTimeout,
		NavigationTimeout:   network.NavigationTimeout,
		ActionTimeout:       network.ActionTimeout,
		ActionsPerSecond:    network.ActionsPerSecond,
		TextMatch:           match,
		CaseInsensitiveText: !cfg.Query().CaseSensitive,
	}, nil
}

// launchBridge starts a bridge from the loaded configuration.
func launchBridge(ctx context.Context, cfg config.Interface, logger *zap.Logger) (*souper.Bridge, error) {
	opts, err := launchOptions(cfg)
	if err != nil {
		return nil, err
	}
	b, err := souper.Launch(ctx, opts, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to launch %s browser: %w", opts.Driver, err)
	}
	return b, nil
}
