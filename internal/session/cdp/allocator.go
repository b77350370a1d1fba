package cdp

import (
	"fmt"
	"runtime"
	"strings"
	"time"

	"github.com/chromedp/chromedp"
)

// DefaultUserAgent is presented when no user agent is configured.
const DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/126.0.0.0 Safari/537.36"

// Options configures how the browser is started or reached.
type Options struct {
	// RemoteURL attaches to an already running browser's DevTools endpoint
	// (ws://host:port/...) instead of launching one.
	RemoteURL string
	// ExecPath overrides the browser binary chromedp would find on PATH.
	ExecPath        string
	Headless        bool
	IgnoreTLSErrors bool
	UserAgent       string
	WindowWidth     int
	WindowHeight    int
	// Args are extra command line switches, "--name" or "--name=value".
	Args []string
	// StartupTimeout bounds the responsiveness check after launch.
	StartupTimeout time.Duration
}

// Flag is one browser command line switch. A false value removes a switch set
// by chromedp's defaults.
type Flag struct {
	Name  string
	Value interface{}
}

// Flags assembles the switches for a launched browser: chromedp's defaults
// minus the automation banner, plus configuration and container-friendly
// sandbox settings on Linux.
func Flags(opts Options) []Flag {
	flags := []Flag{
		// Drop the "Chrome is being controlled by automated software" infobar
		// and the navigator.webdriver hint that goes with it.
		{Name: "enable-automation", Value: false},
		{Name: "disable-blink-features", Value: "AutomationControlled"},
		{Name: "headless", Value: opts.Headless},
		{Name: "disable-gpu", Value: opts.Headless},
		{Name: "disable-extensions", Value: true},
	}
	if opts.IgnoreTLSErrors {
		flags = append(flags,
			Flag{Name: "ignore-certificate-errors", Value: true},
			Flag{Name: "allow-insecure-localhost", Value: true},
		)
	}
	if opts.WindowWidth > 0 && opts.WindowHeight > 0 {
		flags = append(flags, Flag{Name: "window-size", Value: fmt.Sprintf("%d,%d", opts.WindowWidth, opts.WindowHeight)})
	}

	// Add custom arguments from config.yaml.
	for _, arg := range opts.Args {
		parts := strings.SplitN(arg, "=", 2)
		name := strings.TrimLeft(strings.TrimSpace(parts[0]), "-")
		if name == "" {
			continue
		}
		if len(parts) == 2 {
			flags = append(flags, Flag{Name: name, Value: parts[1]})
		} else {
			flags = append(flags, Flag{Name: name, Value: true})
		}
	}

	// Add flags required for running inside containers (e.g., Docker on Linux).
	if runtime.GOOS == "linux" {
		flags = append(flags,
			Flag{Name: "no-sandbox", Value: true},
			Flag{Name: "disable-dev-shm-usage", Value: true},
			Flag{Name: "disable-setuid-sandbox", Value: true},
		)
	}
	return flags
}

// allocatorOptions converts the configuration into chromedp exec allocator
// options layered over chromedp.DefaultExecAllocatorOptions.
func allocatorOptions(opts Options) []chromedp.ExecAllocatorOption {
	allocOpts := append([]chromedp.ExecAllocatorOption{}, chromedp.DefaultExecAllocatorOptions[:]...)
	for _, f := range Flags(opts) {
		allocOpts = append(allocOpts, chromedp.Flag(f.Name, f.Value))
	}

	ua := opts.UserAgent
	if ua == "" {
		ua = DefaultUserAgent
	}
	allocOpts = append(allocOpts, chromedp.UserAgent(ua))

	if opts.ExecPath != "" {
		allocOpts = append(allocOpts, chromedp.ExecPath(opts.ExecPath))
	}
	return allocOpts
}
