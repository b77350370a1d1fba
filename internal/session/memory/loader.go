package memory

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/net/html/charset"
)

// Request is a page load the driver wants performed: a navigation, a followed
// link or a submitted form.
type Request struct {
	Method  string
	URL     *url.URL
	Form    url.Values // POST body; GET forms are already encoded in URL
	Referer string
}

// Page is a loaded document.
type Page struct {
	// URL is the final URL after redirects. Empty means the request URL.
	URL  string
	HTML string
}

// Loader fetches pages for the memory driver.
type Loader interface {
	Load(ctx context.Context, req Request) (Page, error)
}

// LoaderFunc adapts a function to Loader.
type LoaderFunc func(ctx context.Context, req Request) (Page, error)

func (f LoaderFunc) Load(ctx context.Context, req Request) (Page, error) { return f(ctx, req) }

// Pages serves fixed HTML keyed by URL. A request whose full URL is not a key
// falls back to the URL without its query string, so submitted GET forms land
// on the page registered for the form's action.
type Pages map[string]string

func (p Pages) Load(ctx context.Context, req Request) (Page, error) {
	if err := ctx.Err(); err != nil {
		return Page{}, err
	}
	full := req.URL.String()
	if raw, ok := p[full]; ok {
		return Page{URL: full, HTML: raw}, nil
	}
	bare := *req.URL
	bare.RawQuery = ""
	bare.Fragment = ""
	if raw, ok := p[bare.String()]; ok {
		return Page{URL: full, HTML: raw}, nil
	}
	return Page{}, fmt.Errorf("no page registered for %s", full)
}

const maxBodyBytes = 16 << 20

// HTTPOptions configures an HTTPLoader.
type HTTPOptions struct {
	UserAgent       string
	Timeout         time.Duration
	IgnoreTLSErrors bool
}

// HTTPLoader fetches pages over the network with a cookie jar, the way a
// browser without a script engine would.
type HTTPLoader struct {
	client    *http.Client
	userAgent string
	logger    *zap.Logger
}

// NewHTTPLoader builds a loader with its own cookie jar.
func NewHTTPLoader(opts HTTPOptions, logger *zap.Logger) (*HTTPLoader, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create cookie jar: %w", err)
	}
	transport := http.DefaultTransport.(*http.Transport).Clone()
	if opts.IgnoreTLSErrors {
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true} //nolint:gosec // opt-in via config
	}
	return &HTTPLoader{
		client: &http.Client{
			Transport: &decompressingTransport{base: transport},
			Timeout:   opts.Timeout,
			Jar:       jar,
		},
		userAgent: opts.UserAgent,
		logger:    logger.Named("http_loader"),
	}, nil
}

// Load performs req, following redirects.
func (l *HTTPLoader) Load(ctx context.Context, req Request) (Page, error) {
	var body io.Reader
	method := req.Method
	if method == "" {
		method = http.MethodGet
	}
	if method == http.MethodPost {
		body = strings.NewReader(req.Form.Encode())
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, req.URL.String(), body)
	if err != nil {
		return Page{}, fmt.Errorf("failed to create request for '%s': %w", req.URL, err)
	}
	if l.userAgent != "" {
		httpReq.Header.Set("User-Agent", l.userAgent)
	}
	httpReq.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	if req.Referer != "" {
		httpReq.Header.Set("Referer", req.Referer)
	}
	if body != nil {
		httpReq.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}

	l.logger.Debug("Executing request", zap.String("method", method), zap.String("url", req.URL.String()))
	resp, err := l.client.Do(httpReq)
	if err != nil {
		return Page{}, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		l.logger.Warn("Request resulted in error status code", zap.Int("status", resp.StatusCode), zap.String("url", resp.Request.URL.String()))
	}

	page := Page{URL: resp.Request.URL.String()}
	contentType := resp.Header.Get("Content-Type")
	if contentType != "" && !strings.Contains(strings.ToLower(contentType), "html") {
		l.logger.Debug("Response is not HTML, loading an empty document.", zap.String("content_type", contentType))
		return page, nil
	}

	reader, err := charset.NewReader(io.LimitReader(resp.Body, maxBodyBytes), contentType)
	if err != nil {
		return Page{}, fmt.Errorf("failed to decode response from '%s': %w", page.URL, err)
	}
	raw, err := io.ReadAll(reader)
	if err != nil {
		return Page{}, fmt.Errorf("failed to read response from '%s': %w", page.URL, err)
	}
	page.HTML = string(raw)
	return page, nil
}

// CloseIdleConnections releases pooled connections.
func (l *HTTPLoader) CloseIdleConnections() {
	l.client.CloseIdleConnections()
}
