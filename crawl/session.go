package crawl

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/poiesic/finrag/core"
	"golang.org/x/net/html/charset"
)

const (
	maxRedirects = 5
	maxPageBytes = 8 << 20
)

// ErrBaseSiteRequired is returned when a Session is created without a base site.
var ErrBaseSiteRequired = errors.New("base site required")

// NewHTTPClient returns the client used for listing, report and document requests.
// With insecure set, TLS certificates are not verified.
func NewHTTPClient(timeout time.Duration, insecure bool) *http.Client {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	if insecure {
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true} //nolint:gosec
	}
	return &http.Client{
		Timeout:   timeout,
		Transport: transport,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= maxRedirects {
				return fmt.Errorf("stopped after %d redirects", maxRedirects)
			}
			return nil
		},
	}
}

// Session holds the HTTP settings shared by the Crawler and the Resolver.
type Session struct {
	client    *http.Client
	userAgent string
	baseSite  *url.URL
	logger    *slog.Logger
}

// Option configures a Session.
type Option func(*Session) error

// WithHTTPClient sets the HTTP client.
// Default is NewHTTPClient(60s, false).
func WithHTTPClient(client *http.Client) Option {
	return func(s *Session) error {
		if client == nil {
			return errors.New("http client cannot be nil")
		}
		s.client = client
		return nil
	}
}

// WithUserAgent sets the User-Agent header sent with every request.
func WithUserAgent(agent string) Option {
	return func(s *Session) error {
		s.userAgent = agent
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(s *Session) error {
		if logger == nil {
			logger = slog.Default()
		}
		s.logger = logger
		return nil
	}
}

// NewSession creates a session rooted at baseSite, which is used to resolve
// relative links found on listing pages.
func NewSession(baseSite string, opts ...Option) (*Session, error) {
	if strings.TrimSpace(baseSite) == "" {
		return nil, ErrBaseSiteRequired
	}
	base, err := url.Parse(baseSite)
	if err != nil {
		return nil, fmt.Errorf("parsing base site: %w", err)
	}
	if !base.IsAbs() {
		return nil, fmt.Errorf("base site %q must be absolute", baseSite)
	}

	s := &Session{
		client:   NewHTTPClient(60*time.Second, false),
		baseSite: base,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// Client returns the session's HTTP client.
func (s *Session) Client() *http.Client {
	return s.client
}

// UserAgent returns the configured User-Agent, possibly empty.
func (s *Session) UserAgent() string {
	return s.userAgent
}

// get issues a GET and returns the response when the status is 200.
// Every failure wraps core.ErrFetchFailed.
func (s *Session) get(ctx context.Context, rawURL string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: build request: %w", core.ErrFetchFailed, err)
	}
	if s.userAgent != "" {
		req.Header.Set("User-Agent", s.userAgent)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", core.ErrFetchFailed, err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("%w: HTTP %d for %s", core.ErrFetchFailed, resp.StatusCode, rawURL)
	}
	return resp, nil
}

// document fetches rawURL and parses it as HTML, decoding the body to UTF-8
// according to its declared charset.
func (s *Session) document(ctx context.Context, rawURL string) (*goquery.Document, error) {
	resp, err := s.get(ctx, rawURL)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var body io.Reader = resp.Body
	if utf8Reader, err := charset.NewReader(resp.Body, resp.Header.Get("Content-Type")); err == nil {
		body = utf8Reader
	}

	doc, err := goquery.NewDocumentFromReader(io.LimitReader(body, maxPageBytes))
	if err != nil {
		return nil, fmt.Errorf("%w: reading %s: %w", core.ErrFetchFailed, rawURL, err)
	}
	return doc, nil
}

// resolve turns href into an absolute URL relative to base.
func resolve(base *url.URL, href string) (string, error) {
	ref, err := url.Parse(strings.TrimSpace(href))
	if err != nil {
		return "", err
	}
	return base.ResolveReference(ref).String(), nil
}
