package musiclink

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"songmeta/internal/store"
)

const (
	// DefaultUserAgent makes music services serve their link-preview markup.
	DefaultUserAgent = "TelegramBot (like TwitterBot)"
	// DefaultAcceptLanguage matches the catalogs' primary locale.
	DefaultAcceptLanguage = "ru,en;q=0.9"
	// DefaultFetchTimeout is the default timeout for page requests.
	DefaultFetchTimeout = 10 * time.Second
	// DefaultMaxRedirects is the maximum number of HTTP redirects to follow.
	DefaultMaxRedirects = 10
	// DefaultMaxBodyBytes limits how much of a page is read; meta tags live in the head.
	DefaultMaxBodyBytes = 1_000_000

	readChunkSize = 8192
	// visitedFalsePositiveRate is the Bloom filter rate for the per-fetch visited set.
	visitedFalsePositiveRate = 0.001
	// captchaMarker appears in the URL of Yandex's bot-check interstitial.
	captchaMarker = "showcaptcha"
)

var headCloseTag = []byte("</head")

// ProxyConfig selects an outbound proxy per service. Empty entries fall back to Default,
// and an empty Default means a direct connection.
type ProxyConfig struct {
	Default string
	Yandex  string
	VK      string
	MTS     string
}

// FetcherConfig holds page fetcher settings.
type FetcherConfig struct {
	Timeout        time.Duration
	MaxRedirects   int
	MaxBodyBytes   int64
	UserAgent      string
	AcceptLanguage string
	Proxies        ProxyConfig
}

// DefaultFetcherConfig returns the fetcher defaults.
func DefaultFetcherConfig() FetcherConfig {
	return FetcherConfig{
		Timeout:        DefaultFetchTimeout,
		MaxRedirects:   DefaultMaxRedirects,
		MaxBodyBytes:   DefaultMaxBodyBytes,
		UserAgent:      DefaultUserAgent,
		AcceptLanguage: DefaultAcceptLanguage,
	}
}

// Fetcher performs a single GET with redirect following. It keeps no state between calls.
type Fetcher struct {
	client  *http.Client
	config  FetcherConfig
	proxies map[Service]*url.URL
	logger  *zap.Logger
}

// NewFetcher creates a page fetcher. Zero config values take the defaults.
func NewFetcher(config FetcherConfig, logger *zap.Logger) (*Fetcher, error) {
	defaults := DefaultFetcherConfig()
	if config.Timeout <= 0 {
		config.Timeout = defaults.Timeout
	}
	if config.MaxRedirects <= 0 {
		config.MaxRedirects = defaults.MaxRedirects
	}
	if config.MaxBodyBytes <= 0 {
		config.MaxBodyBytes = defaults.MaxBodyBytes
	}
	if config.UserAgent == "" {
		config.UserAgent = defaults.UserAgent
	}
	if config.AcceptLanguage == "" {
		config.AcceptLanguage = defaults.AcceptLanguage
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	proxies, err := parseProxies(config.Proxies)
	if err != nil {
		return nil, err
	}

	f := &Fetcher{
		config:  config,
		proxies: proxies,
		logger:  logger,
	}

	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.Proxy = f.proxyFor
	f.client = &http.Client{
		Timeout:   config.Timeout,
		Transport: transport,
	}

	return f, nil
}

func parseProxies(cfg ProxyConfig) (map[Service]*url.URL, error) {
	proxies := make(map[Service]*url.URL)
	entries := map[Service]string{
		ServiceYandex: cfg.Yandex,
		ServiceVK:     cfg.VK,
		ServiceMTS:    cfg.MTS,
	}
	for service, raw := range entries {
		if raw == "" {
			raw = cfg.Default
		}
		if raw == "" {
			continue
		}
		u, err := url.Parse(raw)
		if err != nil || u.Host == "" {
			return nil, fmt.Errorf("invalid %s proxy URL %q", service, raw)
		}
		proxies[service] = u
	}
	return proxies, nil
}

// proxyFor routes each hop through the proxy configured for its service.
// Routing is by host name so short links and landing pages without ids use the
// same proxy as the catalog pages they lead to.
func (f *Fetcher) proxyFor(req *http.Request) (*url.URL, error) {
	if proxy, ok := f.proxies[serviceForHost(req.URL.Hostname())]; ok {
		return proxy, nil
	}
	return nil, nil
}

func serviceForHost(host string) Service {
	host = strings.ToLower(host)
	for _, rule := range classifyRules {
		if rule.host(host) {
			return rule.service
		}
	}
	return ServiceUnknown
}

// Fetch downloads the page head, following redirects, and reports the final URL.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (*FetchResult, error) {
	u, ok := parseLinkURL(rawURL)
	if !ok || (u.Scheme != "http" && u.Scheme != "https") {
		return nil, &NetworkError{URL: rawURL, Err: fmt.Errorf("unsupported URL %q", rawURL)}
	}
	pageURL := u.String()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, http.NoBody)
	if err != nil {
		return nil, &NetworkError{URL: rawURL, Err: err}
	}
	req.Header.Set("User-Agent", f.config.UserAgent)
	req.Header.Set("Accept-Language", f.config.AcceptLanguage)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")

	visited := store.NewVisitedSet(f.config.MaxRedirects+1, visitedFalsePositiveRate)
	visited.Visit(pageURL)

	client := *f.client
	client.CheckRedirect = f.checkRedirect(visited)

	resp, err := client.Do(req)
	if err != nil {
		return nil, f.wrapDoError(rawURL, err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	finalURL := resp.Request.URL.String()
	f.logger.Debug("Fetched page",
		zap.String("url", rawURL),
		zap.String("final_url", finalURL),
		zap.Int("status", resp.StatusCode))

	if strings.Contains(finalURL, captchaMarker) {
		return nil, &CaptchaError{URL: finalURL}
	}
	if resp.StatusCode >= http.StatusBadRequest {
		return nil, &HTTPError{URL: finalURL, StatusCode: resp.StatusCode}
	}

	body, err := readHead(resp.Body, f.config.MaxBodyBytes)
	if err != nil {
		return nil, &NetworkError{URL: rawURL, Attempted: finalURL, Err: fmt.Errorf("failed to read response body: %w", err)}
	}

	return &FetchResult{
		FinalURL:   finalURL,
		StatusCode: resp.StatusCode,
		Body:       string(body),
	}, nil
}

// checkRedirect caps the chain, rejects revisits and stops at app-only schemes
// (itms-apps://, intent://), keeping the response that issued them.
func (f *Fetcher) checkRedirect(visited *store.VisitedSet) func(*http.Request, []*http.Request) error {
	return func(req *http.Request, via []*http.Request) error {
		if req.URL.Scheme != "http" && req.URL.Scheme != "https" {
			f.logger.Debug("Stopping at non-HTTP redirect", zap.String("location", req.URL.String()))
			return http.ErrUseLastResponse
		}

		last := via[len(via)-1].URL.String()
		if len(via) > f.config.MaxRedirects {
			return &RedirectLoopError{URL: last, Hops: len(via)}
		}
		if !visited.Visit(req.URL.String()) {
			return &RedirectLoopError{URL: req.URL.String(), Hops: len(via), Revisit: true}
		}
		return nil
	}
}

func (f *Fetcher) wrapDoError(rawURL string, err error) error {
	var loopErr *RedirectLoopError
	if errors.As(err, &loopErr) {
		return loopErr
	}

	attempted := ""
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		attempted = urlErr.URL
	}
	return &NetworkError{URL: rawURL, Attempted: attempted, Err: err}
}

// readHead reads until the end of <head> or maxBytes, whichever comes first.
func readHead(r io.Reader, maxBytes int64) ([]byte, error) {
	var buf bytes.Buffer
	chunk := make([]byte, readChunkSize)
	limited := io.LimitReader(r, maxBytes)

	for {
		n, err := limited.Read(chunk)
		if n > 0 {
			// Rescan a tag-sized overlap so a split "</head" is still found.
			start := buf.Len() - len(headCloseTag)
			if start < 0 {
				start = 0
			}
			buf.Write(chunk[:n])
			if bytes.Contains(bytes.ToLower(buf.Bytes()[start:]), headCloseTag) {
				return buf.Bytes(), nil
			}
		}
		if errors.Is(err, io.EOF) {
			return buf.Bytes(), nil
		}
		if err != nil {
			return nil, err
		}
	}
}
