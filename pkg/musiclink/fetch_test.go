package musiclink

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

const testPage = `<html><head>
<meta property="og:title" content="Song">
</head><body>body</body></html>`

func newTestFetcher(t *testing.T) *Fetcher {
	t.Helper()
	fetcher, err := NewFetcher(FetcherConfig{Timeout: 5 * time.Second}, nil)
	if err != nil {
		t.Fatalf("NewFetcher() error = %v", err)
	}
	return fetcher
}

func TestFetcher_FollowsRedirects(t *testing.T) {
	t.Helper()

	headers := make(chan http.Header, 1)
	mux := http.NewServeMux()
	mux.HandleFunc("/short", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/middle", http.StatusFound)
	})
	mux.HandleFunc("/middle", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/album/1/track/2", http.StatusMovedPermanently)
	})
	mux.HandleFunc("/album/1/track/2", func(w http.ResponseWriter, r *http.Request) {
		headers <- r.Header.Clone()
		_, _ = fmt.Fprint(w, testPage)
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	result, err := newTestFetcher(t).Fetch(context.Background(), server.URL+"/short")
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	if want := server.URL + "/album/1/track/2"; result.FinalURL != want {
		t.Errorf("Fetch() FinalURL = %q, want %q", result.FinalURL, want)
	}
	if result.StatusCode != http.StatusOK {
		t.Errorf("Fetch() StatusCode = %d, want %d", result.StatusCode, http.StatusOK)
	}
	if !strings.Contains(result.Body, "og:title") {
		t.Errorf("Fetch() Body = %q, want meta tags", result.Body)
	}
	got := <-headers
	if gotUA := got.Get("User-Agent"); gotUA != DefaultUserAgent {
		t.Errorf("User-Agent = %q, want %q", gotUA, DefaultUserAgent)
	}
	if gotLang := got.Get("Accept-Language"); gotLang != DefaultAcceptLanguage {
		t.Errorf("Accept-Language = %q, want %q", gotLang, DefaultAcceptLanguage)
	}
}

func TestFetcher_HTTPError(t *testing.T) {
	t.Helper()

	server := httptest.NewServer(http.NotFoundHandler())
	defer server.Close()

	_, err := newTestFetcher(t).Fetch(context.Background(), server.URL+"/missing")
	var httpErr *HTTPError
	if !errors.As(err, &httpErr) {
		t.Fatalf("Fetch() error = %v, want *HTTPError", err)
	}
	if httpErr.StatusCode != http.StatusNotFound {
		t.Errorf("HTTPError.StatusCode = %d, want %d", httpErr.StatusCode, http.StatusNotFound)
	}
	if FailureKind(err) != FailureHTTP {
		t.Errorf("FailureKind() = %q, want %q", FailureKind(err), FailureHTTP)
	}
}

func TestFetcher_RedirectLoop(t *testing.T) {
	t.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc("/a", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/b", http.StatusFound)
	})
	mux.HandleFunc("/b", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/a", http.StatusFound)
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	_, err := newTestFetcher(t).Fetch(context.Background(), server.URL+"/a")
	var loopErr *RedirectLoopError
	if !errors.As(err, &loopErr) {
		t.Fatalf("Fetch() error = %v, want *RedirectLoopError", err)
	}
	if !loopErr.Revisit {
		t.Error("RedirectLoopError.Revisit = false, want true")
	}
	if !errors.Is(err, ErrTooManyRedirects) {
		t.Error("errors.Is(err, ErrTooManyRedirects) = false, want true")
	}
}

func TestFetcher_RedirectCap(t *testing.T) {
	t.Helper()

	var hops atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := hops.Add(1)
		http.Redirect(w, r, fmt.Sprintf("/hop/%d", n), http.StatusFound)
	}))
	defer server.Close()

	_, err := newTestFetcher(t).Fetch(context.Background(), server.URL+"/start")
	if FailureKind(err) != FailureRedirectLoop {
		t.Fatalf("FailureKind() = %q, want %q (err %v)", FailureKind(err), FailureRedirectLoop, err)
	}
	if want := int32(DefaultMaxRedirects + 1); hops.Load() != want {
		t.Errorf("server saw %d requests, want %d", hops.Load(), want)
	}
}

func TestFetcher_StopsAtAppScheme(t *testing.T) {
	t.Helper()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Location", "itms-apps://apps.apple.com/app/id1")
		w.WriteHeader(http.StatusFound)
		_, _ = fmt.Fprint(w, testPage)
	}))
	defer server.Close()

	result, err := newTestFetcher(t).Fetch(context.Background(), server.URL+"/app")
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	if result.FinalURL != server.URL+"/app" {
		t.Errorf("Fetch() FinalURL = %q, want %q", result.FinalURL, server.URL+"/app")
	}
	if result.StatusCode != http.StatusFound {
		t.Errorf("Fetch() StatusCode = %d, want %d", result.StatusCode, http.StatusFound)
	}
}

func TestFetcher_Captcha(t *testing.T) {
	t.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc("/album/1", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/showcaptcha?retpath=x", http.StatusFound)
	})
	mux.HandleFunc("/showcaptcha", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = fmt.Fprint(w, "<html></html>")
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	_, err := newTestFetcher(t).Fetch(context.Background(), server.URL+"/album/1")
	var captchaErr *CaptchaError
	if !errors.As(err, &captchaErr) {
		t.Fatalf("Fetch() error = %v, want *CaptchaError", err)
	}
	if !strings.Contains(captchaErr.URL, "showcaptcha") {
		t.Errorf("CaptchaError.URL = %q, want captcha URL", captchaErr.URL)
	}
}

func TestFetcher_NetworkError(t *testing.T) {
	t.Helper()

	// Grab a free port and close it so the connection is refused.
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("net.Listen() error = %v", err)
	}
	addr := listener.Addr().String()
	_ = listener.Close()

	url := "http://" + addr + "/track/1"
	_, err = newTestFetcher(t).Fetch(context.Background(), url)
	var netErr *NetworkError
	if !errors.As(err, &netErr) {
		t.Fatalf("Fetch() error = %v, want *NetworkError", err)
	}
	if netErr.URL != url {
		t.Errorf("NetworkError.URL = %q, want %q", netErr.URL, url)
	}
	if FailureKind(err) != FailureNetwork {
		t.Errorf("FailureKind() = %q, want %q", FailureKind(err), FailureNetwork)
	}
}

func TestFetcher_UnsupportedScheme(t *testing.T) {
	t.Helper()

	_, err := newTestFetcher(t).Fetch(context.Background(), "ftp://example.com/file")
	if FailureKind(err) != FailureNetwork {
		t.Errorf("FailureKind() = %q, want %q", FailureKind(err), FailureNetwork)
	}
}

func TestNewFetcher_InvalidProxy(t *testing.T) {
	t.Helper()

	_, err := NewFetcher(FetcherConfig{Proxies: ProxyConfig{VK: "://bad"}}, nil)
	if err == nil {
		t.Error("NewFetcher() error = nil, want invalid proxy error")
	}
}

func TestFetcher_ProxyFor(t *testing.T) {
	t.Helper()

	fetcher, err := NewFetcher(FetcherConfig{Proxies: ProxyConfig{
		Default: "http://default:8080",
		VK:      "http://vk-proxy:3128",
	}}, nil)
	if err != nil {
		t.Fatalf("NewFetcher() error = %v", err)
	}

	tests := []struct {
		name     string
		url      string
		expected string
	}{
		{name: "VK uses its own proxy", url: "https://vk.com/durov", expected: "vk-proxy:3128"},
		{name: "Yandex falls back to default", url: "https://music.yandex.ru/album/1", expected: "default:8080"},
		{name: "Unknown host is direct", url: "https://example.com/", expected: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Helper()
			req := httptest.NewRequest(http.MethodGet, tt.url, http.NoBody)
			proxy, err := fetcher.proxyFor(req)
			if err != nil {
				t.Fatalf("proxyFor() error = %v", err)
			}
			got := ""
			if proxy != nil {
				got = proxy.Host
			}
			if got != tt.expected {
				t.Errorf("proxyFor(%q) = %q, want %q", tt.url, got, tt.expected)
			}
		})
	}
}

func TestReadHead(t *testing.T) {
	t.Helper()

	head := "<html><head><title>x</title></head>"
	body := head + strings.Repeat("<p>filler</p>", 10000) + "</html>"

	got, err := readHead(strings.NewReader(body), DefaultMaxBodyBytes)
	if err != nil {
		t.Fatalf("readHead() error = %v", err)
	}
	if !strings.Contains(string(got), "</head>") {
		t.Error("readHead() missing </head>")
	}
	if len(got) >= len(body) {
		t.Errorf("readHead() read %d bytes, want less than %d", len(got), len(body))
	}

	limited, err := readHead(strings.NewReader(strings.Repeat("a", 5000)), 100)
	if err != nil {
		t.Fatalf("readHead() error = %v", err)
	}
	if len(limited) != 100 {
		t.Errorf("readHead() read %d bytes, want 100", len(limited))
	}
}
