package musiclink

import (
	"errors"
	"fmt"
)

var (
	// ErrTooManyRedirects is returned when too many redirects are encountered.
	ErrTooManyRedirects = errors.New("too many redirects")
	// ErrVKNotFound is returned when the VK API answers without the requested item.
	ErrVKNotFound = errors.New("vk: item not found")
)

// Failure kinds reported by ResolveError.Kind.
const (
	FailureNetwork      = "network"
	FailureHTTP         = "http"
	FailureRedirectLoop = "redirect_loop"
	FailureCaptcha      = "captcha"
	FailureUnknown      = "unknown"
)

// NetworkError reports a connection, DNS or timeout failure.
type NetworkError struct {
	URL       string // URL the caller asked for.
	Attempted string // Hop that failed; differs from URL after redirects.
	Err       error
}

func (e *NetworkError) Error() string {
	if e.Attempted != "" && e.Attempted != e.URL {
		return fmt.Sprintf("network error fetching %s (at %s): %v", e.URL, e.Attempted, e.Err)
	}
	return fmt.Sprintf("network error fetching %s: %v", e.URL, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// HTTPError reports a non-success final status.
type HTTPError struct {
	URL        string // Final URL that returned the status.
	StatusCode int
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("HTTP %d from %s", e.StatusCode, e.URL)
}

// RedirectLoopError reports a redirect chain that revisited a URL or exceeded the hop cap.
type RedirectLoopError struct {
	URL     string // Last URL reached before giving up.
	Hops    int
	Revisit bool // True when the chain came back to an already visited URL.
}

func (e *RedirectLoopError) Error() string {
	if e.Revisit {
		return fmt.Sprintf("redirect loop after %d hops at %s", e.Hops, e.URL)
	}
	return fmt.Sprintf("%v: %d hops, last %s", ErrTooManyRedirects, e.Hops, e.URL)
}

func (e *RedirectLoopError) Unwrap() error { return ErrTooManyRedirects }

// CaptchaError reports that the service answered with a bot-check page.
type CaptchaError struct {
	URL string
}

func (e *CaptchaError) Error() string {
	return fmt.Sprintf("captcha page returned at %s; open the link in a browser, solve it and retry", e.URL)
}

// ResolveError is returned by Manager.Resolve when the page could not be fetched.
type ResolveError struct {
	OriginalURL string
	FinalURL    string // Last URL attempted, empty when the first request failed.
	Err         error
}

func (e *ResolveError) Error() string {
	if e.FinalURL != "" && e.FinalURL != e.OriginalURL {
		return fmt.Sprintf("resolve %s (final %s) failed [%s]: %v", e.OriginalURL, e.FinalURL, e.Kind(), e.Err)
	}
	return fmt.Sprintf("resolve %s failed [%s]: %v", e.OriginalURL, e.Kind(), e.Err)
}

func (e *ResolveError) Unwrap() error { return e.Err }

// Kind names the failure class of the underlying fetch error.
func (e *ResolveError) Kind() string {
	return FailureKind(e.Err)
}

// FailureKind classifies a fetch error.
func FailureKind(err error) string {
	var (
		netErr     *NetworkError
		httpErr    *HTTPError
		loopErr    *RedirectLoopError
		captchaErr *CaptchaError
	)
	switch {
	case errors.As(err, &loopErr):
		return FailureRedirectLoop
	case errors.As(err, &captchaErr):
		return FailureCaptcha
	case errors.As(err, &httpErr):
		return FailureHTTP
	case errors.As(err, &netErr):
		return FailureNetwork
	default:
		return FailureUnknown
	}
}

// attemptedURL extracts the last URL a fetch error refers to.
func attemptedURL(err error) string {
	var (
		netErr     *NetworkError
		httpErr    *HTTPError
		loopErr    *RedirectLoopError
		captchaErr *CaptchaError
	)
	switch {
	case errors.As(err, &loopErr):
		return loopErr.URL
	case errors.As(err, &captchaErr):
		return captchaErr.URL
	case errors.As(err, &httpErr):
		return httpErr.URL
	case errors.As(err, &netErr):
		return netErr.Attempted
	default:
		return ""
	}
}

// VKAPIError reports a failed VK API call.
type VKAPIError struct {
	Method     string
	Code       int    // VK error_code, zero for transport-level failures.
	Message    string // VK error_msg.
	StatusCode int    // HTTP status when the call did not reach the API.
}

func (e *VKAPIError) Error() string {
	if e.Code == 0 && e.StatusCode != 0 {
		return fmt.Sprintf("vk %s: HTTP %d", e.Method, e.StatusCode)
	}
	return fmt.Sprintf("vk %s: error %d: %s", e.Method, e.Code, e.Message)
}

// IsAuthError reports whether the failure is about the token or permissions
// (authorization failed, access denied, private playlist).
func (e *VKAPIError) IsAuthError() bool {
	switch e.Code {
	case 5, 15, 200, 201, 203:
		return true
	}
	return e.StatusCode == 401 || e.StatusCode == 403
}
