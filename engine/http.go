package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"Folium/errors"
)

// defaultUserAgent is sent when neither the caller nor the source config
// provides one. Some sources block obvious non-browser clients.
const defaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36"

// rawViewPrefixes rewrites share URLs of paste services to their raw text
// view, keyed by host. pastebin.com/<id> serves an HTML page; the /raw/
// path serves the plain dump the adapters actually want.
var rawViewPrefixes = map[string]string{
	"pastebin.com": "/raw",
}

// HTTPService fetches pages over plain HTTP with retries, typed failures
// and per-host politeness. Pages that need JavaScript to produce their
// content go through RenderService instead.
type HTTPService struct {
	Client  *http.Client
	Logger  *LoggerService
	Limiter *RateLimiterService

	DefaultHeaders http.Header
	DefaultTimeout time.Duration
	DefaultRetries int
}

// RequestOptions overrides the service defaults for a single request.
type RequestOptions struct {
	Headers http.Header   // merged over the default headers
	Timeout time.Duration // per-attempt deadline; 0 keeps the default
	Retries int           // total attempts; 0 keeps the default
}

// NewHTTPService builds the plain fetcher. The transport keeps a small
// keep-alive pool per host so chapter crawls reuse connections without
// monopolizing a source.
func NewHTTPService(logger *LoggerService, limiter *RateLimiterService, timeout time.Duration, retries int) *HTTPService {
	headers := http.Header{}
	headers.Set("User-Agent", defaultUserAgent)
	headers.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	headers.Set("Accept-Language", "en-US,en;q=0.9")

	return &HTTPService{
		Client: &http.Client{
			Transport: &http.Transport{
				MaxConnsPerHost:     10,
				MaxIdleConnsPerHost: 5,
			},
		},
		Logger:         logger,
		Limiter:        limiter,
		DefaultHeaders: headers,
		DefaultTimeout: timeout,
		DefaultRetries: retries,
	}
}

// RewriteRawURL applies the raw-view rule for the URL's host, when one
// exists. URLs already pointing at a raw view pass through unchanged.
func RewriteRawURL(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}
	host := strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
	prefix, ok := rawViewPrefixes[host]
	if !ok || strings.HasPrefix(u.Path, prefix+"/") {
		return rawURL
	}
	u.Path = prefix + u.Path
	return u.String()
}

// FetchWithRetries performs a GET with the retry policy: transient
// failures (network errors, timeouts, 5xx responses) retry with a
// growing pause, 4xx responses fail immediately. The caller owns the
// response body.
func (h *HTTPService) FetchWithRetries(ctx context.Context, rawURL string, opts RequestOptions) (*http.Response, error) {
	fetchURL := RewriteRawURL(rawURL)
	if fetchURL != rawURL && h.Logger != nil {
		h.Logger.Debug("Rewrote %s to raw view %s", rawURL, fetchURL)
	}

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = h.DefaultTimeout
	}
	attempts := opts.Retries
	if attempts <= 0 {
		attempts = h.DefaultRetries
	}
	if attempts <= 0 {
		attempts = 1
	}

	var lastErr *errors.Error
	for attempt := 0; attempt < attempts; attempt++ {
		if h.Limiter != nil {
			if err := h.Limiter.WaitURL(ctx, fetchURL); err != nil {
				return nil, errors.Wrap(errors.KindFetchNetwork, err, "rate limiter interrupted")
			}
		}

		resp, err := h.fetchOnce(ctx, fetchURL, opts.Headers, timeout)
		if err == nil {
			return resp, nil
		}

		lastErr = err
		if !retryable(err) || ctx.Err() != nil {
			return nil, err
		}

		if attempt < attempts-1 {
			backoff := time.Duration(attempt+1) * time.Second
			if h.Logger != nil {
				h.Logger.Debug("Fetch attempt %d/%d for %s failed (%v), retrying in %s", attempt+1, attempts, fetchURL, err, backoff)
			}
			select {
			case <-ctx.Done():
				return nil, errors.Wrap(errors.KindFetchTimeout, ctx.Err(), "fetch cancelled during backoff")
			case <-time.After(backoff):
			}
		}
	}

	lastErr.Msg = fmt.Sprintf("failed after %d attempts: %s", attempts, lastErr.Msg)
	return nil, lastErr
}

func (h *HTTPService) fetchOnce(ctx context.Context, fetchURL string, headers http.Header, timeout time.Duration) (*http.Response, *errors.Error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fetchURL, nil)
	if err != nil {
		return nil, errors.Wrap(errors.KindFetchNetwork, err, "invalid request for %s", fetchURL)
	}

	for k, v := range h.DefaultHeaders {
		req.Header[k] = v
	}
	for k, v := range headers {
		req.Header[k] = v
	}

	// Shallow copy so the per-attempt deadline covers the body read too,
	// while the keep-alive transport stays shared.
	client := *h.Client
	client.Timeout = timeout

	resp, err := client.Do(req)
	if err != nil {
		return nil, classifyTransportError(err, fetchURL)
	}

	if resp.StatusCode >= 400 {
		_ = resp.Body.Close()
		kind := errors.KindFetchHTTP
		e := errors.New(kind, "unexpected status %s", resp.Status)
		e.URL = fetchURL
		e.Status = resp.StatusCode
		return nil, e
	}

	return resp, nil
}

// retryable reports whether a classified fetch error is worth another
// attempt. 4xx statuses are the caller's problem, not the network's.
func retryable(e *errors.Error) bool {
	switch e.Kind {
	case errors.KindFetchTimeout, errors.KindFetchNetwork:
		return true
	case errors.KindFetchHTTP:
		return e.Status >= 500
	default:
		return false
	}
}

func classifyTransportError(err error, fetchURL string) *errors.Error {
	kind := errors.KindFetchNetwork
	var nerr net.Error
	if errors.As(err, &nerr) && nerr.Timeout() {
		kind = errors.KindFetchTimeout
	} else if errors.Is(err, context.DeadlineExceeded) {
		kind = errors.KindFetchTimeout
	}
	e := errors.Wrap(kind, err, "request failed")
	e.URL = fetchURL
	return e
}

// FetchString fetches a page and returns its body as a string.
func (h *HTTPService) FetchString(ctx context.Context, rawURL string, opts RequestOptions) (string, error) {
	resp, err := h.FetchWithRetries(ctx, rawURL, opts)
	if err != nil {
		return "", err
	}
	defer func() {
		if cerr := resp.Body.Close(); cerr != nil && h.Logger != nil {
			h.Logger.Debug("Failed to close response body: %v", cerr)
		}
	}()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		e := errors.Wrap(errors.KindFetchNetwork, err, "failed to read response")
		e.URL = rawURL
		return "", e
	}
	return string(data), nil
}

// FetchBytes fetches a binary resource, such as a comic page image.
func (h *HTTPService) FetchBytes(ctx context.Context, rawURL string, opts RequestOptions) ([]byte, error) {
	resp, err := h.FetchWithRetries(ctx, rawURL, opts)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		e := errors.Wrap(errors.KindFetchNetwork, err, "failed to read response")
		e.URL = rawURL
		return nil, e
	}
	return data, nil
}

// FetchJSON fetches and decodes a JSON endpoint into result.
func (h *HTTPService) FetchJSON(ctx context.Context, rawURL string, result interface{}, opts RequestOptions) error {
	resp, err := h.FetchWithRetries(ctx, rawURL, opts)
	if err != nil {
		return err
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
		e := errors.Wrap(errors.KindFetchNetwork, err, "failed to decode response")
		e.URL = rawURL
		return e
	}
	return nil
}
