package engine

import (
	"context"
	"net/http"
	"time"
)

// FetchOptions selects the retrieval mode and per-request overrides for a
// single page fetch.
type FetchOptions struct {
	Rendered bool // drive the headless browser instead of plain HTTP
	Headers  http.Header
	Timeout  time.Duration
	Retries  int
}

// FetchOptionsFor derives fetch options from a source configuration.
func FetchOptionsFor(cfg *SourceConfig) FetchOptions {
	opts := FetchOptions{
		Rendered: cfg.UseRendered,
		Retries:  cfg.MaxRetries,
	}
	if cfg.TimeoutSeconds > 0 {
		opts.Timeout = time.Duration(cfg.TimeoutSeconds) * time.Second
	}
	if len(cfg.Headers) > 0 {
		h := http.Header{}
		for k, v := range cfg.Headers {
			h.Set(k, v)
		}
		opts.Headers = h
	}
	return opts
}

// FetchPage retrieves a page in the mode the source demands: plain HTTP
// for static sites, the rendered browser for JavaScript-dependent ones.
func (e *Engine) FetchPage(ctx context.Context, pageURL string, opts FetchOptions) (string, error) {
	if opts.Rendered {
		return e.Render.FetchRendered(ctx, pageURL, opts.Timeout)
	}
	return e.HTTP.FetchString(ctx, pageURL, RequestOptions{
		Headers: opts.Headers,
		Timeout: opts.Timeout,
		Retries: opts.Retries,
	})
}
