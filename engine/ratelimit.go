package engine

import (
	"context"
	"net/url"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// RateLimiterService spaces out requests per host so sources are not
// hammered. Hosts without an explicit limit share the default interval.
type RateLimiterService struct {
	limiters        map[string]*rate.Limiter
	defaultInterval time.Duration
	mu              sync.Mutex
}

// NewRateLimiterService creates a rate limiter service with a default
// per-host interval
func NewRateLimiterService(defaultInterval time.Duration) *RateLimiterService {
	return &RateLimiterService{
		limiters:        make(map[string]*rate.Limiter),
		defaultInterval: defaultInterval,
	}
}

// SetLimit sets the minimum interval between requests to a host
func (r *RateLimiterService) SetLimit(host string, interval time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.limiters[host] = rate.NewLimiter(rate.Every(interval), 1)
}

func (r *RateLimiterService) limiterFor(host string) *rate.Limiter {
	r.mu.Lock()
	defer r.mu.Unlock()
	if lim, ok := r.limiters[host]; ok {
		return lim
	}
	lim := rate.NewLimiter(rate.Every(r.defaultInterval), 1)
	r.limiters[host] = lim
	return lim
}

// Wait blocks until the host's limiter allows another request or the
// context is cancelled
func (r *RateLimiterService) Wait(ctx context.Context, host string) error {
	return r.limiterFor(host).Wait(ctx)
}

// WaitURL waits on the limiter for the URL's host. Unparseable URLs
// fall through to the default bucket.
func (r *RateLimiterService) WaitURL(ctx context.Context, rawURL string) error {
	host := ""
	if u, err := url.Parse(rawURL); err == nil {
		host = u.Hostname()
	}
	return r.Wait(ctx, host)
}
