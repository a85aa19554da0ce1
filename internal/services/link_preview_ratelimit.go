package services

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// HostRateLimiter throttles outbound preview fetches globally and per host
type HostRateLimiter struct {
	global  *rate.Limiter
	perHost sync.Map // map[string]*rate.Limiter
}

// NewHostRateLimiter creates a limiter allowing globalRate requests per second overall
func NewHostRateLimiter(globalRate float64) *HostRateLimiter {
	return &HostRateLimiter{
		global: rate.NewLimiter(rate.Limit(globalRate), int(globalRate*2)),
	}
}

// Wait blocks until both the global and the host limiter admit a request
func (rl *HostRateLimiter) Wait(ctx context.Context, host string, crawlDelay time.Duration) error {
	if err := rl.global.Wait(ctx); err != nil {
		return err
	}
	return rl.hostLimiter(host, crawlDelay).Wait(ctx)
}

func (rl *HostRateLimiter) hostLimiter(host string, crawlDelay time.Duration) *rate.Limiter {
	if limiter, ok := rl.perHost.Load(host); ok {
		return limiter.(*rate.Limiter)
	}

	requestsPerSecond := 1.0 / crawlDelay.Seconds()
	if requestsPerSecond > 5.0 {
		requestsPerSecond = 5.0
	}
	if requestsPerSecond < 0.2 {
		requestsPerSecond = 0.2
	}

	// Burst covers the links of one task hitting the same host
	actual, _ := rl.perHost.LoadOrStore(host, rate.NewLimiter(rate.Limit(requestsPerSecond), 5))
	return actual.(*rate.Limiter)
}
