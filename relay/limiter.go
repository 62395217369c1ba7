package relay

import (
	"sync"
	"time"

	"github.com/maypok86/otter/v2"
	"golang.org/x/time/rate"
)

// Limits bound what a single remote address may write.
type Limits struct {
	WritesPerSecond float64       `validate:"gt=0"`
	Burst           int           `validate:"gt=0"`
	Idle            time.Duration `validate:"gt=0"`
}

func DefaultLimits() Limits {
	return Limits{WritesPerSecond: 5, Burst: 10, Idle: 10 * time.Minute}
}

// addressLimiter keeps one token bucket per remote address, so reconnecting
// does not refill it. Buckets idle for Limits.Idle are evicted.
type addressLimiter struct {
	mu     sync.Mutex
	limits Limits
	cache  *otter.Cache[string, *rate.Limiter]
}

func newAddressLimiter(limits Limits) *addressLimiter {
	return &addressLimiter{
		limits: limits,
		cache: otter.Must(&otter.Options[string, *rate.Limiter]{
			InitialCapacity:  128,
			ExpiryCalculator: otter.ExpiryAccessing[string, *rate.Limiter](limits.Idle),
		}),
	}
}

func (a *addressLimiter) Allow(address string) bool {
	return a.get(address).Allow()
}

func (a *addressLimiter) get(address string) *rate.Limiter {
	a.mu.Lock()
	defer a.mu.Unlock()
	if limiter, ok := a.cache.GetIfPresent(address); ok {
		return limiter
	}
	limiter := rate.NewLimiter(rate.Limit(a.limits.WritesPerSecond), a.limits.Burst)
	a.cache.Set(address, limiter)
	return limiter
}
