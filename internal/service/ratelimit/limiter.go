package ratelimit

import (
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/time/rate"
)

// Limiter hands out one token bucket per client key. Buckets live in a
// bounded LRU so an address scan cannot grow memory without limit.
type Limiter struct {
	buckets *lru.Cache[string, *rate.Limiter]
	rps     rate.Limit
	burst   int
	now     func() time.Time
}

// New creates a limiter allowing rps requests per second with the given burst
// per key, tracking at most maxKeys keys.
func New(rps float64, burst, maxKeys int) (*Limiter, error) {
	if maxKeys <= 0 {
		maxKeys = 10000
	}
	buckets, err := lru.New[string, *rate.Limiter](maxKeys)
	if err != nil {
		return nil, err
	}
	return &Limiter{buckets: buckets, rps: rate.Limit(rps), burst: burst, now: time.Now}, nil
}

// Allow returns true if one token can be consumed for key.
func (l *Limiter) Allow(key string) bool {
	b, ok := l.buckets.Get(key)
	if !ok {
		b = rate.NewLimiter(l.rps, l.burst)
		if prev, found, _ := l.buckets.PeekOrAdd(key, b); found {
			b = prev
		}
	}
	return b.AllowN(l.now(), 1)
}

// Len reports the number of tracked keys.
func (l *Limiter) Len() int { return l.buckets.Len() }
