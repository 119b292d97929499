package chat

import (
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"golang.org/x/time/rate"
)

// userLimiter хранит token bucket на каждого активного пользователя.
// Неактивные пользователи вытесняются из LRU, их лимит сбрасывается.
type userLimiter struct {
	mu      sync.Mutex
	every   rate.Limit
	burst   int
	buckets *expirable.LRU[int64, *rate.Limiter]
}

func newUserLimiter(perSecond float64, burst int) *userLimiter {
	if burst <= 0 {
		burst = 1
	}
	limit := rate.Limit(perSecond)
	if perSecond <= 0 {
		limit = rate.Inf
	}
	return &userLimiter{
		every:   limit,
		burst:   burst,
		buckets: expirable.NewLRU[int64, *rate.Limiter](10_000, nil, 30*time.Minute),
	}
}

func (l *userLimiter) Allow(userID int64) bool {
	l.mu.Lock()
	lim, ok := l.buckets.Get(userID)
	if !ok {
		lim = rate.NewLimiter(l.every, l.burst)
		l.buckets.Add(userID, lim)
	}
	l.mu.Unlock()
	return lim.Allow()
}
