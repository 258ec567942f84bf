package middleware

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

type clientInfo struct {
	limiter *rate.Limiter
	last    time.Time
}

// localLimiter is a per-identity token bucket used when Redis is absent.
// Buckets refill maxRequests tokens per window.
type localLimiter struct {
	mu      sync.Mutex
	clients map[string]*clientInfo
	limit   rate.Limit
	burst   int
	idle    time.Duration
	swept   time.Time
}

func newLocalLimiter(maxRequests int, window time.Duration) *localLimiter {
	if maxRequests < 1 {
		maxRequests = 1
	}
	return &localLimiter{
		clients: make(map[string]*clientInfo),
		limit:   rate.Every(window / time.Duration(maxRequests)),
		burst:   maxRequests,
		idle:    2 * window,
		swept:   time.Now(),
	}
}

func (l *localLimiter) allow(key string) bool {
	now := time.Now()

	l.mu.Lock()
	defer l.mu.Unlock()

	if now.Sub(l.swept) > l.idle {
		for k, ci := range l.clients {
			if now.Sub(ci.last) > l.idle {
				delete(l.clients, k)
			}
		}
		l.swept = now
	}

	ci, ok := l.clients[key]
	if !ok {
		ci = &clientInfo{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.clients[key] = ci
	}
	ci.last = now
	return ci.limiter.AllowN(now, 1)
}
