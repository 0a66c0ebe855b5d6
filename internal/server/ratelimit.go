package server

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/dmitrymomot/warden/pkg/csrf"
)

// limiterGCThreshold is the number of tracked clients above which idle
// entries are dropped.
const limiterGCThreshold = 1000

const limiterIdle = 10 * time.Minute

type clientLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// rateLimiter allows each client IP rpm requests per minute with a burst of
// rpm.
type rateLimiter struct {
	clients    map[string]*clientLimiter
	now        func() time.Time
	rpm        int
	trustProxy bool
	mu         sync.Mutex
}

func newRateLimiter(rpm int, trustProxy bool) *rateLimiter {
	return &rateLimiter{
		clients:    make(map[string]*clientLimiter),
		now:        time.Now,
		rpm:        rpm,
		trustProxy: trustProxy,
	}
}

func (l *rateLimiter) Handler(next http.Handler) http.Handler {
	retryAfter := strconv.Itoa(int((time.Minute / time.Duration(l.rpm)).Seconds()) + 1)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !l.get(csrf.ClientIP(r, l.trustProxy)).Allow() {
			w.Header().Set("Retry-After", retryAfter)
			writeError(w, http.StatusTooManyRequests)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (l *rateLimiter) get(ip string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if c, ok := l.clients[ip]; ok {
		c.lastSeen = now
		return c.limiter
	}

	if len(l.clients) >= limiterGCThreshold {
		cutoff := now.Add(-limiterIdle)
		for k, c := range l.clients {
			if c.lastSeen.Before(cutoff) {
				delete(l.clients, k)
			}
		}
	}

	c := &clientLimiter{
		limiter:  rate.NewLimiter(rate.Every(time.Minute/time.Duration(l.rpm)), l.rpm),
		lastSeen: now,
	}
	l.clients[ip] = c
	return c.limiter
}
