// internal/api/ratelimit.go
package api

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// limiterTTL bounds how long an idle credential keeps its bucket. Entries past
// it are swept, so the registry does not grow with every credential ever seen.
const limiterTTL = 10 * time.Minute

type limiterEntry struct {
	lim      *rate.Limiter
	lastSeen time.Time
}

// limiterRegistry keeps one token bucket per credential prefix, evicting
// buckets that have been idle past limiterTTL.
type limiterRegistry struct {
	mu        sync.Mutex
	limiters  map[string]*limiterEntry
	rps       rate.Limit
	burst     int
	nextSweep time.Time
	now       func() time.Time
}

func newLimiterRegistry(rps float64, burst int) *limiterRegistry {
	return &limiterRegistry{
		limiters: make(map[string]*limiterEntry),
		rps:      rate.Limit(rps),
		burst:    burst,
		now:      time.Now,
	}
}

func (l *limiterRegistry) allow(key string) bool {
	now := l.now()
	l.mu.Lock()
	if now.After(l.nextSweep) {
		for k, e := range l.limiters {
			if now.Sub(e.lastSeen) > limiterTTL {
				delete(l.limiters, k)
			}
		}
		l.nextSweep = now.Add(limiterTTL)
	}
	e, ok := l.limiters[key]
	if !ok {
		e = &limiterEntry{lim: rate.NewLimiter(l.rps, l.burst)}
		l.limiters[key] = e
	}
	e.lastSeen = now
	l.mu.Unlock()
	return e.lim.Allow()
}
