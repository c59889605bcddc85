package bot

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// bucket holds one caller's token bucket and when it was last used.
type bucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// Limiter is a per-user token-bucket flood guard for commands. Buckets are
// created on demand and idle ones are evicted opportunistically.
//
// This type is safe for concurrent use.
type Limiter struct {
	rps   rate.Limit
	burst int
	now   func() time.Time

	mu       sync.Mutex
	buckets  map[int64]*bucket
	ttl      time.Duration
	cleanupN uint64
}

// NewLimiter allows each user rps commands per second with the given burst.
// burst values <= 0 are coerced to 1.
func NewLimiter(rps float64, burst int) *Limiter {
	if burst <= 0 {
		burst = 1
	}
	return &Limiter{
		rps:     rate.Limit(rps),
		burst:   burst,
		now:     time.Now,
		buckets: make(map[int64]*bucket),
		ttl:     10 * time.Minute,
	}
}

// Allow consumes a token for userID and reports whether the command may run.
func (l *Limiter) Allow(userID int64) bool {
	now := l.now()
	return l.bucket(userID, now).AllowN(now, 1)
}

func (l *Limiter) bucket(userID int64, now time.Time) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	// Sweep before touching the requested bucket so a stale one can go too.
	l.cleanupN++
	if l.cleanupN >= 5000 {
		for k, b := range l.buckets {
			if now.Sub(b.lastSeen) >= l.ttl {
				delete(l.buckets, k)
			}
		}
		l.cleanupN = 0
	}

	if b, ok := l.buckets[userID]; ok {
		b.lastSeen = now
		return b.limiter
	}
	lim := rate.NewLimiter(l.rps, l.burst)
	l.buckets[userID] = &bucket{limiter: lim, lastSeen: now}
	return lim
}

// size returns the number of live buckets.
func (l *Limiter) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.buckets)
}
