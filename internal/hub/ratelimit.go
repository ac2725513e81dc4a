package hub

import (
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// attemptLimiter counts connection attempts per origin address inside a
// rolling TTL window. Once the threshold is exceeded, further attempts are
// rejected until the window's entries expire.
type attemptLimiter struct {
	counters *gocache.Cache
	limit    int
}

func newAttemptLimiter(limit int, window time.Duration) *attemptLimiter {
	return &attemptLimiter{
		counters: gocache.New(window, window),
		limit:    limit,
	}
}

// allow records an attempt from addr and reports whether it is under the
// limit for the current window.
func (l *attemptLimiter) allow(addr string) bool {
	if l.limit <= 0 {
		return true
	}

	if err := l.counters.Add(addr, int64(1), gocache.DefaultExpiration); err == nil {
		return true
	}

	count, err := l.counters.IncrementInt64(addr, 1)
	if err != nil {
		// Entry expired between Add and Increment; treat as a fresh window.
		l.counters.Set(addr, int64(1), gocache.DefaultExpiration)
		return true
	}
	return count <= int64(l.limit)
}
