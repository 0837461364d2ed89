package adoption

import (
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const idleTTL = 10 * time.Minute

// clientLimiter limits the API requests of every client (remote IP). A nil clientLimiter allows everything.
type clientLimiter struct {
	limit rate.Limit
	burst int
	mu    sync.Mutex
	byIP  map[string]*clientEntry
	hits  uint64
}

type clientEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

func newClientLimiter(rps, burst int) *clientLimiter {
	if rps <= 0 {
		return nil
	}

	if burst <= 0 {
		burst = 1
	}

	return &clientLimiter{
		limit: rate.Limit(rps),
		burst: burst,
		byIP:  make(map[string]*clientEntry),
	}
}

func (l *clientLimiter) allow(key string, now time.Time) bool {
	if l == nil {
		return true
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	e, ok := l.byIP[key]
	if !ok {
		e = &clientEntry{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.byIP[key] = e
	}

	e.lastSeen = now
	allowed := e.limiter.AllowN(now, 1)

	// forget idle clients now and then
	l.hits++
	if l.hits%512 == 0 {
		cutoff := now.Add(-idleTTL)

		for k, v := range l.byIP {
			if v.lastSeen.Before(cutoff) {
				delete(l.byIP, k)
			}
		}
	}

	return allowed
}

func clientKey(r *http.Request) string {
	host, _, err := net.SplitHostPort(strings.TrimSpace(r.RemoteAddr))
	if err != nil {
		return r.RemoteAddr
	}

	return host
}
