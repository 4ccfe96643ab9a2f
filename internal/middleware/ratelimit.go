package middleware

import (
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"
)

const rateLimitedBody = `{"error":"Too many requests. Please slow down."}`

// window counts the requests of one client in a fixed interval.
type window struct {
	count int
	until time.Time
}

// limiter is a fixed-window counter keyed by client ip. Expired windows are
// swept lazily, at most once per interval, so idle clients do not pile up.
type limiter struct {
	mu        sync.Mutex
	limit     int
	per       time.Duration
	windows   map[string]*window
	nextSweep time.Time
	now       func() time.Time
}

func newLimiter(limit int, per time.Duration) *limiter {
	return &limiter{
		limit:   limit,
		per:     per,
		windows: make(map[string]*window),
		now:     time.Now,
	}
}

// allow records a hit for key and reports whether it fits the limit. When it
// does not, retry is how long until the window resets.
func (l *limiter) allow(key string) (ok bool, retry time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if now.After(l.nextSweep) {
		for k, w := range l.windows {
			if now.After(w.until) {
				delete(l.windows, k)
			}
		}
		l.nextSweep = now.Add(l.per)
	}

	w, found := l.windows[key]
	if !found || now.After(w.until) {
		w = &window{until: now.Add(l.per)}
		l.windows[key] = w
	}
	if w.count >= l.limit {
		return false, w.until.Sub(now)
	}
	w.count++
	return true, 0
}

// RateLimit allows limit requests per client ip in each window of length per.
// Rejected requests get a JSON 429 with Retry-After.
func RateLimit(limit int, per time.Duration) func(http.Handler) http.Handler {
	l := newLimiter(limit, per)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ok, retry := l.allow(clientIPForRateLimit(r))
			if !ok {
				w.Header().Set("Content-Type", "application/json")
				w.Header().Set("Retry-After", strconv.Itoa(int(retry/time.Second)+1))
				w.WriteHeader(http.StatusTooManyRequests)
				_, _ = w.Write([]byte(rateLimitedBody))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// clientIPForRateLimit prefers the first valid X-Forwarded-For entry and
// falls back to the remote address host.
func clientIPForRateLimit(r *http.Request) string {
	for _, part := range strings.Split(r.Header.Get("X-Forwarded-For"), ",") {
		if ip := strings.TrimSpace(part); net.ParseIP(ip) != nil {
			return ip
		}
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil && net.ParseIP(host) != nil {
		return host
	}
	return r.RemoteAddr
}
