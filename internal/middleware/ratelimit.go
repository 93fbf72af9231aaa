package middleware

import (
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"ticketer/internal/clock"
)

// LoginRateLimiter tracks failed login attempts per client IP
type LoginRateLimiter struct {
	attempts    map[string][]time.Time
	mutex       sync.Mutex
	maxAttempts int
	window      time.Duration
	clock       clock.Clock
	stop        chan struct{}
	stopOnce    sync.Once
}

// NewLoginRateLimiter creates a new login rate limiter. Call Close to stop
// its cleanup goroutine.
func NewLoginRateLimiter(maxAttempts int, window time.Duration, clk clock.Clock) *LoginRateLimiter {
	if clk == nil {
		clk = clock.NewSystem()
	}

	rl := &LoginRateLimiter{
		attempts:    make(map[string][]time.Time),
		maxAttempts: maxAttempts,
		window:      window,
		clock:       clk,
		stop:        make(chan struct{}),
	}

	go rl.cleanupLoop()

	return rl
}

// IsAllowed checks if a login attempt from the given IP is allowed
func (rl *LoginRateLimiter) IsAllowed(ip string) bool {
	rl.mutex.Lock()
	defer rl.mutex.Unlock()

	return len(rl.prune(ip)) < rl.maxAttempts
}

// RecordAttempt records a failed login attempt for the given IP
func (rl *LoginRateLimiter) RecordAttempt(ip string) {
	rl.mutex.Lock()
	defer rl.mutex.Unlock()

	rl.attempts[ip] = append(rl.prune(ip), rl.clock.Now())
}

// Reset forgets the attempts of an IP after a successful login
func (rl *LoginRateLimiter) Reset(ip string) {
	rl.mutex.Lock()
	defer rl.mutex.Unlock()

	delete(rl.attempts, ip)
}

// GetTimeUntilAllowed returns the time until the next login attempt is allowed
func (rl *LoginRateLimiter) GetTimeUntilAllowed(ip string) time.Duration {
	rl.mutex.Lock()
	defer rl.mutex.Unlock()

	attempts := rl.prune(ip)
	if len(attempts) < rl.maxAttempts {
		return 0
	}

	// the oldest attempts have to age out of the window first
	oldest := attempts[len(attempts)-rl.maxAttempts]
	return oldest.Add(rl.window).Sub(rl.clock.Now())
}

// Close stops the cleanup goroutine
func (rl *LoginRateLimiter) Close() {
	rl.stopOnce.Do(func() { close(rl.stop) })
}

// prune drops attempts outside the window. Callers hold the mutex.
func (rl *LoginRateLimiter) prune(ip string) []time.Time {
	cutoff := rl.clock.Now().Add(-rl.window)

	attempts := rl.attempts[ip]
	valid := attempts[:0]
	for _, attempt := range attempts {
		if attempt.After(cutoff) {
			valid = append(valid, attempt)
		}
	}

	if len(valid) == 0 {
		delete(rl.attempts, ip)
		return nil
	}
	rl.attempts[ip] = valid
	return valid
}

func (rl *LoginRateLimiter) cleanupLoop() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			rl.mutex.Lock()
			for ip := range rl.attempts {
				rl.prune(ip)
			}
			rl.mutex.Unlock()
		case <-rl.stop:
			return
		}
	}
}

// LoginRateLimit blocks an IP after too many failed logins. A response of
// 401 counts as a failure; a 2xx response clears the IP's record.
func LoginRateLimit(rateLimiter *LoginRateLimiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodPost {
				next.ServeHTTP(w, r)
				return
			}

			ip := getClientIP(r)

			if !rateLimiter.IsAllowed(ip) {
				wait := rateLimiter.GetTimeUntilAllowed(ip)
				w.Header().Set("Retry-After", strconv.Itoa(int(math.Ceil(wait.Seconds()))))
				writeJSONError(w, http.StatusTooManyRequests, "rate_limited", "too many login attempts, try again later")
				return
			}

			ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			switch status := ww.Status(); {
			case status == http.StatusUnauthorized:
				rateLimiter.RecordAttempt(ip)
			case status >= 200 && status < 300:
				rateLimiter.Reset(ip)
			}
		})
	}
}
