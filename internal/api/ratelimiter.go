package api

import (
	"fmt"
	"math"
	"net/http"
	"strconv"
	"time"

	"golang.org/x/time/rate"
)

// RateLimit bounds the request rate of the view. A non-positive RPS
// disables limiting; a Burst below one is raised to one.
type RateLimit struct {
	RPS   float64
	Burst int
}

// Enabled reports whether requests are limited at all.
func (l RateLimit) Enabled() bool {
	return l.RPS > 0
}

// admitter decides whether a request may proceed and, when it may not, how
// long the client should wait before retrying.
type admitter interface {
	Admit() (ok bool, retryAfter time.Duration)
}

type tokenBucket struct {
	limiter *rate.Limiter
}

// newTokenBucket returns nil when limit is disabled.
func newTokenBucket(limit RateLimit) admitter {
	if !limit.Enabled() {
		return nil
	}
	return &tokenBucket{
		limiter: rate.NewLimiter(rate.Limit(limit.RPS), max(limit.Burst, 1)),
	}
}

// Admit takes a token if one is available now. Otherwise the reservation is
// returned to the bucket and the wait until the next token is reported.
func (b *tokenBucket) Admit() (bool, time.Duration) {
	res := b.limiter.Reserve()
	if !res.OK() {
		return false, time.Second
	}
	delay := res.Delay()
	if delay <= 0 {
		return true, 0
	}
	res.Cancel()
	return false, delay
}

// rateLimitMiddleware throttles every route except the health check.
func rateLimitMiddleware(limiter admitter, next http.Handler) http.Handler {
	if limiter == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == healthPath {
			next.ServeHTTP(w, r)
			return
		}

		ok, wait := limiter.Admit()
		if ok {
			next.ServeHTTP(w, r)
			return
		}

		seconds := max(int(math.Ceil(wait.Seconds())), 1)
		w.Header().Set("Retry-After", strconv.Itoa(seconds))
		writeError(w, http.StatusTooManyRequests, "Too many requests",
			fmt.Sprintf("rate limit exceeded for %s", r.URL.Path),
			fmt.Sprintf("retry in %ds", seconds))
	})
}
