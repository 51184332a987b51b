package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

type fixedAdmitter struct {
	ok    bool
	wait  time.Duration
	calls int
}

func (f *fixedAdmitter) Admit() (bool, time.Duration) {
	f.calls++
	return f.ok, f.wait
}

func okHandler(t *testing.T) http.Handler {
	t.Helper()
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestRateLimitMiddlewareRejectsWithRetryAfter(t *testing.T) {
	limiter := &fixedAdmitter{ok: false, wait: 1500 * time.Millisecond}
	middleware := rateLimitMiddleware(limiter, okHandler(t))

	rec := httptest.NewRecorder()
	middleware.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/properties/db.maria.url", nil))

	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("expected status 429, got %d", rec.Code)
	}
	if got := rec.Header().Get("Retry-After"); got != "2" {
		t.Fatalf("expected Retry-After 2, got %q", got)
	}

	var body errorResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode error body: %v", err)
	}
	if !strings.Contains(body.Details, "/api/properties/db.maria.url") {
		t.Fatalf("expected details to name the route, got %q", body.Details)
	}
	if body.Suggestion != "retry in 2s" {
		t.Fatalf("unexpected suggestion %q", body.Suggestion)
	}
}

func TestRateLimitMiddlewareRetryAfterIsAtLeastOneSecond(t *testing.T) {
	middleware := rateLimitMiddleware(&fixedAdmitter{ok: false, wait: 10 * time.Millisecond}, okHandler(t))

	rec := httptest.NewRecorder()
	middleware.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/records", nil))

	if got := rec.Header().Get("Retry-After"); got != "1" {
		t.Fatalf("expected Retry-After 1, got %q", got)
	}
}

func TestRateLimitMiddlewareAllowsAdmittedRequests(t *testing.T) {
	limiter := &fixedAdmitter{ok: true}
	middleware := rateLimitMiddleware(limiter, okHandler(t))

	rec := httptest.NewRecorder()
	middleware.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/records", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}
	if limiter.calls != 1 {
		t.Fatalf("expected one admission check, got %d", limiter.calls)
	}
}

func TestRateLimitMiddlewareSkipsHealthCheck(t *testing.T) {
	limiter := &fixedAdmitter{ok: false}
	middleware := rateLimitMiddleware(limiter, okHandler(t))

	rec := httptest.NewRecorder()
	middleware.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, healthPath, nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected health check to pass, got %d", rec.Code)
	}
	if limiter.calls != 0 {
		t.Fatalf("expected health check not to consume a token, got %d calls", limiter.calls)
	}
}

func TestNewTokenBucketDisabled(t *testing.T) {
	for _, limit := range []RateLimit{{}, {RPS: 0, Burst: 10}, {RPS: -1, Burst: 1}} {
		if got := newTokenBucket(limit); got != nil {
			t.Fatalf("expected no limiter for %+v, got %#v", limit, got)
		}
	}
}

func TestTokenBucketHonoursBurst(t *testing.T) {
	limiter := newTokenBucket(RateLimit{RPS: 0.001, Burst: 3})

	for i := 0; i < 3; i++ {
		if ok, _ := limiter.Admit(); !ok {
			t.Fatalf("expected request %d within burst to be admitted", i)
		}
	}
	ok, wait := limiter.Admit()
	if ok {
		t.Fatalf("expected request beyond burst to be rejected")
	}
	if wait <= 0 {
		t.Fatalf("expected a positive retry delay, got %v", wait)
	}
}

func TestTokenBucketRaisesBurstToOne(t *testing.T) {
	limiter := newTokenBucket(RateLimit{RPS: 1, Burst: 0})

	if ok, _ := limiter.Admit(); !ok {
		t.Fatalf("expected first request to be admitted")
	}
	ok, wait := limiter.Admit()
	if ok {
		t.Fatalf("expected second request to be rejected")
	}
	if wait <= 0 || wait > time.Second {
		t.Fatalf("expected delay within one second, got %v", wait)
	}
}

func TestTokenBucketRejectionDoesNotConsumeTokens(t *testing.T) {
	limiter := newTokenBucket(RateLimit{RPS: 1, Burst: 1})
	if ok, _ := limiter.Admit(); !ok {
		t.Fatalf("expected first request to be admitted")
	}

	_, first := limiter.Admit()
	_, second := limiter.Admit()
	if second > first+100*time.Millisecond {
		t.Fatalf("rejected requests must not push the delay out: %v then %v", first, second)
	}
}
