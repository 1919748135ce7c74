package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/dukerupert/familyos/internal/auth"
)

// fakeClock lets tests move the limiter's time by hand.
type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time { return c.t }

func newTestLimiter() (*RateLimiter, *fakeClock) {
	clock := &fakeClock{t: time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)}
	rl := NewRateLimiter()
	rl.now = clock.now
	return rl, clock
}

func TestRateLimiterAllow(t *testing.T) {
	rl, clock := newTestLimiter()
	l := Limit{Requests: 3, Window: time.Minute}

	for i := range 3 {
		if ok, _ := rl.Allow("key", l); !ok {
			t.Fatalf("request %d should be allowed", i+1)
		}
	}

	clock.t = clock.t.Add(20 * time.Second)
	ok, retry := rl.Allow("key", l)
	if ok {
		t.Fatal("4th request should be denied")
	}
	if retry != 40*time.Second {
		t.Errorf("retry = %v, want 40s", retry)
	}

	if ok, _ := rl.Allow("other", l); !ok {
		t.Error("other key should have its own count")
	}

	clock.t = clock.t.Add(40 * time.Second)
	if ok, _ := rl.Allow("key", l); !ok {
		t.Error("should be allowed once the window resets")
	}
}

func TestRateLimiterCleanup(t *testing.T) {
	rl, clock := newTestLimiter()

	rl.Allow("expired", Limit{Requests: 5, Window: time.Second})
	rl.Allow("active", Limit{Requests: 5, Window: time.Hour})
	clock.t = clock.t.Add(time.Minute)

	rl.Cleanup()

	rl.mu.Lock()
	defer rl.mu.Unlock()
	if _, ok := rl.buckets["expired"]; ok {
		t.Error("expired bucket should have been cleaned up")
	}
	if _, ok := rl.buckets["active"]; !ok {
		t.Error("active bucket should still exist")
	}
}

func TestRateLimitMiddleware(t *testing.T) {
	rl, _ := newTestLimiter()
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	l := Limit{Requests: 1, Window: time.Minute}
	signIn := RateLimit(rl, "auth", ByIP, l)(ok)
	post := RateLimit(rl, "messages", ByIP, l)(ok)

	send := func(h http.Handler, addr string) *httptest.ResponseRecorder {
		req := httptest.NewRequest("POST", "/", nil)
		req.RemoteAddr = addr
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec
	}

	if rec := send(signIn, "10.0.0.1:5000"); rec.Code != http.StatusOK {
		t.Fatalf("first status = %d", rec.Code)
	}
	rec := send(signIn, "10.0.0.1:5000")
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("second status = %d, want 429", rec.Code)
	}
	if got := rec.Header().Get("Retry-After"); got != "60" {
		t.Errorf("Retry-After = %q, want 60", got)
	}
	if got := rec.Header().Get("Content-Type"); got != "application/json" {
		t.Errorf("Content-Type = %q", got)
	}

	if rec := send(signIn, "10.0.0.2:5000"); rec.Code != http.StatusOK {
		t.Errorf("other client status = %d, want 200", rec.Code)
	}
	if rec := send(post, "10.0.0.1:5000"); rec.Code != http.StatusOK {
		t.Errorf("other scope status = %d, want 200", rec.Code)
	}
}

func TestByUser(t *testing.T) {
	req := httptest.NewRequest("GET", "/", nil)
	req.RemoteAddr = "192.0.2.1:1234"
	if got := ByUser(req); got != "ip:192.0.2.1" {
		t.Errorf("anonymous key = %q", got)
	}

	req = req.WithContext(auth.WithAuth(req.Context(), auth.AuthContext{UserID: 42}))
	if got := ByUser(req); got != "user:42" {
		t.Errorf("user key = %q", got)
	}
}

func TestRealIP(t *testing.T) {
	req := httptest.NewRequest("GET", "/", nil)
	req.RemoteAddr = "192.0.2.1:1234"
	if got := RealIP(req); got != "192.0.2.1" {
		t.Errorf("RealIP = %q, want %q", got, "192.0.2.1")
	}

	req.Header.Set("X-Forwarded-For", "198.51.100.7, 10.0.0.1")
	if got := RealIP(req); got != "198.51.100.7" {
		t.Errorf("RealIP = %q, want %q", got, "198.51.100.7")
	}

	req.Header.Set("CF-Connecting-IP", "203.0.113.9")
	if got := RealIP(req); got != "203.0.113.9" {
		t.Errorf("RealIP = %q, want %q", got, "203.0.113.9")
	}
}
