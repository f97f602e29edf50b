package server

import (
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/watzon/saleorhook/internal/config"
)

func TestRateLimiter_Allow(t *testing.T) {
	rl := NewRateLimiter(config.RateLimitRule{Max: 3, Window: 500 * time.Millisecond})
	defer rl.Stop()

	for i := 0; i < 3; i++ {
		if !rl.Allow("key") {
			t.Errorf("Request %d should be allowed", i+1)
		}
	}

	if rl.Allow("key") {
		t.Error("4th request should be blocked")
	}

	time.Sleep(600 * time.Millisecond)

	if !rl.Allow("key") {
		t.Error("Request after window should be allowed")
	}
}

func TestRateLimiter_MultipleKeys(t *testing.T) {
	rl := NewRateLimiter(config.RateLimitRule{Max: 2, Window: time.Second})
	defer rl.Stop()

	if !rl.Allow("key1") || !rl.Allow("key1") {
		t.Error("key1 should allow 2 requests")
	}
	if !rl.Allow("key2") || !rl.Allow("key2") {
		t.Error("key2 should allow 2 requests")
	}
	if rl.Allow("key1") || rl.Allow("key2") {
		t.Error("both keys should be blocked")
	}
}

func TestRateLimiter_Cleanup(t *testing.T) {
	rl := NewRateLimiter(config.RateLimitRule{Max: 5, Window: 100 * time.Millisecond})
	defer rl.Stop()

	rl.Allow("key1")
	rl.Allow("key2")
	rl.Allow("key3")

	rl.mu.Lock()
	initial := len(rl.buckets)
	rl.mu.Unlock()
	if initial != 3 {
		t.Errorf("Expected 3 buckets, got %d", initial)
	}

	time.Sleep(500 * time.Millisecond)

	rl.mu.Lock()
	final := len(rl.buckets)
	rl.mu.Unlock()
	if final != 0 {
		t.Errorf("Expected 0 buckets after cleanup, got %d", final)
	}
}

func TestRateLimiter_ConcurrentAccess(t *testing.T) {
	rl := NewRateLimiter(config.RateLimitRule{Max: 100, Window: time.Minute})
	defer rl.Stop()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 10; j++ {
				rl.Allow("concurrent-key")
			}
		}()
	}
	wg.Wait()

	if rl.Allow("concurrent-key") {
		t.Error("Expected all 100 tokens to be consumed")
	}
}

func TestRateLimiter_Middleware(t *testing.T) {
	rl := NewRateLimiter(config.RateLimitRule{Max: 1, Window: time.Minute})
	defer rl.Stop()

	handler := rl.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	send := func(ip string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/api/register", nil)
		req.Header.Set("X-Forwarded-For", ip)
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)
		return w
	}

	if w := send("203.0.113.1"); w.Code != http.StatusOK {
		t.Errorf("first request: expected 200, got %d", w.Code)
	}

	w := send("203.0.113.1")
	if w.Code != http.StatusTooManyRequests {
		t.Errorf("second request: expected 429, got %d", w.Code)
	}
	if w.Header().Get("Retry-After") != "60" {
		t.Errorf("expected Retry-After 60, got %q", w.Header().Get("Retry-After"))
	}

	if w := send("203.0.113.2"); w.Code != http.StatusOK {
		t.Errorf("other client: expected 200, got %d", w.Code)
	}
}
