package middleware

import (
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestRateLimiter_BasicLimit(t *testing.T) {
	rl := NewRateLimiter(RateLimitConfig{
		RatePerSecond:   10,
		Burst:           10,
		CleanupInterval: time.Minute,
		MaxAge:          time.Minute,
	})
	defer rl.Stop()

	for i := 0; i < 10; i++ {
		if !rl.Allow("test-key") {
			t.Errorf("request %d should have been allowed", i)
		}
	}

	if rl.Allow("test-key") {
		t.Error("request should have been rate limited")
	}
}

func TestRateLimiter_DifferentKeys(t *testing.T) {
	rl := NewRateLimiter(RateLimitConfig{
		RatePerSecond:   5,
		Burst:           5,
		CleanupInterval: time.Minute,
		MaxAge:          time.Minute,
	})
	defer rl.Stop()

	for i := 0; i < 5; i++ {
		rl.Allow("key1")
	}
	if rl.Allow("key1") {
		t.Error("key1 should be rate limited")
	}
	if !rl.Allow("key2") {
		t.Error("key2 should not be rate limited")
	}
}

func TestConnectionRateLimitByIP(t *testing.T) {
	rl := NewRateLimiter(RateLimitConfig{
		RatePerSecond:   3,
		Burst:           3,
		CleanupInterval: time.Minute,
		MaxAge:          time.Minute,
	})
	defer rl.Stop()

	handler := ConnectionRateLimit(rl)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	allowed, limited := 0, 0
	for i := 0; i < 10; i++ {
		req := httptest.NewRequest(http.MethodGet, "/ws/connect", nil)
		req.RemoteAddr = "192.168.1.1:12345"
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)

		switch w.Code {
		case http.StatusOK:
			allowed++
		case http.StatusTooManyRequests:
			limited++
		}
	}

	if allowed != 3 {
		t.Errorf("allowed = %d, want 3", allowed)
	}
	if limited != 7 {
		t.Errorf("limited = %d, want 7", limited)
	}
}

func TestConnectionRateLimitPerIPIsolation(t *testing.T) {
	rl := NewRateLimiter(RateLimitConfig{
		RatePerSecond:   1,
		Burst:           1,
		CleanupInterval: time.Minute,
		MaxAge:          time.Minute,
	})
	defer rl.Stop()

	handler := ConnectionRateLimit(rl)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	for _, ip := range []string{"10.0.0.1:1", "10.0.0.2:1"} {
		req := httptest.NewRequest(http.MethodGet, "/ws/connect", nil)
		req.RemoteAddr = ip
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)
		if w.Code != http.StatusOK {
			t.Errorf("first request from %s should be allowed, got %d", ip, w.Code)
		}
	}
}

func TestRateLimiter_Concurrent(t *testing.T) {
	rl := NewRateLimiter(RateLimitConfig{
		RatePerSecond:   100,
		Burst:           100,
		CleanupInterval: time.Minute,
		MaxAge:          time.Minute,
	})
	defer rl.Stop()

	var allowed int64
	var wg sync.WaitGroup

	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 20; j++ {
				if rl.Allow("concurrent-key") {
					atomic.AddInt64(&allowed, 1)
				}
			}
		}()
	}
	wg.Wait()

	if allowed != 100 {
		t.Errorf("allowed = %d, want exactly 100 (burst size)", allowed)
	}
}
