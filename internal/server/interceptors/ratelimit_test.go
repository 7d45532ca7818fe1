package interceptors

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

var okHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusNoContent)
})

func TestRateLimit_PerClient(t *testing.T) {
	h := RateLimit(2)(okHandler)

	call := func(ip string) int {
		req := httptest.NewRequest(http.MethodPost, "/auth/sign-in", nil)
		req.Header.Set("X-Real-IP", ip)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec.Code
	}

	for i := 0; i < 2; i++ {
		if code := call("10.0.0.1"); code != http.StatusNoContent {
			t.Fatalf("request %d: status = %d, want 204", i, code)
		}
	}
	if code := call("10.0.0.1"); code != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want 429", code)
	}
	if code := call("10.0.0.2"); code != http.StatusNoContent {
		t.Fatalf("other client: status = %d, want 204", code)
	}
}

func TestRateLimit_Disabled(t *testing.T) {
	h := RateLimit(0)(okHandler)
	for i := 0; i < 50; i++ {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/", nil))
		if rec.Code != http.StatusNoContent {
			t.Fatalf("status = %d, want 204", rec.Code)
		}
	}
}

func TestRateLimiter_RefillsAndSweeps(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	rl := NewRateLimiter(60)
	rl.nowF = func() time.Time { return now }

	for i := 0; i < 60; i++ {
		if !rl.Allow("a") {
			t.Fatalf("request %d denied inside burst", i)
		}
	}
	if rl.Allow("a") {
		t.Fatal("burst exceeded but allowed")
	}
	now = now.Add(time.Second)
	if !rl.Allow("a") {
		t.Fatal("token not refilled after one second")
	}

	now = now.Add(2 * idleLimiterTTL)
	rl.Allow("b")
	if _, ok := rl.clients["a"]; ok {
		t.Error("idle client limiter not swept")
	}
}
