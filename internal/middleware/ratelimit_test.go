package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/hitoshi/greetbot/internal/model"
)

func requestFromIP(ip string) *http.Request {
	req := httptest.NewRequest(http.MethodGet, "/authorize", nil)
	req.RemoteAddr = ip + ":12345"
	return req
}

func TestRateLimiter_AllowsWithinBurst(t *testing.T) {
	rl := NewRateLimiter("test", RateLimiterConfig{Rate: 1, Burst: 3, CleanupInterval: time.Minute})
	defer rl.Stop()

	handler := NewClientIPMiddleware(false)(rl.Middleware(ByClientIP)(okHandler()))

	for i := 0; i < 3; i++ {
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, requestFromIP("1.2.3.4"))
		if w.Code != http.StatusOK {
			t.Errorf("request %d: status = %d, want 200", i, w.Code)
		}
	}
}

func TestRateLimiter_Returns429WithRetryAfter(t *testing.T) {
	rl := NewRateLimiter("test", RateLimiterConfig{Rate: 0.5, Burst: 1, CleanupInterval: time.Minute})
	defer rl.Stop()

	handler := NewClientIPMiddleware(false)(rl.Middleware(ByClientIP)(okHandler()))

	handler.ServeHTTP(httptest.NewRecorder(), requestFromIP("1.2.3.4"))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, requestFromIP("1.2.3.4"))

	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want 429", w.Code)
	}
	if ra := w.Header().Get("Retry-After"); ra != "2" {
		t.Errorf("Retry-After = %q, want 2", ra)
	}
	if body := decodeErrorBody(t, w); body.Code != model.ErrCodeRateLimited {
		t.Errorf("code = %q", body.Code)
	}
}

// キーごとに独立したバケットを持つ
func TestRateLimiter_IndependentKeys(t *testing.T) {
	rl := NewRateLimiter("test", RateLimiterConfig{Rate: 0.1, Burst: 1, CleanupInterval: time.Minute})
	defer rl.Stop()

	handler := NewClientIPMiddleware(false)(rl.Middleware(ByClientIP)(okHandler()))

	for _, ip := range []string{"1.1.1.1", "2.2.2.2", "3.3.3.3"} {
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, requestFromIP(ip))
		if w.Code != http.StatusOK {
			t.Errorf("%s: status = %d, want 200", ip, w.Code)
		}
	}
	if rl.LimiterCount() != 3 {
		t.Errorf("LimiterCount = %d, want 3", rl.LimiterCount())
	}
}

func TestRateLimiter_ByUserID_AnonymousPassesThrough(t *testing.T) {
	rl := NewRateLimiter("update", RateLimiterConfig{Rate: 0.1, Burst: 1, CleanupInterval: time.Minute})
	defer rl.Stop()

	handler := rl.Middleware(ByUserID)(okHandler())

	for i := 0; i < 3; i++ {
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, httptest.NewRequest(http.MethodPut, "/", nil))
		if w.Code != http.StatusOK {
			t.Errorf("request %d: status = %d, want 200", i, w.Code)
		}
	}
	if rl.LimiterCount() != 0 {
		t.Errorf("LimiterCount = %d, want 0", rl.LimiterCount())
	}
}

func TestRateLimiter_ByUserID_Limits(t *testing.T) {
	rl := NewRateLimiter("update", RateLimiterConfig{Rate: 0.1, Burst: 1, CleanupInterval: time.Minute})
	defer rl.Stop()

	handler := rl.Middleware(ByUserID)(okHandler())

	codes := make([]int, 2)
	for i := range codes {
		req := httptest.NewRequest(http.MethodPut, "/", nil)
		req = req.WithContext(ContextWithUserID(req.Context(), 42))
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)
		codes[i] = w.Code
	}
	if codes[0] != http.StatusOK || codes[1] != http.StatusTooManyRequests {
		t.Errorf("codes = %v, want [200 429]", codes)
	}
}

func TestRateLimiter_CleanupRemovesStaleEntries(t *testing.T) {
	rl := NewRateLimiter("test", RateLimiterConfig{Rate: 1, Burst: 1, CleanupInterval: time.Minute})
	defer rl.Stop()

	rl.limiterFor("stale")
	rl.cleanup(time.Now().Add(3 * time.Minute))

	if rl.LimiterCount() != 0 {
		t.Errorf("LimiterCount = %d, want 0", rl.LimiterCount())
	}
}

func TestRateLimiter_StopIsIdempotent(t *testing.T) {
	rl := NewRateLimiter("test", PerMinute(30))
	rl.Stop()
	rl.Stop()
}

func TestPerMinute(t *testing.T) {
	cfg := PerMinute(30)
	if cfg.Burst != 30 {
		t.Errorf("Burst = %d, want 30", cfg.Burst)
	}
	if float64(cfg.Rate) != 0.5 {
		t.Errorf("Rate = %v, want 0.5", cfg.Rate)
	}
}
