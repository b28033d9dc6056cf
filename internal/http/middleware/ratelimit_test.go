package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
)

func TestRateLimiter_AllowsWithinBurstThen429(t *testing.T) {
	r := newEngine()
	rl := NewRateLimiter(0.0001, 2, KeyByIP()) // near-zero refill, burst 2
	r.Use(RequestID(), rl.Handler())
	r.GET("/x", func(c *gin.Context) { c.Status(http.StatusOK) })

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/x", nil))
		codes = append(codes, w.Code)
	}
	if codes[0] != http.StatusOK || codes[1] != http.StatusOK {
		t.Fatalf("burst requests = %v", codes)
	}
	if codes[2] != http.StatusTooManyRequests {
		t.Fatalf("third request = %d, want 429", codes[2])
	}
}

func TestRateLimiter_CoercesBurst(t *testing.T) {
	rl := NewRateLimiter(1, 0, KeyByIP())
	if rl.burst != 1 {
		t.Fatalf("burst = %d, want 1", rl.burst)
	}
}

func TestRateLimiter_SeparateBucketsPerKey(t *testing.T) {
	rl := NewRateLimiter(0.0001, 1, KeyByIP())
	a := rl.getVisitor("ip:1.1.1.1")
	b := rl.getVisitor("ip:2.2.2.2")
	if !a.Allow() {
		t.Fatal("first key refused its burst")
	}
	if !b.Allow() {
		t.Fatal("second key should have its own bucket")
	}
	if a.Allow() {
		t.Fatal("first key should be drained")
	}
}
