package httpapi

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/nmehta/go-request-desk/internal/config"
	"github.com/nmehta/go-request-desk/internal/counters"
	"github.com/nmehta/go-request-desk/internal/guard"
	"github.com/nmehta/go-request-desk/internal/http/handlers"
	"github.com/nmehta/go-request-desk/internal/platform"
	"github.com/nmehta/go-request-desk/internal/services"
	"github.com/nmehta/go-request-desk/internal/store"
	"github.com/nmehta/go-request-desk/internal/texts"
)

func testConfig() config.Config {
	return config.Config{
		WebhookSecret: "s3cret",
		RateRPS:       100,
		RateBurst:     100,
		GinMode:       gin.TestMode,
	}
}

func newTestRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cs := counters.NewMemory()
	g := guard.New(cs, 5*time.Minute, 48*time.Hour, 5, zerolog.Nop())
	st := store.New()
	msgr := platform.LogMessenger{Log: zerolog.Nop()}
	dir := platform.OwnerDirectory{OwnerID: 1}
	prefs := texts.NewPrefs()
	orch := services.New(st, g, cs, msgr, dir, prefs, 1, nil, zerolog.Nop())
	h := handlers.New(orch, services.NewQuery(st, dir), prefs, msgr)

	r := gin.New()
	RegisterRoutes(r, h, testConfig())
	return r
}

func TestHealth(t *testing.T) {
	r := newTestRouter(t)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), "ok") {
		t.Fatalf("health = %d %q", w.Code, w.Body.String())
	}
}

func TestMetricsEndpoint(t *testing.T) {
	r := newTestRouter(t)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("metrics = %d", w.Code)
	}
}

func TestHook_WrongSecretIs404(t *testing.T) {
	r := newTestRouter(t)
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/hook/guess", strings.NewReader(`{"update_id":1}`))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)
	if w.Code != http.StatusNotFound {
		t.Fatalf("wrong secret = %d, want 404", w.Code)
	}
}

func TestHook_GoodSecretAcks(t *testing.T) {
	r := newTestRouter(t)
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/hook/s3cret", strings.NewReader(`{"update_id":1}`))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), `"ok":true`) {
		t.Fatalf("hook = %d %q", w.Code, w.Body.String())
	}
	if rid := w.Header().Get("X-Request-ID"); rid == "" {
		t.Error("no request id header")
	}
}

func TestHook_BadBodyIs400(t *testing.T) {
	r := newTestRouter(t)
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/hook/s3cret", strings.NewReader("{"))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("bad body = %d, want 400", w.Code)
	}
}

func TestUnknownRouteIs404(t *testing.T) {
	r := newTestRouter(t)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/nope", nil))
	if w.Code != http.StatusNotFound {
		t.Fatalf("unknown route = %d", w.Code)
	}
}

