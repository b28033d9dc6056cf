// Package httpapi wires the HTTP transport (Gin) to the webhook handler and
// middleware. It centralizes cross-cutting concerns such as tracing,
// correlation IDs, logging, panic recovery, metrics, and rate limiting.
//
// The surface is deliberately small: a health probe, the Prometheus scrape
// endpoint, and one POST route guarded by a secret path segment. The secret
// is the only authentication the upstream webhook delivery offers, so the
// comparison is constant-time and the raw path never reaches logs or metric
// labels.
package httpapi

import (
	"crypto/subtle"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/nmehta/go-request-desk/internal/config"
	"github.com/nmehta/go-request-desk/internal/http/handlers"
	"github.com/nmehta/go-request-desk/internal/http/middleware"
)

// RegisterRoutes attaches all middleware and endpoints to the given Gin
// engine.
//
// Middleware order matters:
//  1. OpenTelemetry: trace everything
//  2. RequestID: generate/propagate correlation id
//  3. Logger: structured access logs
//  4. Recovery: capture panics after logger
//  5. Body size limiter
//  6. Metrics
//  7. Rate limiter (per IP)
func RegisterRoutes(r *gin.Engine, h *handlers.Handler, cfg config.Config) {
	r.HandleMethodNotAllowed = true

	r.Use(otelgin.Middleware(cfg.OTEL.ServiceName))
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger())
	r.Use(middleware.Recovery())
	r.Use(limitBody(1 << 20))
	r.Use(middleware.Metrics())

	rl := middleware.NewRateLimiter(cfg.RateRPS, cfg.RateBurst, middleware.KeyByIP())
	r.Use(rl.Handler())

	// Fallbacks. 404 either way so the route space is unprobeable.
	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"code": "not_found"})
	})
	r.NoMethod(func(c *gin.Context) {
		c.JSON(http.StatusMethodNotAllowed, gin.H{"code": "method_not_allowed"})
	})

	r.GET("/health", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	r.POST("/hook/:secret", requireSecret(cfg.WebhookSecret), h.HandleUpdate)
}

// requireSecret rejects requests whose path segment does not match the
// configured webhook secret. The mismatch response is an empty 404,
// indistinguishable from an unknown route.
func requireSecret(secret string) gin.HandlerFunc {
	want := []byte(secret)
	return func(c *gin.Context) {
		got := []byte(c.Param("secret"))
		if subtle.ConstantTimeCompare(got, want) != 1 {
			c.AbortWithStatus(http.StatusNotFound)
			return
		}
		c.Next()
	}
}

// limitBody caps the request body size using http.MaxBytesReader; oversized
// bodies error on read in the JSON binder.
func limitBody(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		c.Next()
	}
}
