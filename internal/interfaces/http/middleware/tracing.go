// Package middleware provides HTTP middleware for the payout service.
package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// AttrHTTPErrorMessage summarizes a failed response on its server span
const AttrHTTPErrorMessage = "http.error_message"

// TracingConfig holds configuration for the tracing middleware.
type TracingConfig struct {
	ServiceName string
	Enabled     bool
	// SkipPaths are not traced (health probes)
	SkipPaths []string
}

// DefaultTracingConfig returns default tracing configuration.
func DefaultTracingConfig() TracingConfig {
	return TracingConfig{
		ServiceName: "payouts",
		Enabled:     true,
		SkipPaths:   []string{"/health/live", "/health/ready"},
	}
}

// Tracing returns OpenTelemetry tracing middleware with default configuration.
func Tracing() gin.HandlerFunc {
	return TracingWithConfig(DefaultTracingConfig())
}

// TracingWithConfig wraps otelgin. The server span is named after the route
// pattern ("GET /api/v1/payouts/:id"); SpanAttributes and SpanErrorMarker
// enrich it.
func TracingWithConfig(cfg TracingConfig) gin.HandlerFunc {
	if !cfg.Enabled {
		return func(c *gin.Context) {
			c.Next()
		}
	}

	skip := make(map[string]bool, len(cfg.SkipPaths))
	for _, p := range cfg.SkipPaths {
		skip[p] = true
	}
	return otelgin.Middleware(cfg.ServiceName, otelgin.WithFilter(func(r *http.Request) bool {
		return !skip[r.URL.Path]
	}))
}

// SpanAttributes tags the active span with request and resource ids. Place it
// after Tracing and RequestID; route params are only known once the route matched.
func SpanAttributes() gin.HandlerFunc {
	return func(c *gin.Context) {
		span := trace.SpanFromContext(c.Request.Context())
		if span.IsRecording() {
			enrichSpanWithAttributes(c, span)
		}
		c.Next()
	}
}

// enrichSpanWithAttributes adds request_id and the :id path parameter named
// after its resource (vendor.id, payout.id, commission.id)
func enrichSpanWithAttributes(c *gin.Context, span trace.Span) {
	if requestID := GetRequestID(c); requestID != "" {
		span.SetAttributes(attribute.String("request_id", requestID))
	}
	if id := c.Param("id"); id != "" {
		if key := resourceAttribute(c.FullPath()); key != "" {
			span.SetAttributes(attribute.String(key, id))
		}
	}
}

// resourceAttribute names the :id parameter after the resource in the route
func resourceAttribute(route string) string {
	switch {
	case strings.Contains(route, "/vendors/:id"):
		return "vendor.id"
	case strings.Contains(route, "/payouts/:id"):
		return "payout.id"
	case strings.Contains(route, "/commissions/:id"):
		return "commission.id"
	case strings.Contains(route, "/outbox/"):
		return "outbox.entry_id"
	default:
		return ""
	}
}

// SpanErrorMarker marks the span of 4xx and 5xx responses as an error and
// records the outcome as http.error_message. Place it after Tracing. otelgin
// sets its own empty-description error status on 5xx once the chain returns,
// so only the attribute survives there.
func SpanErrorMarker() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		span := trace.SpanFromContext(c.Request.Context())
		if !span.IsRecording() {
			return
		}

		statusCode := c.Writer.Status()
		if statusCode < http.StatusBadRequest {
			return
		}
		message := "Client Error"
		switch {
		case statusCode >= http.StatusInternalServerError:
			message = "Internal Server Error"
		case statusCode == http.StatusUnauthorized:
			message = "Unauthorized"
		case statusCode == http.StatusNotFound:
			message = "Not Found"
		case statusCode == http.StatusConflict:
			message = "Conflict"
		case statusCode == http.StatusTooManyRequests:
			message = "Rate Limited"
		}
		span.SetStatus(codes.Error, message)
		span.SetAttributes(
			attribute.Int("http.status_code", statusCode),
			attribute.String(AttrHTTPErrorMessage, message),
		)
	}
}
