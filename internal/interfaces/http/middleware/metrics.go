package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/marketplace/payouts/internal/infrastructure/telemetry"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

type httpMetrics struct {
	requests  *telemetry.Counter
	latency   *telemetry.Histogram
	reqBytes  *telemetry.Histogram
	respBytes *telemetry.Histogram
	inFlight  metric.Int64UpDownCounter
}

func newHTTPMetrics(meter metric.Meter) (*httpMetrics, error) {
	in := telemetry.NewInstruments(meter)
	m := &httpMetrics{
		requests:  in.Counter("http_server_request_total", "HTTP requests by route and status", "{request}"),
		latency:   in.Histogram("http_server_request_duration_seconds", "HTTP request latency", "s", telemetry.HTTPDurationBuckets),
		reqBytes:  in.Histogram("http_server_request_size_bytes", "HTTP request body size", "By", telemetry.BodySizeBuckets),
		respBytes: in.Histogram("http_server_response_size_bytes", "HTTP response body size", "By", telemetry.BodySizeBuckets),
		inFlight:  in.UpDownCounter("http_server_active_requests", "HTTP requests being served", "{request}"),
	}
	return m, in.Err()
}

func passThrough(c *gin.Context) { c.Next() }

// HTTPMetrics records request counts, latency and body sizes per route
// pattern ("/api/v1/payouts/:id"), so payout ids never become labels.
// Without metric export it does nothing.
func HTTPMetrics(provider *telemetry.Provider, logger *zap.Logger) gin.HandlerFunc {
	if !provider.MetricsEnabled() {
		return passThrough
	}
	return HTTPMetricsWithMeter(provider.Meter("http.server"), logger)
}

// HTTPMetricsWithMeter is HTTPMetrics on an existing meter
func HTTPMetricsWithMeter(meter metric.Meter, logger *zap.Logger) gin.HandlerFunc {
	metrics, err := newHTTPMetrics(meter)
	if err != nil {
		if logger != nil {
			logger.Warn("HTTP metrics disabled", zap.Error(err))
		}
		return passThrough
	}

	return func(c *gin.Context) {
		ctx := c.Request.Context()
		start := time.Now()

		metrics.inFlight.Add(ctx, 1)
		c.Next()
		metrics.inFlight.Add(ctx, -1)

		route := c.FullPath()
		if route == "" {
			route = "unknown"
		}
		method := telemetry.AttrHTTPMethod.String(c.Request.Method)
		routeAttr := telemetry.AttrHTTPRoute.String(route)
		metrics.requests.Inc(ctx, method, routeAttr, telemetry.AttrHTTPStatusCode.Int(c.Writer.Status()))
		metrics.latency.RecordDuration(ctx, time.Since(start), method, routeAttr)

		if n := c.Request.ContentLength; n > 0 {
			metrics.reqBytes.Record(ctx, float64(n), method, routeAttr)
		}
		if n := c.Writer.Size(); n > 0 {
			metrics.respBytes.Record(ctx, float64(n), method, routeAttr)
		}
	}
}
