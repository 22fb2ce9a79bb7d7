package logger

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// ginLoggerKey is where the request-scoped logger lives in the gin context
const ginLoggerKey = "logger"

// GinConfig controls the access log
type GinConfig struct {
	// SkipPaths are served without an access log line (health probes)
	SkipPaths []string
}

// GinMiddleware logs one line per request with the default configuration
func GinMiddleware(logger *zap.Logger) gin.HandlerFunc {
	return GinMiddlewareWithConfig(logger, GinConfig{SkipPaths: []string{"/health/live", "/health/ready"}})
}

// GinMiddlewareWithConfig logs one line per request. It also attaches a
// request-scoped logger, carrying request_id, trace ids and the vendor or
// payout id of the route, to both the gin context and the request context so
// FromContext and WithLogger pick it up further down.
func GinMiddlewareWithConfig(logger *zap.Logger, cfg GinConfig) gin.HandlerFunc {
	skip := make(map[string]bool, len(cfg.SkipPaths))
	for _, p := range cfg.SkipPaths {
		skip[p] = true
	}

	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		query := c.Request.URL.RawQuery

		ctx := c.Request.Context()
		requestID := c.GetString(RequestIDField)
		ctx, reqLogger := WithRequestID(ctx, logger, requestID)
		if id := c.Param("id"); id != "" {
			switch route := c.FullPath(); {
			case strings.Contains(route, "/vendors/:id"):
				ctx, reqLogger = WithVendorID(ctx, reqLogger, id)
			case strings.Contains(route, "/payouts/:id"):
				ctx, reqLogger = WithPayoutID(ctx, reqLogger, id)
			}
		}
		reqLogger = reqLogger.With(append(TraceFields(ctx),
			zap.String("method", c.Request.Method),
			zap.String("path", path),
		)...)
		c.Request = c.Request.WithContext(WithContext(ctx, reqLogger))
		c.Set(ginLoggerKey, reqLogger)

		c.Next()

		if skip[path] {
			return
		}

		status := c.Writer.Status()
		fields := []zap.Field{
			zap.Int("status", status),
			zap.Duration("latency", time.Since(start)),
			zap.String("client_ip", c.ClientIP()),
			zap.String("user_agent", c.Request.UserAgent()),
			zap.Int("body_size", c.Writer.Size()),
		}
		if route := c.FullPath(); route != "" {
			fields = append(fields, zap.String("route", route))
		}
		if query != "" {
			fields = append(fields, zap.String("query", query))
		}
		if len(c.Errors) > 0 {
			fields = append(fields, zap.Strings("errors", c.Errors.Errors()))
		}

		msg := "HTTP Request"
		switch {
		case status >= http.StatusInternalServerError:
			reqLogger.Error(msg, fields...)
		case status >= http.StatusBadRequest:
			reqLogger.Warn(msg, fields...)
		default:
			reqLogger.Info(msg, fields...)
		}
	}
}

// Recovery turns a handler panic into a 500 in the standard error envelope
// and logs it with the stack
func Recovery(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if err := recover(); err != nil {
				requestID := c.GetString(RequestIDField)
				logger.Error("Panic recovered",
					zap.String("request_id", requestID),
					zap.String("method", c.Request.Method),
					zap.String("path", c.Request.URL.Path),
					zap.Any("error", err),
					zap.Stack("stacktrace"),
				)

				c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
					"success": false,
					"error": gin.H{
						"code":       "ERR_INTERNAL",
						"message":    "An unexpected error occurred",
						"request_id": requestID,
					},
				})
			}
		}()
		c.Next()
	}
}

// GetGinLogger returns the request-scoped logger, or a no-op logger outside
// GinMiddleware
func GetGinLogger(c *gin.Context) *zap.Logger {
	if l, ok := c.Get(ginLoggerKey); ok {
		if zl, ok := l.(*zap.Logger); ok {
			return zl
		}
	}
	return zap.NewNop()
}
