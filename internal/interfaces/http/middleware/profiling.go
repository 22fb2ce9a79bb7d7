package middleware

import (
	"context"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/marketplace/payouts/internal/infrastructure/telemetry"
)

// ProfilingLabels tags the request goroutine with pyroscope labels for its
// method, route and controller. Health probes run unlabelled.
func ProfilingLabels(enabled bool) gin.HandlerFunc {
	if !enabled {
		return func(c *gin.Context) { c.Next() }
	}
	return func(c *gin.Context) {
		if strings.HasPrefix(c.Request.URL.Path, "/health") {
			c.Next()
			return
		}
		route := c.FullPath()
		labels := map[string]string{
			telemetry.ProfilingLabelMethod:     c.Request.Method,
			telemetry.ProfilingLabelRoute:      route,
			telemetry.ProfilingLabelController: controllerFromRoute(route),
		}
		telemetry.WithProfilingLabels(c.Request.Context(), labels, func(ctx context.Context) {
			c.Request = c.Request.WithContext(ctx)
			c.Next()
		})
	}
}

// controllerFromRoute names the resource a route serves, skipping the api,
// version and admin prefixes: "/api/v1/admin/payouts/:id/retry" is "payouts".
// A route starting with a parameter has none.
func controllerFromRoute(route string) string {
	for part := range strings.SplitSeq(strings.Trim(route, "/"), "/") {
		if part == "" || part == "api" || part == "admin" || isVersionSegment(part) {
			continue
		}
		if part[0] == ':' || part[0] == '*' {
			return ""
		}
		return part
	}
	return ""
}

// isVersionSegment matches v1, V2, v10
func isVersionSegment(segment string) bool {
	if len(segment) < 2 || (segment[0] != 'v' && segment[0] != 'V') {
		return false
	}
	_, err := strconv.ParseUint(segment[1:], 10, 16)
	return err == nil
}
