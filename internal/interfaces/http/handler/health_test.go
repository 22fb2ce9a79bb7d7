package handler

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newHealthRouter(h *HealthHandler) *gin.Engine {
	r := gin.New()
	r.GET("/health/live", h.Live)
	r.GET("/health/ready", h.Ready)
	return r
}

func TestHealthHandler_Live(t *testing.T) {
	h := NewHealthHandler("1.2.3", 0, nil)
	assert.Equal(t, 2*time.Second, h.timeout)

	w := performRequest(newHealthRouter(h), http.MethodGet, "/health/live", "")

	require.Equal(t, http.StatusOK, w.Code)
	var got LiveResponse
	decodeData(t, decodeResponse(t, w), &got)
	assert.Equal(t, "ok", got.Status)
	assert.Equal(t, "1.2.3", got.Version)
	assert.NotEmpty(t, got.GoVersion)
}

func TestHealthHandler_Ready(t *testing.T) {
	ok := func(context.Context) error { return nil }

	t.Run("all checks pass", func(t *testing.T) {
		h := NewHealthHandler("dev", time.Second, map[string]HealthCheck{"database": ok, "redis": ok})
		w := performRequest(newHealthRouter(h), http.MethodGet, "/health/ready", "")

		require.Equal(t, http.StatusOK, w.Code)
		var got ReadyResponse
		decodeData(t, decodeResponse(t, w), &got)
		assert.Equal(t, map[string]string{"database": "ok", "redis": "ok"}, got.Checks)
	})

	t.Run("failing check", func(t *testing.T) {
		h := NewHealthHandler("dev", time.Second, map[string]HealthCheck{
			"database": ok,
			"redis":    func(context.Context) error { return errors.New("dial tcp: connection refused") },
		})
		w := performRequest(newHealthRouter(h), http.MethodGet, "/health/ready", "")

		require.Equal(t, http.StatusServiceUnavailable, w.Code)
		resp := decodeResponse(t, w)
		assert.False(t, resp.Success)
		var got ReadyResponse
		decodeData(t, resp, &got)
		assert.Equal(t, "unavailable", got.Status)
		assert.Equal(t, "ok", got.Checks["database"])
		assert.Contains(t, got.Checks["redis"], "connection refused")
	})

	t.Run("check is bounded by timeout", func(t *testing.T) {
		slow := func(ctx context.Context) error {
			<-ctx.Done()
			return ctx.Err()
		}
		h := NewHealthHandler("dev", 10*time.Millisecond, map[string]HealthCheck{"database": slow})
		w := performRequest(newHealthRouter(h), http.MethodGet, "/health/ready", "")
		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	})
}
