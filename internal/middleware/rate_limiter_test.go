package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func newLimitedRouter(rps, burst int) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(NewRateLimiter(rps, burst).Middleware())

	ok := func(c *gin.Context) { c.Status(http.StatusOK) }
	r.GET("/api/v1/gamification/levels", ok)
	r.GET("/api/v1/notifications/stream", ok)
	r.GET("/ws", ok)
	return r
}

func get(r *gin.Engine, path, remoteAddr string) int {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	req.RemoteAddr = remoteAddr
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w.Code
}

func TestRateLimiter_RejectsPastBurst(t *testing.T) {
	r := newLimitedRouter(1, 2)

	assert.Equal(t, http.StatusOK, get(r, "/api/v1/gamification/levels", "10.0.0.1:1000"))
	assert.Equal(t, http.StatusOK, get(r, "/api/v1/gamification/levels", "10.0.0.1:1000"))
	assert.Equal(t, http.StatusTooManyRequests, get(r, "/api/v1/gamification/levels", "10.0.0.1:1000"))
}

func TestRateLimiter_BucketPerClientIP(t *testing.T) {
	r := newLimitedRouter(1, 1)

	assert.Equal(t, http.StatusOK, get(r, "/api/v1/gamification/levels", "10.0.0.1:1000"))
	assert.Equal(t, http.StatusTooManyRequests, get(r, "/api/v1/gamification/levels", "10.0.0.1:1000"))
	assert.Equal(t, http.StatusOK, get(r, "/api/v1/gamification/levels", "10.0.0.2:1000"))
}

func TestRateLimiter_StreamEndpointsExempt(t *testing.T) {
	r := newLimitedRouter(1, 1)

	assert.Equal(t, http.StatusOK, get(r, "/api/v1/gamification/levels", "10.0.0.1:1000"))
	assert.Equal(t, http.StatusTooManyRequests, get(r, "/api/v1/gamification/levels", "10.0.0.1:1000"))

	for i := 0; i < 5; i++ {
		assert.Equal(t, http.StatusOK, get(r, "/api/v1/notifications/stream", "10.0.0.1:1000"))
		assert.Equal(t, http.StatusOK, get(r, "/ws", "10.0.0.1:1000"))
	}
}
