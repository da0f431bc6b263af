package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func TestAllow(t *testing.T) {
	t.Run("burst is twice the rate", func(t *testing.T) {
		limiter := NewRateLimiter(5)
		allowed := 0
		for i := 0; i < 20; i++ {
			if limiter.Allow("client") {
				allowed++
			}
		}
		assert.GreaterOrEqual(t, allowed, 10)
		assert.Less(t, allowed, 13)
	})

	t.Run("keys are independent", func(t *testing.T) {
		limiter := NewRateLimiter(1)
		for i := 0; i < 5; i++ {
			limiter.Allow("a")
		}
		assert.False(t, limiter.Allow("a"))
		assert.True(t, limiter.Allow("b"))
	})
}

func TestRateLimitMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	limiter := NewRateLimiter(1)
	r := gin.New()
	r.GET("/", RateLimit(limiter), func(c *gin.Context) { c.Status(http.StatusOK) })

	var last int
	for i := 0; i < 5; i++ {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
		last = w.Code
	}
	assert.Equal(t, http.StatusTooManyRequests, last)
}

func TestCleanupOldBuckets(t *testing.T) {
	limiter := NewRateLimiter(1)
	limiter.Allow("stale")

	limiter.mu.Lock()
	limiter.buckets["stale"].lastFill = time.Now().Add(-2 * time.Hour)
	limiter.mu.Unlock()

	limiter.CleanupOldBuckets()

	limiter.mu.Lock()
	_, exists := limiter.buckets["stale"]
	limiter.mu.Unlock()
	assert.False(t, exists)
}
