package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func TestRateLimiter_Allow(t *testing.T) {
	t.Run("allows requests within limit", func(t *testing.T) {
		limiter := NewRateLimiter(5, time.Minute)

		for i := 0; i < 5; i++ {
			assert.True(t, limiter.Allow("tn_dental_clinic"), "request %d should be allowed", i+1)
		}
		assert.False(t, limiter.Allow("tn_dental_clinic"))
	})

	t.Run("tenants do not share a bucket", func(t *testing.T) {
		limiter := NewRateLimiter(2, time.Minute)

		assert.True(t, limiter.Allow("tn_dental_clinic"))
		assert.True(t, limiter.Allow("tn_dental_clinic"))
		assert.False(t, limiter.Allow("tn_dental_clinic"))

		assert.True(t, limiter.Allow("tn_hair_salon"))
	})

	t.Run("window expiry refills the bucket", func(t *testing.T) {
		limiter := NewRateLimiter(1, 50*time.Millisecond)

		assert.True(t, limiter.Allow("tn_dental_clinic"))
		assert.False(t, limiter.Allow("tn_dental_clinic"))

		time.Sleep(60 * time.Millisecond)

		assert.True(t, limiter.Allow("tn_dental_clinic"))
	})

	t.Run("remaining tracks consumed tokens", func(t *testing.T) {
		limiter := NewRateLimiter(5, time.Minute)

		assert.Equal(t, 5, limiter.Remaining("tn_dental_clinic"))

		limiter.Allow("tn_dental_clinic")
		limiter.Allow("tn_dental_clinic")

		assert.Equal(t, 3, limiter.Remaining("tn_dental_clinic"))
	})

	t.Run("concurrent callers never exceed the limit", func(t *testing.T) {
		limiter := NewRateLimiter(100, time.Minute)

		var wg sync.WaitGroup
		var mu sync.Mutex
		allowed := 0
		for i := 0; i < 150; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				if limiter.Allow("tn_dental_clinic") {
					mu.Lock()
					allowed++
					mu.Unlock()
				}
			}()
		}
		wg.Wait()

		assert.Equal(t, 100, allowed)
	})
}

func newRateLimitedRouter(mw gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(mw)
	r.GET("/api/v1/usage/status", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"remaining_seconds": 900})
	})
	return r
}

func TestRateLimit(t *testing.T) {
	t.Run("passes requests within the limit and sets headers", func(t *testing.T) {
		router := newRateLimitedRouter(RateLimit(NewRateLimiter(3, time.Minute)))

		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/usage/status", nil))

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "3", w.Header().Get("X-RateLimit-Limit"))
		assert.Equal(t, "2", w.Header().Get("X-RateLimit-Remaining"))
	})

	t.Run("returns 429 once the limit is spent", func(t *testing.T) {
		router := newRateLimitedRouter(RateLimit(NewRateLimiter(2, time.Minute)))

		for i := 0; i < 2; i++ {
			w := httptest.NewRecorder()
			router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/usage/status", nil))
			assert.Equal(t, http.StatusOK, w.Code)
		}

		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/usage/status", nil))

		assert.Equal(t, http.StatusTooManyRequests, w.Code)
		assert.Contains(t, w.Body.String(), "RATE_LIMIT_EXCEEDED")
	})

	t.Run("tenant header keys the bucket per tenant", func(t *testing.T) {
		router := newRateLimitedRouter(RateLimit(NewRateLimiter(1, time.Minute)))

		get := func(tenantID string) int {
			req := httptest.NewRequest(http.MethodGet, "/api/v1/usage/status", nil)
			req.Header.Set("X-Tenant-ID", tenantID)
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)
			return w.Code
		}

		assert.Equal(t, http.StatusOK, get("tn_dental_clinic"))
		assert.Equal(t, http.StatusTooManyRequests, get("tn_dental_clinic"))
		assert.Equal(t, http.StatusOK, get("tn_hair_salon"))
	})
}

type stubRequestLimiter struct {
	allowed bool
	err     error
	keys    []string
}

func (s *stubRequestLimiter) Allow(_ context.Context, key string) (bool, error) {
	s.keys = append(s.keys, key)
	return s.allowed, s.err
}

func TestRateLimitWithStore(t *testing.T) {
	t.Run("allowed request passes through", func(t *testing.T) {
		limiter := &stubRequestLimiter{allowed: true}
		router := newRateLimitedRouter(RateLimitWithStore(limiter, nil, nil))

		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/usage/status", nil))

		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("exhausted window returns 429", func(t *testing.T) {
		limiter := &stubRequestLimiter{allowed: false}
		router := newRateLimitedRouter(RateLimitWithStore(limiter, nil, nil))

		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/usage/status", nil))

		assert.Equal(t, http.StatusTooManyRequests, w.Code)
		assert.Contains(t, w.Body.String(), "RATE_LIMIT_EXCEEDED")
	})

	t.Run("store failure fails open", func(t *testing.T) {
		limiter := &stubRequestLimiter{allowed: false, err: errors.New("redis: connection refused")}
		router := newRateLimitedRouter(RateLimitWithStore(limiter, nil, nil))

		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/usage/status", nil))

		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("keys by authenticated tenant", func(t *testing.T) {
		limiter := &stubRequestLimiter{allowed: true}

		gin.SetMode(gin.TestMode)
		router := gin.New()
		router.Use(func(c *gin.Context) {
			c.Set(JWTTenantIDKey, "tn_dental_clinic")
		})
		router.Use(RateLimitWithStore(limiter, TenantRateLimitKey, nil))
		router.GET("/api/v1/usage/status", func(c *gin.Context) {
			c.Status(http.StatusOK)
		})

		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/usage/status", nil))

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, []string{"tn_dental_clinic"}, limiter.keys)
	})
}

func TestTenantRateLimitKey(t *testing.T) {
	gin.SetMode(gin.TestMode)

	t.Run("falls back to client IP without auth", func(t *testing.T) {
		c, _ := gin.CreateTestContext(httptest.NewRecorder())
		c.Request = httptest.NewRequest(http.MethodGet, "/api/v1/usage/status", nil)
		c.Request.RemoteAddr = "203.0.113.9:4411"

		assert.Equal(t, "203.0.113.9", TenantRateLimitKey(c))
	})

	t.Run("prefers the JWT tenant", func(t *testing.T) {
		c, _ := gin.CreateTestContext(httptest.NewRecorder())
		c.Request = httptest.NewRequest(http.MethodGet, "/api/v1/usage/status", nil)
		c.Set(JWTTenantIDKey, "tn_hair_salon")

		assert.Equal(t, "tn_hair_salon", TenantRateLimitKey(c))
	})
}
