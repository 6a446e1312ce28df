package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/ecoaudit/scanner/config"
	"github.com/ecoaudit/scanner/models"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newEngine(handlers ...gin.HandlerFunc) *gin.Engine {
	r := gin.New()
	r.Use(handlers...)
	r.GET("/ping", func(c *gin.Context) {
		c.String(http.StatusOK, c.GetString(ContextKeyAPIKey))
	})
	return r
}

func do(r http.Handler, header, value string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	if header != "" {
		req.Header.Set(header, value)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) *models.ErrorDetail {
	t.Helper()
	var resp models.ScanResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.False(t, resp.Success)
	require.NotNil(t, resp.Error)
	return resp.Error
}

func TestAuth(t *testing.T) {
	r := newEngine(Auth([]string{"key-a", "key-b"}))

	tests := []struct {
		name       string
		header     string
		value      string
		wantStatus int
		wantBody   string
	}{
		{"x-api-key", "X-API-Key", "key-a", http.StatusOK, "key-a"},
		{"bearer", "Authorization", "Bearer key-b", http.StatusOK, "key-b"},
		{"missing", "", "", http.StatusUnauthorized, ""},
		{"wrong key", "X-API-Key", "nope", http.StatusUnauthorized, ""},
		{"basic auth ignored", "Authorization", "Basic key-a", http.StatusUnauthorized, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(r, tt.header, tt.value)
			assert.Equal(t, tt.wantStatus, w.Code)
			if tt.wantStatus == http.StatusOK {
				assert.Equal(t, tt.wantBody, w.Body.String())
				return
			}
			assert.Equal(t, models.ErrCodeUnauthorized, decodeError(t, w).Code)
		})
	}
}

func TestAuth_NoKeysIsOpen(t *testing.T) {
	r := newEngine(Auth([]string{""}))
	assert.Equal(t, http.StatusOK, do(r, "", "").Code)
}

func TestRateLimit_PerIdentity(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	r := newEngine(
		Auth([]string{"key-a", "key-b"}),
		RateLimit(ctx, config.RateLimitConfig{RequestsPerSecond: 0.001, Burst: 2}),
	)

	assert.Equal(t, http.StatusOK, do(r, "X-API-Key", "key-a").Code)
	assert.Equal(t, http.StatusOK, do(r, "X-API-Key", "key-a").Code)

	w := do(r, "X-API-Key", "key-a")
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, models.ErrCodeRateLimited, decodeError(t, w).Code)

	assert.Equal(t, http.StatusOK, do(r, "X-API-Key", "key-b").Code, "other keys have their own bucket")
}

func TestLimiterSet_EvictIdle(t *testing.T) {
	now := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	set := newLimiterSet(config.RateLimitConfig{RequestsPerSecond: 1, Burst: 1})
	set.nowFunc = func() time.Time { return now }

	set.get("old")
	now = now.Add(2 * time.Hour)
	set.get("fresh")
	set.evictIdle()

	assert.Len(t, set.entries, 1)
	assert.Contains(t, set.entries, "fresh")
}
