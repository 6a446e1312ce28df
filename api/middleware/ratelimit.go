package middleware

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/ecoaudit/scanner/config"
	"github.com/ecoaudit/scanner/models"
	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

type limiterEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// limiterSet hands out one token bucket per caller identity.
type limiterSet struct {
	mu      sync.Mutex
	entries map[string]*limiterEntry
	perSec  rate.Limit
	burst   int
	idleTTL time.Duration
	nowFunc func() time.Time
}

func newLimiterSet(cfg config.RateLimitConfig) *limiterSet {
	return &limiterSet{
		entries: make(map[string]*limiterEntry),
		perSec:  rate.Limit(cfg.RequestsPerSecond),
		burst:   cfg.Burst,
		idleTTL: time.Hour,
		nowFunc: time.Now,
	}
}

func (s *limiterSet) get(identity string) *rate.Limiter {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[identity]
	if !ok {
		e = &limiterEntry{limiter: rate.NewLimiter(s.perSec, s.burst)}
		s.entries[identity] = e
	}
	e.lastSeen = s.nowFunc()
	return e.limiter
}

func (s *limiterSet) evictIdle() {
	cutoff := s.nowFunc().Add(-s.idleTTL)
	s.mu.Lock()
	for id, e := range s.entries {
		if e.lastSeen.Before(cutoff) {
			delete(s.entries, id)
		}
	}
	s.mu.Unlock()
}

// RateLimit returns per-identity token-bucket rate limiting. The identity
// is the API key set by Auth, or the client IP when auth is off.
//
// Buckets idle for an hour are evicted every five minutes until ctx ends.
func RateLimit(ctx context.Context, cfg config.RateLimitConfig) gin.HandlerFunc {
	set := newLimiterSet(cfg)

	go func() {
		ticker := time.NewTicker(5 * time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				set.evictIdle()
			case <-ctx.Done():
				return
			}
		}
	}()

	return func(c *gin.Context) {
		identity := c.GetString(ContextKeyAPIKey)
		if identity == "" {
			identity = c.ClientIP()
		}

		if !set.get(identity).Allow() {
			abort(c, http.StatusTooManyRequests, models.ErrCodeRateLimited,
				"rate limit exceeded, please slow down")
			return
		}
		c.Next()
	}
}
