package http

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"github.com/vovakirdan/wirechat-rooms/internal/config"
)

// newActionLimiter builds the limiter attached to one websocket connection.
func newActionLimiter(cfg config.RealtimeConfig) *rate.Limiter {
	if cfg.ActionRate <= 0 {
		return nil
	}
	return rate.NewLimiter(rate.Limit(cfg.ActionRate), cfg.ActionBurst)
}

type limiterEntry struct {
	l        *rate.Limiter
	lastSeen time.Time
}

// limiterPool keeps one limiter per key and forgets keys idle for longer than ttl.
type limiterPool struct {
	mu    sync.Mutex
	m     map[string]*limiterEntry
	rps   float64
	burst int
	ttl   time.Duration
	now   func() time.Time
}

func newLimiterPool(cfg config.RateLimitConfig) *limiterPool {
	return &limiterPool{
		m:     make(map[string]*limiterEntry),
		rps:   cfg.RPS,
		burst: cfg.Burst,
		ttl:   10 * time.Minute,
		now:   time.Now,
	}
}

func (p *limiterPool) get(key string) *rate.Limiter {
	p.mu.Lock()
	defer p.mu.Unlock()

	now := p.now()
	if e, ok := p.m[key]; ok {
		e.lastSeen = now
		return e.l
	}

	// Sweep lazily instead of running a cleanup goroutine.
	cutoff := now.Add(-p.ttl)
	for k, e := range p.m {
		if e.lastSeen.Before(cutoff) {
			delete(p.m, k)
		}
	}

	l := rate.NewLimiter(rate.Limit(p.rps), p.burst)
	p.m[key] = &limiterEntry{l: l, lastSeen: now}
	return l
}

// Allow reports whether a request for key may proceed.
func (p *limiterPool) Allow(key string) bool {
	return p.get(key).Allow()
}

// RateLimitMiddleware rejects requests from client addresses that exceed the pool's rate.
func RateLimitMiddleware(pool *limiterPool) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !pool.Allow(c.ClientIP()) {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, ErrorResponse{Error: "too many requests"})
			return
		}
		c.Next()
	}
}
