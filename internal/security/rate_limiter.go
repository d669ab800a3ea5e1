package security

import (
	"sync"
	"time"

	"github.com/smartblur/smartblur/internal/config"
	"golang.org/x/time/rate"
)

// RateLimiter throttles upload requests per client IP
type RateLimiter struct {
	config   *config.SecurityConfig
	mu       sync.Mutex
	visitors map[string]*visitor
}

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewRateLimiter creates a rate limiter from the security configuration
func NewRateLimiter(cfg *config.SecurityConfig) *RateLimiter {
	return &RateLimiter{
		config:   cfg,
		visitors: make(map[string]*visitor),
	}
}

// Allow reports whether a request from the given client IP may proceed
func (r *RateLimiter) Allow(clientIP string) bool {
	if !r.config.RateLimit.Enabled {
		return true
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	v, exists := r.visitors[clientIP]
	if !exists {
		perSecond := rate.Limit(float64(r.config.RateLimit.RequestsPerMin) / 60.0)
		v = &visitor{limiter: rate.NewLimiter(perSecond, r.config.RateLimit.Burst)}
		r.visitors[clientIP] = v
	}
	v.lastSeen = time.Now()

	return v.limiter.Allow()
}

// CleanupOldVisitors drops limiters that have been idle for over an hour
func (r *RateLimiter) CleanupOldVisitors() {
	r.mu.Lock()
	defer r.mu.Unlock()

	cutoff := time.Now().Add(-time.Hour)
	for ip, v := range r.visitors {
		if v.lastSeen.Before(cutoff) {
			delete(r.visitors, ip)
		}
	}
}

// StartCleanupRoutine starts a background routine to clean up idle limiters
func (r *RateLimiter) StartCleanupRoutine() {
	go func() {
		ticker := time.NewTicker(30 * time.Minute)
		defer ticker.Stop()

		for range ticker.C {
			r.CleanupOldVisitors()
		}
	}()
}
