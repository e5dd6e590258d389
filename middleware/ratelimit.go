package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// limiterIdleTTL is how long an untouched per-user bucket survives. At
// any sane rate the bucket has fully refilled by then, so dropping it
// does not grant extra requests.
const limiterIdleTTL = 10 * time.Minute

type userLimiter struct {
	*rate.Limiter
	lastSeen time.Time
}

// userLimiters keeps one token bucket per authenticated user. Idle
// entries are swept out so the map does not grow with every user ever
// seen.
type userLimiters struct {
	mu        sync.Mutex
	limiters  map[string]*userLimiter
	limit     rate.Limit
	burst     int
	lastSweep time.Time
	now       func() time.Time
}

func newUserLimiters(perMinute, burst int) *userLimiters {
	return &userLimiters{
		limiters:  make(map[string]*userLimiter),
		limit:     rate.Every(time.Minute / time.Duration(perMinute)),
		burst:     burst,
		lastSweep: time.Now(),
		now:       time.Now,
	}
}

func (u *userLimiters) get(userID string) *rate.Limiter {
	u.mu.Lock()
	defer u.mu.Unlock()

	now := u.now()
	if now.Sub(u.lastSweep) >= limiterIdleTTL {
		for id, l := range u.limiters {
			if now.Sub(l.lastSeen) >= limiterIdleTTL {
				delete(u.limiters, id)
			}
		}
		u.lastSweep = now
	}

	lim, ok := u.limiters[userID]
	if !ok {
		lim = &userLimiter{Limiter: rate.NewLimiter(u.limit, u.burst)}
		u.limiters[userID] = lim
	}
	lim.lastSeen = now
	return lim.Limiter
}

// RateLimit rejects requests beyond perMinute per user. Must run after
// Auth so the user identity is available.
func RateLimit(perMinute, burst int) gin.HandlerFunc {
	limiters := newUserLimiters(perMinute, burst)

	return func(c *gin.Context) {
		if !limiters.get(UserID(c)).Allow() {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"success": false,
				"error":   gin.H{"message": "rate limit exceeded", "type": "RateLimited"},
			})
			return
		}
		c.Next()
	}
}
