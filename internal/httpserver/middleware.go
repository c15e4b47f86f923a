package httpserver

import (
	"crypto/subtle"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"milaf-storefront/internal/identity"
)

const (
	principalKey = "principal"
	guestIDKey   = "guestID"

	anonymousTokenHeader = "X-Anonymous-Token"
	adminKeyHeader       = "X-Admin-Key"
)

func loggerMiddleware(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		query := c.Request.URL.RawQuery

		c.Next()

		logger.Info("http request",
			zap.String("method", c.Request.Method),
			zap.String("path", path),
			zap.String("query", query),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
			zap.String("client_ip", c.ClientIP()),
		)
	}
}

// requireUser resolves the bearer token to a principal.
func requireUser(verifier TokenVerifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := c.GetHeader("Authorization")
		token, ok := strings.CutPrefix(raw, "Bearer ")
		if !ok || strings.TrimSpace(token) == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, errorBody{Error: errorDetail{
				Code:    "unauthenticated",
				Message: "missing bearer token",
			}})
			return
		}
		p, err := verifier.Verify(strings.TrimSpace(token))
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, errorBody{Error: errorDetail{
				Code:    "unauthenticated",
				Message: "invalid or expired token",
			}})
			return
		}
		c.Set(principalKey, p)
		c.Next()
	}
}

func principalFrom(c *gin.Context) identity.Principal {
	v, _ := c.Get(principalKey)
	p, _ := v.(identity.Principal)
	return p
}

// requireGuest resolves X-Anonymous-Token to a guest id.
func requireGuest(sessions GuestSessions) gin.HandlerFunc {
	return func(c *gin.Context) {
		guestID, err := guestFromHeader(c, sessions)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, errorBody{Error: errorDetail{
				Code:    "unauthenticated",
				Message: err.Error(),
			}})
			return
		}
		c.Set(guestIDKey, guestID)
		c.Next()
	}
}

func guestFromHeader(c *gin.Context, sessions GuestSessions) (string, error) {
	token := strings.TrimSpace(c.GetHeader(anonymousTokenHeader))
	if token == "" {
		return "", errors.New("missing anonymous token")
	}
	guestID, err := sessions.LookupByToken(c.Request.Context(), token)
	if err != nil {
		return "", errors.New("invalid anonymous token")
	}
	return guestID, nil
}

// requireAdmin guards operator routes. An empty configured key disables them.
func requireAdmin(key string) gin.HandlerFunc {
	return func(c *gin.Context) {
		got := c.GetHeader(adminKeyHeader)
		if key == "" || subtle.ConstantTimeCompare([]byte(got), []byte(key)) != 1 {
			c.AbortWithStatusJSON(http.StatusForbidden, errorBody{Error: errorDetail{
				Code:    "forbidden",
				Message: "admin key required",
			}})
			return
		}
		c.Next()
	}
}

// clientLimiter hands out one token bucket per client IP. Buckets idle for
// longer than idleTTL are dropped on the next sweep.
type clientLimiter struct {
	mu        sync.Mutex
	limit     rate.Limit
	burst     int
	idleTTL   time.Duration
	clients   map[string]*visitor
	lastSweep time.Time
	now       func() time.Time
}

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

func newClientLimiter(limit rate.Limit, burst int) *clientLimiter {
	if burst <= 0 {
		burst = 1
	}
	return &clientLimiter{
		limit:   limit,
		burst:   burst,
		idleTTL: 10 * time.Minute,
		clients: make(map[string]*visitor),
		now:     time.Now,
	}
}

func (l *clientLimiter) allow(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if now.Sub(l.lastSweep) > l.idleTTL {
		for k, v := range l.clients {
			if now.Sub(v.lastSeen) > l.idleTTL {
				delete(l.clients, k)
			}
		}
		l.lastSweep = now
	}

	v, ok := l.clients[key]
	if !ok {
		v = &visitor{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.clients[key] = v
	}
	v.lastSeen = now
	return v.limiter.AllowN(now, 1)
}

func rateLimit(l *clientLimiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !l.allow(c.ClientIP()) {
			c.Header("Retry-After", "1")
			c.AbortWithStatusJSON(http.StatusTooManyRequests, errorBody{Error: errorDetail{
				Code:    "rate_limited",
				Message: "too many requests",
			}})
			return
		}
		c.Next()
	}
}
