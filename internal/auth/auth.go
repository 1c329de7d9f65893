// Package auth guards the merchant and admin consoles. The gateway backend
// owns credentials and sessions; the console only relays the session cookie
// and caches the resulting identity briefly so every page load doesn't hit
// the backend.
package auth

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/payforge/console/internal/gatewayapi"
)

// userKey is the gin context key holding the authenticated user.
const userKey = "auth.user"

// RoleAdmin gates the admin console.
const RoleAdmin = "admin"

// Verifier resolves a session token to a user. *gatewayapi.Client satisfies it.
type Verifier interface {
	CurrentUser(ctx context.Context, sessionToken string) (*gatewayapi.User, error)
}

type cacheEntry struct {
	user    *gatewayapi.User
	expires time.Time
}

// Guard authenticates console requests against the gateway, with a short
// per-token cache. Logout invalidates the cached entry immediately.
type Guard struct {
	verifier Verifier
	logger   *slog.Logger
	ttl      time.Duration
	now      func() time.Time

	mu    sync.Mutex
	cache map[string]cacheEntry
}

// Option configures a Guard.
type Option func(*Guard)

// WithCacheTTL overrides the identity cache TTL.
func WithCacheTTL(ttl time.Duration) Option {
	return func(g *Guard) { g.ttl = ttl }
}

// WithClock injects a time source (for testing).
func WithClock(now func() time.Time) Option {
	return func(g *Guard) { g.now = now }
}

// NewGuard creates an auth guard.
func NewGuard(verifier Verifier, logger *slog.Logger, opts ...Option) *Guard {
	g := &Guard{
		verifier: verifier,
		logger:   logger,
		ttl:      30 * time.Second,
		now:      time.Now,
		cache:    make(map[string]cacheEntry),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// resolve returns the user for a session token, consulting the cache first.
func (g *Guard) resolve(ctx context.Context, token string) (*gatewayapi.User, error) {
	g.mu.Lock()
	if e, ok := g.cache[token]; ok && g.now().Before(e.expires) {
		g.mu.Unlock()
		return e.user, nil
	}
	g.mu.Unlock()

	user, err := g.verifier.CurrentUser(ctx, token)
	if err != nil {
		return nil, err
	}

	g.mu.Lock()
	g.cache[token] = cacheEntry{user: user, expires: g.now().Add(g.ttl)}
	g.mu.Unlock()
	return user, nil
}

// Invalidate drops a token from the cache (called on logout).
func (g *Guard) Invalidate(token string) {
	g.mu.Lock()
	delete(g.cache, token)
	g.mu.Unlock()
}

// RequirePage authenticates a console page request. Unauthenticated visitors
// are redirected to the login page.
func (g *Guard) RequirePage() gin.HandlerFunc {
	return g.require(func(c *gin.Context) {
		c.Redirect(http.StatusFound, "/login")
		c.Abort()
	})
}

// RequireAPI authenticates a console API request. Unauthenticated callers get
// a JSON 401; the frontend handles the redirect.
func (g *Guard) RequireAPI() gin.HandlerFunc {
	return g.require(func(c *gin.Context) {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
	})
}

func (g *Guard) require(reject gin.HandlerFunc) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, err := c.Cookie(gatewayapi.SessionCookie)
		if err != nil || token == "" {
			reject(c)
			return
		}

		user, rerr := g.resolve(c.Request.Context(), token)
		if rerr != nil {
			if !errors.Is(rerr, gatewayapi.ErrUnauthorized) {
				g.logger.Warn("identity check failed", "error", rerr)
			}
			reject(c)
			return
		}

		c.Set(userKey, user)
		c.Next()
	}
}

// RequireRole rejects authenticated users lacking the role. Must run after
// RequirePage or RequireAPI.
func (g *Guard) RequireRole(role string) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, ok := UserFrom(c)
		if !ok || user.Role != role {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "insufficient permissions"})
			return
		}
		c.Next()
	}
}

// UserFrom returns the authenticated user set by the guard.
func UserFrom(c *gin.Context) (*gatewayapi.User, bool) {
	v, ok := c.Get(userKey)
	if !ok {
		return nil, false
	}
	user, ok := v.(*gatewayapi.User)
	return user, ok
}
