package auth

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/payforge/console/internal/gatewayapi"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fakeVerifier struct {
	mu    sync.Mutex
	users map[string]*gatewayapi.User
	calls int
}

func (v *fakeVerifier) CurrentUser(ctx context.Context, token string) (*gatewayapi.User, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.calls++
	u, ok := v.users[token]
	if !ok {
		return nil, gatewayapi.ErrUnauthorized
	}
	return u, nil
}

func merchantVerifier() *fakeVerifier {
	return &fakeVerifier{users: map[string]*gatewayapi.User{
		"tok-merchant": {ID: "u1", Email: "m@example.com", Name: "Merchant", Role: "merchant"},
		"tok-admin":    {ID: "u2", Email: "a@example.com", Name: "Admin", Role: RoleAdmin},
	}}
}

func doRequest(r *gin.Engine, cookie string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	if cookie != "" {
		req.AddCookie(&http.Cookie{Name: gatewayapi.SessionCookie, Value: cookie})
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestRequirePageRedirectsAnonymous(t *testing.T) {
	g := NewGuard(merchantVerifier(), slog.Default())
	r := gin.New()
	r.GET("/protected", g.RequirePage(), func(c *gin.Context) { c.Status(http.StatusOK) })

	w := doRequest(r, "")
	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "/login", w.Header().Get("Location"))
}

func TestRequireAPIRejectsAnonymousWithJSON(t *testing.T) {
	g := NewGuard(merchantVerifier(), slog.Default())
	r := gin.New()
	r.GET("/protected", g.RequireAPI(), func(c *gin.Context) { c.Status(http.StatusOK) })

	w := doRequest(r, "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "authentication required")
}

func TestRequireAPIRejectsUnknownToken(t *testing.T) {
	g := NewGuard(merchantVerifier(), slog.Default())
	r := gin.New()
	r.GET("/protected", g.RequireAPI(), func(c *gin.Context) { c.Status(http.StatusOK) })

	w := doRequest(r, "tok-bogus")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAuthenticatedRequestExposesUser(t *testing.T) {
	g := NewGuard(merchantVerifier(), slog.Default())
	r := gin.New()
	r.GET("/protected", g.RequireAPI(), func(c *gin.Context) {
		user, ok := UserFrom(c)
		require.True(t, ok)
		c.String(http.StatusOK, user.Email)
	})

	w := doRequest(r, "tok-merchant")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "m@example.com", w.Body.String())
}

func TestIdentityCache(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }
	v := merchantVerifier()
	g := NewGuard(v, slog.Default(), WithCacheTTL(30*time.Second), WithClock(clock))
	r := gin.New()
	r.GET("/protected", g.RequireAPI(), func(c *gin.Context) { c.Status(http.StatusOK) })

	doRequest(r, "tok-merchant")
	doRequest(r, "tok-merchant")
	assert.Equal(t, 1, v.calls, "second request within TTL hits the cache")

	now = now.Add(time.Minute)
	doRequest(r, "tok-merchant")
	assert.Equal(t, 2, v.calls, "expired cache entry re-verifies")
}

func TestInvalidateDropsCachedIdentity(t *testing.T) {
	v := merchantVerifier()
	g := NewGuard(v, slog.Default())
	r := gin.New()
	r.GET("/protected", g.RequireAPI(), func(c *gin.Context) { c.Status(http.StatusOK) })

	doRequest(r, "tok-merchant")
	g.Invalidate("tok-merchant")

	// Token revoked at the backend; next request must re-verify and fail.
	v.mu.Lock()
	delete(v.users, "tok-merchant")
	v.mu.Unlock()

	w := doRequest(r, "tok-merchant")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRequireRole(t *testing.T) {
	g := NewGuard(merchantVerifier(), slog.Default())
	r := gin.New()
	r.GET("/protected", g.RequireAPI(), g.RequireRole(RoleAdmin), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	w := doRequest(r, "tok-merchant")
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = doRequest(r, "tok-admin")
	assert.Equal(t, http.StatusOK, w.Code)
}
