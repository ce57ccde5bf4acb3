package middleware

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"earnx/config"
	"earnx/internal/auth"
	"earnx/internal/domain"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func testJWT() *config.JWTConfig {
	return &config.JWTConfig{
		AccessSecret:  "mw-access",
		RefreshSecret: "mw-refresh",
		AccessExpiry:  time.Minute,
		RefreshExpiry: time.Hour,
		Issuer:        "earnx-test",
	}
}

func token(t *testing.T, cfg *config.JWTConfig, userID, role string) string {
	t.Helper()
	tok, err := auth.GenerateAccessToken(cfg, userID, userID+"@example.com", role)
	require.NoError(t, err)
	return tok
}

func newRouter(cfg *config.JWTConfig) *gin.Engine {
	r := gin.New()
	r.GET("/me", AuthRequired(cfg), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"user_id": GetUserID(c)})
	})
	r.GET("/admin", AuthRequired(cfg), AdminRequired(), func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})
	r.GET("/staff", AuthRequired(cfg), RequireRole(domain.RoleAdmin, "SUPPORT"), func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})
	return r
}

func do(r http.Handler, path, bearer string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if bearer != "" {
		req.Header.Set("Authorization", bearer)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestAuthRequired(t *testing.T) {
	cfg := testJWT()
	r := newRouter(cfg)

	assert.Equal(t, http.StatusUnauthorized, do(r, "/me", "").Code)
	assert.Equal(t, http.StatusUnauthorized, do(r, "/me", "Token abc").Code)
	assert.Equal(t, http.StatusUnauthorized, do(r, "/me", "Bearer not-a-jwt").Code)

	w := do(r, "/me", "Bearer "+token(t, cfg, "u-42", domain.RoleUser))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"user_id":"u-42"}`, w.Body.String())
}

func TestAdminRequired(t *testing.T) {
	cfg := testJWT()
	r := newRouter(cfg)

	assert.Equal(t, http.StatusForbidden, do(r, "/admin", "Bearer "+token(t, cfg, "u-1", domain.RoleUser)).Code)
	assert.Equal(t, http.StatusNoContent, do(r, "/admin", "Bearer "+token(t, cfg, "a-1", domain.RoleAdmin)).Code)
	assert.Equal(t, http.StatusForbidden, do(r, "/staff", "Bearer "+token(t, cfg, "u-1", domain.RoleUser)).Code)
	assert.Equal(t, http.StatusNoContent, do(r, "/staff", "Bearer "+token(t, cfg, "s-1", "SUPPORT")).Code)
}

func TestRateLimit(t *testing.T) {
	log := logrus.New()
	log.SetOutput(&bytes.Buffer{})
	rl := NewRateLimiter(0.001, 2, log)

	r := gin.New()
	r.GET("/ping", RateLimit(rl), func(c *gin.Context) { c.Status(http.StatusOK) })

	assert.Equal(t, http.StatusOK, do(r, "/ping", "").Code)
	assert.Equal(t, http.StatusOK, do(r, "/ping", "").Code)
	w := do(r, "/ping", "")
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "1", w.Header().Get("Retry-After"))
	assert.Contains(t, w.Body.String(), "RATE_LIMITED")

	assert.True(t, rl.Allow("someone-else"))
	assert.Equal(t, 2, rl.size())
	rl.idle = -time.Second
	rl.Cleanup()
	assert.Equal(t, 0, rl.size())
}

func TestRequestLogger(t *testing.T) {
	var buf bytes.Buffer
	log := logrus.New()
	log.SetOutput(&buf)
	log.SetFormatter(&logrus.JSONFormatter{})

	r := gin.New()
	r.Use(RequestLogger(log), Metrics())
	r.GET("/items/:id", func(c *gin.Context) { c.Status(http.StatusTeapot) })

	req := httptest.NewRequest(http.MethodGet, "/items/7", nil)
	req.Header.Set(RequestIDHeader, "req-123")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, "req-123", w.Header().Get(RequestIDHeader))
	assert.Contains(t, buf.String(), `"request_id":"req-123"`)
	assert.Contains(t, buf.String(), `"status":418`)
	assert.Contains(t, buf.String(), `"level":"warning"`)

	w = do(r, "/items/8", "")
	assert.NotEmpty(t, w.Header().Get(RequestIDHeader))
}
