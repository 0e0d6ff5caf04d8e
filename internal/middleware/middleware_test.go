package middleware

import (
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/hotel-reservation-engine/internal/config"
	"github.com/iliyamo/hotel-reservation-engine/internal/model"
	"github.com/iliyamo/hotel-reservation-engine/internal/utils"
)

const secret = "test-secret"

func whoami(c echo.Context) error {
	a, _ := ActorFrom(c)
	return c.JSON(http.StatusOK, a)
}

func serve(e *echo.Echo, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestJWTAuth(t *testing.T) {
	e := echo.New()
	e.GET("/me", whoami, JWTAuth(secret))

	tok, err := utils.NewAccessToken(secret, "c42", "client", time.Minute)
	require.NoError(t, err)
	rec := serve(e, tok.Token)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"id":"c42","role":"CLIENT"}`, rec.Body.String())

	assert.Equal(t, http.StatusUnauthorized, serve(e, "").Code)

	other, err := utils.NewAccessToken("another-secret", "c42", "CLIENT", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, serve(e, other.Token).Code)

	unknownRole, err := utils.NewAccessToken(secret, "c42", "JANITOR", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, serve(e, unknownRole.Token).Code)

	expired, err := utils.NewAccessToken(secret, "c42", "CLIENT", -time.Minute)
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, serve(e, expired.Token).Code)
}

func TestJWTAuth_NumericSubject(t *testing.T) {
	e := echo.New()
	e.GET("/me", whoami, JWTAuth(secret))

	raw, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":  7,
		"role": "MANAGER",
		"exp":  time.Now().Add(time.Minute).Unix(),
	}).SignedString([]byte(secret))
	require.NoError(t, err)

	rec := serve(e, raw)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"id":"7","role":"MANAGER"}`, rec.Body.String())
}

func TestRequireRole(t *testing.T) {
	e := echo.New()
	e.GET("/me", whoami, JWTAuth(secret), RequireRole(model.RoleReceptionist))

	for role, want := range map[string]int{
		"CLIENT":       http.StatusForbidden,
		"RECEPTIONIST": http.StatusOK,
		"MANAGER":      http.StatusOK,
		"ADMIN":        http.StatusOK,
		"SYSTEM":       http.StatusForbidden,
	} {
		tok, err := utils.NewAccessToken(secret, "u1", role, time.Minute)
		require.NoError(t, err)
		assert.Equal(t, want, serve(e, tok.Token).Code, role)
	}
}

func TestTokenBucket(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	cfg := config.RateLimitConfig{
		Enabled:        true,
		Capacity:       2,
		RefillTokens:   1,
		RefillInterval: time.Hour,
		TTL:            2 * time.Hour,
		KeyStrategy:    "actor",
		Prefix:         "rl",
	}
	e := echo.New()
	e.GET("/me", whoami, JWTAuth(secret), NewTokenBucket(cfg, rdb))

	a, err := utils.NewAccessToken(secret, "a", "CLIENT", time.Minute)
	require.NoError(t, err)
	b, err := utils.NewAccessToken(secret, "b", "CLIENT", time.Minute)
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, serve(e, a.Token).Code)
	rec := serve(e, a.Token)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "0", rec.Header().Get("X-RateLimit-Remaining"))

	rec = serve(e, a.Token)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "3600", rec.Header().Get("Retry-After"))
	assert.Equal(t, "0", rec.Header().Get("X-RateLimit-Remaining"))

	// buckets are per actor
	assert.Equal(t, http.StatusOK, serve(e, b.Token).Code)
	assert.True(t, mr.Exists("rl:actor:a"))
	assert.Equal(t, 2*time.Hour, mr.TTL("rl:actor:a"))
	assert.Equal(t, "0", mr.HGet("rl:actor:a", "t"))
}

func TestTokenBucket_RefillsWholeIntervals(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	cfg := config.RateLimitConfig{
		Enabled:        true,
		Capacity:       1,
		RefillTokens:   1,
		RefillInterval: time.Hour,
		TTL:            2 * time.Hour,
		KeyStrategy:    "actor",
		Prefix:         "rl",
	}
	e := echo.New()
	e.GET("/me", whoami, JWTAuth(secret), NewTokenBucket(cfg, rdb))

	tok, err := utils.NewAccessToken(secret, "a", "CLIENT", time.Minute)
	require.NoError(t, err)

	// an empty bucket whose last refill was two intervals ago
	mr.HSet("rl:actor:a", "t", "0", "ts", strconv.FormatInt(time.Now().Add(-2*time.Hour).UnixMilli(), 10))

	rec := serve(e, tok.Token)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "0", rec.Header().Get("X-RateLimit-Remaining"), "refill is capped at capacity")
	assert.Equal(t, http.StatusTooManyRequests, serve(e, tok.Token).Code)
}

func TestTokenBucket_DisabledPassesThrough(t *testing.T) {
	e := echo.New()
	e.GET("/me", whoami, JWTAuth(secret), NewTokenBucket(config.RateLimitConfig{Enabled: false}, nil))

	tok, err := utils.NewAccessToken(secret, "a", "CLIENT", time.Minute)
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		assert.Equal(t, http.StatusOK, serve(e, tok.Token).Code)
	}
}
