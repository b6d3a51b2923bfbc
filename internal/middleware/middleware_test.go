package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/resort-reservation/internal/config"
	"github.com/iliyamo/resort-reservation/internal/model"
	"github.com/iliyamo/resort-reservation/internal/utils"
)

const testSecret = "test-secret"

func whoAmI(c echo.Context) error {
	a, ok := ActorFrom(c)
	if !ok {
		return c.NoContent(http.StatusTeapot)
	}
	return c.JSON(http.StatusOK, echo.Map{"user": a.UserID, "role": a.Role, "email": a.Email})
}

func serve(h echo.HandlerFunc, mw []echo.MiddlewareFunc, header string) *httptest.ResponseRecorder {
	e := echo.New()
	e.GET("/me", h, mw...)
	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	if header != "" {
		req.Header.Set("Authorization", header)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func token(t *testing.T, secret, sub, role string, ttl time.Duration) string {
	t.Helper()
	tok, err := utils.NewAccessToken(secret, sub, "a@b.c", role, ttl)
	require.NoError(t, err)
	return "Bearer " + tok.Token
}

func TestJWTAuth(t *testing.T) {
	auth := []echo.MiddlewareFunc{JWTAuth(testSecret)}

	rec := serve(whoAmI, auth, token(t, testSecret, "guest-1", model.RoleUser, time.Hour))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"user":"guest-1","role":"user","email":"a@b.c"}`, rec.Body.String())

	none512, err := jwt.NewWithClaims(jwt.SigningMethodHS512, jwt.MapClaims{
		"sub": "guest-1", "role": "user", "exp": time.Now().Add(time.Hour).Unix(),
	}).SignedString([]byte(testSecret))
	require.NoError(t, err)

	noSub, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"role": "user", "exp": time.Now().Add(time.Hour).Unix(),
	}).SignedString([]byte(testSecret))
	require.NoError(t, err)

	rejected := map[string]string{
		"missing header": "",
		"not bearer":     "Basic Zm9vOmJhcg==",
		"garbage":        "Bearer not-a-jwt",
		"wrong secret":   token(t, "other-secret", "guest-1", model.RoleUser, time.Hour),
		"expired":        token(t, testSecret, "guest-1", model.RoleUser, -time.Minute),
		"unknown role":   token(t, testSecret, "guest-1", "owner", time.Hour),
		"hs512":          "Bearer " + none512,
		"no subject":     "Bearer " + noSub,
	}
	for name, header := range rejected {
		t.Run(name, func(t *testing.T) {
			rec := serve(whoAmI, auth, header)
			assert.Equal(t, http.StatusUnauthorized, rec.Code)
		})
	}
}

func TestRequireRole(t *testing.T) {
	chain := []echo.MiddlewareFunc{JWTAuth(testSecret), RequireRole(model.RoleAdmin)}

	rec := serve(whoAmI, chain, token(t, testSecret, "guest-1", model.RoleUser, time.Hour))
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Contains(t, rec.Body.String(), `"forbidden"`)

	rec = serve(whoAmI, chain, token(t, testSecret, "admin-1", model.RoleAdmin, time.Hour))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = serve(whoAmI, []echo.MiddlewareFunc{RequireRole(model.RoleAdmin)}, "")
	assert.Equal(t, http.StatusForbidden, rec.Code, "no identity means no role")
}

func TestActorFromWithoutAuth(t *testing.T) {
	rec := serve(whoAmI, nil, "")
	assert.Equal(t, http.StatusTeapot, rec.Code)
}

func TestBuildRateKey(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/v1/reservations", nil)
	req.Header.Set(echo.HeaderXRealIP, "10.0.0.7")
	c := e.NewContext(req, httptest.NewRecorder())
	c.SetPath("/v1/reservations")

	cfg := config.RateLimitConfig{Prefix: "resort:rl"}
	assert.Equal(t, "resort:rl:ip:10.0.0.7:user:guest:route:POST /v1/reservations", buildRateKey(cfg, c))

	c.Set(CtxActor, model.Actor{UserID: "guest-1", Role: model.RoleUser})
	cfg.KeyStrategy = "user"
	assert.Equal(t, "resort:rl:user:guest-1", buildRateKey(cfg, c))
	cfg.KeyStrategy = "IP"
	assert.Equal(t, "resort:rl:ip:10.0.0.7", buildRateKey(cfg, c))
	cfg.KeyStrategy = "ip_user"
	assert.Equal(t, "resort:rl:ip:10.0.0.7:user:guest-1", buildRateKey(cfg, c))
}

func TestAsInt64(t *testing.T) {
	assert.Equal(t, int64(5), asInt64(int64(5)))
	assert.Equal(t, int64(7), asInt64(7))
	assert.Equal(t, int64(3), asInt64(3.9))
	assert.Equal(t, int64(42), asInt64("42"))
	assert.Equal(t, int64(0), asInt64("x"))
	assert.Equal(t, int64(0), asInt64(nil))
}

func TestLimiterAndCachePassThroughWithoutRedis(t *testing.T) {
	hits := 0
	h := func(c echo.Context) error {
		hits++
		return c.String(http.StatusOK, "ok")
	}
	cache := NewCalendarCache(config.CacheConfig{Enabled: true, Methods: map[string]bool{"GET": true}}, nil)
	limiter := NewTokenBucket(config.RateLimitConfig{Enabled: true, Capacity: 1}, nil)

	for i := 0; i < 3; i++ {
		rec := serve(h, []echo.MiddlewareFunc{limiter, cache.Middleware()}, "")
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Empty(t, rec.Header().Get("X-Cache"))
	}
	assert.Equal(t, 3, hits)

	// must not panic
	cache.InvalidateResource(context.Background(), "villa-1")
	var nilCache *CalendarCache
	nilCache.InvalidateResource(context.Background(), "villa-1")
}

func TestPayloadRoundTrip(t *testing.T) {
	hdr := http.Header{}
	hdr.Set("Content-Type", "application/json")
	body := []byte(`{"booked":[]}`)

	bs, err := encodePayload(http.StatusOK, hdr, body)
	require.NoError(t, err)
	status, gotHdr, gotBody, ok := decodePayload(bs)
	require.True(t, ok)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "application/json", gotHdr.Get("Content-Type"))
	assert.Equal(t, body, gotBody)

	_, _, _, ok = decodePayload([]byte{0, 1})
	assert.False(t, ok)
	_, _, _, ok = decodePayload(append(bs[:4:4], 0xff, 0xff, 0xff, 0xff))
	assert.False(t, ok, "header length beyond the buffer")
}

func TestCaptureWriterTruncates(t *testing.T) {
	rec := httptest.NewRecorder()
	cw := &captureWriter{ResponseWriter: rec, status: http.StatusOK, limit: 4}
	_, _ = cw.Write([]byte("abc"))
	assert.False(t, cw.truncated)
	_, _ = cw.Write([]byte("de"))
	assert.True(t, cw.truncated)
	assert.Zero(t, cw.buf.Len())
	assert.Equal(t, "abcde", rec.Body.String(), "the client still gets the full body")
}
