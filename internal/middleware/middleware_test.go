package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/cinema-management/internal/config"
	"github.com/iliyamo/cinema-management/internal/utils"
)

const secret = "test-secret"

func whoami(c echo.Context) error {
	id, _ := UserID(c)
	return c.JSON(http.StatusOK, echo.Map{"id": id, "username": Username(c), "role": Role(c)})
}

func do(e *echo.Echo, method, path, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	if token != "" {
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func token(t *testing.T, role string) string {
	t.Helper()
	tok, err := utils.NewAccessToken(secret, utils.Identity{UserID: 7, Username: "maria", Role: role}, time.Hour)
	require.NoError(t, err)
	return tok.Token
}

func TestJWTAuth(t *testing.T) {
	e := echo.New()
	e.GET("/me", whoami, JWTAuth(secret))

	rec := do(e, http.MethodGet, "/me", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = do(e, http.MethodGet, "/me", "garbage")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	other, err := utils.NewAccessToken("other-secret", utils.Identity{UserID: 7, Role: "Manager"}, time.Hour)
	require.NoError(t, err)
	rec = do(e, http.MethodGet, "/me", other.Token)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = do(e, http.MethodGet, "/me", token(t, "Manager"))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"id":7,"username":"maria","role":"Manager"}`, rec.Body.String())
}

func TestRequireRole(t *testing.T) {
	e := echo.New()
	e.GET("/admin", whoami, JWTAuth(secret), RequireRole("Administrator"))

	assert.Equal(t, http.StatusForbidden, do(e, http.MethodGet, "/admin", token(t, "Manager")).Code)
	assert.Equal(t, http.StatusOK, do(e, http.MethodGet, "/admin", token(t, "Administrator")).Code)
}

func TestRequestLoggerSetsRequestID(t *testing.T) {
	e := echo.New()
	e.Use(RequestLogger())
	e.GET("/ok", func(c echo.Context) error { return c.NoContent(http.StatusNoContent) })
	e.GET("/fail", func(c echo.Context) error { return echo.NewHTTPError(http.StatusTeapot, "short and stout") })

	rec := do(e, http.MethodGet, "/ok", "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Len(t, rec.Header().Get(echo.HeaderXRequestID), 36)

	req := httptest.NewRequest(http.MethodGet, "/fail", nil)
	req.Header.Set(echo.HeaderXRequestID, "abc")
	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusTeapot, rec.Code)
	assert.Equal(t, "abc", rec.Header().Get(echo.HeaderXRequestID))
}

func TestRedisMiddlewaresPassThroughWithoutClient(t *testing.T) {
	e := echo.New()
	calls := 0
	h := func(c echo.Context) error { calls++; return c.String(http.StatusOK, "ok") }
	e.GET("/x", h,
		NewRedisCache(config.CacheConfig{Enabled: true, Methods: map[string]bool{"GET": true}}, nil),
		NewTokenBucket(config.RateLimitConfig{Enabled: true, Capacity: 1}, nil))

	for i := 0; i < 3; i++ {
		assert.Equal(t, http.StatusOK, do(e, http.MethodGet, "/x", "").Code)
	}
	assert.Equal(t, 3, calls)
}

func TestCachePayloadRoundTrip(t *testing.T) {
	hdr := http.Header{"Content-Type": {"application/json"}}
	bs, err := encodePayload(http.StatusOK, hdr, []byte(`{"a":1}`))
	require.NoError(t, err)

	status, got, body, ok := decodePayload(bs)
	require.True(t, ok)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "application/json", got.Get("Content-Type"))
	assert.Equal(t, `{"a":1}`, string(body))

	_, _, _, ok = decodePayload(bs[:6])
	assert.False(t, ok)
}

func TestRateKeyStrategies(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/v1/purchases", nil)
	req.Header.Set(echo.HeaderXRealIP, "10.0.0.9")
	c := e.NewContext(req, httptest.NewRecorder())
	c.SetPath("/v1/purchases")

	cfg := config.RateLimitConfig{Prefix: "rl", KeyStrategy: "ip_route"}
	assert.Equal(t, "rl:ip:10.0.0.9:route:POST /v1/purchases", rateKey(cfg, c))

	cfg.KeyStrategy = "user"
	assert.Equal(t, "rl:user:anon", rateKey(cfg, c))
	c.Set(ctxUserID, uint64(5))
	assert.Equal(t, "rl:user:5", rateKey(cfg, c))
}
