package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/fleet-ledger/internal/config"
	"github.com/iliyamo/fleet-ledger/internal/model"
	"github.com/iliyamo/fleet-ledger/internal/utils"
)

const secret = "test-secret"

func whoami(c echo.Context) error {
	id, ok := UserID(c)
	if !ok {
		return c.String(http.StatusTeapot, "anonymous")
	}
	return c.JSON(http.StatusOK, echo.Map{"id": id, "role": Role(c)})
}

func serve(e *echo.Echo, method, path, auth string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	if auth != "" {
		req.Header.Set("Authorization", auth)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestJWTAuth(t *testing.T) {
	e := echo.New()
	e.GET("/me", whoami, JWTAuth(secret))

	good, err := utils.NewAccessToken(secret, 42, model.RoleDriver, 5)
	if err != nil {
		t.Fatal(err)
	}
	forged, _ := utils.NewAccessToken("other-secret", 42, model.RoleAdmin, 5)
	expired, _ := utils.NewAccessToken(secret, 42, model.RoleDriver, -5)

	cases := []struct {
		name   string
		auth   string
		status int
	}{
		{"valid", "Bearer " + good.Token, http.StatusOK},
		{"missing", "", http.StatusUnauthorized},
		{"basic scheme", "Basic Zm9vOmJhcg==", http.StatusUnauthorized},
		{"wrong secret", "Bearer " + forged.Token, http.StatusUnauthorized},
		{"expired", "Bearer " + expired.Token, http.StatusUnauthorized},
		{"garbage", "Bearer not.a.jwt", http.StatusUnauthorized},
	}
	for _, tc := range cases {
		rec := serve(e, http.MethodGet, "/me", tc.auth)
		if rec.Code != tc.status {
			t.Fatalf("%s: status = %d, want %d (%s)", tc.name, rec.Code, tc.status, rec.Body.String())
		}
	}

	rec := serve(e, http.MethodGet, "/me", "Bearer "+good.Token)
	if !strings.Contains(rec.Body.String(), `"id":42`) || !strings.Contains(rec.Body.String(), `"role":"driver"`) {
		t.Fatalf("identity = %s", rec.Body.String())
	}
}

func TestRequireRole(t *testing.T) {
	e := echo.New()
	admin, _ := utils.NewAccessToken(secret, 1, model.RoleAdmin, 5)
	driver, _ := utils.NewAccessToken(secret, 2, model.RoleDriver, 5)
	e.GET("/admin", whoami, JWTAuth(secret), RequireRole(model.RoleAdmin))
	e.GET("/any", whoami, JWTAuth(secret), RequireRole(model.RoleAdmin, model.RoleDriver))

	if rec := serve(e, http.MethodGet, "/admin", "Bearer "+driver.Token); rec.Code != http.StatusForbidden {
		t.Fatalf("driver on admin route: %d", rec.Code)
	}
	if rec := serve(e, http.MethodGet, "/admin", "Bearer "+admin.Token); rec.Code != http.StatusOK {
		t.Fatalf("admin on admin route: %d", rec.Code)
	}
	if rec := serve(e, http.MethodGet, "/any", "Bearer "+driver.Token); rec.Code != http.StatusOK {
		t.Fatalf("driver on shared route: %d", rec.Code)
	}

	// without JWTAuth in front there is no role at all
	e.GET("/bare", whoami, RequireRole(model.RoleAdmin))
	if rec := serve(e, http.MethodGet, "/bare", ""); rec.Code != http.StatusForbidden {
		t.Fatalf("bare route: %d", rec.Code)
	}
}

func TestCacheKeyFrom(t *testing.T) {
	e := echo.New()
	cfg := config.CacheConfig{Prefix: "fleet:cache", KeyStrategy: "role_route_query"}
	key := func(role model.Role, query string, gen int64) string {
		c := e.NewContext(httptest.NewRequest(http.MethodGet, "/v1/vehicles?"+query, nil), httptest.NewRecorder())
		c.SetPath("/v1/vehicles")
		if role != "" {
			SetIdentity(c, 7, role)
		}
		return cacheKeyFrom(cfg, c, gen)
	}

	base := key(model.RoleAdmin, "", 0)
	if !strings.HasPrefix(base, "fleet:cache:g0:") {
		t.Fatalf("key = %s", base)
	}
	if base != key(model.RoleAdmin, "", 0) {
		t.Fatal("key is not stable")
	}
	if base == key(model.RoleDriver, "", 0) {
		t.Fatal("roles share a cache entry")
	}
	if base == key(model.RoleAdmin, "status=available", 0) {
		t.Fatal("query ignored")
	}
	if base == key(model.RoleAdmin, "", 1) {
		t.Fatal("generation ignored")
	}

	cfg.KeyStrategy = "route"
	if key(model.RoleAdmin, "a=1", 0) != key(model.RoleDriver, "a=2", 0) {
		t.Fatal("route strategy must ignore role and query")
	}
}

func TestPayloadRoundTrip(t *testing.T) {
	hdr := http.Header{"Content-Type": {"application/json"}}
	bs, err := encodePayload(http.StatusOK, hdr, []byte(`{"ok":true}`))
	if err != nil {
		t.Fatal(err)
	}
	status, got, body, ok := decodePayload(bs)
	if !ok || status != http.StatusOK || got.Get("Content-Type") != "application/json" || string(body) != `{"ok":true}` {
		t.Fatalf("decoded %d %v %q %v", status, got, body, ok)
	}
	if _, _, _, ok := decodePayload(bs[:5]); ok {
		t.Fatal("short payload decoded")
	}
}

func TestCaptureWriterLimit(t *testing.T) {
	rec := httptest.NewRecorder()
	cw := &captureWriter{ResponseWriter: rec, status: http.StatusOK, limit: 4}
	_, _ = cw.Write([]byte("abc"))
	_, _ = cw.Write([]byte("defg"))
	if cw.buf.String() != "abcd" || cw.size != 7 || rec.Body.String() != "abcdefg" {
		t.Fatalf("buf=%q size=%d client=%q", cw.buf.String(), cw.size, rec.Body.String())
	}
}

func TestDisabledEdgeMiddlewarePassesThrough(t *testing.T) {
	e := echo.New()
	e.GET("/x", func(c echo.Context) error { return c.String(http.StatusOK, "ok") },
		NewTokenBucket(config.RateLimitConfig{Enabled: true}, nil, nil),
		NewRedisCache(config.CacheConfig{Enabled: true}, nil),
	)
	rec := serve(e, http.MethodGet, "/x", "")
	if rec.Code != http.StatusOK || rec.Header().Get("X-Cache") != "" {
		t.Fatalf("status %d, X-Cache %q", rec.Code, rec.Header().Get("X-Cache"))
	}

	var inv *RedisInvalidator
	if err := inv.Invalidate(context.Background()); err != nil {
		t.Fatal(err)
	}
	if err := NewRedisInvalidator(config.CacheConfig{Prefix: "p"}, nil).Invalidate(context.Background()); err != nil {
		t.Fatal(err)
	}
}

func TestBuildRateKey(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/v1/journeys", nil)
	req.Header.Set("X-Real-IP", "10.0.0.9")
	c := e.NewContext(req, httptest.NewRecorder())
	c.SetPath("/v1/journeys")

	cfg := config.RateLimitConfig{Prefix: "fleet:rl", KeyStrategy: "ip_user_route"}
	if got := buildRateKey(cfg, c); got != "fleet:rl:ip:10.0.0.9:user:anon:route:POST /v1/journeys" {
		t.Fatalf("anonymous key = %s", got)
	}
	SetIdentity(c, 12, model.RoleDriver)
	cfg.KeyStrategy = "user"
	if got := buildRateKey(cfg, c); got != "fleet:rl:user:12" {
		t.Fatalf("user key = %s", got)
	}
}

func TestParseVerdict(t *testing.T) {
	v, ok := parseVerdict([]interface{}{int64(0), int64(0), int64(1500)})
	if !ok || v.allowed || v.retryMs != 1500 || retryAfter(v.retryMs) != 2 {
		t.Fatalf("blocked verdict = %+v ok=%v", v, ok)
	}
	v, ok = parseVerdict([]interface{}{int64(1), int64(59), int64(0)})
	if !ok || !v.allowed || v.remaining != 59 || retryAfter(v.retryMs) != 0 {
		t.Fatalf("allowed verdict = %+v ok=%v", v, ok)
	}
	if _, ok := parseVerdict("OK"); ok {
		t.Fatal("string reply accepted")
	}
	if _, ok := parseVerdict([]interface{}{int64(1)}); ok {
		t.Fatal("short reply accepted")
	}
}
