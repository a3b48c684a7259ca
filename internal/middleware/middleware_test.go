package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/agroplan/planner/internal/access"
	"github.com/agroplan/planner/internal/config"
	"github.com/agroplan/planner/internal/utils"
)

const secret = "test-secret"

type fakeGrants struct {
	grants access.Grants
	err    error
	calls  int
}

func (f *fakeGrants) GrantsFor(ctx context.Context, userID string) (access.Grants, error) {
	f.calls++
	return f.grants, f.err
}

func token(t *testing.T, role, consultant string) string {
	t.Helper()
	tok, err := utils.NewAccessToken(secret, "u1", role, consultant, 5)
	require.NoError(t, err)
	return "Bearer " + tok.Token
}

func serve(e *echo.Echo, auth string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	if auth != "" {
		req.Header.Set("Authorization", auth)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestJWTAuthRejectsMissingAndInvalidTokens(t *testing.T) {
	e := echo.New()
	e.GET("/x", func(c echo.Context) error { return c.NoContent(http.StatusOK) }, JWTAuth(secret))

	assert.Equal(t, http.StatusUnauthorized, serve(e, "").Code)
	assert.Equal(t, http.StatusUnauthorized, serve(e, "Bearer garbage").Code)

	other, err := utils.NewAccessToken("other", "u1", "admin", "", 5)
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, serve(e, "Bearer "+other.Token).Code)
	assert.Equal(t, http.StatusOK, serve(e, token(t, "admin", "")).Code)
}

func TestJWTAuthStoresIdentity(t *testing.T) {
	e := echo.New()
	var got access.Identity
	e.GET("/x", func(c echo.Context) error {
		got = IdentityFrom(c)
		return c.NoContent(http.StatusOK)
	}, JWTAuth(secret))

	require.Equal(t, http.StatusOK, serve(e, token(t, "consultor", "C1")).Code)
	assert.Equal(t, access.Identity{Role: access.Consultant, UserID: "u1", ConsultantCode: "C1"}, got)
}

func TestOptionalJWTLeavesBadTokensAnonymous(t *testing.T) {
	e := echo.New()
	var got access.Identity
	e.GET("/x", func(c echo.Context) error {
		got = IdentityFrom(c)
		return c.NoContent(http.StatusOK)
	}, OptionalJWT(secret))

	require.Equal(t, http.StatusOK, serve(e, "Bearer garbage").Code)
	assert.False(t, got.Authenticated())
}

func TestScopeEvaluatesPredicate(t *testing.T) {
	grants := &fakeGrants{grants: access.Grants{FarmIDs: []string{"F1"}}}
	e := echo.New()
	var pred access.Predicate
	e.GET("/x", func(c echo.Context) error {
		pred = PredicateFrom(c)
		return c.NoContent(http.StatusOK)
	}, OptionalJWT(secret), Scope(grants, zap.NewNop()))

	require.Equal(t, http.StatusOK, serve(e, token(t, "admin", "")).Code)
	assert.True(t, pred.AllowAll)
	assert.Equal(t, 0, grants.calls)

	require.Equal(t, http.StatusOK, serve(e, token(t, "gestor", "")).Code)
	assert.False(t, pred.AllowAll)
	assert.Equal(t, []string{"F1"}, pred.FarmIDs)
	assert.Equal(t, 1, grants.calls)

	require.Equal(t, http.StatusOK, serve(e, "").Code)
	assert.True(t, pred.Denies())
}

func TestScopeDeniesManagerWithoutSubject(t *testing.T) {
	grants := &fakeGrants{}
	e := echo.New()
	var pred access.Predicate
	e.GET("/x", func(c echo.Context) error {
		pred = PredicateFrom(c)
		return c.NoContent(http.StatusOK)
	}, JWTAuth(secret), Scope(grants, zap.NewNop()))

	tok, err := utils.NewAccessToken(secret, "", "gestor", "", 5)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, serve(e, "Bearer "+tok.Token).Code)
	assert.True(t, pred.Denies())
	assert.False(t, pred.AllowAll)
	assert.Equal(t, 0, grants.calls)
}

func TestScopeGrantFailureIs500(t *testing.T) {
	grants := &fakeGrants{err: errors.New("db down")}
	e := echo.New()
	e.GET("/x", func(c echo.Context) error { return c.NoContent(http.StatusOK) },
		JWTAuth(secret), Scope(grants, zap.NewNop()))
	assert.Equal(t, http.StatusInternalServerError, serve(e, token(t, "consultor", "C1")).Code)
}

func TestRequireRole(t *testing.T) {
	e := echo.New()
	e.GET("/x", func(c echo.Context) error { return c.NoContent(http.StatusOK) },
		OptionalJWT(secret), RequireRole(access.Admin, access.Manager))

	assert.Equal(t, http.StatusForbidden, serve(e, "").Code)
	assert.Equal(t, http.StatusForbidden, serve(e, token(t, "consultor", "C1")).Code)
	assert.Equal(t, http.StatusForbidden, serve(e, token(t, "visitor", "")).Code)
	assert.Equal(t, http.StatusOK, serve(e, token(t, "gestor", "")).Code)
}

func TestCachePayloadRoundTrip(t *testing.T) {
	hdr := http.Header{"Content-Type": []string{"application/json"}}
	bs, err := encodePayload(http.StatusOK, hdr, []byte(`{"items":[]}`))
	require.NoError(t, err)

	got, ok := decodePayload(bs)
	require.True(t, ok)
	assert.Equal(t, http.StatusOK, got.Status)
	assert.Equal(t, "application/json", got.Header.Get("Content-Type"))
	assert.Equal(t, `{"items":[]}`, string(got.Body))

	_, ok = decodePayload(bs[:5])
	assert.False(t, ok)
}

func TestDisabledLimiterAndCachePassThrough(t *testing.T) {
	e := echo.New()
	e.GET("/x", func(c echo.Context) error { return c.NoContent(http.StatusNoContent) },
		NewTokenBucket(configDisabledRate(), nil, zap.NewNop()), NewRedisCache(configDisabledCache(), nil))
	assert.Equal(t, http.StatusNoContent, serve(e, "").Code)
}

func configDisabledRate() config.RateLimitConfig { return config.RateLimitConfig{} }

func configDisabledCache() config.CacheConfig { return config.CacheConfig{} }
