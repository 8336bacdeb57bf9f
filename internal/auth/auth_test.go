package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stockwatch/internal/kvstore"
)

func testTokens() TokenService {
	return TokenService{Secret: []byte("test-secret"), Issuer: "stockwatch", Duration: time.Hour}
}

func quietLogger() *logrus.Entry {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return logrus.NewEntry(l)
}

func TestSignAndParse(t *testing.T) {
	ts := testTokens()
	tok, exp, err := ts.Sign("cli", ScopeControl, 3)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(time.Hour), exp, time.Minute)

	claims, err := ts.Parse(tok)
	require.NoError(t, err)
	assert.Equal(t, "cli", claims.Client)
	assert.Equal(t, ScopeControl, claims.Scope)
	assert.Equal(t, 3, claims.Generation)
}

func TestParseRejects(t *testing.T) {
	ts := testTokens()

	other := ts
	other.Secret = []byte("other")
	tok, _, err := other.Sign("cli", ScopeRead, 0)
	require.NoError(t, err)
	_, err = ts.Parse(tok)
	assert.Error(t, err, "wrong secret")

	other = ts
	other.Issuer = "someone-else"
	tok, _, _ = other.Sign("cli", ScopeRead, 0)
	_, err = ts.Parse(tok)
	assert.Error(t, err, "wrong issuer")

	expired := ts
	expired.Duration = -time.Minute
	tok, _, _ = expired.Sign("cli", ScopeRead, 0)
	_, err = ts.Parse(tok)
	assert.ErrorIs(t, err, jwt.ErrTokenExpired)

	none := jwt.NewWithClaims(jwt.SigningMethodNone, Claims{Client: "x", Scope: ScopeControl})
	unsigned, err := none.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)
	_, err = ts.Parse(unsigned)
	assert.Error(t, err, "alg none")

	_, _, err = TokenService{}.Sign("cli", ScopeRead, 0)
	assert.Error(t, err)
}

func newTestRouter(t *testing.T, ts TokenService) (*gin.Engine, *Generations) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	gens := NewGenerations(kvstore.NewMemory())
	r := gin.New()
	r.GET("/health", func(c *gin.Context) { c.Status(http.StatusOK) })
	api := r.Group("", Middleware(ts, gens, "/health"))
	api.GET("/settings", func(c *gin.Context) { c.Status(http.StatusOK) })
	api.PUT("/settings", func(c *gin.Context) { c.Status(http.StatusOK) })
	NewHandler(ts, gens, quietLogger()).RegisterRoutes(api)
	return r, gens
}

func request(r http.Handler, method, path, token string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestMiddleware(t *testing.T) {
	ts := testTokens()
	r, _ := newTestRouter(t, ts)

	assert.Equal(t, http.StatusOK, request(r, http.MethodGet, "/health", "", nil).Code)
	assert.Equal(t, http.StatusUnauthorized, request(r, http.MethodGet, "/settings", "", nil).Code)
	assert.Equal(t, http.StatusUnauthorized, request(r, http.MethodGet, "/settings", "garbage", nil).Code)

	read, _, err := ts.Sign("dashboard", ScopeRead, 0)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, request(r, http.MethodGet, "/settings", read, nil).Code)
	assert.Equal(t, http.StatusForbidden, request(r, http.MethodPut, "/settings", read, nil).Code)
	assert.Equal(t, http.StatusOK, request(r, http.MethodGet, "/settings?token="+read, "", nil).Code)

	control, _, err := ts.Sign("cli", ScopeControl, 0)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, request(r, http.MethodPut, "/settings", control, nil).Code)
}

func TestMiddlewareDisabledWithoutSecret(t *testing.T) {
	r, _ := newTestRouter(t, TokenService{})
	assert.Equal(t, http.StatusOK, request(r, http.MethodPut, "/settings", "", nil).Code)

	w := request(r, http.MethodGet, "/auth/whoami", "", nil)
	assert.JSONEq(t, `{"auth":false}`, w.Body.String())
}

func TestIssueAndRevoke(t *testing.T) {
	ts := testTokens()
	r, gens := newTestRouter(t, ts)
	control, _, err := ts.Sign("cli", ScopeControl, 0)
	require.NoError(t, err)

	w := request(r, http.MethodPost, "/auth/token", control, map[string]string{"client": "dashboard", "scope": "read"})
	require.Equal(t, http.StatusCreated, w.Code)
	var issued struct {
		Token string `json:"token"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &issued))

	w = request(r, http.MethodGet, "/auth/whoami", issued.Token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"auth":true,"client":"dashboard","scope":"read"}`, w.Body.String())

	assert.Equal(t, http.StatusBadRequest,
		request(r, http.MethodPost, "/auth/token", control, map[string]string{"client": "x", "scope": "admin"}).Code)
	assert.Equal(t, http.StatusBadRequest,
		request(r, http.MethodPost, "/auth/token", control, map[string]string{"client": " ", "scope": "read"}).Code)
	assert.Equal(t, http.StatusForbidden,
		request(r, http.MethodPost, "/auth/token", issued.Token, map[string]string{"client": "x", "scope": "control"}).Code)

	w = request(r, http.MethodPost, "/auth/revoke", control, nil)
	require.Equal(t, http.StatusOK, w.Code)
	gen, err := gens.Current(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, gen)

	w = request(r, http.MethodGet, "/settings", issued.Token, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "token revoked")
	assert.Equal(t, http.StatusUnauthorized, request(r, http.MethodGet, "/settings", control, nil).Code)

	fresh, _, err := ts.Sign("cli", ScopeControl, gen)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, request(r, http.MethodGet, "/settings", fresh, nil).Code)
}
