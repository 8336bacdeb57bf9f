package settings

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRouter(t *testing.T) (*gin.Engine, *Manager) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	m := newTestManager(t)
	r := gin.New()
	NewHandler(m).RegisterRoutes(r.Group(""))
	return r, m
}

func do(r http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestSettingsEndpoints(t *testing.T) {
	r, _ := newTestRouter(t)

	w := do(r, http.MethodGet, "/settings", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"intervalMinutes":60`)

	w = do(r, http.MethodPut, "/settings", map[string]any{"enabled": true, "intervalMinutes": 0})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(r, http.MethodPut, "/settings", map[string]any{"enabled": true, "intervalMinutes": 5, "allStoresWhenEmpty": true})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"intervalMinutes":5`)
}

func TestProductEndpoints(t *testing.T) {
	r, _ := newTestRouter(t)

	w := do(r, http.MethodPost, "/products/chain1", map[string]string{"productId": "3001"})
	require.Equal(t, http.StatusCreated, w.Code)

	w = do(r, http.MethodPost, "/products/chain1", map[string]string{"productId": "3001"})
	assert.Equal(t, http.StatusConflict, w.Code)

	w = do(r, http.MethodPost, "/products/chain5", map[string]string{"productId": "3001"})
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = do(r, http.MethodGet, "/products", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var body struct {
		Tracked  map[string][]string `json:"trackedProductIds"`
		Selected map[string]string   `json:"selectedProducts"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, []string{"3001"}, body.Tracked["chain1"])
	assert.Equal(t, "3001", body.Selected["chain1"])

	w = do(r, http.MethodDelete, "/products/chain1/3001", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	w = do(r, http.MethodDelete, "/products/chain1/3001", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestProxyEndpoints(t *testing.T) {
	r, m := newTestRouter(t)

	w := do(r, http.MethodPut, "/proxy", map[string]string{"proxyUrl": "not a url"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(r, http.MethodPut, "/proxy", map[string]string{"proxyUrl": "http://127.0.0.1:4000"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "http://127.0.0.1:4000", m.ProxyURL())

	w = do(r, http.MethodGet, "/proxy", nil)
	assert.JSONEq(t, `{"proxyUrl":"http://127.0.0.1:4000"}`, w.Body.String())
}
