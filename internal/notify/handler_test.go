package notify

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"stockwatch/pkg/models"
)

func TestPermissionEndpoints(t *testing.T) {
	gin.SetMode(gin.TestMode)
	d := NewDispatcher()
	r := gin.New()
	NewHandler(d).RegisterRoutes(r.Group(""))

	send := func(method, body string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(method, "/notifications/permission", bytes.NewBufferString(body))
		req.Header.Set("Content-Type", "application/json")
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w
	}

	w := send(http.MethodGet, "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"permission":"default"}`, w.Body.String())

	w = send(http.MethodPost, `{"permission":"denied"}`)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, models.PermissionDenied, d.Permission())

	w = send(http.MethodPost, `{"permission":"maybe"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, models.PermissionDenied, d.Permission())

	w = send(http.MethodPost, `{}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
