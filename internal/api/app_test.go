package api

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewApp(t *testing.T) {
	app := newTestApp(t)

	assert.NotNil(t, app.srv, "expected http server to be initialized")
	assert.NotNil(t, app.log, "expected logger to be set")
	assert.Equal(t, app.db, app.App.db, "expected db to be set")
	assert.NotNil(t, app.cs, "expected chat server to be set")
	assert.Equal(t, "localhost:8080", app.srv.Addr, "expected server address to match config")
	assert.Equal(t, []string{"http://localhost:3000"}, app.allowedOrigins)
}

func TestCORSPreflight(t *testing.T) {
	app := newTestApp(t)

	req := httptest.NewRequest(http.MethodOptions, "/api/conversations", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rr := httptest.NewRecorder()
	app.Handler().ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "http://localhost:3000", rr.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", rr.Header().Get("Access-Control-Allow-Credentials"))
}
