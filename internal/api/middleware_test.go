package api

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/npezzotti/go-dm/internal/auth"
	"github.com/npezzotti/go-dm/internal/database"
	"github.com/npezzotti/go-dm/internal/errs"
	"github.com/npezzotti/go-dm/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestErrorHandler_PanicRecovery(t *testing.T) {
	core, logs := observer.New(zap.ErrorLevel)
	app := &App{
		log: zap.New(core),
	}

	panicHandler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic(errors.New("test panic"))
	})

	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)

	handler := app.errorHandler(panicHandler)
	handler.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	assert.Equal(t, "close", rr.Header().Get("Connection"))
	entries := logs.FilterMessage("panic").All()
	if assert.Len(t, entries, 1) {
		assert.Equal(t, "test panic", entries[0].ContextMap()["error"])
	}
}

func Test_errorHandler_NoPanic(t *testing.T) {
	app := &App{log: testutil.TestLogger(t)}

	called := false
	okHandler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)

	handler := app.errorHandler(okHandler)
	handler.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "ok", rr.Body.String())
	assert.True(t, called, "expected handler to be called")
}

func TestAuthMiddleware(t *testing.T) {
	tcases := []struct {
		name         string
		setupRequest func(app *testApp, r *http.Request)
		expectedCode int
		expectUser   bool
	}{
		{
			name:         "missing token",
			setupRequest: func(app *testApp, r *http.Request) {},
			expectedCode: http.StatusUnauthorized,
		},
		{
			name: "bearer token",
			setupRequest: func(app *testApp, r *http.Request) {
				r.Header.Set("Authorization", "Bearer "+app.tokenFor(t, alice))
			},
			expectedCode: http.StatusOK,
			expectUser:   true,
		},
		{
			name: "cookie token",
			setupRequest: func(app *testApp, r *http.Request) {
				r.AddCookie(&http.Cookie{Name: auth.TokenCookieKey, Value: app.tokenFor(t, alice)})
			},
			expectedCode: http.StatusOK,
			expectUser:   true,
		},
		{
			name: "unknown user",
			setupRequest: func(app *testApp, r *http.Request) {
				app.db.On("GetUserById", mock.Anything, "ghost").
					Return(database.User{}, errs.ErrNotFound)
				token, _ := app.gk.IssueToken("ghost", time.Minute)
				r.Header.Set("Authorization", "Bearer "+token)
			},
			expectedCode: http.StatusUnauthorized,
		},
		{
			name: "store outage",
			setupRequest: func(app *testApp, r *http.Request) {
				app.db.On("GetUserById", mock.Anything, "u-x").
					Return(database.User{}, errs.ErrPersistence)
				token, _ := app.gk.IssueToken("u-x", time.Minute)
				r.Header.Set("Authorization", "Bearer "+token)
			},
			expectedCode: http.StatusInternalServerError,
		},
	}

	for _, tc := range tcases {
		t.Run(tc.name, func(t *testing.T) {
			app := newTestApp(t)
			called := false
			handler := app.authMiddleware(func(w http.ResponseWriter, r *http.Request) {
				called = true
				user, ok := auth.UserFromContext(r.Context())
				assert.True(t, ok, "expected user in context")
				assert.Equal(t, alice, user)
				w.WriteHeader(http.StatusOK)
			})

			req := httptest.NewRequest(http.MethodGet, "/", nil)
			tc.setupRequest(app, req)
			rr := httptest.NewRecorder()
			handler(rr, req)

			assert.Equal(t, tc.expectedCode, rr.Code)
			assert.Equal(t, tc.expectUser, called)
			if tc.expectUser {
				assert.Equal(t, "no-store, no-cache, must-revalidate, private", rr.Header().Get("Cache-Control"))
			}
		})
	}
}
