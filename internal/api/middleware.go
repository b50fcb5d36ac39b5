package api

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/npezzotti/go-dm/internal/auth"
	"github.com/npezzotti/go-dm/internal/errs"
	"go.uber.org/zap"
)

func (s *App) errorHandler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				var panicError error
				switch e := err.(type) {
				case error:
					panicError = e
				default:
					panicError = fmt.Errorf("%v", e)
				}
				s.log.Error("panic", zap.Error(panicError), zap.String("path", r.URL.Path))
				errResp := NewInternalServerError(panicError)
				w.Header().Set("Connection", "close")
				s.writeJson(w, errResp.StatusCode, errResp)
				return
			}
		}()

		next.ServeHTTP(w, r)
	})
}

// authMiddleware rejects requests without a valid credential before the
// handler runs. For /ws this happens before the upgrade.
func (s *App) authMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, err := s.gatekeeper.Authenticate(r.Context(), r)
		if err != nil {
			var errResp *ApiError
			if errors.Is(err, errs.ErrUnauthenticated) {
				s.log.Debug("authentication failed", zap.Error(err))
				errResp = NewUnauthorizedError()
			} else {
				s.log.Error("resolve identity", zap.Error(err))
				errResp = NewInternalServerError(err)
			}
			s.writeJson(w, errResp.StatusCode, errResp)
			return
		}

		ctx := auth.WithUser(r.Context(), user)
		w.Header().Set("Cache-Control", "no-store, no-cache, must-revalidate, private")

		next(w, r.WithContext(ctx))
	}
}
