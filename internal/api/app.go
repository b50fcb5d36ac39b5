package api

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gorilla/handlers"
	"github.com/npezzotti/go-dm/internal/auth"
	"github.com/npezzotti/go-dm/internal/config"
	"github.com/npezzotti/go-dm/internal/database"
	"github.com/npezzotti/go-dm/internal/objectstore"
	"github.com/npezzotti/go-dm/internal/server"
	"go.uber.org/zap"
)

type App struct {
	log            *zap.Logger
	db             database.Repository
	objects        objectstore.Store
	gatekeeper     *auth.Gatekeeper
	srv            *http.Server
	cs             *server.ChatServer
	allowedOrigins []string
}

// NewApp mounts the API routes on mux, which may already carry other
// handlers such as the metrics endpoint.
func NewApp(mux *http.ServeMux, logger *zap.Logger, cs *server.ChatServer, db database.Repository, objects objectstore.Store, gk *auth.Gatekeeper, cfg *config.Config) *App {
	s := &App{
		log:            logger,
		db:             db,
		objects:        objects,
		gatekeeper:     gk,
		cs:             cs,
		allowedOrigins: cfg.AllowedOrigins,
	}

	mux.HandleFunc("GET /healthz", s.healthCheck)
	mux.HandleFunc("GET /ws", s.authMiddleware(s.serveWs))
	mux.HandleFunc("GET /api/conversations", s.authMiddleware(s.listConversations))
	mux.HandleFunc("POST /api/conversations", s.authMiddleware(s.createConversation))
	mux.HandleFunc("GET /api/conversations/{id}/messages", s.authMiddleware(s.listMessages))
	mux.HandleFunc("POST /api/conversations/{id}/files", s.authMiddleware(s.uploadFile))
	mux.HandleFunc("GET /api/files/{id}", s.authMiddleware(s.downloadFile))

	h := handlers.CORS(
		handlers.MaxAge(3600),
		handlers.AllowedOrigins(cfg.AllowedOrigins),
		handlers.AllowedMethods([]string{http.MethodGet, http.MethodPost, http.MethodOptions}),
		handlers.AllowedHeaders([]string{"Origin", "Content-Type", "Accept", "Authorization"}),
		handlers.AllowCredentials(),
	)(mux)

	h = s.errorHandler(h)

	s.srv = &http.Server{
		Addr:    cfg.ServerAddr,
		Handler: h,
	}

	return s
}

func (s *App) Handler() http.Handler {
	return s.srv.Handler
}

func (s *App) Start() error {
	s.log.Info("starting server", zap.String("addr", s.srv.Addr))
	return s.srv.ListenAndServe()
}

func (s *App) Shutdown(ctx context.Context) error {
	s.log.Info("shutting down HTTP server")
	if err := s.srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	return nil
}
