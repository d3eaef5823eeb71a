package server

import (
	"context"
	"database/sql"
	"log/slog"
	"net/http"
	"time"

	"github.com/dukerupert/linkshelf/internal/config"
	"github.com/dukerupert/linkshelf/internal/credential"
	"github.com/dukerupert/linkshelf/internal/handler"
	"github.com/dukerupert/linkshelf/internal/middleware"
	"github.com/dukerupert/linkshelf/internal/refresh"
	"github.com/dukerupert/linkshelf/internal/render"
	"github.com/dukerupert/linkshelf/internal/response"
	"github.com/dukerupert/linkshelf/internal/session"
	"github.com/dukerupert/linkshelf/internal/store"
	ws "github.com/dukerupert/linkshelf/internal/websocket"
)

type Server struct {
	db             *sql.DB
	hub            *ws.Hub
	sessions       *session.Store
	authH          *handler.AuthHandler
	groupH         *handler.GroupHandler
	linkH          *handler.LinkHandler
	publicH        *handler.PublicHandler
	scheduler      *refresh.Scheduler
	originPatterns []string
	logger         *slog.Logger
}

func New(db *sql.DB, cfg *config.Config, sessions *session.Store, logger *slog.Logger) (*Server, error) {
	verifier, err := credential.New(cfg.Auth.HashScheme)
	if err != nil {
		return nil, err
	}

	hub := ws.NewHub(logger.With("component", "websocket"))

	userStore := store.NewUserStore(db)
	groupStore := store.NewGroupStore(db, logger.With("component", "store"))
	linkStore := store.NewLinkStore(db)
	cacheStore := store.NewCacheStore(db)
	renderer := render.New()

	scheduler := refresh.NewScheduler(userStore, groupStore, linkStore, cacheStore, renderer, hub,
		cfg.Refresh.Interval, logger.With("component", "refresh"))

	return &Server{
		db:       db,
		hub:      hub,
		sessions: sessions,
		authH: handler.NewAuthHandler(userStore, sessions, verifier, hub, handler.AuthOptions{
			SecureCookie:      cfg.Session.SecureCookie,
			AllowRegistration: cfg.Auth.AllowRegistration,
		}, logger.With("component", "auth")),
		groupH:         handler.NewGroupHandler(userStore, groupStore, cacheStore, scheduler, hub, logger.With("component", "group")),
		linkH:          handler.NewLinkHandler(userStore, groupStore, linkStore, cacheStore, hub, logger.With("component", "link")),
		publicH:        handler.NewPublicHandler(groupStore, linkStore, cacheStore, renderer, logger.With("component", "public")),
		scheduler:      scheduler,
		originPatterns: cfg.Server.OriginPatterns,
		logger:         logger,
	}, nil
}

// Scheduler returns the cache refresh scheduler.
func (s *Server) Scheduler() *refresh.Scheduler {
	return s.scheduler
}

// SweepSessions drops expired sessions and closes the event streams that
// were opened with them.
func (s *Server) SweepSessions() int {
	swept := s.sessions.Sweep()
	for _, token := range swept {
		s.hub.DisconnectSession(token)
	}
	if len(swept) > 0 {
		s.logger.Info("swept expired sessions", "count", len(swept))
	}
	return len(swept)
}

// RunSessionSweeper calls SweepSessions every interval until ctx ends.
func (s *Server) RunSessionSweeper(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			s.SweepSessions()
		case <-ctx.Done():
			return
		}
	}
}

// NotifyShutdown tells every connected client the server is going away.
func (s *Server) NotifyShutdown() {
	s.hub.Broadcast(ws.NewMessage("server", "shutdown", 0, nil))
}

func (s *Server) Router() http.Handler {
	outerMux := http.NewServeMux()

	// Public routes (no session required)
	outerMux.HandleFunc("POST /api/auth/register", s.authH.Register)
	outerMux.HandleFunc("POST /api/auth/login", s.authH.Login)
	outerMux.HandleFunc("POST /api/auth/logout", s.authH.Logout)
	outerMux.HandleFunc("GET /api/public/groups", s.publicH.Groups)
	outerMux.HandleFunc("GET /api/public/links", s.publicH.Links)
	outerMux.HandleFunc("GET /g/{slug}", s.publicH.Page)
	outerMux.HandleFunc("GET /health", s.healthHandler)

	// Protected routes, wrapped with the session gate
	protectedMux := http.NewServeMux()
	s.registerProtectedRoutes(protectedMux)

	outerMux.Handle("/", middleware.RequireSession(s.sessions)(protectedMux))

	return middleware.RequestLogger(s.logger.With("component", "http"))(outerMux)
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	if err := s.db.PingContext(ctx); err != nil {
		s.logger.Error("health check", "error", err)
		response.Write(w, response.ServerError, "database unavailable", map[string]string{"status": "degraded"})
		return
	}
	response.OK(w, map[string]string{"status": "ok"})
}

func (s *Server) registerProtectedRoutes(mux *http.ServeMux) {
	// Account
	mux.HandleFunc("GET /api/auth/me", s.authH.Me)
	mux.HandleFunc("PUT /api/auth/password", s.authH.ChangePassword)

	// Groups
	mux.HandleFunc("GET /api/groups", s.groupH.List)
	mux.HandleFunc("POST /api/groups", s.groupH.Create)
	mux.HandleFunc("GET /api/groups/{id}", s.groupH.Get)
	mux.HandleFunc("PUT /api/groups/{id}", s.groupH.Update)
	mux.HandleFunc("DELETE /api/groups/{id}", s.groupH.Delete)
	mux.HandleFunc("GET /api/groups/{id}/details", s.groupH.Details)
	mux.HandleFunc("PUT /api/groups/{id}/cache", s.groupH.WriteCache)
	mux.HandleFunc("POST /api/groups/{id}/refresh", s.groupH.Refresh)

	// Links
	mux.HandleFunc("GET /api/groups/{id}/links", s.linkH.List)
	mux.HandleFunc("POST /api/groups/{id}/links", s.linkH.Create)
	mux.HandleFunc("GET /api/links/{id}", s.linkH.Get)
	mux.HandleFunc("PUT /api/links/{id}", s.linkH.Update)
	mux.HandleFunc("DELETE /api/links/{id}", s.linkH.Delete)
	mux.HandleFunc("PUT /api/links/{id}/cache", s.linkH.WriteCache)

	// Change notifications
	mux.HandleFunc("GET /ws", ws.HandleWebSocket(s.hub, s.originPatterns, s.logger.With("component", "websocket")))
}
