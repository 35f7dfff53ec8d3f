package server

import (
	"database/sql"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/cors"

	"choreboard/internal/auth"
	"choreboard/internal/config"
	"choreboard/internal/handler"
	"choreboard/internal/middleware"
	"choreboard/internal/store"
	ws "choreboard/internal/websocket"
)

type Server struct {
	db           *sql.DB
	hub          *ws.Hub
	authH        *handler.AuthHandler
	teamH        *handler.TeamHandler
	choreH       *handler.ChoreHandler
	teamStore    *store.TeamStore
	refreshStore *store.RefreshTokenStore
	issuer       *auth.TokenIssuer
	rateLimiter  *middleware.RateLimiter
	corsOrigin   string
	logger       *slog.Logger
}

func New(db *sql.DB, cfg config.Config, logger *slog.Logger) *Server {
	hub := ws.NewHub(logger.With("component", "websocket"))

	userStore := store.NewUserStore(db)
	teamStore := store.NewTeamStore(db)
	choreStore := store.NewChoreStore(db)
	refreshStore := store.NewRefreshTokenStore(db)

	issuer := auth.NewTokenIssuer(cfg.JWTSecret, cfg.AccessTTL)

	cookies := handler.CookieConfig{Secure: false, SameSite: http.SameSiteStrictMode}
	if cfg.Production {
		cookies = handler.CookieConfig{Secure: true, SameSite: http.SameSiteNoneMode}
	}

	return &Server{
		db:           db,
		hub:          hub,
		authH:        handler.NewAuthHandler(userStore, refreshStore, issuer, cfg.RefreshTTL, cookies, logger.With("component", "auth")),
		teamH:        handler.NewTeamHandler(teamStore, userStore, hub, logger.With("component", "team")),
		choreH:       handler.NewChoreHandler(choreStore, teamStore, hub, logger.With("component", "chore")),
		teamStore:    teamStore,
		refreshStore: refreshStore,
		issuer:       issuer,
		rateLimiter:  middleware.NewRateLimiter(),
		corsOrigin:   cfg.CORSOrigin,
		logger:       logger,
	}
}

// RefreshTokenStore returns the refresh token store for cleanup tasks.
func (s *Server) RefreshTokenStore() *store.RefreshTokenStore {
	return s.refreshStore
}

// RateLimiter returns the rate limiter for cleanup tasks.
func (s *Server) RateLimiter() *middleware.RateLimiter {
	return s.rateLimiter
}

func (s *Server) Router() http.Handler {
	outerMux := http.NewServeMux()

	// Public routes (no auth required)
	outerMux.HandleFunc("GET /health", s.healthHandler)
	outerMux.HandleFunc("POST /api/auth/register", s.rateLimitedHandler(s.authH.Register))
	outerMux.HandleFunc("POST /api/auth/login", s.rateLimitedHandler(s.authH.Login))
	outerMux.HandleFunc("POST /api/auth/refresh", s.rateLimitedHandler(s.authH.Refresh))

	// Protected routes — wrapped with RequireAuth middleware
	protectedMux := http.NewServeMux()
	s.registerProtectedRoutes(protectedMux)

	authMiddleware := middleware.RequireAuth(s.issuer)
	outerMux.Handle("/", authMiddleware(protectedMux))

	c := cors.New(cors.Options{
		AllowedOrigins:   []string{s.corsOrigin},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	})

	return middleware.RequestLogger(s.logger.With("component", "http"))(c.Handler(outerMux))
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

func (s *Server) rateLimitedHandler(h http.HandlerFunc) http.HandlerFunc {
	keyFunc := func(r *http.Request) string {
		return middleware.RealIP(r)
	}
	rl := middleware.RateLimit(s.rateLimiter, keyFunc, 10, time.Minute)
	return func(w http.ResponseWriter, r *http.Request) {
		rl(http.HandlerFunc(h)).ServeHTTP(w, r)
	}
}

func (s *Server) registerProtectedRoutes(mux *http.ServeMux) {
	// Auth routes that require authentication
	mux.HandleFunc("POST /api/auth/logout", s.authH.Logout)
	mux.HandleFunc("GET /api/auth/me", s.authH.Me)

	// Team API routes
	mux.HandleFunc("GET /api/teams", s.teamH.List)
	mux.HandleFunc("POST /api/teams", s.teamH.Create)
	mux.HandleFunc("GET /api/teams/{id}", s.teamH.Get)
	mux.HandleFunc("PUT /api/teams/{id}", s.teamH.Update)
	mux.HandleFunc("DELETE /api/teams/{id}", s.teamH.Delete)
	mux.HandleFunc("GET /api/teams/{id}/members", s.teamH.ListMembers)
	mux.HandleFunc("POST /api/teams/{id}/members", s.teamH.AddMember)
	mux.HandleFunc("DELETE /api/teams/{id}/members/{userId}", s.teamH.RemoveMember)

	// Chore API routes, team-scoped
	mux.HandleFunc("GET /api/teams/{teamId}/chores", s.choreH.List)
	mux.HandleFunc("POST /api/teams/{teamId}/chores", s.choreH.Create)
	mux.HandleFunc("GET /api/teams/{teamId}/calendar", s.choreH.Calendar)
	mux.HandleFunc("GET /api/teams/{teamId}/chores/templates", s.choreH.Templates)

	// Chore API routes, chore-scoped
	mux.HandleFunc("GET /api/chores/{id}", s.choreH.Get)
	mux.HandleFunc("PUT /api/chores/{id}", s.choreH.Update)
	mux.HandleFunc("DELETE /api/chores/{id}", s.choreH.Delete)
	mux.HandleFunc("POST /api/chores/{id}/complete", s.choreH.Complete)
	mux.HandleFunc("GET /api/chores/{id}/history", s.choreH.History)
	mux.HandleFunc("GET /api/chores/{id}/instances", s.choreH.Instances)

	// WebSocket
	mux.HandleFunc("GET /api/ws", ws.HandleWebSocket(s.hub, s.teamStore, s.logger.With("component", "websocket")))
}
