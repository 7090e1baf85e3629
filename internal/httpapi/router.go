// Package httpapi is the thin REST adapter over the trading engine: it
// decodes requests, resolves the authenticated caller, calls into
// mainengine/userengine, and translates domain errors into
// {code, detail} JSON bodies.
package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"

	"github.com/hyu9999/paper-trading-1/internal/auth"
	"github.com/hyu9999/paper-trading-1/internal/domain"
	"github.com/hyu9999/paper-trading-1/internal/mainengine"
	"github.com/hyu9999/paper-trading-1/internal/userengine"
)

// Server holds the dependencies the HTTP handlers need.
type Server struct {
	log       zerolog.Logger
	main      *mainengine.Engine
	users     *userengine.Engine
	userRepo  domain.UserRepository
	userCache domain.UserCache
	posCache  domain.PositionCache
	credRepo  CredentialRepository
	issuer    *auth.Issuer
	resolver  *auth.Resolver
}

// CredentialRepository backs /auth/register and /auth/login. It is kept
// separate from domain.UserRepository because password credentials are
// not part of the trading engine's core data model.
type CredentialRepository interface {
	Create(ctx context.Context, cred *domain.AuthCredential) error
	VerifyPassword(ctx context.Context, userID, password string) (bool, error)
}

// NewServer builds the chi router for the REST façade.
func NewServer(log zerolog.Logger, main *mainengine.Engine, users *userengine.Engine,
	userRepo domain.UserRepository, userCache domain.UserCache, posCache domain.PositionCache,
	issuer *auth.Issuer, resolver *auth.Resolver) *Server {
	return &Server{
		log:       log.With().Str("component", "httpapi").Logger(),
		main:      main,
		users:     users,
		userRepo:  userRepo,
		userCache: userCache,
		posCache:  posCache,
		issuer:    issuer,
		resolver:  resolver,
	}
}

// Router assembles the chi.Router with middleware, CORS, and every REST
// route this service exposes.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.loggingMiddleware)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE"},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		AllowCredentials: false,
	}))

	r.Post("/auth/register", s.handleRegister)
	r.Post("/auth/login", s.handleLogin)

	r.Group(func(r chi.Router) {
		r.Use(auth.Middleware(s.resolver, writeError))
		r.Post("/orders", s.handleCreateOrder)
		r.Get("/orders/{entrustId}", s.handleGetOrder)
		r.Get("/orders", s.handleListOrders)
		r.Delete("/orders/entrust_orders/{entrustId}", s.handleCancelOrder)
		r.Get("/position/", s.handleListPositions)
		r.Put("/users/cash", s.handleUpdateCash)
		r.Put("/users/terminate", s.handleTerminateUser)
	})

	return r
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.log.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Dur("elapsed", time.Since(start)).
			Msg("request")
	})
}
