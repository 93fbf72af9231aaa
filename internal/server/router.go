package server

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/sessions"
	"github.com/sirupsen/logrus"

	"ticketer/internal/handlers"
	"ticketer/internal/middleware"
	"ticketer/internal/services"
)

// Deps are the collaborators the HTTP API is assembled from
type Deps struct {
	Tickets        services.TicketServiceInterface
	Auth           services.AuthServiceInterface
	Sessions       sessions.Store
	CORS           middleware.CORSConfig
	LoginLimiter   *middleware.LoginRateLimiter // optional
	HealthChecks   map[string]handlers.HealthCheck
	UploadsDir     string // served under /uploads when set
	RequestTimeout time.Duration
	Logger         *logrus.Logger
}

// NewRouter builds the chi router for the ticketing API
func NewRouter(deps Deps) http.Handler {
	authMiddleware := middleware.NewAuthMiddleware(deps.Auth, deps.Sessions, deps.Logger)

	ticketHandler := handlers.NewTicketHandler(deps.Tickets, deps.Logger)
	authHandler := handlers.NewAuthHandler(deps.Auth, deps.Sessions, deps.Logger)
	healthHandler := handlers.NewHealthHandler(deps.HealthChecks, deps.Logger)

	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(authMiddleware.LoadUser)
	r.Use(middleware.LoggingMiddleware(deps.Logger))
	r.Use(middleware.ErrorHandlingMiddleware(deps.Logger))
	r.Use(middleware.CORSMiddleware(deps.CORS))
	r.Use(middleware.SecurityHeadersMiddleware)
	if deps.RequestTimeout > 0 {
		r.Use(chimiddleware.Timeout(deps.RequestTimeout))
	}

	r.NotFound(middleware.NotFoundHandler().ServeHTTP)
	r.MethodNotAllowed(middleware.MethodNotAllowedHandler().ServeHTTP)

	r.Get("/health", healthHandler.Health)

	r.Group(func(r chi.Router) {
		if deps.LoginLimiter != nil {
			r.Use(middleware.LoginRateLimit(deps.LoginLimiter))
		}
		r.Post("/login", authHandler.Login)
	})
	r.Post("/logout", authHandler.Logout)

	if deps.UploadsDir != "" {
		fs := http.StripPrefix(services.LocalStoragePrefix+"/", http.FileServer(http.Dir(deps.UploadsDir)))
		r.Handle(services.LocalStoragePrefix+"/*", fs)
	}

	r.Group(func(r chi.Router) {
		r.Use(authMiddleware.RequireAuth)

		r.Post("/users", authHandler.CreateUser)
		r.Get("/users", authHandler.ListUsers)

		ticketHandler.Routes(r)
	})

	return r
}
