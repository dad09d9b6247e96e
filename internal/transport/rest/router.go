package rest

import (
	"log/slog"

	"github.com/frahmantamala/employee-onboarding/api"
	"github.com/frahmantamala/employee-onboarding/internal/auth"
	"github.com/frahmantamala/employee-onboarding/internal/employee"
	"github.com/frahmantamala/employee-onboarding/internal/transport/middleware"
	"github.com/frahmantamala/employee-onboarding/internal/transport/swagger"
	"github.com/frahmantamala/employee-onboarding/internal/web"
	"github.com/go-chi/chi"
	chiMiddleware "github.com/go-chi/chi/middleware"
)

type Handlers struct {
	Auth     *auth.Handler
	Employee *employee.Handler
	Web      *web.Handler
	Health   *HealthHandler
}

func RegisterAllRoutes(router *chi.Mux, h Handlers, logger *slog.Logger) {
	// Apply global middleware
	router.Use(chiMiddleware.RequestID)
	router.Use(chiMiddleware.RealIP)
	router.Use(middleware.RequestID)
	router.Use(middleware.LoggingMiddleware(logger))
	router.Use(middleware.RecoveryMiddleware(logger))

	router.Get("/openapi.yml", api.ServeSpec)
	router.Handle("/swagger/*", swagger.Handler("/openapi.yml"))
	router.Get("/healthcheck", h.Health.healthCheckHandler)

	// Mount API under /api/v1 to match OpenAPI basePath
	router.Route("/api/v1", func(r chi.Router) {
		r.Get("/healthchecker", h.Health.healthCheckHandler)
		r.Get("/ping", h.Health.pingHandler)

		r.Route("/auth", h.Auth.Routes)

		// Protected routes that require an admin session
		r.Group(func(pr chi.Router) {
			pr.Use(h.Auth.RequireSession)
			pr.Route("/employees", h.Employee.Routes)
		})
	})

	if h.Web != nil {
		h.Web.Routes(router, h.Auth.RequireSessionRedirect("/login"))
	}
}
