package httpapi

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/MrEthical07/devAuth/middleware"
)

// RouterDeps groups what NewRouter wires together.
type RouterDeps struct {
	Service Service
	Logger  *slog.Logger
	// Metrics is mounted at /metrics when non-nil.
	Metrics http.Handler
}

// NewRouter returns the full route table.
func NewRouter(deps RouterDeps) http.Handler {
	h := NewHandler(deps.Service, deps.Logger)

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.Recoverer)

	r.Get("/healthz", h.Health)
	if deps.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", deps.Metrics)
	}

	r.Route("/v1", func(r chi.Router) {
		r.Post("/auth/register", h.Register)
		r.Post("/auth/login", h.Login)

		r.Group(func(r chi.Router) {
			r.Use(middleware.Guard(deps.Service))

			r.Get("/auth/session", h.Session)
			r.Post("/auth/logout", h.Logout)
			r.Post("/auth/logout-all", h.LogoutAll)

			r.Route("/devices", func(r chi.Router) {
				r.Get("/", h.ListDevices)
				r.Post("/{deviceID}/trust", h.TrustDevice)
				r.Delete("/{deviceID}", h.RevokeDevice)
			})
		})
	})

	return r
}
