package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
)

// RouterOptions configures the cross-cutting middleware.
type RouterOptions struct {
	CORSOrigins       []string
	AuthRatePerMinute int
}

// Routes builds the API router.
func (h *Handler) Routes(opts RouterOptions) http.Handler {
	r := chi.NewRouter()

	// Global middleware stack
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(Logger(h.logger))
	r.Use(chimiddleware.Recoverer)
	r.Use(CORS(opts.CORSOrigins))

	r.Get("/health", HealthCheck)

	limiter := NewRateLimiter(opts.AuthRatePerMinute)
	r.Route("/auth", func(r chi.Router) {
		r.Use(h.Limit(limiter))
		r.Post("/register", h.RegisterUser)
		r.Post("/login", h.Login)
		r.Post("/logout", h.Logout)
		r.Post("/password-reset", h.RequestPasswordReset)
		r.Post("/password-reset/confirm", h.ConfirmPasswordReset)
	})

	r.Route("/events", func(r chi.Router) {
		r.Get("/", h.ListEvents)
		r.Get("/search", h.SearchEvents)
		r.Get("/{id}", h.GetEvent)

		r.Group(func(r chi.Router) {
			r.Use(h.RequireUser)
			r.Post("/", h.CreateEvent)
			r.Put("/{id}", h.UpdateEvent)
			r.Delete("/{id}", h.DeleteEvent)
			r.Get("/{id}/bookings", h.ListEventBookings)
			r.Post("/{id}/booking", h.Reserve)
			r.Delete("/{id}/booking", h.Cancel)
		})
	})

	r.Group(func(r chi.Router) {
		r.Use(h.RequireUser)
		r.Get("/me", h.Me)
		r.Get("/me/bookings", h.MyBookings)
		r.Delete("/users/{id}", h.DeleteUser)
		r.Get("/admin/summary", h.Summary)
	})

	return r
}
