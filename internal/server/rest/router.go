package rest

import (
	"net/http"

	"github.com/dmitrijs2005/idkeeper/internal/common"
	"github.com/dmitrijs2005/idkeeper/internal/server/models"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.observe)
	r.Use(middleware.Recoverer)
	r.Use(securityHeaders(s.opts.Production))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.opts.AllowedOrigins,
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
		MaxAge:         300,
	}))
	r.Use(limitBody)

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		s.log.Warn(r.Context(), "404 Not Found", "url", r.URL.String())
		writeJSON(w, http.StatusNotFound, Envelope{Message: "Route not found", Error: "NotFound"})
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusMethodNotAllowed, Envelope{Message: "Method not allowed", Error: "MethodNotAllowed"})
	})

	r.Get("/health", s.health)
	r.Get("/api/health", s.health)
	if s.metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.metrics.Handler())
	}

	r.Route(common.APIPrefix+"/auth", func(r chi.Router) {
		r.Post("/sign-up", s.signUp)
		r.Post("/sign-in", s.signIn)

		r.Get("/verify-email", s.verifyEmail)
		r.Post("/verify-email", s.verifyEmail)
		r.Post("/verify-mfacode", s.verifyMfaCode)
		r.Post("/resend-verification", s.resendVerification)

		r.Post("/forgot-password", s.forgotPassword)
		r.Post("/reset-password", s.resetPassword)

		r.Group(func(r chi.Router) {
			r.Use(s.authenticate)

			r.Get("/me", s.getProfile)
			r.Put("/me", s.updateProfile)
			r.Delete("/users/{id}", s.deleteUser)

			r.With(s.authorizeRoles(models.RoleAdministrator)).Get("/users", s.listUsers)
		})
	})

	return r
}
