package rest

import (
	"net/http"
	"time"

	"github.com/dmitrijs2005/idkeeper/internal/common"
	"github.com/dmitrijs2005/idkeeper/internal/server/access"
	"github.com/dmitrijs2005/idkeeper/internal/server/models"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// maxBodyBytes caps request bodies.
const maxBodyBytes = 1 << 20

func limitBody(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Body != nil {
			r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
		}
		next.ServeHTTP(w, r)
	})
}

// securityHeaders sets the usual hardening headers on every response.
func securityHeaders(production bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h := w.Header()
			h.Set("X-Content-Type-Options", "nosniff")
			h.Set("X-Frame-Options", "SAMEORIGIN")
			h.Set("Referrer-Policy", "no-referrer")
			h.Set("X-DNS-Prefetch-Control", "off")
			h.Set("Cross-Origin-Opener-Policy", "same-origin")
			h.Set("Content-Security-Policy", "default-src 'self'")
			if production {
				h.Set("Strict-Transport-Security", "max-age=15552000; includeSubDomains")
			}
			next.ServeHTTP(w, r)
		})
	}
}

// observe logs each request and records its latency under the matched
// route pattern.
func (s *Server) observe(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		route := chi.RouteContext(r.Context()).RoutePattern()
		if route == "" {
			route = "unmatched"
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		d := time.Since(start)

		s.metrics.ObserveHTTP(r.Method, route, status, d)

		args := []any{
			"method", r.Method,
			"path", r.URL.Path,
			"status", status,
			"bytes", ww.BytesWritten(),
			"duration", d,
			"request_id", middleware.GetReqID(r.Context()),
		}
		switch {
		case status >= 500:
			s.log.Error(r.Context(), "request", args...)
		case status >= 400:
			s.log.Warn(r.Context(), "request", args...)
		default:
			s.log.Info(r.Context(), "request", args...)
		}
	})
}

// authenticate resolves the bearer token and stores the account in the
// request context.
func (s *Server) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		a, err := s.gate.Resolve(r.Context(), r.Header.Get(common.AuthorizationHeaderName))
		if err != nil {
			s.fail(w, r, err)
			return
		}
		next.ServeHTTP(w, r.WithContext(access.WithAccount(r.Context(), a)))
	})
}

// authorizeRoles must be mounted after authenticate.
func (s *Server) authorizeRoles(allowed ...models.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			a, _ := access.AccountFrom(r.Context())
			if err := access.Authorize(a, allowed...); err != nil {
				s.log.Warn(r.Context(), "role check failed", "path", r.URL.Path)
				s.fail(w, r, err)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
