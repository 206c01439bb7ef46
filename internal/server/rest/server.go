// Package rest exposes the account API over HTTP.
package rest

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/dmitrijs2005/idkeeper/internal/logging"
	"github.com/dmitrijs2005/idkeeper/internal/server/metrics"
	"github.com/dmitrijs2005/idkeeper/internal/server/models"
	"github.com/dmitrijs2005/idkeeper/internal/server/services"
)

const shutdownTimeout = 10 * time.Second

// AuthService is implemented by *services.AuthService.
type AuthService interface {
	CreateUser(ctx context.Context, in services.SignUpInput) (*services.SignUpResult, error)
	VerifyEmail(ctx context.Context, token string) error
	ResendVerification(ctx context.Context, email string) error
	LoginUser(ctx context.Context, email, password string) error
	VerifyMfaCode(ctx context.Context, email, code string) (string, error)
	RequestPasswordReset(ctx context.Context, email string) error
	ResetPassword(ctx context.Context, token, newPassword string) error
	GetUserProfile(ctx context.Context, id string) (models.PublicAccount, error)
	UpdateUser(ctx context.Context, id string, patch models.AccountPatch) (models.PublicAccount, error)
	DeleteUser(ctx context.Context, actor *models.Account, id string) error
	GetAllUsers(ctx context.Context) ([]models.PublicAccount, error)
}

// Gate is implemented by *access.Gate.
type Gate interface {
	Resolve(ctx context.Context, header string) (*models.Account, error)
}

// Pinger reports store reachability for the health endpoint.
type Pinger interface {
	Ping(ctx context.Context) error
}

type Options struct {
	Addr           string
	Environment    string
	Production     bool
	AllowedOrigins []string
}

type Server struct {
	opts    Options
	svc     AuthService
	gate    Gate
	store   Pinger
	metrics *metrics.Recorder
	log     logging.Logger
	started time.Time
	now     func() time.Time
	handler http.Handler
}

func NewServer(opts Options, svc AuthService, gate Gate, store Pinger, m *metrics.Recorder, l logging.Logger) *Server {
	s := &Server{
		opts:    opts,
		svc:     svc,
		gate:    gate,
		store:   store,
		metrics: m,
		log:     l.With("module", "http_server"),
		now:     time.Now,
	}
	s.started = s.now()
	s.handler = s.routes()
	return s
}

// Handler returns the fully wired router.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Run serves on opts.Addr until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) Run(ctx context.Context) error {
	listen, err := net.Listen("tcp", s.opts.Addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, listen)
}

// Serve serves on listen until ctx is cancelled. Request contexts do not
// inherit the cancellation; in-flight requests are drained by Shutdown.
func (s *Server) Serve(ctx context.Context, listen net.Listener) error {
	base := context.WithoutCancel(ctx)
	srv := &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return base },
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		<-ctx.Done()
		s.log.Info(ctx, "Stopping HTTP server...")

		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			s.log.Error(ctx, "http shutdown", "error", err)
		}
	}()

	s.log.Info(ctx, "Starting HTTP server", "address", listen.Addr().String())

	if err := srv.Serve(listen); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	<-done
	return nil
}

// fail writes err and logs it if it maps to a 5xx.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	if StatusFor(err) >= http.StatusInternalServerError {
		s.log.Error(r.Context(), "request failed", "path", r.URL.Path, "error", err)
	}
	writeError(w, err, !s.opts.Production)
}
