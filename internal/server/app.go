// Package server wires the account service together: storage, notifier,
// token issuer, the HTTP API and the gRPC health endpoint. It also
// handles graceful shutdown.
package server

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/dmitrijs2005/idkeeper/internal/logging"
	"github.com/dmitrijs2005/idkeeper/internal/server/access"
	"github.com/dmitrijs2005/idkeeper/internal/server/auth"
	"github.com/dmitrijs2005/idkeeper/internal/server/config"
	"github.com/dmitrijs2005/idkeeper/internal/server/metrics"
	"github.com/dmitrijs2005/idkeeper/internal/server/notify"
	"github.com/dmitrijs2005/idkeeper/internal/server/password"
	"github.com/dmitrijs2005/idkeeper/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/idkeeper/internal/server/rest"
	"github.com/dmitrijs2005/idkeeper/internal/server/services"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	gs "github.com/dmitrijs2005/idkeeper/internal/server/grpc"
)

// Construction seams, replaced in tests.
var (
	newStore     = repomanager.New
	newNotifier  = notify.New
	hasherParams = password.DefaultParams
)

type App struct {
	config   *config.Config
	logger   logging.Logger
	store    repomanager.RepositoryManager
	notifier notify.Notifier
	http     *rest.Server
	grpc     *gs.GRPCServer
}

func NewApp(ctx context.Context, c *config.Config) (*App, error) {
	logger, err := logging.New(logging.Options{Driver: c.LogDriver, Level: c.LogLevel, Format: c.LogFormat})
	if err != nil {
		return nil, fmt.Errorf("logger init error: %w", err)
	}

	store, err := newStore(c.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}
	if err := store.RunMigrations(ctx); err != nil {
		_ = store.Close(ctx)
		return nil, fmt.Errorf("db migrations error: %w", err)
	}

	notifier, err := newNotifier(ctx, c, logger)
	if err != nil {
		_ = store.Close(ctx)
		return nil, fmt.Errorf("notifier init error: %w", err)
	}

	hasher, err := password.NewArgon2(hasherParams)
	if err != nil {
		_ = notifier.Close()
		_ = store.Close(ctx)
		return nil, fmt.Errorf("password hasher init error: %w", err)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	recorder := metrics.New(reg)

	issuer := auth.NewIssuer([]byte(c.SecretKey), c.SessionTokenTTL)

	svc := services.NewAuthService(store.Accounts(), hasher, issuer, notifier, logger, services.Options{
		AppURL:               c.AppURL,
		MfaCodeTTL:           c.MfaCodeTTL,
		ResetTokenTTL:        c.ResetTokenTTL,
		RequireVerifiedEmail: c.RequireVerifiedEmail,
	}).WithMetrics(recorder)

	if c.AdminEmail != "" {
		seed := services.AdminSeed{Name: c.AdminName, Email: c.AdminEmail, Password: c.AdminPassword}
		if err := svc.EnsureAdmin(ctx, seed); err != nil {
			_ = notifier.Close()
			_ = store.Close(ctx)
			return nil, fmt.Errorf("admin bootstrap error: %w", err)
		}
	}

	gate := access.NewGate(issuer, store.Accounts(), logger)

	httpServer := rest.NewServer(rest.Options{
		Addr:           c.HTTPAddr,
		Environment:    c.Environment,
		Production:     c.IsProduction(),
		AllowedOrigins: c.AllowedOrigins,
	}, svc, gate, store, recorder, logger)

	var grpcServer *gs.GRPCServer
	if c.GRPCAddr != "" {
		grpcServer = gs.NewGRPCServer(c.GRPCAddr, logger, store)
	}

	return &App{
		config:   c,
		logger:   logger,
		store:    store,
		notifier: notifier,
		http:     httpServer,
		grpc:     grpcServer,
	}, nil
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	// Channel to catch OS signals.
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

// serve runs fn and cancels the whole app if it fails.
func (app *App) serve(ctx context.Context, cancelFunc context.CancelFunc, name string, fn func(context.Context) error) {
	if err := fn(ctx); err != nil {
		app.logger.Error(ctx, name+" server failed", "error", err)
		cancelFunc()
	}
}

// Run blocks until a signal arrives, ctx is cancelled or a server fails.
func (app *App) Run(ctx context.Context) {

	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...", "environment", app.config.Environment)

	app.initSignalHandler(cancelFunc)

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		app.serve(ctx, cancelFunc, "http", app.http.Run)
	}()

	if app.grpc != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			app.serve(ctx, cancelFunc, "grpc", app.grpc.Run)
		}()
	}

	wg.Wait()

	app.close()
	app.logger.Info(context.Background(), "App stopped")
}

func (app *App) close() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := app.notifier.Close(); err != nil {
		app.logger.Error(ctx, "notifier close", "error", err)
	}
	if err := app.store.Close(ctx); err != nil {
		app.logger.Error(ctx, "store close", "error", err)
	}
	if z, ok := app.logger.(*logging.ZapLogger); ok {
		_ = z.Sync()
	}
}
