// Package grpc serves the standard gRPC health service for the account API,
// reporting the reachability of the account store.
package grpc

import (
	"context"
	"net"
	"time"

	"github.com/dmitrijs2005/idkeeper/internal/logging"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
)

// ServiceName is the health-check name of the account API.
const ServiceName = "idkeeper.Accounts"

const defaultProbeInterval = 15 * time.Second

// Pinger reports store reachability.
type Pinger interface {
	Ping(ctx context.Context) error
}

type GRPCServer struct {
	address       string
	store         Pinger
	logger        logging.Logger
	health        *health.Server
	probeInterval time.Duration
}

func NewGRPCServer(a string, l logging.Logger, store Pinger) *GRPCServer {
	return &GRPCServer{
		address:       a,
		store:         store,
		logger:        l.With("module", "grpc_server"),
		health:        health.NewServer(),
		probeInterval: defaultProbeInterval,
	}
}

func (s *GRPCServer) Run(ctx context.Context) error {

	// announces address
	listen, err := net.Listen("tcp", s.address)
	if err != nil {
		return err
	}

	return s.Serve(ctx, listen)
}

// Serve runs on an existing listener until ctx is cancelled.
func (s *GRPCServer) Serve(ctx context.Context, listen net.Listener) error {
	srv := grpc.NewServer(grpc.ChainUnaryInterceptor(s.recoveryInterceptor, s.loggingInterceptor))

	healthpb.RegisterHealthServer(srv, s.health)
	reflection.Register(srv)

	s.probe(ctx)

	go func() {
		t := time.NewTicker(s.probeInterval)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				s.logger.Info(ctx, "Stopping gRPC server...")
				s.health.Shutdown()
				srv.GracefulStop()
				return
			case <-t.C:
				s.probe(ctx)
			}
		}
	}()

	s.logger.Info(ctx, "Starting gRPC server", "address", listen.Addr().String())

	// starts accepting incoming connections
	return srv.Serve(listen)
}

// probe pings the store and publishes the result.
func (s *GRPCServer) probe(ctx context.Context) {
	st := healthpb.HealthCheckResponse_SERVING
	if s.store != nil {
		pctx, cancel := context.WithTimeout(ctx, 2*time.Second)
		err := s.store.Ping(pctx)
		cancel()
		if err != nil {
			s.logger.Warn(ctx, "store ping failed", "error", err)
			st = healthpb.HealthCheckResponse_NOT_SERVING
		}
	}
	s.health.SetServingStatus("", st)
	s.health.SetServingStatus(ServiceName, st)
}
