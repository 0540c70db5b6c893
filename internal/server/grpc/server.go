// Package grpc runs the operational gRPC listener. It serves the standard
// grpc.health.v1 service so orchestrators can probe the process.
package grpc

import (
	"context"
	"net"
	"time"

	"github.com/dmitrijs2005/bucketvault/internal/logging"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// ServiceName is the name reported alongside the overall ("") status.
const ServiceName = "bucketvault"

const defaultStopTimeout = 5 * time.Second

type HealthServer struct {
	address     string
	logger      logging.Logger
	health      *health.Server
	stopTimeout time.Duration

	listen func(network, address string) (net.Listener, error)
}

func NewHealthServer(address string, l logging.Logger) *HealthServer {
	return &HealthServer{
		address:     address,
		logger:      l.With("module", "grpc_server"),
		health:      health.NewServer(),
		stopTimeout: defaultStopTimeout,
		listen:      net.Listen,
	}
}

// SetServing flips the reported status of the whole process.
func (s *HealthServer) SetServing(serving bool) {
	st := healthpb.HealthCheckResponse_NOT_SERVING
	if serving {
		st = healthpb.HealthCheckResponse_SERVING
	}
	s.health.SetServingStatus("", st)
	s.health.SetServingStatus(ServiceName, st)
}

// Run serves until ctx is cancelled. On shutdown every service is reported
// NOT_SERVING before the listener is drained.
func (s *HealthServer) Run(ctx context.Context) error {
	listen, err := s.listen("tcp", s.address)
	if err != nil {
		return err
	}

	srv := grpc.NewServer(grpc.ChainUnaryInterceptor(s.loggingInterceptor))
	healthpb.RegisterHealthServer(srv, s.health)
	s.SetServing(true)

	go func() {
		<-ctx.Done()
		s.logger.Info(ctx, "Stopping gRPC server...")
		s.health.Shutdown()

		// open Watch streams never finish on their own
		stopped := make(chan struct{})
		go func() {
			srv.GracefulStop()
			close(stopped)
		}()
		select {
		case <-stopped:
		case <-time.After(s.stopTimeout):
			srv.Stop()
		}
	}()

	s.logger.Info(ctx, "Starting gRPC server", "address", listen.Addr().String())

	if err := srv.Serve(listen); err != nil {
		return err
	}

	return nil
}
