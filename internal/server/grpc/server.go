package grpc

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	"github.com/MSSkowron/MicroURL/pkg/logger"
)

type contextKey string

const (
	// DefaultPort is the default port the server listens on.
	DefaultPort = 9090
	// DefaultAddress is the default address the server listens on.
	DefaultAddress = ""
	// DefaultCheckInterval is how often the store is pinged to refresh the health status.
	DefaultCheckInterval = 10 * time.Second
	// ServiceName is the health service name reported for the registry.
	ServiceName = "microurl.Registry"

	contextKeyRPCID = contextKey("rpcID")
)

// Pinger reports whether the registry can serve requests.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Server represents the gRPC server exposing the registry health.
type Server struct {
	pinger Pinger

	address       string
	port          int
	checkInterval time.Duration

	health     *health.Server
	grpcServer *grpc.Server
}

// NewServer creates a new Server reporting the health of pinger.
func NewServer(pinger Pinger, opts ...Opt) *Server {
	server := &Server{
		pinger:        pinger,
		address:       DefaultAddress,
		port:          DefaultPort,
		checkInterval: DefaultCheckInterval,
		health:        health.NewServer(),
	}

	for _, opt := range opts {
		opt(server)
	}

	server.grpcServer = grpc.NewServer(
		grpc.ChainUnaryInterceptor(server.unaryLogInterceptor),
		grpc.ChainStreamInterceptor(server.streamLogInterceptor),
	)
	healthpb.RegisterHealthServer(server.grpcServer, server.health)
	reflection.Register(server.grpcServer)

	server.setStatus(healthpb.HealthCheckResponse_NOT_SERVING)

	return server
}

// Opt represents an option that can be passed to NewServer.
type Opt func(*Server)

// WithAddress sets the address the server listens on.
func WithAddress(address string) Opt {
	return func(s *Server) {
		s.address = address
	}
}

// WithPort sets the port the server listens on.
func WithPort(port int) Opt {
	return func(s *Server) {
		s.port = port
	}
}

// WithCheckInterval sets how often the health status is refreshed.
func WithCheckInterval(interval time.Duration) Opt {
	return func(s *Server) {
		s.checkInterval = interval
	}
}

// ListenAndServe starts the server and listens for incoming connections.
func (s *Server) ListenAndServe() error {
	ln, err := net.Listen("tcp", net.JoinHostPort(s.address, strconv.Itoa(s.port)))
	if err != nil {
		return fmt.Errorf("failed to create tcp listener on %s:%d: %w", s.address, s.port, err)
	}

	logger.Info("gRPC server listening", "address", s.address, "port", s.port)

	return s.Serve(ln)
}

// Serve accepts connections on ln until the server is stopped.
func (s *Server) Serve(ln net.Listener) error {
	if err := s.grpcServer.Serve(ln); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
		return fmt.Errorf("failed to run grpc server on %s: %w", ln.Addr(), err)
	}

	return nil
}

// CheckHealth pings the registry once and publishes the result.
func (s *Server) CheckHealth(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, s.checkInterval)
	defer cancel()

	if err := s.pinger.Ping(ctx); err != nil {
		logger.Warn("Registry health check failed", "error", err)
		s.setStatus(healthpb.HealthCheckResponse_NOT_SERVING)
		return
	}

	s.setStatus(healthpb.HealthCheckResponse_SERVING)
}

// RunHealthChecks refreshes the health status every check interval until ctx is done.
func (s *Server) RunHealthChecks(ctx context.Context) error {
	s.CheckHealth(ctx)

	ticker := time.NewTicker(s.checkInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			s.CheckHealth(ctx)
		}
	}
}

// Shutdown marks every service as not serving and stops the server,
// waiting for in-flight RPCs until ctx is done.
func (s *Server) Shutdown(ctx context.Context) {
	s.health.Shutdown()

	stopped := make(chan struct{})
	go func() {
		s.grpcServer.GracefulStop()
		close(stopped)
	}()

	select {
	case <-stopped:
	case <-ctx.Done():
		s.grpcServer.Stop()
		<-stopped
	}
}

func (s *Server) setStatus(status healthpb.HealthCheckResponse_ServingStatus) {
	s.health.SetServingStatus("", status)
	s.health.SetServingStatus(ServiceName, status)
}
