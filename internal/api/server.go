package api

import (
	"context"
	"fmt"
	"net"
	"time"

	grpc_prometheus "github.com/grpc-ecosystem/go-grpc-prometheus"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	"github.com/miradorstack/uavlog-analyst/internal/config"
)

// Server hosts the Analyst service next to the health and reflection services.
type Server struct {
	cfg        config.ServerConfig
	grpcServer *grpc.Server
	health     *health.Server
	listener   net.Listener
}

// NewServer listens on cfg.Address and registers service. Messages are capped
// at cfg.MaxBodyBytes, matching the HTTP body limit.
func NewServer(cfg config.ServerConfig, service AnalystServer, opts ...grpc.ServerOption) (*Server, error) {
	lis, err := net.Listen("tcp", cfg.Address)
	if err != nil {
		return nil, fmt.Errorf("grpc listen on %s: %w", cfg.Address, err)
	}

	grpcServer := grpc.NewServer(append(analystServerOptions(cfg), opts...)...)
	RegisterAnalystServer(grpcServer, service)
	grpc_prometheus.Register(grpcServer)

	status := health.NewServer()
	for _, name := range []string{"", AnalystServiceName} {
		status.SetServingStatus(name, healthpb.HealthCheckResponse_SERVING)
	}
	healthpb.RegisterHealthServer(grpcServer, status)
	reflection.Register(grpcServer)

	return &Server{cfg: cfg, grpcServer: grpcServer, health: status, listener: lis}, nil
}

func analystServerOptions(cfg config.ServerConfig) []grpc.ServerOption {
	grpc_prometheus.EnableHandlingTimeHistogram()
	opts := []grpc.ServerOption{
		grpc.ChainUnaryInterceptor(grpc_prometheus.UnaryServerInterceptor),
		grpc.ChainStreamInterceptor(grpc_prometheus.StreamServerInterceptor),
	}
	if cfg.MaxBodyBytes > 0 {
		opts = append(opts, grpc.MaxRecvMsgSize(int(cfg.MaxBodyBytes)))
	}
	return opts
}

// Start blocks serving RPCs until Shutdown.
func (s *Server) Start() error {
	if s.grpcServer == nil || s.listener == nil {
		return fmt.Errorf("analyst grpc server not initialised")
	}
	return s.grpcServer.Serve(s.listener)
}

// Shutdown reports NOT_SERVING to health checks, drains in-flight calls and
// cuts them off when ctx ends first.
func (s *Server) Shutdown(ctx context.Context) {
	if s.grpcServer == nil {
		return
	}
	s.health.Shutdown()

	drained := make(chan struct{})
	go func() {
		defer close(drained)
		s.grpcServer.GracefulStop()
	}()

	select {
	case <-drained:
	case <-ctx.Done():
		s.grpcServer.Stop()
	}
}

// Address is the bound listener address, resolved when the port was 0.
func (s *Server) Address() string {
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// GracefulTimeout bounds how long serve waits for Shutdown.
func (s *Server) GracefulTimeout() time.Duration {
	return s.cfg.GracefulTimeout
}
