package grpcapi

import (
	"context"
	"log"
	"net"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
)

// ServiceName is the health entry door controllers and orchestrators probe
// in addition to the overall "" entry.
const ServiceName = "labaccess.v1.Access"

// Server exposes the standard grpc.health.v1 service.  It carries no
// domain RPCs; the scan path is HTTP.
type Server struct {
	addr   string
	logger *log.Logger
	health *health.Server
	srv    *grpc.Server
}

func NewServer(addr string, logger *log.Logger) *Server {
	s := &Server{
		addr:   addr,
		logger: logger,
		health: health.NewServer(),
	}
	s.srv = grpc.NewServer(grpc.ChainUnaryInterceptor(s.loggingInterceptor))
	healthpb.RegisterHealthServer(s.srv, s.health)
	s.health.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_SERVING)
	return s
}

// Run listens on the configured address and blocks until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	lis, err := net.Listen("tcp", s.addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, lis)
}

// Serve accepts on lis until ctx is cancelled, then marks every service
// NOT_SERVING and stops gracefully.
func (s *Server) Serve(ctx context.Context, lis net.Listener) error {
	go func() {
		<-ctx.Done()
		s.logger.Printf("grpc: stopping")
		s.health.Shutdown()
		s.srv.GracefulStop()
	}()

	s.logger.Printf("grpc: listening on %s", lis.Addr())
	return s.srv.Serve(lis)
}

func (s *Server) loggingInterceptor(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
	start := time.Now()
	resp, err := handler(ctx, req)
	s.logger.Printf("grpc %s %s %s", info.FullMethod, status.Code(err), time.Since(start))
	return resp, err
}
