package grpc

import (
	"fmt"
	"net"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	metricspkg "github.com/stormhead-org/fairway/internal/metrics"
	"github.com/stormhead-org/fairway/internal/middleware"

	documentgrpcpkg "github.com/stormhead-org/fairway/internal/grpc/document"
)

type GRPC struct {
	logger *zap.Logger
	host   string
	port   string
	server *grpc.Server
}

func NewGRPC(
	logger *zap.Logger,
	metrics *metricspkg.Metrics,
	documentServer *documentgrpcpkg.DocumentServer,
	host string,
	port string,
	rps float64,
	burst int,
) (*GRPC, error) {
	rateLimitMiddleware := middleware.NewRateLimitMiddleware(rps, burst)
	metricsMiddleware := middleware.NewMetricsMiddleware(metrics)

	grpcServer := grpc.NewServer(
		grpc.ChainUnaryInterceptor(
			metricsMiddleware.Unary(),
			rateLimitMiddleware.Unary(),
		),
		grpc.ChainStreamInterceptor(
			metricsMiddleware.Stream(),
			rateLimitMiddleware.Stream(),
		),
	)

	// Register services
	documentgrpcpkg.RegisterDocumentServiceServer(grpcServer, documentServer)

	// Health API
	healthServer := health.NewServer()
	healthServer.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	healthServer.SetServingStatus(documentgrpcpkg.ServiceName, healthpb.HealthCheckResponse_SERVING)
	healthpb.RegisterHealthServer(grpcServer, healthServer)

	// Reflection API
	reflection.Register(grpcServer)

	return &GRPC{
		logger: logger,
		host:   host,
		port:   port,
		server: grpcServer,
	}, nil
}

// Serve runs the server on an existing listener and blocks until it stops.
func (this *GRPC) Serve(listener net.Listener) error {
	this.logger.Info("GRPC server started", zap.String("addr", listener.Addr().String()))
	return this.server.Serve(listener)
}

func (this *GRPC) Start() error {
	listener, err := net.Listen("tcp", fmt.Sprintf("%s:%s", this.host, this.port))
	if err != nil {
		return err
	}

	go func() {
		err := this.Serve(listener)
		if err != nil {
			this.logger.Error("GRPC server stopped", zap.Error(err))
		}
	}()

	return nil
}

func (this *GRPC) Stop() error {
	this.server.GracefulStop()
	this.logger.Info("GRPC server stopped gracefully")
	return nil
}
