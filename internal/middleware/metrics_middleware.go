package middleware

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/status"

	metricspkg "github.com/stormhead-org/fairway/internal/metrics"
)

// MetricsMiddleware counts finished calls by full method name and status code.
type MetricsMiddleware struct {
	metrics *metricspkg.Metrics
}

func NewMetricsMiddleware(metrics *metricspkg.Metrics) *MetricsMiddleware {
	return &MetricsMiddleware{
		metrics: metrics,
	}
}

func (i *MetricsMiddleware) Unary() grpc.UnaryServerInterceptor {
	return func(
		ctx context.Context,
		req interface{},
		info *grpc.UnaryServerInfo,
		handler grpc.UnaryHandler,
	) (interface{}, error) {
		response, err := handler(ctx, req)
		i.metrics.Request(info.FullMethod, status.Code(err).String())
		return response, err
	}
}

func (i *MetricsMiddleware) Stream() grpc.StreamServerInterceptor {
	return func(
		srv interface{},
		stream grpc.ServerStream,
		info *grpc.StreamServerInfo,
		handler grpc.StreamHandler,
	) error {
		err := handler(srv, stream)
		i.metrics.Request(info.FullMethod, status.Code(err).String())
		return err
	}
}
