package server

import (
	"context"
	"log/slog"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/metadata"

	"github.com/joseph-ayodele/taxdocs/internal/common"
)

// NewGRPCServer registers svc and the standard health service. The returned
// health server reports SERVING for ServiceName until the caller changes it.
func NewGRPCServer(svc TaxDocsServer, logger *slog.Logger, opts ...grpc.ServerOption) (*grpc.Server, *health.Server) {
	if logger == nil {
		logger = slog.Default()
	}
	opts = append([]grpc.ServerOption{grpc.ChainUnaryInterceptor(unaryInterceptor(logger))}, opts...)
	gs := grpc.NewServer(opts...)
	RegisterTaxDocsServer(gs, svc)

	hs := health.NewServer()
	hs.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	hs.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_SERVING)
	healthpb.RegisterHealthServer(gs, hs)
	return gs, hs
}

// unaryInterceptor attaches a request ID, logs each call and maps the error
// taxonomy onto status codes.
func unaryInterceptor(logger *slog.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		if md, ok := metadata.FromIncomingContext(ctx); ok {
			if ids := md.Get(requestIDHeader); len(ids) > 0 && ids[0] != "" {
				ctx = common.WithRequestID(ctx, ids[0])
			}
		}
		ctx = common.EnsureRequestID(ctx)
		log := common.LoggerFrom(ctx, logger).With("method", info.FullMethod)

		start := time.Now()
		resp, err := handler(ctx, req)
		elapsed := time.Since(start).Milliseconds()
		if err != nil {
			err = common.ToStatus(err)
			log.Warn("grpc.call.failed", "elapsed_ms", elapsed, "error", err)
			return nil, err
		}
		log.Debug("grpc.call.ok", "elapsed_ms", elapsed)
		return resp, nil
	}
}
