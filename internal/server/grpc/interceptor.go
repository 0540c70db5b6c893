package grpc

import (
	"context"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/status"
)

func (s *HealthServer) loggingInterceptor(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
	start := time.Now()

	resp, err := handler(ctx, req)

	args := []any{
		"method", info.FullMethod,
		"code", status.Code(err).String(),
		"duration", time.Since(start).String(),
	}
	if err != nil {
		s.logger.Warn(ctx, "grpc request failed", append(args, "error", err)...)
	} else {
		s.logger.Debug(ctx, "grpc request", args...)
	}

	return resp, err
}
