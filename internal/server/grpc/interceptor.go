package grpc

import (
	"context"

	"github.com/google/uuid"
	"google.golang.org/grpc"
	"google.golang.org/grpc/status"

	"github.com/MSSkowron/MicroURL/pkg/logger"
	"github.com/MSSkowron/MicroURL/pkg/wrapper"
)

func (s *Server) unaryLogInterceptor(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
	rpcID := uuid.New().String()

	logger.Debug("Received unary RPC", "id", rpcID, "method", info.FullMethod, "request", req)

	resp, err := handler(context.WithValue(ctx, contextKeyRPCID, rpcID), req)
	if err != nil {
		logger.Warn("Unary RPC failed", "id", rpcID, "method", info.FullMethod, "error", status.Convert(err).Message())
	}

	return resp, err
}

func (s *Server) streamLogInterceptor(srv any, ss grpc.ServerStream, info *grpc.StreamServerInfo, handler grpc.StreamHandler) error {
	rpcID := uuid.New().String()

	logger.Debug("Received stream RPC", "id", rpcID, "method", info.FullMethod)

	wrapped := wrapper.WrapServerStream(ss)
	wrapped.SetContext(context.WithValue(ss.Context(), contextKeyRPCID, rpcID))

	err := handler(srv, wrapped)
	if err != nil {
		logger.Warn("Stream RPC failed", "id", rpcID, "method", info.FullMethod, "error", status.Convert(err).Message())
	}

	return err
}
