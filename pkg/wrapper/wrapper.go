package wrapper

import (
	"context"

	"google.golang.org/grpc"
)

// WrappedServerStream is a grpc.ServerStream whose context can be replaced by interceptors.
type WrappedServerStream struct {
	grpc.ServerStream
	// WrappedContext is the context returned by Context.
	WrappedContext context.Context
}

// WrapServerStream returns a WrappedServerStream carrying the context of stream.
// If stream is already wrapped, it is returned unchanged.
func WrapServerStream(stream grpc.ServerStream) *WrappedServerStream {
	if existing, ok := stream.(*WrappedServerStream); ok {
		return existing
	}
	return &WrappedServerStream{ServerStream: stream, WrappedContext: stream.Context()}
}

// Context returns the wrapped context.
func (w *WrappedServerStream) Context() context.Context {
	return w.WrappedContext
}

// SetContext replaces the wrapped context.
func (w *WrappedServerStream) SetContext(ctx context.Context) {
	w.WrappedContext = ctx
}
