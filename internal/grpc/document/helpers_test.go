package grpc

import (
	"context"
	"net"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/test/bufconn"

	docstorepkg "github.com/stormhead-org/fairway/internal/docstore"
)

const bufSize = 1024 * 1024

// newBufConnServer serves a DocumentServer over store on an in-memory listener and
// returns a client connected to it.
func newBufConnServer(t *testing.T, store docstorepkg.Store, options ...grpc.ServerOption) *DocumentClient {
	t.Helper()

	lis := bufconn.Listen(bufSize)
	s := grpc.NewServer(options...)
	RegisterDocumentServiceServer(s, NewDocumentServer(zap.NewNop(), store))

	go func() {
		if err := s.Serve(lis); err != nil {
			zap.L().Error("gRPC server exited with error", zap.Error(err))
		}
	}()
	t.Cleanup(s.Stop)

	conn, err := grpc.NewClient(
		"passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, s string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	return NewDocumentClient(zap.NewNop(), conn)
}
