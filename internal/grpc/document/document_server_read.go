package grpc

import (
	"context"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	docstorepkg "github.com/stormhead-org/fairway/internal/docstore"
	"github.com/stormhead-org/fairway/internal/lib"
)

func (s *DocumentServer) Get(ctx context.Context, request *PathRequest) (*RecordResponse, error) {
	if err := docstorepkg.ValidatePath(request.Collection, request.ID); err != nil {
		return nil, s.fail("get", request.Collection, request.ID, err)
	}

	record, err := s.store.Get(ctx, request.Collection, request.ID)
	if err != nil {
		return nil, s.fail("get", request.Collection, request.ID, err)
	}
	return &RecordResponse{Record: record}, nil
}

func (s *DocumentServer) Query(ctx context.Context, request *QueryRequest) (*QueryResponse, error) {
	if request.Collection == "" {
		return nil, lib.InvalidArgumentError("collection is required")
	}

	records, err := s.store.Query(ctx, request.Collection, request.Query)
	if err != nil {
		return nil, s.fail("query", request.Collection, "", err)
	}
	return &QueryResponse{Records: records}, nil
}

// Subscribe streams every snapshot of the live query until the client goes away.
func (s *DocumentServer) Subscribe(request *QueryRequest, stream grpc.ServerStreamingServer[Snapshot]) error {
	if request.Collection == "" {
		return lib.InvalidArgumentError("collection is required")
	}

	ctx := stream.Context()
	subscription, err := s.store.Subscribe(ctx, request.Collection, request.Query)
	if err != nil {
		return s.fail("subscribe", request.Collection, "", err)
	}
	defer subscription.Close()

	s.log.Debug("subscription opened", zap.String("collection", request.Collection))
	defer s.log.Debug("subscription closed", zap.String("collection", request.Collection))

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-subscription.Done():
			if err := subscription.Err(); err != nil {
				return s.fail("subscribe", request.Collection, "", err)
			}
			return status.Error(codes.Unavailable, "subscription closed")
		case records := <-subscription.Snapshots():
			if records == nil {
				records = []docstorepkg.Record{}
			}
			err := stream.Send(&Snapshot{Records: records})
			if err != nil {
				return err
			}
		}
	}
}
