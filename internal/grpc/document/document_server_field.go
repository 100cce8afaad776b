package grpc

import (
	"context"

	docstorepkg "github.com/stormhead-org/fairway/internal/docstore"
	"github.com/stormhead-org/fairway/internal/lib"
)

func (s *DocumentServer) Increment(ctx context.Context, request *IncrementRequest) (*Empty, error) {
	if err := docstorepkg.ValidatePath(request.Collection, request.ID); err != nil {
		return nil, s.fail("increment", request.Collection, request.ID, err)
	}
	if request.Field == "" {
		return nil, lib.InvalidArgumentError("field is required")
	}

	err := s.store.Increment(ctx, request.Collection, request.ID, request.Field, request.Delta)
	if err != nil {
		return nil, s.fail("increment", request.Collection, request.ID, err)
	}
	return &Empty{}, nil
}

func (s *DocumentServer) AddToSet(ctx context.Context, request *SetRequest) (*SetResponse, error) {
	if err := docstorepkg.ValidatePath(request.Collection, request.ID); err != nil {
		return nil, s.fail("add_to_set", request.Collection, request.ID, err)
	}
	if request.Field == "" {
		return nil, lib.InvalidArgumentError("field is required")
	}

	changed, err := s.store.AddToSet(ctx, request.Collection, request.ID, request.Field, request.Value)
	if err != nil {
		return nil, s.fail("add_to_set", request.Collection, request.ID, err)
	}
	return &SetResponse{Changed: changed}, nil
}

func (s *DocumentServer) RemoveFromSet(ctx context.Context, request *SetRequest) (*SetResponse, error) {
	if err := docstorepkg.ValidatePath(request.Collection, request.ID); err != nil {
		return nil, s.fail("remove_from_set", request.Collection, request.ID, err)
	}
	if request.Field == "" {
		return nil, lib.InvalidArgumentError("field is required")
	}

	changed, err := s.store.RemoveFromSet(ctx, request.Collection, request.ID, request.Field, request.Value)
	if err != nil {
		return nil, s.fail("remove_from_set", request.Collection, request.ID, err)
	}
	return &SetResponse{Changed: changed}, nil
}
