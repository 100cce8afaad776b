package grpc

import (
	"context"

	docstorepkg "github.com/stormhead-org/fairway/internal/docstore"
	"github.com/stormhead-org/fairway/internal/lib"
)

func (s *DocumentServer) Create(ctx context.Context, request *CreateRequest) (*CreateResponse, error) {
	if request.Collection == "" {
		return nil, lib.InvalidArgumentError("collection is required")
	}
	if isCommentCollection(request.Collection) {
		err := lib.ValidateFields(request.Fields, lib.CommentCreateSchema())
		if err != nil {
			return nil, s.fail("create", request.Collection, "", err)
		}
	}

	id, err := s.store.Create(ctx, request.Collection, request.Fields)
	if err != nil {
		return nil, s.fail("create", request.Collection, "", err)
	}
	return &CreateResponse{ID: id}, nil
}

func (s *DocumentServer) Put(ctx context.Context, request *WriteRequest) (*Empty, error) {
	if err := docstorepkg.ValidatePath(request.Collection, request.ID); err != nil {
		return nil, s.fail("put", request.Collection, request.ID, err)
	}
	if isCommentCollection(request.Collection) {
		err := lib.ValidateFields(request.Fields, lib.CommentCreateSchema())
		if err != nil {
			return nil, s.fail("put", request.Collection, request.ID, err)
		}
	}

	err := s.store.Put(ctx, request.Collection, request.ID, request.Fields)
	if err != nil {
		return nil, s.fail("put", request.Collection, request.ID, err)
	}
	return &Empty{}, nil
}

func (s *DocumentServer) Update(ctx context.Context, request *WriteRequest) (*Empty, error) {
	if err := docstorepkg.ValidatePath(request.Collection, request.ID); err != nil {
		return nil, s.fail("update", request.Collection, request.ID, err)
	}
	if isCommentCollection(request.Collection) {
		err := lib.ValidateFields(request.Fields, lib.CommentUpdateSchema())
		if err != nil {
			return nil, s.fail("update", request.Collection, request.ID, err)
		}
	}

	err := s.store.Update(ctx, request.Collection, request.ID, request.Fields)
	if err != nil {
		return nil, s.fail("update", request.Collection, request.ID, err)
	}
	return &Empty{}, nil
}

func (s *DocumentServer) Delete(ctx context.Context, request *PathRequest) (*Empty, error) {
	if err := docstorepkg.ValidatePath(request.Collection, request.ID); err != nil {
		return nil, s.fail("delete", request.Collection, request.ID, err)
	}

	err := s.store.Delete(ctx, request.Collection, request.ID)
	if err != nil {
		return nil, s.fail("delete", request.Collection, request.ID, err)
	}
	return &Empty{}, nil
}
