package grpc

import (
	"errors"
	"strings"

	"go.uber.org/zap"

	docstorepkg "github.com/stormhead-org/fairway/internal/docstore"
	"github.com/stormhead-org/fairway/internal/lib"
)

type DocumentServer struct {
	log   *zap.Logger
	store docstorepkg.Store
}

func NewDocumentServer(log *zap.Logger, store docstorepkg.Store) *DocumentServer {
	return &DocumentServer{
		log:   log,
		store: store,
	}
}

// fail logs err at a level matching its kind and converts it to a status error.
func (s *DocumentServer) fail(operation string, collection string, id string, err error) error {
	fields := []zap.Field{
		zap.String("operation", operation),
		zap.String("collection", collection),
		zap.String("id", id),
		zap.Error(err),
	}
	switch {
	case errors.Is(err, docstorepkg.ErrNotFound):
		s.log.Debug("document not found", fields...)
	case errors.Is(err, docstorepkg.ErrInvalidArgument):
		s.log.Debug("invalid document request", fields...)
	default:
		s.log.Error("internal error", fields...)
	}
	return lib.HandleError(err)
}

// isCommentCollection matches posts/{postId}/comments.
func isCommentCollection(collection string) bool {
	parts := strings.Split(collection, "/")
	return len(parts) == 3 && parts[0] == "posts" && parts[1] != "" && parts[2] == "comments"
}
