package lib

import (
	"context"
	"errors"
	"fmt"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"gorm.io/gorm"

	docstorepkg "github.com/stormhead-org/fairway/internal/docstore"
)

// HandleError converts a store error into a gRPC status error.
// It maps specific, known errors to appropriate gRPC status codes.
func HandleError(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := status.FromError(err); ok {
		return err
	}

	// Default to internal error unless a specific mapping is found.
	code := codes.Internal
	message := "An unexpected error occurred."

	switch {
	case errors.Is(err, docstorepkg.ErrNotFound), errors.Is(err, gorm.ErrRecordNotFound):
		code = codes.NotFound
		message = "The requested resource was not found."
	case errors.Is(err, docstorepkg.ErrInvalidArgument):
		code = codes.InvalidArgument
		message = err.Error()
	case errors.Is(err, docstorepkg.ErrSubscriptionLost):
		code = codes.Unavailable
		message = "The live query was interrupted."
	case errors.Is(err, context.DeadlineExceeded):
		code = codes.DeadlineExceeded
		message = "The operation timed out."
	case errors.Is(err, context.Canceled):
		code = codes.Canceled
		message = "The operation was cancelled."
	}

	return status.Error(code, message)
}

// FromStatus maps a status error returned by a remote store back onto the docstore
// and context errors, so callers can keep using errors.Is.
func FromStatus(err error) error {
	if err == nil {
		return nil
	}
	st, ok := status.FromError(err)
	if !ok {
		return err
	}

	switch st.Code() {
	case codes.NotFound:
		return fmt.Errorf("%w: %s", docstorepkg.ErrNotFound, st.Message())
	case codes.InvalidArgument:
		return fmt.Errorf("%w: %s", docstorepkg.ErrInvalidArgument, st.Message())
	case codes.DeadlineExceeded:
		return fmt.Errorf("%s: %w", st.Message(), context.DeadlineExceeded)
	case codes.Canceled:
		return fmt.Errorf("%s: %w", st.Message(), context.Canceled)
	}
	return err
}

// InvalidArgumentError returns a gRPC InvalidArgument error.
func InvalidArgumentError(message string) error {
	return status.Error(codes.InvalidArgument, message)
}
