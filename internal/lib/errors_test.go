package lib

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"gorm.io/gorm"

	docstorepkg "github.com/stormhead-org/fairway/internal/docstore"
)

func TestHandleError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		code codes.Code
	}{
		{"not found", fmt.Errorf("get: %w", docstorepkg.ErrNotFound), codes.NotFound},
		{"gorm not found", gorm.ErrRecordNotFound, codes.NotFound},
		{"invalid", fmt.Errorf("%w: bad path", docstorepkg.ErrInvalidArgument), codes.InvalidArgument},
		{"lost", docstorepkg.ErrSubscriptionLost, codes.Unavailable},
		{"deadline", context.DeadlineExceeded, codes.DeadlineExceeded},
		{"canceled", context.Canceled, codes.Canceled},
		{"other", errors.New("boom"), codes.Internal},
		{"status", status.Error(codes.ResourceExhausted, "slow down"), codes.ResourceExhausted},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.code, status.Code(HandleError(tt.err)))
		})
	}

	assert.NoError(t, HandleError(nil))
}

func TestHandleErrorHidesInternalDetails(t *testing.T) {
	err := HandleError(errors.New("password=hunter2"))
	assert.NotContains(t, err.Error(), "hunter2")
}

func TestFromStatusRoundTrip(t *testing.T) {
	err := FromStatus(HandleError(docstorepkg.ErrNotFound))
	assert.ErrorIs(t, err, docstorepkg.ErrNotFound)

	err = FromStatus(HandleError(fmt.Errorf("%w: empty id", docstorepkg.ErrInvalidArgument)))
	require.ErrorIs(t, err, docstorepkg.ErrInvalidArgument)
	assert.Contains(t, err.Error(), "empty id")

	assert.ErrorIs(t, FromStatus(HandleError(context.DeadlineExceeded)), context.DeadlineExceeded)

	plain := errors.New("plain")
	assert.Equal(t, plain, FromStatus(plain))
	assert.NoError(t, FromStatus(nil))
}

func TestInvalidArgumentError(t *testing.T) {
	err := InvalidArgumentError("field is required")
	assert.Equal(t, codes.InvalidArgument, status.Code(err))
	assert.ErrorIs(t, FromStatus(err), docstorepkg.ErrInvalidArgument)
}
