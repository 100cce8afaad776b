package comment

import (
	"errors"
	"fmt"
	"math"
	"time"
)

var (
	ErrValidation             = errors.New("validation failed")
	ErrRateLimited            = errors.New("rate limited")
	ErrWriteFailed            = errors.New("write failed")
	ErrReconciliationMismatch = errors.New("reconciliation mismatch")
	ErrSessionClosed          = errors.New("session closed")
)

var (
	ErrEmptyContent   = fmt.Errorf("%w: empty content", ErrValidation)
	ErrContentTooLong = fmt.Errorf("%w: content exceeds %d characters", ErrValidation, MaxContentLength)
	ErrNotFound       = fmt.Errorf("%w: comment not found", ErrValidation)
	ErrNotAuthor      = fmt.Errorf("%w: not the comment author", ErrValidation)
	ErrPendingComment = fmt.Errorf("%w: comment is not confirmed yet", ErrValidation)
	ErrParentNotFound = fmt.Errorf("%w: parent comment not found", ErrValidation)
)

type Operation string

const (
	OpCreate    Operation = "create"
	OpEdit      Operation = "edit"
	OpDelete    Operation = "delete"
	OpLike      Operation = "like"
	OpCounters  Operation = "counters"
	OpRateLimit Operation = "rate_limit"
	OpPublish   Operation = "publish"
)

type RateLimitedError struct {
	Remaining time.Duration
}

func (e *RateLimitedError) Error() string {
	return fmt.Sprintf("rate limited: retry in %ds", e.RemainingSeconds())
}

func (e *RateLimitedError) Is(target error) bool {
	return target == ErrRateLimited
}

func (e *RateLimitedError) RemainingSeconds() int {
	return int(math.Ceil(e.Remaining.Seconds()))
}

// WriteFailedError reports a store write that was rejected or timed out.
type WriteFailedError struct {
	Op        Operation
	CommentID string
	Err       error
}

func (e *WriteFailedError) Error() string {
	return fmt.Sprintf("%s comment %s: %v", e.Op, e.CommentID, e.Err)
}

func (e *WriteFailedError) Is(target error) bool {
	return target == ErrWriteFailed
}

func (e *WriteFailedError) Unwrap() error {
	return e.Err
}

// ReconciliationMismatchError reports an acknowledged write that never showed up in a
// snapshot within the reconciliation window.
type ReconciliationMismatchError struct {
	CommentID string
	Content   string
	Waited    time.Duration
}

func (e *ReconciliationMismatchError) Error() string {
	return fmt.Sprintf("comment %s not confirmed after %s", e.CommentID, e.Waited)
}

func (e *ReconciliationMismatchError) Is(target error) bool {
	return target == ErrReconciliationMismatch
}
