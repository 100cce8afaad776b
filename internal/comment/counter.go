package comment

import (
	"context"

	docstorepkg "github.com/stormhead-org/fairway/internal/docstore"
)

// Counters maintains replyCount on parent comments and the comment total on posts with
// atomic deltas. Creates pair with +1, deletes with -1; edits never touch counters.
type Counters struct {
	store docstorepkg.Store
}

func NewCounters(store docstorepkg.Store) *Counters {
	return &Counters{
		store: store,
	}
}

func (c *Counters) IncrementReplyCount(ctx context.Context, postID string, parentID string, delta int64) error {
	return c.store.Increment(ctx, CommentsCollection(postID), parentID, FieldReplyCount, delta)
}

func (c *Counters) IncrementPostCommentCount(ctx context.Context, postID string, delta int64) error {
	return c.store.Increment(ctx, PostsCollection, postID, FieldPostComments, delta)
}
