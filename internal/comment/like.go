package comment

import (
	"context"
	"errors"
	"time"

	docstorepkg "github.com/stormhead-org/fairway/internal/docstore"
)

// UndoTimeout bounds the compensating writes of a failed like or unlike.
const UndoTimeout = 10 * time.Second

// Likes flips per-user membership in likedByUserIds together with likeCount and the
// normalized like record. Counter and record are only touched when the membership
// actually changed, so repeated or racing requests cannot drift them apart.
type Likes struct {
	store docstorepkg.Store
}

func NewLikes(store docstorepkg.Store) *Likes {
	return &Likes{
		store: store,
	}
}

// Like returns false when the user already liked the comment.
func (l *Likes) Like(ctx context.Context, c Comment, userID string) (bool, error) {
	collection := CommentsCollection(c.PostID)

	changed, err := l.store.AddToSet(ctx, collection, c.ID, FieldLikedBy, userID)
	if err != nil || !changed {
		return false, err
	}

	err = l.store.Increment(ctx, collection, c.ID, FieldLikeCount, 1)
	if err != nil {
		undoCtx, cancel := undoContext(ctx)
		defer cancel()
		_, undoErr := l.store.RemoveFromSet(undoCtx, collection, c.ID, FieldLikedBy, userID)
		return false, errors.Join(err, undoErr)
	}

	err = l.store.Put(ctx, CommentLikeCollection, LikeRecordID(c.ID, userID), docstorepkg.Fields{
		FieldCommentID:       c.ID,
		FieldPostID:          c.PostID,
		FieldUserID:          userID,
		FieldCommentAuthorID: c.AuthorID,
	})
	if err != nil {
		undoCtx, cancel := undoContext(ctx)
		defer cancel()
		undoErr := l.store.Increment(undoCtx, collection, c.ID, FieldLikeCount, -1)
		_, undoSetErr := l.store.RemoveFromSet(undoCtx, collection, c.ID, FieldLikedBy, userID)
		return false, errors.Join(err, undoErr, undoSetErr)
	}
	return true, nil
}

// Unlike returns false when the user had not liked the comment.
func (l *Likes) Unlike(ctx context.Context, c Comment, userID string) (bool, error) {
	collection := CommentsCollection(c.PostID)

	changed, err := l.store.RemoveFromSet(ctx, collection, c.ID, FieldLikedBy, userID)
	if err != nil || !changed {
		return false, err
	}

	err = l.store.Increment(ctx, collection, c.ID, FieldLikeCount, -1)
	if err != nil {
		undoCtx, cancel := undoContext(ctx)
		defer cancel()
		_, undoErr := l.store.AddToSet(undoCtx, collection, c.ID, FieldLikedBy, userID)
		return false, errors.Join(err, undoErr)
	}

	err = l.store.Delete(ctx, CommentLikeCollection, LikeRecordID(c.ID, userID))
	if err != nil && !errors.Is(err, docstorepkg.ErrNotFound) {
		undoCtx, cancel := undoContext(ctx)
		defer cancel()
		undoErr := l.store.Increment(undoCtx, collection, c.ID, FieldLikeCount, 1)
		_, undoSetErr := l.store.AddToSet(undoCtx, collection, c.ID, FieldLikedBy, userID)
		return false, errors.Join(err, undoErr, undoSetErr)
	}
	return true, nil
}

// Toggle reads the current membership from the store and flips it. It reports whether
// the user likes the comment afterwards. It is the entry point for callers without a
// Session; a Session decides the direction from its own view and calls Like or Unlike.
func (l *Likes) Toggle(ctx context.Context, postID string, commentID string, userID string) (bool, error) {
	record, err := l.store.Get(ctx, CommentsCollection(postID), commentID)
	if err != nil {
		return false, err
	}
	c := FromRecord(postID, record)

	if c.LikedByUser(userID) {
		_, err = l.Unlike(ctx, c, userID)
		return false, err
	}
	_, err = l.Like(ctx, c, userID)
	return err == nil, err
}

// HasLikeRecord reports whether the normalized like record exists.
func (l *Likes) HasLikeRecord(ctx context.Context, commentID string, userID string) (bool, error) {
	_, err := l.store.Get(ctx, CommentLikeCollection, LikeRecordID(commentID, userID))
	if errors.Is(err, docstorepkg.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// undoContext survives the failed write's deadline or cancellation, so compensation
// still reaches the store after a timeout.
func undoContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), UndoTimeout)
}
