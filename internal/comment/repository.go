package comment

import (
	"context"
	"errors"

	docstorepkg "github.com/stormhead-org/fairway/internal/docstore"
)

// Repository maps comments onto documents under posts/{postId}/comments.
type Repository struct {
	store docstorepkg.Store
}

func NewRepository(store docstorepkg.Store) *Repository {
	return &Repository{
		store: store,
	}
}

// threadQuery orders a thread the way it is displayed: oldest first.
var threadQuery = docstorepkg.Query{OrderBy: docstorepkg.OrderByCreatedAt}

func (r *Repository) CreatePost(ctx context.Context, authorID string, title string) (string, error) {
	return r.store.Create(ctx, PostsCollection, docstorepkg.Fields{
		FieldAuthorID:     authorID,
		FieldPostTitle:    title,
		FieldPostComments: 0,
	})
}

func (r *Repository) PostCommentCount(ctx context.Context, postID string) (int, error) {
	record, err := r.store.Get(ctx, PostsCollection, postID)
	if err != nil {
		return 0, err
	}
	return int(record.Fields.Int(FieldPostComments)), nil
}

func (r *Repository) Create(ctx context.Context, c Comment) (string, error) {
	return r.store.Create(ctx, CommentsCollection(c.PostID), newFields(c))
}

func (r *Repository) Get(ctx context.Context, postID string, commentID string) (Comment, error) {
	record, err := r.store.Get(ctx, CommentsCollection(postID), commentID)
	if errors.Is(err, docstorepkg.ErrNotFound) {
		return Comment{}, errors.Join(ErrNotFound, err)
	}
	if err != nil {
		return Comment{}, err
	}
	return FromRecord(postID, record), nil
}

func (r *Repository) UpdateContent(ctx context.Context, postID string, commentID string, content string) error {
	return r.store.Update(ctx, CommentsCollection(postID), commentID, docstorepkg.Fields{
		FieldContent: content,
	})
}

// Delete soft-deletes the comment document.
func (r *Repository) Delete(ctx context.Context, postID string, commentID string) error {
	return r.store.Delete(ctx, CommentsCollection(postID), commentID)
}

func (r *Repository) List(ctx context.Context, postID string) ([]Comment, error) {
	records, err := r.store.Query(ctx, CommentsCollection(postID), threadQuery)
	if err != nil {
		return nil, err
	}
	return FromRecords(postID, records), nil
}

// Subscribe opens a live query on the thread ordered by createdAt ascending.
func (r *Repository) Subscribe(ctx context.Context, postID string) (*docstorepkg.Subscription, error) {
	return r.store.Subscribe(ctx, CommentsCollection(postID), threadQuery)
}
