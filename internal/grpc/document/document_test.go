package grpc

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	docstorepkg "github.com/stormhead-org/fairway/internal/docstore"
	"github.com/stormhead-org/fairway/internal/docstore/memory"
)

const thread = "posts/p1/comments"

func commentFields(author string, content string) docstorepkg.Fields {
	return docstorepkg.Fields{
		"postId":         "p1",
		"authorId":       author,
		"content":        content,
		"depth":          0,
		"replyCount":     0,
		"likeCount":      0,
		"likedByUserIds": []string{},
	}
}

func TestDocumentServiceRoundTrip(t *testing.T) {
	ctx := context.Background()
	client := newBufConnServer(t, memory.NewStore())

	id, err := client.Create(ctx, "posts", docstorepkg.Fields{"title": "Opening round", "comments": 0})
	require.NoError(t, err)
	require.NotEmpty(t, id)

	require.NoError(t, client.Increment(ctx, "posts", id, "comments", 3))
	require.NoError(t, client.Update(ctx, "posts", id, docstorepkg.Fields{"title": "Back nine"}))

	record, err := client.Get(ctx, "posts", id)
	require.NoError(t, err)
	assert.Equal(t, id, record.ID)
	assert.Equal(t, "Back nine", record.Fields.String("title"))
	assert.Equal(t, int64(3), record.Fields.Int("comments"))
	assert.False(t, record.CreatedAt.IsZero())

	require.NoError(t, client.Put(ctx, "comment_likes", "c1_alice", docstorepkg.Fields{"userId": "alice"}))
	like, err := client.Get(ctx, "comment_likes", "c1_alice")
	require.NoError(t, err)
	assert.Equal(t, "alice", like.Fields.String("userId"))

	require.NoError(t, client.Delete(ctx, "posts", id))
	_, err = client.Get(ctx, "posts", id)
	assert.ErrorIs(t, err, docstorepkg.ErrNotFound)
	assert.ErrorIs(t, client.Delete(ctx, "posts", id), docstorepkg.ErrNotFound)
}

func TestDocumentServiceSets(t *testing.T) {
	ctx := context.Background()
	client := newBufConnServer(t, memory.NewStore())

	id, err := client.Create(ctx, thread, commentFields("alice", "Nice drive"))
	require.NoError(t, err)

	changed, err := client.AddToSet(ctx, thread, id, "likedByUserIds", "bob")
	require.NoError(t, err)
	assert.True(t, changed)

	changed, err = client.AddToSet(ctx, thread, id, "likedByUserIds", "bob")
	require.NoError(t, err)
	assert.False(t, changed)

	record, err := client.Get(ctx, thread, id)
	require.NoError(t, err)
	assert.Equal(t, []string{"bob"}, record.Fields.Strings("likedByUserIds"))

	changed, err = client.RemoveFromSet(ctx, thread, id, "likedByUserIds", "bob")
	require.NoError(t, err)
	assert.True(t, changed)

	_, err = client.AddToSet(ctx, thread, "missing", "likedByUserIds", "bob")
	assert.ErrorIs(t, err, docstorepkg.ErrNotFound)
}

func TestDocumentServiceRejectsInvalidComments(t *testing.T) {
	ctx := context.Background()
	client := newBufConnServer(t, memory.NewStore())

	_, err := client.Create(ctx, thread, docstorepkg.Fields{"authorId": "alice"})
	assert.ErrorIs(t, err, docstorepkg.ErrInvalidArgument)

	_, err = client.Create(ctx, thread, commentFields("alice", strings.Repeat("a", 501)))
	assert.ErrorIs(t, err, docstorepkg.ErrInvalidArgument)

	id, err := client.Create(ctx, thread, commentFields("alice", "Fore!"))
	require.NoError(t, err)

	err = client.Update(ctx, thread, id, docstorepkg.Fields{"authorId": "mallory"})
	assert.ErrorIs(t, err, docstorepkg.ErrInvalidArgument)

	err = client.Update(ctx, thread, id, docstorepkg.Fields{"content": ""})
	assert.ErrorIs(t, err, docstorepkg.ErrInvalidArgument)

	_, err = client.Create(ctx, "", docstorepkg.Fields{})
	assert.ErrorIs(t, err, docstorepkg.ErrInvalidArgument)

	_, err = client.Get(ctx, thread, "")
	assert.ErrorIs(t, err, docstorepkg.ErrInvalidArgument)

	record, err := client.Get(ctx, thread, id)
	require.NoError(t, err)
	assert.Equal(t, "alice", record.Fields.String("authorId"))
}

func TestDocumentServiceQuery(t *testing.T) {
	ctx := context.Background()
	client := newBufConnServer(t, memory.NewStore())

	for _, author := range []string{"alice", "bob", "alice"} {
		_, err := client.Create(ctx, thread, commentFields(author, "Hole in one"))
		require.NoError(t, err)
	}

	records, err := client.Query(ctx, thread, docstorepkg.Query{}.Where("authorId", "alice"))
	require.NoError(t, err)
	assert.Len(t, records, 2)

	records, err = client.Query(ctx, thread, docstorepkg.Query{}.Where("depth", 0))
	require.NoError(t, err)
	assert.Len(t, records, 3)

	records, err = client.Query(ctx, "posts/empty/comments", docstorepkg.Query{})
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestDocumentServiceSubscribe(t *testing.T) {
	ctx := context.Background()
	client := newBufConnServer(t, memory.NewStore())

	subscription, err := client.Subscribe(ctx, thread, docstorepkg.Query{OrderBy: docstorepkg.OrderByCreatedAt})
	require.NoError(t, err)
	defer subscription.Close()

	assert.Empty(t, receive(t, subscription))

	_, err = client.Create(ctx, thread, commentFields("alice", "Live from the green"))
	require.NoError(t, err)

	records := receive(t, subscription)
	require.Len(t, records, 1)
	assert.Equal(t, "Live from the green", records[0].Fields.String("content"))

	subscription.Close()
	select {
	case <-subscription.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("subscription did not close")
	}
	assert.NoError(t, subscription.Err())
}

func TestDocumentServiceSubscribeRejectsEmptyCollection(t *testing.T) {
	client := newBufConnServer(t, memory.NewStore())

	_, err := client.Subscribe(context.Background(), "", docstorepkg.Query{})
	assert.ErrorIs(t, err, docstorepkg.ErrInvalidArgument)
}

func TestDocumentServiceSubscriptionLostOnShutdown(t *testing.T) {
	store := memory.NewStore()
	client := newBufConnServer(t, store)

	subscription, err := client.Subscribe(context.Background(), thread, docstorepkg.Query{})
	require.NoError(t, err)
	receive(t, subscription)

	store.Close()

	select {
	case <-subscription.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("subscription did not end")
	}
	assert.ErrorIs(t, subscription.Err(), docstorepkg.ErrSubscriptionLost)
}

func receive(t *testing.T, subscription *docstorepkg.Subscription) []docstorepkg.Record {
	t.Helper()
	select {
	case records := <-subscription.Snapshots():
		return records
	case <-time.After(5 * time.Second):
		t.Fatal("no snapshot delivered")
	}
	return nil
}
