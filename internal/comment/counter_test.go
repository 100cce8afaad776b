package comment

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCountersConcurrentDeltas(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	counters := NewCounters(f.store)
	parent := createComment(t, f, "bob", "Tee time?")

	var wg sync.WaitGroup
	for i := 0; i < 40; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			delta := int64(1)
			if i%4 == 0 {
				delta = -1
			}
			assert.NoError(t, counters.IncrementReplyCount(ctx, f.postID, parent.ID, delta))
			assert.NoError(t, counters.IncrementPostCommentCount(ctx, f.postID, delta))
		}(i)
	}
	wg.Wait()

	current, err := NewRepository(f.store).Get(ctx, f.postID, parent.ID)
	require.NoError(t, err)
	assert.Equal(t, 20, current.ReplyCount)

	count, err := NewRepository(f.store).PostCommentCount(ctx, f.postID)
	require.NoError(t, err)
	assert.Equal(t, 20, count)
}

func TestNewCommentCountersStartAtZero(t *testing.T) {
	f := newFixture(t)
	repository := NewRepository(f.store)

	id, err := repository.Create(context.Background(), Comment{
		PostID:     f.postID,
		AuthorID:   "bob",
		Content:    "Fresh",
		ReplyCount: 7,
		LikeCount:  3,
		LikedBy:    []string{"mallory"},
	})
	require.NoError(t, err)

	c, err := repository.Get(context.Background(), f.postID, id)
	require.NoError(t, err)
	assert.Equal(t, 0, c.ReplyCount)
	assert.Equal(t, 0, c.LikeCount)
	assert.Empty(t, c.LikedBy)
}

func TestRepositoryGetMissing(t *testing.T) {
	f := newFixture(t)
	_, err := NewRepository(f.store).Get(context.Background(), f.postID, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}
