package comment

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func threadFixture() []Comment {
	return []Comment{
		{ID: "a", Content: "Great round"},
		{ID: "b", Content: "Who won?"},
		{ID: "a1", ParentID: "a", Depth: 1, Content: "Agreed"},
		{ID: "a1x", ParentID: "a1", Depth: 2, Content: "Same here"},
		{ID: "a2", ParentID: "a", Depth: 1, Content: "Windy though"},
	}
}

func TestBuildTreePartitionsByParent(t *testing.T) {
	tree := BuildTree(threadFixture())

	require.Len(t, tree.TopLevel, 2)
	assert.Equal(t, "a", tree.TopLevel[0].ID)
	assert.Equal(t, "b", tree.TopLevel[1].ID)

	replies := tree.RepliesTo("a")
	require.Len(t, replies, 2)
	assert.Equal(t, "a1", replies[0].ID)
	assert.Equal(t, "a2", replies[1].ID)
	assert.Len(t, tree.RepliesTo("a1"), 1)
	assert.Empty(t, tree.RepliesTo("b"))
}

func TestBuildTreeIsPure(t *testing.T) {
	comments := threadFixture()
	original := cloneComments(comments)

	first := BuildTree(comments)
	second := BuildTree(comments)

	assert.Equal(t, first, second)
	assert.Equal(t, original, comments)
}

func TestBuildTreeEmpty(t *testing.T) {
	tree := BuildTree(nil)
	assert.NotNil(t, tree.TopLevel)
	assert.NotNil(t, tree.Replies)
	assert.Empty(t, tree.TopLevel)
}

func TestTreeWalkOrder(t *testing.T) {
	tree := BuildTree(threadFixture())

	var visited []string
	var levels []int
	tree.Walk(func(c Comment, level int) {
		visited = append(visited, c.ID)
		levels = append(levels, level)
	})

	assert.Equal(t, []string{"a", "a1", "a1x", "a2", "b"}, visited)
	assert.Equal(t, []int{0, 1, 2, 1, 0}, levels)
}

func TestTreeWalkSkipsOrphans(t *testing.T) {
	tree := BuildTree([]Comment{
		{ID: "a"},
		{ID: "orphan", ParentID: "gone", Depth: 1},
	})

	count := 0
	tree.Walk(func(c Comment, level int) {
		count++
	})
	assert.Equal(t, 1, count)
	assert.Len(t, tree.RepliesTo("gone"), 1)
}

func TestVerifyDepths(t *testing.T) {
	assert.NoError(t, VerifyDepths(threadFixture()))

	err := VerifyDepths([]Comment{
		{ID: "a"},
		{ID: "a1", ParentID: "a", Depth: 2},
	})
	assert.ErrorIs(t, err, ErrDepthMismatch)

	err = VerifyDepths([]Comment{{ID: "a", Depth: 1}})
	assert.ErrorIs(t, err, ErrDepthMismatch)

	// Parents outside the list are not checked.
	assert.NoError(t, VerifyDepths([]Comment{{ID: "x", ParentID: "missing", Depth: 4}}))
}
