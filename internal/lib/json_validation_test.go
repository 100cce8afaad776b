package lib

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	docstorepkg "github.com/stormhead-org/fairway/internal/docstore"
)

func TestValidateFieldsCommentCreate(t *testing.T) {
	valid := docstorepkg.Fields{
		"postId":         "p1",
		"authorId":       "alice",
		"content":        "Nice putt",
		"depth":          0,
		"replyCount":     0,
		"likeCount":      0,
		"likedByUserIds": []string{},
	}
	require.NoError(t, ValidateFields(valid, CommentCreateSchema()))

	missingAuthor := valid.Clone()
	delete(missingAuthor, "authorId")
	assert.ErrorIs(t, ValidateFields(missingAuthor, CommentCreateSchema()), docstorepkg.ErrInvalidArgument)

	empty := valid.Clone()
	empty["content"] = ""
	assert.ErrorIs(t, ValidateFields(empty, CommentCreateSchema()), docstorepkg.ErrInvalidArgument)

	long := valid.Clone()
	long["content"] = strings.Repeat("a", 501)
	assert.ErrorIs(t, ValidateFields(long, CommentCreateSchema()), docstorepkg.ErrInvalidArgument)

	negative := valid.Clone()
	negative["depth"] = -1
	assert.ErrorIs(t, ValidateFields(negative, CommentCreateSchema()), docstorepkg.ErrInvalidArgument)
}

func TestValidateFieldsCommentUpdate(t *testing.T) {
	require.NoError(t, ValidateFields(docstorepkg.Fields{"content": "Edited"}, CommentUpdateSchema()))
	assert.Error(t, ValidateFields(docstorepkg.Fields{"content": ""}, CommentUpdateSchema()))
	assert.Error(t, ValidateFields(docstorepkg.Fields{"authorId": "mallory"}, CommentUpdateSchema()))
}
