// Package comment implements the threaded comment engine: the comment repository on top
// of a document store, counter maintenance, like toggling, the thread tree projection and
// the optimistic session that merges local writes with live snapshots.
package comment

import (
	"slices"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	docstorepkg "github.com/stormhead-org/fairway/internal/docstore"
)

const MaxContentLength = 500

const PendingIDPrefix = "pending-"

const (
	PostsCollection       = "posts"
	CommentLikeCollection = "comment_likes"
)

// Document field names.
const (
	FieldPostID      = "postId"
	FieldAuthorID    = "authorId"
	FieldContent     = "content"
	FieldParentID    = "parentId"
	FieldDepth       = "depth"
	FieldReplyCount  = "replyCount"
	FieldLikeCount   = "likeCount"
	FieldLikedBy     = "likedByUserIds"
	FieldClientToken = "clientToken"

	FieldPostComments = "comments"
	FieldPostTitle    = "title"

	FieldCommentID       = "commentId"
	FieldUserID          = "userId"
	FieldCommentAuthorID = "commentAuthorId"
)

type Comment struct {
	ID          string
	PostID      string
	AuthorID    string
	Content     string
	ParentID    string
	Depth       int
	ReplyCount  int
	LikeCount   int
	LikedBy     []string
	ClientToken string
	CreatedAt   time.Time
	UpdatedAt   time.Time
	IsPending   bool
}

func (c Comment) IsReply() bool {
	return c.ParentID != ""
}

func (c Comment) LikedByUser(userID string) bool {
	return slices.Contains(c.LikedBy, userID)
}

func (c Comment) Clone() Comment {
	if c.LikedBy != nil {
		c.LikedBy = slices.Clone(c.LikedBy)
	}
	return c
}

func CommentsCollection(postID string) string {
	return PostsCollection + "/" + postID + "/comments"
}

func NotificationsCollection(userID string) string {
	return "users/" + userID + "/notifications"
}

func LikeRecordID(commentID string, userID string) string {
	return commentID + "_" + userID
}

func NewPendingID() string {
	return PendingIDPrefix + uuid.NewString()
}

func IsPendingID(id string) bool {
	return strings.HasPrefix(id, PendingIDPrefix)
}

// ValidateContent returns the trimmed content or a validation error.
func ValidateContent(content string) (string, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return "", ErrEmptyContent
	}
	if utf8.RuneCountInString(content) > MaxContentLength {
		return "", ErrContentTooLong
	}
	return content, nil
}

func FromRecord(postID string, record docstorepkg.Record) Comment {
	fields := record.Fields
	if recordPostID := fields.String(FieldPostID); recordPostID != "" {
		postID = recordPostID
	}
	return Comment{
		ID:          record.ID,
		PostID:      postID,
		AuthorID:    fields.String(FieldAuthorID),
		Content:     fields.String(FieldContent),
		ParentID:    fields.String(FieldParentID),
		Depth:       int(fields.Int(FieldDepth)),
		ReplyCount:  int(fields.Int(FieldReplyCount)),
		LikeCount:   int(fields.Int(FieldLikeCount)),
		LikedBy:     fields.Strings(FieldLikedBy),
		ClientToken: fields.String(FieldClientToken),
		CreatedAt:   record.CreatedAt,
		UpdatedAt:   record.UpdatedAt,
	}
}

func FromRecords(postID string, records []docstorepkg.Record) []Comment {
	comments := make([]Comment, len(records))
	for i, record := range records {
		comments[i] = FromRecord(postID, record)
	}
	return comments
}

// newFields builds the document written for a new comment. Counters always start at zero.
func newFields(c Comment) docstorepkg.Fields {
	fields := docstorepkg.Fields{
		FieldPostID:     c.PostID,
		FieldAuthorID:   c.AuthorID,
		FieldContent:    c.Content,
		FieldDepth:      c.Depth,
		FieldReplyCount: 0,
		FieldLikeCount:  0,
		FieldLikedBy:    []string{},
	}
	if c.ParentID != "" {
		fields[FieldParentID] = c.ParentID
	}
	if c.ClientToken != "" {
		fields[FieldClientToken] = c.ClientToken
	}
	return fields
}
