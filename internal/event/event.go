package event

const (
	COMMENT_CREATED = "comment.created"
	COMMENT_DELETED = "comment.deleted"
	COMMENT_EDITED  = "comment.edited"
	COMMENT_LIKED   = "comment.liked"
	COMMENT_UNLIKED = "comment.unliked"
)

type CommentCreatedMessage struct {
	ID             string `json:"id"`
	PostID         string `json:"post_id"`
	AuthorID       string `json:"author_id"`
	ParentID       string `json:"parent_id,omitempty"`
	ParentAuthorID string `json:"parent_author_id,omitempty"`
}

type CommentEditedMessage struct {
	ID       string `json:"id"`
	PostID   string `json:"post_id"`
	AuthorID string `json:"author_id"`
}

type CommentDeletedMessage struct {
	ID       string `json:"id"`
	PostID   string `json:"post_id"`
	AuthorID string `json:"author_id"`
	ParentID string `json:"parent_id,omitempty"`
}

type CommentLikedMessage struct {
	CommentID       string `json:"comment_id"`
	PostID          string `json:"post_id"`
	UserID          string `json:"user_id"`
	CommentAuthorID string `json:"comment_author_id"`
}

type CommentUnlikedMessage struct {
	CommentID string `json:"comment_id"`
	PostID    string `json:"post_id"`
	UserID    string `json:"user_id"`
}
