package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	commentpkg "github.com/stormhead-org/fairway/internal/comment"
	docstorepkg "github.com/stormhead-org/fairway/internal/docstore"
	eventpkg "github.com/stormhead-org/fairway/internal/event"
)

const (
	NotificationReply = "reply"
	NotificationLike  = "like"
)

// Notification document field names.
const (
	FieldType      = "type"
	FieldActorID   = "actorId"
	FieldRead      = "read"
	FieldPostID    = commentpkg.FieldPostID
	FieldCommentID = commentpkg.FieldCommentID
)

const retryDelay = time.Second

type MessageReader interface {
	ReadMessage(ctx context.Context) (string, []byte, error)
}

// Worker turns comment events into notifications for the users they concern.
type Worker struct {
	context   context.Context
	cancel    func()
	waitGroup sync.WaitGroup
	logger    *zap.Logger
	router    *Router
	reader    MessageReader
	store     docstorepkg.Store
	likes     *commentpkg.Likes
}

func NewWorker(logger *zap.Logger, reader MessageReader, store docstorepkg.Store) *Worker {
	context, cancel := context.WithCancel(context.Background())
	this := &Worker{
		context: context,
		cancel:  cancel,
		logger:  logger,
		reader:  reader,
		store:   store,
		likes:   commentpkg.NewLikes(store),
	}
	this.router = NewRouter(
		map[string][]EventHandler{
			eventpkg.COMMENT_CREATED: {
				this.CommentCreatedHandler,
			},
			eventpkg.COMMENT_LIKED: {
				this.CommentLikedHandler,
			},
			eventpkg.COMMENT_UNLIKED: {
				this.CommentUnlikedHandler,
			},
		},
	)
	return this
}

func (this *Worker) Start() error {
	this.logger.Info("starting notification worker")

	this.waitGroup.Add(1)
	go this.worker()
	return nil
}

func (this *Worker) Stop() error {
	this.logger.Info("stopping notification worker")

	this.cancel()
	this.waitGroup.Wait()
	return nil
}

func (this *Worker) worker() {
	defer this.waitGroup.Done()

	for {
		select {
		case <-this.context.Done():
			return
		case <-time.After(1 * time.Millisecond):
		}

		event, data, err := this.reader.ReadMessage(this.context)
		if err != nil {
			if this.context.Err() != nil {
				return
			}
			this.logger.Error("error receiving kafka message", zap.Error(err))
			select {
			case <-this.context.Done():
				return
			case <-time.After(retryDelay):
			}
			continue
		}

		if !this.router.Handles(event) {
			this.logger.Debug("ignoring kafka message", zap.String("event", event))
			continue
		}

		err = this.router.Handle(this.context, event, data)
		if err != nil {
			this.logger.Error("error handling kafka message", zap.String("event", event), zap.Error(err))
			continue
		}
	}
}

// CommentCreatedHandler notifies the parent author about a reply.
func (this *Worker) CommentCreatedHandler(ctx context.Context, data []byte) error {
	var message eventpkg.CommentCreatedMessage
	err := json.Unmarshal(data, &message)
	if err != nil {
		return err
	}

	if message.ParentID == "" {
		return nil
	}
	if message.ParentAuthorID == "" || message.ID == "" {
		return errors.New("reply event without comment or parent author")
	}
	if message.ParentAuthorID == message.AuthorID {
		return nil
	}

	err = this.store.Put(
		ctx,
		commentpkg.NotificationsCollection(message.ParentAuthorID),
		ReplyNotificationID(message.ID),
		docstorepkg.Fields{
			FieldType:      NotificationReply,
			FieldActorID:   message.AuthorID,
			FieldPostID:    message.PostID,
			FieldCommentID: message.ID,
			FieldRead:      false,
		},
	)
	if err != nil {
		return err
	}

	this.logger.Info("sent reply notification",
		zap.String("user_id", message.ParentAuthorID),
		zap.String("comment_id", message.ID),
	)
	return nil
}

// CommentLikedHandler notifies the comment author, unless the like was already undone.
func (this *Worker) CommentLikedHandler(ctx context.Context, data []byte) error {
	var message eventpkg.CommentLikedMessage
	err := json.Unmarshal(data, &message)
	if err != nil {
		return err
	}

	if message.CommentID == "" || message.UserID == "" || message.CommentAuthorID == "" {
		return errors.New("like event without comment, user or author")
	}
	if message.UserID == message.CommentAuthorID {
		return nil
	}

	exists, err := this.likes.HasLikeRecord(ctx, message.CommentID, message.UserID)
	if err != nil {
		return err
	}
	if !exists {
		this.logger.Debug("like withdrawn before notification",
			zap.String("comment_id", message.CommentID),
			zap.String("user_id", message.UserID),
		)
		return nil
	}

	err = this.store.Put(
		ctx,
		commentpkg.NotificationsCollection(message.CommentAuthorID),
		LikeNotificationID(message.CommentID, message.UserID),
		docstorepkg.Fields{
			FieldType:      NotificationLike,
			FieldActorID:   message.UserID,
			FieldPostID:    message.PostID,
			FieldCommentID: message.CommentID,
			FieldRead:      false,
		},
	)
	if err != nil {
		return err
	}

	this.logger.Info("sent like notification",
		zap.String("user_id", message.CommentAuthorID),
		zap.String("comment_id", message.CommentID),
	)
	return nil
}

// CommentUnlikedHandler withdraws an unread like notification.
func (this *Worker) CommentUnlikedHandler(ctx context.Context, data []byte) error {
	var message eventpkg.CommentUnlikedMessage
	err := json.Unmarshal(data, &message)
	if err != nil {
		return err
	}

	record, err := this.store.Get(ctx, commentpkg.CommentsCollection(message.PostID), message.CommentID)
	if errors.Is(err, docstorepkg.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}

	authorID := record.Fields.String(commentpkg.FieldAuthorID)
	collection := commentpkg.NotificationsCollection(authorID)
	id := LikeNotificationID(message.CommentID, message.UserID)

	notification, err := this.store.Get(ctx, collection, id)
	if errors.Is(err, docstorepkg.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if read, _ := notification.Fields[FieldRead].(bool); read {
		return nil
	}

	err = this.store.Delete(ctx, collection, id)
	if err != nil && !errors.Is(err, docstorepkg.ErrNotFound) {
		return err
	}
	return nil
}

func ReplyNotificationID(commentID string) string {
	return fmt.Sprintf("%s_%s", NotificationReply, commentID)
}

func LikeNotificationID(commentID string, userID string) string {
	return fmt.Sprintf("%s_%s_%s", NotificationLike, commentID, userID)
}
