package comment

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	docstorepkg "github.com/stormhead-org/fairway/internal/docstore"
	eventpkg "github.com/stormhead-org/fairway/internal/event"
	metricspkg "github.com/stormhead-org/fairway/internal/metrics"
	ratelimitpkg "github.com/stormhead-org/fairway/internal/ratelimit"
)

const (
	DefaultWriteTimeout    = 10 * time.Second
	DefaultReconcileWindow = 30 * time.Second
	DefaultSweepInterval   = time.Second
)

type Publisher interface {
	Publish(ctx context.Context, event string, message any) error
}

type Config struct {
	PostID string
	UserID string
	// WriteTimeout bounds every store write; a timed-out write counts as failed.
	WriteTimeout time.Duration
	// ReconcileWindow is how long an acknowledged write may stay unconfirmed.
	ReconcileWindow time.Duration
	SweepInterval   time.Duration
	Clock           func() time.Time
}

type State struct {
	Comments []Comment
	Tree     Tree
}

// Session is the live view of one post's thread for one user. The confirmed cache is
// replaced by every snapshot; pending entries and overlays carry the user's in-flight
// writes. Every transition happens under one lock, so a pending entry and its confirmed
// counterpart are never visible together.
type Session struct {
	log       *zap.Logger
	config    Config
	now       func() time.Time
	repo      *Repository
	counters  *Counters
	likes     *Likes
	limiter   *ratelimitpkg.Limiter
	publisher Publisher
	metrics   *metricspkg.Metrics

	mu              sync.Mutex
	confirmed       []Comment
	pending         []Pending
	overlays        Overlays
	visible         []Comment
	abandoned       map[string]abandonedCreate
	seq             uint64
	reportedPending int
	loaded          bool
	closed          bool

	changes chan struct{}
	errors  chan error

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewSession(
	log *zap.Logger,
	store docstorepkg.Store,
	limiter *ratelimitpkg.Limiter,
	publisher Publisher,
	metrics *metricspkg.Metrics,
	config Config,
) *Session {
	if config.WriteTimeout <= 0 {
		config.WriteTimeout = DefaultWriteTimeout
	}
	if config.ReconcileWindow <= 0 {
		config.ReconcileWindow = DefaultReconcileWindow
	}
	if config.SweepInterval <= 0 {
		config.SweepInterval = DefaultSweepInterval
	}
	now := config.Clock
	if now == nil {
		now = time.Now
	}

	return &Session{
		log: log.With(
			zap.String("post_id", config.PostID),
			zap.String("user_id", config.UserID),
		),
		config:    config,
		now:       now,
		repo:      NewRepository(store),
		counters:  NewCounters(store),
		likes:     NewLikes(store),
		limiter:   limiter,
		publisher: publisher,
		metrics:   metrics,
		overlays:  NewOverlays(),
		visible:   []Comment{},
		abandoned: make(map[string]abandonedCreate),
		changes:   make(chan struct{}, 1),
		errors:    make(chan error, 16),
	}
}

// Open subscribes to the thread. The subscription belongs to the session and ends with
// Close or when ctx is cancelled.
func (s *Session) Open(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrSessionClosed
	}
	if s.cancel != nil {
		s.mu.Unlock()
		return errors.New("session already open")
	}
	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.wg.Add(1)
	s.mu.Unlock()

	subscription, err := s.repo.Subscribe(ctx, s.config.PostID)
	if err != nil {
		s.wg.Done()
		cancel()
		return fmt.Errorf("subscribe to thread: %w", err)
	}

	go s.run(ctx, subscription)
	s.log.Debug("comment session opened")
	return nil
}

// Close tears down the subscription, waits for the snapshot loop and closes the
// Changes and Errors channels.
func (s *Session) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	cancel := s.cancel
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	s.wg.Wait()

	s.mu.Lock()
	close(s.changes)
	close(s.errors)
	s.metrics.AddPending(-s.reportedPending)
	s.reportedPending = 0
	s.mu.Unlock()
	s.log.Debug("comment session closed")
}

func (s *Session) run(ctx context.Context, subscription *docstorepkg.Subscription) {
	defer s.wg.Done()
	defer subscription.Close()

	ticker := time.NewTicker(s.config.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-subscription.Done():
			if err := subscription.Err(); err != nil {
				s.log.Error("thread subscription ended", zap.Error(err))
				s.emit(fmt.Errorf("thread subscription ended: %w", err))
			}
			return
		case records := <-subscription.Snapshots():
			s.HandleSnapshot(FromRecords(s.config.PostID, records))
		case <-ticker.C:
			s.Sweep()
		}
	}
}

// Changes signals state changes. Signals coalesce; read State after each one.
func (s *Session) Changes() <-chan struct{} {
	return s.changes
}

// Errors delivers write failures and reconciliation problems for the UI to surface.
func (s *Session) Errors() <-chan error {
	return s.errors
}

func (s *Session) State() State {
	s.mu.Lock()
	comments := cloneComments(s.visible)
	s.mu.Unlock()

	return State{
		Comments: comments,
		Tree:     BuildTree(comments),
	}
}

func (s *Session) Comments() []Comment {
	return s.State().Comments
}

func (s *Session) Tree() Tree {
	return s.State().Tree
}

// Loaded reports whether the first snapshot has arrived.
func (s *Session) Loaded() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loaded
}

func (s *Session) PendingCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}

// HandleSnapshot makes comments the confirmed cache and drops every pending entry that
// now has a confirmed counterpart, in one transition.
func (s *Session) HandleSnapshot(comments []Comment) {
	if err := VerifyDepths(comments); err != nil {
		s.log.Warn("inconsistent thread depth", zap.Error(err))
	}

	s.mu.Lock()
	s.confirmed = cloneComments(comments)
	s.loaded = true
	s.overlays = s.overlays.Settle(s.config.UserID, s.confirmed)
	reconciled := s.recomputeLocked()
	late := s.lateCommitsLocked()
	s.mu.Unlock()

	s.metrics.SnapshotApplied(reconciled)
	if reconciled > 0 {
		s.log.Debug("pending comments confirmed", zap.Int("count", reconciled))
	}
	for _, c := range late {
		s.log.Warn("failed comment committed late", zap.String("comment_id", c.comment.ID))
		s.createFollowUps(context.Background(), c.comment.ID, c.parentID, c.parentAuthorID)
	}
}

type lateCommit struct {
	comment        Comment
	parentID       string
	parentAuthorID string
}

// lateCommitsLocked claims the confirmed records of creates that were reported failed.
func (s *Session) lateCommitsLocked() []lateCommit {
	if len(s.abandoned) == 0 {
		return nil
	}
	var late []lateCommit
	for _, c := range s.confirmed {
		if c.ClientToken == "" || c.AuthorID != s.config.UserID {
			continue
		}
		entry, ok := s.abandoned[c.ClientToken]
		if !ok {
			continue
		}
		delete(s.abandoned, c.ClientToken)
		late = append(late, lateCommit{comment: c, parentID: entry.parentID, parentAuthorID: entry.parentAuthorID})
	}
	return late
}

// SubmitCreate shows the comment at once as pending and writes it. On failure the
// pending entry is removed and the rate budget is left untouched.
func (s *Session) SubmitCreate(ctx context.Context, content string, parentID string) error {
	content, err := ValidateContent(content)
	if err != nil {
		return err
	}

	decision, err := s.limiter.Check(ctx, s.config.UserID, ratelimitpkg.ActionComment)
	if err != nil {
		return err
	}
	if !decision.Allowed {
		s.metrics.RateLimitedSubmission()
		s.log.Debug("comment rate limited", zap.Duration("remaining", decision.Remaining))
		return &RateLimitedError{Remaining: decision.Remaining}
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrSessionClosed
	}

	depth := 0
	parentAuthorID := ""
	if parentID != "" {
		parent, ok := s.visibleLocked(parentID)
		if !ok {
			s.mu.Unlock()
			return ErrParentNotFound
		}
		if parent.IsPending {
			s.mu.Unlock()
			return ErrPendingComment
		}
		depth = parent.Depth + 1
		parentAuthorID = parent.AuthorID
	}

	now := s.now()
	placeholder := Comment{
		ID:          NewPendingID(),
		PostID:      s.config.PostID,
		AuthorID:    s.config.UserID,
		Content:     content,
		ParentID:    parentID,
		Depth:       depth,
		ClientToken: uuid.NewString(),
		CreatedAt:   now,
		UpdatedAt:   now,
		IsPending:   true,
	}
	s.pending = append(s.pending, Pending{
		Comment:     placeholder,
		Preexisting: s.lookalikesLocked(placeholder),
	})
	s.recomputeLocked()
	s.mu.Unlock()

	writeCtx, cancel := context.WithTimeout(ctx, s.config.WriteTimeout)
	id, err := s.repo.Create(writeCtx, placeholder)
	cancel()
	if err != nil {
		s.mu.Lock()
		s.removePendingLocked(placeholder.ID)
		// A timed-out or interrupted insert may still commit; remember its token so a
		// late record gets its counters.
		if !errors.Is(err, docstorepkg.ErrInvalidArgument) {
			s.abandoned[placeholder.ClientToken] = abandonedCreate{
				parentID:       parentID,
				parentAuthorID: parentAuthorID,
				at:             s.now(),
			}
		}
		s.recomputeLocked()
		s.mu.Unlock()
		return s.fail(OpCreate, placeholder.ID, err)
	}

	s.mu.Lock()
	s.acknowledgePendingLocked(placeholder.ID)
	s.mu.Unlock()
	s.log.Debug("comment created", zap.String("comment_id", id), zap.String("pending_id", placeholder.ID))

	s.createFollowUps(ctx, id, parentID, parentAuthorID)
	return nil
}

// abandonedCreate is a create reported as failed whose record may still commit.
type abandonedCreate struct {
	parentID       string
	parentAuthorID string
	at             time.Time
}

// createFollowUps runs the writes that must accompany every committed comment.
func (s *Session) createFollowUps(ctx context.Context, id string, parentID string, parentAuthorID string) {
	followCtx, cancel := s.followUpContext(ctx)
	defer cancel()

	err := s.limiter.Record(followCtx, s.config.UserID, ratelimitpkg.ActionComment)
	if err != nil {
		s.followUpFailed(OpRateLimit, id, err)
	}
	if parentID != "" {
		err = s.counters.IncrementReplyCount(followCtx, s.config.PostID, parentID, 1)
		if err != nil {
			s.followUpFailed(OpCounters, parentID, err)
		}
	}
	err = s.counters.IncrementPostCommentCount(followCtx, s.config.PostID, 1)
	if err != nil {
		s.followUpFailed(OpCounters, id, err)
	}

	s.publish(followCtx, eventpkg.COMMENT_CREATED, eventpkg.CommentCreatedMessage{
		ID:             id,
		PostID:         s.config.PostID,
		AuthorID:       s.config.UserID,
		ParentID:       parentID,
		ParentAuthorID: parentAuthorID,
	})
}

// SubmitEdit replaces the content of one of the user's confirmed comments. Edits are
// not rate limited and never touch counters.
func (s *Session) SubmitEdit(ctx context.Context, commentID string, content string) error {
	content, err := ValidateContent(content)
	if err != nil {
		return err
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrSessionClosed
	}
	current, err := s.ownConfirmedLocked(commentID)
	if err != nil {
		s.mu.Unlock()
		return err
	}
	if current.Content == content {
		s.mu.Unlock()
		return nil
	}
	seq := s.nextSeqLocked()
	s.overlays.Edits[commentID] = EditOverlay{Content: content, Seq: seq}
	s.recomputeLocked()
	s.mu.Unlock()

	writeCtx, cancel := context.WithTimeout(ctx, s.config.WriteTimeout)
	err = s.repo.UpdateContent(writeCtx, s.config.PostID, commentID, content)
	cancel()

	s.mu.Lock()
	edit, ok := s.overlays.Edits[commentID]
	if ok && edit.Seq == seq {
		if err != nil {
			delete(s.overlays.Edits, commentID)
		} else {
			edit.AckedAt = s.now()
			s.overlays.Edits[commentID] = edit
			s.overlays = s.overlays.Settle(s.config.UserID, s.confirmed)
		}
		s.recomputeLocked()
	}
	s.mu.Unlock()

	if err != nil {
		return s.fail(OpEdit, commentID, err)
	}

	followCtx, cancel := s.followUpContext(ctx)
	defer cancel()
	s.publish(followCtx, eventpkg.COMMENT_EDITED, eventpkg.CommentEditedMessage{
		ID:       commentID,
		PostID:   s.config.PostID,
		AuthorID: s.config.UserID,
	})
	return nil
}

// SubmitDelete hides one of the user's confirmed comments, soft-deletes it and
// decrements the parent's replyCount and the post's comment count.
func (s *Session) SubmitDelete(ctx context.Context, commentID string) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrSessionClosed
	}
	target, err := s.ownConfirmedLocked(commentID)
	if err != nil {
		s.mu.Unlock()
		return err
	}
	seq := s.nextSeqLocked()
	s.overlays.Deletes[commentID] = DeleteOverlay{Seq: seq}
	s.recomputeLocked()
	s.mu.Unlock()

	writeCtx, cancel := context.WithTimeout(ctx, s.config.WriteTimeout)
	err = s.repo.Delete(writeCtx, s.config.PostID, commentID)
	cancel()

	s.mu.Lock()
	del, ok := s.overlays.Deletes[commentID]
	if ok && del.Seq == seq {
		if err != nil {
			delete(s.overlays.Deletes, commentID)
		} else {
			del.AckedAt = s.now()
			s.overlays.Deletes[commentID] = del
			s.overlays = s.overlays.Settle(s.config.UserID, s.confirmed)
		}
		s.recomputeLocked()
	}
	s.mu.Unlock()

	if err != nil {
		return s.fail(OpDelete, commentID, err)
	}
	s.log.Debug("comment deleted", zap.String("comment_id", commentID))

	followCtx, cancel := s.followUpContext(ctx)
	defer cancel()

	if target.ParentID != "" {
		err = s.counters.IncrementReplyCount(followCtx, s.config.PostID, target.ParentID, -1)
		if err != nil {
			s.followUpFailed(OpCounters, target.ParentID, err)
		}
	}
	err = s.counters.IncrementPostCommentCount(followCtx, s.config.PostID, -1)
	if err != nil {
		s.followUpFailed(OpCounters, commentID, err)
	}

	s.publish(followCtx, eventpkg.COMMENT_DELETED, eventpkg.CommentDeletedMessage{
		ID:       commentID,
		PostID:   s.config.PostID,
		AuthorID: s.config.UserID,
		ParentID: target.ParentID,
	})
	return nil
}

// ToggleLike flips the user's like on a confirmed comment and reports whether the user
// likes it afterwards.
func (s *Session) ToggleLike(ctx context.Context, commentID string) (bool, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return false, ErrSessionClosed
	}
	target, ok := s.visibleLocked(commentID)
	if !ok {
		s.mu.Unlock()
		return false, ErrNotFound
	}
	if target.IsPending {
		s.mu.Unlock()
		return false, ErrPendingComment
	}
	liked := !target.LikedByUser(s.config.UserID)
	seq := s.nextSeqLocked()
	s.overlays.Likes[commentID] = LikeOverlay{Liked: liked, Seq: seq}
	s.recomputeLocked()
	s.mu.Unlock()

	writeCtx, cancel := context.WithTimeout(ctx, s.config.WriteTimeout)
	var changed bool
	var err error
	if liked {
		changed, err = s.likes.Like(writeCtx, target, s.config.UserID)
	} else {
		changed, err = s.likes.Unlike(writeCtx, target, s.config.UserID)
	}
	cancel()

	s.mu.Lock()
	like, ok := s.overlays.Likes[commentID]
	if ok && like.Seq == seq {
		if err != nil {
			delete(s.overlays.Likes, commentID)
		} else {
			like.AckedAt = s.now()
			s.overlays.Likes[commentID] = like
			s.overlays = s.overlays.Settle(s.config.UserID, s.confirmed)
		}
		s.recomputeLocked()
	}
	s.mu.Unlock()

	if err != nil {
		return !liked, s.fail(OpLike, commentID, err)
	}
	if !changed {
		return liked, nil
	}

	followCtx, cancel := s.followUpContext(ctx)
	defer cancel()
	if liked {
		s.publish(followCtx, eventpkg.COMMENT_LIKED, eventpkg.CommentLikedMessage{
			CommentID:       commentID,
			PostID:          s.config.PostID,
			UserID:          s.config.UserID,
			CommentAuthorID: target.AuthorID,
		})
	} else {
		s.publish(followCtx, eventpkg.COMMENT_UNLIKED, eventpkg.CommentUnlikedMessage{
			CommentID: commentID,
			PostID:    s.config.PostID,
			UserID:    s.config.UserID,
		})
	}
	return liked, nil
}

// Sweep drops acknowledged writes that never showed up in a snapshot within the
// reconciliation window and reports them.
func (s *Session) Sweep() {
	now := s.now()
	window := s.config.ReconcileWindow

	s.mu.Lock()
	defer s.mu.Unlock()

	kept := make([]Pending, 0, len(s.pending))
	var mismatches []*ReconciliationMismatchError
	for _, p := range s.pending {
		if !p.AckedAt.IsZero() && now.Sub(p.AckedAt) > window {
			mismatches = append(mismatches, &ReconciliationMismatchError{
				CommentID: p.Comment.ID,
				Content:   p.Comment.Content,
				Waited:    now.Sub(p.AckedAt),
			})
			continue
		}
		kept = append(kept, p)
	}

	for token, entry := range s.abandoned {
		if now.Sub(entry.at) > window {
			delete(s.abandoned, token)
		}
	}

	overlays, expired := s.overlays.Expire(now, window)
	if len(mismatches) == 0 && expired == 0 {
		return
	}
	s.pending = kept
	s.overlays = overlays
	s.recomputeLocked()

	for _, mismatch := range mismatches {
		s.metrics.ReconcileMismatch()
		s.log.Warn("pending comment never confirmed", zap.String("pending_id", mismatch.CommentID), zap.Duration("waited", mismatch.Waited))
		s.emitLocked(mismatch)
	}
	if expired > 0 {
		s.log.Warn("optimistic changes expired unconfirmed", zap.Int("count", expired))
	}
}

// recomputeLocked rebuilds the visible list and reports how many pending entries were
// confirmed by it.
func (s *Session) recomputeLocked() int {
	before := len(s.pending)
	s.visible, s.pending = Reconcile(s.config.UserID, s.confirmed, s.pending, s.overlays)

	s.metrics.AddPending(len(s.pending) - s.reportedPending)
	s.reportedPending = len(s.pending)

	s.notifyLocked()
	return before - len(s.pending)
}

func (s *Session) visibleLocked(commentID string) (Comment, bool) {
	for _, c := range s.visible {
		if c.ID == commentID {
			return c, true
		}
	}
	return Comment{}, false
}

func (s *Session) ownConfirmedLocked(commentID string) (Comment, error) {
	c, ok := s.visibleLocked(commentID)
	if !ok {
		return Comment{}, ErrNotFound
	}
	if c.IsPending {
		return Comment{}, ErrPendingComment
	}
	if c.AuthorID != s.config.UserID {
		return Comment{}, ErrNotAuthor
	}
	return c, nil
}

// lookalikesLocked collects token-less confirmed comments identical to c. They already
// existed, so they cannot be the record this placeholder is waiting for.
func (s *Session) lookalikesLocked(c Comment) map[string]struct{} {
	var ids map[string]struct{}
	for _, confirmed := range s.confirmed {
		if confirmed.ClientToken != "" {
			continue
		}
		if confirmed.AuthorID == c.AuthorID && confirmed.Content == c.Content {
			if ids == nil {
				ids = make(map[string]struct{})
			}
			ids[confirmed.ID] = struct{}{}
		}
	}
	return ids
}

func (s *Session) removePendingLocked(pendingID string) {
	kept := make([]Pending, 0, len(s.pending))
	for _, p := range s.pending {
		if p.Comment.ID != pendingID {
			kept = append(kept, p)
		}
	}
	s.pending = kept
}

func (s *Session) acknowledgePendingLocked(pendingID string) {
	for i := range s.pending {
		if s.pending[i].Comment.ID == pendingID {
			s.pending[i].AckedAt = s.now()
			return
		}
	}
}

func (s *Session) nextSeqLocked() uint64 {
	s.seq++
	return s.seq
}

// followUpContext outlives the caller's cancellation: once a write is accepted its
// counters and events still go out.
func (s *Session) followUpContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), s.config.WriteTimeout)
}

func (s *Session) fail(op Operation, commentID string, err error) error {
	failure := &WriteFailedError{Op: op, CommentID: commentID, Err: err}
	s.log.Error("comment write failed", zap.String("op", string(op)), zap.String("comment_id", commentID), zap.Error(err))
	s.metrics.WriteFailed(string(op))
	s.emit(failure)
	return failure
}

func (s *Session) followUpFailed(op Operation, commentID string, err error) {
	failure := &WriteFailedError{Op: op, CommentID: commentID, Err: err}
	s.log.Error("comment follow-up failed", zap.String("op", string(op)), zap.String("comment_id", commentID), zap.Error(err))
	s.metrics.WriteFailed(string(op))
	s.emit(failure)
}

func (s *Session) publish(ctx context.Context, event string, message any) {
	if s.publisher == nil {
		return
	}
	err := s.publisher.Publish(ctx, event, message)
	if err != nil {
		s.log.Error("error publishing comment event", zap.String("event", event), zap.Error(err))
		s.metrics.WriteFailed(string(OpPublish))
	}
}

func (s *Session) notifyLocked() {
	if s.closed {
		return
	}
	select {
	case s.changes <- struct{}{}:
	default:
	}
}

func (s *Session) emit(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.emitLocked(err)
}

func (s *Session) emitLocked(err error) {
	if s.closed {
		return
	}
	select {
	case s.errors <- err:
	default:
		s.log.Warn("error channel full, dropping error", zap.Error(err))
	}
}

func cloneComments(comments []Comment) []Comment {
	result := make([]Comment, len(comments))
	for i, c := range comments {
		result[i] = c.Clone()
	}
	return result
}
