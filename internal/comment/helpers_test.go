package comment

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	docstorepkg "github.com/stormhead-org/fairway/internal/docstore"
	"github.com/stormhead-org/fairway/internal/docstore/memory"
	metricspkg "github.com/stormhead-org/fairway/internal/metrics"
	ratelimitpkg "github.com/stormhead-org/fairway/internal/ratelimit"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 6, 1, 8, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// faultyStore wraps a store and fails or blocks chosen write methods.
type faultyStore struct {
	docstorepkg.Store

	mu       sync.Mutex
	failures map[string]error
	late     map[string]error
	gates    map[string]chan struct{}
}

func newFaultyStore(store docstorepkg.Store) *faultyStore {
	return &faultyStore{
		Store:    store,
		failures: make(map[string]error),
		late:     make(map[string]error),
		gates:    make(map[string]chan struct{}),
	}
}

func (s *faultyStore) FailOn(method string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[method] = err
}

// FailAfterWrite makes method apply its write and then report err, like a commit
// whose acknowledgement was lost.
func (s *faultyStore) FailAfterWrite(method string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.late[method] = err
}

func (s *faultyStore) Heal(method string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.failures, method)
	delete(s.late, method)
}

func (s *faultyStore) after(method string, err error) error {
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.late[method]
}

// Hold makes method block until the returned release func is called or its context ends.
func (s *faultyStore) Hold(method string) func() {
	gate := make(chan struct{})
	s.mu.Lock()
	s.gates[method] = gate
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.gates, method)
			s.mu.Unlock()
			close(gate)
		})
	}
}

func (s *faultyStore) before(ctx context.Context, method string) error {
	s.mu.Lock()
	err := s.failures[method]
	gate := s.gates[method]
	s.mu.Unlock()

	if err != nil {
		return err
	}
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

func (s *faultyStore) Create(ctx context.Context, collection string, fields docstorepkg.Fields) (string, error) {
	if err := s.before(ctx, "Create"); err != nil {
		return "", err
	}
	id, err := s.Store.Create(ctx, collection, fields)
	if err = s.after("Create", err); err != nil {
		return "", err
	}
	return id, nil
}

func (s *faultyStore) Put(ctx context.Context, collection string, id string, fields docstorepkg.Fields) error {
	if err := s.before(ctx, "Put"); err != nil {
		return err
	}
	return s.Store.Put(ctx, collection, id, fields)
}

func (s *faultyStore) Update(ctx context.Context, collection string, id string, fields docstorepkg.Fields) error {
	if err := s.before(ctx, "Update"); err != nil {
		return err
	}
	return s.Store.Update(ctx, collection, id, fields)
}

func (s *faultyStore) Delete(ctx context.Context, collection string, id string) error {
	if err := s.before(ctx, "Delete"); err != nil {
		return err
	}
	return s.Store.Delete(ctx, collection, id)
}

func (s *faultyStore) Increment(ctx context.Context, collection string, id string, field string, delta int64) error {
	if err := s.before(ctx, "Increment"); err != nil {
		return err
	}
	return s.Store.Increment(ctx, collection, id, field, delta)
}

func (s *faultyStore) AddToSet(ctx context.Context, collection string, id string, field string, value string) (bool, error) {
	if err := s.before(ctx, "AddToSet"); err != nil {
		return false, err
	}
	return s.Store.AddToSet(ctx, collection, id, field, value)
}

func (s *faultyStore) RemoveFromSet(ctx context.Context, collection string, id string, field string, value string) (bool, error) {
	if err := s.before(ctx, "RemoveFromSet"); err != nil {
		return false, err
	}
	return s.Store.RemoveFromSet(ctx, collection, id, field, value)
}

type publishedEvent struct {
	Event   string
	Message any
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []publishedEvent
}

func (p *recordingPublisher) Publish(ctx context.Context, event string, message any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, publishedEvent{Event: event, Message: message})
	return nil
}

func (p *recordingPublisher) Events() []publishedEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]publishedEvent(nil), p.events...)
}

type fixture struct {
	store     *faultyStore
	clock     *fakeClock
	limiter   *ratelimitpkg.Limiter
	publisher *recordingPublisher
	metrics   *metricspkg.Metrics
	postID    string
}

func newFixture(t *testing.T, options ...ratelimitpkg.Option) *fixture {
	t.Helper()

	clock := newFakeClock()
	store := newFaultyStore(memory.NewStore())
	options = append([]ratelimitpkg.Option{ratelimitpkg.WithClock(clock.Now)}, options...)

	postID, err := NewRepository(store).CreatePost(context.Background(), "author", "Club championship")
	require.NoError(t, err)

	return &fixture{
		store:     store,
		clock:     clock,
		limiter:   ratelimitpkg.NewLimiter(ratelimitpkg.NewMemoryStore(), options...),
		publisher: &recordingPublisher{},
		metrics:   metricspkg.NewMetrics(prometheus.NewRegistry()),
		postID:    postID,
	}
}

func (f *fixture) session(t *testing.T, userID string) *Session {
	t.Helper()
	session := NewSession(zap.NewNop(), f.store, f.limiter, f.publisher, f.metrics, Config{
		PostID:          f.postID,
		UserID:          userID,
		WriteTimeout:    time.Second,
		ReconcileWindow: 30 * time.Second,
		SweepInterval:   time.Hour,
		Clock:           f.clock.Now,
	})
	t.Cleanup(session.Close)
	return session
}

// openSession returns a session that has received its first snapshot.
func (f *fixture) openSession(t *testing.T, userID string) *Session {
	t.Helper()
	session := f.session(t, userID)
	require.NoError(t, session.Open(context.Background()))
	require.Eventually(t, session.Loaded, time.Second, 5*time.Millisecond)
	return session
}

// refresh feeds the current store contents to an unopened session.
func (f *fixture) refresh(t *testing.T, session *Session) {
	t.Helper()
	comments, err := NewRepository(f.store).List(context.Background(), f.postID)
	require.NoError(t, err)
	session.HandleSnapshot(comments)
}

func findComment(comments []Comment, match func(Comment) bool) (Comment, bool) {
	for _, c := range comments {
		if match(c) {
			return c, true
		}
	}
	return Comment{}, false
}

func withContent(content string) func(Comment) bool {
	return func(c Comment) bool {
		return c.Content == content
	}
}

func countContent(comments []Comment, content string) int {
	count := 0
	for _, c := range comments {
		if c.Content == content {
			count++
		}
	}
	return count
}

func drainErrors(session *Session) []error {
	var errs []error
	for {
		select {
		case err, ok := <-session.Errors():
			if !ok {
				return errs
			}
			errs = append(errs, err)
		default:
			return errs
		}
	}
}
