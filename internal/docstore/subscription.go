package docstore

import (
	"context"
	"sync"
)

// Subscription is a cancellable handle on a live query. Snapshots are latest-wins: a
// consumer that falls behind only ever observes the newest snapshot.
type Subscription struct {
	mu        sync.Mutex
	closed    bool
	err       error
	snapshots chan []Record
	done      chan struct{}
	onClose   func()
}

func NewSubscription(onClose func()) *Subscription {
	return &Subscription{
		snapshots: make(chan []Record, 1),
		done:      make(chan struct{}),
		onClose:   onClose,
	}
}

// Bind closes the subscription when ctx is cancelled.
func (s *Subscription) Bind(ctx context.Context) {
	stop := context.AfterFunc(ctx, s.Close)
	go func() {
		<-s.done
		stop()
	}()
}

func (s *Subscription) Snapshots() <-chan []Record {
	return s.snapshots
}

func (s *Subscription) Done() <-chan struct{} {
	return s.done
}

// Err reports why the subscription ended; nil after a plain Close.
func (s *Subscription) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

func (s *Subscription) Push(records []Record) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	select {
	case <-s.snapshots:
	default:
	}
	s.snapshots <- records
}

func (s *Subscription) Close() {
	s.CloseWithError(nil)
}

func (s *Subscription) CloseWithError(err error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.err = err
	close(s.done)
	s.mu.Unlock()

	if s.onClose != nil {
		s.onClose()
	}
}
