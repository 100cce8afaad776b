package docstore

import (
	"context"
	"errors"
	"sync"
)

// Fetcher runs a query against the current state of one collection.
type Fetcher func(query Query) ([]Record, error)

// Hub fans out snapshots to the live queries of each collection. Fan-out is
// serialised, so a snapshot computed after a later commit is never delivered before
// one computed after an earlier commit.
type Hub struct {
	notify   sync.Mutex
	mu       sync.Mutex
	watchers map[string]map[*watcher]struct{}
}

type watcher struct {
	query        Query
	subscription *Subscription
}

func NewHub() *Hub {
	return &Hub{
		watchers: make(map[string]map[*watcher]struct{}),
	}
}

// Watch registers a live query and delivers its initial snapshot.
func (h *Hub) Watch(ctx context.Context, collection string, query Query, fetch Fetcher) (*Subscription, error) {
	h.notify.Lock()
	defer h.notify.Unlock()

	records, err := fetch(query)
	if err != nil {
		return nil, err
	}

	w := &watcher{query: query}
	w.subscription = NewSubscription(func() {
		h.remove(collection, w)
	})

	h.mu.Lock()
	set, ok := h.watchers[collection]
	if !ok {
		set = make(map[*watcher]struct{})
		h.watchers[collection] = set
	}
	set[w] = struct{}{}
	h.mu.Unlock()

	w.subscription.Push(records)
	w.subscription.Bind(ctx)
	return w.subscription, nil
}

// Notify re-runs every live query on collection and pushes the results.
func (h *Hub) Notify(collection string, fetch Fetcher) error {
	h.notify.Lock()
	defer h.notify.Unlock()

	h.mu.Lock()
	watchers := make([]*watcher, 0, len(h.watchers[collection]))
	for w := range h.watchers[collection] {
		watchers = append(watchers, w)
	}
	h.mu.Unlock()

	var errs []error
	for _, w := range watchers {
		records, err := fetch(w.query)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		w.subscription.Push(records)
	}
	return errors.Join(errs...)
}

func (h *Hub) Watching(collection string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.watchers[collection]) > 0
}

// Collections lists the collections with at least one live query.
func (h *Hub) Collections() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	collections := make([]string, 0, len(h.watchers))
	for collection := range h.watchers {
		collections = append(collections, collection)
	}
	return collections
}

// CloseAll ends every live query with err.
func (h *Hub) CloseAll(err error) {
	h.mu.Lock()
	var subscriptions []*Subscription
	for _, set := range h.watchers {
		for w := range set {
			subscriptions = append(subscriptions, w.subscription)
		}
	}
	h.mu.Unlock()

	for _, subscription := range subscriptions {
		subscription.CloseWithError(err)
	}
}

func (h *Hub) remove(collection string, w *watcher) {
	h.mu.Lock()
	defer h.mu.Unlock()
	set, ok := h.watchers[collection]
	if !ok {
		return
	}
	delete(set, w)
	if len(set) == 0 {
		delete(h.watchers, collection)
	}
}
