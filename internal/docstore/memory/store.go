// Package memory is an in-process document store with live queries. It backs tests and
// single-process runs of the comment engine.
package memory

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	docstorepkg "github.com/stormhead-org/fairway/internal/docstore"
)

type document struct {
	record   docstorepkg.Record
	sequence uint64
	deleted  bool
}

type Store struct {
	mu          sync.Mutex
	now         func() time.Time
	newID       func() string
	sequence    uint64
	collections map[string]map[string]*document
	hub         *docstorepkg.Hub
}

type Option func(*Store)

func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		s.now = now
	}
}

func WithIDGenerator(newID func() string) Option {
	return func(s *Store) {
		s.newID = newID
	}
}

func NewStore(options ...Option) *Store {
	store := &Store{
		now:         time.Now,
		newID:       uuid.NewString,
		collections: make(map[string]map[string]*document),
		hub:         docstorepkg.NewHub(),
	}
	for _, option := range options {
		option(store)
	}
	return store
}

func (s *Store) Create(ctx context.Context, collection string, fields docstorepkg.Fields) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.newID()
	if err := docstorepkg.ValidatePath(collection, id); err != nil {
		return "", err
	}
	if existing := s.lookupLocked(collection, id); existing != nil {
		return "", fmt.Errorf("%w: duplicate id %s", docstorepkg.ErrInvalidArgument, id)
	}

	s.insertLocked(collection, id, fields)
	s.notifyLocked(collection)
	return id, nil
}

func (s *Store) Put(ctx context.Context, collection string, id string, fields docstorepkg.Fields) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := docstorepkg.ValidatePath(collection, id); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	existing := s.lookupLocked(collection, id)
	if existing == nil || existing.deleted {
		s.insertLocked(collection, id, fields)
	} else {
		existing.record.Fields = fields.Clone()
		if existing.record.Fields == nil {
			existing.record.Fields = docstorepkg.Fields{}
		}
		existing.record.UpdatedAt = s.now()
	}
	s.notifyLocked(collection)
	return nil
}

func (s *Store) Get(ctx context.Context, collection string, id string) (docstorepkg.Record, error) {
	if err := ctx.Err(); err != nil {
		return docstorepkg.Record{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.liveLocked(collection, id)
	if err != nil {
		return docstorepkg.Record{}, err
	}
	return doc.record.Clone(), nil
}

func (s *Store) Update(ctx context.Context, collection string, id string, fields docstorepkg.Fields) error {
	return s.mutate(ctx, collection, id, func(doc *document) bool {
		for key, value := range fields.Clone() {
			doc.record.Fields[key] = value
		}
		return true
	})
}

func (s *Store) Delete(ctx context.Context, collection string, id string) error {
	return s.mutate(ctx, collection, id, func(doc *document) bool {
		doc.deleted = true
		return true
	})
}

func (s *Store) Increment(ctx context.Context, collection string, id string, field string, delta int64) error {
	return s.mutate(ctx, collection, id, func(doc *document) bool {
		doc.record.Fields[field] = doc.record.Fields.Int(field) + delta
		return true
	})
}

func (s *Store) AddToSet(ctx context.Context, collection string, id string, field string, value string) (bool, error) {
	changed := false
	err := s.mutate(ctx, collection, id, func(doc *document) bool {
		members := doc.record.Fields.Strings(field)
		if slices.Contains(members, value) {
			return false
		}
		doc.record.Fields[field] = append(members, value)
		changed = true
		return true
	})
	return changed, err
}

func (s *Store) RemoveFromSet(ctx context.Context, collection string, id string, field string, value string) (bool, error) {
	changed := false
	err := s.mutate(ctx, collection, id, func(doc *document) bool {
		members := doc.record.Fields.Strings(field)
		index := slices.Index(members, value)
		if index < 0 {
			return false
		}
		doc.record.Fields[field] = slices.Delete(members, index, index+1)
		changed = true
		return true
	})
	return changed, err
}

func (s *Store) Query(ctx context.Context, collection string, query docstorepkg.Query) ([]docstorepkg.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	return s.fetcherLocked(collection)(query)
}

func (s *Store) Subscribe(ctx context.Context, collection string, query docstorepkg.Query) (*docstorepkg.Subscription, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if collection == "" {
		return nil, fmt.Errorf("%w: empty collection", docstorepkg.ErrInvalidArgument)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	return s.hub.Watch(ctx, collection, query, s.fetcherLocked(collection))
}

func (s *Store) mutate(ctx context.Context, collection string, id string, apply func(doc *document) bool) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := docstorepkg.ValidatePath(collection, id); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.liveLocked(collection, id)
	if err != nil {
		return err
	}
	if apply(doc) {
		doc.record.UpdatedAt = s.now()
		s.notifyLocked(collection)
	}
	return nil
}

func (s *Store) insertLocked(collection string, id string, fields docstorepkg.Fields) {
	docs, ok := s.collections[collection]
	if !ok {
		docs = make(map[string]*document)
		s.collections[collection] = docs
	}

	now := s.now()
	record := docstorepkg.Record{
		ID:        id,
		Fields:    fields.Clone(),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if record.Fields == nil {
		record.Fields = docstorepkg.Fields{}
	}

	s.sequence++
	docs[id] = &document{record: record, sequence: s.sequence}
}

func (s *Store) lookupLocked(collection string, id string) *document {
	return s.collections[collection][id]
}

func (s *Store) liveLocked(collection string, id string) (*document, error) {
	doc := s.lookupLocked(collection, id)
	if doc == nil || doc.deleted {
		return nil, fmt.Errorf("%w: %s/%s", docstorepkg.ErrNotFound, collection, id)
	}
	return doc, nil
}

func (s *Store) fetcherLocked(collection string) docstorepkg.Fetcher {
	return func(query docstorepkg.Query) ([]docstorepkg.Record, error) {
		docs := make([]*document, 0, len(s.collections[collection]))
		for _, doc := range s.collections[collection] {
			if !doc.deleted {
				docs = append(docs, doc)
			}
		}
		sort.Slice(docs, func(i, j int) bool {
			return docs[i].sequence < docs[j].sequence
		})

		records := make([]docstorepkg.Record, len(docs))
		for i, doc := range docs {
			records[i] = doc.record.Clone()
		}
		return query.Apply(records), nil
	}
}

func (s *Store) notifyLocked(collection string) {
	// The in-memory fetcher cannot fail.
	_ = s.hub.Notify(collection, s.fetcherLocked(collection))
}

// Close ends every live query with docstore.ErrSubscriptionLost. The store stays usable.
func (s *Store) Close() {
	s.hub.CloseAll(docstorepkg.ErrSubscriptionLost)
}
