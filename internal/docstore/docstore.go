// Package docstore defines the document store contract the comment engine is built
// against: collections of schemaless documents with atomic field operations and
// real-time subscriptions delivering ordered snapshots.
package docstore

import (
	"context"
	"errors"
	"time"
)

var (
	ErrNotFound         = errors.New("document not found")
	ErrInvalidArgument  = errors.New("invalid argument")
	// ErrSubscriptionLost ends a live query whose feed broke before it was closed.
	ErrSubscriptionLost = errors.New("subscription lost")
)

// OrderByCreatedAt orders records by the store's write time.
const OrderByCreatedAt = "createdAt"

// Record is a document as delivered by the store.
type Record struct {
	ID        string    `json:"id"`
	Fields    Fields    `json:"fields"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func (r Record) Clone() Record {
	r.Fields = r.Fields.Clone()
	return r
}

// Filter matches documents whose field equals value.
type Filter struct {
	Field string `json:"field"`
	Value any    `json:"value"`
}

type Query struct {
	Filters    []Filter `json:"filters,omitempty"`
	OrderBy    string   `json:"orderBy,omitempty"`
	Descending bool     `json:"descending,omitempty"`
	Limit      int      `json:"limit,omitempty"`
}

// Where returns a copy of the query with an extra equality filter.
func (q Query) Where(field string, value any) Query {
	filters := make([]Filter, 0, len(q.Filters)+1)
	filters = append(filters, q.Filters...)
	q.Filters = append(filters, Filter{Field: field, Value: value})
	return q
}

type Store interface {
	Create(ctx context.Context, collection string, fields Fields) (string, error)
	Put(ctx context.Context, collection string, id string, fields Fields) error
	Get(ctx context.Context, collection string, id string) (Record, error)
	Update(ctx context.Context, collection string, id string, fields Fields) error
	Delete(ctx context.Context, collection string, id string) error
	Increment(ctx context.Context, collection string, id string, field string, delta int64) error
	AddToSet(ctx context.Context, collection string, id string, field string, value string) (bool, error)
	RemoveFromSet(ctx context.Context, collection string, id string, field string, value string) (bool, error)
	Query(ctx context.Context, collection string, query Query) ([]Record, error)
	Subscribe(ctx context.Context, collection string, query Query) (*Subscription, error)
}

// ValidatePath rejects empty collection paths and ids.
func ValidatePath(collection string, id string) error {
	if collection == "" {
		return errors.Join(ErrInvalidArgument, errors.New("empty collection"))
	}
	if id == "" {
		return errors.Join(ErrInvalidArgument, errors.New("empty document id"))
	}
	return nil
}
