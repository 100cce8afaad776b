package orm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	docstorepkg "github.com/stormhead-org/fairway/internal/docstore"
)

type Document struct {
	Collection string         `gorm:"primaryKey;size:512"`
	ID         string         `gorm:"primaryKey;size:128"`
	Fields     string         `gorm:"type:jsonb;not null"`
	CreatedAt  time.Time      `gorm:"index"`
	UpdatedAt  time.Time
	DeletedAt  gorm.DeletedAt `gorm:"index"`
}

func (d *Document) TableName() string {
	return "document"
}

func (d Document) Record() (docstorepkg.Record, error) {
	fields := docstorepkg.Fields{}
	if len(d.Fields) > 0 {
		decoder := json.NewDecoder(strings.NewReader(d.Fields))
		decoder.UseNumber()
		if err := decoder.Decode(&fields); err != nil {
			return docstorepkg.Record{}, fmt.Errorf("decode document %s/%s: %w", d.Collection, d.ID, err)
		}
	}
	return docstorepkg.Record{
		ID:        d.ID,
		Fields:    normalizeFields(fields),
		CreatedAt: d.CreatedAt,
		UpdatedAt: d.UpdatedAt,
	}, nil
}

func (c *PostgresClient) Create(ctx context.Context, collection string, fields docstorepkg.Fields) (string, error) {
	id := uuid.NewString()
	if err := docstorepkg.ValidatePath(collection, id); err != nil {
		return "", err
	}
	data, err := encodeFields(fields)
	if err != nil {
		return "", err
	}

	now := time.Now().UTC()
	document := Document{
		Collection: collection,
		ID:         id,
		Fields:     data,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	err = c.database.WithContext(ctx).Create(&document).Error
	if err != nil {
		return "", err
	}

	c.changed(ctx, collection)
	return id, nil
}

// Put writes the document under a known id, replacing a live one and reviving a
// deleted one with a fresh creation time.
func (c *PostgresClient) Put(ctx context.Context, collection string, id string, fields docstorepkg.Fields) error {
	if err := docstorepkg.ValidatePath(collection, id); err != nil {
		return err
	}
	data, err := encodeFields(fields)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	document := Document{
		Collection: collection,
		ID:         id,
		Fields:     data,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	err = c.database.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "collection"}, {Name: "id"}},
			DoUpdates: clause.Assignments(map[string]any{
				"fields":     gorm.Expr("excluded.fields"),
				"updated_at": gorm.Expr("excluded.updated_at"),
				"created_at": gorm.Expr("CASE WHEN document.deleted_at IS NULL THEN document.created_at ELSE excluded.created_at END"),
				"deleted_at": nil,
			}),
		}).
		Create(&document).Error
	if err != nil {
		return err
	}

	c.changed(ctx, collection)
	return nil
}

func (c *PostgresClient) Get(ctx context.Context, collection string, id string) (docstorepkg.Record, error) {
	var document Document
	err := c.database.WithContext(ctx).
		Where("collection = ? AND id = ?", collection, id).
		First(&document).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return docstorepkg.Record{}, fmt.Errorf("%w: %s/%s", docstorepkg.ErrNotFound, collection, id)
	}
	if err != nil {
		return docstorepkg.Record{}, err
	}
	return document.Record()
}

// Update merges fields into the document at the top level.
func (c *PostgresClient) Update(ctx context.Context, collection string, id string, fields docstorepkg.Fields) error {
	data, err := encodeFields(fields)
	if err != nil {
		return err
	}
	return c.update(ctx, collection, id, gorm.Expr("fields || ?::jsonb", data))
}

func (c *PostgresClient) Delete(ctx context.Context, collection string, id string) error {
	tx := c.database.WithContext(ctx).
		Where("collection = ? AND id = ?", collection, id).
		Delete(&Document{})
	if tx.Error != nil {
		return tx.Error
	}
	if tx.RowsAffected == 0 {
		return fmt.Errorf("%w: %s/%s", docstorepkg.ErrNotFound, collection, id)
	}

	c.changed(ctx, collection)
	return nil
}

// Increment adds delta in one statement, so concurrent writers never lose updates.
func (c *PostgresClient) Increment(ctx context.Context, collection string, id string, field string, delta int64) error {
	return c.update(ctx, collection, id, gorm.Expr(
		"jsonb_set(fields, ARRAY[?::text], to_jsonb(COALESCE((fields->>?)::bigint, 0) + ?::bigint))",
		field, field, delta,
	))
}

func (c *PostgresClient) AddToSet(ctx context.Context, collection string, id string, field string, value string) (bool, error) {
	tx := c.database.WithContext(ctx).
		Model(&Document{}).
		Where("collection = ? AND id = ?", collection, id).
		Where("NOT (COALESCE(fields->?, '[]'::jsonb) @> jsonb_build_array(?::text))", field, value).
		Updates(map[string]any{
			"fields": gorm.Expr(
				"jsonb_set(fields, ARRAY[?::text], COALESCE(fields->?, '[]'::jsonb) || jsonb_build_array(?::text))",
				field, field, value,
			),
			"updated_at": time.Now().UTC(),
		})
	return c.setChanged(ctx, collection, id, tx)
}

func (c *PostgresClient) RemoveFromSet(ctx context.Context, collection string, id string, field string, value string) (bool, error) {
	tx := c.database.WithContext(ctx).
		Model(&Document{}).
		Where("collection = ? AND id = ?", collection, id).
		Where("COALESCE(fields->?, '[]'::jsonb) @> jsonb_build_array(?::text)", field, value).
		Updates(map[string]any{
			"fields": gorm.Expr(
				"jsonb_set(fields, ARRAY[?::text], COALESCE((SELECT jsonb_agg(member) FROM jsonb_array_elements(fields->?) AS member WHERE member <> to_jsonb(?::text)), '[]'::jsonb))",
				field, field, value,
			),
			"updated_at": time.Now().UTC(),
		})
	return c.setChanged(ctx, collection, id, tx)
}

// Query filters in SQL and orders in memory, matching the in-memory store exactly.
func (c *PostgresClient) Query(ctx context.Context, collection string, query docstorepkg.Query) ([]docstorepkg.Record, error) {
	if collection == "" {
		return nil, fmt.Errorf("%w: empty collection", docstorepkg.ErrInvalidArgument)
	}

	tx := c.database.WithContext(ctx).Where("collection = ?", collection)
	for _, filter := range query.Filters {
		if filter.Value == nil {
			tx = tx.Where("((fields->?) IS NULL OR fields->? = 'null'::jsonb)", filter.Field, filter.Field)
			continue
		}
		containment, err := json.Marshal(map[string]any{filter.Field: filter.Value})
		if err != nil {
			return nil, fmt.Errorf("%w: %v", docstorepkg.ErrInvalidArgument, err)
		}
		tx = tx.Where("fields @> ?::jsonb", string(containment))
	}

	switch query.OrderBy {
	case "", docstorepkg.OrderByCreatedAt:
		tx = tx.Order(clause.OrderByColumn{Column: clause.Column{Name: "created_at"}, Desc: query.Descending})
		if query.Limit > 0 {
			tx = tx.Limit(query.Limit)
		}
	default:
		tx = tx.Order(clause.OrderByColumn{Column: clause.Column{Name: "created_at"}})
	}
	tx = tx.Order(clause.OrderByColumn{Column: clause.Column{Name: "id"}})

	var documents []Document
	if err := tx.Find(&documents).Error; err != nil {
		return nil, err
	}

	records := make([]docstorepkg.Record, 0, len(documents))
	for _, document := range documents {
		record, err := document.Record()
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}
	return query.Apply(records), nil
}

func (c *PostgresClient) Subscribe(ctx context.Context, collection string, query docstorepkg.Query) (*docstorepkg.Subscription, error) {
	if collection == "" {
		return nil, fmt.Errorf("%w: empty collection", docstorepkg.ErrInvalidArgument)
	}
	return c.hub.Watch(ctx, collection, query, c.fetcher(collection))
}

func (c *PostgresClient) update(ctx context.Context, collection string, id string, fields clause.Expr) error {
	tx := c.database.WithContext(ctx).
		Model(&Document{}).
		Where("collection = ? AND id = ?", collection, id).
		Updates(map[string]any{
			"fields":     fields,
			"updated_at": time.Now().UTC(),
		})
	if tx.Error != nil {
		return tx.Error
	}
	if tx.RowsAffected == 0 {
		return fmt.Errorf("%w: %s/%s", docstorepkg.ErrNotFound, collection, id)
	}

	c.changed(ctx, collection)
	return nil
}

// setChanged tells a no-op set update apart from a missing document.
func (c *PostgresClient) setChanged(ctx context.Context, collection string, id string, tx *gorm.DB) (bool, error) {
	if tx.Error != nil {
		return false, tx.Error
	}
	if tx.RowsAffected == 0 {
		_, err := c.Get(ctx, collection, id)
		return false, err
	}

	c.changed(ctx, collection)
	return true, nil
}

func encodeFields(fields docstorepkg.Fields) (string, error) {
	if fields == nil {
		fields = docstorepkg.Fields{}
	}
	data, err := json.Marshal(fields)
	if err != nil {
		return "", fmt.Errorf("%w: %v", docstorepkg.ErrInvalidArgument, err)
	}
	return string(data), nil
}

// normalizeFields turns decoded json.Number values into int64 where they are integral
// and float64 otherwise.
func normalizeFields(fields docstorepkg.Fields) docstorepkg.Fields {
	for key, value := range fields {
		fields[key] = normalizeValue(value)
	}
	return fields
}

func normalizeValue(value any) any {
	switch v := value.(type) {
	case json.Number:
		if i, err := v.Int64(); err == nil {
			return i
		}
		f, _ := v.Float64()
		return f
	case []any:
		for i := range v {
			v[i] = normalizeValue(v[i])
		}
		return v
	case map[string]any:
		for key := range v {
			v[key] = normalizeValue(v[key])
		}
		return v
	}
	return value
}
