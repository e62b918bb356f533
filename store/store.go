// Package store is the local cache of Facebook entities. Posts, comments and
// messages are keyed by their Facebook id and written through an atomic
// insert-or-overwrite that reports whether the row was newly created.
package store

import (
	"context"

	"github.com/Luismorlan/pagemux/apperr"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type Store struct {
	db *gorm.DB
}

func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

func (s *Store) DB() *gorm.DB {
	return s.db
}

func NewId() string {
	return uuid.New().String()
}

// insertOrOverwrite writes row keyed by keyColumn = key. The INSERT ... ON
// CONFLICT DO NOTHING statement is the single arbiter of "new": among
// concurrent writers of the same key exactly one sees a created row. Everyone
// else overwrites the given columns and gets the stored row back in *row, with
// its original Id.
func insertOrOverwrite[T any](ctx context.Context, db *gorm.DB, row *T, keyColumn, key string, overwrite map[string]interface{}) (bool, error) {
	if key == "" {
		return false, apperr.Validation("empty %s", keyColumn)
	}
	res := db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: keyColumn}}, DoNothing: true}).
		Create(row)
	if res.Error != nil {
		return false, errors.Wrapf(res.Error, "fail to insert %s %s", keyColumn, key)
	}
	if res.RowsAffected > 0 {
		return true, nil
	}

	if len(overwrite) > 0 {
		if err := db.WithContext(ctx).Model(new(T)).Where(keyColumn+" = ?", key).Updates(overwrite).Error; err != nil {
			return false, errors.Wrapf(err, "fail to overwrite %s %s", keyColumn, key)
		}
	}
	var stored T
	if err := db.WithContext(ctx).Where(keyColumn+" = ?", key).First(&stored).Error; err != nil {
		return false, errors.Wrapf(err, "fail to reload %s %s", keyColumn, key)
	}
	*row = stored
	return false, nil
}

// first loads a single row matching query, mapping a missing row to a
// NotFound error named after what.
func first[T any](ctx context.Context, db *gorm.DB, what string, query string, args ...interface{}) (*T, error) {
	var row T
	err := db.WithContext(ctx).Where(query, args...).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.NotFound("%s not found", what)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "fail to load %s", what)
	}
	return &row, nil
}

// Page is one page of a listing together with the total size of the scope.
type Page[T any] struct {
	Items []T
	Total int64
}

func listPage[T any](ctx context.Context, db *gorm.DB, order string, offset, limit int, query string, args ...interface{}) (Page[T], error) {
	page := Page[T]{Items: []T{}}
	scope := db.WithContext(ctx).Model(new(T)).Where(query, args...)
	if err := scope.Count(&page.Total).Error; err != nil {
		return page, errors.Wrap(err, "fail to count scope")
	}
	if page.Total == 0 {
		return page, nil
	}
	err := db.WithContext(ctx).Where(query, args...).
		Order(order).
		Offset(offset).
		Limit(limit).
		Find(&page.Items).Error
	if err != nil {
		return page, errors.Wrap(err, "fail to list scope")
	}
	return page, nil
}
