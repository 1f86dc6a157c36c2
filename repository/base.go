// Package repository provides data access layer implementations and interfaces for database operations
package repository

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
)

// BaseRepository provides common repository functionality with transaction support
type BaseRepository[T any, F any] struct {
	DB *gorm.DB
}

// NewBaseRepository creates a new base repository instance
func NewBaseRepository[T any, F any](db *gorm.DB) *BaseRepository[T, F] {
	return &BaseRepository[T, F]{
		DB: db,
	}
}

func txFrom(ctx context.Context) *gorm.DB {
	if tx, ok := ctx.Value(TxContextKey).(*gorm.DB); ok && tx != nil {
		return tx
	}
	return nil
}

// getDB returns the transaction carried by ctx, or the pool
func (r *BaseRepository[T, F]) getDB(ctx context.Context) *gorm.DB {
	if tx := txFrom(ctx); tx != nil {
		return tx.WithContext(ctx)
	}
	return r.DB.WithContext(ctx)
}

// write joins the caller's transaction when there is one and otherwise runs
// fn in a transaction of its own.
func (r *BaseRepository[T, F]) write(ctx context.Context, fn func(db *gorm.DB) error) error {
	if tx := txFrom(ctx); tx != nil {
		return fn(tx.WithContext(ctx))
	}
	return r.DB.WithContext(ctx).Transaction(fn)
}

// ByID returns the row with the given primary key, or nil
func (r *BaseRepository[T, F]) ByID(ctx context.Context, id uint) (*T, error) {
	row, err := first[T](r.getDB(ctx).Where("id = ?", id))
	if err != nil {
		return nil, fmt.Errorf("failed to find entity by ID %d: %w", id, err)
	}
	return row, nil
}

// first returns the first row matching query, or nil when there is none
func first[T any](query *gorm.DB) (*T, error) {
	var row T
	if err := query.First(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &row, nil
}

// Save inserts a new entity
func (r *BaseRepository[T, F]) Save(ctx context.Context, entity *T) error {
	return r.write(ctx, func(db *gorm.DB) error {
		if err := db.Create(entity).Error; err != nil {
			return fmt.Errorf("failed to save entity: %w", err)
		}
		return nil
	})
}

// SaveBatch inserts multiple entities in a single transaction
func (r *BaseRepository[T, F]) SaveBatch(ctx context.Context, entities []*T) error {
	if len(entities) == 0 {
		return nil
	}
	return r.write(ctx, func(db *gorm.DB) error {
		if err := db.CreateInBatches(entities, 100).Error; err != nil {
			return fmt.Errorf("failed to save batch entities: %w", err)
		}
		return nil
	})
}

// paginate applies ordering and paging the way every ByFilter does
func paginate(query *gorm.DB, orderBy string, limit, offset int) *gorm.DB {
	if orderBy != "" {
		query = query.Order(orderBy)
	}
	if limit > 0 {
		query = query.Limit(limit)
	}
	if offset > 0 {
		query = query.Offset(offset)
	}
	return query
}

// WithTransaction runs fn with a transaction stored in its context. Nested
// calls reuse the outer transaction; a panic inside fn rolls back and is
// returned as an error.
func WithTransaction(ctx context.Context, db *gorm.DB, fn func(context.Context) error) (err error) {
	if txFrom(ctx) != nil {
		return fn(ctx)
	}

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic in transaction: %v", r)
		}
	}()

	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(context.WithValue(ctx, TxContextKey, tx))
	})
}
