package recordkit

import (
	"context"

	"github.com/conduit-lang/recordkit/internal/orm/crud"
	"github.com/conduit-lang/recordkit/internal/orm/query"
)

// Repository groups the operations of one model type
type Repository[T any] struct {
	rt *Runtime
}

// NewRepository returns the repository of T
func NewRepository[T any](rt *Runtime) *Repository[T] {
	return &Repository[T]{rt: rt}
}

// Save inserts or updates entity
func (r *Repository[T]) Save(ctx context.Context, entity *T) *Handle[*T] {
	return Save(ctx, r.rt, entity)
}

// Delete removes the row of entity
func (r *Repository[T]) Delete(ctx context.Context, entity *T) *Handle[struct{}] {
	return Delete(ctx, r.rt, entity)
}

// DeleteByID removes the row with identity id
func (r *Repository[T]) DeleteByID(ctx context.Context, id int64) *Handle[struct{}] {
	return &Handle[struct{}]{h: crud.DeleteByID[T](ctx, r.rt.engine, id)}
}

// FindByID loads the entity with identity id
func (r *Repository[T]) FindByID(ctx context.Context, id int64) (*T, error) {
	return FindByID[T](ctx, r.rt, id)
}

// Find starts a query
func (r *Repository[T]) Find() *query.Builder[T] {
	return Find[T](r.rt)
}

// Count returns the number of rows
func (r *Repository[T]) Count(ctx context.Context) (int64, error) {
	return Find[T](r.rt).Count(ctx)
}
