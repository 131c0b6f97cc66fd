package recordkit

import "context"

// Record binds one entity to a runtime so it can save and delete itself
type Record[T any] struct {
	rt     *Runtime
	entity *T
}

// Bind returns the active record of entity
func Bind[T any](rt *Runtime, entity *T) *Record[T] {
	return &Record[T]{rt: rt, entity: entity}
}

// Entity returns the bound entity
func (r *Record[T]) Entity() *T {
	return r.entity
}

// Save inserts or updates the entity
func (r *Record[T]) Save(ctx context.Context) *Handle[*T] {
	return Save(ctx, r.rt, r.entity)
}

// Delete removes the entity's row
func (r *Record[T]) Delete(ctx context.Context) *Handle[struct{}] {
	return Delete(ctx, r.rt, r.entity)
}
