package recordkit

import (
	"context"

	"github.com/conduit-lang/recordkit/internal/orm/async"
	"github.com/conduit-lang/recordkit/internal/orm/crud"
	"github.com/conduit-lang/recordkit/internal/orm/mapper"
	"github.com/conduit-lang/recordkit/internal/orm/query"
	"github.com/conduit-lang/recordkit/internal/orm/schema"
)

// Adapter converts a native field type to a storage scalar and back
type Adapter = schema.Adapter

// NewAdapter builds an Adapter from a pair of conversion functions
func NewAdapter[N any, S any](toStorage func(N) (S, error), fromStorage func(S) (N, error)) (Adapter, error) {
	return schema.NewAdapter(toStorage, fromStorage)
}

// RelationMode controls how relation fields are populated on read
type RelationMode = mapper.RelationMode

const (
	RelationsNone      = mapper.RelationsNone
	RelationsReference = mapper.RelationsReference
	RelationsEager     = mapper.RelationsEager
)

// Operator is a comparison operator for Where
type Operator = query.Operator

const (
	OpEqual              = query.OpEqual
	OpNotEqual           = query.OpNotEqual
	OpGreaterThan        = query.OpGreaterThan
	OpGreaterThanOrEqual = query.OpGreaterThanOrEqual
	OpLessThan           = query.OpLessThan
	OpLessThanOrEqual    = query.OpLessThanOrEqual
)

// Direction is an ORDER BY direction
type Direction = query.Direction

const (
	Asc  = query.Asc
	Desc = query.Desc
)

// Op parses an operator symbol such as ">" or "<="
func Op(symbol string) Operator {
	return query.Op(symbol)
}

// Handle is the eventual result of a save or delete. Writes cannot be
// cancelled once scheduled.
type Handle[T any] struct {
	h *async.Handle[T]
}

// Done is closed once the write has completed
func (h *Handle[T]) Done() <-chan struct{} {
	return h.h.Done()
}

// Wait blocks until the write completes or ctx is done. Giving up on ctx
// does not stop the write.
func (h *Handle[T]) Wait(ctx context.Context) (T, error) {
	return h.h.Wait(ctx)
}

// Err returns the write error once completed, nil before
func (h *Handle[T]) Err() error {
	return h.h.Err()
}

// Save inserts entity when its identity is unset and updates its row
// otherwise. On insert the generated identity is stored in entity.
func Save[T any](ctx context.Context, rt *Runtime, entity *T) *Handle[*T] {
	return &Handle[*T]{h: crud.Save(ctx, rt.engine, entity)}
}

// Delete removes the row of entity
func Delete[T any](ctx context.Context, rt *Runtime, entity *T) *Handle[struct{}] {
	return &Handle[struct{}]{h: crud.Delete(ctx, rt.engine, entity)}
}

// FindByID loads the entity with identity id, or returns ErrNotFound
func FindByID[T any](ctx context.Context, rt *Runtime, id int64) (*T, error) {
	return crud.FindByID[T](ctx, rt.engine, id)
}

// Find starts a query over T
func Find[T any](rt *Runtime) *query.Builder[T] {
	return query.Find[T](rt.engine)
}
