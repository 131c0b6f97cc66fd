package crud

import (
	"context"
	"database/sql"
	"fmt"
	"reflect"

	"go.uber.org/zap"

	"github.com/conduit-lang/recordkit/internal/orm/async"
	"github.com/conduit-lang/recordkit/internal/orm/mapper"
	"github.com/conduit-lang/recordkit/internal/orm/schema"
)

// Delete removes the row of entity. Deleting an entity without identity
// fails with ErrMissingIdentity; deleting a row that no longer exists
// succeeds.
func Delete[T any](ctx context.Context, e *Engine, entity *T) *async.Handle[struct{}] {
	if entity == nil {
		return async.Failed[struct{}](&WriteError{Op: OperationDelete, Entity: typeOf[T]().Name(), Err: fmt.Errorf("nil entity")})
	}

	desc, err := e.describe(typeOf[T]())
	if err != nil {
		return async.Failed[struct{}](err)
	}

	id, ok := mapper.IdentityValue(desc, reflect.ValueOf(entity).Elem())
	if !ok {
		return async.Failed[struct{}](&WriteError{Op: OperationDelete, Entity: desc.Name, Err: ErrMissingIdentity})
	}

	return e.deleteAsync(ctx, desc, id)
}

// DeleteByID removes the row of T with identity id
func DeleteByID[T any](ctx context.Context, e *Engine, id int64) *async.Handle[struct{}] {
	desc, err := e.describe(typeOf[T]())
	if err != nil {
		return async.Failed[struct{}](err)
	}
	return e.deleteAsync(ctx, desc, id)
}

func (e *Engine) deleteAsync(ctx context.Context, desc *schema.EntityDescriptor, id int64) *async.Handle[struct{}] {
	return submit(ctx, e, OperationDelete, desc, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, e.delete(ctx, desc, id)
	})
}

func (e *Engine) delete(ctx context.Context, desc *schema.EntityDescriptor, id int64) error {
	query := fmt.Sprintf("DELETE FROM %s WHERE %s = %s", desc.Table, desc.Identity.Name, e.dialect.Placeholder(1))
	e.logger.Debug("delete",
		zap.String("table", desc.Table),
		zap.String("statement", query),
		zap.Int64("id", id))

	err := e.pool.WithConn(ctx, func(conn *sql.Conn) error {
		_, err := conn.ExecContext(ctx, query, id)
		return err
	})
	if err != nil {
		return &WriteError{Op: OperationDelete, Entity: desc.Name, Err: ConvertDBError(e.dialect, err)}
	}
	return nil
}
