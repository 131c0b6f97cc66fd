package crud

import (
	"context"
	"database/sql"
	"fmt"
	"reflect"
	"strings"

	"go.uber.org/zap"

	"github.com/conduit-lang/recordkit/internal/orm/async"
	"github.com/conduit-lang/recordkit/internal/orm/dialect"
	"github.com/conduit-lang/recordkit/internal/orm/mapper"
	"github.com/conduit-lang/recordkit/internal/orm/schema"
)

// writeSet holds the bound values of one entity, captured when the write is
// scheduled
type writeSet struct {
	columns []string
	args    []interface{}
}

// extract binds every data column followed by every foreign key column.
// Related entities contribute only their identity.
func extract(desc *schema.EntityDescriptor, entity reflect.Value) (writeSet, error) {
	var ws writeSet

	for _, col := range desc.DataColumns() {
		value, err := mapper.BindValue(col, entity.FieldByIndex(col.Index))
		if err != nil {
			return ws, fmt.Errorf("column %s: %w", col.Name, err)
		}
		ws.columns = append(ws.columns, col.Name)
		ws.args = append(ws.args, value)
	}

	for _, fk := range desc.ForeignKeys {
		value, err := mapper.ForeignKeyValue(fk, entity)
		if err != nil {
			return ws, err
		}
		ws.columns = append(ws.columns, fk.Column)
		ws.args = append(ws.args, value)
	}

	return ws, nil
}

// Save inserts entity when its identity is unset and updates the row with
// its identity otherwise. The handle resolves to entity, with the generated
// identity stored on insert.
//
// A plain integer identity of zero always means "new": an entity whose row
// really has identity zero cannot be updated through Save. Pointer identities
// do not have this limitation.
func Save[T any](ctx context.Context, e *Engine, entity *T) *async.Handle[*T] {
	if entity == nil {
		return async.Failed[*T](&WriteError{Op: OperationCreate, Entity: typeOf[T]().Name(), Err: fmt.Errorf("nil entity")})
	}

	desc, err := e.describe(typeOf[T]())
	if err != nil {
		return async.Failed[*T](err)
	}

	v := reflect.ValueOf(entity).Elem()
	id, exists := mapper.IdentityValue(desc, v)
	op := OperationCreate
	if exists {
		op = OperationUpdate
	}

	ws, err := extract(desc, v)
	if err != nil {
		return async.Failed[*T](&WriteError{Op: op, Entity: desc.Name, Err: err})
	}

	return submit(ctx, e, op, desc, func(ctx context.Context) (*T, error) {
		if exists {
			if err := e.update(ctx, desc, id, ws); err != nil {
				return nil, err
			}
			return entity, nil
		}

		newID, err := e.insert(ctx, desc, ws)
		if err != nil {
			return nil, err
		}
		mapper.SetIdentity(desc, v, newID)
		return entity, nil
	})
}

// insertSQL renders the INSERT for ws, with a RETURNING clause on dialects
// that report generated identities that way
func insertSQL(d dialect.Dialect, desc *schema.EntityDescriptor, ws writeSet) string {
	var query string
	if len(ws.columns) == 0 {
		query = d.EmptyInsert(desc.Table)
	} else {
		query = fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
			desc.Table,
			strings.Join(ws.columns, ", "),
			strings.Join(dialect.Placeholders(d, 1, len(ws.columns)), ", "))
	}

	if d.ReturningIdentity() {
		query += " RETURNING " + desc.Identity.Name
	}
	return query
}

// insert writes a new row and returns its generated identity
func (e *Engine) insert(ctx context.Context, desc *schema.EntityDescriptor, ws writeSet) (int64, error) {
	query := insertSQL(e.dialect, desc, ws)
	e.logger.Debug("insert", zap.String("table", desc.Table), zap.String("statement", query))

	var id int64
	err := e.pool.WithConn(ctx, func(conn *sql.Conn) error {
		if e.dialect.ReturningIdentity() {
			return conn.QueryRowContext(ctx, query, ws.args...).Scan(&id)
		}

		result, err := conn.ExecContext(ctx, query, ws.args...)
		if err != nil {
			return err
		}
		id, err = result.LastInsertId()
		return err
	})
	if err != nil {
		return 0, &WriteError{Op: OperationCreate, Entity: desc.Name, Err: ConvertDBError(e.dialect, err)}
	}

	return id, nil
}
