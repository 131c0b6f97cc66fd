package crud

import (
	"context"
	"database/sql"
	"fmt"
	"reflect"
	"strings"

	"github.com/conduit-lang/recordkit/internal/orm/mapper"
	"github.com/conduit-lang/recordkit/internal/orm/schema"
)

// FindByID loads the entity of type T with identity id. It returns
// ErrNotFound when no row exists.
func FindByID[T any](ctx context.Context, e *Engine, id int64) (*T, error) {
	desc, err := e.describe(typeOf[T]())
	if err != nil {
		return nil, err
	}

	v, err := e.findByID(ctx, e.mapper, desc, id)
	if err != nil {
		return nil, err
	}
	if !v.IsValid() {
		return nil, ErrNotFound
	}
	return v.Interface().(*T), nil
}

// Resolve loads a related entity for eager relation mapping. Relations of
// the loaded entity are set as references.
func (e *Engine) Resolve(ctx context.Context, target *schema.EntityDescriptor, id int64) (reflect.Value, error) {
	return e.findByID(ctx, e.refs, target, id)
}

func (e *Engine) findByIDSQL(desc *schema.EntityDescriptor) string {
	return fmt.Sprintf("SELECT %s FROM %s WHERE %s = %s",
		strings.Join(desc.ColumnNames(), ", "),
		desc.Table,
		desc.Identity.Name,
		e.dialect.Placeholder(1))
}

// findByID returns an invalid Value when no row exists
func (e *Engine) findByID(ctx context.Context, m *mapper.Mapper, desc *schema.EntityDescriptor, id int64) (reflect.Value, error) {
	rows, err := e.query(ctx, e.findByIDSQL(desc), id)
	if err != nil {
		return reflect.Value{}, fmt.Errorf("failed to find %s %d: %w", desc.Name, id, err)
	}
	if len(rows) == 0 {
		return reflect.Value{}, nil
	}

	v, err := m.Map(ctx, rows[0], desc)
	if err != nil {
		return reflect.Value{}, err
	}
	return v, nil
}

// QueryEntities runs a SELECT and maps every row in result order
func (e *Engine) QueryEntities(ctx context.Context, desc *schema.EntityDescriptor, query string, args ...interface{}) ([]reflect.Value, error) {
	if err := e.checkAvailable(desc); err != nil {
		return nil, err
	}

	rows, err := e.query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query %s: %w", desc.Table, err)
	}

	results := make([]reflect.Value, 0, len(rows))
	for _, row := range rows {
		v, err := e.mapper.Map(ctx, row, desc)
		if err != nil {
			return nil, err
		}
		results = append(results, v)
	}
	return results, nil
}

// QueryCount runs a SELECT COUNT(*) and returns its single value
func (e *Engine) QueryCount(ctx context.Context, desc *schema.EntityDescriptor, query string, args ...interface{}) (int64, error) {
	if err := e.checkAvailable(desc); err != nil {
		return 0, err
	}

	var count int64
	err := e.pool.WithConn(ctx, func(conn *sql.Conn) error {
		return conn.QueryRowContext(ctx, query, args...).Scan(&count)
	})
	if err != nil {
		return 0, fmt.Errorf("failed to count %s: %w", desc.Table, ConvertDBError(e.dialect, err))
	}
	return count, nil
}

// query scans all rows on a scoped connection. Rows are mapped after the
// connection is released, so eager lookups never hold two connections.
func (e *Engine) query(ctx context.Context, query string, args ...interface{}) ([]mapper.Row, error) {
	var result []mapper.Row
	err := e.pool.WithConn(ctx, func(conn *sql.Conn) error {
		rows, err := conn.QueryContext(ctx, query, args...)
		if err != nil {
			return err
		}
		defer rows.Close()

		result, err = mapper.ScanRows(rows)
		return err
	})
	if err != nil {
		return nil, ConvertDBError(e.dialect, err)
	}
	return result, nil
}
