package crud

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/conduit-lang/recordkit/internal/orm/schema"
)

// updateSQL renders an UPDATE of every column in ws for one identity. The
// identity is the last parameter.
func (e *Engine) updateSQL(desc *schema.EntityDescriptor, ws writeSet) string {
	assignments := make([]string, len(ws.columns))
	for i, col := range ws.columns {
		assignments[i] = fmt.Sprintf("%s = %s", col, e.dialect.Placeholder(i+1))
	}

	return fmt.Sprintf("UPDATE %s SET %s WHERE %s = %s",
		desc.Table,
		strings.Join(assignments, ", "),
		desc.Identity.Name,
		e.dialect.Placeholder(len(ws.columns)+1))
}

// update rewrites the declared columns of the row with identity id. Other
// rows are never touched.
func (e *Engine) update(ctx context.Context, desc *schema.EntityDescriptor, id int64, ws writeSet) error {
	if len(ws.columns) == 0 {
		return nil
	}

	query := e.updateSQL(desc, ws)
	args := append(append([]interface{}{}, ws.args...), id)
	e.logger.Debug("update",
		zap.String("table", desc.Table),
		zap.String("statement", query),
		zap.Int64("id", id))

	err := e.pool.WithConn(ctx, func(conn *sql.Conn) error {
		_, err := conn.ExecContext(ctx, query, args...)
		return err
	})
	if err != nil {
		return &WriteError{Op: OperationUpdate, Entity: desc.Name, Err: ConvertDBError(e.dialect, err)}
	}
	return nil
}
