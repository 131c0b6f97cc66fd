// Package migrate synchronizes the live database schema with entity
// descriptors. Synchronization is additive: missing tables are created and
// missing columns appended; nothing is ever dropped, renamed or retyped.
package migrate

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/conduit-lang/recordkit/internal/orm/dialect"
)

// DB is the subset of *sql.DB used by the synchronizer
type DB interface {
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

// SchemaSnapshot is the live column catalog of one table. It is read fresh
// on every synchronization pass and never persisted.
type SchemaSnapshot struct {
	Table   string
	Columns map[string]string // lower-cased column name -> database type
	Order   []string          // column names as reported, in ordinal order
}

// Exists reports whether the table has any columns, i.e. whether it exists
func (s *SchemaSnapshot) Exists() bool {
	return len(s.Columns) > 0
}

// Has reports whether the table has a column, ignoring case
func (s *SchemaSnapshot) Has(column string) bool {
	_, ok := s.Columns[strings.ToLower(column)]
	return ok
}

// Type returns the database-reported type of a column
func (s *SchemaSnapshot) Type(column string) string {
	return s.Columns[strings.ToLower(column)]
}

// Inspector reads table catalogs through the dialect's introspection queries
type Inspector struct {
	db      DB
	dialect dialect.Dialect
}

// NewInspector creates a new catalog inspector
func NewInspector(db DB, d dialect.Dialect) *Inspector {
	return &Inspector{db: db, dialect: d}
}

// Snapshot reads the columns of a table. A missing table yields an empty
// snapshot, not an error.
func (i *Inspector) Snapshot(ctx context.Context, table string) (*SchemaSnapshot, error) {
	rows, err := i.db.QueryContext(ctx, i.dialect.ColumnsQuery(), table)
	if err != nil {
		return nil, fmt.Errorf("failed to read columns of %s: %w", table, err)
	}
	defer rows.Close()

	snap := &SchemaSnapshot{
		Table:   table,
		Columns: make(map[string]string),
	}
	for rows.Next() {
		var name, colType string
		if err := rows.Scan(&name, &colType); err != nil {
			return nil, fmt.Errorf("failed to scan column of %s: %w", table, err)
		}
		snap.Columns[strings.ToLower(name)] = colType
		snap.Order = append(snap.Order, name)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read columns of %s: %w", table, err)
	}

	return snap, nil
}

// Tables lists the base tables of the current database
func (i *Inspector) Tables(ctx context.Context) ([]string, error) {
	rows, err := i.db.QueryContext(ctx, i.dialect.TablesQuery())
	if err != nil {
		return nil, fmt.Errorf("failed to list tables: %w", err)
	}
	defer rows.Close()

	var tables []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		tables = append(tables, name)
	}

	return tables, rows.Err()
}
