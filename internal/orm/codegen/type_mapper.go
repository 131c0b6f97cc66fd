// Package codegen provides code generation for database schema DDL.
// It transforms entity descriptors into CREATE TABLE, ALTER TABLE and
// CREATE INDEX statements for a dialect.
package codegen

import (
	"fmt"

	"github.com/conduit-lang/recordkit/internal/orm/dialect"
	"github.com/conduit-lang/recordkit/internal/orm/schema"
)

// TypeMapper maps descriptor columns to dialect column types
type TypeMapper struct {
	dialect dialect.Dialect
}

// NewTypeMapper creates a new TypeMapper
func NewTypeMapper(d dialect.Dialect) *TypeMapper {
	return &TypeMapper{dialect: d}
}

// MapColumn returns the column type of a plain column. Identity columns get
// the dialect's full auto-increment definition. Adapted columns use the
// adapter's storage type.
func (tm *TypeMapper) MapColumn(col *schema.ColumnDescriptor) (string, error) {
	if col == nil {
		return "", fmt.Errorf("column descriptor cannot be nil")
	}
	if col.Identity {
		return tm.dialect.IdentityDefinition(col.Type), nil
	}
	return tm.dialect.ColumnType(col.StorageType(), col.Length), nil
}

// MapForeignKey returns the column type of a foreign key column, which
// matches the referenced identity's plain integer type
func (tm *TypeMapper) MapForeignKey(fk *schema.ForeignKeyDescriptor) (string, error) {
	if fk == nil || fk.Target == nil || fk.Target.Identity == nil {
		return "", fmt.Errorf("foreign key has no resolved target identity")
	}
	return tm.dialect.ColumnType(fk.StorageType(), 0), nil
}

// MapNullability returns the NOT NULL constraint for required columns, or
// an empty string
func (tm *TypeMapper) MapNullability(nullable bool) string {
	if nullable {
		return ""
	}
	return "NOT NULL"
}
