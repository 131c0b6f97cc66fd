package codegen

import (
	"fmt"
	"strings"

	"github.com/conduit-lang/recordkit/internal/orm/dialect"
	"github.com/conduit-lang/recordkit/internal/orm/schema"
)

// DDLGenerator generates DDL statements from entity descriptors. Identifiers
// are emitted unquoted; the registry only accepts [A-Za-z_][A-Za-z0-9_]*.
type DDLGenerator struct {
	typeMapper *TypeMapper
}

// NewDDLGenerator creates a new DDL generator for a dialect
func NewDDLGenerator(d dialect.Dialect) *DDLGenerator {
	return &DDLGenerator{
		typeMapper: NewTypeMapper(d),
	}
}

// GenerateCreateTable generates a single-line CREATE TABLE statement with
// every column followed by the foreign key constraints:
//
//	CREATE TABLE players (id INT PRIMARY KEY AUTO_INCREMENT, name VARCHAR(16) NOT NULL UNIQUE,
//	    guild_id BIGINT, FOREIGN KEY (guild_id) REFERENCES guilds(id))
func (g *DDLGenerator) GenerateCreateTable(desc *schema.EntityDescriptor) (string, error) {
	if desc == nil {
		return "", fmt.Errorf("entity descriptor cannot be nil")
	}
	if !schema.IsValidIdentifier(desc.Table) {
		return "", fmt.Errorf("invalid table name %q", desc.Table)
	}

	defs := make([]string, 0, len(desc.Columns)+2*len(desc.ForeignKeys))
	for _, col := range desc.Columns {
		def, err := g.generateColumnDefinition(col)
		if err != nil {
			return "", fmt.Errorf("column %s: %w", col.Name, err)
		}
		defs = append(defs, def)
	}

	for _, fk := range desc.ForeignKeys {
		def, err := g.generateForeignKeyColumn(fk)
		if err != nil {
			return "", fmt.Errorf("column %s: %w", fk.Column, err)
		}
		defs = append(defs, def)
	}

	for _, fk := range desc.ForeignKeys {
		defs = append(defs, GenerateForeignKeyConstraint(fk))
	}

	return fmt.Sprintf("CREATE TABLE %s (%s)", desc.Table, strings.Join(defs, ", ")), nil
}

// GenerateAddColumn generates an ALTER TABLE ADD COLUMN statement for one
// column of the descriptor. Appended columns carry the type only: rows that
// already exist could not satisfy NOT NULL, and uniqueness is added with a
// separate index.
func (g *DDLGenerator) GenerateAddColumn(desc *schema.EntityDescriptor, column string) (string, error) {
	if desc == nil {
		return "", fmt.Errorf("entity descriptor cannot be nil")
	}

	colType, err := g.ColumnType(desc, column)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s %s", desc.Table, column, colType), nil
}

// ColumnType resolves the bare column type of a plain or foreign key column
func (g *DDLGenerator) ColumnType(desc *schema.EntityDescriptor, column string) (string, error) {
	if col, ok := desc.Column(column); ok {
		if col.Identity {
			return g.typeMapper.dialect.ColumnType(col.Type, 0), nil
		}
		return g.typeMapper.MapColumn(col)
	}
	for _, fk := range desc.ForeignKeys {
		if strings.EqualFold(fk.Column, column) {
			return g.typeMapper.MapForeignKey(fk)
		}
	}
	return "", fmt.Errorf("table %s has no column %s", desc.Table, column)
}

// generateColumnDefinition generates a column definition for a plain column
func (g *DDLGenerator) generateColumnDefinition(col *schema.ColumnDescriptor) (string, error) {
	colType, err := g.typeMapper.MapColumn(col)
	if err != nil {
		return "", err
	}

	parts := []string{col.Name, colType}
	if col.Identity {
		return strings.Join(parts, " "), nil
	}
	if null := g.typeMapper.MapNullability(col.Nullable); null != "" {
		parts = append(parts, null)
	}
	if col.Unique {
		parts = append(parts, "UNIQUE")
	}
	return strings.Join(parts, " "), nil
}

func (g *DDLGenerator) generateForeignKeyColumn(fk *schema.ForeignKeyDescriptor) (string, error) {
	colType, err := g.typeMapper.MapForeignKey(fk)
	if err != nil {
		return "", err
	}

	parts := []string{fk.Column, colType}
	if null := g.typeMapper.MapNullability(fk.Nullable); null != "" {
		parts = append(parts, null)
	}
	return strings.Join(parts, " "), nil
}

// GenerateForeignKeyConstraint returns the table-level constraint referencing
// the target's identity column
func GenerateForeignKeyConstraint(fk *schema.ForeignKeyDescriptor) string {
	return fmt.Sprintf("FOREIGN KEY (%s) REFERENCES %s(%s)", fk.Column, fk.RefTable(), fk.RefColumn())
}
