package migrate

import (
	"fmt"

	"github.com/conduit-lang/recordkit/internal/orm/codegen"
	"github.com/conduit-lang/recordkit/internal/orm/dialect"
	"github.com/conduit-lang/recordkit/internal/orm/schema"
)

// Generator turns migration plans into DDL statements
type Generator struct {
	ddl     *codegen.DDLGenerator
	indexes *codegen.IndexGenerator
}

// NewGenerator creates a new statement generator for a dialect
func NewGenerator(d dialect.Dialect) *Generator {
	return &Generator{
		ddl:     codegen.NewDDLGenerator(d),
		indexes: codegen.NewIndexGenerator(),
	}
}

// Generate fills plan.Statements and returns them. A create plan yields one
// CREATE TABLE; an append plan yields one ALTER TABLE per missing column
// followed by the unique indexes.
func (g *Generator) Generate(desc *schema.EntityDescriptor, plan *MigrationPlan) ([]string, error) {
	var statements []string

	if plan.Create {
		stmt, err := g.ddl.GenerateCreateTable(desc)
		if err != nil {
			return nil, fmt.Errorf("failed to generate CREATE TABLE %s: %w", desc.Table, err)
		}
		statements = append(statements, stmt)
	} else {
		for _, column := range plan.Columns {
			stmt, err := g.ddl.GenerateAddColumn(desc, column)
			if err != nil {
				return nil, fmt.Errorf("failed to generate ALTER TABLE %s: %w", desc.Table, err)
			}
			statements = append(statements, stmt)
		}
		for _, column := range plan.UniqueIndexes {
			statements = append(statements, g.indexes.GenerateUniqueIndex(desc.Table, column))
		}
	}

	plan.Statements = statements
	return statements, nil
}
