package migrate

import (
	"github.com/conduit-lang/recordkit/internal/orm/schema"
)

// MigrationPlan is the additive change set for one table. It never contains
// drops, renames or type changes.
type MigrationPlan struct {
	Table string
	// Create is set when the table does not exist yet. Columns then lists
	// every desired column; otherwise only the missing ones.
	Create  bool
	Columns []string
	// ForeignKeys are the foreign key columns constrained by the CREATE
	// statement. Appended foreign key columns are not constrained.
	ForeignKeys []string
	// UniqueIndexes are appended columns that need a separate unique index
	UniqueIndexes []string
	// Statements is filled in by the generator
	Statements []string
}

// Empty reports whether the plan changes nothing
func (p *MigrationPlan) Empty() bool {
	return !p.Create && len(p.Columns) == 0
}

// Differ compares descriptors with live snapshots
type Differ struct{}

// NewDiffer creates a new differ
func NewDiffer() *Differ {
	return &Differ{}
}

// Diff computes the plan taking a table from snap to desc. Column names are
// compared case-insensitively; plan columns follow the descriptor order.
func (d *Differ) Diff(desc *schema.EntityDescriptor, snap *SchemaSnapshot) *MigrationPlan {
	plan := &MigrationPlan{Table: desc.Table}

	if snap == nil || !snap.Exists() {
		plan.Create = true
		plan.Columns = desc.ColumnNames()
		for _, fk := range desc.ForeignKeys {
			plan.ForeignKeys = append(plan.ForeignKeys, fk.Column)
		}
		return plan
	}

	for _, name := range desc.ColumnNames() {
		if snap.Has(name) {
			continue
		}
		plan.Columns = append(plan.Columns, name)
		if col, ok := desc.Column(name); ok && col.Unique && !col.Identity {
			plan.UniqueIndexes = append(plan.UniqueIndexes, name)
		}
	}

	return plan
}
