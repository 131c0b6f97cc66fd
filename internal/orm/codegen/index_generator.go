package codegen

import (
	"fmt"
)

// IndexGenerator generates CREATE INDEX statements
type IndexGenerator struct{}

// NewIndexGenerator creates a new index generator
func NewIndexGenerator() *IndexGenerator {
	return &IndexGenerator{}
}

// UniqueIndexName returns the name used for the unique index on a column
func UniqueIndexName(table, column string) string {
	return fmt.Sprintf("ux_%s_%s", table, column)
}

// GenerateUniqueIndex enforces uniqueness on a column appended by ALTER TABLE
func (g *IndexGenerator) GenerateUniqueIndex(table, column string) string {
	return fmt.Sprintf("CREATE UNIQUE INDEX %s ON %s (%s)", UniqueIndexName(table, column), table, column)
}
