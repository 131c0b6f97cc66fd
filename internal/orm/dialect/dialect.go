// Package dialect isolates the SQL differences between the supported
// database engines: driver names, connection strings, placeholders, catalog
// queries, column types and constraint error classification.
package dialect

import (
	"fmt"
	"strings"

	"github.com/conduit-lang/recordkit/internal/orm/schema"
)

// Violation classifies a constraint failure reported by a driver
type Violation int

const (
	// ViolationNone means the error is not a recognized constraint failure
	ViolationNone Violation = iota
	ViolationUnique
	ViolationForeignKey
	ViolationNotNull
)

// String returns the string representation of the violation
func (v Violation) String() string {
	switch v {
	case ViolationUnique:
		return "unique"
	case ViolationForeignKey:
		return "foreign_key"
	case ViolationNotNull:
		return "not_null"
	default:
		return "none"
	}
}

// ConnParams are the connection settings every dialect turns into a DSN
type ConnParams struct {
	Host     string
	Port     int
	Database string
	User     string
	Password string
	Params   map[string]string
}

// Dialect describes one database engine
type Dialect interface {
	// Name is the canonical dialect name (mysql, postgres, sqlite3)
	Name() string
	// DriverName is the database/sql driver to open
	DriverName() string
	DSN(p ConnParams) string

	// Placeholder returns the bind marker for the n-th (1-based) parameter
	Placeholder(n int) string

	// ColumnsQuery lists (column name, type) for the table bound to its
	// single parameter, in ordinal order
	ColumnsQuery() string
	// TablesQuery lists the base tables of the current database
	TablesQuery() string

	// ColumnType returns the column type for a semantic type. length applies
	// to string-like types, 0 means the dialect default.
	ColumnType(t schema.SemanticType, length int) string
	// IdentityDefinition returns the full type and constraint text of an
	// auto-assigned identity column
	IdentityDefinition(t schema.SemanticType) string

	// ReturningIdentity reports whether inserts read the generated identity
	// through a RETURNING clause instead of LastInsertId
	ReturningIdentity() bool
	// EmptyInsert returns the INSERT statement for a row with no data columns
	EmptyInsert(table string) string

	// Classify maps a driver error to a constraint violation
	Classify(err error) Violation
}

// DefaultStringLength is used for VARCHAR columns without an explicit size
const DefaultStringLength = 255

// ForDriver returns the dialect serving a database/sql driver name
func ForDriver(driver string) (Dialect, error) {
	switch strings.ToLower(driver) {
	case "mysql":
		return MySQL{}, nil
	case "postgres", "postgresql", "lib/pq":
		return Postgres{Driver: "postgres"}, nil
	case "pgx":
		return Postgres{Driver: "pgx"}, nil
	case "sqlite3", "sqlite":
		return SQLite{}, nil
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}
}

// Supported lists the driver names accepted by ForDriver
func Supported() []string {
	return []string{"mysql", "postgres", "pgx", "sqlite3"}
}

// Placeholders returns n bind markers starting at position start
func Placeholders(d Dialect, start, n int) []string {
	marks := make([]string, n)
	for i := range marks {
		marks[i] = d.Placeholder(start + i)
	}
	return marks
}

func varchar(length int) string {
	if length <= 0 {
		length = DefaultStringLength
	}
	return fmt.Sprintf("VARCHAR(%d)", length)
}
