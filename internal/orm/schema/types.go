// Package schema derives persistence descriptors from tagged Go structs.
// A descriptor is built once per model type, cached for the lifetime of the
// registry and never modified afterwards; every other ORM component receives
// read-only references to it.
package schema

import (
	"fmt"
	"reflect"
	"strings"
)

// SemanticType is the storage-independent type of a column
type SemanticType int

const (
	TypeInteger SemanticType = iota
	TypeBigInteger
	TypeFloat
	TypeBoolean
	TypeString
	TypeUUID
	TypeTimestamp
	TypeEnum
	TypeList
	TypeCustom
)

// String returns the string representation of the semantic type
func (t SemanticType) String() string {
	switch t {
	case TypeInteger:
		return "integer"
	case TypeBigInteger:
		return "bigint"
	case TypeFloat:
		return "float"
	case TypeBoolean:
		return "bool"
	case TypeString:
		return "string"
	case TypeUUID:
		return "uuid"
	case TypeTimestamp:
		return "timestamp"
	case TypeEnum:
		return "enum"
	case TypeList:
		return "list"
	case TypeCustom:
		return "custom"
	default:
		return "unknown"
	}
}

// IsInteger reports whether the type can back an auto-increment identity
func (t SemanticType) IsInteger() bool {
	return t == TypeInteger || t == TypeBigInteger
}

// ColumnDescriptor describes a single mapped column
type ColumnDescriptor struct {
	Name     string       // column name in the table
	Field    string       // Go struct field name
	Type     SemanticType // semantic type used for DDL and coercion
	GoType   reflect.Type // declared Go type of the field
	Nullable bool
	Unique   bool
	Identity bool
	Length   int // VARCHAR length, 0 means dialect default

	// Adapter converts between the native field value and a storage scalar.
	// AdapterName is the name it was registered under.
	Adapter     Adapter
	AdapterName string

	// Index is the reflect field index path used to read and write the field.
	Index []int
}

// StorageType returns the semantic type written to the database. For adapted
// columns it is the adapter's storage type.
func (c *ColumnDescriptor) StorageType() SemanticType {
	if c.Adapter != nil {
		return c.Adapter.StorageType()
	}
	return c.Type
}

// IsPointer reports whether the Go field is a pointer
func (c *ColumnDescriptor) IsPointer() bool {
	return c.GoType.Kind() == reflect.Ptr
}

// ForeignKeyDescriptor describes a single-valued relationship. Only the
// identity of the related entity is ever stored.
type ForeignKeyDescriptor struct {
	Field    string // Go struct field name
	Column   string // <field>_id
	Nullable bool
	Index    []int

	// Target is the referenced entity. For self references it is the owning
	// descriptor itself.
	Target *EntityDescriptor
}

// RefTable returns the referenced table name
func (f *ForeignKeyDescriptor) RefTable() string {
	return f.Target.Table
}

// RefColumn returns the referenced identity column name
func (f *ForeignKeyDescriptor) RefColumn() string {
	return f.Target.Identity.Name
}

// StorageType matches the referenced identity column
func (f *ForeignKeyDescriptor) StorageType() SemanticType {
	return f.Target.Identity.Type
}

// EntityDescriptor is the structural metadata of one model type
type EntityDescriptor struct {
	Name        string       // Go type name
	Type        reflect.Type // struct type (never a pointer)
	Table       string
	Identity    *ColumnDescriptor
	Columns     []*ColumnDescriptor // declared order, identity included
	ForeignKeys []*ForeignKeyDescriptor

	byName  map[string]*ColumnDescriptor
	byField map[string]int // field name -> position in Columns, -1-i for ForeignKeys[i]
}

// Column looks up a column descriptor by column name
func (e *EntityDescriptor) Column(name string) (*ColumnDescriptor, bool) {
	c, ok := e.byName[strings.ToLower(name)]
	return c, ok
}

// ColumnForField returns the column descriptor mapped from a Go field
func (e *EntityDescriptor) ColumnForField(field string) (*ColumnDescriptor, bool) {
	pos, ok := e.byField[field]
	if !ok || pos < 0 {
		return nil, false
	}
	return e.Columns[pos], true
}

// ForeignKeyForField returns the relationship mapped from a Go field
func (e *EntityDescriptor) ForeignKeyForField(field string) (*ForeignKeyDescriptor, bool) {
	pos, ok := e.byField[field]
	if !ok || pos >= 0 {
		return nil, false
	}
	return e.ForeignKeys[-pos-1], true
}

// DataColumns returns every column except the identity, in declared order
func (e *EntityDescriptor) DataColumns() []*ColumnDescriptor {
	cols := make([]*ColumnDescriptor, 0, len(e.Columns))
	for _, c := range e.Columns {
		if !c.Identity {
			cols = append(cols, c)
		}
	}
	return cols
}

// ColumnNames returns all column names, plain columns first, then foreign key
// columns, each group in declared order. This is the order used for SELECT
// lists and for schema synchronization.
func (e *EntityDescriptor) ColumnNames() []string {
	names := make([]string, 0, len(e.Columns)+len(e.ForeignKeys))
	for _, c := range e.Columns {
		names = append(names, c.Name)
	}
	for _, fk := range e.ForeignKeys {
		names = append(names, fk.Column)
	}
	return names
}

// String returns a short description used in logs and errors
func (e *EntityDescriptor) String() string {
	return fmt.Sprintf("%s(%s)", e.Name, e.Table)
}

func (e *EntityDescriptor) index() {
	e.byName = make(map[string]*ColumnDescriptor, len(e.Columns))
	e.byField = make(map[string]int, len(e.Columns)+len(e.ForeignKeys))
	for i, c := range e.Columns {
		e.byName[strings.ToLower(c.Name)] = c
		e.byField[c.Field] = i
	}
	for i, fk := range e.ForeignKeys {
		e.byField[fk.Field] = -i - 1
	}
}

// TableNamer is implemented by every model type. It carries the entity-level
// table name metadata.
type TableNamer interface {
	TableName() string
}

// ToSnakeCase converts a Go identifier to snake_case
func ToSnakeCase(s string) string {
	var result []rune
	runes := []rune(s)

	for i, r := range runes {
		if i > 0 && r >= 'A' && r <= 'Z' {
			prev := runes[i-1]
			// camelCase boundary, or the last capital of an acronym ("HTTPServer" -> "http_server")
			if prev >= 'a' && prev <= 'z' || prev >= '0' && prev <= '9' {
				result = append(result, '_')
			} else if i+1 < len(runes) && runes[i+1] >= 'a' && runes[i+1] <= 'z' {
				result = append(result, '_')
			}
		}
		if r >= 'A' && r <= 'Z' {
			result = append(result, r+('a'-'A'))
		} else {
			result = append(result, r)
		}
	}
	return string(result)
}

// IsValidIdentifier checks if a string is a safe SQL identifier
func IsValidIdentifier(s string) bool {
	if s == "" {
		return false
	}

	for i, char := range s {
		switch {
		case char >= 'a' && char <= 'z', char >= 'A' && char <= 'Z', char == '_':
		case char >= '0' && char <= '9' && i > 0:
		default:
			return false
		}
	}
	return true
}
