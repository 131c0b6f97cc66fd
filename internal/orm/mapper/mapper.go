// Package mapper materializes result rows into model structs and converts
// model fields into bindable column values.
package mapper

import (
	"context"
	"fmt"
	"reflect"
	"strings"

	"github.com/spf13/cast"

	"github.com/conduit-lang/recordkit/internal/orm/schema"
)

// RelationMode controls how relation fields are populated on read
type RelationMode int

const (
	// RelationsNone leaves relation fields nil
	RelationsNone RelationMode = iota
	// RelationsReference sets relation fields to a stub holding only the
	// related identity
	RelationsReference
	// RelationsEager loads the related entity with a second lookup. Relations
	// of the loaded entity are references.
	RelationsEager
)

// String returns the string representation of the relation mode
func (m RelationMode) String() string {
	switch m {
	case RelationsNone:
		return "none"
	case RelationsReference:
		return "reference"
	case RelationsEager:
		return "eager"
	default:
		return "unknown"
	}
}

// ParseRelationMode parses none, reference or eager
func ParseRelationMode(s string) (RelationMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "none":
		return RelationsNone, nil
	case "reference":
		return RelationsReference, nil
	case "eager", "":
		return RelationsEager, nil
	default:
		return 0, fmt.Errorf("unknown relation mode %q (want none, reference or eager)", s)
	}
}

// Resolver loads a related entity by identity for eager resolution. It
// returns a pointer to a new struct of target's type, or a nil Value when
// no row exists.
type Resolver interface {
	Resolve(ctx context.Context, target *schema.EntityDescriptor, id int64) (reflect.Value, error)
}

// Mapper converts rows into model values
type Mapper struct {
	mode     RelationMode
	resolver Resolver
}

// New creates a mapper. resolver is required for RelationsEager; without one
// eager mode falls back to references.
func New(mode RelationMode, resolver Resolver) *Mapper {
	if mode == RelationsEager && resolver == nil {
		mode = RelationsReference
	}
	return &Mapper{mode: mode, resolver: resolver}
}

// Mode returns the relation mode
func (m *Mapper) Mode() RelationMode {
	return m.mode
}

// Map builds a new instance of desc's type from row and returns a pointer
// to it. Columns absent from the row leave their fields at the zero value.
func (m *Mapper) Map(ctx context.Context, row Row, desc *schema.EntityDescriptor) (reflect.Value, error) {
	ptr := reflect.New(desc.Type)
	entity := ptr.Elem()

	for _, col := range desc.Columns {
		raw, ok := row.Get(col.Name)
		if !ok {
			continue
		}
		if err := setColumn(entity.FieldByIndex(col.Index), col, raw); err != nil {
			return reflect.Value{}, fmt.Errorf("failed to map %s.%s: %w", desc.Table, col.Name, err)
		}
	}

	if m.mode == RelationsNone {
		return ptr, nil
	}

	for _, fk := range desc.ForeignKeys {
		raw, ok := row.Get(fk.Column)
		if !ok || raw == nil {
			continue
		}
		id, err := cast.ToInt64E(bytesToString(raw))
		if err != nil {
			return reflect.Value{}, fmt.Errorf("failed to map %s.%s: %w", desc.Table, fk.Column, err)
		}

		related, err := m.relation(ctx, fk, id)
		if err != nil {
			return reflect.Value{}, fmt.Errorf("failed to resolve %s.%s: %w", desc.Name, fk.Field, err)
		}
		entity.FieldByIndex(fk.Index).Set(related)
	}

	return ptr, nil
}

func (m *Mapper) relation(ctx context.Context, fk *schema.ForeignKeyDescriptor, id int64) (reflect.Value, error) {
	if m.mode == RelationsEager {
		loaded, err := m.resolver.Resolve(ctx, fk.Target, id)
		if err != nil {
			return reflect.Value{}, err
		}
		if loaded.IsValid() && !loaded.IsNil() {
			return loaded, nil
		}
	}
	return Reference(fk.Target, id), nil
}

// Reference returns a pointer to a new target struct with only the identity
// set
func Reference(target *schema.EntityDescriptor, id int64) reflect.Value {
	ptr := reflect.New(target.Type)
	SetIdentity(target, ptr.Elem(), id)
	return ptr
}

// MapInto maps row into a new *T
func MapInto[T any](ctx context.Context, m *Mapper, row Row, desc *schema.EntityDescriptor) (*T, error) {
	v, err := m.Map(ctx, row, desc)
	if err != nil {
		return nil, err
	}
	out, ok := v.Interface().(*T)
	if !ok {
		return nil, fmt.Errorf("descriptor %s does not describe %T", desc.Name, out)
	}
	return out, nil
}

func setColumn(field reflect.Value, col *schema.ColumnDescriptor, raw interface{}) error {
	if raw == nil {
		field.Set(reflect.Zero(field.Type()))
		return nil
	}

	base := field.Type()
	if base.Kind() == reflect.Ptr && (col.Adapter == nil || col.Adapter.NativeType() != base) {
		base = base.Elem()
	}

	v, err := decodeColumn(col, raw, base)
	if err != nil {
		return err
	}
	if !v.IsValid() {
		field.Set(reflect.Zero(field.Type()))
		return nil
	}
	return assign(field, v)
}
