package mapper

import (
	"encoding/json"
	"fmt"
	"math"
	"reflect"

	"github.com/google/uuid"

	"github.com/conduit-lang/recordkit/internal/orm/schema"
)

// BindValue converts a field value into the scalar bound for its column:
// adapters run first, UUIDs become their string form, lists become JSON
// text and enums plain strings. Nil pointers bind NULL.
func BindValue(col *schema.ColumnDescriptor, field reflect.Value) (interface{}, error) {
	if !field.IsValid() {
		return nil, nil
	}

	if col.Adapter != nil && field.Type() == col.Adapter.NativeType() {
		return col.Adapter.ToStorage(field.Interface())
	}

	if field.Kind() == reflect.Ptr {
		if field.IsNil() {
			return nil, nil
		}
		field = field.Elem()
	}

	if col.Adapter != nil {
		stored, err := col.Adapter.ToStorage(field.Interface())
		if err != nil {
			return nil, fmt.Errorf("adapter %s: %w", col.AdapterName, err)
		}
		return stored, nil
	}

	switch col.Type {
	case schema.TypeUUID:
		id, ok := field.Interface().(uuid.UUID)
		if !ok {
			return nil, fmt.Errorf("column %s expects uuid.UUID, got %s", col.Name, field.Type())
		}
		return id.String(), nil
	case schema.TypeList:
		text, err := json.Marshal(field.Interface())
		if err != nil {
			return nil, fmt.Errorf("column %s: %w", col.Name, err)
		}
		return string(text), nil
	case schema.TypeTimestamp:
		return field.Interface(), nil
	}

	return scalarValue(field)
}

// BindQueryValue converts a predicate value supplied by the caller with the
// same rules as BindValue
func BindQueryValue(col *schema.ColumnDescriptor, value interface{}) (interface{}, error) {
	if value == nil {
		return nil, nil
	}
	return BindValue(col, reflect.ValueOf(value))
}

// scalarValue normalizes named and sized scalar kinds to the types every
// driver accepts
func scalarValue(v reflect.Value) (interface{}, error) {
	switch v.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return v.Int(), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		// unsigned columns are stored as signed BIGINT
		if v.Uint() > math.MaxInt64 {
			return nil, fmt.Errorf("value %d exceeds the BIGINT range", v.Uint())
		}
		return int64(v.Uint()), nil
	case reflect.Float32, reflect.Float64:
		return v.Float(), nil
	case reflect.Bool:
		return v.Bool(), nil
	case reflect.String:
		return v.String(), nil
	}
	return nil, fmt.Errorf("unsupported column value of type %s", v.Type())
}

// IdentityValue returns the identity of the struct v and whether it is set.
// Plain integer identities are unset when zero; pointer identities when nil.
func IdentityValue(desc *schema.EntityDescriptor, v reflect.Value) (int64, bool) {
	field := v.FieldByIndex(desc.Identity.Index)
	if field.Kind() == reflect.Ptr {
		if field.IsNil() {
			return 0, false
		}
		id := integerOf(field.Elem())
		return id, true
	}
	id := integerOf(field)
	return id, id != 0
}

// SetIdentity stores a generated identity into the addressable struct v
func SetIdentity(desc *schema.EntityDescriptor, v reflect.Value, id int64) {
	field := v.FieldByIndex(desc.Identity.Index)
	target := field
	if field.Kind() == reflect.Ptr {
		field.Set(reflect.New(field.Type().Elem()))
		target = field.Elem()
	}
	switch target.Kind() {
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		target.SetUint(uint64(id))
	default:
		target.SetInt(id)
	}
}

// ForeignKeyValue returns the scalar bound for a relation field: the related
// entity's identity, or NULL when the relation is unset. A related entity
// that has not been saved yet is an error.
func ForeignKeyValue(fk *schema.ForeignKeyDescriptor, v reflect.Value) (interface{}, error) {
	field := v.FieldByIndex(fk.Index)
	if field.IsNil() {
		return nil, nil
	}
	id, ok := IdentityValue(fk.Target, field.Elem())
	if !ok {
		return nil, fmt.Errorf("relation %s references an unsaved %s", fk.Field, fk.Target.Name)
	}
	return id, nil
}

func integerOf(v reflect.Value) int64 {
	switch v.Kind() {
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return int64(v.Uint())
	default:
		return v.Int()
	}
}
