package mapper

import (
	"encoding/json"
	"fmt"
	"reflect"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cast"

	"github.com/conduit-lang/recordkit/internal/orm/schema"
)

var (
	uuidType = reflect.TypeOf(uuid.UUID{})
	timeType = reflect.TypeOf(time.Time{})
)

// convertScalar coerces a raw driver value to the scalar type t. Drivers
// disagree on representations (MySQL returns []byte for text, SQLite int64
// for booleans), so everything funnels through cast.
func convertScalar(raw interface{}, t reflect.Type) (reflect.Value, error) {
	if b, ok := raw.([]byte); ok {
		raw = string(b)
	}

	switch t {
	case uuidType:
		s, err := cast.ToStringE(raw)
		if err != nil {
			return reflect.Value{}, err
		}
		id, err := uuid.Parse(s)
		if err != nil {
			return reflect.Value{}, err
		}
		return reflect.ValueOf(id), nil
	case timeType:
		ts, err := cast.ToTimeE(raw)
		if err != nil {
			return reflect.Value{}, err
		}
		return reflect.ValueOf(ts), nil
	}

	switch t.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		n, err := cast.ToInt64E(raw)
		if err != nil {
			return reflect.Value{}, err
		}
		return reflect.ValueOf(n).Convert(t), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		n, err := cast.ToUint64E(raw)
		if err != nil {
			return reflect.Value{}, err
		}
		return reflect.ValueOf(n).Convert(t), nil
	case reflect.Float32, reflect.Float64:
		f, err := cast.ToFloat64E(raw)
		if err != nil {
			return reflect.Value{}, err
		}
		return reflect.ValueOf(f).Convert(t), nil
	case reflect.Bool:
		b, err := cast.ToBoolE(raw)
		if err != nil {
			return reflect.Value{}, err
		}
		return reflect.ValueOf(b).Convert(t), nil
	case reflect.String:
		s, err := cast.ToStringE(raw)
		if err != nil {
			return reflect.Value{}, err
		}
		return reflect.ValueOf(s).Convert(t), nil
	}

	rv := reflect.ValueOf(raw)
	if rv.Type().ConvertibleTo(t) {
		return rv.Convert(t), nil
	}
	return reflect.Value{}, fmt.Errorf("cannot convert %T to %s", raw, t)
}

// decodeColumn converts a non-NULL raw value to the column's base Go type
// (the field type with one pointer level removed)
func decodeColumn(col *schema.ColumnDescriptor, raw interface{}, base reflect.Type) (reflect.Value, error) {
	if col.Adapter != nil {
		stored, err := convertScalar(raw, col.Adapter.StorageGoType())
		if err != nil {
			return reflect.Value{}, err
		}
		native, err := col.Adapter.FromStorage(stored.Interface())
		if err != nil {
			return reflect.Value{}, fmt.Errorf("adapter %s: %w", col.AdapterName, err)
		}
		return reflect.ValueOf(native), nil
	}

	if col.Type == schema.TypeList {
		text, err := cast.ToStringE(bytesToString(raw))
		if err != nil {
			return reflect.Value{}, err
		}
		list := reflect.New(base)
		if err := json.Unmarshal([]byte(text), list.Interface()); err != nil {
			return reflect.Value{}, fmt.Errorf("invalid list JSON: %w", err)
		}
		return list.Elem(), nil
	}

	return convertScalar(raw, base)
}

func bytesToString(raw interface{}) interface{} {
	if b, ok := raw.([]byte); ok {
		return string(b)
	}
	return raw
}

// assign stores v into field, adding or removing one pointer level as needed
func assign(field reflect.Value, v reflect.Value) error {
	ft := field.Type()
	switch {
	case v.Type() == ft:
		field.Set(v)
	case ft.Kind() == reflect.Ptr && v.Type() == ft.Elem():
		ptr := reflect.New(ft.Elem())
		ptr.Elem().Set(v)
		field.Set(ptr)
	case v.Kind() == reflect.Ptr && v.Type().Elem() == ft:
		if v.IsNil() {
			field.Set(reflect.Zero(ft))
		} else {
			field.Set(v.Elem())
		}
	default:
		return fmt.Errorf("cannot assign %s to field of type %s", v.Type(), ft)
	}
	return nil
}
