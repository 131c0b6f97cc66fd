package schema

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// TagKey is the struct tag key read by the registry
const TagKey = "orm"

type tagKind int

const (
	tagNone tagKind = iota
	tagIdentity
	tagColumn
	tagRelation
)

// fieldTag is the parsed form of `orm:"<kind>[,option...]"`.
//
//	orm:"id"                                  identity column, named id
//	orm:"column"                              column named after the field
//	orm:"column,name=nick,unique,size=16"     explicit name, UNIQUE, VARCHAR(16)
//	orm:"column,adapter=color,null"           custom adapter, nullable
//	orm:"relation,null"                       foreign key <field>_id
type fieldTag struct {
	kind     tagKind
	name     string
	unique   bool
	nullable bool
	size     int
	adapter  string
}

func parseTag(raw string) (fieldTag, error) {
	var tag fieldTag
	raw = strings.TrimSpace(raw)
	if raw == "" || raw == "-" {
		return tag, nil
	}

	parts := strings.Split(raw, ",")
	switch strings.TrimSpace(parts[0]) {
	case "id":
		tag.kind = tagIdentity
	case "column":
		tag.kind = tagColumn
	case "relation":
		tag.kind = tagRelation
	default:
		return tag, fmt.Errorf("unknown tag kind %q", parts[0])
	}

	for _, opt := range parts[1:] {
		opt = strings.TrimSpace(opt)
		if opt == "" {
			continue
		}
		key, value, hasValue := strings.Cut(opt, "=")
		switch key {
		case "name":
			tag.name = value
		case "unique":
			tag.unique = true
		case "null", "nullable":
			tag.nullable = true
		case "size":
			n, err := strconv.Atoi(value)
			if err != nil || n <= 0 {
				return tag, fmt.Errorf("invalid size %q", value)
			}
			tag.size = n
		case "adapter":
			tag.adapter = value
		default:
			return tag, fmt.Errorf("unknown tag option %q", key)
		}
		if (key == "name" || key == "size" || key == "adapter") && (!hasValue || value == "") {
			return tag, fmt.Errorf("tag option %q requires a value", key)
		}
	}

	if tag.kind == tagRelation && (tag.name != "" || tag.size > 0 || tag.adapter != "") {
		return tag, fmt.Errorf("relation fields only accept the null option")
	}

	return tag, nil
}

var (
	uuidType = reflect.TypeOf(uuid.UUID{})
	timeType = reflect.TypeOf(time.Time{})
)

// inferScalar maps a non-pointer Go type to a semantic scalar type
func inferScalar(t reflect.Type) (SemanticType, bool) {
	switch t {
	case uuidType:
		return TypeUUID, true
	case timeType:
		return TypeTimestamp, true
	}

	switch t.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32,
		reflect.Uint8, reflect.Uint16, reflect.Uint32:
		return TypeInteger, true
	case reflect.Int64, reflect.Uint, reflect.Uint64:
		return TypeBigInteger, true
	case reflect.Float32, reflect.Float64:
		return TypeFloat, true
	case reflect.Bool:
		return TypeBoolean, true
	case reflect.String:
		if t.PkgPath() != "" {
			return TypeEnum, true
		}
		return TypeString, true
	}
	return 0, false
}

// inferType maps a field type (pointers included) to a semantic type.
// Slices of scalars are stored as JSON text.
func inferType(t reflect.Type) (SemanticType, bool) {
	if t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	if st, ok := inferScalar(t); ok {
		return st, true
	}
	if t.Kind() == reflect.Slice {
		if _, ok := inferScalar(t.Elem()); ok {
			return TypeList, true
		}
	}
	return 0, false
}
