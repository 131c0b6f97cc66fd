package query

import (
	"context"
	"fmt"
	"reflect"
	"strings"

	"github.com/conduit-lang/recordkit/internal/orm/crud"
	"github.com/conduit-lang/recordkit/internal/orm/dialect"
	"github.com/conduit-lang/recordkit/internal/orm/mapper"
	"github.com/conduit-lang/recordkit/internal/orm/schema"
)

// Runner executes built queries. *crud.Engine implements it.
type Runner interface {
	Registry() *schema.Registry
	Dialect() dialect.Dialect
	QueryEntities(ctx context.Context, desc *schema.EntityDescriptor, query string, args ...interface{}) ([]reflect.Value, error)
	QueryCount(ctx context.Context, desc *schema.EntityDescriptor, query string, args ...interface{}) (int64, error)
}

// Field selects a struct field by returning its address:
//
//	func(p *Player) any { return &p.Level }
type Field[T any] func(*T) any

// Builder provides a fluent API for building SELECT queries over one model.
// Accessor errors are kept and reported by the terminal operations.
type Builder[T any] struct {
	runner     Runner
	desc       *schema.EntityDescriptor
	conditions []*Condition
	order      *Order
	err        error
}

// Find starts a query over T
func Find[T any](runner Runner) *Builder[T] {
	b := &Builder[T]{runner: runner}
	desc, err := runner.Registry().Describe(reflect.TypeOf((*T)(nil)).Elem())
	if err != nil {
		b.err = err
		return b
	}
	b.desc = desc
	return b
}

// Where adds a predicate. Multiple predicates are combined with AND in call
// order. Relation accessors compare the foreign key column and accept either
// the related entity or its identity.
func (b *Builder[T]) Where(field Field[T], op Operator, value interface{}) *Builder[T] {
	if b.err != nil {
		return b
	}
	if !op.Valid() {
		b.err = &schema.MappingError{Entity: b.desc.Name, Reason: "unsupported comparison operator"}
		return b
	}

	col, fk, err := b.resolve(field)
	if err != nil {
		b.err = err
		return b
	}

	var bound interface{}
	if col != nil {
		bound, err = mapper.BindQueryValue(col, value)
	} else {
		bound, err = bindRelation(fk, value)
	}
	if err != nil {
		b.err = fmt.Errorf("where %s.%s: %w", b.desc.Table, b.columnName(col, fk), err)
		return b
	}

	b.conditions = append(b.conditions, &Condition{
		Column:   b.columnName(col, fk),
		Operator: op,
		Value:    bound,
	})
	return b
}

// WhereEq is shorthand for Where(field, OpEqual, value)
func (b *Builder[T]) WhereEq(field Field[T], value interface{}) *Builder[T] {
	return b.Where(field, OpEqual, value)
}

// OrderBy sets the sort column. Only the first call is honored; later calls
// are ignored.
func (b *Builder[T]) OrderBy(field Field[T], direction Direction) *Builder[T] {
	if b.err != nil || b.order != nil {
		return b
	}

	col, fk, err := b.resolve(field)
	if err != nil {
		b.err = err
		return b
	}
	b.order = &Order{Column: b.columnName(col, fk), Direction: direction}
	return b
}

// ToSQL returns the SELECT statement and its arguments
func (b *Builder[T]) ToSQL() (string, []interface{}, error) {
	return b.build("SELECT "+b.selectList(), false)
}

// Get returns every matching entity in database result order
func (b *Builder[T]) Get(ctx context.Context) ([]*T, error) {
	query, args, err := b.build("SELECT "+b.selectList(), false)
	if err != nil {
		return nil, err
	}

	values, err := b.runner.QueryEntities(ctx, b.desc, query, args...)
	if err != nil {
		return nil, err
	}

	results := make([]*T, 0, len(values))
	for _, v := range values {
		results = append(results, v.Interface().(*T))
	}
	return results, nil
}

// First returns the first matching entity, or crud.ErrNotFound
func (b *Builder[T]) First(ctx context.Context) (*T, error) {
	query, args, err := b.build("SELECT "+b.selectList(), true)
	if err != nil {
		return nil, err
	}

	values, err := b.runner.QueryEntities(ctx, b.desc, query, args...)
	if err != nil {
		return nil, err
	}
	if len(values) == 0 {
		return nil, crud.ErrNotFound
	}
	return values[0].Interface().(*T), nil
}

// Count returns the number of matching rows
func (b *Builder[T]) Count(ctx context.Context) (int64, error) {
	query, args, err := b.build("SELECT COUNT(*)", false)
	if err != nil {
		return 0, err
	}
	return b.runner.QueryCount(ctx, b.desc, query, args...)
}

func (b *Builder[T]) selectList() string {
	if b.desc == nil {
		return ""
	}
	return strings.Join(b.desc.ColumnNames(), ", ")
}

func (b *Builder[T]) build(head string, single bool) (string, []interface{}, error) {
	if b.err != nil {
		return "", nil, b.err
	}

	d := b.runner.Dialect()
	var sb strings.Builder
	sb.WriteString(head)
	sb.WriteString(" FROM ")
	sb.WriteString(b.desc.Table)

	var args []interface{}
	if len(b.conditions) > 0 {
		clauses := make([]string, 0, len(b.conditions))
		for _, cond := range b.conditions {
			placeholder := ""
			if !cond.IsNullCheck() {
				placeholder = d.Placeholder(len(args) + 1)
			}
			clause, err := cond.ToSQL(placeholder)
			if err != nil {
				return "", nil, err
			}
			clauses = append(clauses, clause)
			if !cond.IsNullCheck() {
				args = append(args, cond.Value)
			}
		}
		sb.WriteString(" WHERE ")
		sb.WriteString(strings.Join(clauses, " AND "))
	}

	if b.order != nil {
		sb.WriteString(" ORDER BY ")
		sb.WriteString(b.order.ToSQL())
	}
	if single {
		sb.WriteString(" LIMIT 1")
	}

	return sb.String(), args, nil
}

// resolve maps an accessor to the column whose field address it returns
func (b *Builder[T]) resolve(field Field[T]) (*schema.ColumnDescriptor, *schema.ForeignKeyDescriptor, error) {
	if field == nil {
		return nil, nil, &schema.MappingError{Entity: b.desc.Name, Reason: "nil field accessor"}
	}

	probe := new(T)
	ret := reflect.ValueOf(field(probe))
	if !ret.IsValid() || ret.Kind() != reflect.Ptr || ret.IsNil() {
		return nil, nil, &schema.MappingError{
			Entity: b.desc.Name,
			Reason: "field accessor must return the address of a field",
		}
	}

	addr := ret.Pointer()
	typ := ret.Type().Elem()
	entity := reflect.ValueOf(probe).Elem()

	for _, col := range b.desc.Columns {
		f := entity.FieldByIndex(col.Index)
		if f.Addr().Pointer() == addr && f.Type() == typ {
			return col, nil, nil
		}
	}
	for _, fk := range b.desc.ForeignKeys {
		f := entity.FieldByIndex(fk.Index)
		if f.Addr().Pointer() == addr && f.Type() == typ {
			return nil, fk, nil
		}
	}

	return nil, nil, &schema.MappingError{
		Entity: b.desc.Name,
		Field:  typ.String(),
		Reason: "field accessor does not resolve to a mapped column",
	}
}

func (b *Builder[T]) columnName(col *schema.ColumnDescriptor, fk *schema.ForeignKeyDescriptor) string {
	if col != nil {
		return col.Name
	}
	return fk.Column
}

// bindRelation accepts the related entity (value or pointer) or a bare
// identity
func bindRelation(fk *schema.ForeignKeyDescriptor, value interface{}) (interface{}, error) {
	if value == nil {
		return nil, nil
	}

	v := reflect.ValueOf(value)
	if v.Kind() == reflect.Ptr {
		if v.IsNil() {
			return nil, nil
		}
		v = v.Elem()
	}

	if v.Type() == fk.Target.Type {
		id, ok := mapper.IdentityValue(fk.Target, v)
		if !ok {
			return nil, fmt.Errorf("related %s has no identity", fk.Target.Name)
		}
		return id, nil
	}

	switch v.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return v.Int(), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return int64(v.Uint()), nil
	}
	return nil, fmt.Errorf("expected %s or its identity, got %T", fk.Target.Name, value)
}
