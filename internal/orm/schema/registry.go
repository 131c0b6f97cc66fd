package schema

import (
	"fmt"
	"reflect"
	"strings"
	"sync"
)

var tableNamerType = reflect.TypeOf((*TableNamer)(nil)).Elem()

// Registry derives and caches one EntityDescriptor per model type. Descriptors
// are never recomputed once resolved.
type Registry struct {
	mu          sync.RWMutex
	descriptors map[reflect.Type]*EntityDescriptor
	pending     map[reflect.Type]*EntityDescriptor
	tables      map[string]reflect.Type
	models      []*EntityDescriptor
	adapters    map[string]Adapter
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{
		descriptors: make(map[reflect.Type]*EntityDescriptor),
		pending:     make(map[reflect.Type]*EntityDescriptor),
		tables:      make(map[string]reflect.Type),
		adapters:    make(map[string]Adapter),
	}
}

// RegisterAdapter makes an adapter available to `adapter=<name>` tags. Adapters
// must be registered before the models that use them.
func (r *Registry) RegisterAdapter(name string, adapter Adapter) error {
	if name == "" || adapter == nil {
		return fmt.Errorf("adapter name and implementation are required")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.adapters[name]; exists {
		return fmt.Errorf("adapter %s is already registered", name)
	}
	r.adapters[name] = adapter
	return nil
}

// Register describes each model and adds it to the ordered model list used
// for schema synchronization. Models may be struct values or pointers. Every
// relation target must be registered, earlier or in the same call; otherwise
// nothing from this call is added.
func (r *Registry) Register(models ...interface{}) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var batch []*EntityDescriptor
	listed := func(desc *EntityDescriptor) bool {
		for _, b := range batch {
			if b == desc {
				return true
			}
		}
		return r.isListed(desc)
	}

	for _, model := range models {
		t, err := modelType(model)
		if err != nil {
			return err
		}
		desc, err := r.describeLocked(t)
		if err != nil {
			return err
		}
		if !listed(desc) {
			batch = append(batch, desc)
		}
	}

	for _, desc := range batch {
		for _, fk := range desc.ForeignKeys {
			if !listed(fk.Target) {
				return mappingErr(desc.Name, fk.Field, "relation target %s is not registered", fk.Target.Name)
			}
		}
	}

	r.models = append(r.models, batch...)
	return nil
}

// Describe returns the descriptor for a struct type, deriving it on first use
func (r *Registry) Describe(t reflect.Type) (*EntityDescriptor, error) {
	if t == nil {
		return nil, &MappingError{Entity: "<nil>", Reason: "model type is nil"}
	}
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}

	r.mu.RLock()
	desc, ok := r.descriptors[t]
	r.mu.RUnlock()
	if ok {
		return desc, nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	return r.describeLocked(t)
}

// DescribeOf returns the descriptor for the dynamic type of v
func (r *Registry) DescribeOf(v interface{}) (*EntityDescriptor, error) {
	t, err := modelType(v)
	if err != nil {
		return nil, err
	}
	return r.Describe(t)
}

// Models returns the registered descriptors in registration order
func (r *Registry) Models() []*EntityDescriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]*EntityDescriptor, len(r.models))
	copy(result, r.models)
	return result
}

// ByTable returns the descriptor owning a table
func (r *Registry) ByTable(table string) (*EntityDescriptor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	t, ok := r.tables[strings.ToLower(table)]
	if !ok {
		return nil, false
	}
	desc, ok := r.descriptors[t]
	return desc, ok
}

// Count returns the number of cached descriptors
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.descriptors)
}

func (r *Registry) isListed(desc *EntityDescriptor) bool {
	for _, m := range r.models {
		if m == desc {
			return true
		}
	}
	return false
}

func modelType(model interface{}) (reflect.Type, error) {
	if model == nil {
		return nil, &MappingError{Entity: "<nil>", Reason: "model is nil"}
	}
	t := reflect.TypeOf(model)
	if rt, ok := model.(reflect.Type); ok {
		t = rt
	}
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t, nil
}

// describeLocked returns a cached descriptor or builds one. Descriptors built
// while resolving relations stay pending until the outermost build succeeds,
// so a failure never leaves a descriptor pointing at an uncached target.
// Callers hold the write lock.
func (r *Registry) describeLocked(t reflect.Type) (*EntityDescriptor, error) {
	if desc, ok := r.descriptors[t]; ok {
		return desc, nil
	}
	if desc, ok := r.pending[t]; ok {
		// Cyclic relationship; identity is already resolved on partial descriptors.
		return desc, nil
	}

	outermost := len(r.pending) == 0
	desc, err := r.build(t)
	if !outermost {
		return desc, err
	}

	if err == nil {
		for pt, pd := range r.pending {
			r.descriptors[pt] = pd
			r.tables[strings.ToLower(pd.Table)] = pt
		}
	}
	clear(r.pending)
	if err != nil {
		return nil, err
	}
	return desc, nil
}

func (r *Registry) build(t reflect.Type) (*EntityDescriptor, error) {
	if t.Kind() != reflect.Struct {
		return nil, mappingErr(t.String(), "", "model must be a struct, got %s", t.Kind())
	}

	table, err := tableName(t)
	if err != nil {
		return nil, err
	}
	if other, taken := r.tableOwner(table); taken && other != t {
		return nil, mappingErr(t.Name(), "", "table %s is already mapped by %s", table, other.Name())
	}

	desc := &EntityDescriptor{
		Name:  t.Name(),
		Type:  t,
		Table: table,
	}

	relations, err := r.collectColumns(desc, t, nil)
	if err != nil {
		return nil, err
	}
	if err := validateColumns(desc); err != nil {
		return nil, err
	}

	r.pending[t] = desc

	for _, rel := range relations {
		fk, err := r.buildForeignKey(desc, rel)
		if err != nil {
			return nil, err
		}
		desc.ForeignKeys = append(desc.ForeignKeys, fk)
	}
	if err := validateForeignKeys(desc); err != nil {
		return nil, err
	}

	desc.index()
	return desc, nil
}

// tableOwner finds the type mapping table among cached and pending descriptors
func (r *Registry) tableOwner(table string) (reflect.Type, bool) {
	if t, ok := r.tables[strings.ToLower(table)]; ok {
		return t, true
	}
	for t, desc := range r.pending {
		if strings.EqualFold(desc.Table, table) {
			return t, true
		}
	}
	return nil, false
}

func tableName(t reflect.Type) (string, error) {
	if !reflect.PtrTo(t).Implements(tableNamerType) {
		return "", mappingErr(t.Name(), "", "model does not declare a table name (implement TableName() string)")
	}

	table := reflect.New(t).Interface().(TableNamer).TableName()
	if !IsValidIdentifier(table) {
		return "", mappingErr(t.Name(), "", "invalid table name %q", table)
	}
	return table, nil
}

type relationField struct {
	field reflect.StructField
	index []int
	tag   fieldTag
}

// collectColumns walks the struct fields, flattening untagged embedded structs
func (r *Registry) collectColumns(desc *EntityDescriptor, t reflect.Type, base []int) ([]relationField, error) {
	var relations []relationField

	for i := 0; i < t.NumField(); i++ {
		sf := t.Field(i)
		index := append(append([]int(nil), base...), i)

		raw, tagged := sf.Tag.Lookup(TagKey)
		if !tagged {
			if sf.Anonymous && sf.Type.Kind() == reflect.Struct && sf.IsExported() {
				nested, err := r.collectColumns(desc, sf.Type, index)
				if err != nil {
					return nil, err
				}
				relations = append(relations, nested...)
			}
			// Fields without persistence metadata are ignored
			continue
		}

		tag, err := parseTag(raw)
		if err != nil {
			return nil, mappingErr(desc.Name, sf.Name, "%v", err)
		}
		if tag.kind == tagNone {
			continue
		}
		if !sf.IsExported() {
			return nil, mappingErr(desc.Name, sf.Name, "persistent fields must be exported")
		}

		if tag.kind == tagRelation {
			relations = append(relations, relationField{field: sf, index: index, tag: tag})
			continue
		}

		col, err := r.buildColumn(desc, sf, index, tag)
		if err != nil {
			return nil, err
		}
		if col.Identity {
			if desc.Identity != nil {
				return nil, mappingErr(desc.Name, sf.Name, "multiple identity fields (%s already declared)", desc.Identity.Field)
			}
			desc.Identity = col
		}
		desc.Columns = append(desc.Columns, col)
	}

	return relations, nil
}

func (r *Registry) buildColumn(desc *EntityDescriptor, sf reflect.StructField, index []int, tag fieldTag) (*ColumnDescriptor, error) {
	col := &ColumnDescriptor{
		Field:    sf.Name,
		GoType:   sf.Type,
		Unique:   tag.unique,
		Length:   tag.size,
		Identity: tag.kind == tagIdentity,
		Index:    index,
	}

	switch {
	case tag.name != "":
		col.Name = tag.name
	case col.Identity:
		col.Name = "id"
	default:
		col.Name = ToSnakeCase(sf.Name)
	}
	if !IsValidIdentifier(col.Name) {
		return nil, mappingErr(desc.Name, sf.Name, "invalid column name %q", col.Name)
	}

	if tag.adapter != "" {
		adapter, ok := r.adapters[tag.adapter]
		if !ok {
			return nil, mappingErr(desc.Name, sf.Name, "unknown adapter %q", tag.adapter)
		}
		native := sf.Type
		if native.Kind() == reflect.Ptr && adapter.NativeType().Kind() != reflect.Ptr {
			native = native.Elem()
		}
		if native != adapter.NativeType() {
			return nil, mappingErr(desc.Name, sf.Name, "adapter %q converts %s, field is %s",
				tag.adapter, adapter.NativeType(), sf.Type)
		}
		col.Type = TypeCustom
		col.Adapter = adapter
		col.AdapterName = tag.adapter
	} else {
		st, ok := inferType(sf.Type)
		if !ok {
			return nil, mappingErr(desc.Name, sf.Name, "type %s is not a recognized column type and needs an adapter", sf.Type)
		}
		col.Type = st
	}

	if col.Identity {
		if col.Adapter != nil || !col.Type.IsInteger() {
			return nil, mappingErr(desc.Name, sf.Name, "identity must be an integer field, got %s", sf.Type)
		}
		if tag.nullable || tag.unique || tag.size > 0 {
			return nil, mappingErr(desc.Name, sf.Name, "identity fields accept only the name option")
		}
		return col, nil
	}

	col.Nullable = tag.nullable || sf.Type.Kind() == reflect.Ptr
	return col, nil
}

func (r *Registry) buildForeignKey(desc *EntityDescriptor, rel relationField) (*ForeignKeyDescriptor, error) {
	ft := rel.field.Type
	if ft.Kind() != reflect.Ptr || ft.Elem().Kind() != reflect.Struct {
		return nil, mappingErr(desc.Name, rel.field.Name, "relation fields must be pointers to model structs, got %s", ft)
	}

	var target *EntityDescriptor
	if ft.Elem() == desc.Type {
		target = desc
	} else {
		var err error
		target, err = r.describeLocked(ft.Elem())
		if err != nil {
			return nil, fmt.Errorf("relation %s.%s: %w", desc.Name, rel.field.Name, err)
		}
	}

	return &ForeignKeyDescriptor{
		Field:    rel.field.Name,
		Column:   ToSnakeCase(rel.field.Name) + "_id",
		Nullable: rel.tag.nullable,
		Index:    rel.index,
		Target:   target,
	}, nil
}

func validateColumns(desc *EntityDescriptor) error {
	if desc.Identity == nil {
		return mappingErr(desc.Name, "", "model has no identity field (tag one field with `orm:\"id\"`)")
	}

	seen := make(map[string]string, len(desc.Columns))
	for _, col := range desc.Columns {
		key := strings.ToLower(col.Name)
		if other, dup := seen[key]; dup {
			return mappingErr(desc.Name, col.Field, "column %s is also mapped by %s", col.Name, other)
		}
		seen[key] = col.Field
	}
	return nil
}

func validateForeignKeys(desc *EntityDescriptor) error {
	seen := make(map[string]string, len(desc.Columns)+len(desc.ForeignKeys))
	for _, col := range desc.Columns {
		seen[strings.ToLower(col.Name)] = col.Field
	}
	for _, fk := range desc.ForeignKeys {
		key := strings.ToLower(fk.Column)
		if other, dup := seen[key]; dup {
			return mappingErr(desc.Name, fk.Field, "foreign key column %s is also mapped by %s", fk.Column, other)
		}
		seen[key] = fk.Field
	}
	return nil
}
