package schema

import (
	"fmt"
	"reflect"
)

// Adapter translates between a native Go value and a storage-compatible
// scalar. ToStorage receives the field value; FromStorage receives a value
// already coerced to StorageGoType.
type Adapter interface {
	NativeType() reflect.Type
	StorageGoType() reflect.Type
	StorageType() SemanticType
	ToStorage(native interface{}) (interface{}, error)
	FromStorage(stored interface{}) (interface{}, error)
}

type funcAdapter[N any, S any] struct {
	to   func(N) (S, error)
	from func(S) (N, error)
	st   SemanticType
}

// NewAdapter builds an Adapter from a pair of conversion functions. The
// storage type S must be a scalar the registry can infer a column type for.
func NewAdapter[N any, S any](to func(N) (S, error), from func(S) (N, error)) (Adapter, error) {
	storage := reflect.TypeOf((*S)(nil)).Elem()
	st, ok := inferScalar(storage)
	if !ok {
		return nil, fmt.Errorf("adapter storage type %s is not a scalar", storage)
	}
	return &funcAdapter[N, S]{to: to, from: from, st: st}, nil
}

// MustAdapter is like NewAdapter but panics on an invalid storage type
func MustAdapter[N any, S any](to func(N) (S, error), from func(S) (N, error)) Adapter {
	a, err := NewAdapter(to, from)
	if err != nil {
		panic(err)
	}
	return a
}

func (a *funcAdapter[N, S]) NativeType() reflect.Type {
	return reflect.TypeOf((*N)(nil)).Elem()
}

func (a *funcAdapter[N, S]) StorageGoType() reflect.Type {
	return reflect.TypeOf((*S)(nil)).Elem()
}

func (a *funcAdapter[N, S]) StorageType() SemanticType {
	return a.st
}

func (a *funcAdapter[N, S]) ToStorage(native interface{}) (interface{}, error) {
	n, ok := native.(N)
	if !ok {
		return nil, fmt.Errorf("adapter expects %s, got %T", a.NativeType(), native)
	}
	return a.to(n)
}

func (a *funcAdapter[N, S]) FromStorage(stored interface{}) (interface{}, error) {
	s, ok := stored.(S)
	if !ok {
		return nil, fmt.Errorf("adapter expects stored %s, got %T", a.StorageGoType(), stored)
	}
	return a.from(s)
}
