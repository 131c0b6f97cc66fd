package schema

import (
	"errors"
	"fmt"
)

// ErrMapping is matched by every MappingError through errors.Is
var ErrMapping = errors.New("mapping error")

// MappingError reports a model that is missing required metadata, or a field
// accessor that does not resolve to a mapped column
type MappingError struct {
	Entity string
	Field  string
	Reason string
}

// Error implements the error interface
func (e *MappingError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("mapping %s.%s: %s", e.Entity, e.Field, e.Reason)
	}
	return fmt.Sprintf("mapping %s: %s", e.Entity, e.Reason)
}

// Is allows errors.Is(err, ErrMapping)
func (e *MappingError) Is(target error) bool {
	return target == ErrMapping
}

func mappingErr(entity, field, format string, args ...interface{}) *MappingError {
	return &MappingError{Entity: entity, Field: field, Reason: fmt.Sprintf(format, args...)}
}

// IsMappingError returns true if err is or wraps a MappingError
func IsMappingError(err error) bool {
	var me *MappingError
	return errors.As(err, &me)
}
