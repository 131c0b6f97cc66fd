package migrate

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrDependencyFailed marks a table skipped because a table it references
	// could not be synchronized
	ErrDependencyFailed = errors.New("referenced table failed to synchronize")

	// ErrLockNotAcquired is returned when the migration lock could not be
	// taken before the context expired
	ErrLockNotAcquired = errors.New("migration lock not acquired")
)

// SchemaError reports a table whose synchronization failed. Statement is
// empty when the failure happened before any DDL ran.
type SchemaError struct {
	Table     string
	Statement string
	Err       error
}

// Error implements the error interface
func (e *SchemaError) Error() string {
	if e.Statement != "" {
		return fmt.Sprintf("schema sync of %s failed executing %q: %v", e.Table, e.Statement, e.Err)
	}
	return fmt.Sprintf("schema sync of %s failed: %v", e.Table, e.Err)
}

// Unwrap returns the underlying error
func (e *SchemaError) Unwrap() error {
	return e.Err
}

// SyncError collects the tables that failed during one Migrate call. Tables
// not listed were synchronized successfully.
type SyncError struct {
	Failed []*SchemaError
}

// Error implements the error interface
func (e *SyncError) Error() string {
	tables := make([]string, len(e.Failed))
	for i, f := range e.Failed {
		tables[i] = f.Table
	}
	if len(e.Failed) == 1 {
		return e.Failed[0].Error()
	}
	return fmt.Sprintf("schema sync failed for %d tables (%s)", len(e.Failed), strings.Join(tables, ", "))
}

// Unwrap exposes every SchemaError to errors.Is and errors.As
func (e *SyncError) Unwrap() []error {
	errs := make([]error, len(e.Failed))
	for i, f := range e.Failed {
		errs[i] = f
	}
	return errs
}

// ForTable returns the failure of a table, if any
func (e *SyncError) ForTable(table string) (*SchemaError, bool) {
	for _, f := range e.Failed {
		if strings.EqualFold(f.Table, table) {
			return f, true
		}
	}
	return nil, false
}
