package crud

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/conduit-lang/recordkit/internal/orm/dialect"
)

// Common CRUD error types
var (
	// ErrNotFound is returned when a record is not found
	ErrNotFound = errors.New("record not found")

	// ErrUniqueViolation is returned when a unique constraint is violated
	ErrUniqueViolation = errors.New("unique constraint violation")

	// ErrForeignKeyViolation is returned when a foreign key constraint is violated
	ErrForeignKeyViolation = errors.New("foreign key constraint violation")

	// ErrNotNullViolation is returned when a NOT NULL constraint is violated
	ErrNotNullViolation = errors.New("not null constraint violation")

	// ErrMissingIdentity is returned when deleting an entity that was never saved
	ErrMissingIdentity = errors.New("entity has no identity")

	// ErrModelUnavailable is returned for models whose table failed to migrate
	ErrModelUnavailable = errors.New("model unavailable")
)

// WriteError is delivered through a write handle when an insert, update or
// delete fails
type WriteError struct {
	Op     Operation
	Entity string
	Err    error
}

// Error implements the error interface
func (e *WriteError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Entity, e.Err)
}

func (e *WriteError) Unwrap() error {
	return e.Err
}

// ConvertDBError converts driver errors into CRUD errors. The driver error
// stays in the chain.
func ConvertDBError(d dialect.Dialect, err error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	if d == nil {
		return err
	}

	switch d.Classify(err) {
	case dialect.ViolationUnique:
		return fmt.Errorf("%w: %w", ErrUniqueViolation, err)
	case dialect.ViolationForeignKey:
		return fmt.Errorf("%w: %w", ErrForeignKeyViolation, err)
	case dialect.ViolationNotNull:
		return fmt.Errorf("%w: %w", ErrNotNullViolation, err)
	}
	return err
}

// IsNotFound returns true if the error is ErrNotFound
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsUniqueViolation returns true if the error is ErrUniqueViolation
func IsUniqueViolation(err error) bool {
	return errors.Is(err, ErrUniqueViolation)
}

// IsForeignKeyViolation returns true if the error is ErrForeignKeyViolation
func IsForeignKeyViolation(err error) bool {
	return errors.Is(err, ErrForeignKeyViolation)
}

// IsWriteError returns true if err came from a failed write
func IsWriteError(err error) bool {
	var writeErr *WriteError
	return errors.As(err, &writeErr)
}
