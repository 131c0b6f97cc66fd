package recordkit

import (
	"github.com/conduit-lang/recordkit/internal/orm/crud"
	"github.com/conduit-lang/recordkit/internal/orm/migrate"
	"github.com/conduit-lang/recordkit/internal/orm/pool"
	"github.com/conduit-lang/recordkit/internal/orm/schema"
)

type (
	// MappingError reports a model without required metadata or a query
	// accessor that resolves to no column
	MappingError = schema.MappingError

	// SchemaError reports a table whose synchronization failed
	SchemaError = migrate.SchemaError

	// SyncError lists every table that failed during Initialize
	SyncError = migrate.SyncError

	// ConnectionError reports an unreachable database or an exhausted pool
	ConnectionError = pool.ConnectionError

	// WriteError is delivered through a write handle when a save or delete
	// fails
	WriteError = crud.WriteError
)

var (
	ErrNotFound            = crud.ErrNotFound
	ErrUniqueViolation     = crud.ErrUniqueViolation
	ErrForeignKeyViolation = crud.ErrForeignKeyViolation
	ErrNotNullViolation    = crud.ErrNotNullViolation
	ErrMissingIdentity     = crud.ErrMissingIdentity
	ErrModelUnavailable    = crud.ErrModelUnavailable
	ErrPoolClosed          = pool.ErrClosed
)
