// Package crud is the active-record persistence engine. Writes run on a
// bounded worker pool and report through async handles; reads run on the
// caller's goroutine.
package crud

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"sync"

	"go.uber.org/zap"

	"github.com/conduit-lang/recordkit/internal/orm/async"
	"github.com/conduit-lang/recordkit/internal/orm/dialect"
	"github.com/conduit-lang/recordkit/internal/orm/mapper"
	"github.com/conduit-lang/recordkit/internal/orm/pool"
	"github.com/conduit-lang/recordkit/internal/orm/schema"
)

// Operation represents a CRUD operation type
type Operation int

const (
	// OperationCreate represents a create operation
	OperationCreate Operation = iota
	// OperationRead represents a read operation
	OperationRead
	// OperationUpdate represents an update operation
	OperationUpdate
	// OperationDelete represents a delete operation
	OperationDelete
)

// String returns the string representation of the operation
func (o Operation) String() string {
	switch o {
	case OperationCreate:
		return "create"
	case OperationRead:
		return "read"
	case OperationUpdate:
		return "update"
	case OperationDelete:
		return "delete"
	default:
		return "unknown"
	}
}

// Config configures an Engine
type Config struct {
	Workers   int
	QueueSize int
	Relations mapper.RelationMode
	Logger    *zap.Logger
}

// Engine performs inserts, updates, deletes and lookups for registered
// models. Two writes enqueued back to back may run in either order; the
// database decides the last writer.
type Engine struct {
	pool      *pool.Pool
	registry  *schema.Registry
	dialect   dialect.Dialect
	scheduler *async.Pool
	mapper    *mapper.Mapper
	refs      *mapper.Mapper
	logger    *zap.Logger

	mu          sync.RWMutex
	unavailable map[string]error
}

// NewEngine creates an engine and starts its write workers
func NewEngine(p *pool.Pool, registry *schema.Registry, cfg Config) *Engine {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	e := &Engine{
		pool:        p,
		registry:    registry,
		dialect:     p.Dialect(),
		scheduler:   async.NewPool(cfg.Workers, cfg.QueueSize, logger.Named("writes")),
		refs:        mapper.New(mapper.RelationsReference, nil),
		logger:      logger,
		unavailable: make(map[string]error),
	}
	e.mapper = mapper.New(cfg.Relations, e)
	e.scheduler.Start()
	return e
}

// Registry returns the metadata registry
func (e *Engine) Registry() *schema.Registry {
	return e.registry
}

// Dialect returns the database dialect
func (e *Engine) Dialect() dialect.Dialect {
	return e.dialect
}

// Pool returns the connection pool
func (e *Engine) Pool() *pool.Pool {
	return e.pool
}

// RelationMode returns how relations are populated on read
func (e *Engine) RelationMode() mapper.RelationMode {
	return e.mapper.Mode()
}

// Close waits for queued writes to finish and stops the workers
func (e *Engine) Close() {
	e.scheduler.Shutdown()
}

// MarkUnavailable rejects every later operation on table with cause
func (e *Engine) MarkUnavailable(table string, cause error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.unavailable[table] = cause
}

func (e *Engine) checkAvailable(desc *schema.EntityDescriptor) error {
	e.mu.RLock()
	cause, ok := e.unavailable[desc.Table]
	e.mu.RUnlock()
	if !ok {
		return nil
	}
	return fmt.Errorf("%s: %w: %w", desc.Name, ErrModelUnavailable, cause)
}

// describe resolves a model type and checks it may be used
func (e *Engine) describe(t reflect.Type) (*schema.EntityDescriptor, error) {
	desc, err := e.registry.Describe(t)
	if err != nil {
		return nil, err
	}
	if err := e.checkAvailable(desc); err != nil {
		return nil, err
	}
	return desc, nil
}

// submit schedules a write of desc. Every failure reaches the handle as a
// *WriteError; a stopped scheduler also matches pool.ErrClosed.
func submit[T any](ctx context.Context, e *Engine, op Operation, desc *schema.EntityDescriptor, fn func(ctx context.Context) (T, error)) *async.Handle[T] {
	return async.SubmitWrapped(e.scheduler, ctx, op.String()+" "+desc.Table, fn, func(err error) error {
		if errors.Is(err, async.ErrPoolClosed) {
			err = fmt.Errorf("%w: %w", pool.ErrClosed, err)
		}
		if IsWriteError(err) {
			return err
		}
		return &WriteError{Op: op, Entity: desc.Name, Err: err}
	})
}

func typeOf[T any]() reflect.Type {
	return reflect.TypeOf((*T)(nil)).Elem()
}
