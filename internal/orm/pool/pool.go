// Package pool owns the process-wide database handle. Every operation
// acquires a dedicated connection for its duration and releases it when done.
package pool

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/conduit-lang/recordkit/internal/orm/dialect"
)

// DefaultMaxPoolSize is the connection limit when none is configured
const DefaultMaxPoolSize = 20

// Config configures a connection pool
type Config struct {
	Driver          string
	Params          dialect.ConnParams
	MaxPoolSize     int
	ConnMaxLifetime time.Duration
	PingTimeout     time.Duration
}

// Pool wraps a *sql.DB bounded to MaxPoolSize open connections
type Pool struct {
	db      *sql.DB
	dialect dialect.Dialect
	logger  *zap.Logger
	closed  atomic.Bool
}

// Open opens and pings the database described by cfg
func Open(ctx context.Context, cfg Config, logger *zap.Logger) (*Pool, error) {
	d, err := dialect.ForDriver(cfg.Driver)
	if err != nil {
		return nil, &ConnectionError{Op: "open", Err: err}
	}

	if cfg.MaxPoolSize <= 0 {
		cfg.MaxPoolSize = DefaultMaxPoolSize
	}
	if cfg.PingTimeout <= 0 {
		cfg.PingTimeout = 5 * time.Second
	}

	db, err := sql.Open(d.DriverName(), d.DSN(cfg.Params))
	if err != nil {
		return nil, &ConnectionError{Op: "open", Err: err}
	}
	db.SetMaxOpenConns(cfg.MaxPoolSize)
	db.SetMaxIdleConns(cfg.MaxPoolSize)
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	p := Wrap(db, d, logger)

	pingCtx, cancel := context.WithTimeout(ctx, cfg.PingTimeout)
	defer cancel()
	if err := p.Ping(pingCtx); err != nil {
		db.Close()
		return nil, err
	}

	p.logger.Info("database pool opened",
		zap.String("dialect", d.Name()),
		zap.String("host", cfg.Params.Host),
		zap.String("database", cfg.Params.Database),
		zap.Int("max_pool_size", cfg.MaxPoolSize))

	return p, nil
}

// Wrap adopts an already opened database handle
func Wrap(db *sql.DB, d dialect.Dialect, logger *zap.Logger) *Pool {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pool{db: db, dialect: d, logger: logger}
}

// DB returns the underlying handle
func (p *Pool) DB() *sql.DB {
	return p.db
}

// Dialect returns the dialect of the pooled database
func (p *Pool) Dialect() dialect.Dialect {
	return p.dialect
}

// Ping verifies the database is reachable
func (p *Pool) Ping(ctx context.Context) error {
	if p.closed.Load() {
		return ErrClosed
	}
	if err := p.db.PingContext(ctx); err != nil {
		return &ConnectionError{Op: "ping", Err: err}
	}
	return nil
}

// Conn acquires a dedicated connection. The caller must close it.
func (p *Pool) Conn(ctx context.Context) (*sql.Conn, error) {
	if p.closed.Load() {
		return nil, ErrClosed
	}
	conn, err := p.db.Conn(ctx)
	if err != nil {
		return nil, &ConnectionError{Op: "acquire", Err: err}
	}
	return conn, nil
}

// WithConn runs fn on a dedicated connection and releases it afterwards,
// whether fn succeeds or not
func (p *Pool) WithConn(ctx context.Context, fn func(conn *sql.Conn) error) error {
	conn, err := p.Conn(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := conn.Close(); cerr != nil && !errors.Is(cerr, sql.ErrConnDone) {
			p.logger.Warn("failed to release connection", zap.Error(cerr))
		}
	}()
	return fn(conn)
}

// Stats returns the database/sql pool statistics
func (p *Pool) Stats() sql.DBStats {
	return p.db.Stats()
}

// Close closes the pool. Later operations fail with ErrClosed.
func (p *Pool) Close() error {
	if !p.closed.CompareAndSwap(false, true) {
		return nil
	}
	if err := p.db.Close(); err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}
	return nil
}
