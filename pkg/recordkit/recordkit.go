// Package recordkit maps Go structs onto relational tables. Initialize
// registers the models, brings the database schema up to date and returns a
// Runtime that saves, deletes and queries them.
//
//	type Player struct {
//		ID    int    `orm:"id"`
//		Name  string `orm:"column,unique,size=16"`
//		Level int    `orm:"column"`
//		Guild *Guild `orm:"relation,null"`
//	}
//
//	func (Player) TableName() string { return "players" }
//
//	rt, err := recordkit.Initialize(ctx, cfg, []any{Guild{}, Player{}})
//	p, err := recordkit.Save(ctx, rt, &Player{Name: "Steve"}).Wait(ctx)
//	top, err := recordkit.Find[Player](rt).Where(func(p *Player) any { return &p.Level }, recordkit.OpGreaterThan, 10).Get(ctx)
package recordkit

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/conduit-lang/recordkit/internal/config"
	"github.com/conduit-lang/recordkit/internal/logging"
	"github.com/conduit-lang/recordkit/internal/orm/crud"
	"github.com/conduit-lang/recordkit/internal/orm/dialect"
	"github.com/conduit-lang/recordkit/internal/orm/migrate"
	"github.com/conduit-lang/recordkit/internal/orm/pool"
	"github.com/conduit-lang/recordkit/internal/orm/schema"
)

// Config is the runtime configuration, see LoadConfig
type Config = config.Config

// LoadConfig reads recordkit.yml (or path) and RECORDKIT_ environment
// variables
func LoadConfig(path string) (*Config, error) {
	return config.Load(path)
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return config.Default()
}

// Runtime holds the connection pool, write workers and model metadata of one
// database. Independent runtimes share nothing.
type Runtime struct {
	cfg      *Config
	logger   *zap.Logger
	pool     *pool.Pool
	registry *schema.Registry
	sync     *migrate.Synchronizer
	engine   *crud.Engine
	redis    *redis.Client
	report   *migrate.Report
}

type options struct {
	logger   *zap.Logger
	db       *sql.DB
	driver   string
	locker   migrate.Locker
	adapters map[string]schema.Adapter
}

// Option configures Initialize
type Option func(*options)

// WithLogger sets the logger instead of building one from the configuration
func WithLogger(logger *zap.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithDB uses an already opened database handle. driver selects the dialect.
func WithDB(db *sql.DB, driver string) Option {
	return func(o *options) {
		o.db = db
		o.driver = driver
	}
}

// WithLocker sets the migration lock instead of the configured Redis lock
func WithLocker(l migrate.Locker) Option {
	return func(o *options) {
		o.locker = l
	}
}

// WithAdapter registers a custom type adapter referenced by
// `orm:"column,adapter=<name>"`
func WithAdapter(name string, adapter Adapter) Option {
	return func(o *options) {
		o.adapters[name] = adapter
	}
}

// Initialize registers models, connects and synchronizes the schema.
//
// Registration and connection failures return a nil Runtime. When only some
// tables fail to synchronize, Initialize returns a usable Runtime together
// with a *SyncError; operations on the failed models return
// ErrModelUnavailable.
func Initialize(ctx context.Context, cfg *Config, models []interface{}, opts ...Option) (*Runtime, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	c := *cfg
	cfg = &c

	o := &options{adapters: make(map[string]schema.Adapter)}
	for _, opt := range opts {
		opt(o)
	}
	if o.driver != "" {
		cfg.Database.Driver = o.driver
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	logger := o.logger
	if logger == nil {
		var err error
		logger, err = logging.New(cfg.Log.Level, cfg.Log.Development)
		if err != nil {
			return nil, err
		}
	}

	registry := schema.NewRegistry()
	for name, adapter := range o.adapters {
		if err := registry.RegisterAdapter(name, adapter); err != nil {
			return nil, err
		}
	}
	if err := registry.Register(models...); err != nil {
		return nil, err
	}

	rt := &Runtime{cfg: cfg, logger: logger, registry: registry}

	if o.db != nil {
		d, err := dialect.ForDriver(cfg.Database.Driver)
		if err != nil {
			return nil, err
		}
		rt.pool = pool.Wrap(o.db, d, logger.Named("pool"))
	} else {
		p, err := pool.Open(ctx, cfg.PoolConfig(), logger.Named("pool"))
		if err != nil {
			return nil, err
		}
		rt.pool = p
	}

	locker, err := rt.locker(o.locker)
	if err != nil {
		rt.Close()
		return nil, err
	}

	rt.sync = migrate.NewSynchronizer(rt.pool.DB(), rt.pool.Dialect(),
		migrate.WithLocker(locker),
		migrate.WithLogger(logger.Named("migrate")))

	rt.engine = crud.NewEngine(rt.pool, registry, crud.Config{
		Workers:   cfg.Workers,
		QueueSize: cfg.QueueSize,
		Relations: cfg.RelationMode(),
		Logger:    logger.Named("crud"),
	})

	report, err := rt.sync.Migrate(ctx, registry.Models())
	var syncErr *migrate.SyncError
	switch {
	case err == nil:
	case errors.As(err, &syncErr):
		for _, failed := range syncErr.Failed {
			rt.engine.MarkUnavailable(failed.Table, failed)
		}
	default:
		rt.Close()
		return nil, err
	}
	rt.report = report

	logger.Info("recordkit initialized",
		zap.String("dialect", rt.pool.Dialect().Name()),
		zap.Int("models", len(registry.Models())),
		zap.Int("statements", len(report.Statements())),
		zap.Int("failed", len(report.Failed)))

	return rt, err
}

func (rt *Runtime) locker(explicit migrate.Locker) (migrate.Locker, error) {
	if explicit != nil {
		return explicit, nil
	}

	m := rt.cfg.Migration
	if m.LockRedisAddr == "" {
		return migrate.NoopLocker{}, nil
	}

	rt.redis = redis.NewClient(&redis.Options{Addr: m.LockRedisAddr})
	lockCfg := migrate.DefaultRedisLockerConfig(rt.redis)
	if m.LockKey != "" {
		lockCfg.Key = m.LockKey
	}
	lockCfg.TTL = m.LockTTL
	return migrate.NewRedisLocker(lockCfg)
}

// Report returns the outcome of the startup schema synchronization
func (rt *Runtime) Report() *migrate.Report {
	return rt.report
}

// Dialect returns the database dialect name
func (rt *Runtime) Dialect() string {
	return rt.pool.Dialect().Name()
}

// Logger returns the runtime's logger
func (rt *Runtime) Logger() *zap.Logger {
	return rt.logger
}

// DB returns the underlying database handle
func (rt *Runtime) DB() *sql.DB {
	return rt.pool.DB()
}

// Plan returns the statements a new synchronization would execute
func (rt *Runtime) Plan(ctx context.Context) ([]*migrate.MigrationPlan, error) {
	return rt.sync.Plan(ctx, rt.registry.Models())
}

// Inspect reads the live columns of table
func (rt *Runtime) Inspect(ctx context.Context, table string) (*migrate.SchemaSnapshot, error) {
	return rt.sync.Inspector().Snapshot(ctx, table)
}

// Close waits for queued writes, then closes the database handle (including
// one passed with WithDB)
func (rt *Runtime) Close() error {
	if rt.engine != nil {
		rt.engine.Close()
	}

	var errs []error
	if rt.pool != nil {
		errs = append(errs, rt.pool.Close())
	}
	if rt.redis != nil {
		errs = append(errs, rt.redis.Close())
	}
	return errors.Join(errs...)
}
