package migrate

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/conduit-lang/recordkit/internal/orm/dialect"
	"github.com/conduit-lang/recordkit/internal/orm/schema"
)

// Synchronizer reconciles the live schema with entity descriptors
type Synchronizer struct {
	db        DB
	inspector *Inspector
	differ    *Differ
	generator *Generator
	locker    Locker
	logger    *zap.Logger
}

// Option configures a Synchronizer
type Option func(*Synchronizer)

// WithLocker serializes Migrate calls across processes
func WithLocker(l Locker) Option {
	return func(s *Synchronizer) {
		if l != nil {
			s.locker = l
		}
	}
}

// WithLogger sets the synchronizer's logger
func WithLogger(logger *zap.Logger) Option {
	return func(s *Synchronizer) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewSynchronizer creates a new schema synchronizer
func NewSynchronizer(db DB, d dialect.Dialect, opts ...Option) *Synchronizer {
	s := &Synchronizer{
		db:        db,
		inspector: NewInspector(db, d),
		differ:    NewDiffer(),
		generator: NewGenerator(d),
		locker:    NoopLocker{},
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Inspector returns the catalog inspector
func (s *Synchronizer) Inspector() *Inspector {
	return s.inspector
}

// Report describes one Migrate call
type Report struct {
	// Plans holds a plan per synchronized table in execution order,
	// including empty plans for tables already up to date
	Plans  []*MigrationPlan
	Failed []*SchemaError
}

// Statements returns every statement executed successfully
func (r *Report) Statements() []string {
	var statements []string
	for _, p := range r.Plans {
		statements = append(statements, p.Statements...)
	}
	return statements
}

// Err returns a *SyncError when any table failed, nil otherwise
func (r *Report) Err() error {
	if len(r.Failed) == 0 {
		return nil
	}
	return &SyncError{Failed: r.Failed}
}

// Plan computes the migration plans and their statements without executing
// anything
func (s *Synchronizer) Plan(ctx context.Context, descs []*schema.EntityDescriptor) ([]*MigrationPlan, error) {
	plans := make([]*MigrationPlan, 0, len(descs))
	for _, desc := range s.order(descs) {
		plan, err := s.planTable(ctx, desc)
		if err != nil {
			return nil, &SchemaError{Table: desc.Table, Err: err}
		}
		plans = append(plans, plan)
	}
	return plans, nil
}

// Migrate brings every table up to date. Referenced tables are migrated
// before the tables referencing them. A failing table does not stop the
// others; tables referencing a failed table are skipped. The returned error
// is a *SyncError listing the failed tables, or a lock error.
func (s *Synchronizer) Migrate(ctx context.Context, descs []*schema.EntityDescriptor) (*Report, error) {
	release, err := s.locker.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := release(context.WithoutCancel(ctx)); err != nil {
			s.logger.Warn("failed to release migration lock", zap.Error(err))
		}
	}()

	report := &Report{}
	failed := make(map[*schema.EntityDescriptor]bool)

	for _, desc := range s.order(descs) {
		if serr := s.migrateTable(ctx, desc, failed, report); serr != nil {
			failed[desc] = true
			report.Failed = append(report.Failed, serr)
			s.logger.Error("schema sync failed",
				zap.String("table", desc.Table),
				zap.String("statement", serr.Statement),
				zap.Error(serr.Err))
		}
	}

	return report, report.Err()
}

func (s *Synchronizer) migrateTable(
	ctx context.Context,
	desc *schema.EntityDescriptor,
	failed map[*schema.EntityDescriptor]bool,
	report *Report,
) *SchemaError {
	for _, fk := range desc.ForeignKeys {
		if fk.Target != desc && failed[fk.Target] {
			return &SchemaError{Table: desc.Table, Err: fmt.Errorf("%w: %s", ErrDependencyFailed, fk.RefTable())}
		}
	}

	plan, err := s.planTable(ctx, desc)
	if err != nil {
		return &SchemaError{Table: desc.Table, Err: err}
	}

	if plan.Empty() {
		s.logger.Debug("schema up to date", zap.String("table", desc.Table))
		report.Plans = append(report.Plans, plan)
		return nil
	}

	statements := plan.Statements
	plan.Statements = nil
	report.Plans = append(report.Plans, plan)

	for _, stmt := range statements {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return &SchemaError{Table: desc.Table, Statement: stmt, Err: err}
		}
		plan.Statements = append(plan.Statements, stmt)
		s.logger.Info("applied schema change",
			zap.String("table", desc.Table),
			zap.String("statement", stmt))
	}

	return nil
}

func (s *Synchronizer) planTable(ctx context.Context, desc *schema.EntityDescriptor) (*MigrationPlan, error) {
	snap, err := s.inspector.Snapshot(ctx, desc.Table)
	if err != nil {
		return nil, err
	}

	plan := s.differ.Diff(desc, snap)
	if plan.Empty() {
		return plan, nil
	}
	if _, err := s.generator.Generate(desc, plan); err != nil {
		return nil, err
	}
	return plan, nil
}

// order returns descs with dependencies first. On a relationship cycle the
// input order is kept.
func (s *Synchronizer) order(descs []*schema.EntityDescriptor) []*schema.EntityDescriptor {
	sorted, err := schema.NewRelationshipGraph(descs).TopologicalSort()
	if err != nil {
		s.logger.Warn("relationship cycle, migrating in registration order", zap.Error(err))
		return descs
	}
	return sorted
}
