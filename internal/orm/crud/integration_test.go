package crud

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conduit-lang/recordkit/internal/orm/dialect"
	"github.com/conduit-lang/recordkit/internal/orm/mapper"
	"github.com/conduit-lang/recordkit/internal/orm/migrate"
	"github.com/conduit-lang/recordkit/internal/orm/pool"
	"github.com/conduit-lang/recordkit/internal/orm/schema"
)

type clan struct {
	ID   int64  `orm:"id"`
	Name string `orm:"column,unique,size=32"`
}

func (clan) TableName() string { return "clans" }

type hero struct {
	ID         int64     `orm:"id"`
	Name       string    `orm:"column,unique,size=16"`
	Level      int       `orm:"column"`
	ExternalID uuid.UUID `orm:"column"`
	Tags       []string  `orm:"column"`
	JoinedAt   time.Time `orm:"column"`
	Motto      *string   `orm:"column"`
	Active     bool      `orm:"column"`
	Clan       *clan     `orm:"relation,null"`
}

func (hero) TableName() string { return "heroes" }

func openSQLiteEngine(t *testing.T, mode mapper.RelationMode) *Engine {
	t.Helper()
	ctx := context.Background()

	p, err := pool.Open(ctx, pool.Config{
		Driver: "sqlite3",
		Params: dialect.ConnParams{Database: filepath.Join(t.TempDir(), "crud.db")},
	}, nil)
	require.NoError(t, err)

	reg := schema.NewRegistry()
	require.NoError(t, reg.Register(clan{}, hero{}))

	_, err = migrate.NewSynchronizer(p.DB(), p.Dialect()).Migrate(ctx, reg.Models())
	require.NoError(t, err)

	e := NewEngine(p, reg, Config{Workers: 4, Relations: mode})
	t.Cleanup(func() {
		e.Close()
		p.Close()
	})
	return e
}

func save[T any](t *testing.T, e *Engine, entity *T) *T {
	t.Helper()
	saved, err := Save(context.Background(), e, entity).Wait(context.Background())
	require.NoError(t, err)
	return saved
}

func TestSQLite_RoundTrip(t *testing.T) {
	e := openSQLiteEngine(t, mapper.RelationsEager)
	ctx := context.Background()

	c := save(t, e, &clan{Name: "Builders"})
	require.NotZero(t, c.ID)

	motto := "dig deeper"
	h := save(t, e, &hero{
		Name:       "Steve",
		Level:      5,
		ExternalID: uuid.MustParse("3f2504e0-4f89-11d3-9a0c-0305e82c3301"),
		Tags:       []string{"miner", "builder"},
		JoinedAt:   time.Date(2024, 3, 1, 12, 30, 0, 0, time.UTC),
		Motto:      &motto,
		Active:     true,
		Clan:       c,
	})
	require.NotZero(t, h.ID)

	got, err := FindByID[hero](ctx, e, h.ID)
	require.NoError(t, err)

	assert.Equal(t, h.ID, got.ID)
	assert.Equal(t, h.Name, got.Name)
	assert.Equal(t, h.Level, got.Level)
	assert.Equal(t, h.ExternalID, got.ExternalID)
	assert.Equal(t, h.Tags, got.Tags)
	assert.True(t, h.JoinedAt.Equal(got.JoinedAt), "joined_at %v != %v", h.JoinedAt, got.JoinedAt)
	require.NotNil(t, got.Motto)
	assert.Equal(t, motto, *got.Motto)
	assert.True(t, got.Active)
	require.NotNil(t, got.Clan)
	assert.Equal(t, *c, *got.Clan)
}

func TestSQLite_NullsRoundTrip(t *testing.T) {
	e := openSQLiteEngine(t, mapper.RelationsEager)

	h := save(t, e, &hero{Name: "Alex"})

	got, err := FindByID[hero](context.Background(), e, h.ID)
	require.NoError(t, err)
	assert.Nil(t, got.Motto)
	assert.Nil(t, got.Clan)
	assert.Empty(t, got.Tags)
}

func TestSQLite_UpdateNarrowsWrites(t *testing.T) {
	e := openSQLiteEngine(t, mapper.RelationsReference)
	ctx := context.Background()

	steve := save(t, e, &hero{Name: "Steve", Level: 5})
	alex := save(t, e, &hero{Name: "Alex", Level: 12})

	steve.Level = 6
	steve.Tags = []string{"veteran"}
	save(t, e, steve)

	got, err := FindByID[hero](ctx, e, steve.ID)
	require.NoError(t, err)
	assert.Equal(t, 6, got.Level)
	assert.Equal(t, []string{"veteran"}, got.Tags)

	other, err := FindByID[hero](ctx, e, alex.ID)
	require.NoError(t, err)
	assert.Equal(t, "Alex", other.Name)
	assert.Equal(t, 12, other.Level)
	assert.Empty(t, other.Tags)
}

func TestSQLite_DeleteThenFind(t *testing.T) {
	e := openSQLiteEngine(t, mapper.RelationsEager)
	ctx := context.Background()

	h := save(t, e, &hero{Name: "Steve"})

	_, err := Delete(ctx, e, h).Wait(ctx)
	require.NoError(t, err)

	_, err = FindByID[hero](ctx, e, h.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSQLite_UniqueViolation(t *testing.T) {
	e := openSQLiteEngine(t, mapper.RelationsEager)
	ctx := context.Background()

	first := save(t, e, &hero{Name: "Steve", Level: 5})

	second := &hero{Name: "Steve", Level: 9}
	_, err := Save(ctx, e, second).Wait(ctx)
	require.Error(t, err)
	assert.True(t, IsWriteError(err))
	assert.True(t, IsUniqueViolation(err))
	assert.Zero(t, second.ID)

	kept, err := FindByID[hero](ctx, e, first.ID)
	require.NoError(t, err)
	assert.Equal(t, 5, kept.Level)
}

func TestSQLite_ForeignKeyViolation(t *testing.T) {
	e := openSQLiteEngine(t, mapper.RelationsEager)
	ctx := context.Background()

	_, err := Save(ctx, e, &hero{Name: "Ghost", Clan: &clan{ID: 999}}).Wait(ctx)
	assert.True(t, IsForeignKeyViolation(err))
}

func TestSQLite_EagerFallsBackToReference(t *testing.T) {
	e := openSQLiteEngine(t, mapper.RelationsEager)
	ctx := context.Background()

	c := save(t, e, &clan{Name: "Gone"})
	h := save(t, e, &hero{Name: "Steve", Clan: c})

	// remove the clan behind the foreign key's back; the pragma is per connection
	conn, err := e.Pool().Conn(ctx)
	require.NoError(t, err)
	for _, stmt := range []string{"PRAGMA foreign_keys = OFF", "DELETE FROM clans", "PRAGMA foreign_keys = ON"} {
		_, err = conn.ExecContext(ctx, stmt)
		require.NoError(t, err)
	}
	require.NoError(t, conn.Close())

	got, err := FindByID[hero](ctx, e, h.ID)
	require.NoError(t, err)
	require.NotNil(t, got.Clan)
	assert.Equal(t, clan{ID: c.ID}, *got.Clan)
}
