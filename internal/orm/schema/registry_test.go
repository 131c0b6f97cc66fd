package schema

import (
	"reflect"
	"strconv"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type Rank string

type Guild struct {
	ID   int64  `orm:"id"`
	Name string `orm:"column,unique,size=32"`
}

func (Guild) TableName() string { return "guilds" }

type Player struct {
	ID         int       `orm:"id"`
	Name       string    `orm:"column,name=player_name,unique,size=16"`
	Level      int       `orm:"column"`
	ExternalID uuid.UUID `orm:"column"`
	Rank       Rank      `orm:"column"`
	Tags       []string  `orm:"column"`
	JoinedAt   time.Time `orm:"column"`
	Nickname   *string   `orm:"column"`
	Bio        string    `orm:"column,null"`
	Guild      *Guild    `orm:"relation,null"`
	Ignored    string
}

func (Player) TableName() string { return "players" }

type NoTable struct {
	ID int `orm:"id"`
}

type NoIdentity struct {
	Name string `orm:"column"`
}

func (NoIdentity) TableName() string { return "no_identity" }

type TwoIdentities struct {
	ID  int `orm:"id"`
	Alt int `orm:"id,name=alt"`
}

func (TwoIdentities) TableName() string { return "two_identities" }

type Unmapped struct {
	ID    int               `orm:"id"`
	Attrs map[string]string `orm:"column"`
}

func (Unmapped) TableName() string { return "unmapped" }

type Duplicate struct {
	ID       int    `orm:"id"`
	Name     string `orm:"column"`
	Nickname string `orm:"column,name=name"`
}

func (Duplicate) TableName() string { return "duplicates" }

type Employee struct {
	ID      int64     `orm:"id"`
	Manager *Employee `orm:"relation,null"`
}

func (*Employee) TableName() string { return "employees" }

type Color struct{ R, G, B uint8 }

type Widget struct {
	ID    int   `orm:"id"`
	Color Color `orm:"column,adapter=color"`
}

func (Widget) TableName() string { return "widgets" }

type Raid struct {
	ID     int    `orm:"id"`
	LeadID int    `orm:"column,name=lead_id"`
	Lead   *Squad `orm:"relation"`
}

func (Raid) TableName() string { return "raids" }

type Squad struct {
	ID   int   `orm:"id"`
	Raid *Raid `orm:"relation,null"`
}

func (Squad) TableName() string { return "squads" }

func colorAdapter() Adapter {
	return MustAdapter(
		func(c Color) (string, error) {
			return strconv.Itoa(int(c.R)) + "," + strconv.Itoa(int(c.G)) + "," + strconv.Itoa(int(c.B)), nil
		},
		func(s string) (Color, error) { return Color{}, nil },
	)
}

func TestDescribe_Player(t *testing.T) {
	r := NewRegistry()

	desc, err := r.DescribeOf(&Player{})
	require.NoError(t, err)

	assert.Equal(t, "players", desc.Table)
	assert.Equal(t, "Player", desc.Name)
	require.NotNil(t, desc.Identity)
	assert.Equal(t, "id", desc.Identity.Name)
	assert.Equal(t, TypeInteger, desc.Identity.Type)

	assert.Equal(t, []string{
		"id", "player_name", "level", "external_id", "rank", "tags", "joined_at", "nickname", "bio", "guild_id",
	}, desc.ColumnNames())

	name, ok := desc.Column("player_name")
	require.True(t, ok)
	assert.True(t, name.Unique)
	assert.Equal(t, 16, name.Length)
	assert.False(t, name.Nullable)

	ext, _ := desc.Column("external_id")
	assert.Equal(t, TypeUUID, ext.Type)

	rank, _ := desc.Column("rank")
	assert.Equal(t, TypeEnum, rank.Type)

	tags, _ := desc.Column("tags")
	assert.Equal(t, TypeList, tags.Type)

	joined, _ := desc.Column("joined_at")
	assert.Equal(t, TypeTimestamp, joined.Type)

	nick, _ := desc.Column("nickname")
	assert.True(t, nick.Nullable, "pointer fields are nullable")

	bio, _ := desc.Column("bio")
	assert.True(t, bio.Nullable)

	require.Len(t, desc.ForeignKeys, 1)
	fk := desc.ForeignKeys[0]
	assert.Equal(t, "guild_id", fk.Column)
	assert.Equal(t, "guilds", fk.RefTable())
	assert.Equal(t, "id", fk.RefColumn())
	assert.Equal(t, TypeBigInteger, fk.StorageType())
	assert.True(t, fk.Nullable)

	_, ok = desc.Column("ignored")
	assert.False(t, ok, "untagged fields are not persisted")
}

func TestDescribe_IsCached(t *testing.T) {
	r := NewRegistry()

	first, err := r.Describe(reflect.TypeOf(Player{}))
	require.NoError(t, err)
	second, err := r.DescribeOf(&Player{})
	require.NoError(t, err)

	assert.Same(t, first, second)
	// Player pulls in Guild through its relation
	assert.Equal(t, 2, r.Count())
}

func TestDescribe_Errors(t *testing.T) {
	r := NewRegistry()

	tests := []struct {
		name  string
		model interface{}
	}{
		{"no table name", NoTable{}},
		{"no identity", NoIdentity{}},
		{"two identities", TwoIdentities{}},
		{"unrecognized type", Unmapped{}},
		{"duplicate column", Duplicate{}},
		{"not a struct", 42},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := r.DescribeOf(tt.model)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrMapping)
			assert.True(t, IsMappingError(err))
		})
	}
}

func TestDescribe_SelfReference(t *testing.T) {
	r := NewRegistry()

	desc, err := r.DescribeOf(&Employee{})
	require.NoError(t, err)
	require.Len(t, desc.ForeignKeys, 1)
	assert.Same(t, desc, desc.ForeignKeys[0].Target)
	assert.Equal(t, "manager_id", desc.ForeignKeys[0].Column)
}

func TestDescribe_Adapter(t *testing.T) {
	r := NewRegistry()

	_, err := r.DescribeOf(Widget{})
	require.Error(t, err, "adapter must be registered first")

	require.NoError(t, r.RegisterAdapter("color", colorAdapter()))
	assert.Error(t, r.RegisterAdapter("color", colorAdapter()))

	desc, err := r.DescribeOf(Widget{})
	require.NoError(t, err)
	col, ok := desc.Column("color")
	require.True(t, ok)
	assert.Equal(t, TypeCustom, col.Type)
	assert.Equal(t, TypeString, col.StorageType())
	assert.Equal(t, "color", col.AdapterName)
}

func TestRegister_OrderAndDependencies(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(&Player{}, Guild{}, &Player{}))

	models := r.Models()
	require.Len(t, models, 2)
	assert.Equal(t, "players", models[0].Table)
	assert.Equal(t, "guilds", models[1].Table)

	ordered, err := r.DependencyOrder()
	require.NoError(t, err)
	assert.Equal(t, "guilds", ordered[0].Table)
	assert.Equal(t, "players", ordered[1].Table)

	byTable, ok := r.ByTable("PLAYERS")
	require.True(t, ok)
	assert.Same(t, models[0], byTable)
}

func TestRegister_UnregisteredRelationTarget(t *testing.T) {
	r := NewRegistry()

	err := r.Register(Player{})
	require.Error(t, err)
	var mappingErr *MappingError
	require.ErrorAs(t, err, &mappingErr)
	assert.Equal(t, "Player", mappingErr.Entity)
	assert.Equal(t, "Guild", mappingErr.Field)
	assert.Contains(t, err.Error(), "relation target Guild is not registered")
	assert.Empty(t, r.Models())

	require.NoError(t, r.Register(Guild{}))
	require.NoError(t, r.Register(Player{}))
	assert.Len(t, r.Models(), 2)
}

func TestDescribe_FailedCycleCachesNothing(t *testing.T) {
	r := NewRegistry()

	// lead_id collides with the column of the Lead relation, after Squad
	// has been built against the partial Raid
	_, err := r.DescribeOf(Raid{})
	require.Error(t, err)
	assert.True(t, IsMappingError(err))
	assert.Zero(t, r.Count())

	_, ok := r.ByTable("squads")
	assert.False(t, ok)

	_, err = r.DescribeOf(Squad{})
	require.Error(t, err, "Squad cannot resolve without a valid Raid")
	assert.Zero(t, r.Count())
}

func TestDescriptor_FieldLookups(t *testing.T) {
	r := NewRegistry()
	desc, err := r.DescribeOf(Player{})
	require.NoError(t, err)

	col, ok := desc.ColumnForField("Level")
	require.True(t, ok)
	assert.Equal(t, "level", col.Name)

	fk, ok := desc.ForeignKeyForField("Guild")
	require.True(t, ok)
	assert.Equal(t, "guild_id", fk.Column)

	_, ok = desc.ColumnForField("Guild")
	assert.False(t, ok)
	_, ok = desc.ForeignKeyForField("Level")
	assert.False(t, ok)

	assert.Len(t, desc.DataColumns(), len(desc.Columns)-1)
}

func TestParseTag(t *testing.T) {
	tag, err := parseTag("column,name=nick,unique,size=16,null")
	require.NoError(t, err)
	assert.Equal(t, tagColumn, tag.kind)
	assert.Equal(t, "nick", tag.name)
	assert.True(t, tag.unique)
	assert.True(t, tag.nullable)
	assert.Equal(t, 16, tag.size)

	for _, bad := range []string{"colum", "column,size=abc", "column,name=", "column,bogus", "relation,name=x"} {
		_, err := parseTag(bad)
		assert.Error(t, err, bad)
	}

	tag, err = parseTag("-")
	require.NoError(t, err)
	assert.Equal(t, tagNone, tag.kind)
}

func TestToSnakeCase(t *testing.T) {
	tests := map[string]string{
		"Level":      "level",
		"ExternalID": "external_id",
		"JoinedAt":   "joined_at",
		"HTTPServer": "http_server",
		"Address2":   "address2",
		"guild":      "guild",
	}
	for in, want := range tests {
		assert.Equal(t, want, ToSnakeCase(in), in)
	}
}

func TestIsValidIdentifier(t *testing.T) {
	assert.True(t, IsValidIdentifier("player_name"))
	assert.True(t, IsValidIdentifier("_x1"))
	assert.False(t, IsValidIdentifier(""))
	assert.False(t, IsValidIdentifier("1abc"))
	assert.False(t, IsValidIdentifier("name; DROP TABLE x"))
}
