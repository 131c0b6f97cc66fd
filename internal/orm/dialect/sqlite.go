package dialect

import (
	"errors"
	"net/url"
	"sort"
	"strings"

	"github.com/mattn/go-sqlite3"

	"github.com/conduit-lang/recordkit/internal/orm/schema"
)

// SQLite uses go-sqlite3. ConnParams.Database is the file path.
type SQLite struct{}

func (SQLite) Name() string       { return "sqlite3" }
func (SQLite) DriverName() string { return "sqlite3" }

// DSN enables foreign key enforcement and a busy timeout so that the pooled
// connections wait for each other instead of failing with SQLITE_BUSY
func (SQLite) DSN(p ConnParams) string {
	params := map[string]string{
		"_foreign_keys": "on",
		"_busy_timeout": "5000",
	}
	for k, v := range p.Params {
		params[k] = v
	}

	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	pairs := make([]string, 0, len(keys))
	for _, k := range keys {
		pairs = append(pairs, url.QueryEscape(k)+"="+url.QueryEscape(params[k]))
	}
	return "file:" + p.Database + "?" + strings.Join(pairs, "&")
}

func (SQLite) Placeholder(int) string { return "?" }

func (SQLite) ColumnsQuery() string {
	return "SELECT name, type FROM pragma_table_info(?) ORDER BY cid"
}

func (SQLite) TablesQuery() string {
	return "SELECT name FROM sqlite_master WHERE type = 'table' AND name NOT LIKE 'sqlite_%' ORDER BY name"
}

func (SQLite) ColumnType(t schema.SemanticType, length int) string {
	switch t {
	case schema.TypeInteger, schema.TypeBigInteger:
		return "INTEGER"
	case schema.TypeFloat:
		return "REAL"
	case schema.TypeBoolean:
		return "BOOLEAN"
	case schema.TypeString, schema.TypeEnum:
		return varchar(length)
	case schema.TypeUUID:
		return "VARCHAR(36)"
	case schema.TypeTimestamp:
		// go-sqlite3 decodes TIMESTAMP/DATETIME declared columns into time.Time
		return "TIMESTAMP"
	default:
		return "TEXT"
	}
}

func (SQLite) IdentityDefinition(schema.SemanticType) string {
	return "INTEGER PRIMARY KEY AUTOINCREMENT"
}

func (SQLite) ReturningIdentity() bool { return false }

func (SQLite) EmptyInsert(table string) string {
	return "INSERT INTO " + table + " DEFAULT VALUES"
}

func (SQLite) Classify(err error) Violation {
	var sqErr sqlite3.Error
	if !errors.As(err, &sqErr) {
		return ViolationNone
	}
	switch sqErr.ExtendedCode {
	case sqlite3.ErrConstraintUnique, sqlite3.ErrConstraintPrimaryKey:
		return ViolationUnique
	case sqlite3.ErrConstraintForeignKey:
		return ViolationForeignKey
	case sqlite3.ErrConstraintNotNull:
		return ViolationNotNull
	}
	return ViolationNone
}
