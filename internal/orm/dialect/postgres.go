package dialect

import (
	"errors"
	"net"
	"net/url"
	"strconv"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib" // registers the "pgx" driver
	"github.com/lib/pq"

	"github.com/conduit-lang/recordkit/internal/orm/schema"
)

// Postgres serves both the pgx and lib/pq drivers. Driver selects which one
// is opened; an empty Driver means pgx.
type Postgres struct {
	Driver string
}

func (Postgres) Name() string { return "postgres" }

func (p Postgres) DriverName() string {
	if p.Driver == "" {
		return "pgx"
	}
	return p.Driver
}

// DSN builds a postgres:// URL understood by both drivers. sslmode defaults
// to disable unless set in Params.
func (Postgres) DSN(p ConnParams) string {
	port := p.Port
	if port == 0 {
		port = 5432
	}
	u := url.URL{
		Scheme: "postgres",
		Host:   net.JoinHostPort(p.Host, strconv.Itoa(port)),
		Path:   "/" + p.Database,
	}
	if p.User != "" {
		if p.Password != "" {
			u.User = url.UserPassword(p.User, p.Password)
		} else {
			u.User = url.User(p.User)
		}
	}

	q := url.Values{}
	for k, v := range p.Params {
		q.Set(k, v)
	}
	if q.Get("sslmode") == "" {
		q.Set("sslmode", "disable")
	}
	u.RawQuery = q.Encode()
	return u.String()
}

func (Postgres) Placeholder(n int) string { return "$" + strconv.Itoa(n) }

func (Postgres) ColumnsQuery() string {
	return "SELECT column_name, data_type FROM information_schema.columns " +
		"WHERE table_schema = current_schema() AND table_name = lower($1) ORDER BY ordinal_position"
}

func (Postgres) TablesQuery() string {
	return "SELECT table_name FROM information_schema.tables " +
		"WHERE table_schema = current_schema() AND table_type = 'BASE TABLE' ORDER BY table_name"
}

func (Postgres) ColumnType(t schema.SemanticType, length int) string {
	switch t {
	case schema.TypeInteger:
		return "INTEGER"
	case schema.TypeBigInteger:
		return "BIGINT"
	case schema.TypeFloat:
		return "DOUBLE PRECISION"
	case schema.TypeBoolean:
		return "BOOLEAN"
	case schema.TypeString, schema.TypeEnum:
		return varchar(length)
	case schema.TypeUUID:
		return "VARCHAR(36)"
	case schema.TypeTimestamp:
		return "TIMESTAMP WITH TIME ZONE"
	default:
		return "TEXT"
	}
}

func (Postgres) IdentityDefinition(t schema.SemanticType) string {
	if t == schema.TypeBigInteger {
		return "BIGSERIAL PRIMARY KEY"
	}
	return "SERIAL PRIMARY KEY"
}

func (Postgres) ReturningIdentity() bool { return true }

func (Postgres) EmptyInsert(table string) string {
	return "INSERT INTO " + table + " DEFAULT VALUES"
}

// Classify maps SQLSTATE codes from either driver
func (Postgres) Classify(err error) Violation {
	var code string

	var pgErr *pgconn.PgError
	var pqErr *pq.Error
	switch {
	case errors.As(err, &pgErr):
		code = pgErr.Code
	case errors.As(err, &pqErr):
		code = string(pqErr.Code)
	default:
		return ViolationNone
	}

	switch code {
	case "23505": // unique_violation
		return ViolationUnique
	case "23503": // foreign_key_violation
		return ViolationForeignKey
	case "23502": // not_null_violation
		return ViolationNotNull
	}
	return ViolationNone
}
