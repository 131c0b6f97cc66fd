package dialect

import (
	"errors"
	"net"
	"strconv"

	"github.com/go-sql-driver/mysql"

	"github.com/conduit-lang/recordkit/internal/orm/schema"
)

// MySQL is the reference dialect
type MySQL struct{}

func (MySQL) Name() string       { return "mysql" }
func (MySQL) DriverName() string { return "mysql" }

// DSN builds a go-sql-driver DSN. Timestamps are parsed into time.Time.
func (MySQL) DSN(p ConnParams) string {
	cfg := mysql.NewConfig()
	cfg.User = p.User
	cfg.Passwd = p.Password
	cfg.Net = "tcp"
	port := p.Port
	if port == 0 {
		port = 3306
	}
	cfg.Addr = net.JoinHostPort(p.Host, strconv.Itoa(port))
	cfg.DBName = p.Database
	cfg.ParseTime = true
	if len(p.Params) > 0 {
		cfg.Params = make(map[string]string, len(p.Params))
		for k, v := range p.Params {
			cfg.Params[k] = v
		}
	}
	return cfg.FormatDSN()
}

func (MySQL) Placeholder(int) string { return "?" }

func (MySQL) ColumnsQuery() string {
	return "SELECT column_name, column_type FROM information_schema.columns " +
		"WHERE table_schema = DATABASE() AND table_name = ? ORDER BY ordinal_position"
}

func (MySQL) TablesQuery() string {
	return "SELECT table_name FROM information_schema.tables " +
		"WHERE table_schema = DATABASE() AND table_type = 'BASE TABLE' ORDER BY table_name"
}

func (MySQL) ColumnType(t schema.SemanticType, length int) string {
	switch t {
	case schema.TypeInteger:
		return "INT"
	case schema.TypeBigInteger:
		return "BIGINT"
	case schema.TypeFloat:
		return "DOUBLE"
	case schema.TypeBoolean:
		return "BOOLEAN"
	case schema.TypeString, schema.TypeEnum:
		return varchar(length)
	case schema.TypeUUID:
		return "VARCHAR(36)"
	case schema.TypeTimestamp:
		return "DATETIME(6)"
	default:
		return "TEXT"
	}
}

func (m MySQL) IdentityDefinition(t schema.SemanticType) string {
	return m.ColumnType(t, 0) + " PRIMARY KEY AUTO_INCREMENT"
}

func (MySQL) ReturningIdentity() bool { return false }

func (MySQL) EmptyInsert(table string) string {
	return "INSERT INTO " + table + " () VALUES ()"
}

// Classify maps MySQL server error numbers
func (MySQL) Classify(err error) Violation {
	var myErr *mysql.MySQLError
	if !errors.As(err, &myErr) {
		return ViolationNone
	}
	switch myErr.Number {
	case 1062: // ER_DUP_ENTRY
		return ViolationUnique
	case 1451, 1452: // ER_ROW_IS_REFERENCED_2, ER_NO_REFERENCED_ROW_2
		return ViolationForeignKey
	case 1048, 1364: // ER_BAD_NULL_ERROR, ER_NO_DEFAULT_FOR_FIELD
		return ViolationNotNull
	}
	return ViolationNone
}
