package mapper

import (
	"database/sql"
	"strings"
)

// Row is one result row with its column names, as returned by the driver
type Row struct {
	Columns []string
	Values  []interface{}
}

// Get returns the raw value of a column, ignoring case
func (r Row) Get(column string) (interface{}, bool) {
	for i, c := range r.Columns {
		if strings.EqualFold(c, column) {
			return r.Values[i], true
		}
	}
	return nil, false
}

// ScanRows scans every remaining row. The caller closes rows.
func ScanRows(rows *sql.Rows) ([]Row, error) {
	columns, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	var results []Row
	for rows.Next() {
		values := make([]interface{}, len(columns))
		valuePtrs := make([]interface{}, len(columns))
		for i := range values {
			valuePtrs[i] = &values[i]
		}

		if err := rows.Scan(valuePtrs...); err != nil {
			return nil, err
		}

		results = append(results, Row{Columns: columns, Values: values})
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return results, nil
}
