// Package query builds parameterized SELECT statements from typed field
// accessors. Values are always bound as parameters, never written into the
// SQL text.
package query

import (
	"fmt"
	"strings"
)

// Operator represents a comparison operator
type Operator int

const (
	OpEqual Operator = iota
	OpNotEqual
	OpGreaterThan
	OpGreaterThanOrEqual
	OpLessThan
	OpLessThanOrEqual

	opInvalid
)

// String returns the string representation of the operator
func (o Operator) String() string {
	switch o {
	case OpEqual:
		return "="
	case OpNotEqual:
		return "!="
	case OpGreaterThan:
		return ">"
	case OpGreaterThanOrEqual:
		return ">="
	case OpLessThan:
		return "<"
	case OpLessThanOrEqual:
		return "<="
	default:
		return "UNKNOWN"
	}
}

// Valid reports whether o is a supported operator
func (o Operator) Valid() bool {
	return o >= OpEqual && o < opInvalid
}

// Op parses an operator symbol. Unknown symbols yield an invalid operator
// that Where reports as an error.
func Op(symbol string) Operator {
	switch strings.TrimSpace(symbol) {
	case "=", "==":
		return OpEqual
	case "!=", "<>":
		return OpNotEqual
	case ">":
		return OpGreaterThan
	case ">=":
		return OpGreaterThanOrEqual
	case "<":
		return OpLessThan
	case "<=":
		return OpLessThanOrEqual
	default:
		return opInvalid
	}
}

// Condition is one predicate on a column. A nil Value with OpEqual or
// OpNotEqual renders IS NULL / IS NOT NULL.
type Condition struct {
	Column   string
	Operator Operator
	Value    interface{}
}

// IsNullCheck reports whether the condition renders without a parameter
func (c *Condition) IsNullCheck() bool {
	return c.Value == nil
}

// ToSQL renders the condition with the given placeholder
func (c *Condition) ToSQL(placeholder string) (string, error) {
	if c.Value == nil {
		switch c.Operator {
		case OpEqual:
			return c.Column + " IS NULL", nil
		case OpNotEqual:
			return c.Column + " IS NOT NULL", nil
		default:
			return "", fmt.Errorf("operator %s cannot compare %s with NULL", c.Operator, c.Column)
		}
	}
	return fmt.Sprintf("%s %s %s", c.Column, c.Operator, placeholder), nil
}

// Direction is the sort direction of an ORDER BY clause
type Direction int

const (
	Asc Direction = iota
	Desc
)

// String returns the SQL keyword
func (d Direction) String() string {
	if d == Desc {
		return "DESC"
	}
	return "ASC"
}

// Order is the single ORDER BY clause of a query
type Order struct {
	Column    string
	Direction Direction
}

// ToSQL renders the ORDER BY clause body
func (o *Order) ToSQL() string {
	return o.Column + " " + o.Direction.String()
}
