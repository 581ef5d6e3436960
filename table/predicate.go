package table

import (
	"fmt"
	"math"

	"github.com/wkalt/lakelet/schema"
)

/*
Predicates and transforms are the engine's mutation primitives: a predicate
selects the rows an update or delete applies to, and a transform produces the
replacement row for each match. Both are plain functions plus a text rendering
for the commit's operationParameters.

The structured constructors below cover single-column comparisons and column
assignments, which is what the HTTP and CLI surfaces speak. Callers with
richer needs can construct Predicate and Transform values directly.
*/

////////////////////////////////////////////////////////////////////////////////

// Predicate selects rows. Match is called with normalized rows.
type Predicate struct {
	Match func(s *schema.Schema, row schema.Row) (bool, error)
	Text  string
}

// Transform rewrites matched rows. Apply must return a row conforming to the
// schema; it may modify the input in place.
type Transform struct {
	Apply func(s *schema.Schema, row schema.Row) (schema.Row, error)
	Text  string
}

// CompareOp is a comparison operator.
type CompareOp string

const (
	Eq CompareOp = "="
	Ne CompareOp = "!="
	Lt CompareOp = "<"
	Le CompareOp = "<="
	Gt CompareOp = ">"
	Ge CompareOp = ">="
)

// ParseCompareOp parses a comparison operator.
func ParseCompareOp(s string) (CompareOp, error) {
	switch CompareOp(s) {
	case Eq, Ne, Lt, Le, Gt, Ge:
		return CompareOp(s), nil
	default:
		return "", fmt.Errorf("unknown comparison operator: %s", s)
	}
}

// ColumnPredicate returns a predicate comparing a single column to a value.
func ColumnPredicate(column string, op CompareOp, value any) Predicate {
	return Predicate{
		Match: func(s *schema.Schema, row schema.Row) (bool, error) {
			index, ok := s.ColumnIndex(column)
			if !ok {
				return false, fmt.Errorf("no such column: %s", column)
			}
			colType := s.Columns[index].Type
			operand, err := normalizeOperand(colType, value)
			if err != nil {
				return false, fmt.Errorf("column %s: %w", column, err)
			}
			return compare(colType, row[index], operand, op)
		},
		Text: fmt.Sprintf("%s %s %v", column, op, quoted(value)),
	}
}

// AssignOp is an assignment operator.
type AssignOp string

const (
	// Set replaces the column value.
	Set AssignOp = "set"
	// Mul multiplies a numeric column by a factor.
	Mul AssignOp = "mul"
	// Add adds a delta to a numeric column.
	Add AssignOp = "add"
)

// ParseAssignOp parses an assignment operator.
func ParseAssignOp(s string) (AssignOp, error) {
	switch AssignOp(s) {
	case Set, Mul, Add:
		return AssignOp(s), nil
	default:
		return "", fmt.Errorf("unknown assignment operator: %s", s)
	}
}

// Assignment is a single column assignment.
type Assignment struct {
	Column string
	Op     AssignOp
	Value  any
}

// Assignments returns a transform applying the given assignments in order.
func Assignments(assignments ...Assignment) Transform {
	text := ""
	for i, a := range assignments {
		if i > 0 {
			text += ", "
		}
		switch a.Op {
		case Mul:
			text += fmt.Sprintf("%s = %s * %v", a.Column, a.Column, quoted(a.Value))
		case Add:
			text += fmt.Sprintf("%s = %s + %v", a.Column, a.Column, quoted(a.Value))
		default:
			text += fmt.Sprintf("%s = %v", a.Column, quoted(a.Value))
		}
	}
	return Transform{
		Apply: func(s *schema.Schema, row schema.Row) (schema.Row, error) {
			for _, a := range assignments {
				if err := assign(s, row, a); err != nil {
					return nil, err
				}
			}
			return row, nil
		},
		Text: text,
	}
}

func assign(s *schema.Schema, row schema.Row, a Assignment) error {
	index, ok := s.ColumnIndex(a.Column)
	if !ok {
		return fmt.Errorf("no such column: %s", a.Column)
	}
	colType := s.Columns[index].Type
	switch a.Op {
	case Set:
		value, err := normalizeOperand(colType, a.Value)
		if err != nil {
			return fmt.Errorf("column %s: %w", a.Column, err)
		}
		row[index] = value
		return nil
	case Mul, Add:
		operand, err := toFloat(a.Value)
		if err != nil {
			return fmt.Errorf("column %s: %w", a.Column, err)
		}
		switch colType {
		case schema.Int:
			current := row[index].(int64)
			if a.Op == Mul {
				row[index] = int64(float64(current) * operand)
			} else {
				row[index] = int64(float64(current) + operand)
			}
		case schema.Double:
			current := row[index].(float64)
			if a.Op == Mul {
				row[index] = current * operand
			} else {
				row[index] = current + operand
			}
		default:
			return fmt.Errorf("column %s: %s is not numeric", a.Column, colType)
		}
		return nil
	default:
		return fmt.Errorf("unknown assignment operator: %s", a.Op)
	}
}

func normalizeOperand(t schema.Type, value any) (any, error) {
	switch t {
	case schema.Int:
		switch v := value.(type) {
		case int64:
			return v, nil
		case int:
			return int64(v), nil
		case float64:
			if v != math.Trunc(v) {
				return nil, fmt.Errorf("fractional value %v for int column", v)
			}
			return int64(v), nil
		}
	case schema.Double:
		return toFloat(value)
	case schema.String:
		if v, ok := value.(string); ok {
			return v, nil
		}
	case schema.Bool:
		if v, ok := value.(bool); ok {
			return v, nil
		}
	}
	return nil, fmt.Errorf("operand %v (%T) does not conform to %s", value, value, t)
}

func toFloat(value any) (float64, error) {
	switch v := value.(type) {
	case float64:
		return v, nil
	case float32:
		return float64(v), nil
	case int64:
		return float64(v), nil
	case int:
		return float64(v), nil
	default:
		return 0, fmt.Errorf("value %v (%T) is not numeric", value, value)
	}
}

func compare(t schema.Type, left any, right any, op CompareOp) (bool, error) {
	var order int
	switch t {
	case schema.Int:
		order = cmpOrdered(left.(int64), right.(int64))
	case schema.Double:
		order = cmpOrdered(left.(float64), right.(float64))
	case schema.String:
		order = cmpOrdered(left.(string), right.(string))
	case schema.Bool:
		if op != Eq && op != Ne {
			return false, fmt.Errorf("operator %s is not defined for bool", op)
		}
		equal := left.(bool) == right.(bool)
		return (op == Eq) == equal, nil
	default:
		return false, fmt.Errorf("unsupported type %s", t)
	}
	switch op {
	case Eq:
		return order == 0, nil
	case Ne:
		return order != 0, nil
	case Lt:
		return order < 0, nil
	case Le:
		return order <= 0, nil
	case Gt:
		return order > 0, nil
	case Ge:
		return order >= 0, nil
	default:
		return false, fmt.Errorf("unknown comparison operator: %s", op)
	}
}

func cmpOrdered[T int64 | float64 | string](a, b T) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

func quoted(value any) any {
	if s, ok := value.(string); ok {
		return fmt.Sprintf("%q", s)
	}
	return value
}
