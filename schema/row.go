package schema

import (
	"fmt"
	"math"
)

/*
Row handling: validation and normalization of positional row values against a
schema.
*/

////////////////////////////////////////////////////////////////////////////////

// Row is one row of values, positionally conforming to a schema.
type Row []any

// Normalize coerces a row into the canonical representation for each column
// type: int64 for int, float64 for double, string for string, bool for bool.
// JSON-decoded numeric values are accepted for the numeric types, with
// fractional values rejected for int columns.
func (s *Schema) Normalize(row Row) (Row, error) {
	if len(row) != len(s.Columns) {
		return nil, fmt.Errorf("row has %d values, schema has %d columns", len(row), len(s.Columns))
	}
	out := make(Row, len(row))
	for i, col := range s.Columns {
		value, err := normalizeValue(col.Type, row[i])
		if err != nil {
			return nil, fmt.Errorf("column %s: %w", col.Name, err)
		}
		out[i] = value
	}
	return out, nil
}

func normalizeValue(t Type, value any) (any, error) {
	switch t {
	case Int:
		switch v := value.(type) {
		case int64:
			return v, nil
		case int:
			return int64(v), nil
		case int32:
			return int64(v), nil
		case float64:
			if v != math.Trunc(v) {
				return nil, fmt.Errorf("fractional value %v for int column", v)
			}
			return int64(v), nil
		}
	case Double:
		switch v := value.(type) {
		case float64:
			return v, nil
		case float32:
			return float64(v), nil
		case int64:
			return float64(v), nil
		case int:
			return float64(v), nil
		}
	case String:
		if v, ok := value.(string); ok {
			return v, nil
		}
	case Bool:
		if v, ok := value.(bool); ok {
			return v, nil
		}
	}
	return nil, fmt.Errorf("value %v (%T) does not conform to %s", value, value, t)
}

// Clone returns a copy of the row. Values are scalars, so a shallow copy
// suffices.
func (r Row) Clone() Row {
	out := make(Row, len(r))
	copy(out, r)
	return out
}
