package schema

import (
	"fmt"

	"github.com/goccy/go-json"
)

/*
schema describes the column structure of a table: an ordered sequence of
(name, type) pairs with unique names. A schema is committed to the transaction
log when a table is created and travels with every checkpoint, so it
serializes to JSON with types spelled as lowercase names.

Rows are positional: value i of a row conforms to column i of the schema.
Values arriving from JSON decoding are loosely typed (every number is a
float64), so Normalize coerces a row into the canonical Go representation for
each column type before it is encoded or compared.
*/

////////////////////////////////////////////////////////////////////////////////

// Type is a column data type.
type Type int

const (
	// Int is a 64-bit signed integer column.
	Int Type = iota + 1
	// Double is a 64-bit IEEE floating point column.
	Double
	// String is a UTF-8 string column.
	String
	// Bool is a boolean column.
	Bool
)

func (t Type) String() string {
	switch t {
	case Int:
		return "int"
	case Double:
		return "double"
	case String:
		return "string"
	case Bool:
		return "bool"
	default:
		return "invalid"
	}
}

// ParseType parses a type name.
func ParseType(s string) (Type, error) {
	switch s {
	case "int":
		return Int, nil
	case "double":
		return Double, nil
	case "string":
		return String, nil
	case "bool":
		return Bool, nil
	default:
		return 0, fmt.Errorf("unknown type: %s", s)
	}
}

// MarshalJSON serializes the type as its name.
func (t Type) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.String())
}

// UnmarshalJSON parses the type from its name.
func (t *Type) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err != nil {
		return fmt.Errorf("failed to unmarshal type name: %w", err)
	}
	parsed, err := ParseType(name)
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// Column is a named, typed column.
type Column struct {
	Name string `json:"name"`
	Type Type   `json:"type"`
}

// Schema is an ordered sequence of columns with unique names.
type Schema struct {
	Columns []Column `json:"columns"`
}

// New constructs a schema from the given columns.
func New(columns ...Column) (*Schema, error) {
	s := &Schema{Columns: columns}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

// Validate checks that the schema is well-formed.
func (s *Schema) Validate() error {
	if len(s.Columns) == 0 {
		return fmt.Errorf("schema has no columns")
	}
	seen := make(map[string]bool, len(s.Columns))
	for _, col := range s.Columns {
		if col.Name == "" {
			return fmt.Errorf("schema has a column with no name")
		}
		if col.Type.String() == "invalid" {
			return fmt.Errorf("column %s has an invalid type", col.Name)
		}
		if seen[col.Name] {
			return fmt.Errorf("duplicate column name: %s", col.Name)
		}
		seen[col.Name] = true
	}
	return nil
}

// ColumnIndex returns the position of the named column, and a boolean
// indicating presence.
func (s *Schema) ColumnIndex(name string) (int, bool) {
	for i, col := range s.Columns {
		if col.Name == name {
			return i, true
		}
	}
	return 0, false
}

// Equal reports whether two schemas have the same columns in the same order.
func (s *Schema) Equal(other *Schema) bool {
	if len(s.Columns) != len(other.Columns) {
		return false
	}
	for i, col := range s.Columns {
		if other.Columns[i] != col {
			return false
		}
	}
	return true
}

func (s *Schema) String() string {
	out := ""
	for i, col := range s.Columns {
		if i > 0 {
			out += ", "
		}
		out += col.Name + " " + col.Type.String()
	}
	return out
}
