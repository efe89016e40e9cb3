package domain

import (
	"fmt"
)

// ColumnData is one typed column. Exactly one of Strings, Ints or Floats is
// used, selected by Type.
type ColumnData struct {
	Name    string
	Type    ColumnType
	Strings []string
	Ints    []int64
	Floats  []float64
}

// Len returns the number of values in the column.
func (c *ColumnData) Len() int {
	switch c.Type {
	case Integer:
		return len(c.Ints)
	case Float:
		return len(c.Floats)
	default:
		return len(c.Strings)
	}
}

// Value returns the i-th value boxed, for consumers that need row access.
func (c *ColumnData) Value(i int) any {
	switch c.Type {
	case Integer:
		return c.Ints[i]
	case Float:
		return c.Floats[i]
	default:
		return c.Strings[i]
	}
}

func newColumnData(name string, typ ColumnType, n int) ColumnData {
	c := ColumnData{Name: name, Type: typ}
	switch typ {
	case Integer:
		c.Ints = make([]int64, n)
	case Float:
		c.Floats = make([]float64, n)
	default:
		c.Strings = make([]string, n)
	}
	return c
}

// ColumnarSet is a set of equal-length typed columns describing the same
// records. Column order is the schema order with the region column first.
type ColumnarSet struct {
	Columns []ColumnData
}

// Len returns the number of records.
func (s *ColumnarSet) Len() int {
	if s == nil || len(s.Columns) == 0 {
		return 0
	}
	return s.Columns[0].Len()
}

// Names returns the column names in order.
func (s *ColumnarSet) Names() []string {
	names := make([]string, len(s.Columns))
	for i := range s.Columns {
		names[i] = s.Columns[i].Name
	}
	return names
}

// Column returns the column with the given name.
func (s *ColumnarSet) Column(name string) (*ColumnData, bool) {
	for i := range s.Columns {
		if s.Columns[i].Name == name {
			return &s.Columns[i], true
		}
	}
	return nil, false
}

// Row returns record i keyed by column name.
func (s *ColumnarSet) Row(i int) map[string]any {
	row := make(map[string]any, len(s.Columns))
	for c := range s.Columns {
		row[s.Columns[c].Name] = s.Columns[c].Value(i)
	}
	return row
}

// Validate checks that every column has the same length.
func (s *ColumnarSet) Validate() error {
	n := s.Len()
	for i := range s.Columns {
		if got := s.Columns[i].Len(); got != n {
			return fmt.Errorf("column %q has %d values, want %d", s.Columns[i].Name, got, n)
		}
	}
	return nil
}

// EmptySet returns a zero-row set with the schema's column layout.
func EmptySet(schema *Schema) *ColumnarSet {
	return NewColumnBuilder(schema, "", 0).Build()
}

// Concat joins sets column by column, in argument order. All sets must share
// the same column names and types.
func Concat(sets ...*ColumnarSet) (*ColumnarSet, error) {
	if len(sets) == 0 {
		return &ColumnarSet{}, nil
	}
	first := sets[0]
	total := 0
	for _, s := range sets {
		if err := sameLayout(first, s); err != nil {
			return nil, err
		}
		total += s.Len()
	}

	out := &ColumnarSet{Columns: make([]ColumnData, len(first.Columns))}
	for c := range first.Columns {
		col := ColumnData{Name: first.Columns[c].Name, Type: first.Columns[c].Type}
		switch col.Type {
		case Integer:
			col.Ints = make([]int64, 0, total)
			for _, s := range sets {
				col.Ints = append(col.Ints, s.Columns[c].Ints...)
			}
		case Float:
			col.Floats = make([]float64, 0, total)
			for _, s := range sets {
				col.Floats = append(col.Floats, s.Columns[c].Floats...)
			}
		default:
			col.Strings = make([]string, 0, total)
			for _, s := range sets {
				col.Strings = append(col.Strings, s.Columns[c].Strings...)
			}
		}
		out.Columns[c] = col
	}
	return out, nil
}

func sameLayout(a, b *ColumnarSet) error {
	if len(a.Columns) != len(b.Columns) {
		return fmt.Errorf("concat: %d columns, want %d", len(b.Columns), len(a.Columns))
	}
	for i := range a.Columns {
		if a.Columns[i].Name != b.Columns[i].Name || a.Columns[i].Type != b.Columns[i].Type {
			return fmt.Errorf("concat: column %d is %s %s, want %s %s", i,
				b.Columns[i].Name, b.Columns[i].Type, a.Columns[i].Name, a.Columns[i].Type)
		}
	}
	return nil
}
