package domain

// ColumnBuilder fills preallocated typed columns for a known number of rows.
type ColumnBuilder struct {
	schema  *Schema
	columns []ColumnData
}

// NewColumnBuilder preallocates one column per schema column plus the region
// column, every entry of which is region.
func NewColumnBuilder(schema *Schema, region string, rows int) *ColumnBuilder {
	cols := make([]ColumnData, 0, schema.Width()+1)

	regionCol := newColumnData(RegionColumn, String, rows)
	for i := range regionCol.Strings {
		regionCol.Strings[i] = region
	}
	cols = append(cols, regionCol)

	for _, c := range schema.Columns() {
		cols = append(cols, newColumnData(c.Name, c.Type, rows))
	}
	return &ColumnBuilder{schema: schema, columns: cols}
}

// Set stores rec at row position i.
func (b *ColumnBuilder) Set(i int, rec Record) {
	for c, v := range rec {
		col := &b.columns[c+1]
		switch col.Type {
		case Integer:
			col.Ints[i] = v.Int
		case Float:
			col.Floats[i] = v.Float
		default:
			col.Strings[i] = v.Str
		}
	}
}

// Build returns the assembled set. The builder must not be used afterwards.
func (b *ColumnBuilder) Build() *ColumnarSet {
	return &ColumnarSet{Columns: b.columns}
}

// BuildStats summarizes one BuildColumnarSet call.
type BuildStats struct {
	Rows      int
	Sentinels int
}

// BuildColumnarSet parses every raw row in order into a new set for region.
// A row with the wrong field count aborts the whole build.
func BuildColumnarSet(schema *Schema, region string, rows [][]string) (*ColumnarSet, BuildStats, error) {
	b := NewColumnBuilder(schema, region, len(rows))
	stats := BuildStats{Rows: len(rows)}
	for i, raw := range rows {
		rec, sentinels, err := schema.ParseRecord(raw)
		if err != nil {
			if mismatch, ok := err.(*SchemaMismatchError); ok {
				mismatch.Line = i + 1
			}
			return nil, BuildStats{}, err
		}
		stats.Sentinels += sentinels
		b.Set(i, rec)
	}
	return b.Build(), stats, nil
}
