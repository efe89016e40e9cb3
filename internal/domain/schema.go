package domain

// ColumnType is the storage type of a column in a ColumnarSet.
type ColumnType int

const (
	String ColumnType = iota
	Integer
	Float
)

func (t ColumnType) String() string {
	switch t {
	case String:
		return "string"
	case Integer:
		return "integer"
	case Float:
		return "float"
	default:
		return "unknown"
	}
}

// Derivation describes how a column is computed from its raw source field.
type Derivation int

const (
	// DeriveNone reads the raw field as is.
	DeriveNone Derivation = iota
	// DeriveYear takes the text before the first '-' of a date field.
	DeriveYear
	// DeriveMonthDay takes the text after the first '-' of a date field.
	DeriveMonthDay
	// DeriveHour takes the first two characters of an HHMM time field.
	DeriveHour
	// DeriveMinute takes the characters after the hour of an HHMM time field.
	DeriveMinute
)

// RegionColumn is the name of the constant-per-row column prepended to every ColumnarSet.
const RegionColumn = "region"

// Column describes one typed output column and the raw field it is read from.
type Column struct {
	Name   string
	Type   ColumnType
	Source int
	Derive Derivation
}

// Schema is an ordered, fixed set of columns. The source files carry no
// header row, so the schema is the only description of the record layout.
type Schema struct {
	columns  []Column
	index    map[string]int
	rawWidth int
}

// NewSchema builds a Schema from its columns. The raw width is one past the
// highest source index referenced by any column.
func NewSchema(columns []Column) *Schema {
	s := &Schema{
		columns: columns,
		index:   make(map[string]int, len(columns)),
	}
	for i, c := range columns {
		s.index[c.Name] = i
		if c.Source+1 > s.rawWidth {
			s.rawWidth = c.Source + 1
		}
	}
	return s
}

// Columns returns the typed columns in order, excluding the region column.
func (s *Schema) Columns() []Column { return s.columns }

// Width is the number of typed columns, excluding the region column.
func (s *Schema) Width() int { return len(s.columns) }

// RawWidth is the number of fields expected in one raw CSV line.
func (s *Schema) RawWidth() int { return s.rawWidth }

// Index returns the position of a typed column, or -1 when unknown.
func (s *Schema) Index(name string) int {
	if i, ok := s.index[name]; ok {
		return i
	}
	return -1
}

// Column looks up a typed column by name.
func (s *Schema) Column(name string) (Column, bool) {
	i, ok := s.index[name]
	if !ok {
		return Column{}, false
	}
	return s.columns[i], true
}

// Names returns the output column names with the region column first.
func (s *Schema) Names() []string {
	names := make([]string, 0, len(s.columns)+1)
	names = append(names, RegionColumn)
	for _, c := range s.columns {
		names = append(names, c.Name)
	}
	return names
}

// Raw field positions of the composite fields.
const (
	rawDateField = 3
	rawTimeField = 5
)

// AccidentSchema is the layout of the police accident records: 64 raw fields
// expanding to 66 typed columns once the date and time are split.
var AccidentSchema = NewSchema(accidentColumns())

func accidentColumns() []Column {
	cols := []Column{
		{Name: "p1", Type: String, Source: 0},
		{Name: "road_type", Type: Integer, Source: 1},
		{Name: "road_number", Type: Integer, Source: 2},
		{Name: "year", Type: String, Source: rawDateField, Derive: DeriveYear},
		{Name: "month_day", Type: String, Source: rawDateField, Derive: DeriveMonthDay},
		{Name: "weekday", Type: Integer, Source: 4},
		{Name: "hour", Type: Integer, Source: rawTimeField, Derive: DeriveHour},
		{Name: "minute", Type: Integer, Source: rawTimeField, Derive: DeriveMinute},
	}

	// Raw fields 6..63 map one to one onto the remaining columns.
	tail := []struct {
		name string
		typ  ColumnType
	}{
		{"accident_type", Integer},
		{"collision_type", Integer},
		{"obstacle_type", Integer},
		{"accident_character", Integer},
		{"fault", Integer},
		{"alcohol", Integer},
		{"main_cause", Integer},
		{"killed", Integer},
		{"seriously_injured", Integer},
		{"slightly_injured", Integer},
		{"total_damage", Integer},
		{"surface_type", Integer},
		{"surface_condition", Integer},
		{"road_condition", Integer},
		{"weather", Integer},
		{"visibility", Integer},
		{"sight_conditions", Integer},
		{"road_division", Integer},
		{"position_on_road", Integer},
		{"traffic_control", Integer},
		{"right_of_way", Integer},
		{"specific_place", Integer},
		{"directional_conditions", Integer},
		{"vehicles_involved", Integer},
		{"accident_site", Integer},
		{"crossing_road_type", Integer},
		{"vehicle_type", Integer},
		{"vehicle_make", Integer},
		{"vehicle_year", Integer},
		{"vehicle_characteristic", Integer},
		{"skid", Integer},
		{"vehicle_after_accident", Integer},
		{"substance_leak", Integer},
		{"extrication", Integer},
		{"direction", Integer},
		{"vehicle_damage", Integer},
		{"driver_category", Integer},
		{"driver_state", Integer},
		{"driver_external_influence", Integer},
		{"a", Float},
		{"b", Float},
		{"gps_x", Float},
		{"gps_y", Float},
		{"f", Float},
		{"g", Float},
		{"h", String},
		{"i", String},
		{"j", Integer},
		{"k", String},
		{"l", String},
		{"n", String},
		{"o", Integer},
		{"p", String},
		{"q", String},
		{"r", Integer},
		{"s", Integer},
		{"t", Integer},
		{"locality", Integer},
	}
	for i, c := range tail {
		cols = append(cols, Column{Name: c.name, Type: c.typ, Source: 6 + i})
	}
	return cols
}
