package domain

import (
	"math"
	"strconv"
	"strings"
)

// Sentinel marks a missing or invalid numeric value. It lies outside the
// domain of every numeric column in the accident records.
const Sentinel int64 = -99999

// FloatSentinel is Sentinel as stored in float columns.
const FloatSentinel = float64(Sentinel)

// HourUpperBound is the exclusive upper bound for a valid hour. The archives
// have always been read with 24 accepted as an hour value, so the bound stays
// at 25 until the data source confirms what 24 means.
const HourUpperBound = 25

// MinuteUpperBound is the exclusive upper bound for a valid minute.
const MinuteUpperBound = 60

// Value holds one typed field. Only the member matching the column type is set.
type Value struct {
	Str   string
	Int   int64
	Float float64
}

// Record is one parsed line, one Value per schema column in schema order.
type Record []Value

// ParseRecord converts one raw line into a Record. Fields that fail coercion
// become Sentinel and are counted in the returned total; only a wrong field
// count is an error.
func (s *Schema) ParseRecord(raw []string) (Record, int, error) {
	if len(raw) != s.rawWidth {
		return nil, 0, &SchemaMismatchError{Got: len(raw), Want: s.rawWidth}
	}

	rec := make(Record, len(s.columns))
	sentinels := 0
	for i, c := range s.columns {
		v, ok := coerce(c, raw[c.Source])
		if !ok {
			sentinels++
		}
		rec[i] = v
	}
	return rec, sentinels, nil
}

// coerce derives and converts a single field. ok is false when the field was
// replaced with Sentinel.
func coerce(c Column, field string) (Value, bool) {
	switch c.Derive {
	case DeriveYear:
		year, _ := splitDate(field)
		return Value{Str: year}, true
	case DeriveMonthDay:
		_, monthDay := splitDate(field)
		return Value{Str: monthDay}, true
	case DeriveHour:
		hour, _ := splitTime(field)
		return boundedInt(hour, HourUpperBound)
	case DeriveMinute:
		_, minute := splitTime(field)
		return boundedInt(minute, MinuteUpperBound)
	}

	switch c.Type {
	case Integer:
		n, err := strconv.ParseInt(strings.TrimSpace(field), 10, 64)
		if err != nil {
			return Value{Int: Sentinel}, false
		}
		return Value{Int: n}, true
	case Float:
		// Decimals use a comma separator.
		f, err := strconv.ParseFloat(strings.ReplaceAll(strings.TrimSpace(field), ",", "."), 64)
		if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
			return Value{Float: FloatSentinel}, false
		}
		return Value{Float: f}, true
	default:
		return Value{Str: field}, true
	}
}

// splitDate splits "2020-03-15" into "2020" and "03-15".
func splitDate(field string) (year, monthDay string) {
	year, monthDay, _ = strings.Cut(field, "-")
	return year, monthDay
}

// splitTime splits "HHMM" into its hour and minute text.
func splitTime(field string) (hour, minute string) {
	if len(field) <= 2 {
		return field, ""
	}
	return field[:2], field[2:]
}

// boundedInt parses text as an integer in [0, upper), returning Sentinel otherwise.
func boundedInt(text string, upper int64) (Value, bool) {
	n, err := strconv.ParseInt(text, 10, 64)
	if err != nil || n < 0 || n >= upper {
		return Value{Int: Sentinel}, false
	}
	return Value{Int: n}, true
}
