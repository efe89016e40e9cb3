package domain

import "time"

// ExportRecord is one accident record prepared for publishing.
type ExportRecord struct {
	Region     string
	ID         string
	Year       string
	Fields     map[string]any
	ExportedAt time.Time
}

// Key identifies the record across regions. Record ids are only unique
// within a region.
func (r ExportRecord) Key() string {
	return r.Region + ":" + r.ID
}

// ExportRecords converts rows [start, end) of set into export records, all
// stamped with the same time.
func ExportRecords(set *ColumnarSet, start, end int) []ExportRecord {
	now := clock.Now().UTC()
	out := make([]ExportRecord, 0, end-start)
	for i := start; i < end; i++ {
		row := set.Row(i)
		out = append(out, ExportRecord{
			Region:     stringField(row, RegionColumn),
			ID:         stringField(row, "p1"),
			Year:       stringField(row, "year"),
			Fields:     row,
			ExportedAt: now,
		})
	}
	return out
}

func stringField(row map[string]any, name string) string {
	s, _ := row[name].(string)
	return s
}
