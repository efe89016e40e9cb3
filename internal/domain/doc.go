// Package domain models Czech police road-accident records.
//
// # Data Source
//
// Records are published as zip archives on the IZV course portal
// (https://ehw.fit.vutbr.cz/izv/). Each archive covers one year, or the
// running year up to the latest month, and holds one CSV member per region
// named by the region's two-digit code ("00.csv" for Prague, "19.csv" for
// Karlovy Vary). See [Regions].
//
// # Record Conventions
//
// CSV format:
//
//	Semicolon-delimited, double-quote quoted, ISO-8859-2 encoded, no header row.
//	Every line has exactly 64 fields; a different count means the layout has
//	drifted or the download is corrupt. See [SchemaMismatchError].
//
// Date field (raw index 3):
//
//	"YYYY-MM-DD", split on the first '-' into year ("2020") and
//	month_day ("03-15"). Both stay text.
//
// Time field (raw index 5):
//
//	HHMM, e.g. "1430" = 14:30. The first two characters are the hour, the
//	rest the minute. Hours at or above [HourUpperBound] and minutes at or
//	above 60 are unknown-time markers in the source and become [Sentinel].
//
// Decimal fields:
//
//	Use a comma separator: "-598843,73".
//
// Unknown values:
//
//	Any numeric field that does not parse becomes [Sentinel] (-99999) at that
//	position only. String fields are kept verbatim, empty included.
//
// # Columnar Layout
//
// A [ColumnarSet] holds one typed slice per column in [AccidentSchema] order,
// with the region code prepended as a constant column. The layout is the same
// for every region and archive, so sets can be joined with [Concat].
package domain
