package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrNetwork marks a failed index or archive fetch.
	ErrNetwork = errors.New("network error")
	// ErrArchiveRead marks an archive that cannot be opened or lacks a region member.
	ErrArchiveRead = errors.New("archive read error")
	// ErrSchemaMismatch marks a raw line whose field count differs from the schema.
	ErrSchemaMismatch = errors.New("schema mismatch")
	// ErrCacheCorrupt marks a disk cache blob that cannot be decoded.
	ErrCacheCorrupt = errors.New("cache corrupt")
	// ErrPartialLoad marks a region set built with some archives skipped.
	ErrPartialLoad = errors.New("partial region load")
	// ErrUnknownRegion marks a region code outside the fixed region set.
	ErrUnknownRegion = errors.New("unknown region")
)

// SchemaMismatchError reports a raw line with the wrong number of fields.
// Line is 1-based within the containing file; zero when unknown.
type SchemaMismatchError struct {
	Line int
	Got  int
	Want int
}

func (e *SchemaMismatchError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("schema mismatch: line %d has %d fields, want %d", e.Line, e.Got, e.Want)
	}
	return fmt.Sprintf("schema mismatch: %d fields, want %d", e.Got, e.Want)
}

func (e *SchemaMismatchError) Is(target error) bool { return target == ErrSchemaMismatch }
