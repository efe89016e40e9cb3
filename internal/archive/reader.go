package archive

import (
	"archive/zip"
	"encoding/csv"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"

	"golang.org/x/text/encoding/charmap"

	"github.com/couchcryptid/crash-data-etl/internal/domain"
)

// ReadRegion returns the raw lines of the region's CSV member inside the zip
// at path. The member is decoded from ISO-8859-2. Lines are returned as read;
// field-count checks belong to the schema.
func ReadRegion(path string, region domain.Region) ([][]string, error) {
	zr, err := zip.OpenReader(path)
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %w", domain.ErrArchiveRead, filepath.Base(path), err)
	}
	defer zr.Close()

	f, err := zr.Open(region.CSVName())
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s has no member %s", domain.ErrArchiveRead, filepath.Base(path), region.CSVName())
		}
		return nil, fmt.Errorf("%w: open %s in %s: %w", domain.ErrArchiveRead, region.CSVName(), filepath.Base(path), err)
	}
	defer f.Close()

	r := csv.NewReader(charmap.ISO8859_2.NewDecoder().Reader(f))
	r.Comma = ';'
	r.FieldsPerRecord = -1
	r.LazyQuotes = true

	rows, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("%w: read %s in %s: %w", domain.ErrArchiveRead, region.CSVName(), filepath.Base(path), err)
	}
	return rows, nil
}
