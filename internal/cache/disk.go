package cache

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/ipc"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/klauspost/compress/gzip"

	"github.com/couchcryptid/crash-data-etl/internal/domain"
)

// regionMetaKey tags each blob with the region it was built for.
const regionMetaKey = "crash_etl.region"

// DiskTier stores one gzip-compressed Arrow IPC stream per region.
type DiskTier struct {
	dir      string
	filename func(code string) string
	schema   *domain.Schema
	mem      memory.Allocator
}

// NewDiskTier creates a disk tier writing into dir. filename maps a region
// code to its blob name. A nil mem uses the Go allocator.
func NewDiskTier(dir string, filename func(code string) string, schema *domain.Schema, mem memory.Allocator) *DiskTier {
	if mem == nil {
		mem = memory.NewGoAllocator()
	}
	return &DiskTier{
		dir:      dir,
		filename: filename,
		schema:   schema,
		mem:      mem,
	}
}

// Name returns "disk".
func (d *DiskTier) Name() string { return "disk" }

// Durable reports true: blobs outlive the process.
func (d *DiskTier) Durable() bool { return true }

// Path returns the blob path for region code.
func (d *DiskTier) Path(code string) string {
	return filepath.Join(d.dir, d.filename(code))
}

// Get decodes the stored blob. Any decoding problem is reported as
// domain.ErrCacheCorrupt.
func (d *DiskTier) Get(_ context.Context, code string) (*domain.ColumnarSet, bool, error) {
	path := d.Path(code)
	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	set, err := d.decode(bufio.NewReader(f), code)
	if err != nil {
		return nil, false, fmt.Errorf("%w: %s: %w", domain.ErrCacheCorrupt, filepath.Base(path), err)
	}
	return set, true, nil
}

// Put replaces the blob for region code. The blob is written to a temp file
// and renamed into place.
func (d *DiskTier) Put(_ context.Context, code string, set *domain.ColumnarSet) error {
	if err := set.Validate(); err != nil {
		return err
	}
	if err := os.MkdirAll(d.dir, 0o755); err != nil {
		return fmt.Errorf("create cache dir: %w", err)
	}

	target := d.Path(code)
	tmp, err := os.CreateTemp(d.dir, filepath.Base(target)+".*.part")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name()) //nolint:errcheck // no-op after a successful rename

	if err := d.encode(tmp, code, set); err != nil {
		tmp.Close()
		return fmt.Errorf("encode %s: %w", code, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close %s: %w", tmp.Name(), err)
	}
	if err := os.Rename(tmp.Name(), target); err != nil {
		return fmt.Errorf("store %s: %w", filepath.Base(target), err)
	}
	return nil
}

func (d *DiskTier) encode(w io.Writer, code string, set *domain.ColumnarSet) error {
	schema := arrowSchema(d.schema, code)
	if err := checkLayout(schema, set); err != nil {
		return err
	}

	rb := array.NewRecordBuilder(d.mem, schema)
	defer rb.Release()
	for i := range set.Columns {
		col := &set.Columns[i]
		switch col.Type {
		case domain.Integer:
			rb.Field(i).(*array.Int64Builder).AppendValues(col.Ints, nil)
		case domain.Float:
			rb.Field(i).(*array.Float64Builder).AppendValues(col.Floats, nil)
		default:
			rb.Field(i).(*array.StringBuilder).AppendValues(col.Strings, nil)
		}
	}
	rec := rb.NewRecord()
	defer rec.Release()

	zw := gzip.NewWriter(w)
	iw := ipc.NewWriter(zw, ipc.WithSchema(schema), ipc.WithAllocator(d.mem))
	if err := iw.Write(rec); err != nil {
		return fmt.Errorf("write record: %w", err)
	}
	if err := iw.Close(); err != nil {
		return fmt.Errorf("close ipc stream: %w", err)
	}
	return zw.Close()
}

func (d *DiskTier) decode(r io.Reader, code string) (*domain.ColumnarSet, error) {
	zr, err := gzip.NewReader(r)
	if err != nil {
		return nil, err
	}
	defer zr.Close()

	ir, err := ipc.NewReader(zr, ipc.WithAllocator(d.mem), ipc.WithSchema(arrowSchema(d.schema, code)))
	if err != nil {
		return nil, err
	}
	defer ir.Release()

	if got, _ := ir.Schema().Metadata().GetValue(regionMetaKey); got != code {
		return nil, fmt.Errorf("blob holds region %q", got)
	}

	set := domain.EmptySet(d.schema)
	for ir.Next() {
		rec := ir.Record()
		for i := range set.Columns {
			col := &set.Columns[i]
			switch arr := rec.Column(i).(type) {
			case *array.Int64:
				col.Ints = append(col.Ints, arr.Int64Values()...)
			case *array.Float64:
				col.Floats = append(col.Floats, arr.Float64Values()...)
			case *array.String:
				for j := 0; j < arr.Len(); j++ {
					col.Strings = append(col.Strings, strings.Clone(arr.Value(j)))
				}
			default:
				return nil, fmt.Errorf("column %s: unexpected array type %s", col.Name, arr.DataType())
			}
		}
	}
	if err := ir.Err(); err != nil {
		return nil, err
	}
	if err := set.Validate(); err != nil {
		return nil, err
	}
	return set, nil
}

func arrowSchema(schema *domain.Schema, code string) *arrow.Schema {
	fields := make([]arrow.Field, 0, schema.Width()+1)
	fields = append(fields, arrow.Field{Name: domain.RegionColumn, Type: arrow.BinaryTypes.String})
	for _, c := range schema.Columns() {
		fields = append(fields, arrow.Field{Name: c.Name, Type: arrowType(c.Type)})
	}
	md := arrow.NewMetadata([]string{regionMetaKey}, []string{code})
	return arrow.NewSchema(fields, &md)
}

func arrowType(t domain.ColumnType) arrow.DataType {
	switch t {
	case domain.Integer:
		return arrow.PrimitiveTypes.Int64
	case domain.Float:
		return arrow.PrimitiveTypes.Float64
	default:
		return arrow.BinaryTypes.String
	}
}

func checkLayout(schema *arrow.Schema, set *domain.ColumnarSet) error {
	if len(set.Columns) != schema.NumFields() {
		return fmt.Errorf("set has %d columns, want %d", len(set.Columns), schema.NumFields())
	}
	for i, f := range schema.Fields() {
		col := &set.Columns[i]
		if col.Name != f.Name || !arrow.TypeEqual(arrowType(col.Type), f.Type) {
			return fmt.Errorf("column %d is %s %s, want %s %s", i, col.Name, col.Type, f.Name, f.Type)
		}
	}
	return nil
}
