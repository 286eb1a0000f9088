// Package frame provides the dataframe handle exchanged with the format
// gateway. A DataFrame wraps a single Arrow record; it is immutable, and
// handles are reference counted through Retain/Release.
package frame

import (
	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"

	"github.com/ajitpratap0/dfio/pkg/errors"
	"github.com/ajitpratap0/dfio/pkg/schema"
)

// DataFrame is an immutable, reference-counted table.
type DataFrame struct {
	rec arrow.Record
}

// New wraps rec. The DataFrame takes over the caller's reference.
func New(rec arrow.Record) *DataFrame {
	return &DataFrame{rec: rec}
}

// Empty returns a zero-row frame with the given Arrow schema.
func Empty(mem memory.Allocator, sc *arrow.Schema) *DataFrame {
	b := array.NewRecordBuilder(mem, sc)
	defer b.Release()
	return New(b.NewRecord())
}

// FromRecords concatenates batches sharing sc into one frame. The batches are
// not released.
func FromRecords(mem memory.Allocator, sc *arrow.Schema, recs []arrow.Record) (*DataFrame, error) {
	switch len(recs) {
	case 0:
		return Empty(mem, sc), nil
	case 1:
		recs[0].Retain()
		return New(recs[0]), nil
	}

	cols := make([]arrow.Array, sc.NumFields())
	defer func() {
		for _, c := range cols {
			if c != nil {
				c.Release()
			}
		}
	}()

	var rows int64
	for _, r := range recs {
		rows += r.NumRows()
	}

	chunks := make([]arrow.Array, len(recs))
	for i := range cols {
		for j, r := range recs {
			chunks[j] = r.Column(i)
		}
		col, err := array.Concatenate(chunks, mem)
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeDecode, "failed to concatenate batches").
				WithValue(sc.Field(i).Name)
		}
		cols[i] = col
	}

	return New(array.NewRecord(sc, cols, rows)), nil
}

// FromTable flattens every column of tbl into a single chunk.
func FromTable(mem memory.Allocator, tbl arrow.Table) (*DataFrame, error) {
	sc := tbl.Schema()
	cols := make([]arrow.Array, tbl.NumCols())
	defer func() {
		for _, c := range cols {
			if c != nil {
				c.Release()
			}
		}
	}()

	for i := range cols {
		chunks := tbl.Column(i).Data().Chunks()
		if len(chunks) == 1 {
			chunks[0].Retain()
			cols[i] = chunks[0]
			continue
		}
		if len(chunks) == 0 {
			cols[i] = array.MakeArrayOfNull(mem, sc.Field(i).Type, 0)
			continue
		}
		col, err := array.Concatenate(chunks, mem)
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeDecode, "failed to concatenate column chunks").
				WithValue(sc.Field(i).Name)
		}
		cols[i] = col
	}

	return New(array.NewRecord(sc, cols, tbl.NumRows())), nil
}

// Record returns the underlying record. It stays owned by the DataFrame.
func (df *DataFrame) Record() arrow.Record { return df.rec }

// Schema returns the Arrow schema.
func (df *DataFrame) Schema() *arrow.Schema { return df.rec.Schema() }

// DTypes converts the Arrow schema to the dtype set; columns with other types
// are listed in the second result.
func (df *DataFrame) DTypes() (*schema.Schema, []string) {
	return schema.FromArrowSchema(df.rec.Schema())
}

// NumRows returns the row count.
func (df *DataFrame) NumRows() int64 { return df.rec.NumRows() }

// NumCols returns the column count.
func (df *DataFrame) NumCols() int { return int(df.rec.NumCols()) }

// ColumnNames returns the column names in order.
func (df *DataFrame) ColumnNames() []string {
	fields := df.rec.Schema().Fields()
	names := make([]string, len(fields))
	for i, f := range fields {
		names[i] = f.Name
	}
	return names
}

// Column returns the i-th column; it stays owned by the DataFrame.
func (df *DataFrame) Column(i int) arrow.Array { return df.rec.Column(i) }

// Retain increments the reference count.
func (df *DataFrame) Retain() { df.rec.Retain() }

// Release decrements the reference count.
func (df *DataFrame) Release() { df.rec.Release() }

// Snapshot returns a read-only view sharing df's buffers. Writers encode the
// snapshot so the caller's handle is never touched; release it when done.
func (df *DataFrame) Snapshot() *DataFrame {
	df.rec.Retain()
	return &DataFrame{rec: df.rec}
}

// Equal reports whether both frames have the same column names, types,
// order and values. Schema metadata is ignored.
func (df *DataFrame) Equal(other *DataFrame) bool {
	if df == nil || other == nil {
		return df == other
	}
	a, b := df.rec.Schema().Fields(), other.rec.Schema().Fields()
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i].Name != b[i].Name || !arrow.TypeEqual(a[i].Type, b[i].Type) {
			return false
		}
	}
	return array.RecordEqual(df.rec, other.rec)
}

// WithoutMetadata returns a frame whose schema and fields carry no metadata.
// Codecs attach their own keys (field ids, stored schemas) that are not part
// of the dataframe.
func (df *DataFrame) WithoutMetadata() *DataFrame {
	sc := df.rec.Schema()
	if !sc.HasMetadata() && !fieldsHaveMetadata(sc) {
		return df.Snapshot()
	}
	fields := make([]arrow.Field, sc.NumFields())
	for i, f := range sc.Fields() {
		fields[i] = arrow.Field{Name: f.Name, Type: f.Type, Nullable: f.Nullable}
	}
	return New(array.NewRecord(arrow.NewSchema(fields, nil), df.rec.Columns(), df.rec.NumRows()))
}

func fieldsHaveMetadata(sc *arrow.Schema) bool {
	for _, f := range sc.Fields() {
		if f.HasMetadata() {
			return true
		}
	}
	return false
}
