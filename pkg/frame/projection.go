package frame

import (
	"strconv"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"

	"github.com/ajitpratap0/dfio/pkg/errors"
)

// Projection describes the column and row restrictions shared by every read.
// Columns are applied first (by name, in the requested order), then Indices
// select positions of that result, then MaxRows caps the row count.
type Projection struct {
	Columns []string
	Indices []int
	MaxRows *int
}

// IsZero reports whether the projection selects everything.
func (p Projection) IsZero() bool {
	return len(p.Columns) == 0 && len(p.Indices) == 0 && p.MaxRows == nil
}

// Apply returns the projected frame. df is not released.
func (p Projection) Apply(df *DataFrame) (*DataFrame, error) {
	out := df.Snapshot()

	if len(p.Columns) > 0 {
		next, err := out.Select(p.Columns...)
		out.Release()
		if err != nil {
			return nil, err
		}
		out = next
	}

	if len(p.Indices) > 0 {
		next, err := out.SelectIndices(p.Indices...)
		out.Release()
		if err != nil {
			return nil, err
		}
		out = next
	}

	if p.MaxRows != nil {
		next := out.Head(int64(*p.MaxRows))
		out.Release()
		out = next
	}

	return out, nil
}

// Select returns the named columns in the given order.
func (df *DataFrame) Select(names ...string) (*DataFrame, error) {
	sc := df.rec.Schema()
	idx := make([]int, len(names))
	for i, name := range names {
		found := sc.FieldIndices(name)
		if len(found) == 0 {
			return nil, errors.New(errors.ErrorTypeNotFound, "column not found").WithValue(name)
		}
		idx[i] = found[0]
	}
	return df.SelectIndices(idx...)
}

// SelectIndices returns the columns at the given positions in order.
func (df *DataFrame) SelectIndices(indices ...int) (*DataFrame, error) {
	sc := df.rec.Schema()
	fields := make([]arrow.Field, len(indices))
	cols := make([]arrow.Array, len(indices))
	for i, idx := range indices {
		if idx < 0 || idx >= sc.NumFields() {
			return nil, errors.New(errors.ErrorTypeNotFound, "projection index out of range").
				WithValue(strconv.Itoa(idx)).
				WithDetail("columns", sc.NumFields())
		}
		fields[i] = sc.Field(idx)
		cols[i] = df.rec.Column(idx)
	}
	var md *arrow.Metadata
	if sc.HasMetadata() {
		m := sc.Metadata()
		md = &m
	}
	return New(array.NewRecord(arrow.NewSchema(fields, md), cols, df.rec.NumRows())), nil
}

// Head returns at most n leading rows.
func (df *DataFrame) Head(n int64) *DataFrame {
	if n < 0 {
		n = 0
	}
	if n >= df.rec.NumRows() {
		return df.Snapshot()
	}
	return New(df.rec.NewSlice(0, n))
}
