package frame

import (
	"math"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
)

// Normalize coerces every numeric column to Int64 or Float64. Signed and
// unsigned integers widen to Int64; uint64 values above math.MaxInt64 become
// null. Float16 and Float32 widen to Float64. Null positions, row order and
// non-numeric columns are preserved, and a frame that is already normalized
// comes back as a snapshot of itself. df is not released.
func Normalize(mem memory.Allocator, df *DataFrame) *DataFrame {
	sc := df.rec.Schema()
	var (
		fields  []arrow.Field
		cols    []arrow.Array
		created []arrow.Array
	)

	for i, f := range sc.Fields() {
		col := df.rec.Column(i)
		widened := widen(mem, col)
		if widened == nil {
			continue
		}
		if created == nil {
			fields = make([]arrow.Field, len(sc.Fields()))
			copy(fields, sc.Fields())
			cols = make([]arrow.Array, len(fields))
			copy(cols, df.rec.Columns())
		}
		f.Type = widened.DataType()
		fields[i] = f
		cols[i] = widened
		created = append(created, widened)
	}

	if created == nil {
		return df.Snapshot()
	}
	defer func() {
		for _, c := range created {
			c.Release()
		}
	}()

	var md *arrow.Metadata
	if sc.HasMetadata() {
		m := sc.Metadata()
		md = &m
	}
	return New(array.NewRecord(arrow.NewSchema(fields, md), cols, df.rec.NumRows()))
}

// IsNormalized reports whether no column would change under Normalize.
func IsNormalized(df *DataFrame) bool {
	for _, f := range df.rec.Schema().Fields() {
		switch f.Type.ID() {
		case arrow.INT8, arrow.INT16, arrow.INT32, arrow.UINT8, arrow.UINT16, arrow.UINT32, arrow.UINT64,
			arrow.FLOAT16, arrow.FLOAT32:
			return false
		}
	}
	return true
}

// widen returns the canonical representation of col, or nil when col is
// already canonical or not numeric.
func widen(mem memory.Allocator, col arrow.Array) arrow.Array {
	switch c := col.(type) {
	case *array.Int8:
		return toInt64[int8](mem, c)
	case *array.Int16:
		return toInt64[int16](mem, c)
	case *array.Int32:
		return toInt64[int32](mem, c)
	case *array.Uint8:
		return toInt64[uint8](mem, c)
	case *array.Uint16:
		return toInt64[uint16](mem, c)
	case *array.Uint32:
		return toInt64[uint32](mem, c)
	case *array.Uint64:
		return uint64ToInt64(mem, c)
	case *array.Float16:
		b := array.NewFloat64Builder(mem)
		defer b.Release()
		b.Reserve(c.Len())
		for i := 0; i < c.Len(); i++ {
			if c.IsNull(i) {
				b.AppendNull()
				continue
			}
			b.UnsafeAppend(float64(c.Value(i).Float32()))
		}
		return b.NewArray()
	case *array.Float32:
		b := array.NewFloat64Builder(mem)
		defer b.Release()
		b.Reserve(c.Len())
		for i := 0; i < c.Len(); i++ {
			if c.IsNull(i) {
				b.AppendNull()
				continue
			}
			b.UnsafeAppend(float64(c.Value(i)))
		}
		return b.NewArray()
	default:
		return nil
	}
}

type integer interface {
	~int8 | ~int16 | ~int32 | ~uint8 | ~uint16 | ~uint32
}

type valueArray[T any] interface {
	arrow.Array
	Value(int) T
}

func toInt64[T integer](mem memory.Allocator, c valueArray[T]) arrow.Array {
	b := array.NewInt64Builder(mem)
	defer b.Release()
	b.Reserve(c.Len())
	for i := 0; i < c.Len(); i++ {
		if c.IsNull(i) {
			b.AppendNull()
			continue
		}
		b.UnsafeAppend(int64(c.Value(i)))
	}
	return b.NewArray()
}

func uint64ToInt64(mem memory.Allocator, c *array.Uint64) arrow.Array {
	b := array.NewInt64Builder(mem)
	defer b.Release()
	b.Reserve(c.Len())
	for i := 0; i < c.Len(); i++ {
		v := c.Value(i)
		if c.IsNull(i) || v > math.MaxInt64 {
			b.AppendNull()
			continue
		}
		b.UnsafeAppend(int64(v))
	}
	return b.NewArray()
}
