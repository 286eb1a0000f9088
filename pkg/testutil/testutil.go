// Package testutil provides testing utilities for dfio
package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"

	"github.com/ajitpratap0/dfio/pkg/frame"
	"github.com/ajitpratap0/dfio/pkg/schema"
)

// TestLogger creates a test logger that writes to the test output.
func TestLogger(t *testing.T) *zap.Logger {
	return zaptest.NewLogger(t)
}

// TestContext creates a test context with a 30-second timeout that is
// cancelled when the test completes.
func TestContext(t *testing.T) context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	t.Cleanup(cancel)
	return ctx
}

// CheckedAllocator returns an allocator that fails the test if any buffer is
// still allocated when the test completes.
func CheckedAllocator(t *testing.T) *memory.CheckedAllocator {
	mem := memory.NewCheckedAllocator(memory.NewGoAllocator())
	t.Cleanup(func() { mem.AssertSize(t, 0) })
	return mem
}

// SampleFrame builds a four-row frame with id (int64), score (float64),
// name (utf8) and active (bool) columns. Row 2 holds nulls in score and name.
// The frame is released when the test completes.
func SampleFrame(t *testing.T, mem memory.Allocator) *frame.DataFrame {
	t.Helper()

	sc := arrow.NewSchema([]arrow.Field{
		{Name: "id", Type: arrow.PrimitiveTypes.Int64, Nullable: true},
		{Name: "score", Type: arrow.PrimitiveTypes.Float64, Nullable: true},
		{Name: "name", Type: arrow.BinaryTypes.String, Nullable: true},
		{Name: "active", Type: arrow.FixedWidthTypes.Boolean, Nullable: true},
	}, nil)

	b := array.NewRecordBuilder(mem, sc)
	defer b.Release()

	b.Field(0).(*array.Int64Builder).AppendValues([]int64{1, 2, 3, 4}, nil)
	b.Field(1).(*array.Float64Builder).AppendValues([]float64{1.5, 2.25, 0, -4.75}, []bool{true, true, false, true})
	b.Field(2).(*array.StringBuilder).AppendValues([]string{"ada", "grace", "", "linus"}, []bool{true, true, false, true})
	b.Field(3).(*array.BooleanBuilder).AppendValues([]bool{true, false, true, false}, nil)

	df := frame.New(b.NewRecord())
	t.Cleanup(df.Release)
	return df
}

// RichFrame builds a three-row frame with one column per dtype: i (i64),
// f (f64), s (str), b (bool), d (date), ts (datetime[μs]), c (cat) and
// bin (binary). Every column holds a null in a different row.
func RichFrame(t *testing.T, mem memory.Allocator) *frame.DataFrame {
	t.Helper()

	sc := schema.New(
		schema.Field{Name: "i", DType: schema.Int64},
		schema.Field{Name: "f", DType: schema.Float64},
		schema.Field{Name: "s", DType: schema.Utf8},
		schema.Field{Name: "b", DType: schema.Boolean},
		schema.Field{Name: "d", DType: schema.Date},
		schema.Field{Name: "ts", DType: schema.DatetimeMicros},
		schema.Field{Name: "c", DType: schema.Categorical},
		schema.Field{Name: "bin", DType: schema.Binary},
	).ArrowSchema()

	b := array.NewRecordBuilder(mem, sc)
	defer b.Release()

	valid := func(null int) []bool {
		v := []bool{true, true, true}
		v[null] = false
		return v
	}
	day := func(s string) arrow.Date32 {
		d, err := time.Parse("2006-01-02", s)
		if err != nil {
			t.Fatal(err)
		}
		return arrow.Date32FromTime(d)
	}
	micros := func(s string) arrow.Timestamp {
		ts, err := time.Parse(time.RFC3339Nano, s)
		if err != nil {
			t.Fatal(err)
		}
		return arrow.Timestamp(ts.UnixMicro())
	}

	b.Field(0).(*array.Int64Builder).AppendValues([]int64{-1, 0, 1 << 40}, valid(1))
	b.Field(1).(*array.Float64Builder).AppendValues([]float64{0.5, 0, -3.25}, valid(1))
	b.Field(2).(*array.StringBuilder).AppendValues([]string{"", "naïve", ""}, valid(2))
	b.Field(3).(*array.BooleanBuilder).AppendValues([]bool{false, true, false}, valid(2))
	b.Field(4).(*array.Date32Builder).AppendValues([]arrow.Date32{day("1969-12-31"), 0, day("2024-02-29")}, valid(1))
	b.Field(5).(*array.TimestampBuilder).AppendValues([]arrow.Timestamp{
		0, micros("2024-02-29T23:59:59.123456Z"), micros("1999-01-01T00:00:00Z"),
	}, valid(0))

	cat := b.Field(6).(*array.BinaryDictionaryBuilder)
	if err := cat.AppendString("red"); err != nil {
		t.Fatal(err)
	}
	cat.AppendNull()
	if err := cat.AppendString("red"); err != nil {
		t.Fatal(err)
	}

	bin := b.Field(7).(*array.BinaryBuilder)
	bin.Append([]byte{0x00, 0xff})
	bin.Append([]byte{})
	bin.AppendNull()

	df := frame.New(b.NewRecord())
	t.Cleanup(df.Release)
	return df
}

// Release registers df for release when the test completes and returns it.
func Release(t *testing.T, df *frame.DataFrame) *frame.DataFrame {
	t.Cleanup(df.Release)
	return df
}
