package frame_test

import (
	"math"
	"testing"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/float16"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/dfio/pkg/errors"
	"github.com/ajitpratap0/dfio/pkg/frame"
	"github.com/ajitpratap0/dfio/pkg/testutil"
)

func narrowFrame(t *testing.T, mem memory.Allocator) *frame.DataFrame {
	t.Helper()

	sc := arrow.NewSchema([]arrow.Field{
		{Name: "i8", Type: arrow.PrimitiveTypes.Int8, Nullable: true},
		{Name: "u16", Type: arrow.PrimitiveTypes.Uint16, Nullable: true},
		{Name: "i32", Type: arrow.PrimitiveTypes.Int32, Nullable: true},
		{Name: "u64", Type: arrow.PrimitiveTypes.Uint64, Nullable: true},
		{Name: "f16", Type: arrow.FixedWidthTypes.Float16, Nullable: true},
		{Name: "f32", Type: arrow.PrimitiveTypes.Float32, Nullable: true},
		{Name: "s", Type: arrow.BinaryTypes.String, Nullable: true},
	}, nil)

	b := array.NewRecordBuilder(mem, sc)
	defer b.Release()

	valid := []bool{true, false, true}
	b.Field(0).(*array.Int8Builder).AppendValues([]int8{-1, 0, 127}, valid)
	b.Field(1).(*array.Uint16Builder).AppendValues([]uint16{1, 0, 65535}, valid)
	b.Field(2).(*array.Int32Builder).AppendValues([]int32{math.MinInt32, 0, 3}, valid)
	b.Field(3).(*array.Uint64Builder).AppendValues([]uint64{7, 0, math.MaxUint64}, valid)
	b.Field(4).(*array.Float16Builder).AppendValues([]float16.Num{float16.New(0.5), float16.New(0), float16.New(-2)}, valid)
	b.Field(5).(*array.Float32Builder).AppendValues([]float32{1.25, 0, -3.5}, valid)
	b.Field(6).(*array.StringBuilder).AppendValues([]string{"a", "", "c"}, valid)

	return testutil.Release(t, frame.New(b.NewRecord()))
}

func TestNormalizeWidensNumericColumns(t *testing.T) {
	mem := testutil.CheckedAllocator(t)
	df := narrowFrame(t, mem)

	out := testutil.Release(t, frame.Normalize(mem, df))

	want := []arrow.DataType{
		arrow.PrimitiveTypes.Int64,
		arrow.PrimitiveTypes.Int64,
		arrow.PrimitiveTypes.Int64,
		arrow.PrimitiveTypes.Int64,
		arrow.PrimitiveTypes.Float64,
		arrow.PrimitiveTypes.Float64,
		arrow.BinaryTypes.String,
	}
	for i, dt := range want {
		assert.True(t, arrow.TypeEqual(dt, out.Schema().Field(i).Type), "column %d", i)
	}
	assert.True(t, frame.IsNormalized(out))
	assert.False(t, frame.IsNormalized(df))
	assert.Equal(t, df.ColumnNames(), out.ColumnNames())
	assert.Equal(t, df.NumRows(), out.NumRows())

	i8 := out.Column(0).(*array.Int64)
	assert.Equal(t, int64(-1), i8.Value(0))
	assert.True(t, i8.IsNull(1))
	assert.Equal(t, int64(127), i8.Value(2))

	i32 := out.Column(2).(*array.Int64)
	assert.Equal(t, int64(math.MinInt32), i32.Value(0))

	u64 := out.Column(3).(*array.Int64)
	assert.Equal(t, int64(7), u64.Value(0))
	assert.True(t, u64.IsNull(1))
	assert.True(t, u64.IsNull(2), "values above MaxInt64 become null")

	f16 := out.Column(4).(*array.Float64)
	assert.Equal(t, 0.5, f16.Value(0))
	assert.Equal(t, -2.0, f16.Value(2))

	f32 := out.Column(5).(*array.Float64)
	assert.Equal(t, 1.25, f32.Value(0))
	assert.True(t, f32.IsNull(1))

	// non-numeric columns are shared, not copied
	assert.Same(t, df.Column(6), out.Column(6))
}

func TestNormalizeIsIdempotent(t *testing.T) {
	mem := testutil.CheckedAllocator(t)
	df := narrowFrame(t, mem)

	once := testutil.Release(t, frame.Normalize(mem, df))
	twice := testutil.Release(t, frame.Normalize(mem, once))

	assert.True(t, once.Equal(twice))
	assert.Same(t, once.Record(), twice.Record())
}

func TestNormalizeLeavesCanonicalFrame(t *testing.T) {
	mem := testutil.CheckedAllocator(t)
	df := testutil.SampleFrame(t, mem)

	out := testutil.Release(t, frame.Normalize(mem, df))
	assert.Same(t, df.Record(), out.Record())
}

func TestProjection(t *testing.T) {
	mem := testutil.CheckedAllocator(t)
	df := testutil.SampleFrame(t, mem)

	two := 2
	out, err := frame.Projection{
		Columns: []string{"name", "id", "active"},
		Indices: []int{2, 0},
		MaxRows: &two,
	}.Apply(df)
	require.NoError(t, err)
	testutil.Release(t, out)

	assert.Equal(t, []string{"active", "name"}, out.ColumnNames())
	assert.Equal(t, int64(2), out.NumRows())
	assert.Equal(t, "grace", out.Column(1).(*array.String).Value(1))

	// the source frame is untouched
	assert.Equal(t, []string{"id", "score", "name", "active"}, df.ColumnNames())
	assert.Equal(t, int64(4), df.NumRows())
}

func TestProjectionErrors(t *testing.T) {
	mem := testutil.CheckedAllocator(t)
	df := testutil.SampleFrame(t, mem)

	_, err := frame.Projection{Columns: []string{"missing"}}.Apply(df)
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeNotFound))
	assert.Contains(t, err.Error(), "missing")

	_, err = frame.Projection{Indices: []int{9}}.Apply(df)
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeNotFound))
	assert.Contains(t, err.Error(), "9")
}

func TestHeadBeyondLength(t *testing.T) {
	mem := testutil.CheckedAllocator(t)
	df := testutil.SampleFrame(t, mem)

	out := testutil.Release(t, df.Head(100))
	assert.True(t, df.Equal(out))

	none := testutil.Release(t, df.Head(0))
	assert.Equal(t, int64(0), none.NumRows())
}

func TestFromRecordsConcatenates(t *testing.T) {
	mem := testutil.CheckedAllocator(t)
	df := testutil.SampleFrame(t, mem)

	first := df.Record().NewSlice(0, 1)
	defer first.Release()
	rest := df.Record().NewSlice(1, df.NumRows())
	defer rest.Release()

	joined, err := frame.FromRecords(mem, df.Schema(), []arrow.Record{first, rest})
	require.NoError(t, err)
	testutil.Release(t, joined)

	assert.True(t, df.Equal(joined))
}

func TestSnapshotSharesBuffers(t *testing.T) {
	mem := testutil.CheckedAllocator(t)
	df := testutil.SampleFrame(t, mem)

	snap := df.Snapshot()
	assert.Same(t, df.Record(), snap.Record())
	snap.Release()

	// df is still valid after the snapshot is released
	assert.Equal(t, int64(4), df.NumRows())
}
