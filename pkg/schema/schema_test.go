package schema

import (
	"testing"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/dfio/pkg/errors"
)

func TestParseDType(t *testing.T) {
	tests := []struct {
		name string
		want DType
	}{
		{"binary", Binary},
		{"bool", Boolean},
		{"cat", Categorical},
		{"date", Date},
		{"datetime[ms]", DatetimeMillis},
		{"datetime[μs]", DatetimeMicros},
		{"datetime[us]", DatetimeMicros},
		{"datetime[ns]", DatetimeNanos},
		{"f64", Float64},
		{"i64", Int64},
		{"str", Utf8},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseDType(tt.name)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestResolveRejectsUnknownType(t *testing.T) {
	_, err := Resolve([]Pair{{Name: "x", Type: "frobnicate"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "frobnicate")
	assert.True(t, errors.IsType(err, errors.ErrorTypeUnsupportedOption))
}

func TestResolveLastWriteWinsFirstPosition(t *testing.T) {
	s, err := Resolve([]Pair{
		{Name: "a", Type: "i64"},
		{Name: "b", Type: "str"},
		{Name: "a", Type: "f64"},
		{Name: "c", Type: "bool"},
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"a", "b", "c"}, s.Names())
	dt, ok := s.Lookup("a")
	require.True(t, ok)
	assert.Equal(t, Float64, dt)
	assert.Equal(t, "a: f64\nb: str\nc: bool", s.String())
}

func TestResolveEmpty(t *testing.T) {
	s, err := Resolve(nil)
	require.NoError(t, err)
	assert.Equal(t, 0, s.Len())
	_, ok := s.Lookup("a")
	assert.False(t, ok)
}

func TestDTypeStringRoundTrip(t *testing.T) {
	for name, dt := range names {
		if name == "datetime[us]" {
			continue
		}
		assert.Equal(t, name, dt.String())
	}
}

func TestArrowMapping(t *testing.T) {
	for _, dt := range []DType{Binary, Boolean, Categorical, Date, DatetimeMillis, DatetimeMicros, DatetimeNanos, Float64, Int64, Utf8} {
		back, ok := FromArrow(dt.ArrowType())
		require.True(t, ok, dt.String())
		assert.Equal(t, dt, back)
	}

	_, ok := FromArrow(arrow.PrimitiveTypes.Int32)
	assert.False(t, ok)
}

func TestArrowSchemaOrder(t *testing.T) {
	s := New(Field{Name: "z", DType: Int64}, Field{Name: "a", DType: Utf8})
	as := s.ArrowSchema()
	require.Equal(t, 2, len(as.Fields()))
	assert.Equal(t, "z", as.Field(0).Name)
	assert.Equal(t, arrow.PrimitiveTypes.Int64, as.Field(0).Type)
	assert.True(t, as.Field(1).Nullable)

	back, unsupported := FromArrowSchema(as)
	assert.Empty(t, unsupported)
	assert.Equal(t, s.Fields(), back.Fields())
}

func TestInferText(t *testing.T) {
	tests := []struct {
		value      string
		parseDates bool
		want       DType
	}{
		{"true", false, Boolean},
		{"42", false, Int64},
		{"-7", false, Int64},
		{"1.5", false, Float64},
		{"1e3", false, Float64},
		{"nan", false, Utf8},
		{"inf", false, Utf8},
		{"2024-01-02", false, Utf8},
		{"2024-01-02", true, Date},
		{"2024-01-02T03:04:05", true, DatetimeMicros},
		{"2024-01-02T03:04:05.123Z", true, DatetimeMicros},
		{"2024-01-02 03:04:05", true, DatetimeMicros},
		{"2024-01-02 03:04:05.123456", true, DatetimeMicros},
		{"2024-01-02 03:04", true, DatetimeMicros},
		{"2024-01-02 03:04:05+02:00", true, DatetimeMicros},
		{"2024-01-02 03:04:05", false, Utf8},
		{"2024-01-02 noon", true, Utf8},
		{"hello", true, Utf8},
	}

	for _, tt := range tests {
		t.Run(tt.value, func(t *testing.T) {
			assert.Equal(t, tt.want, InferText(tt.value, tt.parseDates))
		})
	}
}

func TestGuessWidening(t *testing.T) {
	var g Guess
	assert.Equal(t, Utf8, g.Result())
	assert.False(t, g.Seen())

	g.Observe(Int64)
	assert.Equal(t, Int64, g.Result())
	g.Observe(Float64)
	assert.Equal(t, Float64, g.Result())
	g.Observe(Int64)
	assert.Equal(t, Float64, g.Result())
	g.Observe(Boolean)
	assert.Equal(t, Utf8, g.Result())

	var d Guess
	d.Observe(Date)
	d.Observe(DatetimeMicros)
	assert.Equal(t, DatetimeMicros, d.Result())
}
