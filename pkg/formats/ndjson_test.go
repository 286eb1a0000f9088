package formats_test

import (
	"bytes"
	"testing"

	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/dfio/pkg/compression"
	"github.com/ajitpratap0/dfio/pkg/errors"
	"github.com/ajitpratap0/dfio/pkg/formats"
	"github.com/ajitpratap0/dfio/pkg/frame"
	"github.com/ajitpratap0/dfio/pkg/testutil"
)

func loadNDJSON(t *testing.T, input string, mutate func(*formats.NDJSONReadOptions)) *frame.DataFrame {
	t.Helper()
	gw := newGateway(t, testutil.CheckedAllocator(t))
	opts := formats.DefaultNDJSONReadOptions()
	if mutate != nil {
		mutate(&opts)
	}
	df, err := gw.LoadNDJSON([]byte(input), opts)
	require.NoError(t, err)
	return testutil.Release(t, df)
}

func TestDumpNDJSON(t *testing.T) {
	mem := testutil.CheckedAllocator(t)
	gw := newGateway(t, mem)
	df := testutil.SampleFrame(t, mem)

	out, err := gw.DumpNDJSON(df)
	require.NoError(t, err)
	assert.Equal(t,
		`{"id":1,"score":1.5,"name":"ada","active":true}`+"\n"+
			`{"id":2,"score":2.25,"name":"grace","active":false}`+"\n"+
			`{"id":3,"score":null,"name":null,"active":true}`+"\n"+
			`{"id":4,"score":-4.75,"name":"linus","active":false}`+"\n",
		string(out))
}

func TestDumpNDJSONKeepsIntegralFloats(t *testing.T) {
	df := loadNDJSON(t, `{"x":2.0}`+"\n"+`{"x":3}`+"\n", nil)
	assert.Equal(t, "x: f64", dtypes(t, df))

	gw := newGateway(t, testutil.CheckedAllocator(t))
	out, err := gw.DumpNDJSON(df)
	require.NoError(t, err)
	assert.Equal(t, `{"x":2.0}`+"\n"+`{"x":3.0}`+"\n", string(out))
}

func TestDumpNDJSONEmptyFrame(t *testing.T) {
	df := loadNDJSON(t, "", nil)
	gw := newGateway(t, testutil.CheckedAllocator(t))
	out, err := gw.DumpNDJSON(df)
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestLoadNDJSON(t *testing.T) {
	one := 1

	tests := []struct {
		name   string
		input  string
		mutate func(*formats.NDJSONReadOptions)
		schema string
		rows   int64
	}{
		{
			name:   "columns in first-seen order",
			input:  `{"b":1,"a":"x"}` + "\n" + `{"c":true,"a":"y"}` + "\n",
			schema: "b: i64\na: str\nc: bool",
			rows:   2,
		},
		{
			name:   "ints widen to float",
			input:  `{"v":1}` + "\n" + `{"v":1.5}` + "\n",
			schema: "v: f64",
			rows:   2,
		},
		{
			name:   "mixed values become text",
			input:  `{"v":1}` + "\n" + `{"v":"one"}` + "\n" + `{"v":false}` + "\n",
			schema: "v: str",
			rows:   3,
		},
		{
			name:   "all null column",
			input:  `{"v":null}` + "\n",
			schema: "v: str",
			rows:   1,
		},
		{
			name:   "blank lines",
			input:  "\n" + `{"v":1}` + "\n\n" + `{"v":2}` + "\n\n",
			schema: "v: i64",
			rows:   2,
		},
		{
			name:   "keys beyond the sample are dropped",
			input:  `{"a":1}` + "\n" + `{"a":2,"late":3}` + "\n",
			mutate: func(o *formats.NDJSONReadOptions) { o.InferSchemaLength = &one },
			schema: "a: i64",
			rows:   2,
		},
		{
			name:   "small batches",
			input:  `{"a":1}` + "\n" + `{"a":2}` + "\n" + `{"a":3}` + "\n",
			mutate: func(o *formats.NDJSONReadOptions) { o.BatchSize = 2 },
			schema: "a: i64",
			rows:   3,
		},
		{
			name:   "empty input",
			input:  "",
			schema: "",
			rows:   0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			df := loadNDJSON(t, tt.input, tt.mutate)
			assert.Equal(t, tt.schema, dtypes(t, df))
			assert.Equal(t, tt.rows, df.NumRows())
		})
	}
}

func TestLoadNDJSONCompressedInput(t *testing.T) {
	for _, algo := range []compression.TextAlgorithm{
		compression.TextGzip, compression.TextZstd, compression.TextLZ4, compression.TextSnappy,
	} {
		t.Run(string(algo), func(t *testing.T) {
			var buf bytes.Buffer
			w, err := compression.NewWriter(&buf, algo, compression.Default)
			require.NoError(t, err)
			_, err = w.Write([]byte(`{"a":1,"b":"x"}` + "\n" + `{"a":2,"b":"y"}` + "\n"))
			require.NoError(t, err)
			require.NoError(t, w.Close())

			df := loadNDJSON(t, buf.String(), nil)
			assert.Equal(t, "a: i64\nb: str", dtypes(t, df))
			assert.EqualValues(t, 2, df.NumRows())
		})
	}
}

func TestLoadNDJSONCorruptCompressedInput(t *testing.T) {
	var buf bytes.Buffer
	w, err := compression.NewWriter(&buf, compression.TextGzip, compression.Default)
	require.NoError(t, err)
	_, err = w.Write(bytes.Repeat([]byte(`{"a":1}`+"\n"), 512))
	require.NoError(t, err)
	require.NoError(t, w.Close())

	gw := newGateway(t, testutil.CheckedAllocator(t))
	_, err = gw.LoadNDJSON(buf.Bytes()[:buf.Len()/2], formats.DefaultNDJSONReadOptions())
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeDecode), "got %v", err)
}

func TestLoadNDJSONCoercesToText(t *testing.T) {
	df := loadNDJSON(t, `{"v":1}`+"\n"+`{"v":"one"}`+"\n"+`{"v":false}`+"\n"+`{}`+"\n", nil)
	col := df.Column(0).(*array.String)
	assert.Equal(t, "1", col.Value(0))
	assert.Equal(t, "one", col.Value(1))
	assert.Equal(t, "false", col.Value(2))
	assert.True(t, col.IsNull(3))
}

func TestLoadNDJSONErrors(t *testing.T) {
	one := 1
	zero := 0

	tests := []struct {
		name   string
		input  string
		mutate func(*formats.NDJSONReadOptions)
		want   errors.ErrorType
	}{
		{"nested object", `{"a":{"b":1}}`, nil, errors.ErrorTypeDecode},
		{"nested array", `{"a":[1,2]}`, nil, errors.ErrorTypeDecode},
		{"not an object", `[1,2]`, nil, errors.ErrorTypeDecode},
		{"truncated", `{"a":1`, nil, errors.ErrorTypeDecode},
		{"type change after the sample", `{"a":1}` + "\n" + `{"a":"x"}`, func(o *formats.NDJSONReadOptions) {
			o.InferSchemaLength = &one
		}, errors.ErrorTypeDecode},
		{"zero inference", `{"a":1}`, func(o *formats.NDJSONReadOptions) {
			o.InferSchemaLength = &zero
		}, errors.ErrorTypeValidation},
		{"zero batch", `{"a":1}`, func(o *formats.NDJSONReadOptions) { o.BatchSize = 0 }, errors.ErrorTypeValidation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gw := newGateway(t, testutil.CheckedAllocator(t))
			opts := formats.DefaultNDJSONReadOptions()
			if tt.mutate != nil {
				tt.mutate(&opts)
			}
			_, err := gw.LoadNDJSON([]byte(tt.input), opts)
			require.Error(t, err)
			assert.True(t, errors.IsType(err, tt.want), "got %v", err)
		})
	}
}

func TestLoadNDJSONMismatchNamesColumn(t *testing.T) {
	one := 1
	gw := newGateway(t, testutil.CheckedAllocator(t))
	opts := formats.DefaultNDJSONReadOptions()
	opts.InferSchemaLength = &one

	_, err := gw.LoadNDJSON([]byte(`{"amount":1}`+"\n"+`{"amount":true}`), opts)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `"amount"`)
}
