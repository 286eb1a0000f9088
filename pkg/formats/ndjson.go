package formats

import (
	"bytes"
	"context"
	"io"
	"math"
	"strconv"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	gojson "github.com/goccy/go-json"

	"github.com/ajitpratap0/dfio/pkg/compression"
	"github.com/ajitpratap0/dfio/pkg/errors"
	"github.com/ajitpratap0/dfio/pkg/frame"
	"github.com/ajitpratap0/dfio/pkg/json"
	"github.com/ajitpratap0/dfio/pkg/schema"
)

// DumpNDJSON encodes df as newline-delimited JSON, one object per row.
func (g *Gateway) DumpNDJSON(df *frame.DataFrame) ([]byte, error) {
	return g.dump(df, FormatNDJSON, noOptions, g.encodeNDJSON)
}

// WriteNDJSON encodes df as newline-delimited JSON into dst.
func (g *Gateway) WriteNDJSON(ctx context.Context, df *frame.DataFrame, dst Destination) error {
	return g.write(ctx, df, dst, FormatNDJSON, noOptions, g.encodeNDJSON)
}

// LoadNDJSON decodes newline-delimited JSON bytes.
func (g *Gateway) LoadNDJSON(data []byte, opts NDJSONReadOptions) (*frame.DataFrame, error) {
	return g.load(FormatNDJSON, data, opts.Projection, opts.Validate, func(data []byte) (*frame.DataFrame, error) {
		return g.decodeNDJSON(data, opts)
	})
}

// ReadNDJSON decodes the newline-delimited JSON file at path.
func (g *Gateway) ReadNDJSON(path string, opts NDJSONReadOptions) (*frame.DataFrame, error) {
	return g.read(FormatNDJSON, path, opts.Projection, opts.Validate, func(data []byte) (*frame.DataFrame, error) {
		return g.decodeNDJSON(data, opts)
	})
}

func noOptions() error { return nil }

func (g *Gateway) encodeNDJSON(w io.Writer, df *frame.DataFrame) error {
	rec := df.Record()
	fields := rec.Schema().Fields()

	obj := json.GetObjectWriter()
	defer json.PutObjectWriter(obj)
	for i := 0; i < int(rec.NumRows()); i++ {
		obj.Begin()
		for j, f := range fields {
			if err := writeJSONValue(obj, f.Name, rec.Column(j), i); err != nil {
				return errors.Wrap(err, errors.ErrorTypeInternal, "failed to encode value").WithValue(f.Name)
			}
		}
		if err := obj.End(w); err != nil {
			return err
		}
	}
	return nil
}

func writeJSONValue(obj *json.ObjectWriter, key string, col arrow.Array, i int) error {
	if col.IsNull(i) {
		return obj.Null(key)
	}
	switch c := col.(type) {
	case *array.Float64:
		return obj.Float(key, c.Value(i))
	case *array.Float32:
		return obj.Float(key, float64(c.Value(i)))
	case *array.Float16:
		return obj.Float(key, float64(c.Value(i).Float32()))
	default:
		return obj.Value(key, col.GetOneForMarshal(i))
	}
}

func (g *Gateway) decodeNDJSON(data []byte, opts NDJSONReadOptions) (*frame.DataFrame, error) {
	data, _, err := compression.Decompress(data)
	if err != nil {
		return nil, err
	}
	sc, err := inferNDJSONSchema(data, opts.InferSchemaLength)
	if err != nil {
		return nil, err
	}
	arrowSchema := sc.ArrowSchema()

	index := make(map[string]int, sc.Len())
	for i, name := range sc.Names() {
		index[name] = i
	}

	b := array.NewRecordBuilder(g.mem, arrowSchema)
	defer b.Release()

	var recs []arrow.Record
	defer func() {
		for _, rec := range recs {
			rec.Release()
		}
	}()

	dec := json.GetDecoder(bytes.NewReader(data))
	filled := make([]bool, sc.Len())
	pending := 0
	for row := 0; ; row++ {
		if opts.MaxRows != nil && row >= *opts.MaxRows {
			break
		}
		members, err := json.ReadObject(dec)
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeDecode, "failed to parse ndjson").WithDetail("row", row)
		}

		for i := range filled {
			filled[i] = false
		}
		for _, m := range members {
			i, ok := index[m.Key]
			if !ok || filled[i] {
				continue
			}
			filled[i] = true
			if err := appendJSONValue(b.Field(i), m.Value); err != nil {
				return nil, errors.Wrap(err, errors.ErrorTypeDecode, "value does not match column type").
					WithValue(m.Key).
					WithDetail("row", row)
			}
		}
		for i, ok := range filled {
			if !ok {
				b.Field(i).AppendNull()
			}
		}

		if pending++; pending == opts.BatchSize {
			recs = append(recs, b.NewRecord())
			pending = 0
		}
	}
	if pending > 0 {
		recs = append(recs, b.NewRecord())
	}

	return frame.FromRecords(g.mem, arrowSchema, recs)
}

// inferNDJSONSchema samples up to limit objects. Columns are ordered by first
// appearance; a column whose sampled values are all null is utf8.
func inferNDJSONSchema(data []byte, limit *int) (*schema.Schema, error) {
	dec := json.GetDecoder(bytes.NewReader(data))

	var names []string
	guesses := make(map[string]*schema.Guess)
	for row := 0; limit == nil || row < *limit; row++ {
		members, err := json.ReadObject(dec)
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeDecode, "failed to parse ndjson").WithDetail("row", row)
		}
		for _, m := range members {
			guess, ok := guesses[m.Key]
			if !ok {
				guess = &schema.Guess{}
				guesses[m.Key] = guess
				names = append(names, m.Key)
			}
			if m.Value != nil {
				guess.Observe(jsonDType(m.Value))
			}
		}
	}

	sc := &schema.Schema{}
	for _, name := range names {
		sc.Set(name, guesses[name].Result())
	}
	return sc, nil
}

func jsonDType(v interface{}) schema.DType {
	switch v := v.(type) {
	case bool:
		return schema.Boolean
	case gojson.Number:
		if _, err := strconv.ParseInt(string(v), 10, 64); err == nil {
			return schema.Int64
		}
		return schema.Float64
	case float64:
		return schema.Float64
	default:
		return schema.Utf8
	}
}

func appendJSONValue(b array.Builder, v interface{}) error {
	if v == nil {
		b.AppendNull()
		return nil
	}
	switch b := b.(type) {
	case *array.Int64Builder:
		if n, ok := v.(gojson.Number); ok {
			if i, err := strconv.ParseInt(string(n), 10, 64); err == nil {
				b.Append(i)
				return nil
			}
		}
		if f, ok := v.(float64); ok && f == math.Trunc(f) && math.Abs(f) < 1<<63 {
			b.Append(int64(f))
			return nil
		}
	case *array.Float64Builder:
		switch n := v.(type) {
		case gojson.Number:
			if f, err := strconv.ParseFloat(string(n), 64); err == nil {
				b.Append(f)
				return nil
			}
		case float64:
			b.Append(n)
			return nil
		}
	case *array.BooleanBuilder:
		if t, ok := v.(bool); ok {
			b.Append(t)
			return nil
		}
	case *array.StringBuilder:
		switch s := v.(type) {
		case string:
			b.Append(s)
		case gojson.Number:
			b.Append(string(s))
		case float64:
			b.Append(strconv.FormatFloat(s, 'g', -1, 64))
		case bool:
			b.Append(strconv.FormatBool(s))
		}
		return nil
	}
	return errors.Newf(errors.ErrorTypeDecode, "cannot store %v in a %s column", v, b.Type())
}
