package formats

import (
	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"

	"github.com/ajitpratap0/dfio/pkg/errors"
	"github.com/ajitpratap0/dfio/pkg/schema"
)

// textRecord returns rec with categorical and binary columns rendered as
// strings, for encoders that only handle flat text. The result must be
// released.
func textRecord(mem memory.Allocator, rec arrow.Record) arrow.Record {
	sc := rec.Schema()
	fields := make([]arrow.Field, sc.NumFields())
	cols := make([]arrow.Array, sc.NumFields())
	var converted []arrow.Array
	defer func() {
		for _, c := range converted {
			c.Release()
		}
	}()

	for i, f := range sc.Fields() {
		fields[i] = f
		cols[i] = rec.Column(i)

		var conv arrow.Array
		switch c := rec.Column(i).(type) {
		case *array.Dictionary:
			conv = dictionaryToString(mem, c)
		case *array.Binary:
			conv = reinterpret(c.Data(), arrow.BinaryTypes.String)
		default:
			continue
		}
		converted = append(converted, conv)
		fields[i].Type = conv.DataType()
		cols[i] = conv
	}

	if len(converted) == 0 {
		rec.Retain()
		return rec
	}
	md := sc.Metadata()
	return array.NewRecord(arrow.NewSchema(fields, &md), cols, rec.NumRows())
}

func dictionaryToString(mem memory.Allocator, c *array.Dictionary) arrow.Array {
	b := array.NewStringBuilder(mem)
	defer b.Release()
	b.Reserve(c.Len())
	for i := 0; i < c.Len(); i++ {
		if c.IsNull(i) {
			b.AppendNull()
			continue
		}
		b.Append(c.ValueStr(i))
	}
	return b.NewArray()
}

// reinterpret views the buffers of data as dt. Only valid between layouts
// that match, such as utf8 and binary.
func reinterpret(data arrow.ArrayData, dt arrow.DataType) arrow.Array {
	d := array.NewData(dt, data.Len(), data.Buffers(), nil, data.NullN(), data.Offset())
	defer d.Release()
	return array.MakeFromData(d)
}

func stringToCategorical(mem memory.Allocator, c *array.String) (arrow.Array, error) {
	b := array.NewDictionaryBuilder(mem, schema.CategoricalType).(*array.BinaryDictionaryBuilder)
	defer b.Release()
	for i := 0; i < c.Len(); i++ {
		if c.IsNull(i) {
			b.AppendNull()
			continue
		}
		if err := b.AppendString(c.Value(i)); err != nil {
			return nil, err
		}
	}
	return b.NewArray(), nil
}

// applyTextTypes converts the utf8 columns of rec that want declares as
// categorical or binary. rec is released; the result must be released.
func applyTextTypes(mem memory.Allocator, rec arrow.Record, want *schema.Schema) (arrow.Record, error) {
	defer rec.Release()

	sc := rec.Schema()
	fields := make([]arrow.Field, sc.NumFields())
	cols := make([]arrow.Array, sc.NumFields())
	var converted []arrow.Array
	defer func() {
		for _, c := range converted {
			c.Release()
		}
	}()

	for i, f := range sc.Fields() {
		fields[i] = f
		cols[i] = rec.Column(i)

		dt, _ := want.Lookup(f.Name)
		str, ok := rec.Column(i).(*array.String)
		if !ok || (dt.Kind != schema.KindCategorical && dt.Kind != schema.KindBinary) {
			continue
		}

		var conv arrow.Array
		if dt.Kind == schema.KindBinary {
			conv = reinterpret(str.Data(), arrow.BinaryTypes.Binary)
		} else {
			var err error
			if conv, err = stringToCategorical(mem, str); err != nil {
				return nil, errors.Wrap(err, errors.ErrorTypeDecode, "failed to build categorical column").
					WithValue(f.Name)
			}
		}
		converted = append(converted, conv)
		fields[i].Type = conv.DataType()
		cols[i] = conv
	}

	if len(converted) == 0 {
		rec.Retain()
		return rec, nil
	}
	md := sc.Metadata()
	return array.NewRecord(arrow.NewSchema(fields, &md), cols, rec.NumRows()), nil
}
