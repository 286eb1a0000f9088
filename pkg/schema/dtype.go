// Package schema resolves user-declared column types into ordered schemas and
// maps them onto Arrow data types.
package schema

import (
	"github.com/apache/arrow-go/v18/arrow"

	"github.com/ajitpratap0/dfio/pkg/errors"
)

// Kind enumerates the closed set of column types a dataframe may declare.
type Kind int

const (
	KindBinary Kind = iota
	KindBoolean
	KindCategorical
	KindDate
	KindDatetime
	KindFloat64
	KindInt64
	KindUtf8
)

// DType is a column type. Unit is only meaningful for KindDatetime.
type DType struct {
	Kind Kind
	Unit arrow.TimeUnit
}

var (
	Binary         = DType{Kind: KindBinary}
	Boolean        = DType{Kind: KindBoolean}
	Categorical    = DType{Kind: KindCategorical}
	Date           = DType{Kind: KindDate}
	Float64        = DType{Kind: KindFloat64}
	Int64          = DType{Kind: KindInt64}
	Utf8           = DType{Kind: KindUtf8}
	DatetimeMillis = DType{Kind: KindDatetime, Unit: arrow.Millisecond}
	DatetimeMicros = DType{Kind: KindDatetime, Unit: arrow.Microsecond}
	DatetimeNanos  = DType{Kind: KindDatetime, Unit: arrow.Nanosecond}
)

// CategoricalType is the Arrow encoding of a categorical column.
var CategoricalType = &arrow.DictionaryType{IndexType: arrow.PrimitiveTypes.Int32, ValueType: arrow.BinaryTypes.String}

// names is the type-name vocabulary accepted from callers.
var names = map[string]DType{
	"binary":       Binary,
	"bool":         Boolean,
	"cat":          Categorical,
	"date":         Date,
	"datetime[ms]": DatetimeMillis,
	"datetime[μs]": DatetimeMicros,
	"datetime[us]": DatetimeMicros,
	"datetime[ns]": DatetimeNanos,
	"f64":          Float64,
	"i64":          Int64,
	"str":          Utf8,
}

// ParseDType resolves a type name such as "i64" or "datetime[ms]".
func ParseDType(name string) (DType, error) {
	dt, ok := names[name]
	if !ok {
		return DType{}, errors.New(errors.ErrorTypeUnsupportedOption, "unrecognised datatype").WithValue(name)
	}
	return dt, nil
}

// String returns the canonical type name.
func (d DType) String() string {
	switch d.Kind {
	case KindBinary:
		return "binary"
	case KindBoolean:
		return "bool"
	case KindCategorical:
		return "cat"
	case KindDate:
		return "date"
	case KindDatetime:
		switch d.Unit {
		case arrow.Millisecond:
			return "datetime[ms]"
		case arrow.Microsecond:
			return "datetime[μs]"
		case arrow.Nanosecond:
			return "datetime[ns]"
		}
		return "datetime"
	case KindFloat64:
		return "f64"
	case KindInt64:
		return "i64"
	case KindUtf8:
		return "str"
	default:
		return "unknown"
	}
}

// ArrowType returns the Arrow type a column of this dtype is stored as.
func (d DType) ArrowType() arrow.DataType {
	switch d.Kind {
	case KindBinary:
		return arrow.BinaryTypes.Binary
	case KindBoolean:
		return arrow.FixedWidthTypes.Boolean
	case KindCategorical:
		return CategoricalType
	case KindDate:
		return arrow.FixedWidthTypes.Date32
	case KindDatetime:
		return &arrow.TimestampType{Unit: d.Unit}
	case KindFloat64:
		return arrow.PrimitiveTypes.Float64
	case KindInt64:
		return arrow.PrimitiveTypes.Int64
	default:
		return arrow.BinaryTypes.String
	}
}

// FromArrow maps an Arrow type back onto the dtype set. The second result is
// false for Arrow types outside the set (including narrow numerics that have
// not been normalized yet).
func FromArrow(dt arrow.DataType) (DType, bool) {
	switch t := dt.(type) {
	case *arrow.BinaryType, *arrow.LargeBinaryType:
		return Binary, true
	case *arrow.BooleanType:
		return Boolean, true
	case *arrow.DictionaryType:
		if id := t.ValueType.ID(); id == arrow.STRING || id == arrow.LARGE_STRING {
			return Categorical, true
		}
		return DType{}, false
	case *arrow.Date32Type, *arrow.Date64Type:
		return Date, true
	case *arrow.TimestampType:
		if t.Unit == arrow.Second {
			return DType{}, false
		}
		return DType{Kind: KindDatetime, Unit: t.Unit}, true
	case *arrow.Float64Type:
		return Float64, true
	case *arrow.Int64Type:
		return Int64, true
	case *arrow.StringType, *arrow.LargeStringType:
		return Utf8, true
	default:
		return DType{}, false
	}
}
