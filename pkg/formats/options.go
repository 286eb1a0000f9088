package formats

import (
	"strconv"

	"github.com/ajitpratap0/dfio/pkg/errors"
	"github.com/ajitpratap0/dfio/pkg/frame"
	"github.com/ajitpratap0/dfio/pkg/schema"
)

// Text encodings accepted by CSV reads.
const (
	EncodingUTF8      = "utf8"
	EncodingUTF8Lossy = "utf8-lossy"
)

// DefaultInferSchemaLength is the number of rows sampled for type inference.
const DefaultInferSchemaLength = 1000

// DefaultBatchSize is the number of NDJSON rows decoded per batch.
const DefaultBatchSize = 1000

// CSVReadOptions controls CSV decoding. Start from DefaultCSVReadOptions.
type CSVReadOptions struct {
	Delimiter byte
	HasHeader bool
	// EOL is the record terminator
	EOL byte
	// Encoding is EncodingUTF8 (invalid input fails) or EncodingUTF8Lossy
	// (invalid sequences become U+FFFD)
	Encoding string
	// SkipRows drops lines before the header
	SkipRows int
	// InferSchemaLength caps the rows sampled for inference; nil samples
	// every row and 0 reads every column as str
	InferSchemaLength *int
	// DTypes overrides the inferred type of named columns
	DTypes []schema.Pair
	// NullValues are read as null in addition to the empty field
	NullValues []string
	// ParseDates infers date and datetime columns
	ParseDates bool

	frame.Projection
}

// DefaultCSVReadOptions returns comma-delimited, headed, strict UTF-8 options.
func DefaultCSVReadOptions() CSVReadOptions {
	n := DefaultInferSchemaLength
	return CSVReadOptions{
		Delimiter:         ',',
		HasHeader:         true,
		EOL:               '\n',
		Encoding:          EncodingUTF8,
		InferSchemaLength: &n,
	}
}

// Validate checks the options without coercing them.
func (o CSVReadOptions) Validate() error {
	if err := validateSeparator("delimiter", o.Delimiter); err != nil {
		return err
	}
	if o.EOL == 0 || o.EOL > 127 || o.EOL == '"' {
		return errors.New(errors.ErrorTypeValidation, "eol must be a single ASCII character other than a quote").
			WithValue(string(rune(o.EOL)))
	}
	if o.Delimiter == o.EOL {
		return errors.New(errors.ErrorTypeValidation, "delimiter and eol must differ").
			WithValue(string(o.Delimiter))
	}
	switch o.Encoding {
	case EncodingUTF8, EncodingUTF8Lossy:
	default:
		return errors.New(errors.ErrorTypeUnsupportedOption, "unsupported encoding").WithValue(o.Encoding)
	}
	if o.SkipRows < 0 {
		return errors.New(errors.ErrorTypeValidation, "skip rows must not be negative").
			WithValue(strconv.Itoa(o.SkipRows))
	}
	if o.InferSchemaLength != nil && *o.InferSchemaLength < 0 {
		return errors.New(errors.ErrorTypeValidation, "infer schema length must not be negative").
			WithValue(strconv.Itoa(*o.InferSchemaLength))
	}
	return validateProjection(o.Projection)
}

// CSVWriteOptions controls CSV encoding.
type CSVWriteOptions struct {
	Delimiter byte
	HasHeader bool
}

// DefaultCSVWriteOptions returns comma-delimited options with a header.
func DefaultCSVWriteOptions() CSVWriteOptions {
	return CSVWriteOptions{Delimiter: ',', HasHeader: true}
}

// Validate checks the options.
func (o CSVWriteOptions) Validate() error {
	return validateSeparator("delimiter", o.Delimiter)
}

// NDJSONReadOptions controls NDJSON decoding. Start from
// DefaultNDJSONReadOptions.
type NDJSONReadOptions struct {
	// InferSchemaLength caps the rows sampled for inference; nil samples
	// every row
	InferSchemaLength *int
	// BatchSize is the number of rows decoded per batch
	BatchSize int

	frame.Projection
}

// DefaultNDJSONReadOptions samples 1000 rows and decodes 1000 rows per batch.
func DefaultNDJSONReadOptions() NDJSONReadOptions {
	n := DefaultInferSchemaLength
	return NDJSONReadOptions{InferSchemaLength: &n, BatchSize: DefaultBatchSize}
}

// Validate checks the options.
func (o NDJSONReadOptions) Validate() error {
	if o.InferSchemaLength != nil && *o.InferSchemaLength < 1 {
		return errors.New(errors.ErrorTypeValidation, "infer schema length must be at least 1").
			WithValue(strconv.Itoa(*o.InferSchemaLength))
	}
	if o.BatchSize <= 0 {
		return errors.New(errors.ErrorTypeValidation, "batch size must be positive").
			WithValue(strconv.Itoa(o.BatchSize))
	}
	return validateProjection(o.Projection)
}

// ParquetReadOptions controls Parquet decoding.
type ParquetReadOptions struct {
	frame.Projection
}

// ParquetWriteOptions controls Parquet encoding.
type ParquetWriteOptions struct {
	// Compression is a Parquet algorithm name; empty means none
	Compression string
	// CompressionLevel applies to gzip, brotli and zstd
	CompressionLevel *int
}

// IPCReadOptions controls IPC file decoding.
type IPCReadOptions struct {
	frame.Projection
}

// IPCWriteOptions controls IPC file encoding.
type IPCWriteOptions struct {
	// Compression is an IPC algorithm name; empty means none
	Compression string
}

// IPCStreamReadOptions controls IPC stream decoding.
type IPCStreamReadOptions struct {
	frame.Projection
}

// IPCStreamWriteOptions controls IPC stream encoding.
type IPCStreamWriteOptions struct {
	// Compression is an IPC stream algorithm name; empty means none
	Compression string
}

func validateSeparator(name string, b byte) error {
	if b == 0 || b > 127 || b == '"' || b == '\n' || b == '\r' {
		return errors.Newf(errors.ErrorTypeValidation, "%s must be a single ASCII character other than a quote or line break", name).
			WithValue(string(rune(b)))
	}
	return nil
}

func validateProjection(p frame.Projection) error {
	if p.MaxRows != nil && *p.MaxRows < 0 {
		return errors.New(errors.ErrorTypeValidation, "max rows must not be negative").
			WithValue(strconv.Itoa(*p.MaxRows))
	}
	return nil
}
