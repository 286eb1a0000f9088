// Package compression defines the compression vocabularies of the binary
// formats and resolves algorithm names against them.
//
// # Vocabularies
//
// Each binary format has its own closed set of algorithms, modelled as its own
// Go type so a value from one can never be passed where another is expected:
//   - Parquet: none, snappy, gzip, brotli, lz4 (LZ4_RAW), zstd
//   - IPC file: none, lz4, zstd
//   - IPC stream: none, lz4, zstd
//
// The IPC file and IPC stream sets share spelling but not identity: the
// container layouts differ, so each variant resolves names on its own.
//
// # Basic Usage
//
//	c, err := compression.ParseIPCStream("zstd")
//	if err != nil {
//	    return err // unsupported_option naming the algorithm
//	}
//	w, err := ipc.NewWriter(out, append(opts, c.WriterOptions()...)...)
package compression

import (
	"strconv"
	"strings"

	"github.com/apache/arrow-go/v18/arrow/ipc"
	"github.com/apache/arrow-go/v18/parquet"
	"github.com/apache/arrow-go/v18/parquet/compress"

	"github.com/ajitpratap0/dfio/pkg/errors"
)

// Variant names a compression vocabulary.
type Variant string

const (
	// VariantParquet is the Parquet file vocabulary.
	VariantParquet Variant = "parquet"
	// VariantIPC is the IPC file vocabulary.
	VariantIPC Variant = "ipc"
	// VariantIPCStream is the IPC stream vocabulary.
	VariantIPCStream Variant = "ipc_stream"
)

// ParquetAlgorithm is a member of the Parquet vocabulary.
type ParquetAlgorithm string

const (
	ParquetNone   ParquetAlgorithm = "none"
	ParquetSnappy ParquetAlgorithm = "snappy"
	ParquetGzip   ParquetAlgorithm = "gzip"
	ParquetBrotli ParquetAlgorithm = "brotli"
	ParquetLZ4    ParquetAlgorithm = "lz4"
	ParquetZstd   ParquetAlgorithm = "zstd"
)

// IPCCompression is a member of the IPC file vocabulary.
type IPCCompression string

const (
	IPCNone IPCCompression = "none"
	IPCLZ4  IPCCompression = "lz4"
	IPCZstd IPCCompression = "zstd"
)

// IPCStreamCompression is a member of the IPC stream vocabulary.
type IPCStreamCompression string

const (
	IPCStreamNone IPCStreamCompression = "none"
	IPCStreamLZ4  IPCStreamCompression = "lz4"
	IPCStreamZstd IPCStreamCompression = "zstd"
)

var (
	parquetVocabulary   = vocabulary[ParquetAlgorithm]{variant: VariantParquet, members: []ParquetAlgorithm{ParquetNone, ParquetSnappy, ParquetGzip, ParquetBrotli, ParquetLZ4, ParquetZstd}}
	ipcVocabulary       = vocabulary[IPCCompression]{variant: VariantIPC, members: []IPCCompression{IPCNone, IPCLZ4, IPCZstd}}
	ipcStreamVocabulary = vocabulary[IPCStreamCompression]{variant: VariantIPCStream, members: []IPCStreamCompression{IPCStreamNone, IPCStreamLZ4, IPCStreamZstd}}
)

// vocabulary is one closed set of algorithm names.
type vocabulary[T ~string] struct {
	variant Variant
	members []T
}

// parse resolves name; the empty string means none.
func (v vocabulary[T]) parse(name string) (T, error) {
	key := strings.ToLower(strings.TrimSpace(name))
	if key == "" || key == "uncompressed" {
		key = "none"
	}
	for _, m := range v.members {
		if string(m) == key {
			return m, nil
		}
	}
	var zero T
	return zero, errors.Newf(errors.ErrorTypeUnsupportedOption,
		"the algorithm is not supported for %s compression", v.variant).
		WithValue(name).
		WithDetail("supported", v.names())
}

func (v vocabulary[T]) names() []string {
	out := make([]string, len(v.members))
	for i, m := range v.members {
		out[i] = string(m)
	}
	return out
}

// Supported lists the algorithm names of a variant.
func Supported(variant Variant) []string {
	switch variant {
	case VariantParquet:
		return parquetVocabulary.names()
	case VariantIPC:
		return ipcVocabulary.names()
	case VariantIPCStream:
		return ipcStreamVocabulary.names()
	default:
		return nil
	}
}

// Validate checks name against the vocabulary of variant.
func Validate(variant Variant, name string) error {
	var err error
	switch variant {
	case VariantParquet:
		_, err = parquetVocabulary.parse(name)
	case VariantIPC:
		_, err = ipcVocabulary.parse(name)
	case VariantIPCStream:
		_, err = ipcStreamVocabulary.parse(name)
	default:
		err = errors.New(errors.ErrorTypeUnsupportedOption, "unknown compression variant").WithValue(string(variant))
	}
	return err
}

// ParseIPC resolves an IPC file algorithm name.
func ParseIPC(name string) (IPCCompression, error) {
	return ipcVocabulary.parse(name)
}

// ParseIPCStream resolves an IPC stream algorithm name.
func ParseIPCStream(name string) (IPCStreamCompression, error) {
	return ipcStreamVocabulary.parse(name)
}

// WriterOptions returns the ipc writer options selecting c.
func (c IPCCompression) WriterOptions() []ipc.Option {
	return ipcCodecOptions(string(c))
}

// WriterOptions returns the ipc writer options selecting c.
func (c IPCStreamCompression) WriterOptions() []ipc.Option {
	return ipcCodecOptions(string(c))
}

func ipcCodecOptions(name string) []ipc.Option {
	switch name {
	case "lz4":
		return []ipc.Option{ipc.WithLZ4()}
	case "zstd":
		return []ipc.Option{ipc.WithZstd()}
	default:
		return nil
	}
}

// ParquetCompression is a Parquet algorithm with an optional level.
type ParquetCompression struct {
	Algorithm ParquetAlgorithm
	Level     *int
}

// levelRanges bounds the level each Parquet algorithm accepts.
var levelRanges = map[ParquetAlgorithm][2]int{
	ParquetGzip:   {0, 9},
	ParquetBrotli: {0, 11},
	ParquetZstd:   {1, 22},
}

// ParseParquet resolves a Parquet algorithm name and validates level against
// it. Only gzip, brotli and zstd take a level.
func ParseParquet(name string, level *int) (ParquetCompression, error) {
	algo, err := parquetVocabulary.parse(name)
	if err != nil {
		return ParquetCompression{}, err
	}
	if level == nil {
		return ParquetCompression{Algorithm: algo}, nil
	}

	bounds, ok := levelRanges[algo]
	if !ok {
		return ParquetCompression{}, errors.New(errors.ErrorTypeUnsupportedOption,
			"compression level is not supported for the algorithm").WithValue(string(algo))
	}
	if *level < bounds[0] || *level > bounds[1] {
		return ParquetCompression{}, errors.Newf(errors.ErrorTypeUnsupportedOption,
			"%s compression level must be between %d and %d", algo, bounds[0], bounds[1]).
			WithValue(strconv.Itoa(*level))
	}
	lvl := *level
	return ParquetCompression{Algorithm: algo, Level: &lvl}, nil
}

// Codec returns the parquet codec for the algorithm.
func (c ParquetCompression) Codec() compress.Compression {
	switch c.Algorithm {
	case ParquetSnappy:
		return compress.Codecs.Snappy
	case ParquetGzip:
		return compress.Codecs.Gzip
	case ParquetBrotli:
		return compress.Codecs.Brotli
	case ParquetLZ4:
		return compress.Codecs.Lz4Raw
	case ParquetZstd:
		return compress.Codecs.Zstd
	default:
		return compress.Codecs.Uncompressed
	}
}

// WriterProperties returns the parquet writer properties selecting c.
func (c ParquetCompression) WriterProperties() []parquet.WriterProperty {
	props := []parquet.WriterProperty{parquet.WithCompression(c.Codec())}
	if c.Level != nil {
		props = append(props, parquet.WithCompressionLevel(*c.Level))
	}
	return props
}

// String renders the algorithm and level, e.g. "zstd(3)".
func (c ParquetCompression) String() string {
	algo := c.Algorithm
	if algo == "" {
		algo = ParquetNone
	}
	if c.Level == nil {
		return string(algo)
	}
	return string(algo) + "(" + strconv.Itoa(*c.Level) + ")"
}
