package compression

import (
	"bytes"
	"io"
	"strings"
	"sync"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/s2"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"

	"github.com/ajitpratap0/dfio/pkg/errors"
)

// TextAlgorithm is a whole-stream codec wrapped around CSV or NDJSON bytes.
// Text inputs are sniffed and decompressed transparently; text outputs are
// compressed only when asked.
type TextAlgorithm string

const (
	// TextNone leaves the stream as is
	TextNone TextAlgorithm = "none"
	// TextGzip is a gzip member stream
	TextGzip TextAlgorithm = "gzip"
	// TextZstd is a zstandard frame
	TextZstd TextAlgorithm = "zstd"
	// TextLZ4 is an lz4 frame
	TextLZ4 TextAlgorithm = "lz4"
	// TextSnappy is a framed snappy or s2 stream
	TextSnappy TextAlgorithm = "snappy"
)

// Level controls the trade-off between speed and ratio for text outputs.
type Level int

const (
	// Fastest prioritizes speed over compression ratio.
	Fastest Level = 1
	// Default balances speed and compression.
	Default Level = 5
	// Best maximizes compression ratio.
	Best Level = 9
)

// MaxDecompressedSize bounds the size of a decompressed text input.
const MaxDecompressedSize = 4 << 30

var magics = []struct {
	algo  TextAlgorithm
	magic []byte
}{
	{TextGzip, []byte{0x1f, 0x8b}},
	{TextZstd, []byte{0x28, 0xb5, 0x2f, 0xfd}},
	{TextLZ4, []byte{0x04, 0x22, 0x4d, 0x18}},
	{TextSnappy, []byte("\xff\x06\x00\x00sNaPpY")},
	{TextSnappy, []byte("\xff\x06\x00\x00S2sTwO")},
}

var zstdDecoders = sync.Pool{
	New: func() interface{} {
		dec, _ := zstd.NewReader(nil, zstd.WithDecoderConcurrency(1))
		return dec
	},
}

// ParseText resolves a text codec name.
func ParseText(name string) (TextAlgorithm, error) {
	switch key := TextAlgorithm(strings.ToLower(strings.TrimSpace(name))); key {
	case "", TextNone:
		return TextNone, nil
	case TextGzip, TextZstd, TextLZ4, TextSnappy:
		return key, nil
	case "s2":
		return TextSnappy, nil
	default:
		return "", errors.New(errors.ErrorTypeUnsupportedOption,
			"the algorithm is not supported for text compression").WithValue(name)
	}
}

// Detect sniffs the codec of data from its leading magic bytes.
func Detect(data []byte) TextAlgorithm {
	for _, m := range magics {
		if bytes.HasPrefix(data, m.magic) {
			return m.algo
		}
	}
	return TextNone
}

// Decompress returns data decoded with the detected codec, or data itself
// when no codec is detected.
func Decompress(data []byte) ([]byte, TextAlgorithm, error) {
	return decompress(data, MaxDecompressedSize)
}

func decompress(data []byte, limit int64) ([]byte, TextAlgorithm, error) {
	algo := Detect(data)
	if algo == TextNone {
		return data, TextNone, nil
	}

	var (
		r   io.Reader
		err error
	)
	switch algo {
	case TextGzip:
		var gr *gzip.Reader
		gr, err = gzip.NewReader(bytes.NewReader(data))
		if err == nil {
			defer gr.Close()
			r = gr
		}
	case TextZstd:
		dec := zstdDecoders.Get().(*zstd.Decoder)
		defer func() {
			_ = dec.Reset(nil)
			zstdDecoders.Put(dec)
		}()
		if err = dec.Reset(bytes.NewReader(data)); err == nil {
			r = dec
		}
	case TextLZ4:
		r = lz4.NewReader(bytes.NewReader(data))
	case TextSnappy:
		r = s2.NewReader(bytes.NewReader(data))
	}
	if err != nil {
		return nil, algo, errors.Wrap(err, errors.ErrorTypeDecode, "failed to decompress input").WithValue(string(algo))
	}

	var buf bytes.Buffer
	n, err := io.Copy(&buf, io.LimitReader(r, limit+1))
	if err != nil {
		return nil, algo, errors.Wrap(err, errors.ErrorTypeDecode, "failed to decompress input").WithValue(string(algo))
	}
	if n > limit {
		return nil, algo, errors.New(errors.ErrorTypeDecode, "decompressed input exceeds the size limit").WithValue(string(algo))
	}
	return buf.Bytes(), algo, nil
}

// NewWriter wraps dst so bytes written are compressed with algo. Closing the
// returned writer flushes the codec but does not close dst.
func NewWriter(dst io.Writer, algo TextAlgorithm, level Level) (io.WriteCloser, error) {
	switch algo {
	case "", TextNone:
		return nopCloser{dst}, nil
	case TextGzip:
		return gzip.NewWriterLevel(dst, mapGzipLevel(level))
	case TextZstd:
		return zstd.NewWriter(dst, zstd.WithEncoderLevel(mapZstdLevel(level)))
	case TextLZ4:
		w := lz4.NewWriter(dst)
		if err := w.Apply(lz4.CompressionLevelOption(mapLZ4Level(level))); err != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeInternal, "failed to configure lz4 writer")
		}
		return w, nil
	case TextSnappy:
		return s2.NewWriter(dst, s2.WriterSnappyCompat()), nil
	default:
		return nil, errors.New(errors.ErrorTypeUnsupportedOption,
			"the algorithm is not supported for text compression").WithValue(string(algo))
	}
}

type nopCloser struct{ io.Writer }

func (nopCloser) Close() error { return nil }

func mapGzipLevel(level Level) int {
	switch level {
	case Fastest:
		return gzip.BestSpeed
	case Best:
		return gzip.BestCompression
	default:
		return gzip.DefaultCompression
	}
}

func mapLZ4Level(level Level) lz4.CompressionLevel {
	switch level {
	case Fastest:
		return lz4.Fast
	case Best:
		return lz4.Level9
	default:
		return lz4.Level5
	}
}

func mapZstdLevel(level Level) zstd.EncoderLevel {
	switch level {
	case Fastest:
		return zstd.SpeedFastest
	case Best:
		return zstd.SpeedBestCompression
	default:
		return zstd.SpeedDefault
	}
}
