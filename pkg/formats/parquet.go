package formats

import (
	"bytes"
	"context"
	"io"

	"github.com/apache/arrow-go/v18/parquet"
	"github.com/apache/arrow-go/v18/parquet/pqarrow"

	"github.com/ajitpratap0/dfio/pkg/compression"
	"github.com/ajitpratap0/dfio/pkg/frame"
)

// DumpParquet encodes df as a Parquet file.
func (g *Gateway) DumpParquet(df *frame.DataFrame, opts ParquetWriteOptions) ([]byte, error) {
	return g.dump(df, FormatParquet, opts.validate, func(w io.Writer, df *frame.DataFrame) error {
		return g.encodeParquet(w, df, opts)
	})
}

// WriteParquet encodes df as a Parquet file into dst.
func (g *Gateway) WriteParquet(ctx context.Context, df *frame.DataFrame, dst Destination, opts ParquetWriteOptions) error {
	return g.write(ctx, df, dst, FormatParquet, opts.validate, func(w io.Writer, df *frame.DataFrame) error {
		return g.encodeParquet(w, df, opts)
	})
}

// LoadParquet decodes Parquet bytes.
func (g *Gateway) LoadParquet(data []byte, opts ParquetReadOptions) (*frame.DataFrame, error) {
	return g.load(FormatParquet, data, opts.Projection, opts.validate, g.decodeParquet)
}

// ReadParquet decodes the Parquet file at path.
func (g *Gateway) ReadParquet(path string, opts ParquetReadOptions) (*frame.DataFrame, error) {
	return g.read(FormatParquet, path, opts.Projection, opts.validate, g.decodeParquet)
}

func (o ParquetWriteOptions) validate() error {
	_, err := compression.ParseParquet(o.Compression, o.CompressionLevel)
	return err
}

func (o ParquetReadOptions) validate() error {
	return validateProjection(o.Projection)
}

func (g *Gateway) encodeParquet(w io.Writer, df *frame.DataFrame, opts ParquetWriteOptions) error {
	codec, err := compression.ParseParquet(opts.Compression, opts.CompressionLevel)
	if err != nil {
		return err
	}

	rec := df.Record()
	props := parquet.NewWriterProperties(append(codec.WriterProperties(), parquet.WithAllocator(g.mem))...)
	arrowProps := pqarrow.NewArrowWriterProperties(pqarrow.WithStoreSchema(), pqarrow.WithAllocator(g.mem))

	fw, err := pqarrow.NewFileWriter(rec.Schema(), w, props, arrowProps)
	if err != nil {
		return err
	}
	if err := fw.Write(rec); err != nil {
		_ = fw.Close()
		return err
	}
	return fw.Close()
}

func (g *Gateway) decodeParquet(data []byte) (*frame.DataFrame, error) {
	tbl, err := pqarrow.ReadTable(context.Background(), bytes.NewReader(data),
		parquet.NewReaderProperties(g.mem), pqarrow.ArrowReadProperties{}, g.mem)
	if err != nil {
		return nil, err
	}
	defer tbl.Release()
	return frame.FromTable(g.mem, tbl)
}
