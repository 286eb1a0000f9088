package formats

import (
	"bytes"
	"context"
	"io"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/ipc"

	"github.com/ajitpratap0/dfio/pkg/compression"
	"github.com/ajitpratap0/dfio/pkg/frame"
)

// DumpIPCStream encodes df as an Arrow IPC stream.
func (g *Gateway) DumpIPCStream(df *frame.DataFrame, opts IPCStreamWriteOptions) ([]byte, error) {
	return g.dump(df, FormatIPCStream, opts.validate, func(w io.Writer, df *frame.DataFrame) error {
		return g.encodeIPCStream(w, df, opts)
	})
}

// WriteIPCStream encodes df as an Arrow IPC stream into dst.
func (g *Gateway) WriteIPCStream(ctx context.Context, df *frame.DataFrame, dst Destination, opts IPCStreamWriteOptions) error {
	return g.write(ctx, df, dst, FormatIPCStream, opts.validate, func(w io.Writer, df *frame.DataFrame) error {
		return g.encodeIPCStream(w, df, opts)
	})
}

// LoadIPCStream decodes Arrow IPC stream bytes.
func (g *Gateway) LoadIPCStream(data []byte, opts IPCStreamReadOptions) (*frame.DataFrame, error) {
	return g.load(FormatIPCStream, data, opts.Projection, opts.validate, g.decodeIPCStream)
}

// ReadIPCStream decodes the Arrow IPC stream file at path.
func (g *Gateway) ReadIPCStream(path string, opts IPCStreamReadOptions) (*frame.DataFrame, error) {
	return g.read(FormatIPCStream, path, opts.Projection, opts.validate, g.decodeIPCStream)
}

func (o IPCStreamWriteOptions) validate() error {
	_, err := compression.ParseIPCStream(o.Compression)
	return err
}

func (o IPCStreamReadOptions) validate() error {
	return validateProjection(o.Projection)
}

func (g *Gateway) encodeIPCStream(w io.Writer, df *frame.DataFrame, opts IPCStreamWriteOptions) error {
	codec, err := compression.ParseIPCStream(opts.Compression)
	if err != nil {
		return err
	}

	rec := df.Record()
	ipcOpts := append([]ipc.Option{ipc.WithSchema(rec.Schema()), ipc.WithAllocator(g.mem)}, codec.WriterOptions()...)
	sw := ipc.NewWriter(w, ipcOpts...)
	if err := sw.Write(rec); err != nil {
		_ = sw.Close()
		return err
	}
	return sw.Close()
}

func (g *Gateway) decodeIPCStream(data []byte) (*frame.DataFrame, error) {
	r, err := ipc.NewReader(bytes.NewReader(data), ipc.WithAllocator(g.mem))
	if err != nil {
		return nil, err
	}
	defer r.Release()

	var recs []arrow.Record
	defer func() {
		for _, rec := range recs {
			rec.Release()
		}
	}()
	for r.Next() {
		rec := r.Record()
		rec.Retain()
		recs = append(recs, rec)
	}
	if err := r.Err(); err != nil {
		return nil, err
	}
	return frame.FromRecords(g.mem, r.Schema(), recs)
}
