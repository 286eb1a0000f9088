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

// DumpIPC encodes df as an Arrow IPC file.
func (g *Gateway) DumpIPC(df *frame.DataFrame, opts IPCWriteOptions) ([]byte, error) {
	return g.dump(df, FormatIPC, opts.validate, func(w io.Writer, df *frame.DataFrame) error {
		return g.encodeIPC(w, df, opts)
	})
}

// WriteIPC encodes df as an Arrow IPC file into dst.
func (g *Gateway) WriteIPC(ctx context.Context, df *frame.DataFrame, dst Destination, opts IPCWriteOptions) error {
	return g.write(ctx, df, dst, FormatIPC, opts.validate, func(w io.Writer, df *frame.DataFrame) error {
		return g.encodeIPC(w, df, opts)
	})
}

// LoadIPC decodes Arrow IPC file bytes.
func (g *Gateway) LoadIPC(data []byte, opts IPCReadOptions) (*frame.DataFrame, error) {
	return g.load(FormatIPC, data, opts.Projection, opts.validate, g.decodeIPC)
}

// ReadIPC decodes the Arrow IPC file at path.
func (g *Gateway) ReadIPC(path string, opts IPCReadOptions) (*frame.DataFrame, error) {
	return g.read(FormatIPC, path, opts.Projection, opts.validate, g.decodeIPC)
}

func (o IPCWriteOptions) validate() error {
	_, err := compression.ParseIPC(o.Compression)
	return err
}

func (o IPCReadOptions) validate() error {
	return validateProjection(o.Projection)
}

func (g *Gateway) encodeIPC(w io.Writer, df *frame.DataFrame, opts IPCWriteOptions) error {
	codec, err := compression.ParseIPC(opts.Compression)
	if err != nil {
		return err
	}

	rec := df.Record()
	ipcOpts := append([]ipc.Option{ipc.WithSchema(rec.Schema()), ipc.WithAllocator(g.mem)}, codec.WriterOptions()...)
	fw, err := ipc.NewFileWriter(w, ipcOpts...)
	if err != nil {
		return err
	}
	if err := fw.Write(rec); err != nil {
		_ = fw.Close()
		return err
	}
	return fw.Close()
}

func (g *Gateway) decodeIPC(data []byte) (*frame.DataFrame, error) {
	r, err := ipc.NewFileReader(bytes.NewReader(data), ipc.WithAllocator(g.mem))
	if err != nil {
		return nil, err
	}
	defer r.Close()

	recs := make([]arrow.Record, 0, r.NumRecords())
	defer func() {
		for _, rec := range recs {
			rec.Release()
		}
	}()
	for i := 0; i < r.NumRecords(); i++ {
		rec, err := r.RecordAt(i)
		if err != nil {
			return nil, err
		}
		recs = append(recs, rec)
	}
	return frame.FromRecords(g.mem, r.Schema(), recs)
}
