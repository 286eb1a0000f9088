// Package formats is the dataframe format gateway: it encodes and decodes
// DataFrames as CSV, NDJSON, Parquet, Arrow IPC files and Arrow IPC streams.
//
// Every format exposes four entry points on *Gateway:
//   - Dump encodes a frame to bytes
//   - Load decodes a frame from bytes
//   - Read decodes a frame from a local file
//   - Write encodes a frame to a Destination, either a local path or an
//     object in an S3-compatible store
//
// # Basic Usage
//
//	gw, err := formats.New(formats.DefaultConfig())
//	if err != nil {
//	    return err
//	}
//	df, err := gw.ReadCSV("input.csv", formats.DefaultCSVReadOptions())
//	if err != nil {
//	    return err
//	}
//	defer df.Release()
//
//	opts := formats.ParquetWriteOptions{Compression: "zstd"}
//	err = gw.WriteParquet(ctx, df, formats.CloudDestination(target), opts)
//
// Frames returned by the gateway are owned by the caller and must be
// released. Frames passed in are never modified or released.
//
// # Capabilities
//
// NDJSON support and cloud writes can be switched off. A disabled capability
// keeps its entry points; they return an error of type
// errors.ErrorTypeCapability.
package formats

import (
	"bufio"
	"bytes"
	"context"
	stderrors "errors"
	"io"
	"os"
	"path/filepath"

	"github.com/apache/arrow-go/v18/arrow/memory"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/ajitpratap0/dfio/pkg/cloud"
	"github.com/ajitpratap0/dfio/pkg/config"
	"github.com/ajitpratap0/dfio/pkg/errors"
	"github.com/ajitpratap0/dfio/pkg/frame"
	"github.com/ajitpratap0/dfio/pkg/logger"
	"github.com/ajitpratap0/dfio/pkg/metrics"
	"github.com/ajitpratap0/dfio/pkg/tracing"
)

// Format names.
const (
	FormatCSV       = "csv"
	FormatNDJSON    = "ndjson"
	FormatParquet   = "parquet"
	FormatIPC       = "ipc"
	FormatIPCStream = "ipc_stream"
)

// Operation names used in logs and metrics.
const (
	opDump  = "dump"
	opLoad  = "load"
	opRead  = "read"
	opWrite = "write"
)

const writeBufferSize = 64 * 1024

// Capabilities lists the optional features of a Gateway.
type Capabilities struct {
	NDJSON bool
	Cloud  bool
}

// DefaultCapabilities returns the features compiled into this binary.
func DefaultCapabilities() Capabilities {
	return Capabilities{NDJSON: defaultNDJSON, Cloud: defaultCloud}
}

// ClientFactory builds the object store client for a cloud write.
type ClientFactory func(ctx context.Context, target cloud.Target) (cloud.MultipartAPI, error)

// Config configures a Gateway.
type Config struct {
	Capabilities Capabilities
	// Allocator backs every decoded frame; nil means memory.DefaultAllocator
	Allocator memory.Allocator
	// Logger defaults to logger.Get()
	Logger *zap.Logger
	// Metrics is optional
	Metrics *metrics.Collector
	// TracerProvider defaults to the global OpenTelemetry provider
	TracerProvider trace.TracerProvider
	// NewClient defaults to cloud.NewClient
	NewClient ClientFactory
	// PartSize is the multipart upload part size for cloud writes
	PartSize int
}

// DefaultConfig returns a Config with the compiled-in capabilities.
func DefaultConfig() Config {
	return Config{
		Capabilities: DefaultCapabilities(),
		PartSize:     cloud.MinPartSize,
	}
}

// ConfigFrom maps a configuration file onto a gateway Config. Capabilities
// the file leaves unset keep their compiled-in defaults.
func ConfigFrom(c *config.Config) Config {
	cfg := DefaultConfig()
	if c.Capabilities.NDJSON != nil {
		cfg.Capabilities.NDJSON = *c.Capabilities.NDJSON
	}
	if c.Capabilities.Cloud != nil {
		cfg.Capabilities.Cloud = *c.Capabilities.Cloud
	}
	if c.Cloud.PartSize > 0 {
		cfg.PartSize = c.Cloud.PartSize
	}
	return cfg
}

// Gateway encodes and decodes DataFrames. It holds no per-call state and is
// safe for concurrent use.
type Gateway struct {
	caps      Capabilities
	mem       memory.Allocator
	log       *zap.Logger
	metrics   *metrics.Collector
	tracer    trace.Tracer
	newClient ClientFactory
	partSize  int
}

// New builds a Gateway from cfg.
func New(cfg Config) (*Gateway, error) {
	if cfg.PartSize < 0 {
		return nil, errors.New(errors.ErrorTypeValidation, "part size must be positive").
			WithDetail("part_size", cfg.PartSize)
	}
	g := &Gateway{
		caps:      cfg.Capabilities,
		mem:       cfg.Allocator,
		log:       logger.OrDefault(cfg.Logger),
		metrics:   cfg.Metrics,
		tracer:    tracing.Tracer(cfg.TracerProvider),
		newClient: cfg.NewClient,
		partSize:  cfg.PartSize,
	}
	if g.mem == nil {
		g.mem = memory.DefaultAllocator
	}
	if g.newClient == nil {
		g.newClient = func(ctx context.Context, t cloud.Target) (cloud.MultipartAPI, error) {
			return cloud.NewClient(ctx, t)
		}
	}
	if g.partSize == 0 {
		g.partSize = cloud.MinPartSize
	}
	return g, nil
}

// Capabilities reports the features enabled on g.
func (g *Gateway) Capabilities() Capabilities {
	return g.caps
}

// capabilityError is the error every entry point of a disabled capability
// returns.
func capabilityError(name string) error {
	return errors.New(errors.ErrorTypeCapability, "capability is not enabled in this build").WithValue(name)
}

func (g *Gateway) requireNDJSON() error {
	if !g.caps.NDJSON {
		return capabilityError("ndjson")
	}
	return nil
}

// Destination is where a Write entry point puts the encoded bytes.
type Destination struct {
	path   string
	target *cloud.Target
}

// LocalPath is a file on the local filesystem. An existing file is replaced.
func LocalPath(path string) Destination {
	return Destination{path: path}
}

// CloudDestination is an object in an S3-compatible store.
func CloudDestination(target cloud.Target) Destination {
	return Destination{target: &target}
}

// IsCloud reports whether d names an object store target.
func (d Destination) IsCloud() bool {
	return d.target != nil
}

// String renders the destination for messages.
func (d Destination) String() string {
	if d.target != nil {
		return "s3://" + d.target.String()
	}
	return d.path
}

// sink receives encoded bytes. Abort discards everything written so far.
type sink interface {
	Write(p []byte) (int, error)
	Close() error
	Abort() error
}

// fileSink writes to a temporary file next to path and renames it into
// place on Close, so a failed write never replaces an existing file.
type fileSink struct {
	f    *os.File
	path string
}

func (s *fileSink) Write(p []byte) (int, error) {
	n, err := s.f.Write(p)
	if err != nil {
		return n, errors.Wrap(err, errors.ErrorTypeIO, "failed to write file").WithValue(s.path)
	}
	return n, nil
}

func (s *fileSink) Close() error {
	if err := s.f.Close(); err != nil {
		_ = os.Remove(s.f.Name())
		return errors.Wrap(err, errors.ErrorTypeIO, "failed to close file").WithValue(s.path)
	}
	if err := os.Rename(s.f.Name(), s.path); err != nil {
		_ = os.Remove(s.f.Name())
		return errors.Wrap(err, errors.ErrorTypeIO, "failed to move file into place").WithValue(s.path)
	}
	return nil
}

func (s *fileSink) Abort() error {
	_ = s.f.Close()
	if err := os.Remove(s.f.Name()); err != nil && !os.IsNotExist(err) {
		return errors.Wrap(err, errors.ErrorTypeIO, "failed to remove partial file").WithValue(s.path)
	}
	return nil
}

var contentTypes = map[string]string{
	FormatCSV:       "text/csv",
	FormatNDJSON:    "application/x-ndjson",
	FormatParquet:   "application/vnd.apache.parquet",
	FormatIPC:       "application/vnd.apache.arrow.file",
	FormatIPCStream: "application/vnd.apache.arrow.stream",
}

func (g *Gateway) openSink(ctx context.Context, dst Destination, format string) (sink, error) {
	if !dst.IsCloud() {
		if dst.path == "" {
			return nil, errors.New(errors.ErrorTypeValidation, "destination path is required")
		}
		f, err := os.CreateTemp(filepath.Dir(dst.path), "."+filepath.Base(dst.path)+".*.tmp")
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeIO, "failed to create file").WithValue(dst.path)
		}
		return &fileSink{f: f, path: dst.path}, nil
	}

	if !g.caps.Cloud {
		return nil, capabilityError("cloud")
	}
	if err := dst.target.Validate(); err != nil {
		return nil, err
	}
	client, err := g.newClient(ctx, *dst.target)
	if err != nil {
		return nil, errors.Passthrough(err, errors.ErrorTypeObjectStore, "failed to create object store client")
	}
	w, err := cloud.NewWriter(ctx, client, dst.target.BucketName(), dst.target.Key,
		cloud.WithPartSize(g.partSize),
		cloud.WithLogger(g.log),
		cloud.WithMetrics(g.metrics),
		cloud.WithTracer(g.tracer),
		cloud.WithContentType(contentTypes[format]))
	if err != nil {
		return nil, err
	}
	return w, nil
}

// write validates, then runs encode against a snapshot of df into dst. On
// any failure the sink is aborted so no partial output remains.
func (g *Gateway) write(ctx context.Context, df *frame.DataFrame, dst Destination, format string,
	validate func() error, encode func(w io.Writer, df *frame.DataFrame) error) (err error) {
	timer := metrics.NewTimer()
	ctx, span := g.startSpan(ctx, opWrite, format, tracing.DestinationKey.String(dst.String()))
	ctx = context.WithValue(logger.WithOperation(ctx, opWrite, format), logger.DestinationKey, dst.String())
	log := logger.WithContext(ctx, g.log)
	defer func() {
		var rows int64
		if df != nil && df.Record() != nil {
			rows = df.NumRows()
		}
		g.observe(log, span, opWrite, format, timer, rows, err)
	}()

	if err := g.precheck(format, validate); err != nil {
		return err
	}
	if err := requireFrame(df); err != nil {
		return err
	}

	s, err := g.openSink(ctx, dst, format)
	if err != nil {
		return err
	}

	snap := df.Snapshot()
	defer snap.Release()

	bw := bufio.NewWriterSize(s, writeBufferSize)
	if err = encode(bw, snap); err == nil {
		err = bw.Flush()
	}
	if err != nil {
		if abortErr := s.Abort(); abortErr != nil {
			log.Warn("failed to discard partial output", zap.Error(abortErr))
		}
		return errors.Passthrough(err, errors.ErrorTypeIO, "failed to write "+format)
	}
	return s.Close()
}

// dump runs encode against a snapshot of df into memory.
func (g *Gateway) dump(df *frame.DataFrame, format string, validate func() error,
	encode func(w io.Writer, df *frame.DataFrame) error) (out []byte, err error) {
	timer := metrics.NewTimer()
	_, span := g.startSpan(context.Background(), opDump, format)
	defer func() { g.track(span, opDump, format, timer, df, err) }()

	if err := g.precheck(format, validate); err != nil {
		return nil, err
	}
	if err := requireFrame(df); err != nil {
		return nil, err
	}

	snap := df.Snapshot()
	defer snap.Release()

	var buf bytes.Buffer
	if err := encode(&buf, snap); err != nil {
		return nil, errors.Passthrough(err, errors.ErrorTypeInternal, "failed to encode "+format)
	}
	return buf.Bytes(), nil
}

// load decodes data; read decodes the file at path. Both apply the shared
// read steps to the decoded frame.
func (g *Gateway) load(format string, data []byte, p frame.Projection, validate func() error,
	decode func(data []byte) (*frame.DataFrame, error)) (df *frame.DataFrame, err error) {
	timer := metrics.NewTimer()
	_, span := g.startSpan(context.Background(), opLoad, format)
	defer func() { g.track(span, opLoad, format, timer, df, err) }()

	if err := g.precheck(format, validate); err != nil {
		return nil, err
	}
	return g.decode(format, data, p, decode)
}

func (g *Gateway) read(format, path string, p frame.Projection, validate func() error,
	decode func(data []byte) (*frame.DataFrame, error)) (df *frame.DataFrame, err error) {
	timer := metrics.NewTimer()
	_, span := g.startSpan(context.Background(), opRead, format, tracing.PathKey.String(path))
	defer func() { g.track(span, opRead, format, timer, df, err) }()

	if err := g.precheck(format, validate); err != nil {
		return nil, err
	}
	data, err := readFile(path)
	if err != nil {
		return nil, err
	}
	df, err = g.decode(format, data, p, decode)
	if err != nil {
		var typed *errors.Error
		if stderrors.As(err, &typed) {
			typed.WithDetail("path", path)
		}
		return nil, err
	}
	return df, nil
}

func (g *Gateway) precheck(format string, validate func() error) error {
	if format == FormatNDJSON {
		if err := g.requireNDJSON(); err != nil {
			return err
		}
	}
	return validate()
}

func (g *Gateway) decode(format string, data []byte, p frame.Projection,
	decode func(data []byte) (*frame.DataFrame, error)) (*frame.DataFrame, error) {
	raw, err := decode(data)
	if err != nil {
		return nil, errors.Passthrough(err, errors.ErrorTypeDecode, "failed to decode "+format)
	}
	return g.finishRead(raw, p)
}

// finishRead applies the steps shared by every decoder: numeric
// normalization, projection and removal of codec metadata. df is released.
func (g *Gateway) finishRead(df *frame.DataFrame, p frame.Projection) (*frame.DataFrame, error) {
	defer df.Release()

	norm := frame.Normalize(g.mem, df)
	defer norm.Release()

	projected, err := p.Apply(norm)
	if err != nil {
		return nil, err
	}
	defer projected.Release()

	return projected.WithoutMetadata(), nil
}

// startSpan opens the span of one entry point call, named dfio.<op>.
func (g *Gateway) startSpan(ctx context.Context, op, format string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	attrs = append(attrs, tracing.OperationKey.String(op), tracing.FormatKey.String(format))
	return g.tracer.Start(ctx, "dfio."+op, trace.WithAttributes(attrs...))
}

func (g *Gateway) observe(log *zap.Logger, span trace.Span, op, format string, timer *metrics.Timer, rows int64, err error) {
	took := timer.Stop()
	g.metrics.ObserveOperation(op, format, took, rows, err)
	span.SetAttributes(tracing.RowsKey.Int64(rows))
	tracing.End(span, err)
	if err != nil {
		log.Debug("operation failed", zap.Error(err))
		return
	}
	log.Debug("operation completed",
		zap.Int64("rows", rows),
		zap.Duration("duration", took))
}

// track records a dump, load or read call.
func (g *Gateway) track(span trace.Span, op, format string, timer *metrics.Timer, df *frame.DataFrame, err error) {
	var rows int64
	if err == nil && df != nil {
		rows = df.NumRows()
	}
	g.observe(g.log.With(zap.String("operation", op), zap.String("format", format)), span, op, format, timer, rows, err)
}

func requireFrame(df *frame.DataFrame) error {
	if df == nil || df.Record() == nil {
		return errors.New(errors.ErrorTypeValidation, "dataframe is required")
	}
	return nil
}

func readFile(path string) ([]byte, error) {
	data, err := os.ReadFile(path) //nolint:gosec // G304: path is the caller's input file
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.Wrap(err, errors.ErrorTypeIO, "file not found").WithValue(path)
		}
		return nil, errors.Wrap(err, errors.ErrorTypeIO, "failed to read file").WithValue(path)
	}
	return data, nil
}
