package main

import (
	"context"
	"io"
	"os"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/viper"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/zap"

	"github.com/ajitpratap0/dfio/pkg/compression"
	"github.com/ajitpratap0/dfio/pkg/config"
	"github.com/ajitpratap0/dfio/pkg/errors"
	"github.com/ajitpratap0/dfio/pkg/formats"
	"github.com/ajitpratap0/dfio/pkg/frame"
	"github.com/ajitpratap0/dfio/pkg/logger"
	"github.com/ajitpratap0/dfio/pkg/metrics"
	"github.com/ajitpratap0/dfio/pkg/schema"
	"github.com/ajitpratap0/dfio/pkg/tracing"
)

type readFlags struct {
	delimiter  string
	noHeader   bool
	dtypes     []string
	nullValues []string
	skipRows   int
	parseDates bool
	columns    []string
	maxRows    int
}

type writeFlags struct {
	compression string
	level       *int
	delimiter   string
	noHeader    bool
}

// app is one CLI invocation: the resolved configuration and the gateway
// built from it.
type app struct {
	cfg         *config.Config
	gw          *formats.Gateway
	log         *zap.Logger
	reg         *prometheus.Registry
	metricsFile string
	tp          *sdktrace.TracerProvider
}

// setup builds the app for one command. With --trace, finished spans are
// written to traceOut.
func setup(v *viper.Viper, traceOut io.Writer) (*app, error) {
	cfg := config.Default()
	if path := v.GetString("config"); path != "" {
		loaded, err := config.Load(path)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}
	applyOverrides(v, cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if err := logger.Init(cfg.Log); err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeValidation, "failed to initialize logger")
	}

	a := &app{cfg: cfg, log: logger.With(zap.String("component", "dfio-cli")), metricsFile: v.GetString("metrics-textfile")}
	gcfg := formats.ConfigFrom(cfg)
	gcfg.Logger = logger.Get()
	if cfg.Metrics.Enabled || a.metricsFile != "" {
		a.reg = prometheus.NewRegistry()
		gcfg.Metrics = metrics.NewCollector(a.reg)
	}
	if v.GetBool("trace") {
		tp, err := tracing.NewStdoutProvider(traceOut, version)
		if err != nil {
			return nil, err
		}
		a.tp = tp
		gcfg.TracerProvider = tp
	}

	gw, err := formats.New(gcfg)
	if err != nil {
		a.close()
		return nil, err
	}
	a.gw = gw
	return a, nil
}

// applyOverrides copies flags and DFIO_* variables over the file settings.
func applyOverrides(v *viper.Viper, cfg *config.Config) {
	set := func(key string, dst *string) {
		if s := v.GetString(key); s != "" {
			*dst = s
		}
	}
	set("log-level", &cfg.Log.Level)
	set("s3-endpoint", &cfg.Cloud.Endpoint)
	set("s3-bucket", &cfg.Cloud.Bucket)
	set("s3-region", &cfg.Cloud.Region)
	set("s3-access-key-id", &cfg.Cloud.AccessKeyID)
	set("s3-secret-access-key", &cfg.Cloud.SecretAccessKey)
	set("s3-session-token", &cfg.Cloud.SessionToken)
	if n := v.GetInt("part-size"); n > 0 {
		cfg.Cloud.PartSize = n
	}
}

func (a *app) close() {
	if a.reg != nil && a.metricsFile != "" {
		if err := prometheus.WriteToTextfile(a.metricsFile, a.reg); err != nil {
			a.log.Warn("failed to write metrics", zap.String("path", a.metricsFile), zap.Error(err))
		}
	}
	if a.tp != nil {
		if err := a.tp.Shutdown(context.Background()); err != nil {
			a.log.Warn("failed to flush spans", zap.Error(err))
		}
	}
	_ = logger.Sync()
}

func (a *app) convert(ctx context.Context, from, to, in, out string, rf readFlags, wf writeFlags) error {
	a.log.Info("converting",
		zap.String("from", from),
		zap.String("to", to),
		zap.String("input", in),
		zap.String("output", out))

	df, err := a.read(from, in, rf)
	if err != nil {
		return err
	}
	defer df.Release()

	if err := a.write(ctx, df, to, out, wf); err != nil {
		return err
	}
	a.log.Info("conversion completed", zap.Int64("rows", df.NumRows()), zap.Int("columns", df.NumCols()))
	return nil
}

func (a *app) schema(from, in string, rf readFlags) (string, error) {
	if from == formats.FormatCSV {
		opts, err := a.csvReadOptions(rf)
		if err != nil {
			return "", err
		}
		data, err := os.ReadFile(in) //nolint:gosec // G304: path is the caller's input file
		if err != nil {
			return "", errors.Wrap(err, errors.ErrorTypeIO, "failed to read file").WithValue(in)
		}
		sc, err := a.gw.InferCSVSchema(data, opts)
		if err != nil {
			return "", err
		}
		return sc.String(), nil
	}

	df, err := a.read(from, in, rf)
	if err != nil {
		return "", err
	}
	defer df.Release()

	sc, unsupported := df.DTypes()
	out := sc.String()
	for _, name := range unsupported {
		out += "\n" + name + ": unsupported"
	}
	return out, nil
}

func (a *app) read(format, path string, rf readFlags) (*frame.DataFrame, error) {
	p := frame.Projection{Columns: rf.columns}
	if rf.maxRows >= 0 {
		n := rf.maxRows
		p.MaxRows = &n
	}

	switch format {
	case formats.FormatCSV:
		opts, err := a.csvReadOptions(rf)
		if err != nil {
			return nil, err
		}
		opts.Projection = p
		return a.gw.ReadCSV(path, opts)
	case formats.FormatNDJSON:
		opts := formats.DefaultNDJSONReadOptions()
		opts.BatchSize = a.cfg.NDJSON.BatchSize
		if n := a.cfg.NDJSON.InferSchemaLength; n > 0 {
			opts.InferSchemaLength = &n
		}
		opts.Projection = p
		return a.gw.ReadNDJSON(path, opts)
	case formats.FormatParquet:
		return a.gw.ReadParquet(path, formats.ParquetReadOptions{Projection: p})
	case formats.FormatIPC:
		return a.gw.ReadIPC(path, formats.IPCReadOptions{Projection: p})
	case formats.FormatIPCStream:
		return a.gw.ReadIPCStream(path, formats.IPCStreamReadOptions{Projection: p})
	default:
		return nil, unknownFormat(format)
	}
}

func (a *app) csvReadOptions(rf readFlags) (formats.CSVReadOptions, error) {
	opts := formats.DefaultCSVReadOptions()
	opts.Delimiter = a.cfg.CSV.Delimiter[0]
	opts.HasHeader = a.cfg.CSV.HasHeader && !rf.noHeader
	if a.cfg.CSV.Encoding != "" {
		opts.Encoding = a.cfg.CSV.Encoding
	}
	n := a.cfg.CSV.InferSchemaLength
	opts.InferSchemaLength = &n
	opts.NullValues = append(append([]string(nil), a.cfg.CSV.NullValues...), rf.nullValues...)
	opts.ParseDates = a.cfg.CSV.ParseDates || rf.parseDates
	opts.SkipRows = rf.skipRows

	if rf.delimiter != "" {
		d, err := singleByte("delimiter", rf.delimiter)
		if err != nil {
			return opts, err
		}
		opts.Delimiter = d
	}

	for _, decl := range rf.dtypes {
		name, typ, ok := strings.Cut(decl, "=")
		if !ok || name == "" {
			return opts, errors.New(errors.ErrorTypeValidation, "dtype must be given as name=type").WithValue(decl)
		}
		opts.DTypes = append(opts.DTypes, schema.Pair{Name: name, Type: typ})
	}
	return opts, nil
}

func (a *app) write(ctx context.Context, df *frame.DataFrame, format, out string, wf writeFlags) error {
	dst := formats.LocalPath(out)
	if key, ok := strings.CutPrefix(out, "s3://"); ok {
		dst = formats.CloudDestination(a.cfg.Cloud.Target(key))
	}

	switch format {
	case formats.FormatCSV:
		opts := formats.DefaultCSVWriteOptions()
		opts.Delimiter = a.cfg.CSV.Delimiter[0]
		opts.HasHeader = a.cfg.CSV.HasHeader && !wf.noHeader
		if wf.delimiter != "" {
			d, err := singleByte("delimiter", wf.delimiter)
			if err != nil {
				return err
			}
			opts.Delimiter = d
		}
		if isTextCompression(wf.compression) {
			return a.writeCompressedText(dst, wf, func() ([]byte, error) { return a.gw.DumpCSV(df, opts) })
		}
		return a.gw.WriteCSV(ctx, df, dst, opts)
	case formats.FormatNDJSON:
		if isTextCompression(wf.compression) {
			return a.writeCompressedText(dst, wf, func() ([]byte, error) { return a.gw.DumpNDJSON(df) })
		}
		return a.gw.WriteNDJSON(ctx, df, dst)
	case formats.FormatParquet:
		return a.gw.WriteParquet(ctx, df, dst, formats.ParquetWriteOptions{Compression: wf.compression, CompressionLevel: wf.level})
	case formats.FormatIPC:
		return a.gw.WriteIPC(ctx, df, dst, formats.IPCWriteOptions{Compression: wf.compression})
	case formats.FormatIPCStream:
		return a.gw.WriteIPCStream(ctx, df, dst, formats.IPCStreamWriteOptions{Compression: wf.compression})
	default:
		return unknownFormat(format)
	}
}

func isTextCompression(name string) bool {
	algo, err := compression.ParseText(name)
	return err == nil && algo != compression.TextNone
}

// writeCompressedText wraps a dumped csv or ndjson payload in a whole-file
// codec. Only local outputs are supported.
func (a *app) writeCompressedText(dst formats.Destination, wf writeFlags, dump func() ([]byte, error)) (err error) {
	if dst.IsCloud() {
		return errors.New(errors.ErrorTypeUnsupportedOption, "compressed text output is only supported for local files").
			WithValue(wf.compression)
	}
	algo, err := compression.ParseText(wf.compression)
	if err != nil {
		return err
	}
	level := compression.Default
	if wf.level != nil {
		level = compression.Level(*wf.level)
	}

	data, err := dump()
	if err != nil {
		return err
	}

	path := dst.String()
	f, err := os.Create(path) //nolint:gosec // G304: path is the caller's output file
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeIO, "failed to create file").WithValue(path)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = errors.Wrap(cerr, errors.ErrorTypeIO, "failed to close file").WithValue(path)
		}
		if err != nil {
			_ = os.Remove(path)
		}
	}()

	w, err := compression.NewWriter(f, algo, level)
	if err != nil {
		return err
	}
	if _, err := w.Write(data); err != nil {
		_ = w.Close()
		return errors.Wrap(err, errors.ErrorTypeIO, "failed to write file").WithValue(path)
	}
	if err := w.Close(); err != nil {
		return errors.Wrap(err, errors.ErrorTypeIO, "failed to write file").WithValue(path)
	}
	return nil
}

func singleByte(name, s string) (byte, error) {
	if len(s) != 1 {
		return 0, errors.Newf(errors.ErrorTypeValidation, "%s must be a single byte", name).WithValue(s)
	}
	return s[0], nil
}

func unknownFormat(name string) error {
	return errors.New(errors.ErrorTypeUnsupportedOption, "unknown format").WithValue(name)
}
