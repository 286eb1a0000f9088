package main

import (
	"fmt"
	"os"
	"runtime"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/ajitpratap0/dfio/pkg/formats"
)

var version = "0.1.0"

func main() {
	// Load .env file if it exists
	_ = godotenv.Load()

	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	v := viper.New()
	v.SetEnvPrefix("DFIO")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	root := &cobra.Command{
		Use:   "dfio",
		Short: "dfio - dataframe format conversion",
		Long: `dfio converts tabular data between CSV, NDJSON, Parquet, Arrow IPC files
and Arrow IPC streams. Output can go to a local file or to an object in an
S3-compatible store.

Every flag bound to the environment can also be set as DFIO_<FLAG>, for
example DFIO_S3_BUCKET or DFIO_LOG_LEVEL.`,
		SilenceUsage: true,
	}

	root.PersistentFlags().String("config", "", "Path to a YAML configuration file")
	root.PersistentFlags().String("log-level", "", "Log level (debug, info, warn, error)")
	root.PersistentFlags().String("metrics-textfile", "", "Write Prometheus metrics to this file when the command finishes")
	root.PersistentFlags().Bool("trace", false, "Print OpenTelemetry spans to stderr")
	_ = v.BindPFlags(root.PersistentFlags())

	root.AddCommand(newConvertCmd(v), newSchemaCmd(v), newVersionCmd())
	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			caps := formats.DefaultCapabilities()
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "dfio v%s\n", version)
			fmt.Fprintf(out, "Go version: %s\n", runtime.Version())
			fmt.Fprintf(out, "OS/Arch: %s/%s\n", runtime.GOOS, runtime.GOARCH)
			fmt.Fprintf(out, "Capabilities: ndjson=%v cloud=%v\n", caps.NDJSON, caps.Cloud)
		},
	}
}

func newConvertCmd(v *viper.Viper) *cobra.Command {
	var (
		from, to     string
		level        int
		rf           readFlags
		noHeader     bool
		outDelimiter string
	)

	cmd := &cobra.Command{
		Use:   "convert IN OUT",
		Short: "Convert a file from one format to another",
		Long: `Convert reads IN in the --from format and writes OUT in the --to format.
OUT may be s3://<key> to upload to the configured bucket.

Example:
  dfio convert --from csv --to parquet --compression zstd events.csv s3://daily/events.parquet`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := setup(v, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer a.close()

			rf.noHeader = noHeader
			wf := writeFlags{
				compression: v.GetString("compression"),
				delimiter:   outDelimiter,
				noHeader:    noHeader,
			}
			if cmd.Flags().Changed("compression-level") {
				wf.level = &level
			}
			if wf.delimiter == "" {
				wf.delimiter = rf.delimiter
			}
			return a.convert(cmd.Context(), from, to, args[0], args[1], rf, wf)
		},
	}

	f := cmd.Flags()
	f.StringVar(&from, "from", "", "Input format (csv, ndjson, parquet, ipc, ipc_stream)")
	f.StringVar(&to, "to", "", "Output format (csv, ndjson, parquet, ipc, ipc_stream)")
	_ = cmd.MarkFlagRequired("from")
	_ = cmd.MarkFlagRequired("to")

	f.String("compression", "", "Output compression; a codec of the output format, or gzip/zstd/lz4/snappy for csv and ndjson")
	f.IntVar(&level, "compression-level", 0, "Compression level")
	addReadFlags(cmd, &rf)
	f.BoolVar(&noHeader, "no-header", false, "CSV input has no header row and CSV output gets none")
	f.StringVar(&outDelimiter, "out-delimiter", "", "CSV output delimiter (defaults to --delimiter)")

	f.String("s3-endpoint", "", "S3-compatible endpoint URL")
	f.String("s3-bucket", "", "Bucket for s3:// outputs")
	f.String("s3-region", "", "Region of the bucket")
	f.String("s3-access-key-id", "", "Access key id")
	f.String("s3-secret-access-key", "", "Secret access key")
	f.String("s3-session-token", "", "Session token")
	f.Int("part-size", 0, "Multipart upload part size in bytes")
	for _, name := range []string{
		"compression", "s3-endpoint", "s3-bucket", "s3-region",
		"s3-access-key-id", "s3-secret-access-key", "s3-session-token", "part-size",
	} {
		_ = v.BindPFlag(name, f.Lookup(name))
	}
	return cmd
}

func newSchemaCmd(v *viper.Viper) *cobra.Command {
	var (
		from     string
		rf       readFlags
		noHeader bool
	)

	cmd := &cobra.Command{
		Use:   "schema IN",
		Short: "Print the schema a file is read with",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := setup(v, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer a.close()

			rf.noHeader = noHeader
			out, err := a.schema(from, args[0], rf)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), out)
			return nil
		},
	}

	cmd.Flags().StringVar(&from, "from", formats.FormatCSV, "Input format (csv, ndjson, parquet, ipc, ipc_stream)")
	cmd.Flags().BoolVar(&noHeader, "no-header", false, "CSV input has no header row")
	addReadFlags(cmd, &rf)
	return cmd
}

func addReadFlags(cmd *cobra.Command, rf *readFlags) {
	f := cmd.Flags()
	f.StringVar(&rf.delimiter, "delimiter", "", "CSV delimiter (defaults to the configured one)")
	f.StringArrayVar(&rf.dtypes, "dtype", nil, "Declare a column type as name=type (repeatable)")
	f.StringSliceVar(&rf.nullValues, "null-value", nil, "Extra CSV tokens read as null")
	f.IntVar(&rf.skipRows, "skip-rows", 0, "CSV lines to skip before the header")
	f.BoolVar(&rf.parseDates, "parse-dates", false, "Infer date and datetime CSV columns")
	f.StringSliceVar(&rf.columns, "columns", nil, "Only keep these columns")
	f.IntVar(&rf.maxRows, "max-rows", -1, "Only keep this many rows")
}
