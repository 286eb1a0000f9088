// Package dfio moves Arrow-backed dataframes across a format boundary:
// CSV, newline-delimited JSON, Parquet, Arrow IPC files and Arrow IPC
// streams, read from bytes or local files and written to bytes, local files
// or objects in an S3-compatible store.
//
// # Quick Start
//
// Convert a CSV file to Parquet and upload it:
//
//	import (
//	    "context"
//	    "github.com/ajitpratap0/dfio/pkg/cloud"
//	    "github.com/ajitpratap0/dfio/pkg/formats"
//	)
//
//	gw, _ := formats.New(formats.DefaultConfig())
//
//	df, err := gw.ReadCSV("events.csv", formats.DefaultCSVReadOptions())
//	if err != nil {
//	    return err
//	}
//	defer df.Release()
//
//	dst := formats.CloudDestination(cloud.Target{
//	    Endpoint: "http://localhost:9000",
//	    Bucket:   "exports",
//	    Key:      "daily/events.parquet",
//	})
//	err = gw.WriteParquet(context.Background(), df, dst, formats.ParquetWriteOptions{Compression: "zstd"})
//
// # Key Packages
//
//	pkg/formats      - Encoders and decoders for every supported format
//	pkg/frame        - DataFrame handle, projection and dtype normalization
//	pkg/schema       - Dtype vocabulary, declared-type resolution and inference
//	pkg/cloud        - Multipart upload writer for S3-compatible stores
//	pkg/compression  - Codec vocabularies and compressed input detection
//	pkg/config       - YAML configuration with environment substitution
//	pkg/errors       - Structured error handling
//	pkg/logger       - Structured logging
//	pkg/metrics      - Prometheus metrics for gateway operations and uploads
//	pkg/tracing      - OpenTelemetry spans for gateway operations and uploads
//
// # Command Line
//
// The dfio command wraps the gateway:
//
//	dfio convert --from csv --to parquet --compression zstd events.csv s3://daily/events.parquet
//	dfio schema --from parquet events.parquet
//
// Flags bound to the environment can also be set as DFIO_<FLAG>, and a .env
// file in the working directory is loaded on start.
//
// # Build Tags
//
// Building with -tags dfio_minimal disables NDJSON support and cloud
// destinations. Calls that need them fail with a capability error.
package dfio
