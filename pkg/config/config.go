package config

import (
	"go.uber.org/zap/zapcore"

	"github.com/ajitpratap0/dfio/pkg/cloud"
	"github.com/ajitpratap0/dfio/pkg/errors"
	"github.com/ajitpratap0/dfio/pkg/logger"
)

// Config is the dfio configuration file.
type Config struct {
	// Capabilities overrides the compiled-in feature defaults
	Capabilities CapabilitiesConfig `yaml:"capabilities" json:"capabilities"`
	// Cloud holds the object store connection used by cloud writes
	Cloud CloudConfig `yaml:"cloud" json:"cloud"`
	// CSV holds the defaults for CSV reads and writes
	CSV CSVConfig `yaml:"csv" json:"csv"`
	// NDJSON holds the defaults for NDJSON reads
	NDJSON NDJSONConfig `yaml:"ndjson" json:"ndjson"`
	// Log configures the global logger
	Log logger.Config `yaml:"log" json:"log"`
	// Metrics enables Prometheus instrumentation
	Metrics MetricsConfig `yaml:"metrics" json:"metrics"`
}

// CapabilitiesConfig turns optional features on or off. A nil value keeps
// the compiled-in default.
type CapabilitiesConfig struct {
	NDJSON *bool `yaml:"ndjson" json:"ndjson"`
	Cloud  *bool `yaml:"cloud" json:"cloud"`
}

// CloudConfig describes the object store. The object key is given per write.
type CloudConfig struct {
	Endpoint        string `yaml:"endpoint" json:"endpoint"`
	Region          string `yaml:"region" json:"region"`
	Bucket          string `yaml:"bucket" json:"bucket"`
	AccessKeyID     string `yaml:"access_key_id" json:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key" json:"secret_access_key"`
	SessionToken    string `yaml:"session_token" json:"session_token"`
	// PartSize is the multipart upload part size in bytes
	PartSize int `yaml:"part_size" json:"part_size"`
}

// Target returns the cloud target for key.
func (c CloudConfig) Target(key string) cloud.Target {
	return cloud.Target{
		Endpoint:        c.Endpoint,
		Region:          c.Region,
		Bucket:          c.Bucket,
		Key:             key,
		AccessKeyID:     c.AccessKeyID,
		SecretAccessKey: c.SecretAccessKey,
		SessionToken:    c.SessionToken,
	}
}

// CSVConfig holds CSV defaults.
type CSVConfig struct {
	Delimiter         string   `yaml:"delimiter" json:"delimiter"`
	HasHeader         bool     `yaml:"has_header" json:"has_header"`
	Encoding          string   `yaml:"encoding" json:"encoding"`
	InferSchemaLength int      `yaml:"infer_schema_length" json:"infer_schema_length"`
	NullValues        []string `yaml:"null_values,omitempty" json:"null_values,omitempty"`
	ParseDates        bool     `yaml:"parse_dates" json:"parse_dates"`
}

// NDJSONConfig holds NDJSON defaults.
type NDJSONConfig struct {
	BatchSize         int `yaml:"batch_size" json:"batch_size"`
	InferSchemaLength int `yaml:"infer_schema_length" json:"infer_schema_length"`
}

// MetricsConfig controls Prometheus instrumentation.
type MetricsConfig struct {
	Enabled bool `yaml:"enabled" json:"enabled"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Cloud: CloudConfig{
			Region:   cloud.DefaultRegion,
			PartSize: cloud.MinPartSize,
		},
		CSV: CSVConfig{
			Delimiter:         ",",
			HasHeader:         true,
			Encoding:          "utf8",
			InferSchemaLength: 1000,
		},
		NDJSON: NDJSONConfig{
			BatchSize:         1000,
			InferSchemaLength: 1000,
		},
		Log: logger.DefaultConfig(),
	}
}

// Validate checks the configuration, returning the first problem found.
func (c *Config) Validate() error {
	if len(c.CSV.Delimiter) != 1 || c.CSV.Delimiter[0] > 127 {
		return errors.New(errors.ErrorTypeValidation, "csv delimiter must be a single ASCII character").
			WithValue(c.CSV.Delimiter)
	}
	switch c.CSV.Encoding {
	case "", "utf8", "utf8-lossy":
	default:
		return errors.New(errors.ErrorTypeUnsupportedOption, "unsupported csv encoding").WithValue(c.CSV.Encoding)
	}
	if c.CSV.InferSchemaLength < 0 {
		return errors.New(errors.ErrorTypeValidation, "csv infer_schema_length must not be negative").
			WithDetail("infer_schema_length", c.CSV.InferSchemaLength)
	}
	if c.NDJSON.BatchSize <= 0 {
		return errors.New(errors.ErrorTypeValidation, "ndjson batch_size must be positive").
			WithDetail("batch_size", c.NDJSON.BatchSize)
	}
	if c.NDJSON.InferSchemaLength < 0 {
		return errors.New(errors.ErrorTypeValidation, "ndjson infer_schema_length must not be negative").
			WithDetail("infer_schema_length", c.NDJSON.InferSchemaLength)
	}
	if c.Cloud.PartSize <= 0 {
		return errors.New(errors.ErrorTypeValidation, "cloud part_size must be positive").
			WithDetail("part_size", c.Cloud.PartSize)
	}
	if (c.Cloud.AccessKeyID == "") != (c.Cloud.SecretAccessKey == "") {
		return errors.New(errors.ErrorTypeValidation, "cloud access_key_id and secret_access_key must be given together")
	}
	if c.Log.Level != "" {
		if _, err := zapcore.ParseLevel(c.Log.Level); err != nil {
			return errors.Wrap(err, errors.ErrorTypeValidation, "invalid log level").WithValue(c.Log.Level)
		}
	}
	switch c.Log.Encoding {
	case "", "json", "console":
	default:
		return errors.New(errors.ErrorTypeValidation, "log encoding must be json or console").WithValue(c.Log.Encoding)
	}
	return nil
}
