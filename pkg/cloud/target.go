// Package cloud streams encoded bytes into an S3-compatible object store
// through a multipart upload.
//
// # Basic Usage
//
//	client, err := cloud.NewClient(ctx, target)
//	if err != nil {
//	    return err
//	}
//	w, err := cloud.NewWriter(ctx, client, target.BucketName(), target.Key,
//	    cloud.WithLogger(log))
//	if err != nil {
//	    return err
//	}
//	if _, err := w.Write(data); err != nil {
//	    return err // the upload has already been aborted
//	}
//	return w.Close()
//
// The writer is single-session and not safe for concurrent use.
package cloud

import (
	"context"
	"net/url"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	smithyendpoints "github.com/aws/smithy-go/endpoints"

	"github.com/ajitpratap0/dfio/pkg/errors"
)

// PlaceholderBucket is sent as the bucket name when the endpoint URL already
// addresses the bucket (virtual-hosted style without an explicit bucket).
const PlaceholderBucket = "dfio-default-bucket-name"

// DefaultRegion is used when a Target names no region.
const DefaultRegion = "us-east-1"

// Target identifies an object and the credentials used to reach it.
type Target struct {
	Endpoint        string `yaml:"endpoint"`
	Region          string `yaml:"region"`
	Bucket          string `yaml:"bucket"`
	Key             string `yaml:"key"`
	AccessKeyID     string `yaml:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key"`
	SessionToken    string `yaml:"session_token"`
}

// BucketName returns the bucket sent with each request.
func (t Target) BucketName() string {
	if t.Bucket == "" {
		return PlaceholderBucket
	}
	return t.Bucket
}

// String renders the target as bucket/key for messages.
func (t Target) String() string {
	return t.BucketName() + "/" + t.Key
}

// Validate checks that the target names an object and, when an endpoint is
// given, that it is an absolute URL.
func (t Target) Validate() error {
	if strings.TrimSpace(t.Key) == "" {
		return errors.New(errors.ErrorTypeValidation, "object key is required").WithValue(t.String())
	}
	if t.Endpoint != "" {
		u, err := url.Parse(t.Endpoint)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return errors.New(errors.ErrorTypeValidation, "endpoint must be an absolute URL").WithValue(t.Endpoint)
		}
	}
	if t.Bucket == "" && t.Endpoint == "" {
		return errors.New(errors.ErrorTypeValidation, "an endpoint is required when no bucket is given").WithValue(t.Key)
	}
	if (t.AccessKeyID == "") != (t.SecretAccessKey == "") {
		return errors.New(errors.ErrorTypeValidation, "access key id and secret access key must be given together")
	}
	return nil
}

// NewClient builds an S3 client for t. Static credentials are used when t
// carries them, otherwise the default AWS credential chain. With a bucket the
// client uses path-style addressing against the endpoint; without one the
// endpoint URL is used verbatim for every request.
func NewClient(ctx context.Context, t Target, optFns ...func(*s3.Options)) (*s3.Client, error) {
	if err := t.Validate(); err != nil {
		return nil, err
	}

	region := t.Region
	if region == "" {
		region = DefaultRegion
	}
	loadOpts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(region)}
	if t.AccessKeyID != "" {
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(t.AccessKeyID, t.SecretAccessKey, t.SessionToken)))
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeObjectStore, "failed to load aws configuration").WithValue(t.String())
	}

	var endpoint *url.URL
	if t.Endpoint != "" {
		endpoint, err = url.Parse(t.Endpoint)
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeValidation, "invalid endpoint").WithValue(t.Endpoint)
		}
	}

	return s3.NewFromConfig(cfg, func(o *s3.Options) {
		switch {
		case endpoint == nil:
		case t.Bucket != "":
			o.BaseEndpoint = aws.String(t.Endpoint)
			o.UsePathStyle = true
		default:
			o.EndpointResolverV2 = staticResolver{uri: *endpoint}
		}
		for _, fn := range optFns {
			fn(o)
		}
	}), nil
}

// staticResolver returns the same endpoint for every request. It is used for
// endpoints that already address the bucket.
type staticResolver struct {
	uri url.URL
}

func (r staticResolver) ResolveEndpoint(_ context.Context, _ s3.EndpointParameters) (smithyendpoints.Endpoint, error) {
	return smithyendpoints.Endpoint{URI: r.uri}, nil
}
