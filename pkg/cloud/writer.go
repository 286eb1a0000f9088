package cloud

import (
	"bytes"
	"context"
	"slices"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/ajitpratap0/dfio/pkg/errors"
	"github.com/ajitpratap0/dfio/pkg/logger"
	"github.com/ajitpratap0/dfio/pkg/metrics"
	"github.com/ajitpratap0/dfio/pkg/tracing"
)

// MinPartSize is the smallest part S3 accepts for every part but the last,
// and the default part size of a Writer.
const MinPartSize = 5 * 1024 * 1024

// MultipartAPI is the subset of the S3 client used by Writer.
type MultipartAPI interface {
	CreateMultipartUpload(ctx context.Context, params *s3.CreateMultipartUploadInput, optFns ...func(*s3.Options)) (*s3.CreateMultipartUploadOutput, error)
	UploadPart(ctx context.Context, params *s3.UploadPartInput, optFns ...func(*s3.Options)) (*s3.UploadPartOutput, error)
	CompleteMultipartUpload(ctx context.Context, params *s3.CompleteMultipartUploadInput, optFns ...func(*s3.Options)) (*s3.CompleteMultipartUploadOutput, error)
	AbortMultipartUpload(ctx context.Context, params *s3.AbortMultipartUploadInput, optFns ...func(*s3.Options)) (*s3.AbortMultipartUploadOutput, error)
}

// Option configures a Writer.
type Option func(*Writer) error

// WithPartSize sets the size of every part but the last. Values below
// MinPartSize are only accepted by S3-compatible stores without the minimum.
func WithPartSize(size int) Option {
	return func(w *Writer) error {
		if size <= 0 {
			return errors.New(errors.ErrorTypeValidation, "part size must be positive").
				WithDetail("part_size", size)
		}
		w.partSize = size
		return nil
	}
}

// WithLogger sets the logger; the default is logger.Get().
func WithLogger(l *zap.Logger) Option {
	return func(w *Writer) error {
		w.log = l
		return nil
	}
}

// WithMetrics records parts, bytes and aborts on c.
func WithMetrics(c *metrics.Collector) Option {
	return func(w *Writer) error {
		w.metrics = c
		return nil
	}
}

// WithTracer traces every part upload and the completion as child spans of
// the writer's context. The default is the global tracer provider.
func WithTracer(t trace.Tracer) Option {
	return func(w *Writer) error {
		w.tracer = t
		return nil
	}
}

// WithContentType sets the Content-Type of the uploaded object.
func WithContentType(contentType string) Option {
	return func(w *Writer) error {
		w.contentType = contentType
		return nil
	}
}

// Writer is an io.WriteCloser that uploads everything written to it as one
// object. Bytes are buffered until a full part is available; parts are sent
// one at a time in order. Any failure aborts the upload and leaves the writer
// returning that error.
//
// A Writer is bound to the context given to NewWriter: Write and Close send
// their requests with it. Aborts run even after that context is cancelled so
// a cancelled upload does not leave parts behind.
type Writer struct {
	ctx         context.Context
	client      MultipartAPI
	bucket      string
	key         string
	partSize    int
	contentType string
	log         *zap.Logger
	metrics     *metrics.Collector
	tracer      trace.Tracer

	buf      []byte
	uploadID *string
	parts    []types.CompletedPart
	err      error
	closed   bool
}

// NewWriter returns a writer for bucket/key. No request is made until the
// first Write or Close.
func NewWriter(ctx context.Context, client MultipartAPI, bucket, key string, opts ...Option) (*Writer, error) {
	if client == nil {
		return nil, errors.New(errors.ErrorTypeValidation, "object store client is required")
	}
	if key == "" {
		return nil, errors.New(errors.ErrorTypeValidation, "object key is required").WithValue(bucket + "/")
	}

	w := &Writer{
		ctx:      ctx,
		client:   client,
		bucket:   bucket,
		key:      key,
		partSize: MinPartSize,
	}
	for _, opt := range opts {
		if err := opt(w); err != nil {
			return nil, err
		}
	}
	if w.tracer == nil {
		w.tracer = tracing.Tracer(nil)
	}
	w.log = logger.OrDefault(w.log).With(zap.String("bucket", bucket), zap.String("key", key))
	return w, nil
}

// Write buffers p and uploads every complete part.
func (w *Writer) Write(p []byte) (int, error) {
	if w.err != nil {
		return 0, w.err
	}
	if w.closed {
		return 0, errors.New(errors.ErrorTypeValidation, "write to a closed upload").WithValue(w.location())
	}
	if err := w.begin(); err != nil {
		return 0, w.fail(err)
	}

	w.buf = append(w.buf, p...)
	for len(w.buf) >= w.partSize {
		if err := w.uploadPart(w.buf[:w.partSize]); err != nil {
			return 0, w.fail(err)
		}
		rest := copy(w.buf, w.buf[w.partSize:])
		w.buf = w.buf[:rest]
	}
	return len(p), nil
}

// Close uploads the buffered remainder as the last part and completes the
// upload. A writer that never uploaded a part sends a single empty part so
// the completed object exists.
func (w *Writer) Close() error {
	if w.err != nil {
		return w.err
	}
	if w.closed {
		return nil
	}
	w.closed = true

	if err := w.begin(); err != nil {
		return w.fail(err)
	}
	if len(w.buf) > 0 || len(w.parts) == 0 {
		if err := w.uploadPart(w.buf); err != nil {
			return w.fail(err)
		}
		w.buf = w.buf[:0]
	}

	slices.SortFunc(w.parts, func(a, b types.CompletedPart) int {
		return int(aws.ToInt32(a.PartNumber) - aws.ToInt32(b.PartNumber))
	})
	ctx, span := w.startSpan("dfio.complete_upload", tracing.PartKey.Int(len(w.parts)))
	_, err := w.client.CompleteMultipartUpload(ctx, &s3.CompleteMultipartUploadInput{
		Bucket:          aws.String(w.bucket),
		Key:             aws.String(w.key),
		UploadId:        w.uploadID,
		MultipartUpload: &types.CompletedMultipartUpload{Parts: w.parts},
	})
	if err != nil {
		err = errors.Wrap(err, errors.ErrorTypeObjectStore, "failed to complete upload").
			WithValue(w.location()).
			WithDetail("parts", len(w.parts))
	}
	tracing.End(span, err)
	if err != nil {
		return w.fail(err)
	}

	w.log.Debug("upload completed", zap.Int("parts", len(w.parts)))
	return nil
}

// Abort cancels the upload. It is a no-op when no upload was started or the
// upload already finished.
func (w *Writer) Abort() error {
	if w.uploadID == nil || (w.closed && w.err == nil) {
		w.closed = true
		return nil
	}
	w.closed = true
	if w.err != nil {
		// already aborted by fail
		return nil
	}
	w.err = errors.New(errors.ErrorTypeValidation, "upload was aborted").WithValue(w.location())
	return w.abort()
}

// PartsUploaded returns the number of parts accepted so far.
func (w *Writer) PartsUploaded() int {
	return len(w.parts)
}

func (w *Writer) begin() error {
	if w.uploadID != nil {
		return nil
	}
	input := &s3.CreateMultipartUploadInput{
		Bucket: aws.String(w.bucket),
		Key:    aws.String(w.key),
	}
	if w.contentType != "" {
		input.ContentType = aws.String(w.contentType)
	}
	out, err := w.client.CreateMultipartUpload(w.ctx, input)
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeObjectStore, "failed to create upload").WithValue(w.location())
	}
	if out.UploadId == nil {
		return errors.New(errors.ErrorTypeObjectStore, "object store returned no upload id").WithValue(w.location())
	}
	w.uploadID = out.UploadId
	w.log.Debug("upload created", zap.String("upload_id", *out.UploadId), zap.Int("part_size", w.partSize))
	return nil
}

func (w *Writer) uploadPart(chunk []byte) (err error) {
	number := int32(len(w.parts) + 1)
	ctx, span := w.startSpan("dfio.upload_part", tracing.PartKey.Int(int(number)), tracing.BytesKey.Int(len(chunk)))
	defer func() { tracing.End(span, err) }()

	out, err := w.client.UploadPart(ctx, &s3.UploadPartInput{
		Bucket:        aws.String(w.bucket),
		Key:           aws.String(w.key),
		UploadId:      w.uploadID,
		PartNumber:    aws.Int32(number),
		Body:          bytes.NewReader(chunk),
		ContentLength: aws.Int64(int64(len(chunk))),
	})
	if err != nil {
		w.metrics.PartFailed()
		return errors.Wrap(err, errors.ErrorTypeObjectStore, "failed to upload part").
			WithValue(w.location()).
			WithDetail("part", number)
	}

	w.parts = append(w.parts, types.CompletedPart{ETag: out.ETag, PartNumber: aws.Int32(number)})
	w.metrics.PartUploaded(len(chunk))
	w.log.Debug("part uploaded", zap.Int32("part", number), zap.Int("bytes", len(chunk)))
	return nil
}

// fail poisons the writer with err and aborts the upload. An abort failure
// is logged and dropped; err is returned.
func (w *Writer) fail(err error) error {
	w.err = err
	w.closed = true
	if w.uploadID == nil {
		return err
	}
	if abortErr := w.abort(); abortErr != nil {
		w.log.Warn("failed to abort upload", zap.Error(abortErr), zap.NamedError("cause", err))
	}
	return err
}

func (w *Writer) abort() error {
	_, err := w.client.AbortMultipartUpload(context.WithoutCancel(w.ctx), &s3.AbortMultipartUploadInput{
		Bucket:   aws.String(w.bucket),
		Key:      aws.String(w.key),
		UploadId: w.uploadID,
	})
	w.metrics.UploadAborted(err)
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeObjectStore, "failed to abort upload").WithValue(w.location())
	}
	w.log.Debug("upload aborted")
	return nil
}

func (w *Writer) startSpan(name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	attrs = append(attrs, tracing.BucketKey.String(w.bucket), tracing.ObjectKey.String(w.key))
	return w.tracer.Start(w.ctx, name, trace.WithAttributes(attrs...))
}

func (w *Writer) location() string {
	return w.bucket + "/" + w.key
}
