// Package tracing provides the OpenTelemetry helpers used to trace gateway
// operations and object store requests.
//
// Spans go to the tracer provider given to a component, or to the global
// provider set with otel.SetTracerProvider. Without either, spans are no-ops.
package tracing

import (
	"io"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"

	"github.com/ajitpratap0/dfio/pkg/errors"
)

// InstrumentationName identifies dfio spans.
const InstrumentationName = "github.com/ajitpratap0/dfio"

// Span attribute keys.
const (
	OperationKey   = attribute.Key("dfio.operation")
	FormatKey      = attribute.Key("dfio.format")
	DestinationKey = attribute.Key("dfio.destination")
	PathKey        = attribute.Key("dfio.path")
	RowsKey        = attribute.Key("dfio.rows")
	BucketKey      = attribute.Key("dfio.bucket")
	ObjectKey      = attribute.Key("dfio.key")
	PartKey        = attribute.Key("dfio.part")
	BytesKey       = attribute.Key("dfio.bytes")
)

// Tracer returns the dfio tracer of tp, or of the global provider when tp
// is nil.
func Tracer(tp trace.TracerProvider) trace.Tracer {
	if tp == nil {
		tp = otel.GetTracerProvider()
	}
	return tp.Tracer(InstrumentationName)
}

// End sets the span status from err and ends the span.
func End(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}

// NewStdoutProvider returns a provider that writes every finished span to w
// as JSON. Shut it down to flush.
func NewStdoutProvider(w io.Writer, serviceVersion string) (*sdktrace.TracerProvider, error) {
	exporter, err := stdouttrace.New(stdouttrace.WithWriter(w))
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeInternal, "failed to create trace exporter")
	}
	res := resource.NewSchemaless(
		attribute.String("service.name", "dfio"),
		attribute.String("service.version", serviceVersion),
	)
	return sdktrace.NewTracerProvider(
		sdktrace.WithSyncer(exporter),
		sdktrace.WithResource(res),
	), nil
}
