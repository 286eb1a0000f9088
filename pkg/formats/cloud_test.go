package formats_test

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/prometheus/client_golang/prometheus"
	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/ajitpratap0/dfio/pkg/cloud"
	"github.com/ajitpratap0/dfio/pkg/errors"
	"github.com/ajitpratap0/dfio/pkg/formats"
	"github.com/ajitpratap0/dfio/pkg/frame"
	"github.com/ajitpratap0/dfio/pkg/metrics"
	"github.com/ajitpratap0/dfio/pkg/testutil"
)

func testTarget(key string) cloud.Target {
	return cloud.Target{
		Endpoint:        "http://localhost:9000",
		Bucket:          "exports",
		Key:             key,
		AccessKeyID:     "minio",
		SecretAccessKey: "minio123",
	}
}

// memStore is an in-memory multipart store.
type memStore struct {
	mu       sync.Mutex
	parts    map[string]map[int32][]byte
	objects  map[string][]byte
	types    map[string]string
	aborted  int
	failPart int32
}

func newMemStore() *memStore {
	return &memStore{
		parts:   map[string]map[int32][]byte{},
		objects: map[string][]byte{},
		types:   map[string]string{},
	}
}

func (m *memStore) CreateMultipartUpload(_ context.Context, in *s3.CreateMultipartUploadInput, _ ...func(*s3.Options)) (*s3.CreateMultipartUploadOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := fmt.Sprintf("%s/%s", aws.ToString(in.Bucket), aws.ToString(in.Key))
	m.parts[id] = map[int32][]byte{}
	m.types[id] = aws.ToString(in.ContentType)
	return &s3.CreateMultipartUploadOutput{UploadId: aws.String(id)}, nil
}

func (m *memStore) UploadPart(_ context.Context, in *s3.UploadPartInput, _ ...func(*s3.Options)) (*s3.UploadPartOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := aws.ToInt32(in.PartNumber)
	if n == m.failPart {
		return nil, fmt.Errorf("connection reset")
	}
	data, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	m.parts[aws.ToString(in.UploadId)][n] = data
	return &s3.UploadPartOutput{ETag: aws.String(fmt.Sprint(n))}, nil
}

func (m *memStore) CompleteMultipartUpload(_ context.Context, in *s3.CompleteMultipartUploadInput, _ ...func(*s3.Options)) (*s3.CompleteMultipartUploadOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := aws.ToString(in.UploadId)
	obj := []byte{}
	for _, p := range in.MultipartUpload.Parts {
		obj = append(obj, m.parts[id][aws.ToInt32(p.PartNumber)]...)
	}
	m.objects[id] = obj
	return &s3.CompleteMultipartUploadOutput{}, nil
}

func (m *memStore) AbortMultipartUpload(_ context.Context, in *s3.AbortMultipartUploadInput, _ ...func(*s3.Options)) (*s3.AbortMultipartUploadOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.aborted++
	delete(m.parts, aws.ToString(in.UploadId))
	return &s3.AbortMultipartUploadOutput{}, nil
}

func cloudGateway(t *testing.T, store *memStore, partSize int, collector *metrics.Collector) *formats.Gateway {
	t.Helper()
	return newGateway(t, testutil.CheckedAllocator(t), func(c *formats.Config) {
		c.PartSize = partSize
		c.Metrics = collector
		c.NewClient = func(_ context.Context, target cloud.Target) (cloud.MultipartAPI, error) {
			require.Equal(t, "exports", target.BucketName())
			return store, nil
		}
	})
}

func TestCloudWriteMatchesDump(t *testing.T) {
	ctx := testutil.TestContext(t)
	store := newMemStore()
	gw := cloudGateway(t, store, 64, nil)
	df := testutil.SampleFrame(t, testutil.CheckedAllocator(t))

	require.NoError(t, gw.WriteParquet(ctx, df, formats.CloudDestination(testTarget("daily/out.parquet")), formats.ParquetWriteOptions{}))
	want, err := gw.DumpParquet(df, formats.ParquetWriteOptions{})
	require.NoError(t, err)

	assert.Equal(t, want, store.objects["exports/daily/out.parquet"])
	assert.Equal(t, "application/vnd.apache.parquet", store.types["exports/daily/out.parquet"])
	assert.Greater(t, len(want), 64, "expected more than one part")

	got, err := gw.LoadParquet(store.objects["exports/daily/out.parquet"], formats.ParquetReadOptions{})
	require.NoError(t, err)
	defer got.Release()
	assert.True(t, df.Equal(got))
}

func TestCloudWriteTracesParts(t *testing.T) {
	rec := tracetest.NewSpanRecorder()
	store := newMemStore()
	gw := newGateway(t, testutil.CheckedAllocator(t), func(c *formats.Config) {
		c.PartSize = 64
		c.TracerProvider = sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(rec))
		c.NewClient = func(context.Context, cloud.Target) (cloud.MultipartAPI, error) {
			return store, nil
		}
	})
	df := testutil.SampleFrame(t, testutil.CheckedAllocator(t))

	require.NoError(t, gw.WriteParquet(testutil.TestContext(t), df,
		formats.CloudDestination(testTarget("daily/out.parquet")), formats.ParquetWriteOptions{}))

	spans := rec.Ended()
	require.Greater(t, len(spans), 2)
	root := spans[len(spans)-1]
	require.Equal(t, "dfio.write", root.Name())

	var parts int
	for _, s := range spans[:len(spans)-1] {
		assert.Equal(t, root.SpanContext().SpanID(), s.Parent().SpanID(), s.Name())
		if s.Name() == "dfio.upload_part" {
			parts++
		}
	}
	assert.Greater(t, parts, 1)
	assert.Equal(t, "dfio.complete_upload", spans[len(spans)-2].Name())
}

func TestCloudWriteEveryFormat(t *testing.T) {
	store := newMemStore()
	gw := cloudGateway(t, store, cloud.MinPartSize, nil)
	df := testutil.SampleFrame(t, testutil.CheckedAllocator(t))

	for _, c := range codecs(t) {
		t.Run(c.name, func(t *testing.T) {
			key := "out." + c.name
			require.NoError(t, c.write(gw, df, formats.CloudDestination(testTarget(key))))

			got, err := c.load(gw, store.objects["exports/"+key], frame.Projection{})
			require.NoError(t, err)
			defer got.Release()
			assert.True(t, df.Equal(got))
		})
	}
}

func TestCloudWriteFailureAborts(t *testing.T) {
	ctx := testutil.TestContext(t)
	store := newMemStore()
	store.failPart = 2
	reg := prometheus.NewRegistry()
	collector := metrics.NewCollector(reg)
	gw := cloudGateway(t, store, 16, collector)
	df := testutil.SampleFrame(t, testutil.CheckedAllocator(t))

	err := gw.WriteIPC(ctx, df, formats.CloudDestination(testTarget("broken.arrow")), formats.IPCWriteOptions{})
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeObjectStore), "got %v", err)

	assert.Equal(t, 1, store.aborted)
	assert.NotContains(t, store.objects, "exports/broken.arrow")
	require.NoError(t, promtest.GatherAndCompare(reg, strings.NewReader(`
# HELP dfio_upload_aborts_total Multipart upload abort attempts
# TYPE dfio_upload_aborts_total counter
dfio_upload_aborts_total{status="success"} 1
# HELP dfio_upload_parts_total Multipart upload parts sent to the object store
# TYPE dfio_upload_parts_total counter
dfio_upload_parts_total{status="failure"} 1
dfio_upload_parts_total{status="success"} 1
`), "dfio_upload_aborts_total", "dfio_upload_parts_total"))
	require.NoError(t, promtest.GatherAndCompare(reg, strings.NewReader(`
# HELP dfio_operations_total Total number of gateway operations
# TYPE dfio_operations_total counter
dfio_operations_total{format="ipc",operation="write",status="failure"} 1
`), "dfio_operations_total"))
}

func TestCloudWriteRejectsBadTarget(t *testing.T) {
	ctx := testutil.TestContext(t)
	store := newMemStore()
	gw := cloudGateway(t, store, cloud.MinPartSize, nil)
	df := testutil.SampleFrame(t, testutil.CheckedAllocator(t))

	target := testTarget("")
	err := gw.WriteCSV(ctx, df, formats.CloudDestination(target), formats.DefaultCSVWriteOptions())
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeValidation), "got %v", err)
	assert.Empty(t, store.parts)
}

func TestDestinationString(t *testing.T) {
	assert.Equal(t, "s3://exports/a/b.csv", formats.CloudDestination(testTarget("a/b.csv")).String())
	assert.Equal(t, "/tmp/x.csv", formats.LocalPath("/tmp/x.csv").String())
	assert.True(t, formats.CloudDestination(testTarget("k")).IsCloud())
	assert.False(t, formats.LocalPath("k").IsCloud())
}
