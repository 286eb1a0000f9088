package metrics

import (
	stderrors "errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObserveOperation(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.ObserveOperation("read", "csv", 5*time.Millisecond, 10, nil)
	c.ObserveOperation("read", "csv", time.Millisecond, 3, nil)
	c.ObserveOperation("read", "csv", time.Millisecond, 0, stderrors.New("boom"))

	assert.Equal(t, 2.0, testutil.ToFloat64(c.operations.WithLabelValues("read", "csv", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.operations.WithLabelValues("read", "csv", "failure")))
	assert.Equal(t, 13.0, testutil.ToFloat64(c.rows.WithLabelValues("read", "csv")))

	count, err := testutil.GatherAndCount(reg, "dfio_operation_duration_seconds")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestUploadMetrics(t *testing.T) {
	c := NewCollector(prometheus.NewRegistry())

	c.PartUploaded(100)
	c.PartUploaded(50)
	c.PartFailed()
	c.UploadAborted(nil)
	c.UploadAborted(stderrors.New("denied"))

	assert.Equal(t, 2.0, testutil.ToFloat64(c.parts.WithLabelValues("success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.parts.WithLabelValues("failure")))
	assert.Equal(t, 150.0, testutil.ToFloat64(c.uploadBytes))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.aborts.WithLabelValues("success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.aborts.WithLabelValues("failure")))
}

func TestNilCollector(t *testing.T) {
	var c *Collector
	assert.NotPanics(t, func() {
		c.ObserveOperation("write", "ipc", time.Second, 1, nil)
		c.PartUploaded(1)
		c.PartFailed()
		c.UploadAborted(nil)
	})
}

func TestTimer(t *testing.T) {
	timer := NewTimer()
	time.Sleep(time.Millisecond)
	assert.GreaterOrEqual(t, timer.Stop(), time.Millisecond)
}
