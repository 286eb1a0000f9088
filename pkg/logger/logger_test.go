package logger

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestNewRejectsUnknownLevel(t *testing.T) {
	_, err := New(Config{Level: "loud"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid log level")
}

func TestOrDefault(t *testing.T) {
	l := zap.NewNop()
	assert.Same(t, l, OrDefault(l))
	assert.NotNil(t, OrDefault(nil))
}

func TestWithContextAddsOperationFields(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	base := zap.New(core)

	ctx := WithOperation(context.Background(), "write", "parquet")
	ctx = context.WithValue(ctx, DestinationKey, "s3")

	WithContext(ctx, base).Info("written")

	require.Equal(t, 1, logs.Len())
	fields := logs.All()[0].ContextMap()
	assert.Equal(t, "write", fields["operation"])
	assert.Equal(t, "parquet", fields["format"])
	assert.Equal(t, "s3", fields["destination"])
}
