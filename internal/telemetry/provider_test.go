package telemetry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetup_NoopWhenEndpointEmpty(t *testing.T) {
	shutdown, err := Setup(context.Background(), "threadrook-test", "")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.NoError(t, shutdown(ctx), "noop shutdown ignores cancelled context")
}

// Not parallel: Setup replaces the global tracer provider.
func TestSetup_CreatesProviderWhenEndpointSet(t *testing.T) {
	// 不可路由地址，不会真正导出
	shutdown, err := Setup(context.Background(), "threadrook-test", "http://192.0.2.1:4318")
	require.NoError(t, err)
	assert.NoError(t, shutdown(context.Background()))
}
