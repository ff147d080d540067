package tracing

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSamplerDescription(t *testing.T) {
	assert.Contains(t, Sampler(0).Description(), "AlwaysOnSampler")
	assert.Contains(t, Sampler(1).Description(), "AlwaysOnSampler")
	assert.Contains(t, Sampler(0.25).Description(), "TraceIDRatioBased{0.25}")
}

func TestShutdownNilProvider(t *testing.T) {
	var p *Provider
	require.NoError(t, p.Shutdown(context.Background()))
}
