package tracing

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewProvider_Disabled(t *testing.T) {
	p, err := NewProvider(Config{})
	require.NoError(t, err)
	assert.False(t, p.Enabled())
	assert.NotNil(t, p.Tracer("pipeline"))
	assert.NoError(t, p.Shutdown(context.Background()))
}

func TestNewProvider_EnabledWithoutEndpoint(t *testing.T) {
	_, err := NewProvider(Config{Enabled: true})
	require.Error(t, err)
}

func TestNewProvider_MissingCACert(t *testing.T) {
	_, err := NewProvider(Config{
		Enabled:   true,
		Endpoint:  "localhost:4317",
		TLSCAPath: "/nonexistent/ca.crt",
	})
	require.Error(t, err)
}
