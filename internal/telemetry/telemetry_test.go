package telemetry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"finch/internal/config"
)

func TestSetupDisabled(t *testing.T) {
	shutdown, err := Setup(context.Background(), config.TelemetryConfig{}, "test")
	require.NoError(t, err)
	assert.NoError(t, shutdown(context.Background()))
}

func TestSetupRequiresEndpoint(t *testing.T) {
	_, err := Setup(context.Background(), config.TelemetryConfig{Enabled: true}, "test")
	assert.Error(t, err)
}
