package telemetry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"

	"bookexchange/internal/config"
)

func TestInitWithoutExporter(t *testing.T) {
	ctx := context.Background()

	shutdown, err := Init(ctx, "test", config.TelemetryConfig{})
	require.NoError(t, err)

	_, span := otel.Tracer("test").Start(ctx, "op")
	assert.True(t, span.SpanContext().IsValid())
	span.End()

	require.NoError(t, shutdown(ctx))
}
