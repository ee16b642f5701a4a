package upstream

import (
	"context"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gatekit/gatekit/internal/catalog"
)

// TestAddServerFailurePublishesFailedState covers scenario (E): a stdio
// upstream whose command exits immediately with no handshake must end up
// Failed, with no callables registered for its alias.
func TestAddServerFailurePublishesFailedState(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("requires /bin/false")
	}

	registry := catalog.NewRegistry()
	mgr := NewManager(registry, "gatekit-test", "0.0.0")

	cfg := Config{
		Alias:     "broken",
		Transport: TransportStdio,
		Command:   []string{"false"},
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := mgr.AddServer(ctx, cfg)
	require.Error(t, err)

	state, ok := mgr.GetState("broken")
	require.True(t, ok)
	assert.Equal(t, StateFailed, state)

	rec, found := registry.GetByFQName("broken.anything")
	assert.False(t, found)
	assert.Nil(t, rec)

	info, ok := registry.Server("broken")
	require.True(t, ok)
	assert.Equal(t, catalog.HealthDown, info.Health)
}

func TestNormalizeTransportFoldsAliases(t *testing.T) {
	assert.Equal(t, TransportHTTP, NormalizeTransport(TransportSSE))
	assert.Equal(t, TransportHTTP, NormalizeTransport(TransportStreamableHTTP))
	assert.Equal(t, TransportHTTP, NormalizeTransport(TransportHTTP))
	assert.Equal(t, TransportStdio, NormalizeTransport(TransportStdio))
}
