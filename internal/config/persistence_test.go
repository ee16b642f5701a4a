package config

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gatekit/gatekit/internal/catalog"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "gatekit.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestPutAndLoadCallablesRoundTrip(t *testing.T) {
	s := openTestStore(t)

	rec := &catalog.CallableRecord{
		ID:          catalog.CallableId("tool:srv:files::read_file::sd:deadbeef"),
		Kind:        catalog.KindTool,
		FQName:      "files.read_file",
		Name:        "read_file",
		ServerAlias: "files",
	}
	require.NoError(t, s.PutCallable(rec))

	loaded, err := s.LoadCallables()
	require.NoError(t, err)
	require.Len(t, loaded, 1)
	assert.Equal(t, rec.ID, loaded[0].ID)
}

func TestDeleteCallablesByServerRemovesOnlyThatServer(t *testing.T) {
	s := openTestStore(t)

	require.NoError(t, s.PutCallable(&catalog.CallableRecord{ID: "a", ServerAlias: "files"}))
	require.NoError(t, s.PutCallable(&catalog.CallableRecord{ID: "b", ServerAlias: "other"}))

	require.NoError(t, s.DeleteCallablesByServer("files"))

	loaded, err := s.LoadCallables()
	require.NoError(t, err)
	require.Len(t, loaded, 1)
	assert.Equal(t, catalog.CallableId("b"), loaded[0].ID)
}

func TestCountExecutionsSinceHonorsWindow(t *testing.T) {
	s := openTestStore(t)
	now := time.Now()

	require.NoError(t, s.AppendExecution(catalog.ExecutionRecord{ID: "1", CallableID: "x", StartedAt: now.Add(-time.Hour), Success: true}))
	require.NoError(t, s.AppendExecution(catalog.ExecutionRecord{ID: "2", CallableID: "x", StartedAt: now, Success: true}))

	count, err := s.CountExecutionsSince("x", now.Add(-time.Minute))
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	count, err = s.CountExecutionsSince("x", now.Add(-2*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestPutServerStateUpsertsByAlias(t *testing.T) {
	s := openTestStore(t)

	require.NoError(t, s.PutServerState(catalog.ServerInfo{Alias: "files", Health: catalog.HealthConnected, ToolCount: 3}))
	require.NoError(t, s.PutServerState(catalog.ServerInfo{Alias: "files", Health: catalog.HealthDown, ToolCount: 0}))

	var count int
	require.NoError(t, s.db.QueryRow(`SELECT COUNT(*) FROM server_state`).Scan(&count))
	assert.Equal(t, 1, count)
}
