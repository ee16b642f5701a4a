package catalog

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRecord(t *testing.T, alias, name, title, desc string, tags []string) *CallableRecord {
	t.Helper()
	digest, err := DigestSchema([]byte(`{"type":"object","properties":{"path":{"type":"string"}}}`))
	require.NoError(t, err)
	id := NewToolId(alias, name, digest)
	return &CallableRecord{
		ID:           id,
		Kind:         KindTool,
		FQName:       FQName(KindTool, alias, name),
		Name:         name,
		Title:        title,
		Description:  desc,
		Tags:         tags,
		ServerAlias:  alias,
		InputSchema:  map[string]any{"type": "object", "properties": map[string]any{"path": map[string]any{"type": "string"}}},
		SchemaDigest: digest,
		RiskTier:     RiskReadOnly,
	}
}

func TestRegistryRegisterAndGet(t *testing.T) {
	r := NewRegistry()
	rec := newTestRecord(t, "files", "read_file", "Read File", "reads a file from disk", []string{"fs", "read"})
	r.Register(rec)

	got, ok := r.Get(rec.ID)
	require.True(t, ok)
	assert.Equal(t, rec.FQName, got.FQName)

	byFQ, ok := r.GetByFQName("files.read_file")
	require.True(t, ok)
	assert.Equal(t, rec.ID, byFQ.ID)
}

func TestRegistryBatchReplaceIsAtomic(t *testing.T) {
	r := NewRegistry()
	old := newTestRecord(t, "files", "read_file", "Read", "reads", nil)
	r.Register(old)

	fresh := newTestRecord(t, "files", "write_file", "Write", "writes", nil)
	r.RegisterBatch("files", []*CallableRecord{fresh})

	_, ok := r.GetByFQName("files.read_file")
	assert.False(t, ok, "stale tool from previous batch must be gone")

	_, ok = r.GetByFQName("files.write_file")
	assert.True(t, ok)
}

func TestDownServerToolsStayQueryable(t *testing.T) {
	r := NewRegistry()
	rec := newTestRecord(t, "files", "read_file", "Read", "reads", nil)
	r.Register(rec)
	r.UpsertServer(&ServerInfo{Alias: "files", Health: HealthConnected})

	r.MarkServerDown("files")

	_, ok := r.GetByFQName("files.read_file")
	assert.True(t, ok, "a down server's tools must remain queryable")

	info, ok := r.Server("files")
	require.True(t, ok)
	assert.Equal(t, HealthDown, info.Health)
}

func TestSearchScoringWeights(t *testing.T) {
	r := NewRegistry()
	nameHit := newTestRecord(t, "files", "deploy", "unrelated title", "unrelated description", nil)
	descHit := newTestRecord(t, "ops", "unrelated_name", "unrelated title", "run the deploy script", nil)
	r.Register(nameHit)
	r.Register(descHit)

	idx := NewSearchIndex(r)
	results := idx.Search(SearchQuery{Text: "deploy"})

	require.Len(t, results.Matches, 2)
	assert.Equal(t, nameHit.ID, results.Matches[0].Record.ID, "name match (weight 30) must outrank description match (weight 10)")
	assert.Greater(t, results.Matches[0].Score, results.Matches[1].Score)
}

func TestSearchFiltersByServerAndTags(t *testing.T) {
	r := NewRegistry()
	a := newTestRecord(t, "files", "read_file", "Read", "reads a file", []string{"fs"})
	b := newTestRecord(t, "net", "http_get", "HTTP Get", "reads a url", []string{"net"})
	r.Register(a)
	r.Register(b)

	idx := NewSearchIndex(r)
	results := idx.Search(SearchQuery{Text: "reads", Server: "files"})

	require.Len(t, results.Matches, 1)
	assert.Equal(t, a.ID, results.Matches[0].Record.ID)

	tagResults := idx.Search(SearchQuery{Text: "reads", Tags: []string{"net"}})
	require.Len(t, tagResults.Matches, 1)
	assert.Equal(t, b.ID, tagResults.Matches[0].Record.ID)
}

func TestSearchFiltersByRequiresInputSchemaKeys(t *testing.T) {
	r := NewRegistry()

	// Has a "path" tag but its input schema declares no "path" parameter:
	// requires:["path"] must NOT match on the tag.
	taggedOnly := newTestRecord(t, "files", "read_file", "Read", "reads a file", []string{"path"})
	taggedOnly.InputSchema = map[string]any{"type": "object", "properties": map[string]any{"host": map[string]any{"type": "string"}}}

	// No "path" tag, but its input schema does declare a "path" parameter:
	// requires:["path"] must match on the schema key.
	schemaOnly := newTestRecord(t, "net", "fetch", "Fetch", "fetches a url", nil)
	schemaOnly.InputSchema = map[string]any{"type": "object", "properties": map[string]any{"path": map[string]any{"type": "string"}}}

	r.Register(taggedOnly)
	r.Register(schemaOnly)

	idx := NewSearchIndex(r)
	results := idx.Search(SearchQuery{Text: "a", Requires: []string{"path"}})

	require.Len(t, results.Matches, 1)
	assert.Equal(t, schemaOnly.ID, results.Matches[0].Record.ID)
}

func TestSearchPaginatesByOffsetCursor(t *testing.T) {
	r := NewRegistry()
	for i := 0; i < 5; i++ {
		r.Register(newTestRecord(t, "files", string(rune('a'+i)), "Tool", "handles files", nil))
	}
	idx := NewSearchIndex(r)

	first := idx.Search(SearchQuery{Text: "files", Limit: 2})
	assert.Len(t, first.Matches, 2)
	assert.Equal(t, 5, first.Total)
	require.NotEmpty(t, first.NextCursor)

	second := idx.Search(SearchQuery{Text: "files", Limit: 2, Cursor: first.NextCursor})
	assert.Len(t, second.Matches, 2)

	third := idx.Search(SearchQuery{Text: "files", Limit: 2, Cursor: second.NextCursor})
	assert.Len(t, third.Matches, 1)
	assert.Empty(t, third.NextCursor)
}

func TestSchemaDigestIsOrderIndependent(t *testing.T) {
	d1, err := DigestSchema([]byte(`{"type":"object","properties":{"a":{"type":"string"},"b":{"type":"number"}}}`))
	require.NoError(t, err)
	d2, err := DigestSchema([]byte(`{"properties":{"b":{"type":"number"},"a":{"type":"string"}},"type":"object"}`))
	require.NoError(t, err)
	assert.Equal(t, d1, d2, "schema digest must be independent of key order")
}

func TestCallableIdRoundTrip(t *testing.T) {
	digest, err := DigestSchema([]byte(`{}`))
	require.NoError(t, err)
	id := NewToolId("files", "read_file", digest)

	assert.Equal(t, KindTool, id.Kind())
	alias, name, prefix, ok := ParseToolId(id)
	require.True(t, ok)
	assert.Equal(t, "files", alias)
	assert.Equal(t, "read_file", name)
	assert.Equal(t, digest.Short(), prefix)

	skillID := NewSkillId("deploy-helper", "1.2.0")
	assert.Equal(t, KindSkill, skillID.Kind())
	sid, version, ok := ParseSkillId(skillID)
	require.True(t, ok)
	assert.Equal(t, "deploy-helper", sid)
	assert.Equal(t, "1.2.0", version)
}
