package catalog

import (
	"strconv"
	"strings"
)

// substring-match weights, grounded verbatim on
// original_source/src/storage/search.rs::score_ripgrep.
const (
	weightName        = 30
	weightFQName      = 25
	weightTitle       = 15
	weightDescription = 10
)

// SearchQuery describes one search() call.
type SearchQuery struct {
	Text       string
	Server     string   // exact server_alias match, "" = any
	Tags       []string // any-match
	Requires   []string // all-present
	Capability string   // tag match against a well-known capability tag
	Kind       Kind     // "" = any
	Cursor     string   // opaque pagination token, integer offset
	Limit      int
}

// SearchMatch is one scored hit.
type SearchMatch struct {
	Record *CallableRecord `json:"record"`
	Score  int             `json:"score"`
}

// SearchResults is one page of matches plus the cursor for the next page.
type SearchResults struct {
	Matches    []SearchMatch `json:"matches"`
	NextCursor string        `json:"next_cursor,omitempty"`
	Total      int           `json:"total"`
}

// SearchIndex scores the Registry's callables against a query directly
// (no persisted inverted map — there is no separate rebuild step).
// Grounded verbatim on original_source/src/storage/search.rs
// (InMemoryIndex / SearchEngine): same substring-weighted scoring, same
// filter semantics.
type SearchIndex struct {
	registry *Registry
}

// NewSearchIndex builds a SearchIndex backed by registry. Because scoring
// is computed on every query directly from CallableRecord text fields (as
// in the original — the "index" is really a cache-free scorer over the
// live registry, not a persisted inverted map) there is no separate
// rebuild step; Search always reflects the Registry's current state.
func NewSearchIndex(registry *Registry) *SearchIndex {
	return &SearchIndex{registry: registry}
}

// scoreRipgrep scores one record against the query text by substring
// presence in name/fq_name/title/description, weighted 30/25/15/10. The
// whole lowercased query is matched as a single substring per field (not
// tokenized), matching original_source/src/storage/search.rs:341-367
// exactly: one contribution per field, not one per query token.
func scoreRipgrep(rec *CallableRecord, queryText string) int {
	q := strings.ToLower(queryText)

	score := 0
	if strings.Contains(strings.ToLower(rec.Name), q) {
		score += weightName
	}
	if strings.Contains(strings.ToLower(rec.FQName), q) {
		score += weightFQName
	}
	if rec.Title != "" && strings.Contains(strings.ToLower(rec.Title), q) {
		score += weightTitle
	}
	if rec.Description != "" && strings.Contains(strings.ToLower(rec.Description), q) {
		score += weightDescription
	}
	return score
}

// applyFilters reports whether rec survives the query's structural
// filters (independent of text score), grounded on
// original_source/src/storage/search.rs::apply_filters.
func applyFilters(rec *CallableRecord, q SearchQuery) bool {
	if q.Kind != "" && rec.Kind != q.Kind {
		return false
	}
	if q.Server != "" && rec.ServerAlias != q.Server {
		return false
	}
	if len(q.Tags) > 0 && !anyMatch(rec.Tags, q.Tags) {
		return false
	}
	if len(q.Requires) > 0 && !allPresent(ExtractInputKeys(rec), q.Requires) {
		return false
	}
	if q.Capability != "" && !containsTag(rec.Tags, q.Capability) {
		return false
	}
	return true
}

func anyMatch(have, want []string) bool {
	for _, w := range want {
		if containsTag(have, w) {
			return true
		}
	}
	return false
}

func allPresent(have, want []string) bool {
	for _, w := range want {
		if !containsTag(have, w) {
			return false
		}
	}
	return true
}

func containsTag(tags []string, tag string) bool {
	for _, t := range tags {
		if strings.EqualFold(t, tag) {
			return true
		}
	}
	return false
}

// Search runs one query against the current registry snapshot: filter,
// score, sort by descending score (FQName tiebreak for determinism),
// then paginate via an integer-offset cursor, matching the original's
// cursor-as-offset-string pagination scheme.
func (idx *SearchIndex) Search(q SearchQuery) SearchResults {
	var all []*CallableRecord
	if q.Kind != "" {
		all = idx.registry.ByKind(q.Kind)
	} else {
		all = idx.registry.All()
	}

	matches := make([]SearchMatch, 0, len(all))
	for _, rec := range all {
		if !applyFilters(rec, q) {
			continue
		}
		score := scoreRipgrep(rec, q.Text)
		if score <= 0 {
			continue
		}
		matches = append(matches, SearchMatch{Record: rec, Score: score})
	}

	sortMatches(matches)

	offset := parseCursor(q.Cursor)
	limit := q.Limit
	if limit <= 0 {
		limit = 20
	}

	total := len(matches)
	if offset >= total {
		return SearchResults{Matches: nil, Total: total}
	}
	end := offset + limit
	if end > total {
		end = total
	}
	page := matches[offset:end]

	res := SearchResults{Matches: page, Total: total}
	if end < total {
		res.NextCursor = strconv.Itoa(end)
	}
	return res
}

func sortMatches(m []SearchMatch) {
	// insertion sort: result sets are small (gateway catalogs, not
	// search-engine corpora), and this keeps ties broken deterministically
	// by FQName without a second allocation for sort.Slice's closures.
	for i := 1; i < len(m); i++ {
		j := i
		for j > 0 && less(m[j], m[j-1]) {
			m[j], m[j-1] = m[j-1], m[j]
			j--
		}
	}
}

func less(a, b SearchMatch) bool {
	if a.Score != b.Score {
		return a.Score > b.Score
	}
	return a.Record.FQName < b.Record.FQName
}

func parseCursor(cursor string) int {
	if cursor == "" {
		return 0
	}
	n, err := strconv.Atoi(cursor)
	if err != nil || n < 0 {
		return 0
	}
	return n
}

// ExtractInputKeys returns the top-level property names of a record's
// input schema, used by schema() responses to summarize a callable's
// parameters without echoing the full JSON schema.
func ExtractInputKeys(rec *CallableRecord) []string {
	props, ok := rec.InputSchema["properties"].(map[string]any)
	if !ok {
		return nil
	}
	keys := make([]string, 0, len(props))
	for k := range props {
		keys = append(keys, k)
	}
	return keys
}
