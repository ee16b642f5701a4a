package config

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/gatekit/gatekit/internal/catalog"
)

// Store is the write-through, best-effort persistence layer backing the
// three logical tables of §6 ("Persisted state"): callables,
// execution_history, server_state. On cold start the registry is rebuilt
// from upstreams and the skill store rather than from this store; it is
// never the source of truth. cmd/gatekitd opens and closes a Store, but no
// other component (runtime, policy engine, upstream manager) reads from or
// writes to it, so nothing is persisted during normal operation. Grounded on
// internal/memory/sqlite.go's modernc.org/sqlite usage, collapsed from
// its FTS5/embedding-cache schema to this system's three flat tables.
type Store struct {
	db *sql.DB
	mu sync.Mutex
}

// Open opens (or creates) the sqlite database at path and migrates its
// schema.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("persistence: open %s: %w", path, err)
	}
	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("persistence: migrate: %w", err)
	}
	return s, nil
}

func (s *Store) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS callables (
			id TEXT PRIMARY KEY,
			server_alias TEXT NOT NULL DEFAULT '',
			record_json TEXT NOT NULL,
			updated_at INTEGER NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS execution_history (
			id TEXT PRIMARY KEY,
			callable_id TEXT NOT NULL,
			started_at INTEGER NOT NULL,
			success INTEGER NOT NULL,
			record_json TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_execution_history_callable ON execution_history(callable_id)`,
		`CREATE TABLE IF NOT EXISTS server_state (
			alias TEXT PRIMARY KEY,
			record_json TEXT NOT NULL,
			updated_at INTEGER NOT NULL
		)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("exec %q: %w", stmt[:min(len(stmt), 60)], err)
		}
	}
	return nil
}

// PutCallable upserts one CallableRecord.
func (s *Store) PutCallable(rec *catalog.CallableRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("persistence: marshal callable: %w", err)
	}
	_, err = s.db.Exec(`INSERT OR REPLACE INTO callables (id, server_alias, record_json, updated_at) VALUES (?, ?, ?, ?)`,
		string(rec.ID), rec.ServerAlias, string(data), time.Now().Unix())
	return err
}

// DeleteCallablesByServer removes every callable previously persisted for
// alias.
func (s *Store) DeleteCallablesByServer(alias string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.Exec(`DELETE FROM callables WHERE server_alias = ?`, alias)
	return err
}

// LoadCallables returns every persisted CallableRecord, used only for
// warm-restart hinting (the registry itself still rebuilds from live
// upstreams and the skill store, per §6).
func (s *Store) LoadCallables() ([]*catalog.CallableRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.Query(`SELECT record_json FROM callables`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*catalog.CallableRecord
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			continue
		}
		var rec catalog.CallableRecord
		if err := json.Unmarshal([]byte(raw), &rec); err != nil {
			continue
		}
		out = append(out, &rec)
	}
	return out, nil
}

// AppendExecution records one completed exec() call.
func (s *Store) AppendExecution(rec catalog.ExecutionRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("persistence: marshal execution: %w", err)
	}
	_, err = s.db.Exec(`INSERT OR REPLACE INTO execution_history (id, callable_id, started_at, success, record_json) VALUES (?, ?, ?, ?, ?)`,
		rec.ID, string(rec.CallableID), rec.StartedAt.Unix(), boolToInt(rec.Success), string(data))
	return err
}

// CountExecutionsSince counts completed executions of callableID at or
// after since. The policy engine does not call it; max_calls_per_skill is
// not enforced against this count.
func (s *Store) CountExecutionsSince(callableID catalog.CallableId, since time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var count int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM execution_history WHERE callable_id = ? AND started_at >= ?`,
		string(callableID), since.Unix()).Scan(&count)
	return count, err
}

// PutServerState upserts one ServerInfo snapshot.
func (s *Store) PutServerState(info catalog.ServerInfo) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := json.Marshal(info)
	if err != nil {
		return fmt.Errorf("persistence: marshal server state: %w", err)
	}
	_, err = s.db.Exec(`INSERT OR REPLACE INTO server_state (alias, record_json, updated_at) VALUES (?, ?, ?)`,
		info.Alias, string(data), time.Now().Unix())
	return err
}

// Close closes the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
