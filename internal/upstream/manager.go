package upstream

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/gatekit/gatekit/internal/catalog"
	"github.com/gatekit/gatekit/internal/logger"
)

// session is the minimal surface Manager needs from either transport, so
// it can treat StdioSession and HTTPSession identically once connected.
type session interface {
	State() State
	Connect(ctx context.Context) error
	ListTools(ctx context.Context) (json.RawMessage, error)
	CallTool(ctx context.Context, name string, arguments map[string]interface{}) (json.RawMessage, error)
	Disconnect() error
}

// wireTool mirrors the subset of an MCP tools/list entry the manager
// needs to build a catalog.CallableRecord; upstream servers may send
// additional fields the gateway does not care about.
type wireTool struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	InputSchema map[string]any `json:"inputSchema"`
	Annotations struct {
		Title    string `json:"title"`
		RiskTier string `json:"riskTier"`
	} `json:"annotations"`
}

type wireToolList struct {
	Tools []wireTool `json:"tools"`
}

type wireCallResult struct {
	Content           []catalog.ContentBlock `json:"content"`
	StructuredContent interface{}             `json:"structuredContent"`
	IsError           bool                    `json:"isError"`
}

// Manager owns every configured upstream session and keeps the shared
// catalog.Registry in sync with them. Generalizes the teacher's
// discovery.DiscoveryEngine (which drove exactly one stdio subprocess)
// to N concurrently-managed sessions of either transport.
type Manager struct {
	registry *catalog.Registry

	clientName    string
	clientVersion string

	mu       sync.RWMutex
	sessions map[string]session
	configs  map[string]Config
}

// NewManager builds a Manager bound to registry. clientName/clientVersion
// are sent as clientInfo in every stdio initialize handshake.
func NewManager(registry *catalog.Registry, clientName, clientVersion string) *Manager {
	return &Manager{
		registry:      registry,
		clientName:    clientName,
		clientVersion: clientVersion,
		sessions:      make(map[string]session),
		configs:       make(map[string]Config),
	}
}

// AddServer registers cfg, connects it, and performs an initial tool
// refresh. The server's ServerInfo is recorded even on connect failure so
// it still shows up (as down) in manage()'s server listing.
func (m *Manager) AddServer(ctx context.Context, cfg Config) error {
	m.registry.UpsertServer(&catalog.ServerInfo{
		Alias: cfg.Alias,
		Tags:  cfg.Tags,
	})

	var sess session
	switch NormalizeTransport(cfg.Transport) {
	case TransportHTTP:
		hs, err := NewHTTPSession(cfg)
		if err != nil {
			return fmt.Errorf("upstream %s: %w", cfg.Alias, err)
		}
		sess = hs
	default:
		sess = NewStdioSession(cfg, m.clientName, m.clientVersion)
	}

	m.mu.Lock()
	m.sessions[cfg.Alias] = sess
	m.configs[cfg.Alias] = cfg
	m.mu.Unlock()

	if err := sess.Connect(ctx); err != nil {
		m.registry.MarkServerDown(cfg.Alias)
		logger.Log("ERROR", "upstream", fmt.Sprintf("server %s: connect failed: %v", cfg.Alias, err))
		return err
	}

	return m.RefreshTools(ctx, cfg.Alias)
}

// listToolsWithRetry calls sess.ListTools up to 3 times with a 500ms delay
// between attempts before giving up, since some upstream servers need a
// moment after Connect before tools/list succeeds.
func listToolsWithRetry(ctx context.Context, sess session, alias string) (json.RawMessage, error) {
	var lastErr error
	for attempt := 0; attempt < 3; attempt++ {
		raw, err := sess.ListTools(ctx)
		if err == nil {
			return raw, nil
		}
		lastErr = err
		if attempt < 2 {
			logger.Log("INFO", "upstream", fmt.Sprintf("server %s: tools/list failed, retrying in 500ms... (%v)", alias, lastErr))
			select {
			case <-time.After(500 * time.Millisecond):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}
	}
	return nil, lastErr
}

// RefreshTools calls tools/list on alias and atomically replaces its
// callables in the registry.
func (m *Manager) RefreshTools(ctx context.Context, alias string) error {
	m.mu.RLock()
	sess, ok := m.sessions[alias]
	m.mu.RUnlock()
	if !ok {
		return fmt.Errorf("upstream %s: not configured", alias)
	}

	raw, err := listToolsWithRetry(ctx, sess, alias)
	if err != nil {
		m.registry.MarkServerDegraded(alias)
		return fmt.Errorf("upstream %s: list tools: %w", alias, err)
	}

	var list wireToolList
	if err := json.Unmarshal(raw, &list); err != nil {
		m.registry.MarkServerDegraded(alias)
		return fmt.Errorf("upstream %s: malformed tools/list result: %w", alias, err)
	}

	recs := make([]*catalog.CallableRecord, 0, len(list.Tools))
	for _, t := range list.Tools {
		schemaJSON, err := json.Marshal(t.InputSchema)
		if err != nil {
			continue
		}
		digest, err := catalog.DigestSchema(schemaJSON)
		if err != nil {
			continue
		}

		risk := catalog.ParseRiskTier(t.Annotations.RiskTier)
		recs = append(recs, &catalog.CallableRecord{
			ID:               catalog.NewToolId(alias, t.Name, digest),
			Kind:             catalog.KindTool,
			FQName:           catalog.FQName(catalog.KindTool, alias, t.Name),
			Name:             t.Name,
			Title:            t.Annotations.Title,
			Description:      t.Description,
			InputSchema:      t.InputSchema,
			SchemaDigest:     digest,
			ServerAlias:      alias,
			UpstreamToolName: t.Name,
			RiskTier:         risk,
		})
	}

	m.registry.RegisterBatch(alias, recs)
	m.registry.MarkServerConnected(alias, len(recs))
	return nil
}

// CallTool dispatches to the named tool on alias and normalizes the
// upstream's raw tools/call result into a catalog.ToolResult.
func (m *Manager) CallTool(ctx context.Context, alias, name string, arguments map[string]interface{}) (*catalog.ToolResult, error) {
	m.mu.RLock()
	sess, ok := m.sessions[alias]
	m.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("upstream %s: not configured", alias)
	}

	raw, err := sess.CallTool(ctx, name, arguments)
	if err != nil {
		if sess.State() == StateDegraded || sess.State() == StateFailed {
			m.registry.MarkServerDegraded(alias)
		}
		return nil, err
	}

	var wire wireCallResult
	if err := json.Unmarshal(raw, &wire); err != nil {
		return nil, fmt.Errorf("upstream %s: malformed tools/call result: %w", alias, err)
	}

	return &catalog.ToolResult{
		Content:           wire.Content,
		StructuredContent: wire.StructuredContent,
		IsError:           wire.IsError,
	}, nil
}

// ListServers returns every configured server's current state.
func (m *Manager) ListServers() []*catalog.ServerInfo {
	return m.registry.Servers()
}

// GetState reports alias's live session state (distinct from its last
// recorded catalog.Health, which only updates after a refresh attempt).
func (m *Manager) GetState(alias string) (State, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	sess, ok := m.sessions[alias]
	if !ok {
		return "", false
	}
	return sess.State(), true
}

// Disconnect tears down alias's session without forgetting its config, so
// Reconnect can bring it back without the caller re-supplying Config.
func (m *Manager) Disconnect(alias string) error {
	m.mu.RLock()
	sess, ok := m.sessions[alias]
	m.mu.RUnlock()
	if !ok {
		return fmt.Errorf("upstream %s: not configured", alias)
	}
	m.registry.MarkServerDown(alias)
	return sess.Disconnect()
}

// Reconnect re-runs AddServer's connect+refresh sequence using the
// previously recorded Config for alias.
func (m *Manager) Reconnect(ctx context.Context, alias string) error {
	m.mu.RLock()
	cfg, ok := m.configs[alias]
	m.mu.RUnlock()
	if !ok {
		return fmt.Errorf("upstream %s: not configured", alias)
	}
	return m.AddServer(ctx, cfg)
}

// RemoveServer disconnects alias and forgets it entirely, including its
// registered callables.
func (m *Manager) RemoveServer(alias string) {
	m.mu.Lock()
	sess, ok := m.sessions[alias]
	delete(m.sessions, alias)
	delete(m.configs, alias)
	m.mu.Unlock()

	if ok {
		sess.Disconnect()
	}
	m.registry.RemoveServer(alias)
}

// WatchHealth periodically re-lists tools for every connected server,
// demoting ones whose session has silently failed. Grounded on the
// teacher's discovery engine's background health-poll goroutine.
func (m *Manager) WatchHealth(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.mu.RLock()
			aliases := make([]string, 0, len(m.sessions))
			for alias := range m.sessions {
				aliases = append(aliases, alias)
			}
			m.mu.RUnlock()

			for _, alias := range aliases {
				if err := m.RefreshTools(ctx, alias); err != nil {
					logger.Log("WARN", "upstream", fmt.Sprintf("health check for %s failed: %v", alias, err))
				}
			}
		}
	}
}
