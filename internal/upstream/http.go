package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"time"
)

// HTTPSession talks to an upstream MCP server over plain request/response
// HTTP instead of a subprocess. No teacher file implements this (the
// teacher is stdio/WASM-only); grounded on the stdlib net/http client
// idiom the teacher's own internal/cli/client/api.go uses against its
// control server, generalized into an outbound upstream client.
type HTTPSession struct {
	holder stateHolder

	alias   string
	baseURL string
	token   string
	client  *http.Client
}

// NewHTTPSession builds a session for cfg but does not probe connectivity.
func NewHTTPSession(cfg Config) (*HTTPSession, error) {
	token := cfg.Auth.Token
	if cfg.Auth.Env != "" {
		token = os.Getenv(cfg.Auth.Env)
	}
	s := &HTTPSession{
		alias:   cfg.Alias,
		baseURL: cfg.BaseURL,
		token:   token,
		client:  &http.Client{Timeout: 30 * time.Second},
	}
	s.holder.set(StateDisconnected)
	return s, nil
}

// State returns the session's current connection state.
func (s *HTTPSession) State() State { return s.holder.get() }

// Connect probes the upstream with a tools/list call; HTTP upstreams
// have no persistent handshake, so "connected" just means the last probe
// succeeded.
func (s *HTTPSession) Connect(ctx context.Context) error {
	s.holder.set(StateConnecting)
	if _, err := s.ListTools(ctx); err != nil {
		s.holder.set(StateFailed)
		return fmt.Errorf("upstream %s: probe failed: %w", s.alias, err)
	}
	s.holder.set(StateConnected)
	return nil
}

// ListTools POSTs to <base>/mcp/tools/list.
func (s *HTTPSession) ListTools(ctx context.Context) (json.RawMessage, error) {
	return s.post(ctx, "/mcp/tools/list", map[string]interface{}{})
}

// CallTool POSTs to <base>/mcp/tools/call.
func (s *HTTPSession) CallTool(ctx context.Context, name string, arguments map[string]interface{}) (json.RawMessage, error) {
	body := map[string]interface{}{
		"name":      name,
		"arguments": arguments,
	}
	result, err := s.post(ctx, "/mcp/tools/call", body)
	if err != nil {
		s.holder.set(StateDegraded)
		return nil, err
	}
	return result, nil
}

func (s *HTTPSession) post(ctx context.Context, path string, body interface{}) (json.RawMessage, error) {
	data, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+path, bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if s.token != "" {
		req.Header.Set("Authorization", "Bearer "+s.token)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("upstream %s: %w", s.alias, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("upstream %s: unexpected status %d", s.alias, resp.StatusCode)
	}

	var raw json.RawMessage
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, fmt.Errorf("upstream %s: decode response: %w", s.alias, err)
	}
	return raw, nil
}

// Disconnect is a no-op for HTTP sessions: there is no persistent
// connection to tear down, only the state flag to reset.
func (s *HTTPSession) Disconnect() error {
	s.holder.set(StateDisconnected)
	return nil
}
