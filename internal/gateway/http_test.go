package gateway

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHandleMessageInitialize(t *testing.T) {
	gw, _ := newTestGateway(t, nil)
	srv := NewHTTPServer(gw, "")

	body, _ := json.Marshal(Request{JSONRPC: "2.0", ID: "1", Method: "initialize"})
	req := httptest.NewRequest(http.MethodPost, "/mcp", bytes.NewReader(body))
	rec := httptest.NewRecorder()

	srv.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	var resp Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Nil(t, resp.Error)
	result, ok := resp.Result.(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, protocolVersion, result["protocolVersion"])
}

func TestHandleMessageToolsListIncludesFourFacadeTools(t *testing.T) {
	gw, _ := newTestGateway(t, nil)
	srv := NewHTTPServer(gw, "")

	body, _ := json.Marshal(Request{JSONRPC: "2.0", ID: "2", Method: "tools/list"})
	req := httptest.NewRequest(http.MethodPost, "/mcp", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	var resp Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	result := resp.Result.(map[string]interface{})
	tools := result["tools"].([]interface{})
	assert.Len(t, tools, 4)
}

func TestServeHTTPRejectsMissingAPIKey(t *testing.T) {
	gw, _ := newTestGateway(t, nil)
	srv := NewHTTPServer(gw, "secret")

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestServeHTTPHealthBypassesAuth(t *testing.T) {
	gw, _ := newTestGateway(t, nil)
	srv := NewHTTPServer(gw, "secret")

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestServeHTTPAcceptsBearerToken(t *testing.T) {
	gw, _ := newTestGateway(t, nil)
	srv := NewHTTPServer(gw, "secret")

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer secret")
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}
