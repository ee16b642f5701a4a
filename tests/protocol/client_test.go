package protocol

import (
	"encoding/json"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProtocol_Initialize(t *testing.T) {
	gatewayURL := os.Getenv("GATEKIT_URL")
	if gatewayURL == "" {
		t.Skip("GATEKIT_URL not set")
	}

	client := NewClient(gatewayURL, "")
	resp, err := client.Initialize()
	require.NoError(t, err)
	assert.Nil(t, resp.Error)

	var result map[string]interface{}
	err = json.Unmarshal(resp.Result, &result)
	require.NoError(t, err)
	assert.Equal(t, "2024-11-05", result["protocolVersion"])
}

func TestProtocol_ListTools(t *testing.T) {
	gatewayURL := os.Getenv("GATEKIT_URL")
	if gatewayURL == "" {
		t.Skip("GATEKIT_URL not set")
	}

	client := NewClient(gatewayURL, "")
	_, err := client.Initialize()
	require.NoError(t, err)

	resp, err := client.ListTools()
	require.NoError(t, err)
	assert.Nil(t, resp.Error)

	var result struct {
		Tools []struct {
			Name string `json:"name"`
		} `json:"tools"`
	}
	err = json.Unmarshal(resp.Result, &result)
	require.NoError(t, err)

	foundSearch := false
	for _, tool := range result.Tools {
		if tool.Name == "search" {
			foundSearch = true
			break
		}
	}
	assert.True(t, foundSearch, "search meta-tool not found")
}

func TestProtocol_CallSearch(t *testing.T) {
	gatewayURL := os.Getenv("GATEKIT_URL")
	if gatewayURL == "" {
		t.Skip("GATEKIT_URL not set")
	}

	client := NewClient(gatewayURL, "")
	_, err := client.Initialize()
	require.NoError(t, err)

	resp, err := client.CallTool("search", map[string]interface{}{
		"q": "echo",
	})
	require.NoError(t, err)
	assert.Nil(t, resp.Error)

	var result struct {
		Content []struct {
			Text string `json:"text"`
		} `json:"content"`
	}
	err = json.Unmarshal(resp.Result, &result)
	require.NoError(t, err)
	assert.NotEmpty(t, result.Content)
}
