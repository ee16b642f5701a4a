package gateway

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStdioServeRespondsToEachLine(t *testing.T) {
	gw, _ := newTestGateway(t, nil)

	reqA, _ := json.Marshal(Request{JSONRPC: "2.0", ID: "a", Method: "initialize"})
	reqB, _ := json.Marshal(Request{JSONRPC: "2.0", ID: "b", Method: "tools/list"})
	input := bytes.NewBufferString(string(reqA) + "\n" + string(reqB) + "\n")

	var output bytes.Buffer
	srv := &StdioServer{gw: gw, in: input, out: &output}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	err := srv.Serve(ctx)
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(output.String()), "\n")
	require.Len(t, lines, 2)

	seen := map[string]bool{}
	for _, line := range lines {
		var resp Response
		require.NoError(t, json.Unmarshal([]byte(line), &resp))
		seen[resp.ID.(string)] = true
	}
	assert.True(t, seen["a"])
	assert.True(t, seen["b"])
}

func TestStdioServeSkipsBareNotifications(t *testing.T) {
	gw, _ := newTestGateway(t, nil)

	notif, _ := json.Marshal(Request{JSONRPC: "2.0", Method: "notifications/initialized"})
	input := bytes.NewBufferString(string(notif) + "\n")

	var output bytes.Buffer
	srv := &StdioServer{gw: gw, in: input, out: &output}

	require.NoError(t, srv.Serve(context.Background()))
	assert.Empty(t, output.String())
}

func TestStdioServeReturnsParseErrorOnMalformedLine(t *testing.T) {
	gw, _ := newTestGateway(t, nil)
	input := bytes.NewBufferString("not json\n")

	var output bytes.Buffer
	srv := &StdioServer{gw: gw, in: input, out: &output}
	require.NoError(t, srv.Serve(context.Background()))

	reader := bufio.NewReader(&output)
	line, err := reader.ReadBytes('\n')
	require.NoError(t, err)

	var resp Response
	require.NoError(t, json.Unmarshal(line, &resp))
	require.NotNil(t, resp.Error)
	assert.Equal(t, ParseError, resp.Error.Code)
}
