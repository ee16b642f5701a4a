package gateway

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/gatekit/gatekit/internal/logger"
)

// StdioServer serves the gateway's four-tool facade over framed-stdio:
// one JSON-RPC object per line in on stdin, one JSON-RPC object per line
// out on stdout — gatekit acting as an MCP server over its own process
// stdio, rather than dialing one as internal/upstream/stdio.go does.
// Shares that file's single-writer discipline (concurrent tool calls must
// not interleave their response bytes on stdout) but has no pending-call
// map: a host agent's stdio transport is itself single-threaded request
// per line, so responses are written as each request completes.
type StdioServer struct {
	gw  *Gateway
	in  io.Reader
	out io.Writer

	writeMu sync.Mutex
}

// NewStdioServer builds a StdioServer reading from stdin and writing to
// stdout.
func NewStdioServer(gw *Gateway) *StdioServer {
	return &StdioServer{gw: gw, in: os.Stdin, out: os.Stdout}
}

// Serve reads newline-delimited JSON-RPC requests from stdin until EOF or
// ctx is cancelled, dispatching each one in its own goroutine so a slow
// exec() does not block unrelated requests queued behind it on the line
// reader.
func (s *StdioServer) Serve(ctx context.Context) error {
	reader := bufio.NewReader(s.in)
	var wg sync.WaitGroup
	defer wg.Wait()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		line, err := reader.ReadBytes('\n')
		if len(line) > 0 {
			s.handleLine(ctx, &wg, line)
		}
		if err != nil {
			if err == io.EOF {
				return nil
			}
			return fmt.Errorf("gateway: stdio read: %w", err)
		}
	}
}

func (s *StdioServer) handleLine(ctx context.Context, wg *sync.WaitGroup, line []byte) {
	line = []byte(strings.TrimSpace(string(line)))
	if len(line) == 0 {
		return
	}

	var req Request
	if err := json.Unmarshal(line, &req); err != nil {
		s.writeResponse(Response{JSONRPC: "2.0", Error: &Error{Code: ParseError, Message: "invalid JSON-RPC request"}})
		return
	}

	if req.ID == nil && strings.HasPrefix(req.Method, "notifications/") {
		return
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		resp := dispatchRequest(ctx, s.gw, req)
		s.writeResponse(resp)
	}()
}

// writeResponse serializes resp and writes it as one newline-terminated
// frame, holding writeMu so concurrent dispatch goroutines never
// interleave their bytes on stdout.
func (s *StdioServer) writeResponse(resp Response) {
	data, err := json.Marshal(resp)
	if err != nil {
		logger.Log("ERROR", "gateway", fmt.Sprintf("marshal response: %v", err))
		return
	}
	data = append(data, '\n')

	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if _, err := s.out.Write(data); err != nil {
		logger.Log("ERROR", "gateway", fmt.Sprintf("write response: %v", err))
	}
}
