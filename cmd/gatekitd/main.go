// Command gatekitd is the daemon: boots the registry, upstream manager,
// skill store, policy engine, and gateway, then serves either an MCP HTTP
// listener (/mcp, /health, /, /status) or, when run with --stdio, a
// framed-stdio gateway mode (with no HTTP listener) for embedding in a
// host agent's subprocess model. Grounded on the teacher's cmd/scooter dual-listener run() and its
// signal-driven graceful shutdown.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gatekit/gatekit/internal/bootstrap"
	"github.com/gatekit/gatekit/internal/config"
	"github.com/gatekit/gatekit/internal/gateway"
	"github.com/gatekit/gatekit/internal/logger"
	"github.com/gatekit/gatekit/internal/sandbox"
)

func main() {
	sandbox.RunRlimitShim()

	stdioMode := flag.Bool("stdio", false, "serve the gateway over framed-stdio instead of HTTP")
	addr := flag.String("addr", ":8420", "HTTP listen address (ignored with --stdio)")
	apiKey := flag.String("api-key", os.Getenv("GATEKIT_API_KEY"), "require this bearer token on HTTP requests")
	flag.Parse()

	if err := run(*stdioMode, *addr, *apiKey); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(stdioMode bool, addr, apiKey string) error {
	paths, err := config.ResolvePaths()
	if err != nil {
		return fmt.Errorf("resolve paths: %w", err)
	}

	if err := logger.Init(paths.LogsDir); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to initialize persistent logging: %v\n", err)
	}
	defer logger.Close()

	cfg, err := config.Load(paths.ConfigDir)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	store, err := config.Open(paths.DatabasePath)
	if err != nil {
		return fmt.Errorf("open persistence store: %w", err)
	}
	defer store.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sys, err := bootstrap.Build(ctx, paths, cfg)
	if err != nil {
		return fmt.Errorf("bootstrap: %w", err)
	}

	logger.AddLog("INFO", "=== gatekitd starting ===")
	logger.AddLog("INFO", fmt.Sprintf("data dir: %s", paths.DataDir))

	if stdioMode {
		logger.AddLog("INFO", "serving gateway over framed-stdio")
		return gateway.NewStdioServer(sys.Gateway).Serve(ctx)
	}

	httpServer := gateway.NewHTTPServer(sys.Gateway, apiKey)
	server := &http.Server{Addr: addr, Handler: httpServer}

	go sys.Upstreams.WatchHealth(ctx, 30*time.Second)

	go func() {
		logger.AddLog("INFO", fmt.Sprintf("MCP gateway listening on %s", addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Log("ERROR", "gatekitd", fmt.Sprintf("HTTP server failed: %v", err))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	logger.AddLog("INFO", "shutting down gracefully")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	err = server.Shutdown(shutdownCtx)
	for _, info := range sys.Upstreams.ListServers() {
		sys.Upstreams.Disconnect(info.Alias)
	}
	return err
}
