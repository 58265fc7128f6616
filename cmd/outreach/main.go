// Command outreach serves the recruitment admin API, the public opt-out
// endpoint and the MCP tools over one SQLite catalog.
package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/hazyhaar/outreach/auth"
	"github.com/hazyhaar/outreach/dbopen"
	"github.com/hazyhaar/outreach/observability"
	"github.com/hazyhaar/outreach/outreach"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

const (
	serviceName = "outreach"
	version     = "1.0.0"
)

func main() {
	configPath := flag.String("config", os.Getenv("OUTREACH_CONFIG"), "optional YAML config file")
	mcpStdio := flag.Bool("mcp-stdio", false, "serve the MCP tools on stdin/stdout instead of HTTP")
	hashPassword := flag.Bool("hash-password", false, "read a password on stdin and print its bcrypt hash")
	flag.Parse()

	if *hashPassword {
		if err := printHash(); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		return
	}

	if err := run(*configPath, *mcpStdio); err != nil {
		slog.Error("outreach: fatal", "error", err)
		os.Exit(1)
	}
}

func run(configPath string, mcpStdio bool) error {
	cfg, err := loadServerConfig(configPath)
	if err != nil {
		return err
	}

	// Logs go to stderr when stdout carries MCP frames.
	out := os.Stdout
	if mcpStdio {
		out = os.Stderr
	}
	logger := observability.NewLogger(out, serviceName, cfg.LogLevel)
	slog.SetDefault(logger)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	shutdownTracing, err := observability.SetupTracing(ctx, serviceName, cfg.OTELEndpoint)
	if err != nil {
		return err
	}
	defer func() {
		sctx, scancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer scancel()
		if err := shutdownTracing(sctx); err != nil {
			logger.Warn("outreach: tracing shutdown", "error", err)
		}
	}()

	db, err := dbopen.Open(cfg.DBPath, dbopen.WithMkdirAll(), dbopen.WithMigration(outreach.ApplySchema))
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	defer db.Close()

	svc := outreach.New(db, &cfg.Config, outreach.WithLogger(logger))

	mcpSrv := mcp.NewServer(&mcp.Implementation{Name: serviceName, Version: version}, nil)
	svc.RegisterMCP(mcpSrv)

	if mcpStdio {
		logger.Info("outreach: serving MCP on stdio")
		return mcpSrv.Run(ctx, &mcp.StdioTransport{})
	}

	secret, err := cfg.jwtSecret()
	if err != nil {
		return err
	}
	if cfg.AdminPasswordHash == "" {
		logger.Warn("outreach: ADMIN_PASSWORD_HASH is empty, admin login is disabled")
	}

	srv := &server{
		svc:          svc,
		mcp:          mcpSrv,
		secret:       secret,
		passwordHash: cfg.AdminPasswordHash,
		logger:       logger,
	}
	httpSrv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           srv.routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("outreach: listening", "addr", httpSrv.Addr,
			"enabled", cfg.Enabled, "dry_run", cfg.DryRun == nil || *cfg.DryRun)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("outreach: shutting down")
	sctx, scancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer scancel()
	return httpSrv.Shutdown(sctx)
}

func printHash() error {
	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil && line == "" {
		return fmt.Errorf("read password: %w", err)
	}
	h, err := auth.HashPassword(strings.TrimRight(line, "\r\n"))
	if err != nil {
		return err
	}
	fmt.Println(h)
	return nil
}
