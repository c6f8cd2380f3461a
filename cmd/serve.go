package cmd

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	mcpserver "github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"

	"github.com/teemow/mailhub/internal/accounts"
	"github.com/teemow/mailhub/internal/auth/google"
	"github.com/teemow/mailhub/internal/auth/microsoft"
	"github.com/teemow/mailhub/internal/config"
	"github.com/teemow/mailhub/internal/instrumentation"
	"github.com/teemow/mailhub/internal/provider"
	"github.com/teemow/mailhub/internal/resources"
	"github.com/teemow/mailhub/internal/server"
	"github.com/teemow/mailhub/internal/tools/account_tools"
	"github.com/teemow/mailhub/internal/tools/calendar_tools"
	"github.com/teemow/mailhub/internal/tools/mail_tools"
)

func newServeCmd() *cobra.Command {
	var (
		debugMode        bool
		transport        string
		httpAddr         string
		yolo             bool
		disableStreaming bool
		metricsEnabled   bool
		metricsAddr      string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the mailhub MCP server",
		Long: `Start the MCP server exposing mail, calendar, and account tools for
every account configured in the mailhub config file.

The server starts in read-only mode: tools that send email or modify
calendar events are not registered unless --yolo is set. Accounts whose
cached credential is missing or expired degrade gracefully; enroll them
with 'mailhub auth login'.

Transports:
  stdio            For MCP clients that spawn the server as a child process
  streamable-http  HTTP transport on --http-addr with /mcp and health endpoints`,
		RunE: func(cmd *cobra.Command, args []string) error {
			configPath, _ := cmd.Flags().GetString("config")
			return runServe(serveOptions{
				transport:        transport,
				debug:            debugMode,
				httpAddr:         httpAddr,
				yolo:             yolo,
				disableStreaming: disableStreaming,
				metricsEnabled:   metricsEnabled,
				metricsAddr:      metricsAddr,
				configPath:       configPath,
			})
		},
	}

	cmd.Flags().BoolVar(&debugMode, "debug", false, "Enable debug logging")
	cmd.Flags().StringVar(&transport, "transport", "stdio", "Transport type: stdio or streamable-http")
	cmd.Flags().StringVar(&httpAddr, "http-addr", ":8080", "HTTP server address (for streamable-http transport)")
	cmd.Flags().BoolVar(&yolo, "yolo", false, "Enable write operations (email sending, event changes). Default is read-only mode.")
	cmd.Flags().BoolVar(&disableStreaming, "disable-streaming", false, "Disable streaming for HTTP transport (for compatibility with certain clients)")
	cmd.Flags().BoolVar(&metricsEnabled, "metrics-enabled", true, "Enable the metrics server on a dedicated port. Can also use METRICS_ENABLED env var.")
	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", ":9090", "Metrics server address. Can also use METRICS_ADDR env var.")

	return cmd
}

type serveOptions struct {
	transport        string
	debug            bool
	httpAddr         string
	yolo             bool
	disableStreaming bool
	metricsEnabled   bool
	metricsAddr      string
	configPath       string
}

func runServe(opts serveOptions) error {
	// Setup graceful shutdown
	shutdownCtx, cancel := signal.NotifyContext(context.Background(),
		os.Interrupt, syscall.SIGTERM)
	defer cancel()

	// Load metrics config from environment if not set via flags
	if !opts.metricsEnabled && os.Getenv("METRICS_ENABLED") == "true" {
		opts.metricsEnabled = true
	}
	if opts.metricsAddr == "" || opts.metricsAddr == ":9090" {
		if addr := os.Getenv("METRICS_ADDR"); addr != "" {
			opts.metricsAddr = addr
		}
	}

	// On stdio transport stdout carries the protocol, so logs go to stderr.
	logLevel := slog.LevelInfo
	if opts.debug {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel}))

	registry, err := config.LoadRegistry(opts.configPath)
	if err != nil {
		return fmt.Errorf("failed to load account configuration: %w", err)
	}
	if registry.Len() == 0 && opts.transport != "stdio" {
		log.Println("Warning: no accounts configured; all tools will return empty results")
	}

	msService, err := microsoft.NewService(microsoft.WithLogger(logger))
	if err != nil {
		return fmt.Errorf("failed to create Microsoft auth service: %w", err)
	}
	gService, err := google.NewService(google.WithLogger(logger))
	if err != nil {
		return fmt.Errorf("failed to create Google auth service: %w", err)
	}

	factory := provider.NewFactory(registry, msService, gService, provider.WithLogger(logger))

	// Initialize instrumentation provider
	instrConfig := instrumentation.DefaultConfig()
	instrConfig.ServiceVersion = version

	instrProvider, err := instrumentation.NewProvider(shutdownCtx, instrConfig)
	if err != nil {
		return fmt.Errorf("failed to create instrumentation provider: %w", err)
	}
	defer func() {
		if err := instrProvider.Shutdown(shutdownCtx); err != nil {
			if opts.transport != "stdio" {
				log.Printf("Error during instrumentation shutdown: %v", err)
			}
		}
	}()

	// Start metrics server if enabled and not in stdio mode
	var metricsServer *server.MetricsServer
	if opts.transport != "stdio" && opts.metricsEnabled && instrProvider.Enabled() {
		metricsServer, err = server.NewMetricsServer(server.MetricsServerConfig{
			Addr:                    opts.metricsAddr,
			Enabled:                 true,
			InstrumentationProvider: instrProvider,
		})
		if err != nil {
			return fmt.Errorf("failed to create metrics server: %w", err)
		}
		go func() {
			if err := metricsServer.Start(); err != nil && err != http.ErrServerClosed {
				log.Printf("Metrics server stopped with error: %v", err)
			}
		}()
		log.Printf("Metrics server listening on %s", metricsServer.Addr())
	}

	serverContext := server.NewServerContext(shutdownCtx, registry, factory, logger)
	defer func() {
		if metricsServer != nil {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := metricsServer.Shutdown(shutdownCtx); err != nil {
				log.Printf("Error during metrics server shutdown: %v", err)
			}
		}
		if err := serverContext.Shutdown(); err != nil {
			if opts.transport != "stdio" {
				log.Printf("Error during server context shutdown: %v", err)
			}
		}
	}()

	// Set metrics and audit logger on server context for tool instrumentation
	if instrProvider.Enabled() {
		serverContext.SetMetrics(instrProvider.Metrics())
		serverContext.SetAuditLogger(instrumentation.NewAuditLoggerWithConfig(nil, instrConfig.AuditLogging))
	}

	// Non-interactive credential probe used by the accounts_auth_status tool.
	serverContext.SetCredentialChecker(newCredentialChecker(msService, gService))

	mcpSrv := mcpserver.NewMCPServer("mailhub", version,
		mcpserver.WithToolCapabilities(true),
		mcpserver.WithResourceCapabilities(false, false), // Subscribe and listChanged
	)

	// readOnly is the inverse of yolo
	readOnly := !opts.yolo

	// Log the mode for visibility (only for non-stdio transports)
	if opts.transport != "stdio" {
		if readOnly {
			log.Println("Starting server in READ-ONLY mode (use --yolo to enable write operations)")
		} else {
			log.Println("Starting server with WRITE operations enabled (--yolo flag is set)")
		}
	}

	if err := registerAllTools(mcpSrv, serverContext, readOnly); err != nil {
		return err
	}

	switch opts.transport {
	case "stdio":
		return runStdioServer(mcpSrv)
	case "streamable-http":
		return runStreamableHTTPServer(shutdownCtx, mcpSrv, serverContext, opts)
	default:
		return fmt.Errorf("unsupported transport type: %s (supported: stdio, streamable-http)", opts.transport)
	}
}

// newCredentialChecker probes the on-disk credential caches without ever
// triggering an interactive flow.
func newCredentialChecker(msService *microsoft.Service, gService *google.Service) server.CredentialChecker {
	return func(ctx context.Context, account *accounts.AccountInfo) bool {
		scopes := provider.ScopesFor(account)
		switch {
		case account.Provider.IsMicrosoft():
			tenantID, ok := account.Config("tenantId")
			if !ok {
				return false
			}
			clientID, ok := account.Config("clientId")
			if !ok {
				return false
			}
			_, err := msService.GetTokenSilently(ctx, tenantID, clientID, scopes, account.ID)
			return err == nil
		case account.Provider == accounts.ProviderGoogle:
			clientID, ok := account.Config("clientId")
			if !ok {
				return false
			}
			clientSecret, _ := account.Config("clientSecret")
			return gService.HasValidCredential(ctx, clientID, clientSecret, scopes, account.ID)
		default:
			return false
		}
	}
}

func runStdioServer(mcpSrv *mcpserver.MCPServer) error {
	serverDone := make(chan error, 1)
	go func() {
		defer close(serverDone)
		if err := mcpserver.ServeStdio(mcpSrv); err != nil {
			serverDone <- err
		}
	}()

	err := <-serverDone
	if err != nil {
		return fmt.Errorf("server stopped with error: %w", err)
	}
	return nil
}

// registerAllTools registers all MCP tools and resources
func registerAllTools(mcpSrv *mcpserver.MCPServer, ctx *server.ServerContext, readOnly bool) error {
	type toolRegistration struct {
		name     string
		register func() error
	}

	registrations := []toolRegistration{
		{
			name: "Mail",
			register: func() error {
				return mail_tools.RegisterMailTools(mcpSrv, ctx, readOnly)
			},
		},
		{
			name: "Calendar",
			register: func() error {
				return calendar_tools.RegisterCalendarTools(mcpSrv, ctx, readOnly)
			},
		},
		{
			name: "Accounts",
			register: func() error {
				return account_tools.RegisterAccountTools(mcpSrv, ctx)
			},
		},
		{
			name: "Account Resources",
			register: func() error {
				return resources.RegisterAccountResources(mcpSrv, ctx)
			},
		},
	}

	for _, reg := range registrations {
		if err := reg.register(); err != nil {
			return fmt.Errorf("failed to register %s: %w", reg.name, err)
		}
	}

	return nil
}

func runStreamableHTTPServer(ctx context.Context, mcpSrv *mcpserver.MCPServer, serverContext *server.ServerContext, opts serveOptions) error {
	httpServer := server.NewHTTPServer(mcpSrv, opts.disableStreaming)
	httpServer.SetHealthChecker(server.NewHealthChecker(serverContext))

	fmt.Printf("Streamable HTTP server starting on %s\n", opts.httpAddr)
	fmt.Printf("  HTTP endpoint: /mcp\n")
	fmt.Printf("  Health endpoints: /healthz, /readyz\n")
	if opts.metricsEnabled {
		fmt.Printf("  Metrics endpoint: %s/metrics\n", opts.metricsAddr)
	}

	serverDone := make(chan error, 1)
	go func() {
		defer close(serverDone)
		if err := httpServer.Start(opts.httpAddr); err != nil && err != http.ErrServerClosed {
			serverDone <- err
		}
	}()

	select {
	case <-ctx.Done():
		fmt.Println("Shutdown signal received, stopping HTTP server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("error shutting down HTTP server: %w", err)
		}
	case err := <-serverDone:
		if err != nil {
			return fmt.Errorf("HTTP server stopped with error: %w", err)
		}
		fmt.Println("HTTP server stopped normally")
	}

	fmt.Println("HTTP server gracefully stopped")
	return nil
}
