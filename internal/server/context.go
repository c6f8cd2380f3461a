package server

import (
	"context"
	"log/slog"
	"sync"

	"github.com/teemow/mailhub/internal/accounts"
	"github.com/teemow/mailhub/internal/instrumentation"
	"github.com/teemow/mailhub/internal/provider"
)

// CredentialChecker reports whether a cached credential can be used for
// the account without user interaction. It never prompts.
type CredentialChecker func(ctx context.Context, account *accounts.AccountInfo) bool

// ServerContext holds the shared state of the MCP server: the account
// registry, the provider service factory, and the lifecycle context the
// tool handlers run under.
type ServerContext struct {
	ctx      context.Context
	cancel   context.CancelFunc
	registry *accounts.Registry
	factory  *provider.Factory
	logger   *slog.Logger

	metrics     *instrumentation.Metrics
	auditLogger *instrumentation.AuditLogger
	credCheck   CredentialChecker

	mu       sync.RWMutex
	shutdown bool
}

// NewServerContext creates a new server context around the registry and
// factory. The logger may be nil, in which case slog.Default is used.
func NewServerContext(ctx context.Context, registry *accounts.Registry, factory *provider.Factory, logger *slog.Logger) *ServerContext {
	shutdownCtx, cancel := context.WithCancel(ctx)
	if logger == nil {
		logger = slog.Default()
	}

	return &ServerContext{
		ctx:      shutdownCtx,
		cancel:   cancel,
		registry: registry,
		factory:  factory,
		logger:   logger,
	}
}

// Context returns the server lifecycle context.
func (sc *ServerContext) Context() context.Context {
	return sc.ctx
}

// Registry returns the account registry.
func (sc *ServerContext) Registry() *accounts.Registry {
	return sc.registry
}

// Logger returns the server logger.
func (sc *ServerContext) Logger() *slog.Logger {
	return sc.logger
}

// Resolve returns the provider service for an account id. It fails with
// provider.ErrAccountNotFound or provider.ErrUnsupportedProvider.
func (sc *ServerContext) Resolve(accountID string) (provider.Service, error) {
	return sc.factory.Resolve(accountID)
}

// SetMetrics attaches the metrics recorder used by instrumented tool
// handlers. Nil is valid and disables metric recording.
func (sc *ServerContext) SetMetrics(m *instrumentation.Metrics) {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	sc.metrics = m
}

// Metrics returns the metrics recorder, or nil when instrumentation is
// not configured.
func (sc *ServerContext) Metrics() *instrumentation.Metrics {
	sc.mu.RLock()
	defer sc.mu.RUnlock()
	return sc.metrics
}

// SetAuditLogger attaches the audit logger for tool invocations.
func (sc *ServerContext) SetAuditLogger(a *instrumentation.AuditLogger) {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	sc.auditLogger = a
}

// AuditLogger returns the audit logger, or nil when auditing is
// disabled.
func (sc *ServerContext) AuditLogger() *instrumentation.AuditLogger {
	sc.mu.RLock()
	defer sc.mu.RUnlock()
	return sc.auditLogger
}

// SetCredentialChecker attaches the credential probe used by account
// status tools. Nil means status is reported as unknown.
func (sc *ServerContext) SetCredentialChecker(check CredentialChecker) {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	sc.credCheck = check
}

// CredentialChecker returns the credential probe, or nil when none is
// configured.
func (sc *ServerContext) CredentialChecker() CredentialChecker {
	sc.mu.RLock()
	defer sc.mu.RUnlock()
	return sc.credCheck
}

// IsShutdown returns whether the server has been shut down.
func (sc *ServerContext) IsShutdown() bool {
	sc.mu.RLock()
	defer sc.mu.RUnlock()
	return sc.shutdown
}

// Shutdown cancels the lifecycle context. It is idempotent.
func (sc *ServerContext) Shutdown() error {
	sc.mu.Lock()
	defer sc.mu.Unlock()

	if sc.shutdown {
		return nil
	}

	sc.shutdown = true
	sc.cancel()
	return nil
}
