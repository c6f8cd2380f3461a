// Package server provides the MCP server context, the HTTP transport,
// health endpoints, and the dedicated metrics server for mailhub.
//
// ServerContext carries the account registry and the provider service
// factory into tool handlers, plus the lifecycle context used for
// graceful shutdown.
//
// HTTPServer wraps the streamable HTTP transport with health endpoints
// and graceful shutdown.
//
// HealthChecker serves /healthz and /readyz for Kubernetes probes, and
// MetricsServer exposes Prometheus metrics on a port separate from
// application traffic.
package server
