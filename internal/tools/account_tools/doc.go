// Package account_tools provides MCP tools for inspecting the
// configured accounts and their credential state.
//
// The tools are read-only. Credential state is probed without user
// interaction; accounts needing enrollment are reported together with
// the CLI command that performs it.
package account_tools
