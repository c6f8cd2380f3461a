// Package cmd implements the command-line interface for mailhub.
//
// This package provides the following commands:
//   - serve: Start the MCP server exposing mail, calendar, and account tools
//   - auth: Enroll accounts interactively and inspect credential state
//   - accounts: List the configured accounts
//   - version: Display version information
//   - generate-docs: Generate markdown documentation for all MCP tools
package cmd
