// Package resources provides MCP resources exposing server
// configuration data. Resources are read-only data sources that MCP
// clients can fetch, such as the list of configured accounts.
package resources
