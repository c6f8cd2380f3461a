// Package calendar_tools provides MCP tools for calendar operations
// across all configured accounts.
//
// Listing tools fan out over the enabled accounts unless an explicit
// account argument narrows them; accounts without a cached credential
// contribute empty results instead of failing the whole call. Event
// mutations (create, update, delete) target exactly one account and are
// only registered when the server runs with mutations enabled.
package calendar_tools
