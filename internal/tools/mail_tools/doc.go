// Package mail_tools provides MCP tools for reading and sending email
// across all configured accounts.
//
// Read tools (mail_list_emails, mail_search_emails, mail_get_email) fan
// out over the enabled accounts unless an explicit account argument
// narrows them; accounts without a cached credential contribute empty
// results instead of failing the whole call. The mail_send_email tool
// targets exactly one account and is only registered when the server
// runs with mutations enabled.
package mail_tools
