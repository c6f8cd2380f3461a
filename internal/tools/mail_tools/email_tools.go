package mail_tools

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/teemow/mailhub/internal/logging"
	"github.com/teemow/mailhub/internal/provider"
	"github.com/teemow/mailhub/internal/server"
	"github.com/teemow/mailhub/internal/tools/common"
)

const defaultMaxResults = 25

// RegisterEmailTools registers the email tools with the MCP server.
func RegisterEmailTools(s *mcpserver.MCPServer, sc *server.ServerContext, readOnly bool) error {
	// List emails tool (read-only, always available)
	listEmailsTool := mcp.NewTool("mail_list_emails",
		mcp.WithDescription("List recent inbox emails across all configured accounts"),
		mcp.WithString("account",
			mcp.Description("Account id to restrict the listing to. Omit to aggregate all enabled accounts."),
		),
		mcp.WithNumber("maxResults",
			mcp.Description(fmt.Sprintf("Maximum number of emails per account (default: %d)", defaultMaxResults)),
		),
	)

	s.AddTool(listEmailsTool, common.InstrumentedToolHandler(
		"mail_list_emails", sc,
		func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			return handleListEmails(ctx, request, sc)
		}))

	// Search emails tool
	searchEmailsTool := mcp.NewTool("mail_search_emails",
		mcp.WithDescription("Search emails across all configured accounts"),
		mcp.WithString("account",
			mcp.Description("Account id to restrict the search to. Omit to search all enabled accounts."),
		),
		mcp.WithString("query",
			mcp.Required(),
			mcp.Description("Search query (matched against subject, sender, and body)"),
		),
		mcp.WithNumber("maxResults",
			mcp.Description(fmt.Sprintf("Maximum number of emails per account (default: %d)", defaultMaxResults)),
		),
	)

	s.AddTool(searchEmailsTool, common.InstrumentedToolHandler(
		"mail_search_emails", sc,
		func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			return handleSearchEmails(ctx, request, sc)
		}))

	// Get email tool
	getEmailTool := mcp.NewTool("mail_get_email",
		mcp.WithDescription("Get the full content of a specific email"),
		mcp.WithString("account",
			mcp.Description("Account id the message belongs to. Required when multiple accounts are enabled."),
		),
		mcp.WithString("messageId",
			mcp.Required(),
			mcp.Description("The id of the message to retrieve"),
		),
	)

	s.AddTool(getEmailTool, common.InstrumentedToolHandler(
		"mail_get_email", sc,
		func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			return handleGetEmail(ctx, request, sc)
		}))

	// Send is mutating and only available outside read-only mode
	if !readOnly {
		sendEmailTool := mcp.NewTool("mail_send_email",
			mcp.WithDescription("Send an email from one of the configured accounts"),
			mcp.WithString("account",
				mcp.Description("Account id to send from. Required when multiple accounts are enabled."),
			),
			mcp.WithString("to",
				mcp.Required(),
				mcp.Description("Comma-separated list of recipient email addresses"),
			),
			mcp.WithString("cc",
				mcp.Description("Comma-separated list of Cc addresses"),
			),
			mcp.WithString("bcc",
				mcp.Description("Comma-separated list of Bcc addresses"),
			),
			mcp.WithString("subject",
				mcp.Required(),
				mcp.Description("Email subject"),
			),
			mcp.WithString("body",
				mcp.Required(),
				mcp.Description("Email body"),
			),
			mcp.WithBoolean("html",
				mcp.Description("Treat the body as HTML instead of plain text"),
			),
		)

		s.AddTool(sendEmailTool, common.InstrumentedToolHandler(
			"mail_send_email", sc,
			func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
				return handleSendEmail(ctx, request, sc)
			}))
	}

	return nil
}

func handleListEmails(ctx context.Context, request mcp.CallToolRequest, sc *server.ServerContext) (*mcp.CallToolResult, error) {
	args := request.GetArguments()

	targets, err := common.EnabledAccounts(sc, args)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	maxResults := maxResultsFromArgs(args)

	var emails []provider.EmailSummary
	for _, account := range targets {
		svc, err := sc.Resolve(account.ID)
		if err != nil {
			sc.Logger().Warn("skipping account",
				logging.Account(account.ID),
				logging.Err(err))
			continue
		}

		list, err := svc.ListEmails(ctx, maxResults)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("Failed to list emails for account %s: %v", account.ID, err)), nil
		}
		emails = append(emails, list...)
	}

	return mcp.NewToolResultText(formatEmailList(emails)), nil
}

func handleSearchEmails(ctx context.Context, request mcp.CallToolRequest, sc *server.ServerContext) (*mcp.CallToolResult, error) {
	args := request.GetArguments()

	query, ok := args["query"].(string)
	if !ok || query == "" {
		return mcp.NewToolResultError("query is required"), nil
	}

	targets, err := common.EnabledAccounts(sc, args)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	maxResults := maxResultsFromArgs(args)

	var emails []provider.EmailSummary
	for _, account := range targets {
		svc, err := sc.Resolve(account.ID)
		if err != nil {
			sc.Logger().Warn("skipping account",
				logging.Account(account.ID),
				logging.Err(err))
			continue
		}

		list, err := svc.SearchEmails(ctx, query, maxResults)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("Failed to search emails for account %s: %v", account.ID, err)), nil
		}
		emails = append(emails, list...)
	}

	return mcp.NewToolResultText(formatEmailList(emails)), nil
}

func handleGetEmail(ctx context.Context, request mcp.CallToolRequest, sc *server.ServerContext) (*mcp.CallToolResult, error) {
	args := request.GetArguments()

	messageID, ok := args["messageId"].(string)
	if !ok || messageID == "" {
		return mcp.NewToolResultError("messageId is required"), nil
	}

	account, err := common.ResolveAccount(sc, args)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	svc, err := sc.Resolve(account.ID)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	email, err := svc.GetEmail(ctx, messageID)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to get email: %v", err)), nil
	}
	if email == nil {
		return mcp.NewToolResultText(fmt.Sprintf("No message %s available on account %s (missing message or missing credential)", messageID, account.ID)), nil
	}

	result := fmt.Sprintf("Subject: %s\n", email.Subject)
	result += fmt.Sprintf("Account: %s\n", email.Account)
	result += fmt.Sprintf("From: %s\n", email.From)
	if len(email.To) > 0 {
		result += fmt.Sprintf("To: %s\n", strings.Join(email.To, ", "))
	}
	if len(email.Cc) > 0 {
		result += fmt.Sprintf("Cc: %s\n", strings.Join(email.Cc, ", "))
	}
	result += fmt.Sprintf("Received: %s\n", email.Received.Format(time.RFC3339))
	if email.WebLink != "" {
		result += fmt.Sprintf("Link: %s\n", email.WebLink)
	}
	if email.BodyHTML {
		result += "Body (HTML):\n"
	} else {
		result += "Body:\n"
	}
	result += "\n" + email.Body + "\n"

	return mcp.NewToolResultText(result), nil
}

func handleSendEmail(ctx context.Context, request mcp.CallToolRequest, sc *server.ServerContext) (*mcp.CallToolResult, error) {
	args := request.GetArguments()

	to := splitAddresses(args["to"])
	if len(to) == 0 {
		return mcp.NewToolResultError("to is required"), nil
	}

	subject, ok := args["subject"].(string)
	if !ok || subject == "" {
		return mcp.NewToolResultError("subject is required"), nil
	}

	body, ok := args["body"].(string)
	if !ok || body == "" {
		return mcp.NewToolResultError("body is required"), nil
	}

	account, err := common.ResolveAccount(sc, args)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	svc, err := sc.Resolve(account.ID)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	input := provider.SendEmailInput{
		To:      to,
		Cc:      splitAddresses(args["cc"]),
		Bcc:     splitAddresses(args["bcc"]),
		Subject: subject,
		Body:    body,
	}
	if html, ok := args["html"].(bool); ok {
		input.HTML = html
	}

	if err := svc.SendEmail(ctx, input); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to send email from account %s: %v", account.ID, err)), nil
	}

	return mcp.NewToolResultText(fmt.Sprintf("Successfully sent email from account %s to %s", account.ID, strings.Join(to, ", "))), nil
}

func formatEmailList(emails []provider.EmailSummary) string {
	if len(emails) == 0 {
		return "No emails found"
	}

	result := fmt.Sprintf("Found %d email(s):\n\n", len(emails))
	for i, email := range emails {
		result += fmt.Sprintf("%d. %s\n", i+1, email.Subject)
		result += fmt.Sprintf("   Account: %s\n", email.Account)
		result += fmt.Sprintf("   ID: %s\n", email.ID)
		result += fmt.Sprintf("   From: %s\n", email.From)
		result += fmt.Sprintf("   Received: %s\n", email.Received.Format(time.RFC3339))
		if !email.IsRead {
			result += "   [UNREAD]\n"
		}
		if email.HasAttachments {
			result += "   [ATTACHMENTS]\n"
		}
		if email.Snippet != "" {
			result += fmt.Sprintf("   Snippet: %s\n", email.Snippet)
		}
		result += "\n"
	}
	return result
}

func maxResultsFromArgs(args map[string]interface{}) int {
	if v, ok := args["maxResults"].(float64); ok && v > 0 {
		return int(v)
	}
	return defaultMaxResults
}

func splitAddresses(v interface{}) []string {
	s, ok := v.(string)
	if !ok || s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
