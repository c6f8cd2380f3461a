package account_tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/teemow/mailhub/internal/accounts"
	"github.com/teemow/mailhub/internal/server"
	"github.com/teemow/mailhub/internal/tools/common"
)

// RegisterAccountTools registers the account inspection tools with the
// MCP server.
func RegisterAccountTools(s *mcpserver.MCPServer, sc *server.ServerContext) error {
	listAccountsTool := mcp.NewTool("accounts_list",
		mcp.WithDescription("List the configured mail/calendar accounts"),
	)

	s.AddTool(listAccountsTool, common.InstrumentedToolHandler(
		"accounts_list", sc,
		func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			return handleListAccounts(ctx, request, sc)
		}))

	authStatusTool := mcp.NewTool("accounts_auth_status",
		mcp.WithDescription("Show which accounts hold a usable cached credential"),
		mcp.WithString("account",
			mcp.Description("Account id to check. Omit to check all configured accounts."),
		),
	)

	s.AddTool(authStatusTool, common.InstrumentedToolHandler(
		"accounts_auth_status", sc,
		func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			return handleAuthStatus(ctx, request, sc)
		}))

	return nil
}

func handleListAccounts(_ context.Context, _ mcp.CallToolRequest, sc *server.ServerContext) (*mcp.CallToolResult, error) {
	all := sc.Registry().GetAll()
	if len(all) == 0 {
		return mcp.NewToolResultText("No accounts configured"), nil
	}

	result := fmt.Sprintf("Configured accounts (%d):\n\n", len(all))
	for i, account := range all {
		result += fmt.Sprintf("%d. %s\n", i+1, account.ID)
		if account.DisplayName != "" {
			result += fmt.Sprintf("   Name: %s\n", account.DisplayName)
		}
		result += fmt.Sprintf("   Provider: %s\n", account.Provider)
		if len(account.Domains) > 0 {
			result += fmt.Sprintf("   Domains: %s\n", strings.Join(account.Domains, ", "))
		}
		if !account.Enabled {
			result += "   [DISABLED]\n"
		}
		result += "\n"
	}

	return mcp.NewToolResultText(result), nil
}

func handleAuthStatus(ctx context.Context, request mcp.CallToolRequest, sc *server.ServerContext) (*mcp.CallToolResult, error) {
	args := request.GetArguments()

	var targets []*accounts.AccountInfo
	if id := common.AccountFromArgs(args); id != "" {
		account := sc.Registry().GetByID(id)
		if account == nil {
			return mcp.NewToolResultError(fmt.Sprintf("unknown account %q", id)), nil
		}
		targets = []*accounts.AccountInfo{account}
	} else {
		targets = sc.Registry().GetAll()
	}

	if len(targets) == 0 {
		return mcp.NewToolResultText("No accounts configured"), nil
	}

	check := sc.CredentialChecker()

	result := "Credential status:\n\n"
	for _, account := range targets {
		result += fmt.Sprintf("- %s (%s): ", account.ID, account.Provider)
		switch {
		case check == nil:
			result += "unknown\n"
		case check(ctx, account):
			result += "signed in\n"
		default:
			result += fmt.Sprintf("no credential, run: mailhub auth login --account %s\n", account.ID)
		}
	}

	return mcp.NewToolResultText(result), nil
}
