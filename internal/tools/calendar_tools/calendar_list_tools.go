package calendar_tools

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/teemow/mailhub/internal/logging"
	"github.com/teemow/mailhub/internal/provider"
	"github.com/teemow/mailhub/internal/server"
	"github.com/teemow/mailhub/internal/tools/common"
)

// RegisterCalendarListTools registers calendar listing tools with the MCP server.
func RegisterCalendarListTools(s *mcpserver.MCPServer, sc *server.ServerContext) error {
	listCalendarsTool := mcp.NewTool("calendar_list_calendars",
		mcp.WithDescription("List the calendars of all configured accounts"),
		mcp.WithString("account",
			mcp.Description("Account id to restrict the listing to. Omit to aggregate all enabled accounts."),
		),
	)

	s.AddTool(listCalendarsTool, common.InstrumentedToolHandler(
		"calendar_list_calendars", sc,
		func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			return handleListCalendars(ctx, request, sc)
		}))

	return nil
}

func handleListCalendars(ctx context.Context, request mcp.CallToolRequest, sc *server.ServerContext) (*mcp.CallToolResult, error) {
	args := request.GetArguments()

	targets, err := common.EnabledAccounts(sc, args)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	var calendars []provider.CalendarInfo
	for _, account := range targets {
		svc, err := sc.Resolve(account.ID)
		if err != nil {
			sc.Logger().Warn("skipping account",
				logging.Account(account.ID),
				logging.Err(err))
			continue
		}

		list, err := svc.ListCalendars(ctx)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("Failed to list calendars for account %s: %v", account.ID, err)), nil
		}
		calendars = append(calendars, list...)
	}

	if len(calendars) == 0 {
		return mcp.NewToolResultText("No calendars found"), nil
	}

	result := fmt.Sprintf("Found %d calendar(s):\n\n", len(calendars))
	for i, cal := range calendars {
		result += fmt.Sprintf("%d. %s\n", i+1, cal.Name)
		result += fmt.Sprintf("   Account: %s\n", cal.Account)
		result += fmt.Sprintf("   ID: %s\n", cal.ID)
		if cal.Primary {
			result += "   [PRIMARY]\n"
		}
		if !cal.CanEdit {
			result += "   [READ-ONLY]\n"
		}
		result += "\n"
	}

	return mcp.NewToolResultText(result), nil
}
