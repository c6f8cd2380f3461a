package resources

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/teemow/mailhub/internal/server"
)

// RegisterAccountResources registers the account resources with the MCP
// server.
func RegisterAccountResources(s *mcpserver.MCPServer, sc *server.ServerContext) error {
	accountsResource := mcp.NewResource(
		"accounts://list",
		"Configured Accounts",
		mcp.WithResourceDescription("The mail/calendar accounts this server is configured with"),
		mcp.WithMIMEType("application/json"),
	)

	s.AddResource(accountsResource, func(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		return handleAccountsList(ctx, request, sc)
	})

	return nil
}

// accountRecord is the wire shape of one account in the accounts://list
// resource. Provider config is deliberately omitted; it holds client
// secrets.
type accountRecord struct {
	ID          string   `json:"id"`
	DisplayName string   `json:"displayName,omitempty"`
	Provider    string   `json:"provider"`
	Domains     []string `json:"domains,omitempty"`
	Enabled     bool     `json:"enabled"`
}

func handleAccountsList(_ context.Context, request mcp.ReadResourceRequest, sc *server.ServerContext) ([]mcp.ResourceContents, error) {
	all := sc.Registry().GetAll()

	records := make([]accountRecord, 0, len(all))
	for _, account := range all {
		records = append(records, accountRecord{
			ID:          account.ID,
			DisplayName: account.DisplayName,
			Provider:    string(account.Provider),
			Domains:     account.Domains,
			Enabled:     account.Enabled,
		})
	}

	jsonData, err := json.MarshalIndent(map[string]interface{}{
		"accounts": records,
	}, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal accounts: %w", err)
	}

	return []mcp.ResourceContents{
		&mcp.TextResourceContents{
			URI:      request.Params.URI,
			MIMEType: "application/json",
			Text:     string(jsonData),
		},
	}, nil
}
