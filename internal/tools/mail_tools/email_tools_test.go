package mail_tools

import (
	"context"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"

	"github.com/teemow/mailhub/internal/accounts"
	"github.com/teemow/mailhub/internal/auth"
	"github.com/teemow/mailhub/internal/provider"
	"github.com/teemow/mailhub/internal/server"
)

type noCredentialMicrosoft struct{}

func (noCredentialMicrosoft) GetTokenSilently(ctx context.Context, tenantID, clientID string, scopes []string, accountID string) (string, error) {
	return "", auth.ErrNoCredential
}

type noCredentialGoogle struct{}

func (noCredentialGoogle) Token(ctx context.Context, clientID, clientSecret string, scopes []string, accountID string) (*oauth2.Token, error) {
	return nil, auth.ErrNoCredential
}

func testServerContext(t *testing.T) *server.ServerContext {
	t.Helper()

	registry := accounts.NewRegistry([]accounts.AccountInfo{
		{
			ID:       "work-a",
			Provider: accounts.ProviderMicrosoft365,
			ProviderConfig: map[string]string{
				"tenantid": "tenant-a",
				"clientid": "client-a",
			},
			Enabled: true,
		},
		{
			ID:       "home",
			Provider: accounts.ProviderGoogle,
			ProviderConfig: map[string]string{
				"clientid":     "client-c",
				"clientsecret": "secret-c",
			},
			Enabled: true,
		},
	})

	factory := provider.NewFactory(registry, noCredentialMicrosoft{}, noCredentialGoogle{})
	sc := server.NewServerContext(context.Background(), registry, factory, nil)
	t.Cleanup(func() { _ = sc.Shutdown() })
	return sc
}

func callRequest(args map[string]interface{}) mcp.CallToolRequest {
	req := mcp.CallToolRequest{}
	req.Params.Arguments = args
	return req
}

func resultText(t *testing.T, result *mcp.CallToolResult) string {
	t.Helper()
	require.NotNil(t, result)
	require.NotEmpty(t, result.Content)
	text, ok := result.Content[0].(mcp.TextContent)
	require.True(t, ok, "expected text content")
	return text.Text
}

func TestRegisterMailTools(t *testing.T) {
	sc := testServerContext(t)

	s := mcpserver.NewMCPServer("test", "0.0.1")
	require.NoError(t, RegisterMailTools(s, sc, false))

	s = mcpserver.NewMCPServer("test", "0.0.1")
	require.NoError(t, RegisterMailTools(s, sc, true))
}

func TestHandleListEmails_DegradesWithoutCredentials(t *testing.T) {
	sc := testServerContext(t)

	// Neither account has a cached credential; the aggregate listing is
	// empty rather than an error.
	result, err := handleListEmails(context.Background(), callRequest(map[string]interface{}{}), sc)
	require.NoError(t, err)
	assert.False(t, result.IsError)
	assert.Equal(t, "No emails found", resultText(t, result))
}

func TestHandleSearchEmails_RequiresQuery(t *testing.T) {
	sc := testServerContext(t)

	result, err := handleSearchEmails(context.Background(), callRequest(map[string]interface{}{}), sc)
	require.NoError(t, err)
	assert.True(t, result.IsError)
	assert.Contains(t, resultText(t, result), "query is required")
}

func TestHandleGetEmail_AmbiguousAccount(t *testing.T) {
	sc := testServerContext(t)

	result, err := handleGetEmail(context.Background(), callRequest(map[string]interface{}{
		"messageId": "m1",
	}), sc)
	require.NoError(t, err)
	assert.True(t, result.IsError)
	assert.Contains(t, resultText(t, result), "multiple accounts")
}

func TestHandleGetEmail_NoCredentialDegrades(t *testing.T) {
	sc := testServerContext(t)

	result, err := handleGetEmail(context.Background(), callRequest(map[string]interface{}{
		"account":   "home",
		"messageId": "m1",
	}), sc)
	require.NoError(t, err)
	assert.False(t, result.IsError)
	assert.Contains(t, resultText(t, result), "home")
}

func TestHandleSendEmail_NoCredentialPropagates(t *testing.T) {
	sc := testServerContext(t)

	// Sending is a mutation; the missing credential is reported instead
	// of being swallowed.
	result, err := handleSendEmail(context.Background(), callRequest(map[string]interface{}{
		"account": "work-a",
		"to":      "bob@example.com",
		"subject": "status",
		"body":    "hi",
	}), sc)
	require.NoError(t, err)
	assert.True(t, result.IsError)
	assert.Contains(t, resultText(t, result), "work-a")
	assert.Contains(t, resultText(t, result), "credential")
}

func TestHandleSendEmail_ValidatesArguments(t *testing.T) {
	sc := testServerContext(t)

	tests := []struct {
		name    string
		args    map[string]interface{}
		message string
	}{
		{
			name:    "missing to",
			args:    map[string]interface{}{"subject": "s", "body": "b"},
			message: "to is required",
		},
		{
			name:    "missing subject",
			args:    map[string]interface{}{"to": "a@example.com", "body": "b"},
			message: "subject is required",
		},
		{
			name:    "missing body",
			args:    map[string]interface{}{"to": "a@example.com", "subject": "s"},
			message: "body is required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := handleSendEmail(context.Background(), callRequest(tt.args), sc)
			require.NoError(t, err)
			assert.True(t, result.IsError)
			assert.Contains(t, resultText(t, result), tt.message)
		})
	}
}

func TestSplitAddresses(t *testing.T) {
	assert.Nil(t, splitAddresses(nil))
	assert.Nil(t, splitAddresses(""))
	assert.Nil(t, splitAddresses(42))
	assert.Equal(t,
		[]string{"a@example.com", "b@example.com"},
		splitAddresses("a@example.com, b@example.com,"))
}

func TestMaxResultsFromArgs(t *testing.T) {
	assert.Equal(t, defaultMaxResults, maxResultsFromArgs(map[string]interface{}{}))
	assert.Equal(t, defaultMaxResults, maxResultsFromArgs(map[string]interface{}{"maxResults": -3.0}))
	assert.Equal(t, 10, maxResultsFromArgs(map[string]interface{}{"maxResults": 10.0}))
}

func TestFormatEmailList(t *testing.T) {
	got := formatEmailList([]provider.EmailSummary{
		{
			Account:        "work-a",
			ID:             "m1",
			Subject:        "Weekly report",
			From:           "Alice <alice@example.com>",
			Received:       time.Date(2026, 2, 1, 9, 30, 0, 0, time.UTC),
			IsRead:         false,
			HasAttachments: true,
			Snippet:        "Numbers attached",
		},
	})

	assert.Contains(t, got, "Found 1 email(s)")
	assert.Contains(t, got, "Weekly report")
	assert.Contains(t, got, "Account: work-a")
	assert.Contains(t, got, "[UNREAD]")
	assert.Contains(t, got, "[ATTACHMENTS]")
	assert.Contains(t, got, "Snippet: Numbers attached")
}
