package provider

import (
	"strings"

	"github.com/teemow/mailhub/internal/accounts"
)

// ScopesFor returns the OAuth scopes requested for an account: the
// provider family's defaults, unless the account overrides them via the
// space-separated "scopes" provider config key. Enrollment commands use
// this so interactive flows request the same scopes the provider
// services acquire silently.
func ScopesFor(account *accounts.AccountInfo) []string {
	if raw, ok := account.Config("scopes"); ok {
		return strings.Fields(raw)
	}
	if account.Provider.IsMicrosoft() {
		return defaultGraphScopes
	}
	return defaultGoogleScopes
}
