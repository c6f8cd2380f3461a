package accounts

import "strings"

// Provider identifies the upstream service family an account belongs to.
type Provider string

const (
	ProviderMicrosoft365 Provider = "microsoft365"
	ProviderOutlookCom   Provider = "outlook.com"
	ProviderGoogle       Provider = "google"
)

// ParseProvider normalizes a configured provider string to a Provider.
// The second return value is false for unknown values.
func ParseProvider(s string) (Provider, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case string(ProviderMicrosoft365):
		return ProviderMicrosoft365, true
	case string(ProviderOutlookCom):
		return ProviderOutlookCom, true
	case string(ProviderGoogle):
		return ProviderGoogle, true
	}
	return "", false
}

// IsMicrosoft reports whether the provider is served by the Microsoft
// identity platform. Both organizational tenants and personal accounts use
// the same authority template; only the tenant differs.
func (p Provider) IsMicrosoft() bool {
	return p == ProviderMicrosoft365 || p == ProviderOutlookCom
}

// AccountInfo is the static configuration for one account. It is constructed
// at process start and never mutated afterwards.
type AccountInfo struct {
	// ID is the unique, case-insensitive identifier used as the cache and
	// lookup key.
	ID string

	// DisplayName is a human label only.
	DisplayName string

	// Provider selects which authentication and provider services handle
	// this account.
	Provider Provider

	// ProviderConfig holds provider-specific identifiers and secrets
	// (tenantId/clientId for Microsoft, clientId/clientSecret for Google).
	// Keys are normalized to lower case at the configuration boundary.
	ProviderConfig map[string]string

	// Domains is used by routing logic outside the identity core.
	Domains []string

	// Enabled accounts are included in GetEnabled; disabled ones stay in
	// the registry for lookup by id.
	Enabled bool

	// Priority is a tie-break hint for routing, opaque to the core.
	Priority int
}

// Config returns the provider config value for key, looked up
// case-insensitively. The second return value is false when the key is
// absent or blank.
func (a *AccountInfo) Config(key string) (string, bool) {
	if v, ok := a.ProviderConfig[strings.ToLower(key)]; ok && v != "" {
		return v, true
	}
	return "", false
}

// HasDomain reports whether the account serves the given domain,
// case-insensitively.
func (a *AccountInfo) HasDomain(domain string) bool {
	for _, d := range a.Domains {
		if strings.EqualFold(d, domain) {
			return true
		}
	}
	return false
}
