package common

import (
	"fmt"

	"github.com/teemow/mailhub/internal/accounts"
	"github.com/teemow/mailhub/internal/server"
)

// AccountFromArgs returns the account id named in the request arguments,
// or "" when the caller did not specify one.
func AccountFromArgs(args map[string]interface{}) string {
	if v, ok := args["account"].(string); ok {
		return v
	}
	return ""
}

// ResolveAccount picks the account a request targets. An explicit
// "account" argument wins; without one, a registry with a single enabled
// account is unambiguous and that account is used. Anything else is an
// error telling the caller which ids exist.
func ResolveAccount(sc *server.ServerContext, args map[string]interface{}) (*accounts.AccountInfo, error) {
	registry := sc.Registry()

	if id := AccountFromArgs(args); id != "" {
		if account := registry.GetByID(id); account != nil {
			return account, nil
		}
		return nil, fmt.Errorf("unknown account %q; configured accounts: %v", id, accountIDs(registry.GetAll()))
	}

	enabled := registry.GetEnabled()
	switch len(enabled) {
	case 0:
		return nil, fmt.Errorf("no enabled accounts configured")
	case 1:
		return enabled[0], nil
	default:
		return nil, fmt.Errorf("multiple accounts configured, pass the account argument; enabled accounts: %v", accountIDs(enabled))
	}
}

// EnabledAccounts returns the enabled accounts for a request, narrowed to
// one when an explicit account argument is present. Aggregating read
// tools fan out over the result.
func EnabledAccounts(sc *server.ServerContext, args map[string]interface{}) ([]*accounts.AccountInfo, error) {
	registry := sc.Registry()

	if id := AccountFromArgs(args); id != "" {
		account := registry.GetByID(id)
		if account == nil {
			return nil, fmt.Errorf("unknown account %q; configured accounts: %v", id, accountIDs(registry.GetAll()))
		}
		return []*accounts.AccountInfo{account}, nil
	}

	enabled := registry.GetEnabled()
	if len(enabled) == 0 {
		return nil, fmt.Errorf("no enabled accounts configured")
	}
	return enabled, nil
}

func accountIDs(list []*accounts.AccountInfo) []string {
	ids := make([]string, 0, len(list))
	for _, a := range list {
		ids = append(ids, a.ID)
	}
	return ids
}
