package accounts

import "strings"

// Registry answers lookup and filter queries over the configured accounts.
// It is immutable after construction; an empty configuration yields a valid
// empty registry, which is the legitimate "no accounts yet" state.
type Registry struct {
	byID  map[string]*AccountInfo
	order []string // lower-cased ids in configuration order
}

// NewRegistry builds a registry from the configured accounts. Accounts are
// keyed by lower-cased id; a duplicate id differing only by case replaces
// the earlier entry so both spellings resolve to one stored account.
func NewRegistry(configured []AccountInfo) *Registry {
	r := &Registry{byID: make(map[string]*AccountInfo, len(configured))}
	for i := range configured {
		acc := configured[i]
		key := strings.ToLower(acc.ID)
		if key == "" {
			continue
		}
		if _, exists := r.byID[key]; !exists {
			r.order = append(r.order, key)
		}
		r.byID[key] = &acc
	}
	return r
}

// GetAll returns every account regardless of enabled state, in
// configuration order.
func (r *Registry) GetAll() []*AccountInfo {
	all := make([]*AccountInfo, 0, len(r.order))
	for _, key := range r.order {
		all = append(all, r.byID[key])
	}
	return all
}

// GetByID returns the account with the given id, matched
// case-insensitively, or nil if absent.
func (r *Registry) GetByID(id string) *AccountInfo {
	return r.byID[strings.ToLower(id)]
}

// GetEnabled returns the accounts with Enabled set.
func (r *Registry) GetEnabled() []*AccountInfo {
	var enabled []*AccountInfo
	for _, key := range r.order {
		if acc := r.byID[key]; acc.Enabled {
			enabled = append(enabled, acc)
		}
	}
	return enabled
}

// GetByProvider returns the accounts configured for the given provider.
// The match is case-insensitive on the provider name.
func (r *Registry) GetByProvider(provider string) []*AccountInfo {
	var matched []*AccountInfo
	for _, key := range r.order {
		if acc := r.byID[key]; strings.EqualFold(string(acc.Provider), provider) {
			matched = append(matched, acc)
		}
	}
	return matched
}

// GetByDomain returns the accounts whose domain set contains the given
// domain, case-insensitively.
func (r *Registry) GetByDomain(domain string) []*AccountInfo {
	var matched []*AccountInfo
	for _, key := range r.order {
		if acc := r.byID[key]; acc.HasDomain(domain) {
			matched = append(matched, acc)
		}
	}
	return matched
}

// Len returns the number of distinct accounts in the registry.
func (r *Registry) Len() int {
	return len(r.byID)
}
