package accounts

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testAccounts() []AccountInfo {
	return []AccountInfo{
		{
			ID:          "work",
			DisplayName: "Work (M365)",
			Provider:    ProviderMicrosoft365,
			ProviderConfig: map[string]string{
				"tenantid": "tenant-a",
				"clientid": "client-a",
			},
			Domains: []string{"example.com"},
			Enabled: true,
		},
		{
			ID:          "personal",
			DisplayName: "Personal (Outlook)",
			Provider:    ProviderOutlookCom,
			ProviderConfig: map[string]string{
				"tenantid": "consumers",
				"clientid": "client-b",
			},
			Domains: []string{"outlook.com", "Example.ORG"},
			Enabled: false,
		},
		{
			ID:          "gmail-main",
			DisplayName: "Gmail",
			Provider:    ProviderGoogle,
			ProviderConfig: map[string]string{
				"clientid":     "client-c",
				"clientsecret": "secret-c",
			},
			Enabled: true,
		},
	}
}

func TestRegistryEmptyConfigIsValid(t *testing.T) {
	r := NewRegistry(nil)
	assert.Equal(t, 0, r.Len())
	assert.Empty(t, r.GetAll())
	assert.Empty(t, r.GetEnabled())
	assert.Nil(t, r.GetByID("anything"))
}

func TestRegistryGetByIDCaseInsensitive(t *testing.T) {
	r := NewRegistry(testAccounts())

	for _, id := range []string{"work", "WORK", "Work"} {
		acc := r.GetByID(id)
		require.NotNil(t, acc, "lookup %q", id)
		assert.Equal(t, "work", acc.ID)
	}
}

func TestRegistryDuplicateIDsCollapse(t *testing.T) {
	r := NewRegistry([]AccountInfo{
		{ID: "Work", DisplayName: "first", Provider: ProviderMicrosoft365},
		{ID: "work", DisplayName: "second", Provider: ProviderMicrosoft365},
	})

	require.Equal(t, 1, r.Len())
	acc := r.GetByID("WORK")
	require.NotNil(t, acc)
	assert.Equal(t, "second", acc.DisplayName, "later entry wins")
	assert.Same(t, acc, r.GetByID("work"), "both spellings resolve to the single stored entry")
}

func TestRegistryGetEnabledIsFilteredGetAll(t *testing.T) {
	r := NewRegistry(testAccounts())

	var want []*AccountInfo
	for _, acc := range r.GetAll() {
		if acc.Enabled {
			want = append(want, acc)
		}
	}
	assert.Equal(t, want, r.GetEnabled())

	ids := make([]string, 0)
	for _, acc := range r.GetEnabled() {
		ids = append(ids, acc.ID)
	}
	assert.Equal(t, []string{"work", "gmail-main"}, ids)
}

func TestRegistryGetByProvider(t *testing.T) {
	r := NewRegistry(testAccounts())

	tests := []struct {
		provider string
		wantIDs  []string
	}{
		{"microsoft365", []string{"work"}},
		{"MICROSOFT365", []string{"work"}},
		{"outlook.com", []string{"personal"}},
		{"google", []string{"gmail-main"}},
		{"imap", nil},
	}

	for _, tt := range tests {
		t.Run(tt.provider, func(t *testing.T) {
			var ids []string
			for _, acc := range r.GetByProvider(tt.provider) {
				ids = append(ids, acc.ID)
			}
			assert.Equal(t, tt.wantIDs, ids)
		})
	}
}

func TestRegistryGetByDomain(t *testing.T) {
	r := NewRegistry(testAccounts())

	var ids []string
	for _, acc := range r.GetByDomain("EXAMPLE.org") {
		ids = append(ids, acc.ID)
	}
	assert.Equal(t, []string{"personal"}, ids)

	assert.Empty(t, r.GetByDomain("nowhere.test"))
}

func TestAccountConfigLookup(t *testing.T) {
	acc := &AccountInfo{
		ID:             "work",
		ProviderConfig: map[string]string{"tenantid": "tenant-a"},
	}

	v, ok := acc.Config("TenantId")
	require.True(t, ok)
	assert.Equal(t, "tenant-a", v)

	_, ok = acc.Config("clientSecret")
	assert.False(t, ok)
}

func TestParseProvider(t *testing.T) {
	tests := []struct {
		in     string
		want   Provider
		wantOK bool
	}{
		{"microsoft365", ProviderMicrosoft365, true},
		{" Microsoft365 ", ProviderMicrosoft365, true},
		{"outlook.com", ProviderOutlookCom, true},
		{"GOOGLE", ProviderGoogle, true},
		{"exchange", "", false},
		{"", "", false},
	}

	for _, tt := range tests {
		got, ok := ParseProvider(tt.in)
		assert.Equal(t, tt.wantOK, ok, "ParseProvider(%q)", tt.in)
		assert.Equal(t, tt.want, got, "ParseProvider(%q)", tt.in)
	}
}
