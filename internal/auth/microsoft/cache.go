package microsoft

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/AzureAD/microsoft-authentication-library-for-go/apps/cache"
)

// fileCache persists one account's MSAL token cache blob to a single file.
// MSAL calls Replace before reading its in-memory cache and Export after
// mutating it, so refreshes reach disk without extra plumbing.
type fileCache struct {
	path string
}

var _ cache.ExportReplace = (*fileCache)(nil)

// newFileCache returns the accessor for an account's cache file. The file
// name embeds the account id and nothing else identity-bearing.
func newFileCache(root, accountID string) *fileCache {
	return &fileCache{
		path: filepath.Join(root, fmt.Sprintf("msal-%s.json", sanitizeAccountID(accountID))),
	}
}

// Replace loads the persisted cache into MSAL's in-memory cache. A missing
// file is the first-use case, not an error.
func (c *fileCache) Replace(_ context.Context, u cache.Unmarshaler, _ cache.ReplaceHints) error {
	data, err := os.ReadFile(c.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to read token cache %s: %w", c.path, err)
	}
	return u.Unmarshal(data)
}

// Export writes MSAL's in-memory cache back to the account's file with
// owner-only permissions.
func (c *fileCache) Export(_ context.Context, m cache.Marshaler, _ cache.ExportHints) error {
	data, err := m.Marshal()
	if err != nil {
		return fmt.Errorf("failed to marshal token cache: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(c.path), 0o700); err != nil {
		return fmt.Errorf("failed to create cache directory: %w", err)
	}
	if err := os.WriteFile(c.path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write token cache %s: %w", c.path, err)
	}
	return nil
}
