package google

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/oauth2"
)

const tokenFileName = "token.json"

// tokenPath returns the token file for an account. The path is a function
// of the account id alone, never of the client id, so deleting one
// account's credentials cannot affect another's.
func (s *Service) tokenPath(accountID string) string {
	return filepath.Join(s.root, sanitizeAccountID(accountID), tokenFileName)
}

// sanitizeAccountID makes an account id safe as a directory name without
// embedding anything else identity-bearing.
func sanitizeAccountID(accountID string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':', 0:
			return '-'
		}
		return r
	}, strings.ToLower(accountID))
}

// saveToken persists the token for an account, creating the per-account
// directory on first use. The file is written with owner-only permissions.
func (s *Service) saveToken(accountID string, token *oauth2.Token) error {
	path := s.tokenPath(accountID)
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("failed to create credential directory for account %s: %w", accountID, err)
	}

	data, err := json.Marshal(token)
	if err != nil {
		return fmt.Errorf("failed to encode token for account %s: %w", accountID, err)
	}

	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write token for account %s: %w", accountID, err)
	}
	return nil
}

// loadToken reads the persisted token for an account. Callers distinguish
// "file absent" (os.IsNotExist) from "file corrupt" for diagnostics even
// though both collapse to the same outcome externally.
func (s *Service) loadToken(accountID string) (*oauth2.Token, error) {
	data, err := os.ReadFile(s.tokenPath(accountID))
	if err != nil {
		return nil, err
	}

	var token oauth2.Token
	if err := json.Unmarshal(data, &token); err != nil {
		return nil, fmt.Errorf("corrupt token file for account %s: %w", accountID, err)
	}
	return &token, nil
}

// hasTokenFile is the fast-path existence check that never touches the
// network.
func (s *Service) hasTokenFile(accountID string) bool {
	_, err := os.Stat(s.tokenPath(accountID))
	return err == nil
}
