package provider

import (
	"errors"
	"fmt"

	"github.com/teemow/mailhub/internal/auth"
)

var (
	// ErrAccountNotFound is returned by the factory when the account id
	// is not present in the registry.
	ErrAccountNotFound = errors.New("account not found")

	// ErrUnsupportedProvider is returned by the factory for a provider
	// value outside {microsoft365, outlook.com, google}.
	ErrUnsupportedProvider = errors.New("unsupported provider")
)

// APIError is an upstream provider API failure after a credential was
// obtained. It carries the account id and operation name so aggregated
// logs stay attributable per account.
type APIError struct {
	Account string
	Op      string
	Err     error
}

func (e *APIError) Error() string {
	return fmt.Sprintf("provider api error for account %q during %s: %v", e.Account, e.Op, e.Err)
}

func (e *APIError) Unwrap() error {
	return e.Err
}

func apiErr(account, op string, err error) error {
	return &APIError{Account: account, Op: op, Err: err}
}

// acquireErr classifies a credential-acquisition failure on a mutating
// path: a missing credential becomes an attributable auth error,
// configuration errors pass through, everything else is an APIError.
func acquireErr(account, op string, err error) error {
	if errors.Is(err, auth.ErrNoCredential) {
		return auth.NewAuthError(account, op, err)
	}
	var cfgErr *auth.ConfigError
	if errors.As(err, &cfgErr) {
		return err
	}
	return apiErr(account, op, err)
}
