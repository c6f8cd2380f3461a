package auth

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrCancelled is returned when the user or caller aborts an
	// authentication flow before it completes.
	ErrCancelled = errors.New("authentication cancelled")

	// ErrNoCredential is returned by silent acquisition paths when no usable
	// cached credential exists for the account. Callers recover by running
	// an enrollment flow; this is not a fault.
	ErrNoCredential = errors.New("no cached credential")

	// ErrDeviceCodeExpired is returned when a device-code grant expires
	// before the user completes authorization.
	ErrDeviceCodeExpired = errors.New("device code expired")

	// ErrAccessDenied is returned when the user explicitly denies a
	// device-code authorization request.
	ErrAccessDenied = errors.New("authorization denied by user")
)

// AuthError wraps an OAuth protocol-level failure with the account it
// occurred for, so logs stay attributable when many accounts are aggregated
// in one call.
type AuthError struct {
	Account string
	Op      string
	Err     error
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("auth %s failed for account %q: %v", e.Op, e.Account, e.Err)
}

func (e *AuthError) Unwrap() error {
	return e.Err
}

// NewAuthError wraps err with account and operation context.
func NewAuthError(account, op string, err error) *AuthError {
	return &AuthError{Account: account, Op: op, Err: err}
}

// ConfigError reports a required provider-config key missing for an account.
// Accounts may sit in the registry structurally incomplete; the error
// surfaces at the point of use, not at load time.
type ConfigError struct {
	Account string
	Key     string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("account %q is missing required provider config key %q", e.Account, e.Key)
}

// IsCancelled reports whether err is a deliberate abort, either our
// sentinel or a context cancellation.
func IsCancelled(err error) bool {
	return errors.Is(err, ErrCancelled) || errors.Is(err, context.Canceled)
}
