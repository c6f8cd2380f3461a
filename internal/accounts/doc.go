// Package accounts holds the static registry of configured accounts.
//
// The registry is populated once at startup from configuration and is
// immutable afterwards, so lookups are safe for concurrent use without
// locking. Account ids are compared case-insensitively everywhere.
package accounts
