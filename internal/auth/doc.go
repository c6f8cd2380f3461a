// Package auth defines the error taxonomy shared by the per-provider
// authentication services.
//
// The sentinel errors distinguish outcomes that callers handle differently:
//
//   - ErrCancelled: the user or caller aborted an enrollment flow. Always
//     propagated, never swallowed.
//   - ErrNoCredential: silent acquisition found nothing usable. This is the
//     expected "needs re-enrollment" path, not a fault.
//   - AuthError: an OAuth protocol-level denial or malformed response,
//     carrying the account id for attributable logs.
//
// The concrete flows live in the auth/microsoft and auth/google subpackages.
package auth
