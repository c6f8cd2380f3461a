// Package provider turns per-account mail and calendar operations into
// normalized, provider-agnostic results.
//
// A Factory resolves an account id through the registry to a Service
// bound to that account. The Microsoft-family service (microsoft365 and
// outlook.com) talks to Microsoft Graph, the Google service to the Gmail
// and Calendar APIs. Both obtain credentials exclusively through the
// silent path of the matching authentication service; enrollment never
// happens here.
//
// Read operations degrade a missing credential to an empty result with a
// warning log so one broken account never blocks aggregation across
// accounts. Mutating operations propagate the failure instead, because a
// write that appears to succeed as empty is worse than an explicit error.
package provider
