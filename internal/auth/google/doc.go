// Package google implements the Google-family authentication service.
//
// It obtains and silently refreshes OAuth credentials for Gmail and
// Calendar scopes, with three enrollment surfaces:
//
//   - interactive browser consent through a loopback redirect,
//   - RFC 8628 device authorization for environments without a browser,
//   - a silent validity check used at runtime.
//
// Credentials persist as an oauth2.Token JSON under one directory per
// account, keyed by account id alone, so two accounts sharing a client id
// never share token state. A credential obtained via device code is
// indistinguishable on disk from one obtained interactively.
package google
