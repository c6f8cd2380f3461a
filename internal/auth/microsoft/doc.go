// Package microsoft implements the Microsoft-family authentication
// service, covering both organizational (microsoft365) and personal
// (outlook.com) accounts.
//
// Token acquisition goes through MSAL public clients. One client handle
// exists per account for the process lifetime, created lazily with
// single-flight semantics, and each handle is wired to a disk-backed token
// cache file unique to the account, so two accounts never share token
// state even under the same tenant and client id.
package microsoft
