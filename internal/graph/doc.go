// Package graph is a thin Microsoft Graph REST client for the mail and
// calendar resources mailhub uses.
//
// It speaks plain JSON over the v1.0 endpoint with a caller-supplied
// bearer token; token acquisition lives in the auth/microsoft package.
// Responses are returned as Graph wire shapes; normalization into
// provider-agnostic records happens in the provider package.
package graph
