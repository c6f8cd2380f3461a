// Package config loads the mailhub configuration file and produces the
// account records consumed by the registry.
//
// Field names in the file are accepted in both PascalCase and camelCase for
// backward compatibility with hand-edited configs; normalization happens
// once here so the rest of the codebase only ever sees lower-cased
// providerConfig keys.
package config
