// Package config loads updater settings from YAML and the environment and
// resolves them into the immutable Config used by a single bootstrap run.
//
// Resolve picks the update manifest URL (development channel, override or
// production) and allocates a fresh staging directory for the extracted
// updater artifact.
package config
