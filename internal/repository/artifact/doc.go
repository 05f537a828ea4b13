// Package artifact stages the updater executable bundled into this binary.
//
// The payload is embedded at build time under updater/. Extract copies it
// into a run's staging directory with the executable bit set, optionally
// verifying a SHA-512 sidecar shipped next to it.
package artifact
