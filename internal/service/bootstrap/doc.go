// Package bootstrap runs one pack update: it resolves settings, stages the
// bundled updater, launches it with the Java runtime, streams its output into
// the loading screen and reports how the child exited.
//
// A non-zero exit of the updater is logged, not returned: the updater owns
// retries and recovery for its own domain. Everything that stops the run
// before the child exits is returned once, wrapped in ErrBootstrap.
package bootstrap
