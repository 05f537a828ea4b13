// Package logger wraps zap for the updater binaries:
//   - a global sugared logger with a console encoder,
//   - an optional rotated log file next to the console output,
//   - context helpers (ToContext/FromContext/WithName/WithKV),
//   - level parsing and the usual Info/Error/KV shortcuts.
//
// Every service takes a context and pulls its logger out of it, so a run
// can be tagged once (name, run id) and the tags follow every line.
package logger
