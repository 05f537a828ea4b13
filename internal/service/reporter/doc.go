// Package reporter pushes progress states into the host's loading screen.
//
// Messages always reach the Display. Step counts go through a ProgressSink on
// a best-effort basis: the host meter has no public setter for its total, so
// FieldSink writes the unexported fields directly and every failure is
// swallowed.
package reporter
