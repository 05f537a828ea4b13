// Package supervisor runs the updater as a single child process.
//
// The child's stdout and stderr share one OS pipe, so the parent sees a single
// line stream in the order the OS interleaved it. Lines are consumed through a
// single-pass iterator; Wait reaps the child and reports its exit code.
package supervisor
