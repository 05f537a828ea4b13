// Package progress turns lines of the pack updater's log into loading-screen
// progress states.
//
// Classify is a pure function: it reads one line plus the last known State and
// returns the next State, or false when the line carries no progress. The set
// of recognized patterns is a fixed table; a change of the updater's log
// wording is a breaking change to this package.
package progress
