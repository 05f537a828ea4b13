// Package loading is the host's loading screen: a named progress meter and a
// status line renderer. The updater only talks to it through the reporter
// package; the meter deliberately offers no way to change its step total.
package loading
