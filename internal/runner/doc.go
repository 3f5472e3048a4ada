// Package runner executes external processes for the roundtrip pipeline.
//
// The runner enforces a single success contract: a process that exits
// non-zero while success is required produces a *CommandError carrying the
// exit code and the log location. Nothing else (in particular, no output
// text) decides whether a step passed.
//
// Standard output is captured in memory and, when a log path is given,
// written to that path after the process terminates. Standard error stays
// connected to the caller's stderr so diagnostics remain visible live.
package runner
