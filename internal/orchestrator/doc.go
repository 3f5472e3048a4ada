// Package orchestrator runs the backup round-trip pipeline.
//
// A run is a fixed linear sequence:
//
//	preflight → prepare → build → backup → export → remove → restore
//
// Each step must finish before the next begins, and the first failure
// aborts the rest. Nothing is rolled back on failure: the backup
// directory, logs, staged build context and any exported archive stay on
// disk so the failure can be inspected. A failed run is retried from the
// top.
//
// Only process exit status decides success. Step output is archived to log
// files for humans and never parsed.
package orchestrator
