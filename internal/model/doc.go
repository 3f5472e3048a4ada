// Package model defines the domain types and value objects for the
// roundtrip CLI.
//
// This package contains pure data structures with no external dependencies.
// All entities (Namespace, Artifacts, StepResult, RunReport) are transient,
// process-lifetime values. Nothing is persisted between runs except the
// artifacts on disk that a human inspects afterwards.
//
// The package also defines exit codes (ExitCode) and a custom error type
// (CLIError) that carries exit codes for proper OS process exit handling.
package model
