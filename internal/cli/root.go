// Package cli implements the cobra-based CLI commands for roundtrip.
//
// Each subcommand (run, plan, clean) is defined in its own file within
// this package. This file defines the root command that serves as the
// parent for all subcommands and handles global flags.
package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/mmr-tortoise/roundtrip/internal/model"
	"github.com/mmr-tortoise/roundtrip/internal/runner"
)

// Global flag variables shared across all subcommands.
// These are bound to cobra persistent flags on the root command,
// which makes them available to every subcommand automatically.
var (
	// jsonOutput controls whether command output is formatted as JSON.
	// When true, the report and errors use structured JSON for machine
	// consumption. When false (default), output is human-readable text.
	jsonOutput bool

	// verbose lowers the log level to debug, which adds the argv of
	// every engine command and per-step durations to stderr.
	verbose bool
)

// Version, Commit, and Date are set at build time via ldflags.
// They are injected from the main package to display version information.
var (
	// Version is the semantic version of the binary (e.g., "1.0.0").
	Version = "dev"

	// Commit is the Git commit hash the binary was built from.
	Commit = "none"

	// Date is the build timestamp.
	Date = "unknown"
)

// NewRootCommand creates and configures the root cobra command.
// This is the entry point for the entire CLI application.
//
// Invoked without a subcommand the root behaves like "run", so the
// integration test is a single `roundtrip` from the test directory.
func NewRootCommand() *cobra.Command {
	flags := &runFlags{}

	rootCmd := &cobra.Command{
		Use:   "roundtrip",
		Short: "Backup/export/restore round-trip integration test driver",
		Long: `roundtrip builds the test image, runs the backup script in a container,
exports that container's filesystem as a tar archive, and then runs the
restore script in a fresh container that compares the restored tree
against the archive.

Every artifact (backup directory, archive, logs, build context) is kept
on disk and listed in the final report, whether the run passed or not.`,

		// A bare "roundtrip" takes no positional arguments.
		Args: cobra.NoArgs,

		// SilenceUsage prevents cobra from printing usage on every error.
		// We handle error output ourselves for cleaner UX.
		SilenceUsage: true,

		// SilenceErrors prevents cobra from printing errors automatically.
		// We format errors ourselves (text or JSON based on --json flag).
		SilenceErrors: true,

		// Version is displayed when --version flag is used.
		Version: fmt.Sprintf("%s (commit: %s, built: %s)", Version, Commit, Date),

		RunE: func(cmd *cobra.Command, args []string) error {
			return runRun(cmd.Context(), cmd.OutOrStdout(), flags)
		},
	}

	// PersistentFlags are inherited by all subcommands. This is the cobra
	// mechanism for global flags: any flag defined here is automatically
	// available in every subcommand without re-declaration.
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Output in JSON format")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")

	// The root accepts the same flags as "run" since it runs the same thing.
	addRunFlags(rootCmd, flags)

	rootCmd.AddCommand(NewRunCommand())
	rootCmd.AddCommand(NewPlanCommand())
	rootCmd.AddCommand(NewCleanCommand())

	return rootCmd
}

// Execute runs the root command and handles exit codes.
// This is the main entry point called from main.go.
//
// It inspects errors returned by cobra commands and translates them
// into appropriate OS exit codes. CLIError types carry their own
// exit codes; other errors default to exit code 1.
func Execute(rootCmd *cobra.Command) {
	// Interrupting the process cancels the context, which kills the
	// engine command currently running.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()

	if err != nil {
		writeError(os.Stderr, err)
		os.Exit(int(exitCodeOf(err)))
	}
}

// exitCodeOf returns the process exit code for err.
func exitCodeOf(err error) model.ExitCode {
	var cliErr *model.CLIError
	if errors.As(err, &cliErr) {
		return cliErr.Code
	}
	return model.ExitGeneralError
}

// errorJSON is the JSON shape of an error written to stderr.
type errorJSON struct {
	Message  string `json:"message"`
	Detail   string `json:"detail,omitempty"`
	Code     int    `json:"code"`
	Command  string `json:"command,omitempty"`
	ExitCode *int   `json:"exitCode,omitempty"`
	Log      string `json:"log,omitempty"`
}

// writeError outputs err in the appropriate format (JSON or text) based
// on the --json global flag. When a child process failed, its argv, exit
// status and log path are included so the log can be opened directly.
func writeError(w io.Writer, err error) {
	out := errorJSON{Message: err.Error(), Code: int(exitCodeOf(err))}

	var cliErr *model.CLIError
	if errors.As(err, &cliErr) {
		out.Message = cliErr.Message
		if cliErr.Err != nil {
			out.Detail = cliErr.Err.Error()
		}
	}

	var cmdErr *runner.CommandError
	if errors.As(err, &cmdErr) {
		out.Command = runner.Command{Args: cmdErr.Args}.String()
		code := cmdErr.ExitCode
		out.ExitCode = &code
		out.Log = cmdErr.LogPath
	}

	if jsonOutput {
		// stdout is reserved for the report, so errors go to stderr even
		// in JSON mode.
		data, _ := json.MarshalIndent(map[string]errorJSON{"error": out}, "", "  ")
		fmt.Fprintln(w, string(data))
		return
	}

	if out.Detail != "" {
		fmt.Fprintf(w, "Error: %s: %s\n", out.Message, out.Detail)
	} else {
		fmt.Fprintf(w, "Error: %s\n", out.Message)
	}
	if out.Log != "" {
		fmt.Fprintf(w, "  See %s\n", out.Log)
	}
}

// IsJSONOutput returns whether the --json flag is set.
// Subcommands use this to decide their output format.
func IsJSONOutput() bool {
	return jsonOutput
}
