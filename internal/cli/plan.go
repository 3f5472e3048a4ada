// Package cli — plan.go implements the "roundtrip plan" command.
//
// The plan command prints the engine commands that "roundtrip run" would
// execute with the current configuration, without creating anything or
// contacting the Docker daemon. Values that only exist once a run starts
// (the backup directory and the run ID) are shown as placeholders.
package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/mmr-tortoise/roundtrip/internal/orchestrator"
)

// NewPlanCommand creates the "plan" cobra command.
// It is called from NewRootCommand to register as a subcommand.
func NewPlanCommand() *cobra.Command {
	flags := &configFlags{}

	cmd := &cobra.Command{
		Use:   "plan",
		Short: "Show the commands a run would execute",
		Long: `Show the docker commands "roundtrip run" would execute, in order,
with the log file each one writes to.

Nothing is created and the Docker daemon is not contacted.

Examples:
  roundtrip plan
  roundtrip plan --image my-test --json`,

		Args: cobra.NoArgs,

		RunE: func(cmd *cobra.Command, args []string) error {
			return runPlan(cmd.Context(), cmd.OutOrStdout(), flags)
		},
	}

	addConfigFlags(cmd, flags)

	return cmd
}

// runPlan is the main logic function for the plan command.
func runPlan(_ context.Context, stdout io.Writer, flags *configFlags) error {
	cfg, err := loadConfig(flags)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	opts, err := orchestrator.NewOptions(cfg)
	if err != nil {
		return err
	}

	// Planning never executes anything, so no runner is needed.
	plan := orchestrator.New(opts, nil).Plan()

	if IsJSONOutput() {
		return printPlanJSON(stdout, plan)
	}
	printPlanText(stdout, plan)
	return nil
}

// printPlanJSON outputs the plan as structured JSON.
// The top-level key is "steps" containing an array of planned commands.
func printPlanJSON(w io.Writer, plan []orchestrator.PlannedCommand) error {
	type resultJSON struct {
		Steps []orchestrator.PlannedCommand `json:"steps"`
	}

	data, err := json.MarshalIndent(resultJSON{Steps: plan}, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}

// printPlanText outputs one line per step, with the output redirection
// shown shell-style.
//
//	build    docker build -t roundtrip-test -f /w/src/Dockerfile /w/src > /w/logs/docker.build.log
func printPlanText(w io.Writer, plan []orchestrator.PlannedCommand) {
	for _, pc := range plan {
		fmt.Fprintf(w, "%-8s %s\n", pc.Step.String(), FormatPlannedCommand(pc))
	}
}

// FormatPlannedCommand renders a planned command's argv followed by its
// stdout destination, if any.
func FormatPlannedCommand(pc orchestrator.PlannedCommand) string {
	if pc.Command.LogPath == "" {
		return pc.Command.String()
	}
	return pc.Command.String() + " > " + pc.Command.LogPath
}
