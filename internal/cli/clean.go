// Package cli — clean.go implements the "roundtrip clean" command.
//
// A run that fails after the backup container was created leaves that
// container behind, and the next run then refuses to start because the
// fixed name is taken. The clean command force-removes it through the
// Docker API.
//
// By default, the command prompts for confirmation before proceeding.
// The --force flag skips the confirmation prompt.
package cli

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mmr-tortoise/roundtrip/internal/docker"
	"github.com/mmr-tortoise/roundtrip/internal/model"
	"github.com/mmr-tortoise/roundtrip/internal/observability"
)

// cleanFlags holds the flag values for the clean command.
type cleanFlags struct {
	configFlags

	// force skips the interactive confirmation prompt when true.
	force bool
}

// NewCleanCommand creates the "clean" cobra command.
// It is called from NewRootCommand to register as a subcommand.
func NewCleanCommand() *cobra.Command {
	flags := &cleanFlags{}

	cmd := &cobra.Command{
		Use:   "clean",
		Short: "Remove a leftover backup container",
		Long: `Remove the container that holds the configured backup container name.

Only the container is removed. Backup directories, the archive, logs and
the staged build context are left alone.

Unless --force is specified, the command prompts for confirmation.

Examples:
  roundtrip clean
  roundtrip clean --force
  roundtrip clean --container my-test-backup`,

		Args: cobra.NoArgs,

		RunE: func(cmd *cobra.Command, args []string) error {
			return runClean(cmd.Context(), cmd.InOrStdin(), cmd.OutOrStdout(), flags)
		},
	}

	addConfigFlags(cmd, &flags.configFlags)
	cmd.Flags().BoolVarP(&flags.force, "force", "f", false, "Remove without confirmation")

	return cmd
}

// runClean is the main logic function for the clean command.
func runClean(ctx context.Context, stdin io.Reader, stdout io.Writer, flags *cleanFlags) error {
	// Step 1: Resolve the container name.
	cfg, err := loadConfig(&flags.configFlags)
	if err != nil {
		return err
	}
	ns := cfg.NamespaceValue()
	if err := ns.Validate(); err != nil {
		return model.WrapCLIError(model.ExitConfigInvalid, "invalid namespace", err)
	}

	logger := observability.NewLogger(os.Stderr, cfg.LogLevel, verbose)

	// Step 2: Connect to Docker daemon.
	cli, err := docker.NewClient()
	if err != nil {
		return err
	}
	defer func() { _ = cli.Close() }()

	if err := cli.Ping(ctx); err != nil {
		return err
	}
	logger.Debug().Msg("Connected to Docker daemon")

	// Step 3: Find the container.
	info, err := cli.FindContainerByName(ctx, ns.Container)
	if err != nil {
		return err
	}
	if info == nil {
		printCleanResult(stdout, ns.Container, nil)
		return nil
	}
	logger.Debug().Str("id", info.ShortID()).Str("state", info.State).Bool("managed", info.Managed()).Msg("Found container")

	// Step 4: Prompt for confirmation unless --force is specified.
	if !flags.force {
		confirmed, err := promptConfirmation(stdin, stdout, info)
		if err != nil {
			return model.WrapCLIError(model.ExitGeneralError, "failed to read user input", err)
		}
		if !confirmed {
			return model.NewCLIError(model.ExitGeneralError, "operation cancelled by user")
		}
	}

	// Step 5: Remove it.
	if err := cli.RemoveContainer(ctx, info.ID); err != nil {
		return err
	}

	printCleanResult(stdout, ns.Container, info)
	return nil
}

// promptConfirmation asks the user to confirm the removal.
// It reads a single line from in and checks for "y" or "yes".
func promptConfirmation(in io.Reader, out io.Writer, info *docker.ContainerInfo) (bool, error) {
	fmt.Fprintf(out, "About to remove container %q (%s, %s)\n", info.Name, info.ShortID(), info.State)
	if !info.Managed() {
		fmt.Fprintln(out, "  Warning: this container was not created by roundtrip")
	}
	fmt.Fprint(out, "\nContinue? [y/N] ")

	// bufio.Scanner handles different line endings across platforms
	// (LF on Unix, CRLF on Windows).
	scanner := bufio.NewScanner(in)
	if scanner.Scan() {
		answer := strings.TrimSpace(strings.ToLower(scanner.Text()))
		return answer == "y" || answer == "yes", nil
	}

	// If stdin is closed or an error occurred, treat it as "no".
	if err := scanner.Err(); err != nil {
		return false, err
	}

	return false, nil
}

// printCleanResult outputs the clean result in text or JSON format.
// A nil info means no container with the name existed.
func printCleanResult(w io.Writer, name string, info *docker.ContainerInfo) {
	if IsJSONOutput() {
		result := map[string]interface{}{
			"name":    name,
			"removed": info != nil,
		}
		if info != nil {
			result["id"] = info.ID
			result["managed"] = info.Managed()
		}
		data, _ := json.MarshalIndent(result, "", "  ")
		fmt.Fprintln(w, string(data))
		return
	}

	if info == nil {
		fmt.Fprintf(w, "No container named %q found\n", name)
		return
	}
	fmt.Fprintf(w, "Removed container %q (%s)\n", name, info.ShortID())
}
