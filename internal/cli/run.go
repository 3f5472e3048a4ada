// Package cli — run.go implements the "roundtrip run" command.
//
// The run command is the primary operation. It loads the configuration,
// checks that the backup container name is free, and hands the pipeline
// to the orchestrator:
//  1. Prepare the log dir, backup dir and staged build context
//  2. Build the test image
//  3. Run the backup script in a named container
//  4. Export that container to the archive and remove it
//  5. Run the restore script, which compares against the archive
//  6. Print the report (text or JSON), also on failure
package cli

import (
	"context"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/mmr-tortoise/roundtrip/internal/config"
	"github.com/mmr-tortoise/roundtrip/internal/docker"
	"github.com/mmr-tortoise/roundtrip/internal/model"
	"github.com/mmr-tortoise/roundtrip/internal/observability"
	"github.com/mmr-tortoise/roundtrip/internal/orchestrator"
	"github.com/mmr-tortoise/roundtrip/internal/revision"
	"github.com/mmr-tortoise/roundtrip/internal/runner"
)

// configFlags are the flags every command uses to locate and override
// the configuration.
type configFlags struct {
	configPath string // --config: explicit config file
	image      string // --image: image tag override
	container  string // --container: backup container name override
}

// runFlags holds the flag values for the run command.
type runFlags struct {
	configFlags
	replace       bool   // --replace: remove a container holding the fixed name
	skipPreflight bool   // --skip-preflight: do not contact the Docker API
	metricsFile   string // --metrics-file: Prometheus textfile output
}

// addConfigFlags registers the shared configuration flags on cmd.
func addConfigFlags(cmd *cobra.Command, flags *configFlags) {
	cmd.Flags().StringVarP(&flags.configPath, "config", "c", "", "Config file (default: roundtrip.{yaml,yml,toml,jsonc,json} in the current directory)")
	cmd.Flags().StringVar(&flags.image, "image", "", "Image tag to build and run")
	cmd.Flags().StringVar(&flags.container, "container", "", "Name of the backup container")
}

// addRunFlags registers the run flags on cmd. The root command and "run"
// share them.
func addRunFlags(cmd *cobra.Command, flags *runFlags) {
	addConfigFlags(cmd, &flags.configFlags)
	cmd.Flags().BoolVar(&flags.replace, "replace", false, "Force-remove an existing container with the backup container's name")
	cmd.Flags().BoolVar(&flags.skipPreflight, "skip-preflight", false, "Skip the container name check (no Docker API access)")
	cmd.Flags().StringVar(&flags.metricsFile, "metrics-file", "", "Write Prometheus text-format metrics to this file (relative to the current directory)")
}

// NewRunCommand creates the "run" cobra command.
// It is called from NewRootCommand to register as a subcommand.
func NewRunCommand() *cobra.Command {
	flags := &runFlags{}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the backup/export/restore round trip",
		Long: `Run the full round trip once and report the result.

The command builds the image, runs the backup script in a container named
after the configured namespace, exports that container to a tar archive,
removes it, and runs the restore script against the backup directory and
the archive. The restore script's exit status is the verdict.

Nothing is cleaned up afterwards. The report lists every artifact.

Examples:
  roundtrip run
  roundtrip run --config ci.yaml --json
  roundtrip run --replace --metrics-file /var/lib/node_exporter/roundtrip.prom`,

		Args: cobra.NoArgs,

		RunE: func(cmd *cobra.Command, args []string) error {
			return runRun(cmd.Context(), cmd.OutOrStdout(), flags)
		},
	}

	addRunFlags(cmd, flags)

	return cmd
}

// loadConfig loads the configuration from the working directory and
// applies the flag overrides on top of file and environment values.
func loadConfig(flags *configFlags) (config.Config, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return config.Config{}, model.WrapCLIError(model.ExitGeneralError, "failed to get current directory", err)
	}

	cfg, err := config.Load(flags.configPath, cwd, os.LookupEnv)
	if err != nil {
		return config.Config{}, err
	}

	if flags.image != "" {
		cfg.Namespace.Image = flags.image
	}
	if flags.container != "" {
		cfg.Namespace.Container = flags.container
	}

	return cfg, nil
}

// applyRunFlags copies the run-only flags into cfg.
func applyRunFlags(cfg *config.Config, flags *runFlags) {
	if flags.replace {
		cfg.Preflight.Replace = true
	}
	if flags.skipPreflight {
		cfg.Preflight.Skip = true
	}
	if flags.metricsFile != "" {
		cfg.Artifacts.MetricsFile = flagPath(flags.metricsFile)
	}
}

// flagPath makes a path given on the command line absolute against the
// working directory. Config-file paths resolve against the file's own
// directory instead, and cfg.Resolve leaves absolute paths alone.
func flagPath(p string) string {
	if abs, err := filepath.Abs(p); err == nil {
		return abs
	}
	return p
}

// runRun is the main orchestration function for the run command.
func runRun(ctx context.Context, stdout io.Writer, flags *runFlags) error {
	// Step 1: Load, override and validate the configuration.
	cfg, err := loadConfig(&flags.configFlags)
	if err != nil {
		return err
	}
	applyRunFlags(&cfg, flags)
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger := observability.NewLogger(os.Stderr, cfg.LogLevel, verbose)
	if cfg.Path != "" {
		logger.Debug().Str("path", cfg.Path).Msg("Loaded configuration")
	}

	opts, err := orchestrator.NewOptions(cfg)
	if err != nil {
		return err
	}

	// Step 2: Wire observers and the source revision detector.
	recorder := observability.NewRecorder()
	options := []orchestrator.Option{
		orchestrator.WithObserver(observability.LogObserver{Logger: logger}),
		orchestrator.WithObserver(recorder),
		orchestrator.WithRevision(func(ctx context.Context) (model.Revision, error) {
			return revision.Detect(ctx, &runner.Exec{Stderr: io.Discard}, opts.SourceRoot)
		}),
	}

	// Step 3: Connect to the Docker API for the container name preflight.
	if !cfg.Preflight.Skip {
		cli, err := docker.NewClient()
		if err != nil {
			return err // NewClient already returns CLIError with ExitDockerNotRunning
		}
		defer func() { _ = cli.Close() }()

		if err := cli.Ping(ctx); err != nil {
			return err
		}
		logger.Debug().Msg("Connected to Docker daemon")

		options = append(options, orchestrator.WithNameChecker(cli))
	}

	// Step 4: Run the pipeline. The report is printed whatever the outcome.
	report, runErr := orchestrator.New(opts, runner.NewExec(), options...).Run(ctx)

	if cfg.Artifacts.MetricsFile != "" {
		path := cfg.Resolve(cfg.Artifacts.MetricsFile)
		if err := recorder.WriteTextfile(path); err != nil {
			logger.Warn().Err(err).Str("path", path).Msg("Failed to write metrics")
		} else {
			logger.Debug().Str("path", path).Msg("Wrote metrics")
		}
	}

	if err := printReport(stdout, report); err != nil && runErr == nil {
		return model.WrapCLIError(model.ExitGeneralError, "failed to print report", err)
	}

	return runErr
}
