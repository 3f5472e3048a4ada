package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/mmr-tortoise/roundtrip/internal/docker"
	"github.com/mmr-tortoise/roundtrip/internal/model"
	"github.com/mmr-tortoise/roundtrip/internal/provision"
	"github.com/mmr-tortoise/roundtrip/internal/runner"
	"github.com/mmr-tortoise/roundtrip/internal/staging"
)

// NameChecker looks up and removes containers by name. *docker.Client
// satisfies it; a nil NameChecker disables the preflight step.
type NameChecker interface {
	FindContainerByName(ctx context.Context, name string) (*docker.ContainerInfo, error)
	RemoveContainer(ctx context.Context, containerID string) error
}

// StepObserver is notified as the pipeline progresses.
type StepObserver interface {
	StepStarted(step model.Step, args []string)
	StepFinished(result model.StepResult)
	RunFinished(report *model.RunReport)
}

// RevisionFunc reports the source revision under test.
type RevisionFunc func(ctx context.Context) (model.Revision, error)

// Orchestrator runs the pipeline for one set of Options.
// It is not safe for concurrent use, and two orchestrators sharing a
// namespace or build context must not run at the same time.
type Orchestrator struct {
	opts      Options
	runner    runner.Runner
	checker   NameChecker
	observers []StepObserver
	revision  RevisionFunc
	now       func() time.Time
	newID     func() string
}

// Option customises an Orchestrator.
type Option func(*Orchestrator)

// WithNameChecker enables the container-name preflight check.
func WithNameChecker(c NameChecker) Option {
	return func(o *Orchestrator) { o.checker = c }
}

// WithObserver adds a progress observer.
func WithObserver(obs StepObserver) Option {
	return func(o *Orchestrator) { o.observers = append(o.observers, obs) }
}

// WithRevision sets the source revision detector.
func WithRevision(f RevisionFunc) Option {
	return func(o *Orchestrator) { o.revision = f }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) { o.now = now }
}

// WithRunID replaces the ULID run ID generator.
func WithRunID(f func() string) Option {
	return func(o *Orchestrator) { o.newID = f }
}

// New creates an Orchestrator that executes steps through r.
func New(opts Options, r runner.Runner, options ...Option) *Orchestrator {
	o := &Orchestrator{
		opts:   opts,
		runner: r,
		now:    time.Now,
		newID:  func() string { return ulid.Make().String() },
	}
	for _, opt := range options {
		opt(o)
	}
	return o
}

// Run executes the full pipeline once.
//
// The returned report is never nil: on failure it records which step
// failed and which artifacts exist. The error is a *model.CLIError whose
// code identifies the failing step's class.
func (o *Orchestrator) Run(ctx context.Context) (*model.RunReport, error) {
	report := &model.RunReport{
		RunID:     o.newID(),
		Namespace: o.opts.Namespace,
		StartedAt: o.now(),
		Artifacts: model.Artifacts{
			ArchivePath:  o.opts.ArchivePath,
			LogDir:       o.opts.LogDir,
			BuildContext: o.opts.BuildContext,
			StagingDir:   o.opts.StagingDir,
		},
	}
	for _, s := range model.Steps {
		report.Steps = append(report.Steps, model.StepResult{Step: s, Status: model.StepSkipped, ExitCode: -1})
	}

	if o.revision != nil {
		// Informational only; an unknown revision never fails a run.
		if rev, err := o.revision(ctx); err == nil {
			report.Revision = rev
		}
	}

	err := o.pipeline(ctx, report)

	report.FinishedAt = o.now()
	report.Passed = err == nil
	if info, statErr := os.Stat(o.opts.ArchivePath); statErr == nil && info.Mode().IsRegular() {
		report.ArchiveBytes = info.Size()
	}

	for _, obs := range o.observers {
		obs.RunFinished(report)
	}

	return report, err
}

// pipeline runs each step in order and stops at the first failure.
func (o *Orchestrator) pipeline(ctx context.Context, report *model.RunReport) error {
	if o.checker != nil {
		if err := o.step(report, model.StepPreflight, nil, "", func() (string, error) {
			return o.preflight(ctx)
		}); err != nil {
			return err
		}
	}

	if err := o.step(report, model.StepPrepare, nil, "", func() (string, error) {
		dir, err := o.prepare()
		report.Artifacts.BackupDir = dir
		if err != nil {
			return "", err
		}
		return "backup directory " + dir, nil
	}); err != nil {
		return err
	}

	cmds := o.commands(report.Artifacts.BackupDir, report.RunID, report.StartedAt)
	for _, pc := range cmds {
		if err := o.step(report, pc.Step, pc.Command.Args, pc.Command.LogPath, func() (string, error) {
			_, err := o.runner.Run(ctx, pc.Command)
			return "", err
		}); err != nil {
			return err
		}
	}

	return nil
}

// step runs fn as the given pipeline step, records its result in report
// and notifies observers. A failure is wrapped in a *model.CLIError.
func (o *Orchestrator) step(report *model.RunReport, step model.Step, args []string, logPath string, fn func() (string, error)) error {
	for _, obs := range o.observers {
		obs.StepStarted(step, args)
	}

	start := o.now()
	detail, err := fn()

	result := model.StepResult{
		Step:     step,
		Status:   model.StepSucceeded,
		Args:     args,
		LogPath:  logPath,
		ExitCode: runner.ExitCodeOf(err),
		Duration: o.now().Sub(start),
		Detail:   detail,
	}

	var wrapped error
	if err != nil {
		result.Status = model.StepFailed
		result.Error = err.Error()

		code := step.FailureCode()
		var cliErr *model.CLIError
		if errors.As(err, &cliErr) {
			code = cliErr.Code
		}
		wrapped = model.WrapCLIError(code, fmt.Sprintf("%s step failed", step), err)
	}

	for i := range report.Steps {
		if report.Steps[i].Step == step {
			report.Steps[i] = result
		}
	}
	for _, obs := range o.observers {
		obs.StepFinished(result)
	}

	return wrapped
}

// preflight fails if a container already uses the fixed name, unless
// Replace is set, in which case that container is force-removed.
func (o *Orchestrator) preflight(ctx context.Context) (string, error) {
	name := o.opts.Namespace.Container

	existing, err := o.checker.FindContainerByName(ctx, name)
	if err != nil {
		return "", engineError("failed to look up container "+name, err)
	}
	if existing == nil {
		return "", nil
	}

	if !o.opts.Replace {
		owner := "not created by roundtrip"
		if existing.Managed() {
			owner = "left over from an earlier roundtrip run"
			if rl, err := docker.ParseLabels(existing.Labels); err == nil {
				owner = fmt.Sprintf("left over from roundtrip run %s", rl.RunID)
			}
		}
		return "", model.NewCLIError(model.ExitNameCollision, fmt.Sprintf(
			"container name %q is already in use by %s (%s, %s); remove it with `roundtrip clean` or rerun with --replace",
			name, existing.ShortID(), existing.State, owner,
		))
	}

	if err := o.checker.RemoveContainer(ctx, existing.ID); err != nil {
		return "", engineError("failed to remove container "+name, err)
	}
	return fmt.Sprintf("removed stale container %s (%s)", name, existing.ShortID()), nil
}

// prepare creates the log directory, the backup directory and the staged
// build context, and returns the backup directory.
func (o *Orchestrator) prepare() (string, error) {
	if err := os.MkdirAll(o.opts.LogDir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create log directory: %w", err)
	}

	dir, err := provision.BackupDir(o.opts.TempParent, o.opts.TempPrefix)
	if err != nil {
		return "", err
	}

	if err := staging.Stage(staging.Layout{
		SourceRoot: o.opts.SourceRoot,
		Tree:       o.opts.SourceTree,
		Manifests:  o.opts.Manifests,
		StagingDir: o.opts.StagingDir,
	}); err != nil {
		return dir, err
	}

	return dir, nil
}

// engineError attributes a daemon API failure to the engine unless it
// already carries an exit code.
func engineError(msg string, err error) error {
	var cliErr *model.CLIError
	if errors.As(err, &cliErr) {
		return err
	}
	return model.WrapCLIError(model.ExitDockerNotRunning, msg, err)
}
