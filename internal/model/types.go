package model

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

// Step identifies one stage of the backup round-trip pipeline.
// The stages always execute in the order they are declared below:
//
//	preflight → prepare → build → backup → export → remove → restore
//
// A failure in any stage aborts every stage after it.
type Step string

const (
	// StepPreflight checks that the fixed container name is free.
	StepPreflight Step = "preflight"

	// StepPrepare creates the log directory, the backup directory and
	// the staged build context.
	StepPrepare Step = "prepare"

	// StepBuild builds the test image from the staged build context.
	StepBuild Step = "build"

	// StepBackup runs the named container that executes the backup script.
	StepBackup Step = "backup"

	// StepExport exports the stopped backup container's filesystem.
	StepExport Step = "export"

	// StepRemove removes the named backup container so the name is free.
	StepRemove Step = "remove"

	// StepRestore runs a disposable container that restores and compares.
	StepRestore Step = "restore"
)

// Steps lists all pipeline steps in execution order.
var Steps = []Step{
	StepPreflight,
	StepPrepare,
	StepBuild,
	StepBackup,
	StepExport,
	StepRemove,
	StepRestore,
}

// String returns the string representation of Step.
func (s Step) String() string {
	return string(s)
}

// IsValid checks whether the Step value is one of the pipeline steps.
func (s Step) IsValid() bool {
	for _, known := range Steps {
		if s == known {
			return true
		}
	}
	return false
}

// FailureCode returns the exit code the CLI reports when this step fails.
// Export and remove share a code because both belong to the same
// "export & cleanup" failure class.
func (s Step) FailureCode() ExitCode {
	switch s {
	case StepPreflight:
		return ExitNameCollision
	case StepPrepare:
		return ExitProvisionFailed
	case StepBuild:
		return ExitBuildFailed
	case StepBackup:
		return ExitBackupFailed
	case StepExport, StepRemove:
		return ExitExportFailed
	case StepRestore:
		return ExitRestoreFailed
	default:
		return ExitGeneralError
	}
}

// StepStatus is the outcome of a single pipeline step.
type StepStatus string

const (
	// StepSucceeded means the step's process exited zero.
	StepSucceeded StepStatus = "succeeded"

	// StepFailed means the step failed and aborted the run.
	StepFailed StepStatus = "failed"

	// StepSkipped means the step never ran because an earlier step failed.
	StepSkipped StepStatus = "skipped"
)

// String returns the string representation of StepStatus.
func (s StepStatus) String() string {
	return string(s)
}

// Namespace holds the fixed names a run uses for its container engine
// resources. The image tag is reused by every run; the container name is
// unique only within a single run's sequence.
//
// Namespace is passed explicitly through the call chain so that separate
// orchestrator instances can use distinct names.
type Namespace struct {
	// Image is the tag applied to the built test image.
	Image string `json:"image"`

	// Container is the name given to the backup container.
	Container string `json:"container"`
}

// containerNameRegex mirrors the Docker daemon's own container name rule.
var containerNameRegex = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9_.-]*$`)

// imageRefRegex accepts a lower-case repository path with an optional tag.
// It is deliberately narrower than the full reference grammar.
var imageRefRegex = regexp.MustCompile(`^[a-z0-9]+([._/-][a-z0-9]+)*(:[A-Za-z0-9_][A-Za-z0-9_.-]{0,127})?$`)

// Validate checks that both names are acceptable to the container engine.
func (n Namespace) Validate() error {
	if n.Image == "" {
		return fmt.Errorf("image name must not be empty")
	}
	if !imageRefRegex.MatchString(n.Image) {
		return fmt.Errorf("invalid image name %q: must be a lower-case repository name with an optional tag", n.Image)
	}
	if n.Container == "" {
		return fmt.Errorf("container name must not be empty")
	}
	if !containerNameRegex.MatchString(n.Container) {
		return fmt.Errorf("invalid container name %q: must match [a-zA-Z0-9][a-zA-Z0-9_.-]*", n.Container)
	}
	return nil
}

// Artifacts lists every filesystem location a run produces. All of them
// are left in place after the run, whether it passed or failed.
type Artifacts struct {
	// BackupDir is the canonical path of the per-run backup directory.
	BackupDir string `json:"backupDir"`

	// ArchivePath is the absolute path of the exported container archive.
	ArchivePath string `json:"archivePath"`

	// LogDir holds one captured-stdout file per step.
	LogDir string `json:"logDir"`

	// BuildContext is the directory passed to the image build.
	BuildContext string `json:"buildContext"`

	// StagingDir is the directory inside BuildContext that receives
	// the fresh copy of the tool's source on every run.
	StagingDir string `json:"stagingDir"`
}

// StepResult records what happened when a single step ran.
type StepResult struct {
	// Step is the pipeline step this result belongs to.
	Step Step `json:"step"`

	// Status is the outcome of the step.
	Status StepStatus `json:"status"`

	// Args is the argv of the external process, if the step ran one.
	Args []string `json:"args,omitempty"`

	// LogPath is where the step's stdout was captured, if anywhere.
	LogPath string `json:"logPath,omitempty"`

	// ExitCode is the external process's exit status. -1 means the
	// process did not report one (it was never started or was killed).
	ExitCode int `json:"exitCode"`

	// Duration is the wall-clock time the step took.
	Duration time.Duration `json:"duration"`

	// Error holds the failure message for failed steps.
	Error string `json:"error,omitempty"`

	// Detail is an optional human-readable note about what the step did.
	Detail string `json:"detail,omitempty"`
}

// Revision describes the source tree under test.
type Revision struct {
	// Commit is the full commit hash, empty when unknown.
	Commit string `json:"commit,omitempty"`

	// Dirty reports uncommitted changes in the source tree.
	Dirty bool `json:"dirty"`
}

// String returns the short commit with a "-dirty" suffix when applicable.
func (r Revision) String() string {
	if r.Commit == "" {
		return "unknown"
	}
	short := r.Commit
	if len(short) > 12 {
		short = short[:12]
	}
	if r.Dirty {
		return short + "-dirty"
	}
	return short
}

// RunReport is the summary of one complete or aborted run.
type RunReport struct {
	// RunID uniquely identifies the run (a ULID).
	RunID string `json:"runId"`

	// Namespace is the image and container naming used by the run.
	Namespace Namespace `json:"namespace"`

	// Artifacts lists the retained filesystem locations.
	Artifacts Artifacts `json:"artifacts"`

	// Steps holds one result per pipeline step, in execution order.
	Steps []StepResult `json:"steps"`

	// Revision is the source revision under test.
	Revision Revision `json:"revision"`

	// ArchiveBytes is the size of the exported archive, 0 if absent.
	ArchiveBytes int64 `json:"archiveBytes"`

	// StartedAt and FinishedAt bracket the run.
	StartedAt  time.Time `json:"startedAt"`
	FinishedAt time.Time `json:"finishedAt"`

	// Passed is true only when every step succeeded.
	Passed bool `json:"passed"`
}

// FailedStep returns the first failed step, if any.
func (r *RunReport) FailedStep() (StepResult, bool) {
	for _, s := range r.Steps {
		if s.Status == StepFailed {
			return s, true
		}
	}
	return StepResult{}, false
}

// Result returns "PASS" or "FAIL" for human-readable output.
func (r *RunReport) Result() string {
	if r.Passed {
		return "PASS"
	}
	return "FAIL"
}

// ExitCode defines standard CLI exit codes. These codes allow scripts and
// CI systems to tell which class of failure aborted a run.
type ExitCode int

const (
	// ExitSuccess indicates the full sequence completed.
	ExitSuccess ExitCode = 0

	// ExitGeneralError indicates an unspecified error occurred.
	ExitGeneralError ExitCode = 1

	// ExitConfigInvalid indicates the configuration could not be loaded
	// or failed validation.
	ExitConfigInvalid ExitCode = 2

	// ExitDockerNotRunning indicates the Docker daemon is not accessible.
	ExitDockerNotRunning ExitCode = 3

	// ExitProvisionFailed indicates the log directory, backup directory
	// or staged build context could not be created.
	ExitProvisionFailed ExitCode = 4

	// ExitBuildFailed indicates the image build exited non-zero.
	ExitBuildFailed ExitCode = 5

	// ExitBackupFailed indicates the backup container exited non-zero.
	ExitBackupFailed ExitCode = 6

	// ExitExportFailed indicates the archive export or the container
	// removal failed.
	ExitExportFailed ExitCode = 7

	// ExitRestoreFailed indicates the restore-and-compare container
	// exited non-zero.
	ExitRestoreFailed ExitCode = 8

	// ExitNameCollision indicates a container with the fixed name
	// already exists, typically left over from an earlier failed run.
	ExitNameCollision ExitCode = 9
)

// CLIError is a custom error type that carries an exit code.
// This allows the CLI layer to translate domain errors into
// appropriate process exit codes.
type CLIError struct {
	// Code is the exit code to return to the OS.
	Code ExitCode

	// Message is the human-readable error description.
	Message string

	// Err is the underlying error, if any.
	Err error
}

// Error satisfies the error interface. It returns the human-readable
// error message, optionally including the underlying error.
func (e *CLIError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the underlying error for use with errors.Is/errors.As.
func (e *CLIError) Unwrap() error {
	return e.Err
}

// NewCLIError creates a new CLIError with the given exit code and message.
func NewCLIError(code ExitCode, message string) *CLIError {
	return &CLIError{Code: code, Message: message}
}

// WrapCLIError creates a new CLIError that wraps an existing error.
func WrapCLIError(code ExitCode, message string, err error) *CLIError {
	return &CLIError{Code: code, Message: message, Err: err}
}

// ParseStep converts a string to a Step.
// Returns an error if the string does not match any pipeline step.
func ParseStep(s string) (Step, error) {
	step := Step(strings.ToLower(s))
	if !step.IsValid() {
		return "", fmt.Errorf("invalid step: %q", s)
	}
	return step, nil
}
