package runner

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
)

// ErrEmptyCommand is returned when a Command has no argv.
var ErrEmptyCommand = errors.New("command has no arguments")

// Command describes a single external process invocation.
type Command struct {
	// Args is the argument vector. Args[0] is the executable and is
	// resolved against PATH.
	Args []string `json:"args"`

	// LogPath, if set, receives the full captured stdout after the
	// process exits. An existing file is truncated.
	LogPath string `json:"logPath,omitempty"`

	// AllowFailure turns off the success requirement. The zero value
	// requires the process to exit zero.
	AllowFailure bool `json:"allowFailure,omitempty"`

	// Dir is the working directory. Empty means the current directory.
	Dir string `json:"dir,omitempty"`
}

// String renders the argv for logs and error messages.
func (c Command) String() string {
	return strings.Join(c.Args, " ")
}

// Runner runs a Command to completion and returns its captured stdout.
//
// Implementations must block until the process has terminated and must
// return a *CommandError when the process exits non-zero and
// c.AllowFailure is false.
type Runner interface {
	Run(ctx context.Context, c Command) ([]byte, error)
}

// Func adapts an ordinary function to the Runner interface.
// Tests and dry runs use it in place of Exec.
type Func func(ctx context.Context, c Command) ([]byte, error)

// Run calls f(ctx, c).
func (f Func) Run(ctx context.Context, c Command) ([]byte, error) {
	return f(ctx, c)
}

// CommandError is the typed failure of a Command. It carries the argv,
// the process exit code and the path where its stdout was archived.
type CommandError struct {
	// Args is the argv that failed.
	Args []string

	// ExitCode is the process exit status, or -1 when the process
	// could not be started or was terminated by a signal.
	ExitCode int

	// LogPath is where the captured stdout was written, if anywhere.
	LogPath string

	// Err is the underlying error from os/exec.
	Err error
}

// Error satisfies the error interface.
func (e *CommandError) Error() string {
	msg := fmt.Sprintf("%q exited with status %d", strings.Join(e.Args, " "), e.ExitCode)
	if e.ExitCode < 0 && e.Err != nil {
		msg = fmt.Sprintf("%q failed: %v", strings.Join(e.Args, " "), e.Err)
	}
	if e.LogPath != "" {
		msg += " (stdout in " + e.LogPath + ")"
	}
	return msg
}

// Unwrap returns the underlying os/exec error.
func (e *CommandError) Unwrap() error {
	return e.Err
}

// ExitCodeOf returns the exit code carried by err, or -1 if err does not
// wrap a *CommandError. A nil error yields 0.
func ExitCodeOf(err error) int {
	if err == nil {
		return 0
	}
	var cmdErr *CommandError
	if errors.As(err, &cmdErr) {
		return cmdErr.ExitCode
	}
	return -1
}

// Exec runs commands as child processes via os/exec.
type Exec struct {
	// Stderr receives the child's standard error. Nil means os.Stderr.
	Stderr io.Writer

	// Env, if non-nil, replaces the inherited environment.
	Env []string
}

// NewExec returns an Exec wired to the current process's stderr.
func NewExec() *Exec {
	return &Exec{Stderr: os.Stderr}
}

// Run executes c and waits for it to finish.
//
// Stdout is buffered in full and returned. When c.LogPath is set the
// buffer is written there after the process exits, including when it
// exited non-zero, so a failed step still leaves its output behind.
// A failure to write the log is reported even if the process succeeded.
func (e *Exec) Run(ctx context.Context, c Command) ([]byte, error) {
	if len(c.Args) == 0 {
		return nil, ErrEmptyCommand
	}

	// CommandContext kills the child if ctx is cancelled (e.g. Ctrl-C).
	// There is no timeout: a hung process blocks until then.
	cmd := exec.CommandContext(ctx, c.Args[0], c.Args[1:]...)
	cmd.Dir = c.Dir
	if e.Env != nil {
		cmd.Env = e.Env
	}

	var stdout bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = e.Stderr
	if cmd.Stderr == nil {
		cmd.Stderr = os.Stderr
	}

	runErr := cmd.Run()
	out := stdout.Bytes()

	if c.LogPath != "" {
		if err := WriteLog(c.LogPath, out); err != nil {
			return out, err
		}
	}

	if runErr == nil {
		return out, nil
	}

	exitCode := -1
	var exitErr *exec.ExitError
	if errors.As(runErr, &exitErr) {
		exitCode = exitErr.ExitCode()
	}

	// A process that ran and exited non-zero is tolerated when the caller
	// opted out of the success requirement. Start failures never are.
	if c.AllowFailure && exitCode >= 0 {
		return out, nil
	}

	return out, &CommandError{
		Args:     append([]string(nil), c.Args...),
		ExitCode: exitCode,
		LogPath:  c.LogPath,
		Err:      runErr,
	}
}

// WriteLog writes captured stdout to path, truncating any existing file.
// The bytes are written unchanged. The parent directory must exist.
func WriteLog(path string, data []byte) error {
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write log %s: %w", path, err)
	}
	return nil
}
