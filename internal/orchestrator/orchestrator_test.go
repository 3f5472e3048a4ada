package orchestrator

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmr-tortoise/roundtrip/internal/config"
	"github.com/mmr-tortoise/roundtrip/internal/docker"
	"github.com/mmr-tortoise/roundtrip/internal/model"
	"github.com/mmr-tortoise/roundtrip/internal/runner"
)

// fakeEngine stands in for the docker CLI. It records every command,
// writes captured stdout to the log path exactly like runner.Exec does,
// and fails the verbs listed in failOn with the given exit code.
type fakeEngine struct {
	calls      []runner.Command
	failOn     map[string]int
	exportData []byte
}

// verb classifies a docker argv: build, run-backup, export, rm or run-restore.
func verb(args []string) string {
	if len(args) < 2 {
		return ""
	}
	if args[1] == "run" {
		for _, a := range args {
			if a == "--rm" {
				return "run-restore"
			}
		}
		return "run-backup"
	}
	return args[1]
}

func (f *fakeEngine) Run(_ context.Context, c runner.Command) ([]byte, error) {
	f.calls = append(f.calls, c)

	v := verb(c.Args)
	out := []byte(v + " output\n")
	if v == "export" && f.exportData != nil {
		out = f.exportData
	}
	if c.LogPath != "" {
		if err := runner.WriteLog(c.LogPath, out); err != nil {
			return out, err
		}
	}
	if code, ok := f.failOn[v]; ok {
		return out, &runner.CommandError{Args: c.Args, ExitCode: code, LogPath: c.LogPath}
	}
	return out, nil
}

// verbs returns the classified verbs of all recorded calls.
func (f *fakeEngine) verbs() []string {
	var vs []string
	for _, c := range f.calls {
		vs = append(vs, verb(c.Args))
	}
	return vs
}

// fakeChecker is an in-memory NameChecker.
type fakeChecker struct {
	existing *docker.ContainerInfo
	findErr  error
	removed  []string
}

func (f *fakeChecker) FindContainerByName(_ context.Context, name string) (*docker.ContainerInfo, error) {
	if f.findErr != nil {
		return nil, f.findErr
	}
	if f.existing != nil && f.existing.Name == name {
		return f.existing, nil
	}
	return nil, nil
}

func (f *fakeChecker) RemoveContainer(_ context.Context, id string) error {
	f.removed = append(f.removed, id)
	f.existing = nil
	return nil
}

// recordingObserver keeps the order of observer callbacks.
type recordingObserver struct {
	started  []model.Step
	finished []model.StepResult
	report   *model.RunReport
}

func (r *recordingObserver) StepStarted(step model.Step, _ []string) { r.started = append(r.started, step) }
func (r *recordingObserver) StepFinished(res model.StepResult) { r.finished = append(r.finished, res) }
func (r *recordingObserver) RunFinished(report *model.RunReport) { r.report = report }

// fakeClock returns a clock that advances one second per call.
func fakeClock() func() time.Time {
	t := time.Date(2026, 10, 17, 12, 0, 0, 0, time.UTC)
	return func() time.Time {
		t = t.Add(time.Second)
		return t
	}
}

// setupWorkspace creates a tool repository and a docker-test directory
// and returns Options pointing at them.
func setupWorkspace(t *testing.T) Options {
	t.Helper()

	repo := t.TempDir()
	mustWrite(t, filepath.Join(repo, "src", "main.rs"), "fn main() {}\n")
	mustWrite(t, filepath.Join(repo, "src", "backend", "file.rs"), "// backend\n")
	mustWrite(t, filepath.Join(repo, "Cargo.toml"), "[package]\n")
	mustWrite(t, filepath.Join(repo, "Cargo.lock"), "# lock\n")

	work := t.TempDir()
	contextDir := filepath.Join(work, "src")
	mustWrite(t, filepath.Join(contextDir, "Dockerfile"), "FROM rust\n")
	mustWrite(t, filepath.Join(contextDir, "create-backup.sh"), "#!/bin/bash\n")
	mustWrite(t, filepath.Join(contextDir, "restore-backup.sh"), "#!/bin/bash\n")

	return Options{
		Namespace:     model.Namespace{Image: "rt-test", Container: "rt-test-backup"},
		Binary:        "docker",
		SourceRoot:    repo,
		SourceTree:    "src",
		Manifests:     []string{"Cargo.toml", "Cargo.lock"},
		BuildContext:  contextDir,
		Dockerfile:    filepath.Join(contextDir, "Dockerfile"),
		StagingDir:    filepath.Join(contextDir, "tool-src"),
		Shell:         "bash",
		BackupScript:  "create-backup.sh",
		RestoreScript: "restore-backup.sh",
		BackupMount:   "/backup",
		ArchiveMount:  "/exported-backup-image.tar",
		LogDir:        filepath.Join(work, "logs"),
		ArchivePath:   filepath.Join(work, "exported-backup-image.tar"),
		TempParent:    t.TempDir(),
		TempPrefix:    "rt-backup-",
	}
}

func mustWrite(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func newTestOrchestrator(opts Options, engine *fakeEngine, extra ...Option) *Orchestrator {
	base := []Option{WithClock(fakeClock()), WithRunID(func() string { return "run-1" })}
	return New(opts, engine, append(base, extra...)...)
}

// requireExitCode asserts err is a CLIError with the given code.
func requireExitCode(t *testing.T, err error, want model.ExitCode) {
	t.Helper()
	require.Error(t, err)
	var cliErr *model.CLIError
	require.True(t, errors.As(err, &cliErr), "error should be a CLIError: %v", err)
	assert.Equal(t, want, cliErr.Code)
}

func stepStatus(report *model.RunReport, step model.Step) model.StepStatus {
	for _, s := range report.Steps {
		if s.Step == step {
			return s.Status
		}
	}
	return ""
}

func listDir(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}

// TestRun_AllStepsSucceed verifies the happy path: every command runs in
// order with the expected argv, and every artifact exists afterwards.
func TestRun_AllStepsSucceed(t *testing.T) {
	opts := setupWorkspace(t)
	engine := &fakeEngine{}

	report, err := newTestOrchestrator(opts, engine).Run(context.Background())
	require.NoError(t, err)
	require.NotNil(t, report)

	assert.True(t, report.Passed)
	assert.Equal(t, "run-1", report.RunID)
	assert.Equal(t, []string{"build", "run-backup", "export", "rm", "run-restore"}, engine.verbs())

	backupDir := report.Artifacts.BackupDir
	require.NotEmpty(t, backupDir)
	assert.DirExists(t, backupDir)
	assert.FileExists(t, opts.ArchivePath)
	assert.DirExists(t, opts.BuildContext)
	assert.FileExists(t, filepath.Join(opts.StagingDir, "src", "main.rs"))
	assert.FileExists(t, filepath.Join(opts.StagingDir, "Cargo.lock"))
	assert.ElementsMatch(t,
		[]string{BuildLogName, BackupLogName, RestoreLogName},
		listDir(t, opts.LogDir),
		"log dir should hold exactly one file per text-producing step")

	assert.Equal(t, []string{
		"docker", "build", "-t", "rt-test", "-f", opts.Dockerfile, opts.BuildContext,
	}, engine.calls[0].Args)
	assert.Equal(t, []string{
		"docker", "run", "-v", backupDir + ":/backup", "--name", "rt-test-backup",
		"--label", "roundtrip.created-at=2026-10-17T12:00:01Z",
		"--label", "roundtrip.image=rt-test",
		"--label", "roundtrip.managed-by=roundtrip",
		"--label", "roundtrip.run-id=run-1",
		"rt-test", "bash", "create-backup.sh",
	}, engine.calls[1].Args)
	assert.Equal(t, []string{"docker", "export", "rt-test-backup"}, engine.calls[2].Args)
	assert.Equal(t, opts.ArchivePath, engine.calls[2].LogPath)
	assert.Equal(t, []string{"docker", "rm", "rt-test-backup"}, engine.calls[3].Args)
	assert.False(t, engine.calls[3].AllowFailure, "container removal must still require success")
	assert.Equal(t, []string{
		"docker", "run",
		"-v", backupDir + ":/backup",
		"-v", opts.ArchivePath + ":/exported-backup-image.tar",
		"--rm", "rt-test", "bash", "restore-backup.sh",
	}, engine.calls[4].Args)

	for _, s := range report.Steps {
		if s.Step == model.StepPreflight {
			assert.Equal(t, model.StepSkipped, s.Status, "preflight is skipped without a name checker")
			continue
		}
		assert.Equal(t, model.StepSucceeded, s.Status, "step %s", s.Step)
		assert.Equal(t, time.Second, s.Duration, "step %s", s.Step)
	}
}

// TestRun_BackupDirIsCanonical verifies the backup directory handed to the
// container has no symlink components even when the temp parent does.
func TestRun_BackupDirIsCanonical(t *testing.T) {
	opts := setupWorkspace(t)

	realParent := filepath.Join(t.TempDir(), "private", "tmp")
	require.NoError(t, os.MkdirAll(realParent, 0o755))
	link := filepath.Join(t.TempDir(), "tmp")
	require.NoError(t, os.Symlink(realParent, link))
	opts.TempParent = link

	engine := &fakeEngine{}
	report, err := newTestOrchestrator(opts, engine).Run(context.Background())
	require.NoError(t, err)

	resolved, err := filepath.EvalSymlinks(report.Artifacts.BackupDir)
	require.NoError(t, err)
	assert.Equal(t, resolved, report.Artifacts.BackupDir)
	assert.False(t, strings.HasPrefix(report.Artifacts.BackupDir, link))
	assert.Contains(t, engine.calls[1].Args, report.Artifacts.BackupDir+":/backup")
}

// TestRun_ExportWritesRawArchive verifies the exported bytes reach the
// archive path without transcoding.
func TestRun_ExportWritesRawArchive(t *testing.T) {
	opts := setupWorkspace(t)
	engine := &fakeEngine{exportData: []byte("ARCHIVE")}

	report, err := newTestOrchestrator(opts, engine).Run(context.Background())
	require.NoError(t, err)

	data, err := os.ReadFile(opts.ArchivePath)
	require.NoError(t, err)
	assert.Equal(t, []byte("ARCHIVE"), data)
	assert.Equal(t, int64(7), report.ArchiveBytes)
}

// TestRun_BuildFailureAbortsEarly verifies no later command runs after
// the image build fails.
func TestRun_BuildFailureAbortsEarly(t *testing.T) {
	opts := setupWorkspace(t)
	engine := &fakeEngine{failOn: map[string]int{"build": 1}}

	report, err := newTestOrchestrator(opts, engine).Run(context.Background())
	requireExitCode(t, err, model.ExitBuildFailed)

	assert.Equal(t, []string{"build"}, engine.verbs())
	assert.False(t, report.Passed)
	assert.Equal(t, model.StepFailed, stepStatus(report, model.StepBuild))
	for _, s := range []model.Step{model.StepBackup, model.StepExport, model.StepRemove, model.StepRestore} {
		assert.Equal(t, model.StepSkipped, stepStatus(report, s), "step %s", s)
	}

	failed, ok := report.FailedStep()
	require.True(t, ok)
	assert.Equal(t, 1, failed.ExitCode)
	assert.Equal(t, filepath.Join(opts.LogDir, BuildLogName), failed.LogPath)
}

// TestRun_BackupFailureAborts verifies that a backup container exiting 1
// prevents export, removal and restore, and that nothing is cleaned up.
func TestRun_BackupFailureAborts(t *testing.T) {
	opts := setupWorkspace(t)
	engine := &fakeEngine{failOn: map[string]int{"run-backup": 1}}

	report, err := newTestOrchestrator(opts, engine).Run(context.Background())
	requireExitCode(t, err, model.ExitBackupFailed)

	assert.Equal(t, []string{"build", "run-backup"}, engine.verbs())

	var cmdErr *runner.CommandError
	require.True(t, errors.As(err, &cmdErr), "the runner's typed failure should stay reachable")
	assert.Equal(t, 1, cmdErr.ExitCode)

	// Diagnostics over cleanliness: everything created so far is kept.
	assert.DirExists(t, report.Artifacts.BackupDir)
	assert.FileExists(t, filepath.Join(opts.LogDir, BuildLogName))
	assert.FileExists(t, filepath.Join(opts.LogDir, BackupLogName))
	assert.FileExists(t, filepath.Join(opts.StagingDir, "src", "main.rs"))
	assert.NoFileExists(t, opts.ArchivePath)
	assert.Zero(t, report.ArchiveBytes)
}

// TestRun_RemoveFailureIsFatal verifies that a failed container removal
// stops the run before the restore step.
func TestRun_RemoveFailureIsFatal(t *testing.T) {
	opts := setupWorkspace(t)
	engine := &fakeEngine{failOn: map[string]int{"rm": 1}}

	report, err := newTestOrchestrator(opts, engine).Run(context.Background())
	requireExitCode(t, err, model.ExitExportFailed)

	assert.Equal(t, []string{"build", "run-backup", "export", "rm"}, engine.verbs())
	assert.Equal(t, model.StepFailed, stepStatus(report, model.StepRemove))
	assert.Equal(t, model.StepSkipped, stepStatus(report, model.StepRestore))
	assert.FileExists(t, opts.ArchivePath)
}

// TestRun_ExportFailure verifies the export failure class.
func TestRun_ExportFailure(t *testing.T) {
	opts := setupWorkspace(t)
	engine := &fakeEngine{failOn: map[string]int{"export": 125}}

	_, err := newTestOrchestrator(opts, engine).Run(context.Background())
	requireExitCode(t, err, model.ExitExportFailed)
	assert.Equal(t, []string{"build", "run-backup", "export"}, engine.verbs())
}

// TestRun_RestoreFailure verifies the comparison container's exit status
// decides the verdict and its log is kept.
func TestRun_RestoreFailure(t *testing.T) {
	opts := setupWorkspace(t)
	engine := &fakeEngine{failOn: map[string]int{"run-restore": 1}}

	report, err := newTestOrchestrator(opts, engine).Run(context.Background())
	requireExitCode(t, err, model.ExitRestoreFailed)

	assert.False(t, report.Passed)
	assert.Len(t, engine.calls, 5)
	assert.FileExists(t, filepath.Join(opts.LogDir, RestoreLogName))
	assert.DirExists(t, report.Artifacts.BackupDir)
}

// TestRun_TwiceIsIdempotent verifies a second run is not affected by the
// first run's staged content and gets a fresh backup directory.
func TestRun_TwiceIsIdempotent(t *testing.T) {
	opts := setupWorkspace(t)

	first, err := newTestOrchestrator(opts, &fakeEngine{}).Run(context.Background())
	require.NoError(t, err)
	staged := snapshotTree(t, opts.StagingDir)

	mustWrite(t, filepath.Join(opts.StagingDir, "stray", "file"), "left behind")
	mustWrite(t, filepath.Join(opts.StagingDir, "src", "main.rs"), "edited in place")

	second, err := newTestOrchestrator(opts, &fakeEngine{}).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, staged, snapshotTree(t, opts.StagingDir))
	assert.NotEqual(t, first.Artifacts.BackupDir, second.Artifacts.BackupDir)
	assert.DirExists(t, first.Artifacts.BackupDir, "earlier backup dirs are never deleted")
}

func snapshotTree(t *testing.T, dir string) map[string]string {
	t.Helper()
	files := make(map[string]string)
	require.NoError(t, filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		rel, _ := filepath.Rel(dir, path)
		data, err := os.ReadFile(path)
		files[rel] = string(data)
		return err
	}))
	return files
}

// TestRun_ProvisionFailure verifies that staging errors abort before any
// engine command runs.
func TestRun_ProvisionFailure(t *testing.T) {
	opts := setupWorkspace(t)
	opts.SourceRoot = filepath.Join(t.TempDir(), "missing")
	engine := &fakeEngine{}

	report, err := newTestOrchestrator(opts, engine).Run(context.Background())
	requireExitCode(t, err, model.ExitProvisionFailed)

	assert.Empty(t, engine.calls)
	assert.Equal(t, model.StepFailed, stepStatus(report, model.StepPrepare))
	assert.DirExists(t, report.Artifacts.BackupDir, "the backup dir created before the failure is reported")
}

// TestRun_PreflightCollision verifies that a container already holding the
// fixed name stops the run before any resource is created.
func TestRun_PreflightCollision(t *testing.T) {
	opts := setupWorkspace(t)
	engine := &fakeEngine{}
	checker := &fakeChecker{existing: &docker.ContainerInfo{
		ID:    "feedfacecafe0123",
		Name:  "rt-test-backup",
		State: "exited",
		Labels: docker.BuildLabels(docker.RunLabels{
			RunID: "01OLDRUN", Image: "rt-test", CreatedAt: time.Now(),
		}),
	}}

	report, err := newTestOrchestrator(opts, engine, WithNameChecker(checker)).Run(context.Background())
	requireExitCode(t, err, model.ExitNameCollision)

	assert.Contains(t, err.Error(), `container name "rt-test-backup" is already in use`)
	assert.Contains(t, err.Error(), "01OLDRUN")
	assert.Empty(t, engine.calls)
	assert.Empty(t, checker.removed)
	assert.Empty(t, report.Artifacts.BackupDir)
	assert.NoDirExists(t, opts.LogDir)
	assert.Equal(t, model.StepFailed, stepStatus(report, model.StepPreflight))
}

// TestRun_PreflightForeignContainer verifies the message for a container
// that roundtrip did not create.
func TestRun_PreflightForeignContainer(t *testing.T) {
	opts := setupWorkspace(t)
	checker := &fakeChecker{existing: &docker.ContainerInfo{ID: "abc", Name: "rt-test-backup", State: "running"}}

	_, err := newTestOrchestrator(opts, &fakeEngine{}, WithNameChecker(checker)).Run(context.Background())
	requireExitCode(t, err, model.ExitNameCollision)
	assert.Contains(t, err.Error(), "not created by roundtrip")
}

// TestRun_PreflightReplace verifies --replace removes the stale container
// and the run proceeds.
func TestRun_PreflightReplace(t *testing.T) {
	opts := setupWorkspace(t)
	opts.Replace = true
	engine := &fakeEngine{}
	checker := &fakeChecker{existing: &docker.ContainerInfo{ID: "feedfacecafe0123", Name: "rt-test-backup"}}
	obs := &recordingObserver{}

	report, err := newTestOrchestrator(opts, engine, WithNameChecker(checker), WithObserver(obs)).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{"feedfacecafe0123"}, checker.removed)
	assert.Len(t, engine.calls, 5)
	assert.Equal(t, model.StepSucceeded, stepStatus(report, model.StepPreflight))
	assert.Contains(t, obs.finished[0].Detail, "removed stale container")
}

// TestRun_PreflightLookupError verifies that an unreachable daemon keeps
// its own exit code.
func TestRun_PreflightLookupError(t *testing.T) {
	opts := setupWorkspace(t)
	checker := &fakeChecker{findErr: model.NewCLIError(model.ExitDockerNotRunning, "daemon down")}

	_, err := newTestOrchestrator(opts, &fakeEngine{}, WithNameChecker(checker)).Run(context.Background())
	requireExitCode(t, err, model.ExitDockerNotRunning)
}

// TestRun_Observers verifies observers see every executed step in order
// and the final report.
func TestRun_Observers(t *testing.T) {
	opts := setupWorkspace(t)
	obs := &recordingObserver{}

	report, err := newTestOrchestrator(opts, &fakeEngine{failOn: map[string]int{"export": 1}},
		WithNameChecker(&fakeChecker{}), WithObserver(obs)).Run(context.Background())
	require.Error(t, err)

	assert.Equal(t, []model.Step{
		model.StepPreflight, model.StepPrepare, model.StepBuild, model.StepBackup, model.StepExport,
	}, obs.started)
	require.Len(t, obs.finished, 5)
	assert.Equal(t, model.StepFailed, obs.finished[4].Status)
	assert.Same(t, report, obs.report)
}

// TestRun_Revision verifies the detected revision lands in the report and
// that detection errors are ignored.
func TestRun_Revision(t *testing.T) {
	opts := setupWorkspace(t)

	report, err := newTestOrchestrator(opts, &fakeEngine{}, WithRevision(func(context.Context) (model.Revision, error) {
		return model.Revision{Commit: "abc123"}, nil
	})).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "abc123", report.Revision.Commit)

	report, err = newTestOrchestrator(opts, &fakeEngine{}, WithRevision(func(context.Context) (model.Revision, error) {
		return model.Revision{}, errors.New("not a git repository")
	})).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "unknown", report.Revision.String())
}

// TestPlan verifies the planned commands match a real run's and that
// planning touches nothing on disk.
func TestPlan(t *testing.T) {
	opts := setupWorkspace(t)

	plan := newTestOrchestrator(opts, &fakeEngine{}).Plan()
	require.Len(t, plan, 5)

	var steps []model.Step
	for _, pc := range plan {
		steps = append(steps, pc.Step)
	}
	assert.Equal(t, []model.Step{
		model.StepBuild, model.StepBackup, model.StepExport, model.StepRemove, model.StepRestore,
	}, steps)
	assert.Contains(t, plan[1].Command.Args, BackupDirPlaceholder+":/backup")
	assert.Contains(t, plan[1].Command.Args, "roundtrip.run-id="+RunIDPlaceholder)
	assert.Equal(t, opts.ArchivePath, plan[2].Command.LogPath)

	assert.NoDirExists(t, opts.LogDir)
	assert.NoDirExists(t, opts.StagingDir)
}

// TestNewOptions verifies config paths are resolved against BaseDir.
func TestNewOptions(t *testing.T) {
	cfg := config.Default()
	cfg.BaseDir = "/work/tests/docker-test"
	cfg.Artifacts.TempParent = "/scratch"
	cfg.Preflight.Replace = true

	opts, err := NewOptions(cfg)
	require.NoError(t, err)

	assert.Equal(t, model.Namespace{Image: "roundtrip-test", Container: "roundtrip-test-backup"}, opts.Namespace)
	assert.Equal(t, "/work", opts.SourceRoot)
	assert.Equal(t, "/work/tests/docker-test/src", opts.BuildContext)
	assert.Equal(t, "/work/tests/docker-test/src/Dockerfile", opts.Dockerfile)
	assert.Equal(t, "/work/tests/docker-test/src/tool-src", opts.StagingDir)
	assert.Equal(t, "/work/tests/docker-test/logs", opts.LogDir)
	assert.Equal(t, "/work/tests/docker-test/exported-backup-image.tar", opts.ArchivePath)
	assert.Equal(t, "/scratch", opts.TempParent)
	assert.Equal(t, "src", opts.SourceTree)
	assert.True(t, opts.Replace)
}

// TestNewOptions_EmptyTempParent verifies an empty temp parent stays empty
// so the system temp directory is used.
func TestNewOptions_EmptyTempParent(t *testing.T) {
	cfg := config.Default()
	cfg.BaseDir = "/work"

	opts, err := NewOptions(cfg)
	require.NoError(t, err)
	assert.Empty(t, opts.TempParent)
}

// TestRun_PreflightPlainError verifies an untyped daemon error is
// attributed to the engine rather than to a name collision.
func TestRun_PreflightPlainError(t *testing.T) {
	opts := setupWorkspace(t)
	checker := &fakeChecker{findErr: errors.New("connection refused")}

	_, err := newTestOrchestrator(opts, &fakeEngine{}, WithNameChecker(checker)).Run(context.Background())
	requireExitCode(t, err, model.ExitDockerNotRunning)
	assert.Contains(t, err.Error(), "connection refused")
}

// TestRun_StagingOverSourceTree verifies that a staging dir pointing at
// the source tree aborts the run without deleting source files.
func TestRun_StagingOverSourceTree(t *testing.T) {
	opts := setupWorkspace(t)
	opts.BuildContext = opts.SourceRoot
	opts.StagingDir = filepath.Join(opts.SourceRoot, "src")
	engine := &fakeEngine{}

	_, err := newTestOrchestrator(opts, engine).Run(context.Background())
	requireExitCode(t, err, model.ExitProvisionFailed)
	assert.Contains(t, err.Error(), "overlaps the source tree")

	assert.Empty(t, engine.calls)
	assert.FileExists(t, filepath.Join(opts.SourceRoot, "src", "main.rs"))
	assert.FileExists(t, filepath.Join(opts.SourceRoot, "src", "backend", "file.rs"))
}
