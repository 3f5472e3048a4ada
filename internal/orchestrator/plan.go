package orchestrator

import (
	"time"

	"github.com/mmr-tortoise/roundtrip/internal/docker"
	"github.com/mmr-tortoise/roundtrip/internal/model"
	"github.com/mmr-tortoise/roundtrip/internal/runner"
)

// Placeholders used by Plan for values only known once a run starts.
const (
	BackupDirPlaceholder = "<backup-dir>"
	RunIDPlaceholder     = "<run-id>"
)

// PlannedCommand is one engine invocation of the pipeline.
type PlannedCommand struct {
	Step    model.Step     `json:"step"`
	Command runner.Command `json:"command"`
}

// commands returns the engine invocations of a run, in order.
func (o *Orchestrator) commands(backupDir, runID string, startedAt time.Time) []PlannedCommand {
	cmds := docker.Commands{Binary: o.opts.Binary, Namespace: o.opts.Namespace}
	backup := docker.Mount{Host: backupDir, Container: o.opts.BackupMount}
	archive := docker.Mount{Host: o.opts.ArchivePath, Container: o.opts.ArchiveMount}
	labels := docker.BuildLabels(docker.RunLabels{
		RunID:     runID,
		Image:     o.opts.Namespace.Image,
		CreatedAt: startedAt,
	})

	return []PlannedCommand{
		{
			Step: model.StepBuild,
			Command: runner.Command{
				Args:    cmds.Build(o.opts.Dockerfile, o.opts.BuildContext),
				LogPath: o.opts.logPath(BuildLogName),
			},
		},
		{
			Step: model.StepBackup,
			Command: runner.Command{
				Args:    cmds.RunBackup(backup, labels, []string{o.opts.Shell, o.opts.BackupScript}),
				LogPath: o.opts.logPath(BackupLogName),
			},
		},
		{
			// The archive is the process's stdout, written raw.
			Step: model.StepExport,
			Command: runner.Command{
				Args:    cmds.Export(),
				LogPath: o.opts.ArchivePath,
			},
		},
		{
			// Success is still required: a leftover container would
			// block the fixed name for the next run.
			Step: model.StepRemove,
			Command: runner.Command{
				Args: cmds.Remove(),
			},
		},
		{
			Step: model.StepRestore,
			Command: runner.Command{
				Args:    cmds.RunRestore([]docker.Mount{backup, archive}, []string{o.opts.Shell, o.opts.RestoreScript}),
				LogPath: o.opts.logPath(RestoreLogName),
			},
		},
	}
}

// Plan returns the engine invocations a run would make, with the backup
// directory and run ID replaced by placeholders. It has no side effects.
func (o *Orchestrator) Plan() []PlannedCommand {
	return o.commands(BackupDirPlaceholder, RunIDPlaceholder, o.now())
}
