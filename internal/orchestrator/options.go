package orchestrator

import (
	"fmt"
	"path/filepath"

	"github.com/mmr-tortoise/roundtrip/internal/config"
	"github.com/mmr-tortoise/roundtrip/internal/model"
)

// Log file names, one per step that produces text output.
const (
	BuildLogName   = "docker.build.log"
	BackupLogName  = "docker.run.backup.log"
	RestoreLogName = "docker.run.restore.log"
)

// Options is everything a run needs to know, with host paths already
// resolved.
type Options struct {
	// Namespace holds the image tag and the backup container name.
	Namespace model.Namespace

	// Binary is the container engine CLI.
	Binary string

	// SourceRoot, SourceTree and Manifests describe what gets staged.
	SourceRoot string
	SourceTree string
	Manifests  []string

	// BuildContext, Dockerfile and StagingDir describe the image build.
	BuildContext string
	Dockerfile   string
	StagingDir   string

	// Shell runs the collaborator scripts inside the container.
	Shell         string
	BackupScript  string
	RestoreScript string

	// BackupMount and ArchiveMount are the in-container mount points.
	BackupMount  string
	ArchiveMount string

	// LogDir receives one log file per step.
	LogDir string

	// ArchivePath is where the exported container filesystem is written.
	ArchivePath string

	// TempParent and TempPrefix control backup directory creation.
	TempParent string
	TempPrefix string

	// Replace force-removes a container that already uses the fixed name.
	Replace bool
}

// NewOptions converts a loaded config into run options, resolving every
// host path against the config's base directory and making it absolute.
func NewOptions(cfg config.Config) (Options, error) {
	abs := func(p string) (string, error) {
		if p == "" {
			return "", nil
		}
		resolved, err := filepath.Abs(cfg.Resolve(p))
		if err != nil {
			return "", fmt.Errorf("failed to resolve path %q: %w", p, err)
		}
		return resolved, nil
	}

	opts := Options{
		Namespace:     cfg.NamespaceValue(),
		Binary:        cfg.Engine.Binary,
		SourceTree:    cfg.Source.Tree,
		Manifests:     cfg.Source.Manifests,
		Shell:         cfg.Container.Shell,
		BackupScript:  cfg.Container.BackupScript,
		RestoreScript: cfg.Container.RestoreScript,
		BackupMount:   cfg.Container.BackupMount,
		ArchiveMount:  cfg.Container.ArchiveMount,
		TempPrefix:    cfg.Artifacts.TempPrefix,
		Replace:       cfg.Preflight.Replace,
	}

	paths := []struct {
		dst *string
		src string
	}{
		{&opts.SourceRoot, cfg.Source.Root},
		{&opts.BuildContext, cfg.Build.Context},
		{&opts.Dockerfile, cfg.Build.Dockerfile},
		{&opts.StagingDir, cfg.Build.Staging},
		{&opts.LogDir, cfg.Artifacts.LogDir},
		{&opts.ArchivePath, cfg.Artifacts.Archive},
		{&opts.TempParent, cfg.Artifacts.TempParent},
	}
	for _, p := range paths {
		v, err := abs(p.src)
		if err != nil {
			return Options{}, model.WrapCLIError(model.ExitConfigInvalid, "invalid path in configuration", err)
		}
		*p.dst = v
	}

	return opts, nil
}

// logPath returns the path of a step log inside LogDir.
func (o Options) logPath(name string) string {
	return filepath.Join(o.LogDir, name)
}
