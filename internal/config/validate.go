package config

import (
	"fmt"
	"path"
	"path/filepath"
	"strings"

	"github.com/mmr-tortoise/roundtrip/internal/model"
	"github.com/mmr-tortoise/roundtrip/internal/staging"
)

// ValidationError lists every problem found in a config so they can be
// fixed in one pass.
type ValidationError struct {
	Problems []string
}

// Error satisfies the error interface.
func (e *ValidationError) Error() string {
	return "invalid configuration:\n  - " + strings.Join(e.Problems, "\n  - ")
}

// Validate checks the configuration and returns a model.CLIError with
// ExitConfigInvalid wrapping a *ValidationError if anything is wrong.
func (c Config) Validate() error {
	var problems []string
	add := func(format string, args ...any) {
		problems = append(problems, fmt.Sprintf(format, args...))
	}

	if err := c.NamespaceValue().Validate(); err != nil {
		add("namespace: %v", err)
	}

	if strings.TrimSpace(c.Engine.Binary) == "" {
		add("engine.binary must not be empty")
	}

	if c.Source.Root == "" {
		add("source.root must not be empty")
	}
	if c.Source.Tree == "" && len(c.Source.Manifests) == 0 {
		add("source: at least one of tree or manifests is required")
	}
	for _, m := range c.Source.Manifests {
		if m == "" {
			add("source.manifests must not contain empty entries")
			break
		}
	}

	if c.Build.Context == "" {
		add("build.context must not be empty")
	}
	if c.Build.Dockerfile == "" {
		add("build.dockerfile must not be empty")
	}
	if c.Build.Staging == "" {
		add("build.staging must not be empty")
	} else {
		if c.Build.Context != "" && !staging.Contains(c.Resolve(c.Build.Context), c.Resolve(c.Build.Staging)) {
			add("build.staging %q must be inside build.context %q", c.Build.Staging, c.Build.Context)
		}
		// The staging dir is deleted on every run, so it must stay clear of
		// everything that gets copied into it.
		if c.Source.Root != "" {
			layout := staging.Layout{
				SourceRoot: c.Resolve(c.Source.Root),
				Tree:       c.Source.Tree,
				Manifests:  c.Source.Manifests,
				StagingDir: c.Resolve(c.Build.Staging),
			}
			if err := layout.CheckOverlap(); err != nil {
				add("build.staging %q: %v", c.Build.Staging, strings.TrimPrefix(err.Error(), "staging: "))
			}
		}
	}

	if c.Container.Shell == "" {
		add("container.shell must not be empty")
	}
	if c.Container.BackupScript == "" {
		add("container.backup_script must not be empty")
	}
	if c.Container.RestoreScript == "" {
		add("container.restore_script must not be empty")
	}
	checkMount := func(name, value string) {
		if value == "" {
			add("container.%s must not be empty", name)
		} else if !path.IsAbs(value) {
			add("container.%s %q must be an absolute in-container path", name, value)
		}
	}
	checkMount("backup_mount", c.Container.BackupMount)
	checkMount("archive_mount", c.Container.ArchiveMount)

	if c.Artifacts.LogDir == "" {
		add("artifacts.log_dir must not be empty")
	}
	if c.Artifacts.Archive == "" {
		add("artifacts.archive must not be empty")
	}
	if strings.ContainsRune(c.Artifacts.TempPrefix, filepath.Separator) {
		add("artifacts.temp_prefix %q must not contain a path separator", c.Artifacts.TempPrefix)
	}

	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "error":
	default:
		add("log_level %q is not one of debug, info, warn, error", c.LogLevel)
	}

	if c.Preflight.Skip && c.Preflight.Replace {
		add("preflight.replace has no effect when preflight.skip is set")
	}

	if len(problems) == 0 {
		return nil
	}
	return model.WrapCLIError(model.ExitConfigInvalid, "configuration is invalid",
		&ValidationError{Problems: problems})
}
