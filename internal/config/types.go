// Package config loads roundtrip's configuration.
//
// A config file is optional. When present it may be YAML, TOML or JSON with
// comments (JSONC); the format is chosen by file extension. Fields missing
// from the file take their defaults from Default(). Environment variables
// and command-line flags are applied on top, in that order.
//
// Relative paths in the config are resolved against the directory that
// contains the config file, or the working directory when there is none.
package config

import (
	"github.com/mmr-tortoise/roundtrip/internal/model"
)

// Config is the full roundtrip configuration.
type Config struct {
	Namespace NamespaceConfig `yaml:"namespace" toml:"namespace" json:"namespace"`
	Engine    EngineConfig    `yaml:"engine" toml:"engine" json:"engine"`
	Source    SourceConfig    `yaml:"source" toml:"source" json:"source"`
	Build     BuildConfig     `yaml:"build" toml:"build" json:"build"`
	Container ContainerConfig `yaml:"container" toml:"container" json:"container"`
	Artifacts ArtifactsConfig `yaml:"artifacts" toml:"artifacts" json:"artifacts"`
	Preflight PreflightConfig `yaml:"preflight" toml:"preflight" json:"preflight"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `yaml:"log_level" toml:"log_level" json:"log_level"`

	// BaseDir is the directory relative paths are resolved against.
	// It is not read from the file.
	BaseDir string `yaml:"-" toml:"-" json:"-"`

	// Path is the config file that was loaded, empty for pure defaults.
	Path string `yaml:"-" toml:"-" json:"-"`
}

// NamespaceConfig holds the fixed engine resource names.
type NamespaceConfig struct {
	Image     string `yaml:"image" toml:"image" json:"image"`
	Container string `yaml:"container" toml:"container" json:"container"`
}

// EngineConfig selects the container engine CLI.
type EngineConfig struct {
	// Binary is the CLI invoked for every step ("docker" by default).
	Binary string `yaml:"binary" toml:"binary" json:"binary"`
}

// SourceConfig locates the tool under test.
type SourceConfig struct {
	// Root is the tool's repository root.
	Root string `yaml:"root" toml:"root" json:"root"`

	// Tree is the source directory, relative to Root.
	Tree string `yaml:"tree" toml:"tree" json:"tree"`

	// Manifests are dependency-manifest files relative to Root.
	Manifests []string `yaml:"manifests" toml:"manifests" json:"manifests"`
}

// BuildConfig describes the image build input.
type BuildConfig struct {
	// Context is the directory passed to the image build.
	Context string `yaml:"context" toml:"context" json:"context"`

	// Dockerfile is the container-definition file.
	Dockerfile string `yaml:"dockerfile" toml:"dockerfile" json:"dockerfile"`

	// Staging is where the source copy goes; it must sit inside Context.
	Staging string `yaml:"staging" toml:"staging" json:"staging"`
}

// ContainerConfig describes the in-container side of the contract.
type ContainerConfig struct {
	Shell         string `yaml:"shell" toml:"shell" json:"shell"`
	BackupScript  string `yaml:"backup_script" toml:"backup_script" json:"backup_script"`
	RestoreScript string `yaml:"restore_script" toml:"restore_script" json:"restore_script"`
	BackupMount   string `yaml:"backup_mount" toml:"backup_mount" json:"backup_mount"`
	ArchiveMount  string `yaml:"archive_mount" toml:"archive_mount" json:"archive_mount"`
}

// ArtifactsConfig places the retained run artifacts.
type ArtifactsConfig struct {
	LogDir  string `yaml:"log_dir" toml:"log_dir" json:"log_dir"`
	Archive string `yaml:"archive" toml:"archive" json:"archive"`

	// TempParent is where backup directories are created; empty means
	// the system temp directory.
	TempParent string `yaml:"temp_parent" toml:"temp_parent" json:"temp_parent"`
	TempPrefix string `yaml:"temp_prefix" toml:"temp_prefix" json:"temp_prefix"`

	// MetricsFile, if set, receives Prometheus text-format step metrics.
	MetricsFile string `yaml:"metrics_file" toml:"metrics_file" json:"metrics_file"`
}

// PreflightConfig controls the container-name collision check.
type PreflightConfig struct {
	// Skip disables the check entirely.
	Skip bool `yaml:"skip" toml:"skip" json:"skip"`

	// Replace force-removes a colliding container instead of aborting.
	Replace bool `yaml:"replace" toml:"replace" json:"replace"`
}

// Default returns the built-in configuration. It matches the layout of
// a docker-test directory two levels below the tool's repository root.
func Default() Config {
	return Config{
		Namespace: NamespaceConfig{
			Image:     "roundtrip-test",
			Container: "roundtrip-test-backup",
		},
		Engine: EngineConfig{Binary: "docker"},
		Source: SourceConfig{
			Root:      "../..",
			Tree:      "src",
			Manifests: []string{"Cargo.toml", "Cargo.lock"},
		},
		Build: BuildConfig{
			Context:    "src",
			Dockerfile: "src/Dockerfile",
			Staging:    "src/tool-src",
		},
		Container: ContainerConfig{
			Shell:         "bash",
			BackupScript:  "create-backup.sh",
			RestoreScript: "restore-backup.sh",
			BackupMount:   "/backup",
			ArchiveMount:  "/exported-backup-image.tar",
		},
		Artifacts: ArtifactsConfig{
			LogDir:     "logs",
			Archive:    "exported-backup-image.tar",
			TempPrefix: "roundtrip-backup-",
		},
		LogLevel: "info",
	}
}

// NamespaceValue returns the configured names as a model.Namespace.
func (c Config) NamespaceValue() model.Namespace {
	return model.Namespace{
		Image:     c.Namespace.Image,
		Container: c.Namespace.Container,
	}
}
