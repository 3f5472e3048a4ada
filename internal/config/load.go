package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/tidwall/jsonc"
	"gopkg.in/yaml.v3"

	"github.com/mmr-tortoise/roundtrip/internal/model"
)

// CandidateFiles are the config file names looked up, in order, when no
// explicit path is given.
var CandidateFiles = []string{
	"roundtrip.yaml",
	"roundtrip.yml",
	"roundtrip.toml",
	"roundtrip.jsonc",
	"roundtrip.json",
}

// Environment variables that override file values.
const (
	EnvImage     = "ROUNDTRIP_IMAGE"
	EnvContainer = "ROUNDTRIP_CONTAINER"
	EnvLogLevel  = "ROUNDTRIP_LOG_LEVEL"
	EnvEngine    = "ROUNDTRIP_ENGINE"
)

// Load reads the configuration.
//
// If path is non-empty that file must exist. Otherwise the first of
// CandidateFiles found in dir is used, and if none exists the defaults
// are returned with BaseDir set to dir. Environment overrides are applied
// via lookupEnv (os.LookupEnv in production).
//
// Errors are model.CLIError values with ExitConfigInvalid.
func Load(path, dir string, lookupEnv func(string) (string, bool)) (Config, error) {
	if path == "" {
		found, err := discover(dir)
		if err != nil {
			return Config{}, err
		}
		path = found
	}

	cfg := Default()
	cfg.BaseDir = dir

	if path != "" {
		fileCfg, err := LoadFile(path)
		if err != nil {
			return Config{}, err
		}
		cfg = fileCfg
	}

	if lookupEnv != nil {
		ApplyEnv(&cfg, lookupEnv)
	}

	return cfg, nil
}

// discover returns the first candidate config file in dir, or "".
func discover(dir string) (string, error) {
	for _, name := range CandidateFiles {
		p := filepath.Join(dir, name)
		info, err := os.Stat(p)
		if err == nil && !info.IsDir() {
			return p, nil
		}
		if err != nil && !errors.Is(err, os.ErrNotExist) {
			return "", model.WrapCLIError(model.ExitConfigInvalid,
				fmt.Sprintf("failed to check config file %s", p), err)
		}
	}
	return "", nil
}

// LoadFile parses a single config file, choosing the decoder by extension,
// and fills missing fields with defaults. Unknown keys are rejected so
// typos do not silently fall back to defaults.
func LoadFile(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, model.WrapCLIError(model.ExitConfigInvalid,
			fmt.Sprintf("failed to read config file %s", path), err)
	}

	var cfg Config
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		err = decodeYAML(data, &cfg)
	case ".toml":
		err = decodeTOML(data, &cfg)
	case ".json", ".jsonc":
		err = decodeJSONC(data, &cfg)
	default:
		err = fmt.Errorf("unsupported config format %q (use .yaml, .yml, .toml, .json or .jsonc)", ext)
	}
	if err != nil {
		return Config{}, model.WrapCLIError(model.ExitConfigInvalid,
			fmt.Sprintf("invalid config file %s", path), err)
	}

	cfg = applyDefaults(cfg)

	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}
	cfg.Path = abs
	cfg.BaseDir = filepath.Dir(abs)

	return cfg, nil
}

func decodeYAML(data []byte, cfg *Config) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		// An empty document is a valid, all-defaults config.
		if errors.Is(err, io.EOF) {
			return nil
		}
		return err
	}
	return nil
}

func decodeTOML(data []byte, cfg *Config) error {
	md, err := toml.Decode(string(data), cfg)
	if err != nil {
		return err
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, 0, len(undecoded))
		for _, k := range undecoded {
			keys = append(keys, k.String())
		}
		return fmt.Errorf("unknown keys: %s", strings.Join(keys, ", "))
	}
	return nil
}

func decodeJSONC(data []byte, cfg *Config) error {
	// Strip // and /* */ comments and trailing commas first.
	clean := jsonc.ToJSON(data)
	if len(bytes.TrimSpace(clean)) == 0 {
		return nil
	}
	dec := json.NewDecoder(bytes.NewReader(clean))
	dec.DisallowUnknownFields()
	return dec.Decode(cfg)
}

// applyDefaults fills in missing fields with default values.
// Booleans are left alone: their zero value is the default.
func applyDefaults(cfg Config) Config {
	defaults := Default()

	setDefault(&cfg.Namespace.Image, defaults.Namespace.Image)
	setDefault(&cfg.Namespace.Container, defaults.Namespace.Container)
	setDefault(&cfg.Engine.Binary, defaults.Engine.Binary)

	setDefault(&cfg.Source.Root, defaults.Source.Root)
	setDefault(&cfg.Source.Tree, defaults.Source.Tree)
	if cfg.Source.Manifests == nil {
		cfg.Source.Manifests = defaults.Source.Manifests
	}

	setDefault(&cfg.Build.Context, defaults.Build.Context)
	setDefault(&cfg.Build.Dockerfile, defaults.Build.Dockerfile)
	setDefault(&cfg.Build.Staging, defaults.Build.Staging)

	setDefault(&cfg.Container.Shell, defaults.Container.Shell)
	setDefault(&cfg.Container.BackupScript, defaults.Container.BackupScript)
	setDefault(&cfg.Container.RestoreScript, defaults.Container.RestoreScript)
	setDefault(&cfg.Container.BackupMount, defaults.Container.BackupMount)
	setDefault(&cfg.Container.ArchiveMount, defaults.Container.ArchiveMount)

	setDefault(&cfg.Artifacts.LogDir, defaults.Artifacts.LogDir)
	setDefault(&cfg.Artifacts.Archive, defaults.Artifacts.Archive)
	setDefault(&cfg.Artifacts.TempPrefix, defaults.Artifacts.TempPrefix)

	setDefault(&cfg.LogLevel, defaults.LogLevel)

	return cfg
}

func setDefault(field *string, value string) {
	if *field == "" {
		*field = value
	}
}

// ApplyEnv overrides fields from ROUNDTRIP_* environment variables.
func ApplyEnv(cfg *Config, lookupEnv func(string) (string, bool)) {
	if v, ok := lookupEnv(EnvImage); ok && v != "" {
		cfg.Namespace.Image = v
	}
	if v, ok := lookupEnv(EnvContainer); ok && v != "" {
		cfg.Namespace.Container = v
	}
	if v, ok := lookupEnv(EnvLogLevel); ok && v != "" {
		cfg.LogLevel = v
	}
	if v, ok := lookupEnv(EnvEngine); ok && v != "" {
		cfg.Engine.Binary = v
	}
}

// Resolve returns p unchanged if absolute, otherwise joined to BaseDir.
func (c Config) Resolve(p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(c.BaseDir, p)
}
