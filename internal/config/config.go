// Package config loads the forkswitch configuration from a YAML file with
// environment overrides, falling back to the conventional on-device layout.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"
)

// Default locations and settings for a comma-style device.
const (
	DefaultConfigPath  = "/etc/forkswitch.yaml"
	DefaultDataRoot    = "/data"
	DefaultGitHost     = "github.com"
	DefaultLogPath     = "/data/fork_manager.log"
	DefaultInstallPath = "/data/forkswitch/forkswitch"
	DefaultUpstream    = "https://github.com/commatools/forkswitch.git"
	DefaultRebootCmd   = "reboot"

	DefaultCloneRetries = 3
	DefaultCloneDelay   = 2 * time.Second
	DefaultLogMaxBytes  = 1 << 20
)

// Duration is a time.Duration that unmarshals from YAML scalars in Go
// duration syntax ("500ms", "2s"), which yaml.v3 does not support natively.
type Duration time.Duration

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if err := value.Decode(&raw); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("parse duration %q: %w", raw, err)
	}
	*d = Duration(parsed)
	return nil
}

func (d Duration) String() string { return time.Duration(d).String() }

// Config holds every tunable the manager reads at startup.
type Config struct {
	DataRoot    string `yaml:"data_root"`
	LivePath    string `yaml:"live_path"`    // default <data_root>/openpilot
	ParamsPath  string `yaml:"params_path"`  // default <data_root>/params
	GitHost     string `yaml:"git_host"`     // clone URLs must live here
	LogPath     string `yaml:"log_path"`
	LogMaxBytes int64  `yaml:"log_max_bytes"`

	CloneRetries    int      `yaml:"clone_retries"`
	CloneRetryDelay Duration `yaml:"clone_retry_delay"`

	InstallPath string `yaml:"install_path"` // installed forkswitch binary
	UpstreamURL string `yaml:"upstream_url"` // self-update source
	RebootCmd   string `yaml:"reboot_cmd"`

	DeviceUser string `yaml:"device_user"` // ownership target, default comma
	Debug      bool   `yaml:"debug"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		DataRoot:        DefaultDataRoot,
		GitHost:         DefaultGitHost,
		LogPath:         DefaultLogPath,
		LogMaxBytes:     DefaultLogMaxBytes,
		CloneRetries:    DefaultCloneRetries,
		CloneRetryDelay: Duration(DefaultCloneDelay),
		InstallPath:     DefaultInstallPath,
		UpstreamURL:     DefaultUpstream,
		RebootCmd:       DefaultRebootCmd,
		DeviceUser:      "comma",
	}
}

// Load reads configuration in ascending precedence: defaults, the YAML file
// (when present), then FORKSWITCH_* environment variables. A .env file next
// to the working directory is honored before the environment is read.
func Load(fs afero.Fs, path string) (Config, error) {
	cfg := Default()

	// Missing .env is the normal case.
	_ = godotenv.Load()

	if path == "" {
		path = os.Getenv("FORKSWITCH_CONFIG")
	}
	if path == "" {
		path = DefaultConfigPath
	}
	data, err := afero.ReadFile(fs, path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	case errors.Is(err, os.ErrNotExist):
		// Defaults apply.
	default:
		return Config{}, fmt.Errorf("read config %s: %w", path, err)
	}

	applyEnv(&cfg)

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("FORKSWITCH_DATA_ROOT"); v != "" {
		cfg.DataRoot = v
	}
	if v := os.Getenv("FORKSWITCH_LIVE_PATH"); v != "" {
		cfg.LivePath = v
	}
	if v := os.Getenv("FORKSWITCH_PARAMS_PATH"); v != "" {
		cfg.ParamsPath = v
	}
	if v := os.Getenv("FORKSWITCH_GIT_HOST"); v != "" {
		cfg.GitHost = v
	}
	if v := os.Getenv("FORKSWITCH_LOG_PATH"); v != "" {
		cfg.LogPath = v
	}
	if v := os.Getenv("FORKSWITCH_LOG_MAX_BYTES"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			cfg.LogMaxBytes = n
		}
	}
	if v := os.Getenv("FORKSWITCH_CLONE_RETRIES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.CloneRetries = n
		}
	}
	if v := os.Getenv("FORKSWITCH_CLONE_RETRY_DELAY"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.CloneRetryDelay = Duration(d)
		}
	}
	if v := os.Getenv("FORKSWITCH_INSTALL_PATH"); v != "" {
		cfg.InstallPath = v
	}
	if v := os.Getenv("FORKSWITCH_UPSTREAM_URL"); v != "" {
		cfg.UpstreamURL = v
	}
	if v := os.Getenv("FORKSWITCH_REBOOT_CMD"); v != "" {
		cfg.RebootCmd = v
	}
	if v := os.Getenv("FORKSWITCH_DEVICE_USER"); v != "" {
		cfg.DeviceUser = v
	}
	if v := os.Getenv("FORKSWITCH_DEBUG"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Debug = b
		}
	}
}

// Validate checks the invariants startup depends on.
func (c Config) Validate() error {
	if c.DataRoot == "" {
		return errors.New("data_root cannot be empty")
	}
	if c.GitHost == "" {
		return errors.New("git_host cannot be empty")
	}
	if c.CloneRetries <= 0 {
		return fmt.Errorf("clone_retries must be positive, got %d", c.CloneRetries)
	}
	if c.CloneRetryDelay < 0 {
		return fmt.Errorf("clone_retry_delay cannot be negative, got %s", time.Duration(c.CloneRetryDelay))
	}
	if c.LogMaxBytes <= 0 {
		return fmt.Errorf("log_max_bytes must be positive, got %d", c.LogMaxBytes)
	}
	return nil
}
