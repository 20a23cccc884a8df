package config

import (
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_DefaultsWhenFileMissing(t *testing.T) {
	fs := afero.NewMemMapFs()

	cfg, err := Load(fs, "/etc/forkswitch.yaml")
	require.NoError(t, err)
	assert.Equal(t, DefaultDataRoot, cfg.DataRoot)
	assert.Equal(t, DefaultGitHost, cfg.GitHost)
	assert.Equal(t, DefaultCloneRetries, cfg.CloneRetries)
	assert.Equal(t, Duration(DefaultCloneDelay), cfg.CloneRetryDelay)
	assert.Equal(t, int64(DefaultLogMaxBytes), cfg.LogMaxBytes)
}

func TestLoad_YAMLOverrides(t *testing.T) {
	fs := afero.NewMemMapFs()
	yamlBody := `
data_root: /mnt/data
git_host: git.example.org
clone_retries: 5
clone_retry_delay: 500ms
debug: true
`
	require.NoError(t, afero.WriteFile(fs, "/etc/forkswitch.yaml", []byte(yamlBody), 0o644))

	cfg, err := Load(fs, "/etc/forkswitch.yaml")
	require.NoError(t, err)
	assert.Equal(t, "/mnt/data", cfg.DataRoot)
	assert.Equal(t, "git.example.org", cfg.GitHost)
	assert.Equal(t, 5, cfg.CloneRetries)
	assert.Equal(t, Duration(500*time.Millisecond), cfg.CloneRetryDelay)
	assert.True(t, cfg.Debug)
	// Untouched fields keep their defaults.
	assert.Equal(t, DefaultLogPath, cfg.LogPath)
}

func TestLoad_EnvOverridesYAML(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/etc/forkswitch.yaml", []byte("git_host: from-yaml.org\n"), 0o644))
	t.Setenv("FORKSWITCH_GIT_HOST", "from-env.org")

	cfg, err := Load(fs, "/etc/forkswitch.yaml")
	require.NoError(t, err)
	assert.Equal(t, "from-env.org", cfg.GitHost)
}

func TestLoad_EnvCoversEveryField(t *testing.T) {
	fs := afero.NewMemMapFs()
	t.Setenv("FORKSWITCH_DATA_ROOT", "/mnt/data")
	t.Setenv("FORKSWITCH_LIVE_PATH", "/mnt/data/op")
	t.Setenv("FORKSWITCH_PARAMS_PATH", "/mnt/data/p")
	t.Setenv("FORKSWITCH_GIT_HOST", "git.example.org")
	t.Setenv("FORKSWITCH_LOG_PATH", "/var/log/fm.log")
	t.Setenv("FORKSWITCH_LOG_MAX_BYTES", "2048")
	t.Setenv("FORKSWITCH_CLONE_RETRIES", "7")
	t.Setenv("FORKSWITCH_CLONE_RETRY_DELAY", "750ms")
	t.Setenv("FORKSWITCH_INSTALL_PATH", "/opt/forkswitch")
	t.Setenv("FORKSWITCH_UPSTREAM_URL", "https://git.example.org/a/b.git")
	t.Setenv("FORKSWITCH_REBOOT_CMD", "systemctl reboot")
	t.Setenv("FORKSWITCH_DEVICE_USER", "pilot")
	t.Setenv("FORKSWITCH_DEBUG", "1")

	cfg, err := Load(fs, "/etc/forkswitch.yaml")
	require.NoError(t, err)
	assert.Equal(t, "/mnt/data", cfg.DataRoot)
	assert.Equal(t, "/mnt/data/op", cfg.LivePath)
	assert.Equal(t, "/mnt/data/p", cfg.ParamsPath)
	assert.Equal(t, "git.example.org", cfg.GitHost)
	assert.Equal(t, "/var/log/fm.log", cfg.LogPath)
	assert.Equal(t, int64(2048), cfg.LogMaxBytes)
	assert.Equal(t, 7, cfg.CloneRetries)
	assert.Equal(t, Duration(750*time.Millisecond), cfg.CloneRetryDelay)
	assert.Equal(t, "/opt/forkswitch", cfg.InstallPath)
	assert.Equal(t, "https://git.example.org/a/b.git", cfg.UpstreamURL)
	assert.Equal(t, "systemctl reboot", cfg.RebootCmd)
	assert.Equal(t, "pilot", cfg.DeviceUser)
	assert.True(t, cfg.Debug)
}

func TestLoad_MalformedYAML(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/etc/forkswitch.yaml", []byte("data_root: [oops"), 0o644))

	_, err := Load(fs, "/etc/forkswitch.yaml")
	require.Error(t, err)
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
		ok     bool
	}{
		{"default ok", func(*Config) {}, true},
		{"empty data root", func(c *Config) { c.DataRoot = "" }, false},
		{"empty git host", func(c *Config) { c.GitHost = "" }, false},
		{"zero retries", func(c *Config) { c.CloneRetries = 0 }, false},
		{"negative delay", func(c *Config) { c.CloneRetryDelay = Duration(-time.Second) }, false},
		{"zero log size", func(c *Config) { c.LogMaxBytes = 0 }, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default()
			tc.mutate(&cfg)
			err := cfg.Validate()
			if tc.ok {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}
