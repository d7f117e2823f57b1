package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

const testYAML = `
node_id: test-node
data_dir: /tmp/vaultis-test
log_level: debug
withdrawal:
  default_delay: 240h
roles:
  share_accounting: "0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"
  staking_orchestrator: "0xbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb"
  admin: "0xcccccccccccccccccccccccccccccccccccccccc"
  treasury: "0xdddddddddddddddddddddddddddddddddddddddd"
api:
  listen_addr: ":9000"
  enable_cors: false
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadFromFile(t *testing.T) {
	cfg, err := Load(writeConfig(t, testYAML))
	require.NoError(t, err)

	require.Equal(t, "test-node", cfg.NodeID)
	require.Equal(t, "/tmp/vaultis-test", cfg.DataDir)
	require.Equal(t, "debug", cfg.LogLevel)
	require.Equal(t, 240*time.Hour, cfg.Withdrawal.DefaultDelay)
	require.Equal(t, "0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa", cfg.Roles.ShareAccounting)
	require.Equal(t, ":9000", cfg.API.ListenAddr)
	require.False(t, cfg.API.EnableCORS)
}

func TestLoadDefaults(t *testing.T) {
	// roles are mandatory, the rest falls back to defaults
	minimal := `
roles:
  share_accounting: "0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"
  staking_orchestrator: "0xbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb"
  admin: "0xcccccccccccccccccccccccccccccccccccccccc"
  treasury: "0xdddddddddddddddddddddddddddddddddddddddd"
`
	cfg, err := Load(writeConfig(t, minimal))
	require.NoError(t, err)

	require.Equal(t, "vaultis-node", cfg.NodeID)
	require.Equal(t, "info", cfg.LogLevel)
	require.Equal(t, 7*24*time.Hour, cfg.Withdrawal.DefaultDelay)
	require.Equal(t, ":8545", cfg.API.ListenAddr)
	require.True(t, cfg.API.EnableCORS)
}

func TestLoadValidation(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{"missing role", func(c *Config) { c.Roles.Admin = "" }, "roles.admin"},
		{"bad role address", func(c *Config) { c.Roles.Treasury = "xyz" }, "roles.treasury"},
		{"delay out of range", func(c *Config) { c.Withdrawal.DefaultDelay = time.Hour }, "default_delay"},
		{"empty data dir", func(c *Config) { c.DataDir = "" }, "data_dir"},
		{"empty listen addr", func(c *Config) { c.API.ListenAddr = "" }, "listen_addr"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := Load(writeConfig(t, testYAML))
			require.NoError(t, err)

			tt.mutate(cfg)
			err = cfg.Validate()
			require.Error(t, err)
			require.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load("/nonexistent/config.yaml")
	require.Error(t, err)
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("VAULTIS_LOG_LEVEL", "warn")
	t.Setenv("VAULTIS_API_LISTEN_ADDR", ":7777")

	cfg, err := Load(writeConfig(t, testYAML))
	require.NoError(t, err)
	require.Equal(t, "warn", cfg.LogLevel)
	require.Equal(t, ":7777", cfg.API.ListenAddr)
}

func TestLoadEnvOverridesRoles(t *testing.T) {
	t.Setenv("VAULTIS_ROLES_ADMIN", "0xeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeee")

	cfg, err := Load(writeConfig(t, testYAML))
	require.NoError(t, err)
	require.Equal(t, "0xeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeee", cfg.Roles.Admin)
	// the other roles keep their file values
	require.Equal(t, "0xdddddddddddddddddddddddddddddddddddddddd", cfg.Roles.Treasury)
}
