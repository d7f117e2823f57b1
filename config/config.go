// Package config loads node configuration from defaults, an optional YAML
// file and VAULTIS_-prefixed environment variables, in increasing precedence.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/vaultis-labs/go-vaultis/core/withdrawal"
	"github.com/vaultis-labs/go-vaultis/crypto/address"
)

// Config is the full node configuration.
type Config struct {
	NodeID   string `mapstructure:"node_id" json:"node_id"`
	DataDir  string `mapstructure:"data_dir" json:"data_dir"`
	LogLevel string `mapstructure:"log_level" json:"log_level"`

	Withdrawal WithdrawalConfig `mapstructure:"withdrawal" json:"withdrawal"`
	Roles      RolesConfig      `mapstructure:"roles" json:"roles"`
	API        APIConfig        `mapstructure:"api" json:"api"`
}

// WithdrawalConfig tunes the redemption ledger.
type WithdrawalConfig struct {
	// DefaultDelay seeds the global withdrawal delay on a fresh data
	// directory. A persisted delay always wins over this value.
	DefaultDelay time.Duration `mapstructure:"default_delay" json:"default_delay"`
}

// RolesConfig names the trusted addresses the gated operations are bound to.
type RolesConfig struct {
	ShareAccounting     string `mapstructure:"share_accounting" json:"share_accounting"`
	StakingOrchestrator string `mapstructure:"staking_orchestrator" json:"staking_orchestrator"`
	Admin               string `mapstructure:"admin" json:"admin"`
	Treasury            string `mapstructure:"treasury" json:"treasury"`
}

// APIConfig tunes the HTTP interface.
type APIConfig struct {
	ListenAddr string `mapstructure:"listen_addr" json:"listen_addr"`
	EnableCORS bool   `mapstructure:"enable_cors" json:"enable_cors"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("node_id", "vaultis-node")
	v.SetDefault("data_dir", "./data")
	v.SetDefault("log_level", "info")
	v.SetDefault("withdrawal.default_delay", withdrawal.DefaultWithdrawalDelay)
	v.SetDefault("api.listen_addr", ":8545")
	v.SetDefault("api.enable_cors", true)
}

// Load reads configuration from the given file (optional, empty path skips
// it) and the environment.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("VAULTIS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// AutomaticEnv only resolves keys viper already knows about. The role
	// addresses carry no defaults, so bind them explicitly.
	for _, key := range []string{
		"roles.share_accounting",
		"roles.staking_orchestrator",
		"roles.admin",
		"roles.treasury",
	} {
		if err := v.BindEnv(key); err != nil {
			return nil, fmt.Errorf("failed to bind environment key %s: %v", key, err)
		}
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %v", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode configuration: %v", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects configurations the node cannot start with.
func (c *Config) Validate() error {
	if c.DataDir == "" {
		return fmt.Errorf("data_dir cannot be empty")
	}
	if err := withdrawal.ValidateDelay(c.Withdrawal.DefaultDelay); err != nil {
		return fmt.Errorf("withdrawal.default_delay: %v", err)
	}

	roles := []struct {
		name string
		addr string
	}{
		{"roles.share_accounting", c.Roles.ShareAccounting},
		{"roles.staking_orchestrator", c.Roles.StakingOrchestrator},
		{"roles.admin", c.Roles.Admin},
		{"roles.treasury", c.Roles.Treasury},
	}
	for _, r := range roles {
		if r.addr == "" {
			return fmt.Errorf("%s must be configured", r.name)
		}
		if err := address.Validate(r.addr); err != nil {
			return fmt.Errorf("%s: %v", r.name, err)
		}
	}

	if c.API.ListenAddr == "" {
		return fmt.Errorf("api.listen_addr cannot be empty")
	}
	return nil
}
