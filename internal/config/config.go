package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"

	"github.com/teemow/mailhub/internal/accounts"
)

// AccountConfig is the on-disk shape of one configured account.
//
// Viper decodes field names case-insensitively, so both `displayName` and
// `DisplayName` are accepted without further handling here. ProviderConfig
// keys are normalized to lower case in ToAccountInfo.
type AccountConfig struct {
	ID             string            `mapstructure:"id" yaml:"id"`
	DisplayName    string            `mapstructure:"displayName" yaml:"displayName"`
	Provider       string            `mapstructure:"provider" yaml:"provider"`
	ProviderConfig map[string]string `mapstructure:"providerConfig" yaml:"providerConfig"`
	Domains        []string          `mapstructure:"domains" yaml:"domains"`
	Enabled        bool              `mapstructure:"enabled" yaml:"enabled"`
	Priority       int               `mapstructure:"priority" yaml:"priority"`
}

// Config is the top-level mailhub configuration.
type Config struct {
	Accounts []AccountConfig `mapstructure:"accounts" yaml:"accounts"`
}

// DefaultConfigPath returns the default configuration file location,
// ~/.config/mailhub/config.yaml.
func DefaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", "config.yaml")
	}
	return filepath.Join(home, ".config", "mailhub", "config.yaml")
}

// Load reads the configuration file at path. A missing file is not an
// error: it yields an empty configuration, the legitimate "no accounts yet"
// state.
func Load(path string) (*Config, error) {
	if path == "" {
		path = DefaultConfigPath()
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	if err := v.ReadInConfig(); err != nil {
		if os.IsNotExist(err) {
			return &Config{}, nil
		}
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return &Config{}, nil
		}
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}

	return &cfg, nil
}

// ToAccountInfo converts the parsed file entry into the immutable registry
// record, normalizing providerConfig keys to lower case so downstream
// lookups need a single spelling.
func (a AccountConfig) ToAccountInfo() accounts.AccountInfo {
	provider, _ := accounts.ParseProvider(a.Provider)

	var providerConfig map[string]string
	if len(a.ProviderConfig) > 0 {
		providerConfig = make(map[string]string, len(a.ProviderConfig))
		for k, v := range a.ProviderConfig {
			providerConfig[strings.ToLower(k)] = v
		}
	}

	return accounts.AccountInfo{
		ID:             a.ID,
		DisplayName:    a.DisplayName,
		Provider:       provider,
		ProviderConfig: providerConfig,
		Domains:        a.Domains,
		Enabled:        a.Enabled,
		Priority:       a.Priority,
	}
}

// AccountInfos converts every configured account for registry construction.
func (c *Config) AccountInfos() []accounts.AccountInfo {
	infos := make([]accounts.AccountInfo, 0, len(c.Accounts))
	for _, a := range c.Accounts {
		infos = append(infos, a.ToAccountInfo())
	}
	return infos
}

// LoadRegistry is the startup helper: read the file and build the registry
// in one step.
func LoadRegistry(path string) (*accounts.Registry, error) {
	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}
	return accounts.NewRegistry(cfg.AccountInfos()), nil
}
