// Package config loads and saves the SDK/CLI configuration.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/nimogit/beacon/internal/common"
)

// Config is the on-disk configuration at ~/.beacon/config.yaml. Every key
// can be overridden through the environment with the BEACON_ prefix, e.g.
// BEACON_SERVER_URL.
type Config struct {
	ServerURL  string `mapstructure:"server_url" yaml:"server_url"`
	AppKey     string `mapstructure:"app_key" yaml:"app_key,omitempty"`
	AppVersion string `mapstructure:"app_version" yaml:"app_version,omitempty"`
	DeviceID   string `mapstructure:"device_id" yaml:"device_id,omitempty"`
	Salt       string `mapstructure:"salt" yaml:"salt,omitempty"`

	// UseKeyring moves the app key out of this file into the OS keyring.
	UseKeyring bool `mapstructure:"use_keyring" yaml:"use_keyring,omitempty"`

	CountryCode string `mapstructure:"country_code" yaml:"country_code,omitempty"`
	City        string `mapstructure:"city" yaml:"city,omitempty"`
	IPAddress   string `mapstructure:"ip_address" yaml:"ip_address,omitempty"`

	HeartbeatInterval time.Duration `mapstructure:"heartbeat_interval" yaml:"heartbeat_interval,omitempty"`
	FailTimeout       time.Duration `mapstructure:"fail_timeout" yaml:"fail_timeout,omitempty"`
	RequestTimeout    time.Duration `mapstructure:"request_timeout" yaml:"request_timeout,omitempty"`

	LogLevel string `mapstructure:"log_level" yaml:"log_level,omitempty"`
}

// File returns the configuration file location. BEACON_CONFIG overrides the
// default ~/.beacon/config.yaml.
func File() (string, error) {
	if path := os.Getenv("BEACON_CONFIG"); path != "" {
		return common.CleanPath(path)
	}

	dir, err := common.StateDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.yaml"), nil
}

// Load reads the configuration file, applying environment overrides. A
// missing file yields a config of defaults, not an error.
func Load() (*Config, error) {
	file, err := File()
	if err != nil {
		return nil, err
	}

	v := viper.New()
	v.SetConfigFile(file)
	v.SetConfigType("yaml")
	v.SetEnvPrefix("BEACON")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("server_url", "")
	v.SetDefault("app_key", "")
	v.SetDefault("app_version", "")
	v.SetDefault("device_id", "")
	v.SetDefault("salt", "")
	v.SetDefault("use_keyring", false)
	v.SetDefault("country_code", "")
	v.SetDefault("city", "")
	v.SetDefault("ip_address", "")
	v.SetDefault("heartbeat_interval", 500*time.Millisecond)
	v.SetDefault("fail_timeout", 60*time.Second)
	v.SetDefault("request_timeout", 30*time.Second)
	v.SetDefault("log_level", "warn")

	if err := v.ReadInConfig(); err != nil {
		if _, missing := err.(viper.ConfigFileNotFoundError); !missing && !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return &cfg, nil
}

// Save writes the configuration to disk, creating the state directory if
// needed.
func Save(cfg *Config) error {
	if _, err := common.EnsureStateDir(); err != nil {
		return err
	}

	file, err := File()
	if err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	return os.WriteFile(file, data, common.FilePermissionSecure)
}
