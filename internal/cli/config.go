// This file implements settings resolution from flags, environment and config.yaml.
package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"

	"github.com/mesh-intelligence/docket/internal/paths"
	"github.com/mesh-intelligence/docket/internal/remote"
	"github.com/mesh-intelligence/docket/internal/validate"
	"github.com/mesh-intelligence/docket/pkg/types"
)

const (
	configFileName = "config"
	configFileType = "yaml"

	cfgKeyBackend       = "backend"
	cfgKeyDataDir       = "data_dir"
	cfgKeyRemoteBaseURL = "remote.base_url"
	cfgKeyRemoteTimeout = "remote.timeout"
	cfgKeyConcurrency   = "validation.concurrency"
	cfgKeyLogLevel      = "log.level"
	cfgKeyLogFormat     = "log.format"

	defaultLogLevel  = "warn"
	defaultLogFormat = "text"
)

// defaultConfigYAML is the content written to config.yaml on first run.
const defaultConfigYAML = `# Docket CLI configuration

# Backend selection
backend: sqlite

# Data directory (optional; overridable by --data-dir flag)
# data_dir:

remote:
  # Prefix for remote validation URLs that are not absolute.
  base_url: http://127.0.0.1:8080
  timeout: 10s

validation:
  concurrency: 8

log:
  level: warn   # debug, info, warn or error
  format: text  # text or json
`

// settings is the resolved configuration of one CLI invocation.
type settings struct {
	Backend       string
	DataDir       string
	RemoteBaseURL string
	RemoteTimeout time.Duration
	Concurrency   int
	LogLevel      string
	LogFormat     string
}

// loadConfig reads config.yaml from configDir using Viper. It creates the
// config directory and a default config.yaml on first run. A missing
// config.yaml is not an error.
func loadConfig(configDir string) (*viper.Viper, error) {
	if err := os.MkdirAll(configDir, 0o755); err != nil {
		return nil, fmt.Errorf("ensure config dir: %w", err)
	}
	if err := ensureDefaultConfigFile(configDir); err != nil {
		return nil, fmt.Errorf("ensure default config: %w", err)
	}

	v := viper.New()
	v.SetDefault(cfgKeyBackend, types.BackendSQLite)
	v.SetDefault(cfgKeyRemoteBaseURL, remote.DefaultBaseURL)
	v.SetDefault(cfgKeyRemoteTimeout, validate.DefaultTimeout)
	v.SetDefault(cfgKeyConcurrency, validate.DefaultConcurrency)
	v.SetDefault(cfgKeyLogLevel, defaultLogLevel)
	v.SetDefault(cfgKeyLogFormat, defaultLogFormat)
	v.SetConfigName(configFileName)
	v.SetConfigType(configFileType)
	v.AddConfigPath(configDir)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return v, nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}
	return v, nil
}

// ensureDefaultConfigFile creates a default config.yaml if the file does
// not exist in configDir.
func ensureDefaultConfigFile(configDir string) error {
	path := filepath.Join(configDir, paths.ConfigFileName)

	_, err := os.Stat(path)
	if err == nil {
		return nil
	}
	if !os.IsNotExist(err) {
		return fmt.Errorf("stat config file: %w", err)
	}
	return os.WriteFile(path, []byte(defaultConfigYAML), 0o644)
}

// resolveSettings loads the configuration for f and applies the directory
// precedence rules.
func resolveSettings(f *rootFlags) (settings, error) {
	configDir, err := paths.ResolveConfigDir(f.configDir)
	if err != nil {
		return settings{}, fmt.Errorf("resolve config dir: %w", err)
	}
	v, err := loadConfig(configDir)
	if err != nil {
		return settings{}, err
	}
	dataDir, err := paths.ResolveDataDir(f.dataDir, v.GetString(cfgKeyDataDir))
	if err != nil {
		return settings{}, fmt.Errorf("resolve data dir: %w", err)
	}
	return settings{
		Backend:       v.GetString(cfgKeyBackend),
		DataDir:       dataDir,
		RemoteBaseURL: v.GetString(cfgKeyRemoteBaseURL),
		RemoteTimeout: v.GetDuration(cfgKeyRemoteTimeout),
		Concurrency:   v.GetInt(cfgKeyConcurrency),
		LogLevel:      v.GetString(cfgKeyLogLevel),
		LogFormat:     v.GetString(cfgKeyLogFormat),
	}, nil
}
