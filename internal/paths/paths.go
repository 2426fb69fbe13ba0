// Package paths resolves configuration and data directory locations.
package paths

import (
	"os"
	"path/filepath"
	"runtime"
)

// CWD-relative directory names.
const (
	DefaultConfigDirName = ".docket"
	DefaultDataDirName   = ".docket-db"
)

// ConfigFileName is the configuration file inside the config directory.
const ConfigFileName = "config.yaml"

// appName is the directory created under platform config and data roots.
const appName = "docket"

// Environment variable names for directory overrides.
const (
	EnvConfigDir = "DOCKET_CONFIG_DIR"
	EnvDataDir   = "DOCKET_DATA_DIR"
)

// platformDir holds platform-detection functions that can be overridden in tests.
var platformDir = struct {
	goos          string
	homeDir       func() (string, error)
	userConfigDir func() (string, error)
}{
	goos:          runtime.GOOS,
	homeDir:       os.UserHomeDir,
	userConfigDir: os.UserConfigDir,
}

// DefaultConfigDir returns the platform-specific default configuration directory.
//
// Linux:   $XDG_CONFIG_HOME/docket (fallback ~/.config/docket)
// macOS:   ~/Library/Application Support/docket
// Windows: %APPDATA%/docket
func DefaultConfigDir() (string, error) {
	return platformRoot("XDG_CONFIG_HOME", ".config")
}

// DefaultDataDir returns the platform-specific default data directory.
//
// Linux:   $XDG_DATA_HOME/docket (fallback ~/.local/share/docket)
// macOS:   ~/Library/Application Support/docket
// Windows: %APPDATA%/docket
func DefaultDataDir() (string, error) {
	return platformRoot("XDG_DATA_HOME", ".local", "share")
}

// platformRoot follows the XDG variable xdgEnv on Linux, falling back to
// the home-relative path; elsewhere it uses os.UserConfigDir.
func platformRoot(xdgEnv string, linuxFallback ...string) (string, error) {
	if platformDir.goos != "linux" {
		dir, err := platformDir.userConfigDir()
		if err != nil {
			return "", err
		}
		return filepath.Join(dir, appName), nil
	}
	if xdg := os.Getenv(xdgEnv); xdg != "" {
		return filepath.Join(xdg, appName), nil
	}
	home, err := platformDir.homeDir()
	if err != nil {
		return "", err
	}
	parts := append([]string{home}, linuxFallback...)
	return filepath.Join(append(parts, appName)...), nil
}

// ResolveConfigDir returns the configuration directory following the precedence
// chain: flag > DOCKET_CONFIG_DIR env > DefaultConfigDir().
func ResolveConfigDir(flag string) (string, error) {
	if dir := firstSet(flag, os.Getenv(EnvConfigDir)); dir != "" {
		return filepath.Abs(dir)
	}
	return DefaultConfigDir()
}

// ResolveDataDir returns the data directory following the precedence chain:
// flag > configYAMLValue > DOCKET_DATA_DIR env > $(CWD)/.docket-db.
func ResolveDataDir(flag, configYAMLValue string) (string, error) {
	if dir := firstSet(flag, configYAMLValue, os.Getenv(EnvDataDir)); dir != "" {
		return filepath.Abs(dir)
	}
	cwd, err := os.Getwd()
	if err != nil {
		return "", err
	}
	return filepath.Join(cwd, DefaultDataDirName), nil
}

// ConfigFile returns the path of the configuration file inside configDir.
func ConfigFile(configDir string) string {
	return filepath.Join(configDir, ConfigFileName)
}

func firstSet(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
