// This file implements the init command.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/mesh-intelligence/docket/internal/paths"
	"github.com/mesh-intelligence/docket/internal/remote"
	"github.com/mesh-intelligence/docket/internal/validate"
	"github.com/mesh-intelligence/docket/pkg/sqlite"
	"github.com/mesh-intelligence/docket/pkg/types"
)

// configFile holds the structure written to config.yaml by init.
type configFile struct {
	Backend    string           `yaml:"backend"`
	DataDir    string           `yaml:"data_dir,omitempty"`
	Remote     remoteConfig     `yaml:"remote"`
	Validation validationConfig `yaml:"validation"`
	Log        logConfig        `yaml:"log"`
}

type remoteConfig struct {
	BaseURL string `yaml:"base_url"`
	Timeout string `yaml:"timeout"`
}

type validationConfig struct {
	Concurrency int `yaml:"concurrency"`
}

type logConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

func newInitCmd(f *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Initialize docket storage",
		Long:  "Create configuration and data directories, then initialize the storage backend.",
		Args:  exactArgs(0),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInit(cmd, f)
		},
	}
}

func runInit(cmd *cobra.Command, f *rootFlags) error {
	configDir, err := paths.ResolveConfigDir(f.configDir)
	if err != nil {
		return fmt.Errorf("resolve config dir: %w", err)
	}
	if err := os.MkdirAll(configDir, 0o755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}

	// Write config.yaml with the data directory pinned, unless one exists.
	dataDir, err := paths.ResolveDataDir(f.dataDir, "")
	if err != nil {
		return fmt.Errorf("resolve data dir: %w", err)
	}
	if err := writeConfigIfMissing(paths.ConfigFile(configDir), dataDir); err != nil {
		return fmt.Errorf("write config: %w", err)
	}

	st, err := resolveSettings(f)
	if err != nil {
		return err
	}
	store, err := sqlite.Open(types.Config{Backend: st.Backend, DataDir: st.DataDir})
	if err != nil {
		return fmt.Errorf("initialize storage: %w", err)
	}
	if err := store.Detach(); err != nil {
		return fmt.Errorf("finalize storage: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Docket initialized in %s\n", st.DataDir)
	return nil
}

// writeConfigIfMissing creates config.yaml with default values if the file
// does not exist. An existing file is left untouched.
func writeConfigIfMissing(path, dataDir string) error {
	if _, err := os.Stat(path); err == nil {
		return nil
	}

	cfg := configFile{
		Backend: types.BackendSQLite,
		DataDir: dataDir,
		Remote: remoteConfig{
			BaseURL: remote.DefaultBaseURL,
			Timeout: validate.DefaultTimeout.String(),
		},
		Validation: validationConfig{Concurrency: validate.DefaultConcurrency},
		Log:        logConfig{Level: defaultLogLevel, Format: defaultLogFormat},
	}

	data, err := yaml.Marshal(&cfg)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}
