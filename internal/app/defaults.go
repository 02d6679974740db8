package app

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/kelseyhightower/envconfig"
)

// environment holds the overrides read from MBHD_* variables.
type environment struct {
	ConfigPath string `envconfig:"CONFIG_PATH"`
	Home       string `envconfig:"HOME"`
}

// GetDefaults returns application default paths, checking environment variables first.
// Environment variables:
//   - MBHD_CONFIG_PATH: config file location (default: ~/.config/mbhd.toml)
//   - MBHD_HOME: base directory for mbhd data (default: ~/.local/share/mbhd)
func GetDefaults() (map[string]string, error) {
	var env environment
	if err := envconfig.Process("mbhd", &env); err != nil {
		return nil, fmt.Errorf("reading environment: %w", err)
	}

	configPath, err := orHome(env.ConfigPath, ".config", "mbhd.toml")
	if err != nil {
		return nil, err
	}
	baseDir, err := orHome(env.Home, ".local", "share", "mbhd")
	if err != nil {
		return nil, err
	}

	return map[string]string{
		"config_path": configPath,
		"base_dir":    baseDir,
		"log_dir":     filepath.Join(baseDir, "log"),
	}, nil
}

// orHome returns value, or the path below the user's home directory when
// value is empty.
func orHome(value string, elem ...string) (string, error) {
	if value != "" {
		return value, nil
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory: %w", err)
	}
	return filepath.Join(append([]string{homeDir}, elem...)...), nil
}
