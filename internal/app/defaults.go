package app

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
)

// GetDefaults returns application default paths, checking environment variables first.
// A .env file in the working directory is loaded beforehand; variables already
// set in the environment take precedence over it.
// Environment variables:
//   - COMPLIB_CONFIG_PATH: config file location (default: ~/.config/complib.toml)
//   - COMPLIB_HOME: base directory for complib data (default: ~/.local/share/complib)
//   - COMPLIB_API_URL: repository API used by "config init"
func GetDefaults() (map[string]string, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("loading .env: %w", err)
	}

	configPath, err := getConfigPath()
	if err != nil {
		return nil, err
	}

	baseDir, err := getBaseDir()
	if err != nil {
		return nil, err
	}

	return map[string]string{
		"config_path": configPath,
		"base_dir":    baseDir,
		"log_dir":     filepath.Join(baseDir, "log"),
		"api_url":     os.Getenv("COMPLIB_API_URL"),
	}, nil
}

// getConfigPath returns the config file path, checking COMPLIB_CONFIG_PATH env var first,
// then falling back to the default ~/.config/complib.toml.
func getConfigPath() (string, error) {
	if path := os.Getenv("COMPLIB_CONFIG_PATH"); path != "" {
		return path, nil
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory: %w", err)
	}
	return filepath.Join(homeDir, ".config", "complib.toml"), nil
}

// getBaseDir returns the base directory for complib data, checking COMPLIB_HOME env var first,
// then falling back to the XDG default ~/.local/share/complib.
func getBaseDir() (string, error) {
	if path := os.Getenv("COMPLIB_HOME"); path != "" {
		return path, nil
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory: %w", err)
	}
	return filepath.Join(homeDir, ".local", "share", "complib"), nil
}
