package config

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// Config represents the main configuration for complib.
type Config struct {
	APIURL      string          `toml:"api_url"`
	BaseDir     string          `toml:"base_dir"`
	DownloadDir string          `toml:"download_dir"`
	LogDir      string          `toml:"log_dir"`
	Manager     ManagerConfig   `toml:"manager"`
	Transport   TransportConfig `toml:"transport"`
	Library     LibraryConfig   `toml:"library"`
	Download    DownloadConfig  `toml:"download"`
	S3          S3Config        `toml:"s3"`
}

// ManagerConfig selects which component source the CLI browses.
// This uses a tagged union pattern - the Type field determines which other fields are relevant.
type ManagerConfig struct {
	Type             string `toml:"type"`      // "online" or "local"
	PageSize         int    `toml:"page_size"` // defaults to 20
	CancelSuperseded bool   `toml:"cancel_superseded"`
}

// TransportConfig configures how the online manager reaches the repository.
// This uses a tagged union pattern - the Type field determines which other fields are relevant.
type TransportConfig struct {
	Type              string  `toml:"type"` // "http" or "memory"
	TimeoutSeconds    int     `toml:"timeout_seconds,omitempty"`
	RequestsPerSecond float64 `toml:"requests_per_second,omitempty"` // 0 disables rate limiting

	// Memory-specific fields (only used when Type == "memory")
	FixturePath string `toml:"fixture_path,omitempty"`
}

// LibraryConfig represents configuration for the local component library.
// This uses a tagged union pattern - the Type field determines which other fields are relevant.
type LibraryConfig struct {
	Type    string `toml:"type"`               // "sqlite" or "memory"
	DataDir string `toml:"data_dir,omitempty"` // only used for type=sqlite
}

// DownloadConfig controls how component files are written to disk.
type DownloadConfig struct {
	OnConflict     string `toml:"on_conflict"`  // "rename" (default), "overwrite" or "fail"
	MaxParallel    int    `toml:"max_parallel"` // concurrent downloads for batch commands
	BytesPerSecond int    `toml:"bytes_per_second,omitempty"`
}

// S3Config holds credentials for file URLs of the form s3://bucket/key.
// Empty keys fall back to the default AWS credential chain.
type S3Config struct {
	Region          string `toml:"region,omitempty"`
	Endpoint        string `toml:"endpoint,omitempty"`
	AccessKeyID     string `toml:"access_key_id,omitempty"`
	SecretAccessKey string `toml:"secret_access_key,omitempty"`
}

// NewConfig creates a new Config with the provided values and default paths.
func NewConfig(apiURL, baseDir string) *Config {
	return &Config{
		APIURL:      apiURL,
		BaseDir:     baseDir,
		DownloadDir: filepath.Join(baseDir, "downloads"),
		LogDir:      filepath.Join(baseDir, "log"),
		Manager:     ManagerConfig{Type: "online", PageSize: 20},
		Transport:   TransportConfig{Type: "http", TimeoutSeconds: 30, RequestsPerSecond: 5},
		Library:     LibraryConfig{Type: "sqlite", DataDir: filepath.Join(baseDir, "db")},
		Download:    DownloadConfig{OnConflict: "rename", MaxParallel: 4},
		S3:          S3Config{Region: "us-east-1"},
	}
}

// Manager handles reading and writing configuration.
type Manager struct{}

// Read decodes a Config from the provided reader.
func (m *Manager) Read(r io.Reader) (*Config, error) {
	var cfg Config
	if _, err := toml.NewDecoder(r).Decode(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	return &cfg, nil
}

// Write encodes a Config to the provided writer.
func (m *Manager) Write(w io.Writer, cfg *Config) error {
	if err := toml.NewEncoder(w).Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	return nil
}

// ReadFromFile reads a Config from the specified file path.
func ReadFromFile(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer f.Close()

	m := &Manager{}
	cfg, err := m.Read(f)
	if err != nil {
		return nil, fmt.Errorf("reading config from %s: %w", path, err)
	}
	return cfg, nil
}

// writeToFile writes a Config to the specified file path.
func writeToFile(path string, cfg *Config) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	// Secrets may live in the s3 section.
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	defer f.Close()

	m := &Manager{}
	if err := m.Write(f, cfg); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}
	return nil
}

// Init initializes a new config file at the specified path with the provided Config.
func Init(path string, cfg *Config) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}

	if err := writeToFile(path, cfg); err != nil {
		return fmt.Errorf("initializing config: %w", err)
	}
	return nil
}
