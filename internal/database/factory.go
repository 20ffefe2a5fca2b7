package database

import (
	"fmt"
	"os"
	"path/filepath"

	"complib/internal/complib"
	"complib/internal/config"
)

// LibraryFileName is the database file created under LibraryConfig.DataDir.
const LibraryFileName = "library.db"

// NewLibraryFromConfig creates a Library implementation based on the library config type.
func NewLibraryFromConfig(cfg config.LibraryConfig, clock complib.Clock) (complib.Library, error) {
	switch cfg.Type {
	case "sqlite":
		if cfg.DataDir == "" {
			return nil, fmt.Errorf("data_dir required for sqlite library")
		}
		if err := os.MkdirAll(cfg.DataDir, 0700); err != nil {
			return nil, fmt.Errorf("creating library directory: %w", err)
		}
		return openLibrary(filepath.Join(cfg.DataDir, LibraryFileName), clock)
	case "memory":
		return openLibrary(":memory:", clock)
	default:
		return nil, fmt.Errorf("unknown library type: %s", cfg.Type)
	}
}

// openLibrary keeps a failed open from returning a typed nil Library.
func openLibrary(path string, clock complib.Clock) (complib.Library, error) {
	lib, err := NewSQLiteLibrary(path, clock)
	if err != nil {
		return nil, err
	}
	return lib, nil
}
