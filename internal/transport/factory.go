package transport

import (
	"fmt"
	"time"

	"complib/internal/complib"
	"complib/internal/config"
	"complib/internal/data"
)

// NewTransportFromConfig creates a Transport implementation based on the transport config type.
func NewTransportFromConfig(cfg config.TransportConfig, apiURL string, reg *data.Registry, logger complib.Logger) (complib.Transport, error) {
	switch cfg.Type {
	case "http":
		if apiURL == "" {
			return nil, fmt.Errorf("api_url required for http transport")
		}
		timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
		return NewHTTPTransport(apiURL, NewHTTPClient(timeout, cfg.RequestsPerSecond), logger), nil
	case "memory":
		if cfg.FixturePath == "" {
			return NewMemoryTransport(NewCatalogue(nil)), nil
		}
		cat, err := LoadCatalogue(cfg.FixturePath, reg, nil)
		if err != nil {
			return nil, err
		}
		return NewMemoryTransport(cat), nil
	default:
		return nil, fmt.Errorf("unknown transport type: %s", cfg.Type)
	}
}
