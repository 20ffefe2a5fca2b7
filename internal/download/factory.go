package download

import (
	"context"
	"fmt"
	"net/http"

	"complib/internal/config"
)

// NewFetcherFromConfig returns a fetcher for http(s), file and s3 URLs.
func NewFetcherFromConfig(ctx context.Context, cfg *config.Config, client *http.Client) (*SchemeFetcher, error) {
	bps := cfg.Download.BytesPerSecond

	f := NewSchemeFetcher()
	f.Register(NewHTTPFetcher(client, bps), "http", "https")
	f.Register(NewFileFetcher(bps), "file")

	s3f, err := NewS3Fetcher(ctx, cfg.S3, bps)
	if err != nil {
		return nil, fmt.Errorf("creating s3 fetcher: %w", err)
	}
	f.Register(s3f, "s3")
	return f, nil
}
