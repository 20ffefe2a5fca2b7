package download

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"sync"

	"complib/internal/complib"
	"complib/internal/transport"
)

// SchemeFetcher dispatches each download to the Fetcher registered for the
// URL scheme.
type SchemeFetcher struct {
	mu       sync.RWMutex
	fetchers map[string]complib.Fetcher
}

var _ complib.Fetcher = (*SchemeFetcher)(nil)

func NewSchemeFetcher() *SchemeFetcher {
	return &SchemeFetcher{fetchers: make(map[string]complib.Fetcher)}
}

// Register routes URLs with the given schemes to f.
func (s *SchemeFetcher) Register(f complib.Fetcher, schemes ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, scheme := range schemes {
		s.fetchers[strings.ToLower(scheme)] = f
	}
}

func (s *SchemeFetcher) Fetch(ctx context.Context, src string, dst *os.File) (int64, error) {
	u, err := url.Parse(src)
	if err != nil {
		return 0, fmt.Errorf("parsing download url: %w", err)
	}
	s.mu.RLock()
	f, ok := s.fetchers[strings.ToLower(u.Scheme)]
	s.mu.RUnlock()
	if !ok {
		return 0, fmt.Errorf("unsupported url scheme %q in %s", u.Scheme, src)
	}
	return f.Fetch(ctx, src, dst)
}

// HTTPFetcher downloads http and https URLs.
type HTTPFetcher struct {
	client         *http.Client
	bytesPerSecond int
}

var _ complib.Fetcher = (*HTTPFetcher)(nil)

func NewHTTPFetcher(client *http.Client, bytesPerSecond int) *HTTPFetcher {
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTPFetcher{client: client, bytesPerSecond: bytesPerSecond}
}

func (f *HTTPFetcher) Fetch(ctx context.Context, src string, dst *os.File) (int64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, src, nil)
	if err != nil {
		return 0, fmt.Errorf("creating request: %w", err)
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("requesting %s: %w", src, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, &transport.StatusError{URL: src, Code: resp.StatusCode}
	}
	n, err := io.Copy(NewThrottledWriter(ctx, dst, f.bytesPerSecond), resp.Body)
	if err != nil {
		return n, fmt.Errorf("downloading %s: %w", src, err)
	}
	return n, nil
}

// FileFetcher copies file:// URLs, such as those of a local library.
type FileFetcher struct {
	bytesPerSecond int
}

var _ complib.Fetcher = (*FileFetcher)(nil)

func NewFileFetcher(bytesPerSecond int) *FileFetcher {
	return &FileFetcher{bytesPerSecond: bytesPerSecond}
}

func (f *FileFetcher) Fetch(ctx context.Context, src string, dst *os.File) (int64, error) {
	u, err := url.Parse(src)
	if err != nil {
		return 0, fmt.Errorf("parsing file url: %w", err)
	}
	in, err := os.Open(u.Path)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, &complib.NotFoundError{Resource: "file", ID: u.Path}
		}
		return 0, fmt.Errorf("opening %s: %w", u.Path, err)
	}
	defer in.Close()

	n, err := io.Copy(NewThrottledWriter(ctx, dst, f.bytesPerSecond), in)
	if err != nil {
		return n, fmt.Errorf("copying %s: %w", u.Path, err)
	}
	return n, nil
}
