package testutil

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"sync"
)

// MemoryFetcher serves downloads from an in-memory map of URL to content.
type MemoryFetcher struct {
	mu      sync.Mutex
	content map[string][]byte
	fetched []string
}

func NewMemoryFetcher() *MemoryFetcher {
	return &MemoryFetcher{content: make(map[string][]byte)}
}

// Add registers content for url.
func (f *MemoryFetcher) Add(url string, content []byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.content[url] = content
}

func (f *MemoryFetcher) Fetch(ctx context.Context, src string, dst *os.File) (int64, error) {
	f.mu.Lock()
	content, ok := f.content[src]
	f.fetched = append(f.fetched, src)
	f.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if !ok {
		return 0, fmt.Errorf("not found: %s", src)
	}
	return io.Copy(dst, bytes.NewReader(content))
}

// Fetched returns the URLs requested so far.
func (f *MemoryFetcher) Fetched() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.fetched...)
}
