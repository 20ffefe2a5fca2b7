package complib

import (
	"context"
	"fmt"
	"time"

	"github.com/kofalt/go-memoize"

	"complib/internal/data"
)

// tagCacheTTL bounds how long a fetched tag list is reused.
const tagCacheTTL = 10 * time.Minute

// OnlineRepoManager browses a remote repository over a Transport.
type OnlineRepoManager struct {
	*repoManager
	cache *memoize.Memoizer
}

var _ Manager = (*OnlineRepoManager)(nil)

// NewOnlineRepoManager creates a manager for the repository behind t.
func NewOnlineRepoManager(t Transport, opts ManagerOptions) *OnlineRepoManager {
	return &OnlineRepoManager{
		repoManager: newRepoManager("online", t, opts),
		cache:       memoize.NewMemoizer(tagCacheTTL, 6*tagCacheTTL),
	}
}

// Tags returns the repository's tags. Successful results are cached.
func (m *OnlineRepoManager) Tags(ctx context.Context) ([]*data.Tag, error) {
	v, err, cached := m.cache.Memoize("tags", func() (interface{}, error) {
		return m.fetchTags(ctx)
	})
	if err != nil {
		return nil, err
	}
	tags, ok := v.([]*data.Tag)
	if !ok {
		return nil, fmt.Errorf("unexpected cached tags type %T", v)
	}
	m.logger.Debug("tags", "count", len(tags), "cached", cached)
	return tags, nil
}

// InvalidateTags drops the cached tag list.
func (m *OnlineRepoManager) InvalidateTags() {
	m.cache.Storage.Delete("tags")
}
