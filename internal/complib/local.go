package complib

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"

	"complib/internal/data"
)

// Library is the local store of downloaded components.
type Library interface {
	// ListComponents returns the page of components matching q and the total match count.
	ListComponents(ctx context.Context, q QueryState) ([]*data.Component, int, error)

	// ListTags returns every tag attached to a stored component.
	ListTags(ctx context.Context) ([]*data.Tag, error)

	// RecordDownload stores c and the local path of its file of type ft.
	// Recording the same component and type again replaces the path.
	RecordDownload(ctx context.Context, c *data.Component, ft data.FileType, path string) error

	Close() error
}

// LibraryTransport serves repository endpoints from a Library, producing the
// same wire payloads as a remote repository.
type LibraryTransport struct {
	lib Library
}

var _ Transport = (*LibraryTransport)(nil)

func NewLibraryTransport(lib Library) *LibraryTransport {
	return &LibraryTransport{lib: lib}
}

func (t *LibraryTransport) Get(ctx context.Context, endpoint string, params url.Values) ([]byte, error) {
	switch endpoint {
	case EndpointComponents:
		q, err := ParseQueryParams(params)
		if err != nil {
			return nil, fmt.Errorf("parsing query: %w", err)
		}
		comps, total, err := t.lib.ListComponents(ctx, q)
		if err != nil {
			return nil, fmt.Errorf("listing components: %w", err)
		}
		items := make([]map[string]any, len(comps))
		for i, c := range comps {
			items[i] = data.Serialize(c, true)
		}
		page := &data.Page{Page: q.Page, Size: q.PageSize, Total: &total, Items: items}
		return json.Marshal(data.Serialize(page, true))

	case EndpointTags:
		tags, err := t.lib.ListTags(ctx)
		if err != nil {
			return nil, fmt.Errorf("listing tags: %w", err)
		}
		items := make([]map[string]any, len(tags))
		for i, tag := range tags {
			items[i] = data.Serialize(tag, true)
		}
		return json.Marshal(map[string]any{"items": items})

	default:
		return nil, &NotFoundError{Resource: "endpoint", ID: endpoint}
	}
}

// LocalStorageManager browses components already downloaded into a Library.
// Its file URLs are file:// URLs into the library.
type LocalStorageManager struct {
	*repoManager
}

var _ Manager = (*LocalStorageManager)(nil)

// NewLocalStorageManager creates a manager over lib. Copies made with
// DownloadComponent are recorded only if opts.Library is set.
func NewLocalStorageManager(lib Library, opts ManagerOptions) *LocalStorageManager {
	return &LocalStorageManager{
		repoManager: newRepoManager("local", NewLibraryTransport(lib), opts),
	}
}

// Tags returns the tags of locally stored components.
func (m *LocalStorageManager) Tags(ctx context.Context) ([]*data.Tag, error) {
	return m.fetchTags(ctx)
}
