package complib

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"sync"

	"complib/internal/data"
)

// Manager mediates between user actions and a component source. It owns a
// query and the pagination state, and is the only writer of both.
//
// Every fetching operation returns the in-flight Reply immediately. When the
// reply completes the Manager loads the page, copies the server's page number
// and size into its query, and notifies OnLoaded listeners once. Concurrent
// fetches are not ordered: the last reply to complete wins.
type Manager interface {
	ReloadPage(ctx context.Context) *Reply
	NextPage(ctx context.Context) *Reply
	PrevPage(ctx context.Context) *Reply
	GoToPage(ctx context.Context, page int) *Reply
	Search(ctx context.Context, key string) *Reply
	Sort(ctx context.Context, by SortField, order SortOrder) (*Reply, error)
	Filter(ctx context.Context, fileTypes []data.FileType, tags []string) (*Reply, error)

	// DownloadComponent returns a downloader for the component's file of type ft,
	// targeting "<download dir>/<name>.<ext>". It fails with NotFoundError when
	// the component has no such file.
	DownloadComponent(c *data.Component, ft data.FileType) (*FileDownloader, error)

	RequestTags(ctx context.Context) *Reply
	Tags(ctx context.Context) ([]*data.Tag, error)

	Components() []*data.Component
	PageStates() PageStates
	Query() QueryState

	// OnLoaded registers fn to run after each page load. The returned function removes it.
	OnLoaded(fn func()) (remove func())
}

// ManagerOptions configures a Manager. Zero values select defaults.
type ManagerOptions struct {
	Registry         *data.Registry
	PageSize         int
	CancelSuperseded bool
	DownloadDir      string
	Fetcher          Fetcher
	ConflictPolicy   ConflictPolicy
	// Library records successful downloads. Nil disables recording.
	Library Library
	Logger  Logger
	IDs     IDGenerator
}

// repoManager implements the fetch pipeline shared by every Manager.
type repoManager struct {
	kind      string
	transport Transport
	opts      ManagerOptions
	registry  *data.Registry
	logger    Logger
	ids       IDGenerator

	mu           sync.Mutex
	query        *RepoComponentQuery
	states       PageStates
	components   []*data.Component
	inflight     *Reply
	listeners    map[int]func()
	nextListener int
}

func newRepoManager(kind string, t Transport, opts ManagerOptions) *repoManager {
	if opts.Registry == nil {
		opts.Registry = data.NewDefaultRegistry()
	}
	if opts.Logger == nil {
		opts.Logger = NewNopLogger()
	}
	if opts.IDs == nil {
		opts.IDs = UUIDGenerator{}
	}
	if opts.ConflictPolicy == "" {
		opts.ConflictPolicy = ConflictRename
	}
	q := NewRepoComponentQuery(opts.PageSize)
	return &repoManager{
		kind:      kind,
		transport: t,
		opts:      opts,
		registry:  opts.Registry,
		logger:    opts.Logger,
		ids:       opts.IDs,
		query:     q,
		states:    NewPageStates(q.pageSize),
		listeners: make(map[int]func()),
	}
}

// fetchLocked issues a component request for the current query. m.mu must be held.
func (m *repoManager) fetchLocked(ctx context.Context) *Reply {
	if m.opts.CancelSuperseded && m.inflight != nil {
		m.inflight.Cancel()
	}
	params := m.query.Params()
	id := m.ids.New()
	m.logger.Debug("requesting page", "manager", m.kind, "reply", id, "params", params.Encode())
	r := startReply(ctx, id, m.transport, EndpointComponents, params, m.logger, m.handlePage)
	m.inflight = r
	return r
}

// handlePage applies a completed component reply. A failed fetch clears the
// items and keeps the pagination state; an invalid payload changes nothing and
// becomes the reply's error.
func (m *repoManager) handlePage(r *Reply) error {
	if err := r.Err(); err != nil {
		if !failedFetch(err) {
			return err
		}
		m.mu.Lock()
		if cerr := r.ctx.Err(); cerr != nil {
			m.mu.Unlock()
			return cerr
		}
		m.components = nil
		m.mu.Unlock()
		m.logger.Info("page load failed", "manager", m.kind, "reply", r.ID(), "error", err)
		m.emitLoaded()
		return nil
	}

	page, err := m.registry.BuildPage(r.Payload())
	if err != nil {
		return fmt.Errorf("loading page: %w", err)
	}
	comps, err := m.registry.BuildComponents(page.Items)
	if err != nil {
		return fmt.Errorf("loading components: %w", err)
	}

	m.mu.Lock()
	// Superseded while the payload was being built.
	if cerr := r.ctx.Err(); cerr != nil {
		m.mu.Unlock()
		return cerr
	}
	m.states = PageStatesFromPage(page)
	m.query.SetPage(page.Page)
	// Size was validated by NewPage.
	_ = m.query.SetPageSize(page.Size)
	m.components = comps
	if m.inflight == r {
		m.inflight = nil
	}
	states := m.states
	m.mu.Unlock()

	m.logger.Info("page loaded", "manager", m.kind, "reply", r.ID(), "page", states.Page, "items", len(comps), "total", states.Total)
	m.emitLoaded()
	return nil
}

func (m *repoManager) emitLoaded() {
	m.mu.Lock()
	fns := make([]func(), 0, len(m.listeners))
	for id := 0; id < m.nextListener; id++ {
		if fn, ok := m.listeners[id]; ok {
			fns = append(fns, fn)
		}
	}
	m.mu.Unlock()
	for _, fn := range fns {
		fn()
	}
}

func (m *repoManager) OnLoaded(fn func()) func() {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := m.nextListener
	m.nextListener++
	m.listeners[id] = fn
	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		delete(m.listeners, id)
	}
}

func (m *repoManager) ReloadPage(ctx context.Context) *Reply {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.query.SetPage(1)
	return m.fetchLocked(ctx)
}

func (m *repoManager) NextPage(ctx context.Context) *Reply {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.query.SetPage(m.states.NextPage())
	return m.fetchLocked(ctx)
}

func (m *repoManager) PrevPage(ctx context.Context) *Reply {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.query.SetPage(m.states.PrevPage())
	return m.fetchLocked(ctx)
}

// GoToPage requests page, clamped to the known page range.
func (m *repoManager) GoToPage(ctx context.Context, page int) *Reply {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.query.SetPage(m.states.clamp(page))
	return m.fetchLocked(ctx)
}

func (m *repoManager) Search(ctx context.Context, key string) *Reply {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.query.SetSearchKey(key)
	return m.fetchLocked(ctx)
}

func (m *repoManager) Sort(ctx context.Context, by SortField, order SortOrder) (*Reply, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.query.SetSort(by, order); err != nil {
		return nil, err
	}
	return m.fetchLocked(ctx), nil
}

func (m *repoManager) Filter(ctx context.Context, fileTypes []data.FileType, tags []string) (*Reply, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.query.SetFilters(fileTypes, tags); err != nil {
		return nil, err
	}
	return m.fetchLocked(ctx), nil
}

func (m *repoManager) RequestTags(ctx context.Context) *Reply {
	id := m.ids.New()
	m.logger.Debug("requesting tags", "manager", m.kind, "reply", id)
	return startReply(ctx, id, m.transport, EndpointTags, nil, m.logger, nil)
}

// fetchTags requests the tag list and builds it once the reply completes.
func (m *repoManager) fetchTags(ctx context.Context) ([]*data.Tag, error) {
	r := m.RequestTags(ctx)
	if err := r.Wait(ctx); err != nil {
		return nil, fmt.Errorf("requesting tags: %w", err)
	}
	items, err := r.Payload().Items()
	if err != nil {
		return nil, &data.ValidationError{Record: data.DTypeTag, Field: "items", Err: err}
	}
	return m.registry.BuildTags(items)
}

func (m *repoManager) DownloadComponent(c *data.Component, ft data.FileType) (*FileDownloader, error) {
	f, ok := c.Files[ft]
	if !ok {
		return nil, &NotFoundError{Resource: "file", ID: fmt.Sprintf("%s for component %q", ft, c.Name)}
	}
	if c.Name == "" || c.Name == "." || c.Name == ".." || strings.ContainsAny(c.Name, `/\`) {
		return nil, &data.ValidationError{Record: data.DTypeComponent, Field: "name", Msg: fmt.Sprintf("%q is not usable as a file name", c.Name)}
	}

	filename := c.Name + "." + f.Type.Extension()
	d := NewFileDownloader(f.URL, m.opts.DownloadDir, filename, m.opts.Fetcher, m.opts.ConflictPolicy, m.logger)
	if lib := m.opts.Library; lib != nil {
		d.OnSuccess(func(res DownloadResult) {
			abs, err := filepath.Abs(res.Path)
			if err != nil {
				abs = res.Path
			}
			if err := lib.RecordDownload(context.Background(), c, ft, abs); err != nil {
				m.logger.Warn("recording download failed", "component", c.Name, "error", err)
			}
		})
	}
	return d, nil
}

func (m *repoManager) Components() []*data.Component {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*data.Component(nil), m.components...)
}

func (m *repoManager) PageStates() PageStates {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.states
}

func (m *repoManager) Query() QueryState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.query.State()
}
