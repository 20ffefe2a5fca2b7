package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"sort"
	"strings"
	"sync"

	"complib/internal/complib"
	"complib/internal/data"
)

// Catalogue is an in-memory component store. Served through
// NewMemoryTransport it behaves like a remote repository, which makes it
// useful for demos and tests.
type Catalogue struct {
	mu     sync.RWMutex
	comps  []*data.Component
	clock  complib.Clock
	nextID int64
}

var _ complib.Library = (*Catalogue)(nil)

func NewCatalogue(clock complib.Clock) *Catalogue {
	if clock == nil {
		clock = complib.RealClock{}
	}
	return &Catalogue{clock: clock, nextID: 1}
}

// LoadCatalogue reads a JSON file of the form {"items": [component, ...]}.
func LoadCatalogue(path string, reg *data.Registry, clock complib.Clock) (*Catalogue, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading catalogue: %w", err)
	}
	var doc struct {
		Items []map[string]any `json:"items"`
	}
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("parsing catalogue %s: %w", path, err)
	}
	comps, err := reg.BuildComponents(doc.Items)
	if err != nil {
		return nil, fmt.Errorf("building catalogue %s: %w", path, err)
	}
	cat := NewCatalogue(clock)
	cat.Add(comps...)
	return cat, nil
}

// Add stores copies of comps, assigning ids and timestamps where unset.
// The caller's components are left untouched.
func (c *Catalogue) Add(comps ...*data.Component) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, comp := range comps {
		c.addLocked(comp)
	}
}

func (c *Catalogue) addLocked(comp *data.Component) {
	comp = clone(comp)
	if comp.ID == 0 {
		comp.ID = c.nextID
	}
	if comp.ID >= c.nextID {
		c.nextID = comp.ID + 1
	}
	if comp.CreatedAt.IsZero() {
		comp.CreatedAt = c.clock.Now().UTC()
	}
	if comp.UpdatedAt.IsZero() {
		comp.UpdatedAt = comp.CreatedAt
	}
	c.comps = append(c.comps, comp)
}

func (c *Catalogue) ListComponents(ctx context.Context, q complib.QueryState) ([]*data.Component, int, error) {
	if err := ctx.Err(); err != nil {
		return nil, 0, err
	}
	c.mu.RLock()
	defer c.mu.RUnlock()

	var matched []*data.Component
	for _, comp := range c.comps {
		if matches(comp, q) {
			matched = append(matched, comp)
		}
	}
	sortComponents(matched, q.SortBy, q.SortOrder)

	page, size := q.Page, q.PageSize
	if page < 1 {
		page = 1
	}
	if size <= 0 {
		size = complib.DefaultPageSize
	}
	start := (page - 1) * size
	if start > len(matched) {
		start = len(matched)
	}
	end := start + size
	if end > len(matched) {
		end = len(matched)
	}
	out := make([]*data.Component, 0, end-start)
	for _, comp := range matched[start:end] {
		out = append(out, clone(comp))
	}
	return out, len(matched), nil
}

// clone copies comp so stored components and the ones handed out never share
// state with callers or with RecordDownload.
func clone(comp *data.Component) *data.Component {
	cp := *comp
	cp.Tags = append([]string(nil), comp.Tags...)
	cp.Files = make(map[data.FileType]data.File, len(comp.Files))
	for ft, f := range comp.Files {
		cp.Files[ft] = f
	}
	return &cp
}

// ListTags returns the distinct tags of all components, by name. Ids follow that order.
func (c *Catalogue) ListTags(ctx context.Context) ([]*data.Tag, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	c.mu.RLock()
	seen := make(map[string]struct{})
	for _, comp := range c.comps {
		for _, tag := range comp.Tags {
			seen[tag] = struct{}{}
		}
	}
	c.mu.RUnlock()

	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	sort.Strings(names)

	tags := make([]*data.Tag, len(names))
	for i, name := range names {
		tags[i] = &data.Tag{Base: data.Base{ID: int64(i + 1)}, Name: name}
	}
	return tags, nil
}

// RecordDownload upserts comp by name with path as its file of type ft.
func (c *Catalogue) RecordDownload(ctx context.Context, comp *data.Component, ft data.FileType, path string) error {
	if comp == nil || comp.Name == "" {
		return &data.ValidationError{Record: data.DTypeComponent, Field: "name", Msg: "component name required"}
	}
	if !ft.Valid() {
		return &data.ValidationError{Record: data.DTypeComponent, Field: "file_type", Msg: fmt.Sprintf("unknown file type %q", ft)}
	}
	file := data.File{URL: (&url.URL{Scheme: "file", Path: path}).String(), Type: ft}

	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.clock.Now().UTC()
	for _, existing := range c.comps {
		if existing.Name == comp.Name {
			existing.Thumbnail = comp.Thumbnail
			existing.Tags = append([]string(nil), comp.Tags...)
			if existing.Files == nil {
				existing.Files = make(map[data.FileType]data.File)
			}
			existing.Files[ft] = file
			existing.UpdatedAt = now
			return nil
		}
	}
	c.addLocked(&data.Component{
		Base:      data.Base{CreatedAt: now, UpdatedAt: now},
		Name:      comp.Name,
		Thumbnail: comp.Thumbnail,
		Tags:      append([]string(nil), comp.Tags...),
		Files:     map[data.FileType]data.File{ft: file},
	})
	return nil
}

func (c *Catalogue) Close() error { return nil }

// NewMemoryTransport serves cat over the repository endpoints.
func NewMemoryTransport(cat *Catalogue) complib.Transport {
	return complib.NewLibraryTransport(cat)
}

// matches applies the same rules as the SQLite library: case-insensitive
// name search, any-of within each filter, all filters combined.
func matches(c *data.Component, q complib.QueryState) bool {
	if q.Search != "" && !strings.Contains(strings.ToLower(c.Name), strings.ToLower(q.Search)) {
		return false
	}
	if len(q.FileTypes) > 0 {
		found := false
		for _, ft := range q.FileTypes {
			if _, ok := c.Files[ft]; ok {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if len(q.Tags) > 0 {
		found := false
		for _, want := range q.Tags {
			for _, tag := range c.Tags {
				if tag == want {
					found = true
				}
			}
		}
		if !found {
			return false
		}
	}
	return true
}

func sortComponents(comps []*data.Component, by complib.SortField, order complib.SortOrder) {
	var less func(a, b *data.Component) bool
	switch by {
	case complib.SortByName:
		less = func(a, b *data.Component) bool { return strings.ToLower(a.Name) < strings.ToLower(b.Name) }
	case complib.SortByCreated:
		less = func(a, b *data.Component) bool { return a.CreatedAt.Before(b.CreatedAt) }
	case complib.SortByUpdated:
		less = func(a, b *data.Component) bool { return a.UpdatedAt.Before(b.UpdatedAt) }
	default:
		return
	}
	desc := order == complib.SortDesc
	sort.SliceStable(comps, func(i, j int) bool {
		if desc {
			return less(comps[j], comps[i])
		}
		return less(comps[i], comps[j])
	})
}
