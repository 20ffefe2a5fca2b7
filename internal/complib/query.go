package complib

import (
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"

	"complib/internal/data"
)

// DefaultPageSize is used when neither config nor server supplies a page size.
const DefaultPageSize = 20

// SortField names the attribute results are ordered by.
type SortField string

const (
	SortNone      SortField = ""
	SortByName    SortField = "name"
	SortByCreated SortField = "created_at"
	SortByUpdated SortField = "updated_at"
)

// SortOrder is the direction of a sort.
type SortOrder string

const (
	SortAsc  SortOrder = "asc"
	SortDesc SortOrder = "desc"
)

// ParseSortField validates a sort field name. The empty string means unsorted.
func ParseSortField(s string) (SortField, error) {
	switch f := SortField(strings.ToLower(s)); f {
	case SortNone, SortByName, SortByCreated, SortByUpdated:
		return f, nil
	default:
		return "", &data.ValidationError{Field: "sort_by", Msg: fmt.Sprintf("unknown sort field %q", s)}
	}
}

// ParseSortOrder validates a sort order. The empty string means ascending.
func ParseSortOrder(s string) (SortOrder, error) {
	switch o := SortOrder(strings.ToLower(s)); o {
	case "", SortAsc:
		return SortAsc, nil
	case SortDesc:
		return o, nil
	default:
		return "", &data.ValidationError{Field: "sort_order", Msg: fmt.Sprintf("unknown sort order %q", s)}
	}
}

// QueryState is an immutable snapshot of a query. FileTypes and Tags are sorted
// and free of duplicates.
type QueryState struct {
	Page      int
	PageSize  int
	Search    string
	SortBy    SortField
	SortOrder SortOrder
	FileTypes []data.FileType
	Tags      []string
}

// Params returns the request parameters for this state. Empty filters and an
// unset sort are omitted.
func (s QueryState) Params() url.Values {
	v := url.Values{}
	v.Set("page", strconv.Itoa(s.Page))
	v.Set("page_size", strconv.Itoa(s.PageSize))
	if s.Search != "" {
		v.Set("search", s.Search)
	}
	if s.SortBy != SortNone {
		v.Set("sort_by", string(s.SortBy))
		v.Set("sort_order", string(s.SortOrder))
	}
	for _, ft := range s.FileTypes {
		v.Add("file_type", string(ft))
	}
	for _, tag := range s.Tags {
		v.Add("tag", tag)
	}
	return v
}

// ParseQueryParams is the inverse of QueryState.Params. Missing page and
// page_size fall back to 1 and DefaultPageSize.
func ParseQueryParams(v url.Values) (QueryState, error) {
	q := NewRepoComponentQuery(DefaultPageSize)

	if s := v.Get("page"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 1 {
			return QueryState{}, &data.ValidationError{Field: "page", Msg: fmt.Sprintf("invalid page %q", s)}
		}
		q.page = n
	}
	if s := v.Get("page_size"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil {
			return QueryState{}, &data.ValidationError{Field: "page_size", Msg: fmt.Sprintf("invalid page size %q", s)}
		}
		if err := q.SetPageSize(n); err != nil {
			return QueryState{}, err
		}
	}
	q.search = v.Get("search")

	if by := v.Get("sort_by"); by != "" {
		field, err := ParseSortField(by)
		if err != nil {
			return QueryState{}, err
		}
		order, err := ParseSortOrder(v.Get("sort_order"))
		if err != nil {
			return QueryState{}, err
		}
		q.sortBy, q.sortOrder = field, order
	}

	var fts []data.FileType
	for _, s := range v["file_type"] {
		ft, err := data.ParseFileType(s)
		if err != nil {
			return QueryState{}, err
		}
		fts = append(fts, ft)
	}
	q.fileTypes = toFileTypeSet(fts)
	q.tags = toTagSet(v["tag"])

	return q.State(), nil
}

// ComponentQuery builds the request parameters for a component listing.
// Mutations have no network effect; a Manager decides when to fetch.
type ComponentQuery interface {
	SetSearchKey(key string)
	SetSort(by SortField, order SortOrder) error
	SetFilters(fileTypes []data.FileType, tags []string) error
	SetPage(page int)
	SetPageSize(size int) error
	State() QueryState
	Params() url.Values
}

var _ ComponentQuery = (*RepoComponentQuery)(nil)

// RepoComponentQuery is the query used against repository endpoints.
// Changing the search key, sort or filters resets the page to 1.
// It is not safe for concurrent use; its Manager serializes access.
type RepoComponentQuery struct {
	page      int
	pageSize  int
	search    string
	sortBy    SortField
	sortOrder SortOrder
	fileTypes map[data.FileType]struct{}
	tags      map[string]struct{}
}

// NewRepoComponentQuery creates a query for page 1. Non-positive sizes use DefaultPageSize.
func NewRepoComponentQuery(pageSize int) *RepoComponentQuery {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	return &RepoComponentQuery{
		page:      1,
		pageSize:  pageSize,
		sortOrder: SortAsc,
		fileTypes: map[data.FileType]struct{}{},
		tags:      map[string]struct{}{},
	}
}

func (q *RepoComponentQuery) SetSearchKey(key string) {
	q.search = strings.TrimSpace(key)
	q.page = 1
}

func (q *RepoComponentQuery) SetSort(by SortField, order SortOrder) error {
	field, err := ParseSortField(string(by))
	if err != nil {
		return err
	}
	o, err := ParseSortOrder(string(order))
	if err != nil {
		return err
	}
	q.sortBy, q.sortOrder = field, o
	q.page = 1
	return nil
}

// SetFilters replaces both filter sets. Nil or empty slices clear a filter.
func (q *RepoComponentQuery) SetFilters(fileTypes []data.FileType, tags []string) error {
	for _, ft := range fileTypes {
		if !ft.Valid() {
			return &data.ValidationError{Field: "file_type", Msg: fmt.Sprintf("unknown file type %q", ft)}
		}
	}
	q.fileTypes = toFileTypeSet(fileTypes)
	q.tags = toTagSet(tags)
	q.page = 1
	return nil
}

// SetPage sets the page number, clamping values below 1.
func (q *RepoComponentQuery) SetPage(page int) {
	if page < 1 {
		page = 1
	}
	q.page = page
}

func (q *RepoComponentQuery) SetPageSize(size int) error {
	if size <= 0 {
		return &data.ValidationError{Field: "page_size", Msg: fmt.Sprintf("must be > 0, got %d", size)}
	}
	q.pageSize = size
	return nil
}

func (q *RepoComponentQuery) State() QueryState {
	s := QueryState{
		Page:     q.page,
		PageSize: q.pageSize,
		Search:   q.search,
		SortBy:   q.sortBy,
	}
	if s.SortBy != SortNone {
		s.SortOrder = q.sortOrder
	}
	for ft := range q.fileTypes {
		s.FileTypes = append(s.FileTypes, ft)
	}
	sort.Slice(s.FileTypes, func(i, j int) bool { return s.FileTypes[i] < s.FileTypes[j] })
	for tag := range q.tags {
		s.Tags = append(s.Tags, tag)
	}
	sort.Strings(s.Tags)
	return s
}

func (q *RepoComponentQuery) Params() url.Values { return q.State().Params() }

func toFileTypeSet(fts []data.FileType) map[data.FileType]struct{} {
	set := make(map[data.FileType]struct{}, len(fts))
	for _, ft := range fts {
		set[ft] = struct{}{}
	}
	return set
}

func toTagSet(tags []string) map[string]struct{} {
	set := make(map[string]struct{}, len(tags))
	for _, tag := range tags {
		if tag = strings.TrimSpace(tag); tag != "" {
			set[tag] = struct{}{}
		}
	}
	return set
}
