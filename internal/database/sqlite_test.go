package database

import (
	"context"
	"reflect"
	"testing"
	"time"

	"complib/internal/complib"
	"complib/internal/data"
)

type stepClock struct {
	now time.Time
}

// Now advances one second per call so insertion order is visible in timestamps.
func (c *stepClock) Now() time.Time {
	c.now = c.now.Add(time.Second)
	return c.now
}

// newTestLibrary creates a new in-memory library with schema applied.
func newTestLibrary(t *testing.T) *SQLiteLibrary {
	t.Helper()

	lib, err := NewSQLiteLibrary(":memory:", &stepClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)})
	if err != nil {
		t.Fatalf("failed to create library: %v", err)
	}
	t.Cleanup(func() {
		lib.Close()
	})
	return lib
}

func component(name string, tags []string, types ...data.FileType) *data.Component {
	c := &data.Component{Name: name, Thumbnail: "https://cdn.example.org/" + name + ".png", Tags: tags, Files: map[data.FileType]data.File{}}
	for _, ft := range types {
		c.Files[ft] = data.File{URL: "https://cdn.example.org/" + name + "." + ft.Extension(), Type: ft}
	}
	return c
}

func record(t *testing.T, lib *SQLiteLibrary, c *data.Component, ft data.FileType) {
	t.Helper()
	if err := lib.RecordDownload(context.Background(), c, ft, "/lib/"+c.Name+"."+ft.Extension()); err != nil {
		t.Fatalf("RecordDownload(%s, %s) error = %v", c.Name, ft, err)
	}
}

func names(comps []*data.Component) []string {
	out := make([]string, len(comps))
	for i, c := range comps {
		out[i] = c.Name
	}
	return out
}

func TestSQLiteLibrary_RecordDownload(t *testing.T) {
	t.Run("stores component with local file url", func(t *testing.T) {
		lib := newTestLibrary(t)
		record(t, lib, component("m3-bolt", []string{"metric", "fasteners"}, data.FileTypeSTL, data.FileTypeSTEP), data.FileTypeSTL)

		comps, total, err := lib.ListComponents(context.Background(), complib.QueryState{Page: 1, PageSize: 10})
		if err != nil {
			t.Fatalf("ListComponents() error = %v", err)
		}
		if total != 1 || len(comps) != 1 {
			t.Fatalf("ListComponents() = %d items, total %d; want 1, 1", len(comps), total)
		}
		c := comps[0]
		if c.ID == 0 {
			t.Error("ID = 0, want assigned id")
		}
		if want := []string{"fasteners", "metric"}; !reflect.DeepEqual(c.Tags, want) {
			t.Errorf("Tags = %v, want %v", c.Tags, want)
		}
		if got := c.FileTypes(); !reflect.DeepEqual(got, []data.FileType{data.FileTypeSTL}) {
			t.Errorf("FileTypes() = %v, want only the downloaded type", got)
		}
		if url := c.Files[data.FileTypeSTL].URL; url != "file:///lib/m3-bolt.stl" {
			t.Errorf("file URL = %q, want %q", url, "file:///lib/m3-bolt.stl")
		}
		if c.CreatedAt.IsZero() || !c.CreatedAt.Equal(c.UpdatedAt) {
			t.Errorf("timestamps = %v / %v", c.CreatedAt, c.UpdatedAt)
		}
	})

	t.Run("recording again updates in place", func(t *testing.T) {
		lib := newTestLibrary(t)
		c := component("m3-bolt", []string{"metric"}, data.FileTypeSTL, data.FileTypeSTEP)
		record(t, lib, c, data.FileTypeSTL)

		c.Tags = []string{"fasteners"}
		record(t, lib, c, data.FileTypeSTEP)
		if err := lib.RecordDownload(context.Background(), c, data.FileTypeSTL, "/elsewhere/m3-bolt.stl"); err != nil {
			t.Fatalf("RecordDownload() error = %v", err)
		}

		comps, total, err := lib.ListComponents(context.Background(), complib.QueryState{Page: 1, PageSize: 10})
		if err != nil {
			t.Fatalf("ListComponents() error = %v", err)
		}
		if total != 1 {
			t.Fatalf("total = %d, want 1", total)
		}
		got := comps[0]
		if !reflect.DeepEqual(got.Tags, []string{"fasteners"}) {
			t.Errorf("Tags = %v, want [fasteners]", got.Tags)
		}
		if len(got.Files) != 2 {
			t.Errorf("Files = %v, want stl and step", got.Files)
		}
		if url := got.Files[data.FileTypeSTL].URL; url != "file:///elsewhere/m3-bolt.stl" {
			t.Errorf("stl URL = %q, want replaced path", url)
		}
		if !got.UpdatedAt.After(got.CreatedAt) {
			t.Errorf("UpdatedAt %v not after CreatedAt %v", got.UpdatedAt, got.CreatedAt)
		}

		tags, err := lib.ListTags(context.Background())
		if err != nil {
			t.Fatalf("ListTags() error = %v", err)
		}
		if len(tags) != 1 || tags[0].Name != "fasteners" {
			t.Errorf("ListTags() = %v, want only tags still in use", tags)
		}
	})

	t.Run("validation", func(t *testing.T) {
		lib := newTestLibrary(t)
		c := component("m3-bolt", nil, data.FileTypeSTL)
		tests := []struct {
			name string
			c    *data.Component
			ft   data.FileType
			path string
		}{
			{"nil component", nil, data.FileTypeSTL, "/lib/x"},
			{"unnamed component", &data.Component{}, data.FileTypeSTL, "/lib/x"},
			{"unknown file type", c, data.FileType("dwg"), "/lib/x"},
			{"empty path", c, data.FileTypeSTL, ""},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				err := lib.RecordDownload(context.Background(), tt.c, tt.ft, tt.path)
				if !data.IsValidation(err) {
					t.Errorf("RecordDownload() error = %v, want ValidationError", err)
				}
			})
		}
	})
}

func TestSQLiteLibrary_ListComponents(t *testing.T) {
	lib := newTestLibrary(t)
	record(t, lib, component("M3 Bolt", []string{"fasteners", "metric"}, data.FileTypeSTL), data.FileTypeSTL)
	record(t, lib, component("hex nut", []string{"fasteners"}, data.FileTypeSTEP), data.FileTypeSTEP)
	record(t, lib, component("bracket_90", []string{"frame"}, data.FileTypeFCStd), data.FileTypeFCStd)
	record(t, lib, component("100% infill cube", nil, data.FileTypeOBJ), data.FileTypeOBJ)

	tests := []struct {
		name      string
		q         complib.QueryState
		want      []string
		wantTotal int
	}{
		{
			name:      "insertion order by default",
			q:         complib.QueryState{Page: 1, PageSize: 10},
			want:      []string{"M3 Bolt", "hex nut", "bracket_90", "100% infill cube"},
			wantTotal: 4,
		},
		{
			name:      "search is case insensitive",
			q:         complib.QueryState{Page: 1, PageSize: 10, Search: "bolt"},
			want:      []string{"M3 Bolt"},
			wantTotal: 1,
		},
		{
			name:      "search treats wildcards literally",
			q:         complib.QueryState{Page: 1, PageSize: 10, Search: "%"},
			want:      []string{"100% infill cube"},
			wantTotal: 1,
		},
		{
			name:      "underscore is literal",
			q:         complib.QueryState{Page: 1, PageSize: 10, Search: "t_9"},
			want:      []string{"bracket_90"},
			wantTotal: 1,
		},
		{
			name:      "file type filter matches any",
			q:         complib.QueryState{Page: 1, PageSize: 10, FileTypes: []data.FileType{data.FileTypeSTEP, data.FileTypeSTL}},
			want:      []string{"M3 Bolt", "hex nut"},
			wantTotal: 2,
		},
		{
			name:      "tag filter matches any",
			q:         complib.QueryState{Page: 1, PageSize: 10, Tags: []string{"frame", "metric"}},
			want:      []string{"M3 Bolt", "bracket_90"},
			wantTotal: 2,
		},
		{
			name:      "filters combine",
			q:         complib.QueryState{Page: 1, PageSize: 10, FileTypes: []data.FileType{data.FileTypeSTEP}, Tags: []string{"fasteners"}},
			want:      []string{"hex nut"},
			wantTotal: 1,
		},
		{
			name:      "sort by name descending",
			q:         complib.QueryState{Page: 1, PageSize: 10, SortBy: complib.SortByName, SortOrder: complib.SortDesc},
			want:      []string{"M3 Bolt", "hex nut", "bracket_90", "100% infill cube"},
			wantTotal: 4,
		},
		{
			name:      "sort by creation descending",
			q:         complib.QueryState{Page: 1, PageSize: 10, SortBy: complib.SortByCreated, SortOrder: complib.SortDesc},
			want:      []string{"100% infill cube", "bracket_90", "hex nut", "M3 Bolt"},
			wantTotal: 4,
		},
		{
			name:      "second page",
			q:         complib.QueryState{Page: 2, PageSize: 3},
			want:      []string{"100% infill cube"},
			wantTotal: 4,
		},
		{
			name:      "page past the end",
			q:         complib.QueryState{Page: 5, PageSize: 3},
			want:      []string{},
			wantTotal: 4,
		},
		{
			name:      "no match",
			q:         complib.QueryState{Page: 1, PageSize: 10, Search: "gear"},
			want:      []string{},
			wantTotal: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			comps, total, err := lib.ListComponents(context.Background(), tt.q)
			if err != nil {
				t.Fatalf("ListComponents() error = %v", err)
			}
			if got := names(comps); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("ListComponents() = %v, want %v", got, tt.want)
			}
			if total != tt.wantTotal {
				t.Errorf("total = %d, want %d", total, tt.wantTotal)
			}
		})
	}
}

func TestSQLiteLibrary_ListTags(t *testing.T) {
	lib := newTestLibrary(t)

	tags, err := lib.ListTags(context.Background())
	if err != nil {
		t.Fatalf("ListTags() error = %v", err)
	}
	if len(tags) != 0 {
		t.Errorf("ListTags() on empty library = %v", tags)
	}

	record(t, lib, component("m3-bolt", []string{"metric", "fasteners"}, data.FileTypeSTL), data.FileTypeSTL)
	record(t, lib, component("hex-nut", []string{"fasteners"}, data.FileTypeSTL), data.FileTypeSTL)

	tags, err = lib.ListTags(context.Background())
	if err != nil {
		t.Fatalf("ListTags() error = %v", err)
	}
	var got []string
	for _, tag := range tags {
		got = append(got, tag.Name)
		if tag.ID == 0 {
			t.Errorf("tag %s has no id", tag.Name)
		}
	}
	if want := []string{"fasteners", "metric"}; !reflect.DeepEqual(got, want) {
		t.Errorf("ListTags() = %v, want %v", got, want)
	}
}

func TestFileURL(t *testing.T) {
	if got := FileURL("/lib/m3 bolt.stl"); got != "file:///lib/m3%20bolt.stl" {
		t.Errorf("FileURL() = %q", got)
	}
}
