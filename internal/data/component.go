package data

import (
	"fmt"
	"sort"
)

// File is one downloadable rendition of a component.
type File struct {
	URL  string   `mapstructure:"url"`
	Type FileType `mapstructure:"type"`
}

// Component is a browsable asset. Files is keyed by FileType and only ever
// holds members of the enumeration.
type Component struct {
	Base
	Name      string
	Thumbnail string
	Tags      []string
	Files     map[FileType]File
}

type componentWire struct {
	Base      `mapstructure:",squash"`
	Name      string   `mapstructure:"name"`
	Thumbnail string   `mapstructure:"thumbnail"`
	Tags      []string `mapstructure:"tags"`
	Files     []File   `mapstructure:"files"`
}

func (*Component) DType() DType { return DTypeComponent }

// FileTypes returns the available file types in enumeration order.
func (c *Component) FileTypes() []FileType {
	var out []FileType
	for _, ft := range FileTypes {
		if _, ok := c.Files[ft]; ok {
			out = append(out, ft)
		}
	}
	return out
}

func (c *Component) Fields() map[string]any {
	m := map[string]any{
		"name":      c.Name,
		"thumbnail": c.Thumbnail,
	}
	if len(c.Tags) > 0 {
		m["tags"] = append([]string(nil), c.Tags...)
	}

	types := make([]string, 0, len(c.Files))
	for ft := range c.Files {
		types = append(types, string(ft))
	}
	sort.Strings(types)

	files := make([]any, 0, len(types))
	for _, t := range types {
		f := c.Files[FileType(t)]
		files = append(files, map[string]any{"url": f.URL, "type": string(f.Type)})
	}
	m["files"] = files

	c.Base.putFields(m)
	return m
}

// NewComponent builds a Component from its wire mapping. name and files are required.
func NewComponent(fields map[string]any) (Record, error) {
	if err := require(DTypeComponent, fields, "name", "files"); err != nil {
		return nil, err
	}

	var w componentWire
	if err := decode(DTypeComponent, fields, &w); err != nil {
		return nil, err
	}

	files := make(map[FileType]File, len(w.Files))
	for i, f := range w.Files {
		if !f.Type.Valid() {
			return nil, &ValidationError{
				Record: DTypeComponent,
				Field:  fmt.Sprintf("files[%d].type", i),
				Msg:    fmt.Sprintf("unknown file type %q", f.Type),
			}
		}
		if f.URL == "" {
			return nil, missingField(DTypeComponent, fmt.Sprintf("files[%d].url", i))
		}
		files[f.Type] = f
	}

	var tags []string
	if len(w.Tags) > 0 {
		tags = w.Tags
	}

	return &Component{
		Base:      w.Base,
		Name:      w.Name,
		Thumbnail: w.Thumbnail,
		Tags:      tags,
		Files:     files,
	}, nil
}
