package data

import "fmt"

// Page is one slice of a paginated listing. Items are left raw so the caller
// can build them with the DType it expects.
type Page struct {
	Page  int              `mapstructure:"page"`
	Size  int              `mapstructure:"size"`
	Total *int             `mapstructure:"total"`
	Items []map[string]any `mapstructure:"items"`
}

func (*Page) DType() DType { return DTypePage }

// TotalKnown reports whether the server sent a total count.
func (p *Page) TotalKnown() bool { return p.Total != nil }

func (p *Page) Fields() map[string]any {
	items := make([]map[string]any, len(p.Items))
	for i, it := range p.Items {
		items[i] = copyFields(it)
	}
	m := map[string]any{
		"page":  p.Page,
		"size":  p.Size,
		"items": items,
	}
	if p.Total != nil {
		m["total"] = *p.Total
	}
	return m
}

// NewPage builds a Page from its wire mapping. items, page and size are required.
func NewPage(fields map[string]any) (Record, error) {
	if err := require(DTypePage, fields, "items", "page", "size"); err != nil {
		return nil, err
	}

	var p Page
	if err := decode(DTypePage, fields, &p); err != nil {
		return nil, err
	}
	if p.Page < 1 {
		return nil, &ValidationError{Record: DTypePage, Field: "page", Msg: fmt.Sprintf("must be >= 1, got %d", p.Page)}
	}
	if p.Size < 1 {
		return nil, &ValidationError{Record: DTypePage, Field: "size", Msg: fmt.Sprintf("must be > 0, got %d", p.Size)}
	}
	if p.Total != nil && *p.Total < 0 {
		return nil, &ValidationError{Record: DTypePage, Field: "total", Msg: fmt.Sprintf("must be >= 0, got %d", *p.Total)}
	}
	if p.Items == nil {
		p.Items = []map[string]any{}
	}
	return &p, nil
}
