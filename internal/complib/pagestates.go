package complib

import "complib/internal/data"

// PageStates is the pagination position after the last successful load.
// It is a value type and is replaced wholesale on each load.
type PageStates struct {
	Page       int
	Size       int
	Total      int
	TotalKnown bool
}

// NewPageStates returns the state before any page has been loaded.
func NewPageStates(size int) PageStates {
	if size <= 0 {
		size = DefaultPageSize
	}
	return PageStates{Page: 1, Size: size}
}

// PageStatesFromPage derives the pagination state from a loaded page.
func PageStatesFromPage(p *data.Page) PageStates {
	s := PageStates{Page: p.Page, Size: p.Size}
	if p.Total != nil {
		s.Total = *p.Total
		s.TotalKnown = true
	}
	return s
}

// TotalPages returns the number of pages, at least 1, or 0 when the total is unknown.
func (s PageStates) TotalPages() int {
	if !s.TotalKnown {
		return 0
	}
	n := (s.Total + s.Size - 1) / s.Size
	if n < 1 {
		n = 1
	}
	return n
}

// NextPage returns the page after the current one, clamped to the last page when known.
func (s PageStates) NextPage() int {
	return s.clamp(s.Page + 1)
}

// PrevPage returns the page before the current one, never below 1.
func (s PageStates) PrevPage() int {
	return s.clamp(s.Page - 1)
}

// clamp bounds page to the valid range for this state.
func (s PageStates) clamp(page int) int {
	if s.TotalKnown {
		if last := s.TotalPages(); page > last {
			page = last
		}
	}
	if page < 1 {
		page = 1
	}
	return page
}

func (s PageStates) HasNext() bool { return s.NextPage() > s.Page }

func (s PageStates) HasPrev() bool { return s.PrevPage() < s.Page }
