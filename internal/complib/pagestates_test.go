package complib

import (
	"testing"

	"complib/internal/data"
)

func intPtr(n int) *int { return &n }

func TestPageStates(t *testing.T) {
	tests := []struct {
		name       string
		page       *data.Page
		wantTotal  int
		wantNext   int
		wantPrev   int
		wantHasNxt bool
		wantHasPrv bool
	}{
		{
			name: "single partial page",
			page: &data.Page{Page: 1, Size: 20, Total: intPtr(8)},
			wantTotal: 1, wantNext: 1, wantPrev: 1,
		},
		{
			name: "empty result",
			page: &data.Page{Page: 1, Size: 20, Total: intPtr(0)},
			wantTotal: 1, wantNext: 1, wantPrev: 1,
		},
		{
			name: "middle page",
			page: &data.Page{Page: 3, Size: 10, Total: intPtr(45)},
			wantTotal: 5, wantNext: 4, wantPrev: 2,
			wantHasNxt: true, wantHasPrv: true,
		},
		{
			name: "last page exact fit",
			page: &data.Page{Page: 4, Size: 10, Total: intPtr(40)},
			wantTotal: 4, wantNext: 4, wantPrev: 3,
			wantHasPrv: true,
		},
		{
			name: "server page past the end",
			page: &data.Page{Page: 9, Size: 10, Total: intPtr(25)},
			wantTotal: 3, wantNext: 3, wantPrev: 3,
			wantHasPrv: true,
		},
		{
			name: "unknown total",
			page: &data.Page{Page: 2, Size: 10},
			wantTotal: 0, wantNext: 3, wantPrev: 1,
			wantHasNxt: true, wantHasPrv: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := PageStatesFromPage(tt.page)
			if got := s.TotalPages(); got != tt.wantTotal {
				t.Errorf("TotalPages() = %d, want %d", got, tt.wantTotal)
			}
			if got := s.NextPage(); got != tt.wantNext {
				t.Errorf("NextPage() = %d, want %d", got, tt.wantNext)
			}
			if got := s.PrevPage(); got != tt.wantPrev {
				t.Errorf("PrevPage() = %d, want %d", got, tt.wantPrev)
			}
			if got := s.HasNext(); got != tt.wantHasNxt {
				t.Errorf("HasNext() = %v, want %v", got, tt.wantHasNxt)
			}
			if got := s.HasPrev(); got != tt.wantHasPrv {
				t.Errorf("HasPrev() = %v, want %v", got, tt.wantHasPrv)
			}
		})
	}
}

func TestPageStates_BoundsHoldForAllPositions(t *testing.T) {
	for size := 1; size <= 7; size++ {
		for total := 0; total <= 30; total++ {
			for page := 1; page <= 8; page++ {
				s := PageStatesFromPage(&data.Page{Page: page, Size: size, Total: intPtr(total)})
				last := s.TotalPages()
				for _, p := range []int{s.NextPage(), s.PrevPage()} {
					if p < 1 || p > last {
						t.Fatalf("size=%d total=%d page=%d: got %d outside [1, %d]", size, total, page, p, last)
					}
				}
			}
		}
	}
}

func TestNewPageStates(t *testing.T) {
	s := NewPageStates(0)
	if s.Page != 1 || s.Size != DefaultPageSize || s.TotalKnown {
		t.Errorf("NewPageStates(0) = %+v", s)
	}
}
