package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"complib/internal/complib"
	"complib/internal/data"

	"golang.org/x/term"
)

const defaultWidth = 100

// printer renders components as an aligned table on a terminal and as JSON
// lines otherwise, so output can be piped into other tools.
type printer struct {
	w     io.Writer
	tty   bool
	width int
}

func newPrinter(f *os.File) *printer {
	p := &printer{w: f, width: defaultWidth}
	fd := int(f.Fd())
	if term.IsTerminal(fd) {
		p.tty = true
		if w, _, err := term.GetSize(fd); err == nil && w > 0 {
			p.width = w
		}
	}
	return p
}

// Page prints the manager's current components and position.
func (p *printer) Page(m complib.Manager) {
	comps := m.Components()
	if !p.tty {
		enc := json.NewEncoder(p.w)
		for _, c := range comps {
			enc.Encode(data.Serialize(c, true))
		}
		return
	}

	if len(comps) == 0 {
		fmt.Fprintln(p.w, "No components found.")
	} else {
		tw := tabwriter.NewWriter(p.w, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "ID\tNAME\tTYPES\tTAGS")
		for _, c := range comps {
			types := make([]string, 0, len(c.Files))
			for _, ft := range c.FileTypes() {
				types = append(types, string(ft))
			}
			fmt.Fprintln(tw, p.clamp(fmt.Sprintf("%d\t%s\t%s\t%s",
				c.ID, c.Name, strings.Join(types, ","), strings.Join(c.Tags, ","))))
		}
		tw.Flush()
	}
	fmt.Fprintln(p.w, pageSummary(m.PageStates()))
}

// Tags prints one tag per line, or one JSON object per line off a terminal.
func (p *printer) Tags(tags []*data.Tag) {
	enc := json.NewEncoder(p.w)
	for _, t := range tags {
		if p.tty {
			fmt.Fprintln(p.w, t.Name)
			continue
		}
		enc.Encode(data.Serialize(t, true))
	}
}

// Prompt prints an interactive message. Off a terminal it goes to stderr to
// keep stdout parseable.
func (p *printer) Prompt(msg string) {
	if p.tty {
		fmt.Fprintln(p.w, msg)
		return
	}
	fmt.Fprintln(os.Stderr, msg)
}

// clamp cuts a row to the terminal width.
func (p *printer) clamp(row string) string {
	if p.width <= 0 || len(row) <= p.width {
		return row
	}
	return row[:p.width]
}

func pageSummary(s complib.PageStates) string {
	if !s.TotalKnown {
		return fmt.Sprintf("page %d (size %d)", s.Page, s.Size)
	}
	return fmt.Sprintf("page %d of %d (%d components)", s.Page, s.TotalPages(), s.Total)
}
