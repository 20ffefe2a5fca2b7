package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"complib/internal/complib"
	"complib/internal/data"

	"github.com/spf13/cobra"
)

// browseOptions is the initial query given on the command line.
type browseOptions struct {
	search    string
	sortBy    complib.SortField
	sortOrder complib.SortOrder
	fileTypes []data.FileType
	tags      []string
	page      int
}

func browseOptionsFromFlags(cmd *cobra.Command) (browseOptions, error) {
	var opts browseOptions
	var err error

	opts.search, _ = cmd.Flags().GetString("search")
	opts.page, _ = cmd.Flags().GetInt("page")
	opts.tags, _ = cmd.Flags().GetStringSlice("tag")

	sortFlag, _ := cmd.Flags().GetString("sort")
	if opts.sortBy, err = complib.ParseSortField(sortFlag); err != nil {
		return opts, err
	}
	orderFlag, _ := cmd.Flags().GetString("order")
	if opts.sortOrder, err = complib.ParseSortOrder(orderFlag); err != nil {
		return opts, err
	}

	types, _ := cmd.Flags().GetStringSlice("type")
	for _, s := range types {
		ft, err := data.ParseFileType(s)
		if err != nil {
			return opts, err
		}
		opts.fileTypes = append(opts.fileTypes, ft)
	}
	return opts, nil
}

// apply loads the first page matching opts into m. Each query change issues
// its own fetch, so every reply is awaited before the next is issued.
func (o browseOptions) apply(ctx context.Context, m complib.Manager) error {
	var replies []func() (*complib.Reply, error)
	if len(o.fileTypes) > 0 || len(o.tags) > 0 {
		replies = append(replies, func() (*complib.Reply, error) { return m.Filter(ctx, o.fileTypes, o.tags) })
	}
	if o.sortBy != complib.SortNone {
		replies = append(replies, func() (*complib.Reply, error) { return m.Sort(ctx, o.sortBy, o.sortOrder) })
	}
	if o.search != "" {
		replies = append(replies, func() (*complib.Reply, error) { return m.Search(ctx, o.search), nil })
	}
	if o.page > 1 {
		replies = append(replies, func() (*complib.Reply, error) { return m.GoToPage(ctx, o.page), nil })
	}
	if len(replies) == 0 {
		replies = append(replies, func() (*complib.Reply, error) { return m.ReloadPage(ctx), nil })
	}

	for _, issue := range replies {
		r, err := issue()
		if err != nil {
			return err
		}
		if err := r.Wait(ctx); err != nil {
			return fmt.Errorf("loading components: %w", err)
		}
	}
	return nil
}

const interactiveHelp = "n next, p previous, g N go to page, r reload, s KEY search, q quit"

// interact reads single-line commands from in and prints the resulting page
// after each one. A failed fetch is reported and the loop continues.
func interact(ctx context.Context, m complib.Manager, in io.Reader, out *printer) error {
	scanner := bufio.NewScanner(in)
	out.Prompt(interactiveHelp)
	for scanner.Scan() {
		cmd, arg, _ := strings.Cut(strings.TrimSpace(scanner.Text()), " ")
		var r *complib.Reply
		switch cmd {
		case "":
			continue
		case "q", "quit":
			return nil
		case "n", "next":
			r = m.NextPage(ctx)
		case "p", "prev":
			r = m.PrevPage(ctx)
		case "r", "reload":
			r = m.ReloadPage(ctx)
		case "s", "search":
			r = m.Search(ctx, arg)
		case "g", "goto":
			page, err := strconv.Atoi(strings.TrimSpace(arg))
			if err != nil {
				out.Prompt(fmt.Sprintf("invalid page %q", arg))
				continue
			}
			r = m.GoToPage(ctx, page)
		default:
			out.Prompt(interactiveHelp)
			continue
		}

		if err := r.Wait(ctx); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			out.Prompt(fmt.Sprintf("error: %v", err))
			continue
		}
		out.Page(m)
	}
	return scanner.Err()
}
