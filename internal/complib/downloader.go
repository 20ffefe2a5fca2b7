package complib

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"
)

// Fetcher copies a remote resource into a local file.
type Fetcher interface {
	// Fetch writes the resource at src into dst and returns the number of bytes written.
	Fetch(ctx context.Context, src string, dst *os.File) (int64, error)
}

// ConflictPolicy decides what a download does when its target file exists.
type ConflictPolicy string

const (
	// ConflictRename writes "<name> (n).<ext>" next to the existing file.
	ConflictRename ConflictPolicy = "rename"
	// ConflictOverwrite replaces the existing file.
	ConflictOverwrite ConflictPolicy = "overwrite"
	// ConflictFail leaves the existing file and fails with ErrTargetExists.
	ConflictFail ConflictPolicy = "fail"
)

// ParseConflictPolicy validates a policy name. The empty string means ConflictRename.
func ParseConflictPolicy(s string) (ConflictPolicy, error) {
	switch p := ConflictPolicy(s); p {
	case "":
		return ConflictRename, nil
	case ConflictRename, ConflictOverwrite, ConflictFail:
		return p, nil
	default:
		return "", fmt.Errorf("unknown conflict policy: %s", s)
	}
}

// DownloadResult is the outcome of one download. Err is nil on success.
// Existed reports that a file was already present at Target; with the rename
// policy Path then differs from Target.
type DownloadResult struct {
	URL     string
	Target  string
	Path    string
	Bytes   int64
	Existed bool
	Err     error
}

// OK reports whether the download succeeded.
func (r DownloadResult) OK() bool { return r.Err == nil }

// FileDownloader downloads one asset to Dir/Filename.
type FileDownloader struct {
	URL      string
	Dir      string
	Filename string

	fetcher Fetcher
	policy  ConflictPolicy
	logger  Logger

	mu        sync.Mutex
	onSuccess []func(DownloadResult)
}

// NewFileDownloader creates a downloader bound to url and Dir/filename. It does
// not touch the network or filesystem until Run or Start.
func NewFileDownloader(url, dir, filename string, fetcher Fetcher, policy ConflictPolicy, logger Logger) *FileDownloader {
	if policy == "" {
		policy = ConflictRename
	}
	if logger == nil {
		logger = NewNopLogger()
	}
	return &FileDownloader{
		URL:      url,
		Dir:      dir,
		Filename: filename,
		fetcher:  fetcher,
		policy:   policy,
		logger:   logger,
	}
}

// Target returns the intended destination path.
func (d *FileDownloader) Target() string { return filepath.Join(d.Dir, d.Filename) }

// Policy returns the conflict policy in effect.
func (d *FileDownloader) Policy() ConflictPolicy { return d.policy }

// OnSuccess registers fn to run after a successful download, before Run returns.
func (d *FileDownloader) OnSuccess(fn func(DownloadResult)) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.onSuccess = append(d.onSuccess, fn)
}

// Run performs the download on the calling goroutine.
func (d *FileDownloader) Run(ctx context.Context) DownloadResult {
	res := DownloadResult{URL: d.URL, Target: d.Target()}

	if d.fetcher == nil {
		res.Err = fmt.Errorf("no fetcher configured")
		return res
	}
	if err := os.MkdirAll(d.Dir, 0755); err != nil {
		res.Err = fmt.Errorf("creating download directory: %w", err)
		return res
	}

	if _, err := os.Stat(res.Target); err == nil {
		res.Existed = true
		if d.policy == ConflictFail {
			res.Err = fmt.Errorf("%s: %w", res.Target, ErrTargetExists)
			return res
		}
	}

	d.logger.Info("downloading", "url", d.URL, "path", res.Target)
	dest, existed, n, err := d.writeFile(ctx, res.Target)
	if err != nil {
		d.logger.Error("download failed", "url", d.URL, "error", err)
		res.Existed = res.Existed || existed
		res.Err = err
		return res
	}
	res.Path = dest
	res.Bytes = n
	res.Existed = res.Existed || existed
	d.logger.Info("downloaded", "path", dest, "bytes", n, "existed", res.Existed)

	d.mu.Lock()
	hooks := slices.Clone(d.onSuccess)
	d.mu.Unlock()
	for _, fn := range hooks {
		fn(res)
	}
	return res
}

// writeFile fetches into a temp file in the target directory and moves it
// into place according to the conflict policy, so a failed download never
// leaves a partial file behind. It returns the final path and whether a file
// was found at target when placing it.
func (d *FileDownloader) writeFile(ctx context.Context, target string) (string, bool, int64, error) {
	tmpFile, err := os.CreateTemp(filepath.Dir(target), ".download-*")
	if err != nil {
		return "", false, 0, fmt.Errorf("creating temp file: %w", err)
	}
	tmpPath := tmpFile.Name()
	defer os.Remove(tmpPath)

	written, err := d.fetcher.Fetch(ctx, d.URL, tmpFile)
	if err != nil {
		tmpFile.Close()
		return "", false, 0, fmt.Errorf("fetching %s: %w", d.URL, err)
	}
	if err := tmpFile.Close(); err != nil {
		return "", false, 0, fmt.Errorf("closing temp file: %w", err)
	}

	dest, existed, err := d.place(tmpPath, target)
	if err != nil {
		return "", existed, 0, err
	}
	return dest, existed, written, nil
}

// place moves tmp to target. Only the overwrite policy may replace an existing
// file; the others link tmp into place, which fails atomically when a file
// appeared at the destination after the initial check.
func (d *FileDownloader) place(tmp, target string) (string, bool, error) {
	if d.policy == ConflictOverwrite {
		_, statErr := os.Stat(target)
		if err := os.Rename(tmp, target); err != nil {
			return "", false, fmt.Errorf("renaming temp file: %w", err)
		}
		return target, statErr == nil, nil
	}

	err := os.Link(tmp, target)
	if err == nil {
		return target, false, nil
	}
	if !errors.Is(err, fs.ErrExist) {
		return "", false, fmt.Errorf("linking temp file: %w", err)
	}
	if d.policy == ConflictFail {
		return "", true, fmt.Errorf("%s: %w", target, ErrTargetExists)
	}

	ext := filepath.Ext(target)
	base := strings.TrimSuffix(target, ext)
	for n := 1; n < 10000; n++ {
		candidate := fmt.Sprintf("%s (%d)%s", base, n, ext)
		err := os.Link(tmp, candidate)
		if err == nil {
			return candidate, true, nil
		}
		if !errors.Is(err, fs.ErrExist) {
			return "", true, fmt.Errorf("linking temp file: %w", err)
		}
	}
	return "", true, fmt.Errorf("no free filename for %s", target)
}

// Start runs the download on a new goroutine and returns immediately.
func (d *FileDownloader) Start(ctx context.Context) *DownloadHandle {
	h := &DownloadHandle{done: make(chan struct{})}
	go func() {
		h.result = d.Run(ctx)
		close(h.done)
	}()
	return h
}

// DownloadHandle tracks a download started with Start.
type DownloadHandle struct {
	done   chan struct{}
	result DownloadResult
}

// Done is closed when the download has finished, successfully or not.
func (h *DownloadHandle) Done() <-chan struct{} { return h.done }

// Result blocks until the download finishes and returns its outcome.
func (h *DownloadHandle) Result() DownloadResult {
	<-h.done
	return h.result
}

// Wait blocks until the download finishes or ctx ends.
func (h *DownloadHandle) Wait(ctx context.Context) (DownloadResult, error) {
	select {
	case <-h.done:
		return h.result, h.result.Err
	case <-ctx.Done():
		return DownloadResult{}, ctx.Err()
	}
}

// DownloadAll runs downloads with at most maxParallel in flight. The first
// failure cancels the downloads that have not finished yet. Results are in
// input order; the returned error is the first failure.
func DownloadAll(ctx context.Context, downloaders []*FileDownloader, maxParallel int) ([]DownloadResult, error) {
	results := make([]DownloadResult, len(downloaders))

	g, gctx := errgroup.WithContext(ctx)
	if maxParallel > 0 {
		g.SetLimit(maxParallel)
	}
	for i, d := range downloaders {
		g.Go(func() error {
			results[i] = d.Run(gctx)
			return results[i].Err
		})
	}
	err := g.Wait()
	return results, err
}
