package app

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"complib/internal/complib"
	"complib/internal/config"
	"complib/internal/data"
	"complib/internal/database"
	"complib/internal/download"
	"complib/internal/transport"
)

// ComplibApp is the application layer between the CLI and the managers.
// It constructs all dependencies from config and owns their lifecycle.
type ComplibApp struct {
	cfg     *config.Config
	session *Session
	logger  complib.Logger
	clock   complib.Clock
	library complib.Library
	manager complib.Manager
	local   *complib.LocalStorageManager
	logFile io.Closer
}

// NewComplibApp creates a fully wired ComplibApp from the given config.
// command names the CLI command being run and is logged with the session.
// The caller must call Close when done.
func NewComplibApp(ctx context.Context, cfg *config.Config, command string, verbose bool) (*ComplibApp, error) {
	clock := complib.RealClock{}
	session := NewSession(command, complib.UUIDGenerator{}, clock)

	slogger, logFile, err := newLogger(cfg.LogDir, session.ID, verbose)
	if err != nil {
		return nil, fmt.Errorf("creating logger: %w", err)
	}
	logger := &slogAdapter{l: slogger}

	lib, err := database.NewLibraryFromConfig(cfg.Library, clock)
	if err != nil {
		logFile.Close()
		return nil, fmt.Errorf("opening library: %w", err)
	}

	// Downloads get their own client: the API rate limit and timeout do not apply to them.
	fetcher, err := download.NewFetcherFromConfig(ctx, cfg, transport.NewHTTPClient(0, 0))
	if err != nil {
		lib.Close()
		logFile.Close()
		return nil, fmt.Errorf("creating fetcher: %w", err)
	}

	policy, err := complib.ParseConflictPolicy(cfg.Download.OnConflict)
	if err != nil {
		lib.Close()
		logFile.Close()
		return nil, err
	}

	reg := data.NewDefaultRegistry()
	opts := complib.ManagerOptions{
		Registry:         reg,
		PageSize:         cfg.Manager.PageSize,
		CancelSuperseded: cfg.Manager.CancelSuperseded,
		DownloadDir:      cfg.DownloadDir,
		Fetcher:          fetcher,
		ConflictPolicy:   policy,
		Library:          lib,
		Logger:           logger,
	}

	m, err := NewManagerFromConfig(cfg, lib, opts)
	if err != nil {
		lib.Close()
		logFile.Close()
		return nil, fmt.Errorf("creating manager: %w", err)
	}

	logger.Info("session started", "command", command, "manager", cfg.Manager.Type)

	return &ComplibApp{
		cfg:     cfg,
		session: session,
		logger:  logger,
		clock:   clock,
		library: lib,
		manager: m,
		local:   newLocalManager(lib, opts),
		logFile: logFile,
	}, nil
}

// NewManagerFromConfig creates the Manager selected by cfg.Manager.Type.
func NewManagerFromConfig(cfg *config.Config, lib complib.Library, opts complib.ManagerOptions) (complib.Manager, error) {
	switch cfg.Manager.Type {
	case "online":
		t, err := transport.NewTransportFromConfig(cfg.Transport, cfg.APIURL, opts.Registry, opts.Logger)
		if err != nil {
			return nil, fmt.Errorf("creating transport: %w", err)
		}
		return complib.NewOnlineRepoManager(t, opts), nil
	case "local":
		return newLocalManager(lib, opts), nil
	default:
		return nil, fmt.Errorf("unknown manager type: %s", cfg.Manager.Type)
	}
}

// newLocalManager browses lib. Copies out of the library are not recorded
// back into it.
func newLocalManager(lib complib.Library, opts complib.ManagerOptions) *complib.LocalStorageManager {
	opts.Library = nil
	return complib.NewLocalStorageManager(lib, opts)
}

// Config returns the configuration the app was built from.
func (a *ComplibApp) Config() *config.Config { return a.cfg }

// Manager returns the manager selected in the config.
func (a *ComplibApp) Manager() complib.Manager { return a.manager }

// LocalManager returns a manager over the local library, whatever the configured manager type.
func (a *ComplibApp) LocalManager() complib.Manager { return a.local }

// Session returns the current CLI session.
func (a *ComplibApp) Session() *Session { return a.session }

// FindComponent searches m for a component named exactly name (case-insensitive),
// walking the result pages. The walk ends at an empty or short page, or when
// the manager stays on the same page, so it terminates when the total is unknown.
func (a *ComplibApp) FindComponent(ctx context.Context, m complib.Manager, name string) (*data.Component, error) {
	if err := m.Search(ctx, name).Wait(ctx); err != nil {
		return nil, fmt.Errorf("searching for %s: %w", name, err)
	}
	for {
		comps := m.Components()
		for _, c := range comps {
			if strings.EqualFold(c.Name, name) {
				return c, nil
			}
		}
		states := m.PageStates()
		if len(comps) == 0 || len(comps) < states.Size || !states.HasNext() {
			return nil, &complib.NotFoundError{Resource: "component", ID: name}
		}
		if err := m.NextPage(ctx).Wait(ctx); err != nil {
			return nil, fmt.Errorf("searching for %s: %w", name, err)
		}
		if m.PageStates().Page <= states.Page {
			return nil, &complib.NotFoundError{Resource: "component", ID: name}
		}
	}
}

// Download fetches the ft file of c with the configured manager.
func (a *ComplibApp) Download(ctx context.Context, c *data.Component, ft data.FileType) (complib.DownloadResult, error) {
	d, err := a.manager.DownloadComponent(c, ft)
	if err != nil {
		return complib.DownloadResult{}, err
	}
	a.logger.Info("download started", "component", c.Name, "type", ft, "url", d.URL)
	res, err := d.Start(ctx).Wait(ctx)
	if err != nil {
		a.logger.Error("download failed", "component", c.Name, "type", ft, "error", err)
		return res, err
	}
	a.logger.Info("download finished", "path", res.Path, "bytes", res.Bytes, "existed", res.Existed)
	return res, nil
}

// DownloadAll fetches every file type c offers, max_parallel at a time.
func (a *ComplibApp) DownloadAll(ctx context.Context, c *data.Component) ([]complib.DownloadResult, error) {
	var ds []*complib.FileDownloader
	for _, ft := range c.FileTypes() {
		d, err := a.manager.DownloadComponent(c, ft)
		if err != nil {
			return nil, err
		}
		ds = append(ds, d)
	}
	a.logger.Info("batch download started", "component", c.Name, "files", len(ds))
	results, err := complib.DownloadAll(ctx, ds, a.cfg.Download.MaxParallel)
	if err != nil {
		a.logger.Error("batch download failed", "component", c.Name, "error", err)
		return results, err
	}
	a.logger.Info("batch download finished", "component", c.Name, "files", len(results))
	return results, nil
}

// Fail marks the session as failed; Close logs the final status.
func (a *ComplibApp) Fail() { a.session.Fail() }

// Close closes the library and the log file.
func (a *ComplibApp) Close() error {
	var firstErr error

	if err := a.library.Close(); err != nil {
		firstErr = fmt.Errorf("closing library: %w", err)
	}

	a.logger.Info("session finished",
		"command", a.session.Command,
		"status", a.session.Status,
		"elapsed", a.session.Elapsed(a.clock.Now()).Round(time.Millisecond))

	if a.logFile != nil {
		if err := a.logFile.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("closing log file: %w", err)
		}
	}
	return firstErr
}
