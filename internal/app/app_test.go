package app

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"complib/internal/complib"
	"complib/internal/config"
	"complib/internal/data"
	"complib/internal/transport"
)

// newTestConfig returns a config whose repository is an in-memory catalogue
// of two components with files on local disk.
func newTestConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	src := filepath.Join(dir, "src")
	if err := os.MkdirAll(src, 0755); err != nil {
		t.Fatal(err)
	}
	for name, content := range map[string]string{
		"m3-bolt-long.stl": "solid long",
		"m3-bolt.stl":      "solid bolt",
		"m3-bolt.step":     "ISO-10303-21;",
	} {
		if err := os.WriteFile(filepath.Join(src, name), []byte(content), 0644); err != nil {
			t.Fatal(err)
		}
	}

	fixture := fmt.Sprintf(`{"items": [
	  {"name": "m3-bolt-long", "files": [{"url": "file://%[1]s/m3-bolt-long.stl", "type": "stl"}]},
	  {"name": "m3-bolt", "tags": ["metric"], "files": [
	    {"url": "file://%[1]s/m3-bolt.stl", "type": "stl"},
	    {"url": "file://%[1]s/m3-bolt.step", "type": "step"}]}
	]}`, src)
	fixturePath := filepath.Join(dir, "catalogue.json")
	if err := os.WriteFile(fixturePath, []byte(fixture), 0644); err != nil {
		t.Fatal(err)
	}

	cfg := config.NewConfig("", dir)
	cfg.Transport = config.TransportConfig{Type: "memory", FixturePath: fixturePath}
	cfg.Library = config.LibraryConfig{Type: "memory"}
	cfg.Manager.PageSize = 1
	return cfg
}

func newTestApp(t *testing.T, cfg *config.Config) *ComplibApp {
	t.Helper()
	a, err := NewComplibApp(context.Background(), cfg, "test", false)
	if err != nil {
		t.Fatalf("NewComplibApp() error = %v", err)
	}
	return a
}

func TestComplibApp_FindComponent(t *testing.T) {
	ctx := context.Background()
	a := newTestApp(t, newTestConfig(t))
	defer a.Close()

	c, err := a.FindComponent(ctx, a.Manager(), "M3-BOLT")
	if err != nil {
		t.Fatalf("FindComponent() error = %v", err)
	}
	if c.Name != "m3-bolt" {
		t.Errorf("FindComponent() = %q, want %q", c.Name, "m3-bolt")
	}
	if got := a.Manager().PageStates().Page; got != 2 {
		t.Errorf("search ended on page %d, want 2", got)
	}

	if _, err := a.FindComponent(ctx, a.Manager(), "gear"); !complib.IsNotFound(err) {
		t.Errorf("FindComponent(gear) error = %v, want NotFoundError", err)
	}
}

// newUnknownTotalServer serves one component per page and never reports a
// total. page returns the page number the server answers with for a request.
func newUnknownTotalServer(t *testing.T, page func(requested int) int) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		requested, _ := strconv.Atoi(r.URL.Query().Get("page"))
		p := page(requested)
		items := "[]"
		if p <= 3 {
			items = fmt.Sprintf(`[{"name": "part-%d", "files": [{"url": "https://cdn.example.org/%d.stl", "type": "stl"}]}]`, p, p)
		}
		fmt.Fprintf(w, `{"items": %s, "page": %d, "size": 1}`, items, p)
	}))
	t.Cleanup(srv.Close)
	return srv, &hits
}

func TestComplibApp_FindComponentUnknownTotal(t *testing.T) {
	tests := []struct {
		name     string
		page     func(requested int) int
		search   string
		wantName string
		maxHits  int32
	}{
		{"found on a later page", func(p int) int { return p }, "part-3", "part-3", 3},
		{"stops at an empty page", func(p int) int { return p }, "gear", "", 4},
		{"stops when the page does not advance", func(int) int { return 1 }, "gear", "", 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()

			a := newTestApp(t, newTestConfig(t))
			defer a.Close()

			srv, hits := newUnknownTotalServer(t, tt.page)
			m := complib.NewOnlineRepoManager(
				transport.NewHTTPTransport(srv.URL, srv.Client(), nil),
				complib.ManagerOptions{Registry: data.NewDefaultRegistry(), PageSize: 1},
			)

			c, err := a.FindComponent(ctx, m, tt.search)
			if tt.wantName != "" {
				if err != nil {
					t.Fatalf("FindComponent() error = %v", err)
				}
				if c.Name != tt.wantName {
					t.Errorf("FindComponent() = %q, want %q", c.Name, tt.wantName)
				}
			} else if !complib.IsNotFound(err) {
				t.Fatalf("FindComponent() error = %v, want NotFoundError", err)
			}
			if got := hits.Load(); got > tt.maxHits {
				t.Errorf("server saw %d requests, want at most %d", got, tt.maxHits)
			}
		})
	}
}

func TestComplibApp_DownloadRecordsInLibrary(t *testing.T) {
	ctx := context.Background()
	cfg := newTestConfig(t)
	a := newTestApp(t, cfg)
	defer a.Close()

	c, err := a.FindComponent(ctx, a.Manager(), "m3-bolt")
	if err != nil {
		t.Fatalf("FindComponent() error = %v", err)
	}

	res, err := a.Download(ctx, c, data.FileTypeSTL)
	if err != nil {
		t.Fatalf("Download() error = %v", err)
	}
	if res.Path != filepath.Join(cfg.DownloadDir, "m3-bolt.stl") {
		t.Errorf("Path = %q", res.Path)
	}
	if got, _ := os.ReadFile(res.Path); string(got) != "solid bolt" {
		t.Errorf("downloaded content = %q", got)
	}

	local := a.LocalManager()
	if err := local.ReloadPage(ctx).Wait(ctx); err != nil {
		t.Fatalf("local ReloadPage() error = %v", err)
	}
	comps := local.Components()
	if len(comps) != 1 || comps[0].Name != "m3-bolt" {
		t.Fatalf("local components = %v, want m3-bolt", comps)
	}
	stored := comps[0]
	if url := stored.Files[data.FileTypeSTL].URL; url != "file://"+res.Path {
		t.Errorf("library file URL = %q, want file://%s", url, res.Path)
	}

	// Copying out of the library goes through the file fetcher and the rename policy.
	d, err := local.DownloadComponent(stored, data.FileTypeSTL)
	if err != nil {
		t.Fatalf("local DownloadComponent() error = %v", err)
	}
	copyRes, err := d.Start(ctx).Wait(ctx)
	if err != nil {
		t.Fatalf("local download error = %v", err)
	}
	if !copyRes.Existed || filepath.Base(copyRes.Path) != "m3-bolt (1).stl" {
		t.Errorf("local copy = %+v, want renamed copy", copyRes)
	}
}

func TestComplibApp_DownloadAll(t *testing.T) {
	ctx := context.Background()
	cfg := newTestConfig(t)
	cfg.Download.MaxParallel = 2
	a := newTestApp(t, cfg)
	defer a.Close()

	c, err := a.FindComponent(ctx, a.Manager(), "m3-bolt")
	if err != nil {
		t.Fatalf("FindComponent() error = %v", err)
	}
	results, err := a.DownloadAll(ctx, c)
	if err != nil {
		t.Fatalf("DownloadAll() error = %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("DownloadAll() returned %d results, want 2", len(results))
	}
	for _, name := range []string{"m3-bolt.step", "m3-bolt.stl"} {
		if _, err := os.Stat(filepath.Join(cfg.DownloadDir, name)); err != nil {
			t.Errorf("%s not downloaded: %v", name, err)
		}
	}

	tags, err := a.LocalManager().Tags(ctx)
	if err != nil {
		t.Fatalf("local Tags() error = %v", err)
	}
	if len(tags) != 1 || tags[0].Name != "metric" {
		t.Errorf("local Tags() = %v, want [metric]", tags)
	}
}

func TestComplibApp_CloseLogsSession(t *testing.T) {
	cfg := newTestConfig(t)
	a := newTestApp(t, cfg)
	a.Fail()
	if err := a.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	b, err := os.ReadFile(filepath.Join(cfg.LogDir, LogFileName))
	if err != nil {
		t.Fatalf("reading log: %v", err)
	}
	log := string(b)
	if !strings.Contains(log, "\tsession started\tcommand=test") {
		t.Errorf("log missing session start: %q", log)
	}
	if !strings.Contains(log, "\tsession finished\tcommand=test\tstatus=error") {
		t.Errorf("log missing failed session end: %q", log)
	}
	if !strings.Contains(log, a.Session().ID) {
		t.Errorf("log lines not tagged with session id %s", a.Session().ID)
	}
}

func TestNewManagerFromConfig(t *testing.T) {
	tests := []struct {
		name    string
		mgr     string
		want    string
		wantErr bool
	}{
		{"online", "online", "*complib.OnlineRepoManager", false},
		{"local", "local", "*complib.LocalStorageManager", false},
		{"unknown", "ftp", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := newTestConfig(t)
			cfg.Manager.Type = tt.mgr
			m, err := NewManagerFromConfig(cfg, nil, complib.ManagerOptions{Registry: data.NewDefaultRegistry()})
			if (err != nil) != tt.wantErr {
				t.Fatalf("NewManagerFromConfig() error = %v, wantErr %v", err, tt.wantErr)
			}
			if got := fmt.Sprintf("%T", m); !tt.wantErr && got != tt.want {
				t.Errorf("NewManagerFromConfig() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestNewComplibApp_InvalidConfig(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*config.Config)
	}{
		{"bad conflict policy", func(c *config.Config) { c.Download.OnConflict = "skip" }},
		{"bad library", func(c *config.Config) { c.Library.Type = "postgres" }},
		{"bad transport", func(c *config.Config) { c.Transport.Type = "grpc" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := newTestConfig(t)
			tt.mutate(cfg)
			if a, err := NewComplibApp(context.Background(), cfg, "test", false); err == nil {
				a.Close()
				t.Error("NewComplibApp() expected error")
			}
		})
	}
}
