package transport_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"
	"time"

	"complib/internal/complib"
	"complib/internal/testutil"
	"complib/internal/transport"
)

func TestHTTPTransport_Get(t *testing.T) {
	var gotPath, gotQuery, gotAccept string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath, gotQuery, gotAccept = r.URL.Path, r.URL.RawQuery, r.Header.Get("Accept")
		w.Write([]byte(`{"items":[]}`))
	}))
	defer srv.Close()

	tr := transport.NewHTTPTransport(srv.URL+"/api/", nil, nil)
	params := url.Values{"page": {"2"}, "tag": {"a b", "c"}}

	body, err := tr.Get(context.Background(), complib.EndpointComponents, params)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if string(body) != `{"items":[]}` {
		t.Errorf("body = %q", body)
	}
	if gotPath != "/api/component" {
		t.Errorf("path = %q, want %q", gotPath, "/api/component")
	}
	if gotQuery != "page=2&tag=a+b&tag=c" {
		t.Errorf("query = %q, want %q", gotQuery, "page=2&tag=a+b&tag=c")
	}
	if gotAccept != "application/json" {
		t.Errorf("Accept = %q", gotAccept)
	}
}

func TestHTTPTransport_URL(t *testing.T) {
	tr := transport.NewHTTPTransport("https://repo.example.org/api", nil, nil)
	tests := []struct {
		endpoint string
		params   url.Values
		want     string
	}{
		{"tag", nil, "https://repo.example.org/api/tag"},
		{"/component", url.Values{"page": {"1"}}, "https://repo.example.org/api/component?page=1"},
	}
	for _, tt := range tests {
		if got := tr.URL(tt.endpoint, tt.params); got != tt.want {
			t.Errorf("URL(%q, %v) = %q, want %q", tt.endpoint, tt.params, got, tt.want)
		}
	}
}

func TestHTTPTransport_ErrorStatusKeepsBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte(`{"error":"maintenance"}`))
	}))
	defer srv.Close()

	body, err := transport.NewHTTPTransport(srv.URL, nil, nil).Get(context.Background(), "component", nil)
	var se *transport.StatusError
	if !errors.As(err, &se) || se.Code != http.StatusServiceUnavailable {
		t.Fatalf("Get() error = %v, want StatusError 503", err)
	}
	if string(body) != `{"error":"maintenance"}` {
		t.Errorf("body = %q, want error payload", body)
	}
}

func TestHTTPTransport_ContextCancel(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if _, err := transport.NewHTTPTransport(srv.URL, nil, nil).Get(ctx, "component", nil); err == nil {
		t.Fatal("Get() expected error after context deadline")
	}
}

func TestNewHTTPClient_RateLimit(t *testing.T) {
	var mu sync.Mutex
	hits := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		hits++
		mu.Unlock()
	}))
	defer srv.Close()

	tr := transport.NewHTTPTransport(srv.URL, transport.NewHTTPClient(5*time.Second, 0.5), nil)
	if _, err := tr.Get(context.Background(), "tag", nil); err != nil {
		t.Fatalf("first Get() error = %v", err)
	}

	// The next token is two seconds away, beyond this deadline.
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	if _, err := tr.Get(ctx, "tag", nil); err == nil {
		t.Error("second Get() expected rate limit error")
	}

	mu.Lock()
	defer mu.Unlock()
	if hits != 1 {
		t.Errorf("server saw %d requests, want 1", hits)
	}
}

func TestOnlineManager_OverHTTP(t *testing.T) {
	var mu sync.Mutex
	var queries []url.Values
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		queries = append(queries, r.URL.Query())
		mu.Unlock()
		w.Write([]byte(testutil.ComponentPage(1, 2, 3, "m3-bolt", "m4-bolt")))
	}))
	defer srv.Close()

	m := complib.NewOnlineRepoManager(transport.NewHTTPTransport(srv.URL, nil, nil), complib.ManagerOptions{PageSize: 2})
	if err := m.Search(context.Background(), "bolt").Wait(context.Background()); err != nil {
		t.Fatalf("Search() error = %v", err)
	}

	if got := len(m.Components()); got != 2 {
		t.Errorf("len(Components()) = %d, want 2", got)
	}
	if got := m.PageStates().TotalPages(); got != 2 {
		t.Errorf("TotalPages() = %d, want 2", got)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(queries) != 1 {
		t.Fatalf("server saw %d requests, want 1", len(queries))
	}
	if q := queries[0]; q.Get("search") != "bolt" || q.Get("page") != "1" || q.Get("page_size") != "2" {
		t.Errorf("query = %v", q)
	}
}
