package testutil

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"sync"
	"testing"
	"time"
)

// Request is one call observed by a fake transport.
type Request struct {
	Endpoint string
	Params   url.Values
}

// Response is a canned transport result.
type Response struct {
	Body []byte
	Err  error
}

// StaticTransport answers every request to an endpoint with the same response.
type StaticTransport struct {
	mu        sync.Mutex
	responses map[string]Response
	requests  []Request
}

func NewStaticTransport() *StaticTransport {
	return &StaticTransport{responses: make(map[string]Response)}
}

// Respond sets the response for endpoint.
func (t *StaticTransport) Respond(endpoint, body string, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.responses[endpoint] = Response{Body: []byte(body), Err: err}
}

func (t *StaticTransport) Get(ctx context.Context, endpoint string, params url.Values) ([]byte, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.requests = append(t.requests, Request{Endpoint: endpoint, Params: params})
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	resp, ok := t.responses[endpoint]
	if !ok {
		return nil, fmt.Errorf("no response for endpoint %q", endpoint)
	}
	return resp.Body, resp.Err
}

// Requests returns the calls made so far.
func (t *StaticTransport) Requests() []Request {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]Request(nil), t.requests...)
}

// PendingRequest is a request held by a GatedTransport until Respond is called.
type PendingRequest struct {
	Request
	reply chan Response
}

// Respond releases the request with body and err.
func (p *PendingRequest) Respond(body string, err error) {
	p.reply <- Response{Body: []byte(body), Err: err}
}

// GatedTransport blocks every request until the test responds to it, which
// lets tests choose the completion order of concurrent requests.
type GatedTransport struct {
	pending chan *PendingRequest
}

func NewGatedTransport() *GatedTransport {
	return &GatedTransport{pending: make(chan *PendingRequest, 16)}
}

func (t *GatedTransport) Get(ctx context.Context, endpoint string, params url.Values) ([]byte, error) {
	p := &PendingRequest{
		Request: Request{Endpoint: endpoint, Params: params},
		reply:   make(chan Response, 1),
	}
	select {
	case t.pending <- p:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	select {
	case r := <-p.reply:
		return r.Body, r.Err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Next returns the next request to arrive, failing the test after two seconds.
func (t *GatedTransport) Next(tb testing.TB) *PendingRequest {
	tb.Helper()
	select {
	case p := <-t.pending:
		return p
	case <-time.After(2 * time.Second):
		tb.Fatal("timed out waiting for request")
		return nil
	}
}

// ComponentPage returns a component page body. A negative total is omitted.
// Each name becomes a component with a single stl file.
func ComponentPage(page, size, total int, names ...string) string {
	items := make([]map[string]any, len(names))
	for i, name := range names {
		items[i] = map[string]any{
			"name":      name,
			"thumbnail": "https://cdn.example.org/" + name + ".png",
			"files": []map[string]any{
				{"url": "https://cdn.example.org/" + name + ".stl", "type": "stl"},
			},
		}
	}
	body := map[string]any{"page": page, "size": size, "items": items}
	if total >= 0 {
		body["total"] = total
	}
	b, err := json.Marshal(body)
	if err != nil {
		panic(err)
	}
	return string(b)
}

// WaitReply waits up to two seconds for done to close.
func WaitReply(tb testing.TB, done <-chan struct{}) {
	tb.Helper()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		tb.Fatal("timed out waiting for reply")
	}
}
