package complib

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"sync"
)

// Payload is the decoded JSON object of a response body.
type Payload map[string]any

// Items returns the "items" list of the payload as field mappings.
func (p Payload) Items() ([]map[string]any, error) {
	raw, ok := p["items"]
	if !ok || raw == nil {
		return nil, fmt.Errorf("payload has no items")
	}
	list, ok := raw.([]any)
	if !ok {
		return nil, fmt.Errorf("payload items is %T, want list", raw)
	}
	out := make([]map[string]any, len(list))
	for i, it := range list {
		m, ok := it.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("item %d is %T, want object", i, it)
		}
		out[i] = m
	}
	return out, nil
}

// replyHandler runs after the body is parsed and before listeners fire.
// A returned error becomes the reply's error.
type replyHandler func(r *Reply) error

// Reply is one in-flight request. It completes exactly once: with a parsed
// payload, with an empty payload and a TransportError or ParseError, or with
// context.Canceled. Transport and parse failures are logged and do not stop
// completion.
type Reply struct {
	id       string
	endpoint string
	params   url.Values
	ctx      context.Context
	cancel   context.CancelFunc
	done     chan struct{}
	once     sync.Once

	mu        sync.Mutex
	payload   Payload
	err       error
	completed bool
	listeners []func(*Reply)
}

// startReply issues the request on a new goroutine and returns immediately.
func startReply(ctx context.Context, id string, t Transport, endpoint string, params url.Values, logger Logger, handler replyHandler) *Reply {
	rctx, cancel := context.WithCancel(ctx)
	r := &Reply{
		id:       id,
		endpoint: endpoint,
		params:   params,
		ctx:      rctx,
		cancel:   cancel,
		done:     make(chan struct{}),
		payload:  Payload{},
	}
	go r.run(t, logger, handler)
	return r
}

type getResult struct {
	body []byte
	err  error
}

func (r *Reply) run(t Transport, logger Logger, handler replyHandler) {
	defer r.cancel()

	results := make(chan getResult, 1)
	go func() {
		body, err := t.Get(r.ctx, r.endpoint, r.params)
		results <- getResult{body: body, err: err}
	}()

	var res getResult
	select {
	case res = <-results:
	case <-r.ctx.Done():
		r.complete(Payload{}, r.ctx.Err(), nil)
		return
	}
	if r.ctx.Err() != nil {
		r.complete(Payload{}, r.ctx.Err(), nil)
		return
	}

	var err error
	if res.err != nil {
		logger.Warn("request failed", "reply", r.id, "endpoint", r.endpoint, "error", res.err)
		err = &TransportError{Endpoint: r.endpoint, Err: res.err}
	}

	payload, perr := parsePayload(res.body)
	if perr != nil {
		if res.err == nil {
			logger.Warn("unparseable response body", "reply", r.id, "endpoint", r.endpoint, "error", perr)
		}
		if err == nil {
			err = &ParseError{Err: perr}
		}
	}

	r.complete(payload, err, handler)
}

// complete records the outcome, runs handler and notifies listeners. Only the
// first call has any effect.
func (r *Reply) complete(payload Payload, err error, handler replyHandler) {
	r.once.Do(func() {
		r.mu.Lock()
		r.payload = payload
		r.err = err
		r.mu.Unlock()

		if handler != nil {
			if herr := handler(r); herr != nil {
				r.mu.Lock()
				r.err = herr
				r.mu.Unlock()
			}
		}

		r.mu.Lock()
		r.completed = true
		listeners := r.listeners
		r.listeners = nil
		r.mu.Unlock()

		for _, fn := range listeners {
			fn(r)
		}
		close(r.done)
	})
}

func parsePayload(body []byte) (Payload, error) {
	var p Payload
	if err := json.Unmarshal(body, &p); err != nil {
		return Payload{}, err
	}
	if p == nil {
		return Payload{}, errors.New("response body is not a JSON object")
	}
	return p, nil
}

// ID returns the unique identifier assigned when the request was issued.
func (r *Reply) ID() string { return r.id }

// Endpoint returns the requested endpoint.
func (r *Reply) Endpoint() string { return r.endpoint }

// Params returns a copy of the request parameters.
func (r *Reply) Params() url.Values {
	out := url.Values{}
	for k, v := range r.params {
		out[k] = append([]string(nil), v...)
	}
	return out
}

// Done is closed once the reply has completed and its handler and listeners have run.
func (r *Reply) Done() <-chan struct{} { return r.done }

// Wait blocks until the reply completes or ctx ends. It returns the reply's
// error, or ctx's error if ctx ended first.
func (r *Reply) Wait(ctx context.Context) error {
	select {
	case <-r.done:
		return r.Err()
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Payload returns the parsed body. It is empty until completion, when the body
// could not be parsed, and when the reply was cancelled.
func (r *Reply) Payload() Payload {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.payload
}

// Err returns nil for a successful reply.
func (r *Reply) Err() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.err
}

// Cancelled reports whether the reply completed because it was cancelled.
func (r *Reply) Cancelled() bool {
	return errors.Is(r.Err(), context.Canceled)
}

// Cancel abandons the request. A reply that has not completed yet completes
// with context.Canceled and leaves its Manager untouched.
func (r *Reply) Cancel() { r.cancel() }

// OnFinished registers fn to run once on completion. If the reply has already
// completed, fn runs immediately on the calling goroutine.
func (r *Reply) OnFinished(fn func(*Reply)) {
	r.mu.Lock()
	if !r.completed {
		r.listeners = append(r.listeners, fn)
		r.mu.Unlock()
		return
	}
	r.mu.Unlock()
	fn(r)
}
