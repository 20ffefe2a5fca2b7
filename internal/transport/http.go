package transport

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"complib/internal/complib"
)

// maxBodySize caps how much of a response is read into memory.
const maxBodySize = 32 << 20

// StatusError reports a non-2xx response. The body is still returned
// alongside it so callers can inspect error payloads.
type StatusError struct {
	URL  string
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("GET %s: %d %s", e.URL, e.Code, http.StatusText(e.Code))
}

// HTTPTransport issues GET requests against a repository base URL.
type HTTPTransport struct {
	baseURL string
	client  *http.Client
	logger  complib.Logger
}

var _ complib.Transport = (*HTTPTransport)(nil)

func NewHTTPTransport(baseURL string, client *http.Client, logger complib.Logger) *HTTPTransport {
	if client == nil {
		client = http.DefaultClient
	}
	if logger == nil {
		logger = complib.NewNopLogger()
	}
	return &HTTPTransport{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  client,
		logger:  logger,
	}
}

// URL returns the request URL for endpoint and params.
func (t *HTTPTransport) URL(endpoint string, params url.Values) string {
	u := t.baseURL + "/" + strings.TrimLeft(endpoint, "/")
	if len(params) > 0 {
		u += "?" + params.Encode()
	}
	return u
}

func (t *HTTPTransport) Get(ctx context.Context, endpoint string, params url.Values) ([]byte, error) {
	u := t.URL(endpoint, params)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	t.logger.Debug("GET", "url", u)
	resp, err := t.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("requesting %s: %w", endpoint, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, fmt.Errorf("reading %s response: %w", endpoint, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return body, &StatusError{URL: u, Code: resp.StatusCode}
	}
	return body, nil
}
