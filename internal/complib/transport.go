package complib

import (
	"context"
	"net/url"
)

// Repository endpoints.
const (
	EndpointComponents = "component"
	EndpointTags       = "tag"
)

// Transport performs a single request against a repository.
// Get may return a body together with an error, for example when the server
// answered with a failure status. Implementations must honor ctx cancellation
// and release any connection before returning.
type Transport interface {
	Get(ctx context.Context, endpoint string, params url.Values) ([]byte, error)
}
