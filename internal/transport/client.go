package transport

import (
	"math"
	"net/http"
	"time"

	"golang.org/x/time/rate"
)

// rateLimitedTransport waits for the limiter before every request.
type rateLimitedTransport struct {
	base    http.RoundTripper
	limiter *rate.Limiter
}

func (t *rateLimitedTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if err := t.limiter.Wait(req.Context()); err != nil {
		return nil, err
	}
	return t.base.RoundTrip(req)
}

// NewHTTPClient returns a client with the given overall request timeout that
// issues at most requestsPerSecond requests. A non-positive rate disables
// limiting and a non-positive timeout disables the timeout.
func NewHTTPClient(timeout time.Duration, requestsPerSecond float64) *http.Client {
	var rt http.RoundTripper = http.DefaultTransport
	if requestsPerSecond > 0 {
		burst := int(math.Ceil(requestsPerSecond))
		rt = &rateLimitedTransport{
			base:    rt,
			limiter: rate.NewLimiter(rate.Limit(requestsPerSecond), burst),
		}
	}
	c := &http.Client{Transport: rt}
	if timeout > 0 {
		c.Timeout = timeout
	}
	return c
}
