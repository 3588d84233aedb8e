package client

import (
	"net/http"
	"time"
)

// Option configures a Client.
type Option func(*options)

type options struct {
	httpClient *http.Client
	headers    map[string]string
}

func defaultOptions() *options {
	return &options{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		headers:    make(map[string]string),
	}
}

// WithHTTPClient overrides the default HTTP client, e.g. to set a custom
// transport or timeout.
func WithHTTPClient(hc *http.Client) Option {
	return func(o *options) {
		o.httpClient = hc
	}
}

// WithHeader adds a header sent on every request.
func WithHeader(key, value string) Option {
	return func(o *options) {
		o.headers[key] = value
	}
}
