package backend

import (
	"net/http"
)

// DefaultMaxImageSize is the default limit for image payloads, 20 MiB.
const DefaultMaxImageSize = 20 << 20

// Option configures the Client.
type Option func(*Client)

// WithHTTPClient sets the HTTP client used to download remote images.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		c.httpClient = client
	}
}

// WithMaxImageSize sets the limit of image payload in bytes.
func WithMaxImageSize(size int64) Option {
	return func(c *Client) {
		c.maxImageSize = size
	}
}

// WithRemoteImages allows image references to be http(s) URLs.
func WithRemoteImages(allow bool) Option {
	return func(c *Client) {
		c.allowRemote = allow
	}
}

// WithModelResolver sets the function that maps a requested model name
// to the model the provider serves.
func WithModelResolver(resolver func(model string) string) Option {
	return func(c *Client) {
		c.resolveModel = resolver
	}
}
