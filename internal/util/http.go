package util

import (
	"net/http"
	"time"
)

// NewHTTPClient returns a client for outbound calls to image stores.
// Every remote call carries timeout; redirects are followed as usual.
func NewHTTPClient(timeout time.Duration) *http.Client {
	return &http.Client{
		Timeout: timeout,
		Transport: &http.Transport{
			Proxy:               http.ProxyFromEnvironment,
			MaxIdleConnsPerHost: 8,
			IdleConnTimeout:     90 * time.Second,
		},
	}
}
