package utils

import (
	"crypto/tls"
	"net"
	"net/http"
	"time"
)

const DefaultUserAgent = "ip-info-api"

// NewHTTPClient returns the client used for all upstream lookups.
// Certificate validation is only skipped when insecureSkipVerify is set.
func NewHTTPClient(timeout time.Duration, insecureSkipVerify bool) *http.Client {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.TLSClientConfig = &tls.Config{
		InsecureSkipVerify: insecureSkipVerify, // nolint: gosec
	}

	return &http.Client{
		Timeout:   timeout,
		Transport: transport,
	}
}

// StripPort returns the host part of a host:port pair such as
// http.Request.RemoteAddr, or the input unchanged when it has no port.
func StripPort(address string) string {
	if host, _, err := net.SplitHostPort(address); err == nil {
		return host
	}

	return address
}
