package bugzilla

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"golang.org/x/net/proxy"
)

// apiKeyHeader carries the Bugzilla API key.
const apiKeyHeader = "X-BUGZILLA-API-KEY"

// newProxyTransport returns a transport that dials through the SOCKS5
// proxy at address.
func newProxyTransport(address string) (*http.Transport, error) {
	if !isValidProxyAddress(address) {
		return nil, ErrInvalidProxyAddress
	}

	dialer, err := proxy.SOCKS5("tcp", address, nil, proxy.Direct)
	if err != nil {
		return nil, fmt.Errorf("failed to create SOCKS5 dialer: %w", err)
	}

	dial := func(ctx context.Context, network, addr string) (net.Conn, error) {
		if cd, ok := dialer.(proxy.ContextDialer); ok {
			return cd.DialContext(ctx, network, addr)
		}
		return dialer.Dial(network, addr)
	}

	return &http.Transport{
		DialContext:         dial,
		MaxIdleConns:        10,
		MaxIdleConnsPerHost: 2,
		IdleConnTimeout:     30 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
	}, nil
}

// isValidProxyAddress reports whether address is host:port with a port
// in 1..65535.
func isValidProxyAddress(address string) bool {
	host, port, err := net.SplitHostPort(address)
	if err != nil || host == "" {
		return false
	}
	n, err := strconv.Atoi(port)
	if err != nil {
		return false
	}
	return n >= 1 && n <= 65535
}

// headerTransport sets tracker headers on every request.
type headerTransport struct {
	base      http.RoundTripper
	apiKey    string
	userAgent string
}

// RoundTrip implements http.RoundTripper.
func (t *headerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	clone := req.Clone(req.Context())
	clone.Header.Set("Accept", "application/json")
	if t.userAgent != "" {
		clone.Header.Set("User-Agent", t.userAgent)
	}
	if t.apiKey != "" {
		clone.Header.Set(apiKeyHeader, t.apiKey)
	}
	return t.base.RoundTrip(clone)
}
