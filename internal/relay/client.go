package relay

import (
	"net"
	"net/http"
	"time"

	"reqbench/internal/config"
)

// newHTTPClient builds the pooled outbound client used for relayed calls.
// Redirects are followed with the default client policy. The overall call
// timeout doubles as the relay's bounded-latency guarantee.
func newHTTPClient(cfg *config.Config) *http.Client {
	transport := &http.Transport{
		MaxIdleConns:        cfg.Relay.IdleConnections,
		MaxIdleConnsPerHost: cfg.Relay.IdleConnections,
		IdleConnTimeout:     90 * time.Second,
		DialContext: (&net.Dialer{
			Timeout:   30 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
	}

	return &http.Client{
		Transport: transport,
		Timeout:   time.Duration(cfg.Relay.TimeoutSeconds) * time.Second,
	}
}
