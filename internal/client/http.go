package client

import (
	"net"
	"net/http"
	"time"

	"github.com/luizpinheirodev/twitter-translate-bot/internal/config"
)

// NewHTTPClient builds a dedicated connection pool for one upstream.
// Overall call deadlines are enforced by the resilience policy, not here.
func NewHTTPClient(cfg config.HTTPConfig) *http.Client {
	dialer := &net.Dialer{
		Timeout:   cfg.ConnectTimeout,
		KeepAlive: 30 * time.Second,
	}
	transport := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           dialer.DialContext,
		MaxConnsPerHost:       cfg.MaxConnections,
		MaxIdleConnsPerHost:   cfg.MaxConnections,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   cfg.ConnectTimeout,
		ResponseHeaderTimeout: cfg.ReadTimeout,
	}
	return &http.Client{Transport: transport}
}
