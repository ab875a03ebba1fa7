// Package httpclient builds the shared HTTP client used for vendor
// probes, OAuth exchanges, and health checks: proxy support, connection
// pooling, and transport-level retry for transient failures.
package httpclient

import (
	"net"
	"net/http"
	"net/url"
	"time"

	"go.uber.org/zap"

	"github.com/modelgate/modelgate/config"
	"github.com/modelgate/modelgate/logger"
)

const defaultTimeout = 30 * time.Second

// New builds an *http.Client from configuration. An unparseable proxy URL
// is logged and ignored rather than failing startup.
func New(cfg *config.Config) *http.Client {
	transport := &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 10,
		IdleConnTimeout:     90 * time.Second,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
	}

	if cfg.ProxyURL != "" {
		proxyURL, err := url.Parse(cfg.ProxyURL)
		if err != nil {
			logger.Log.Warn("ignoring unparseable proxy url",
				zap.String("proxy_url", cfg.ProxyURL), zap.Error(err))
		} else {
			transport.Proxy = http.ProxyURL(proxyURL)
		}
	}

	var rt http.RoundTripper = transport
	if cfg.RequestRetry > 0 {
		rt = &retryRoundTripper{
			next:        transport,
			maxRetries:  cfg.RequestRetry,
			maxInterval: time.Duration(cfg.MaxRetryInterval) * time.Second,
		}
	}

	return &http.Client{
		Transport: rt,
		Timeout:   defaultTimeout,
	}
}

// retryRoundTripper retries idempotent requests on transport errors and
// server-side overload responses, with doubling backoff capped at
// maxInterval.
type retryRoundTripper struct {
	next        http.RoundTripper
	maxRetries  int
	maxInterval time.Duration
}

func (r *retryRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	// Requests with a body cannot be safely replayed.
	if req.Body != nil && req.GetBody == nil {
		return r.next.RoundTrip(req)
	}

	var resp *http.Response
	var err error
	backoff := time.Second
	if r.maxInterval > 0 && backoff > r.maxInterval {
		backoff = r.maxInterval
	}

	for attempt := 0; ; attempt++ {
		if req.GetBody != nil {
			body, berr := req.GetBody()
			if berr != nil {
				return nil, berr
			}
			req.Body = body
		}

		resp, err = r.next.RoundTrip(req)
		if attempt >= r.maxRetries || !shouldRetry(resp, err) {
			return resp, err
		}
		if resp != nil {
			resp.Body.Close()
		}

		select {
		case <-req.Context().Done():
			return nil, req.Context().Err()
		case <-time.After(backoff):
		}
		backoff *= 2
		if r.maxInterval > 0 && backoff > r.maxInterval {
			backoff = r.maxInterval
		}
	}
}

func shouldRetry(resp *http.Response, err error) bool {
	if err != nil {
		return true
	}
	switch resp.StatusCode {
	case http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return true
	}
	return false
}
