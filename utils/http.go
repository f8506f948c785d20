package utils

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"net/url"
	"time"

	cloudflarebp "github.com/DaRealFreak/cloudflare-bp-go"
	"github.com/go-resty/resty/v2"
	"golang.org/x/net/html/charset"
	"golang.org/x/time/rate"

	"review-extractor/internal/metrics"
	"review-extractor/internal/types"
)

// Response is a fetched page. Non-200 statuses are responses, not errors.
type Response struct {
	URL        string
	StatusCode int
	Body       []byte
}

// Fetcher is what adapters and the paginator need from a session
type Fetcher interface {
	Get(ctx context.Context, url string) (*Response, error)
}

var _ Fetcher = (*Session)(nil)

// Session issues every request of a run through one proxy and one header set.
// Certificate verification is disabled: free proxies routinely present invalid chains.
type Session struct {
	client    *resty.Client
	config    *types.Config
	logger    types.Logger
	limiter   *rate.Limiter
	metrics   *metrics.Metrics
	proxy     types.ProxyEndpoint
	userAgent string
}

// NewSession picks a proxy from the vetted set (direct when empty) and a User-Agent
// from the pool, both fixed for the session's lifetime.
func NewSession(config *types.Config, proxies []types.ProxyEndpoint, logger types.Logger, m *metrics.Metrics) (*Session, error) {
	rng := randFrom(config)

	var proxy types.ProxyEndpoint
	if len(proxies) > 0 {
		proxy = proxies[rng.Intn(len(proxies))]
	}
	userAgent := ""
	if len(config.UserAgents) > 0 {
		userAgent = config.UserAgents[rng.Intn(len(config.UserAgents))]
	}

	transport, err := newTransport(proxy)
	if err != nil {
		return nil, err
	}

	var rt http.RoundTripper = transport
	if config.CloudflareBypass {
		rt = cloudflarebp.AddCloudFlareByPass(transport)
		// the bypass swaps in its own TLS config
		if transport.TLSClientConfig == nil {
			transport.TLSClientConfig = &tls.Config{}
		}
		transport.TLSClientConfig.InsecureSkipVerify = true
	}

	client := resty.NewWithClient(&http.Client{Transport: rt})
	client.SetTimeout(config.Timeout)
	client.SetHeaders(browserHeaders(userAgent))

	limiter := rate.NewLimiter(rate.Inf, 1)
	if config.RequestsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(config.RequestsPerSecond), 1)
	}

	if proxy != "" {
		logger.Infof("Using proxy: %s", proxy)
	}
	logger.Debugf("Session User-Agent: %s", userAgent)

	return &Session{
		client:    client,
		config:    config,
		logger:    logger,
		limiter:   limiter,
		metrics:   m,
		proxy:     proxy,
		userAgent: userAgent,
	}, nil
}

// Proxy returns the bound proxy, empty for direct connections
func (s *Session) Proxy() types.ProxyEndpoint {
	return s.proxy
}

// UserAgent returns the session's fixed User-Agent
func (s *Session) UserAgent() string {
	return s.userAgent
}

// Get performs one GET. Timeouts and connection failures come back as *types.TransportError;
// there is no retry.
func (s *Session) Get(ctx context.Context, rawURL string) (*Response, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return nil, &types.TransportError{URL: rawURL, Err: err}
	}

	s.logger.Debugf("Making request to %s", rawURL)
	resp, err := s.client.R().SetContext(ctx).Get(rawURL)
	if err != nil {
		s.metrics.ObserveRequest(0)
		return nil, &types.TransportError{URL: rawURL, Err: err}
	}
	s.metrics.ObserveRequest(resp.StatusCode())

	body := decodeBody(resp.Body(), resp.Header().Get("Content-Type"))
	s.logger.Debugf("Retrieved %d bytes from %s (status %d)", len(body), rawURL, resp.StatusCode())

	return &Response{
		URL:        rawURL,
		StatusCode: resp.StatusCode(),
		Body:       body,
	}, nil
}

// Close releases idle connections
func (s *Session) Close() {
	if s.client != nil {
		s.client.GetClient().CloseIdleConnections()
	}
}

// newTransport routes both http and https through proxy, or dials directly when proxy is empty
func newTransport(proxy types.ProxyEndpoint) (*http.Transport, error) {
	transport := &http.Transport{
		TLSClientConfig:     &tls.Config{InsecureSkipVerify: true},
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 10,
		IdleConnTimeout:     90 * time.Second,
		ForceAttemptHTTP2:   true,
	}
	if proxy != "" {
		u, err := url.Parse(string(proxy))
		if err != nil || u.Host == "" {
			return nil, fmt.Errorf("invalid proxy endpoint %q", proxy)
		}
		transport.Proxy = http.ProxyURL(u)
	}
	return transport, nil
}

// browserHeaders is the header set sent with every request. Accept-Encoding is left to the
// transport so gzip bodies are decompressed transparently.
func browserHeaders(userAgent string) map[string]string {
	headers := map[string]string{
		"Accept":                    "text/html,application/xhtml+xml,application/xml;q=0.9,image/avif,image/webp,*/*;q=0.8",
		"Accept-Language":           "en-US,en;q=0.5",
		"DNT":                       "1",
		"Connection":                "keep-alive",
		"Upgrade-Insecure-Requests": "1",
		"Sec-Fetch-Dest":            "document",
		"Sec-Fetch-Mode":            "navigate",
		"Sec-Fetch-Site":            "none",
		"Sec-Fetch-User":            "?1",
	}
	if userAgent != "" {
		headers["User-Agent"] = userAgent
	}
	return headers
}

// decodeBody converts a body to UTF-8 using the declared or sniffed charset
func decodeBody(body []byte, contentType string) []byte {
	reader, err := charset.NewReader(bytes.NewReader(body), contentType)
	if err != nil {
		return body
	}
	decoded, err := io.ReadAll(reader)
	if err != nil {
		return body
	}
	return decoded
}

func randFrom(config *types.Config) *rand.Rand {
	if config.Rand != nil {
		return config.Rand
	}
	return rand.New(rand.NewSource(time.Now().UnixNano()))
}
