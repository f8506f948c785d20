package utils

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"time"

	"github.com/go-resty/resty/v2"
	"golang.org/x/sync/errgroup"

	"review-extractor/internal/metrics"
	"review-extractor/internal/types"
)

// ProxyVetter probes candidate proxies against an IP-echo endpoint
type ProxyVetter struct {
	probeURL string
	timeout  time.Duration
	workers  int
	logger   types.Logger
	metrics  *metrics.Metrics
}

// NewProxyVetter creates a vetter from the run configuration
func NewProxyVetter(config *types.Config, logger types.Logger, m *metrics.Metrics) *ProxyVetter {
	workers := config.ProbeWorkers
	if workers <= 0 {
		workers = 1
	}
	return &ProxyVetter{
		probeURL: config.ProbeURL,
		timeout:  config.ProbeTimeout,
		workers:  workers,
		logger:   logger,
		metrics:  m,
	}
}

// Vet returns the working subset of candidates in input order.
// Probes run concurrently with a bounded worker count; each writes only its own slot.
func (v *ProxyVetter) Vet(ctx context.Context, candidates []types.ProxyEndpoint) []types.ProxyEndpoint {
	if len(candidates) == 0 {
		return nil
	}
	v.logger.Infof("Testing %d proxies...", len(candidates))

	live := make([]bool, len(candidates))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(v.workers)
	for i, candidate := range candidates {
		i, candidate := i, candidate
		g.Go(func() error {
			err := v.Probe(gctx, candidate)
			live[i] = err == nil
			v.metrics.ObserveProbe(live[i])
			if err != nil {
				v.logger.Warnf("Proxy %s failed: %v", candidate, err)
			} else {
				v.logger.Infof("Proxy %s is working", candidate)
			}
			return nil
		})
	}
	_ = g.Wait()

	var working []types.ProxyEndpoint
	for i, ok := range live {
		if ok {
			working = append(working, candidates[i])
		}
	}
	v.logger.Infof("Found %d working proxies", len(working))
	return working
}

// Probe issues one GET to the echo endpoint through proxy. Only HTTP 200 passes.
func (v *ProxyVetter) Probe(ctx context.Context, proxy types.ProxyEndpoint) error {
	transport, err := newTransport(proxy)
	if err != nil {
		return err
	}
	client := resty.NewWithClient(&http.Client{Transport: transport})
	client.SetTimeout(v.timeout)
	defer client.GetClient().CloseIdleConnections()

	resp, err := client.R().SetContext(ctx).Get(v.probeURL)
	if err != nil {
		return err
	}
	if resp.StatusCode() != http.StatusOK {
		return fmt.Errorf("unexpected status code: %d", resp.StatusCode())
	}
	return nil
}

// LoadProxies reads one endpoint per line, ignoring blank lines.
// A missing file is an empty list with a warning.
func LoadProxies(path string, logger types.Logger) ([]types.ProxyEndpoint, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			logger.Warnf("Proxy file %s not found", path)
			return nil, nil
		}
		return nil, fmt.Errorf("failed to open proxy file: %w", err)
	}
	defer f.Close()

	var proxies []types.ProxyEndpoint
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		if p := types.NormalizeProxy(scanner.Text()); p != "" {
			proxies = append(proxies, p)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read proxy file: %w", err)
	}
	return proxies, nil
}
