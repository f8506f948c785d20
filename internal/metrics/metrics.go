package metrics

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics groups the counters a scrape run records. Each instance owns its registry
// so tests and concurrent API requests never share global state.
type Metrics struct {
	registry *prometheus.Registry

	PagesFetched   *prometheus.CounterVec
	Requests       *prometheus.CounterVec
	RecordsKept    *prometheus.CounterVec
	CandidateSkips *prometheus.CounterVec
	ProxyProbes    *prometheus.CounterVec
	PaginationStop *prometheus.CounterVec
}

// New builds and registers the run counters
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		PagesFetched: prometheus.NewCounterVec(
			prometheus.CounterOpts{Namespace: "reviews", Name: "pages_fetched_total", Help: "Listing pages fetched."},
			[]string{"source"},
		),
		Requests: prometheus.NewCounterVec(
			prometheus.CounterOpts{Namespace: "reviews", Name: "http_requests_total", Help: "Outbound requests by status."},
			[]string{"status"},
		),
		RecordsKept: prometheus.NewCounterVec(
			prometheus.CounterOpts{Namespace: "reviews", Name: "records_total", Help: "Accepted review records."},
			[]string{"source"},
		),
		CandidateSkips: prometheus.NewCounterVec(
			prometheus.CounterOpts{Namespace: "reviews", Name: "candidate_skips_total", Help: "Candidates dropped during extraction."},
			[]string{"source", "reason"},
		),
		ProxyProbes: prometheus.NewCounterVec(
			prometheus.CounterOpts{Namespace: "reviews", Name: "proxy_probes_total", Help: "Proxy probe outcomes."},
			[]string{"result"}, // live|dead
		),
		PaginationStop: prometheus.NewCounterVec(
			prometheus.CounterOpts{Namespace: "reviews", Name: "pagination_stops_total", Help: "Why pagination ended."},
			[]string{"source", "reason"},
		),
	}
	m.registry.MustRegister(m.PagesFetched, m.Requests, m.RecordsKept, m.CandidateSkips, m.ProxyProbes, m.PaginationStop)
	return m
}

// ObserveRequest counts one outbound response; status 0 means a transport failure
func (m *Metrics) ObserveRequest(status int) {
	if m == nil {
		return
	}
	label := "error"
	if status > 0 {
		label = strconv.Itoa(status)
	}
	m.Requests.WithLabelValues(label).Inc()
}

// ObserveProbe counts one proxy probe verdict
func (m *Metrics) ObserveProbe(live bool) {
	if m == nil {
		return
	}
	if live {
		m.ProxyProbes.WithLabelValues("live").Inc()
		return
	}
	m.ProxyProbes.WithLabelValues("dead").Inc()
}

// Registry exposes the gatherer for handlers and textfile export
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the prometheus exposition format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// WriteTextfile dumps the registry for the node_exporter textfile collector
func (m *Metrics) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, m.registry)
}
