// Package metrics exposes Prometheus collectors for HTTP traffic: requests
// served by the operator API and fetches made against the archive.
package metrics

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/JakeFAU/form4-crawler/internal/filing"
)

// Fetch kinds.
const (
	KindIndex    = "index"
	KindDocument = "document"
)

// Collectors groups the HTTP collectors registered against one registry.
type Collectors struct {
	httpRequests  *prometheus.CounterVec
	httpDuration  *prometheus.HistogramVec
	fetches       *prometheus.CounterVec
	fetchBytes    *prometheus.CounterVec
	fetchDuration *prometheus.HistogramVec
}

// New registers the collectors against reg (prometheus.DefaultRegisterer when nil).
func New(reg prometheus.Registerer) (*Collectors, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	c := &Collectors{
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "form4_http_requests_total",
			Help: "API requests served, labeled by method and code.",
		}, []string{"method", "code"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "form4_http_request_duration_seconds",
			Help:    "API request latency, labeled by method and route.",
			Buckets: []float64{0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2},
		}, []string{"method", "route"}),
		fetches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "form4_fetches_total",
			Help: "Archive fetches, labeled by kind and outcome (status code or error).",
		}, []string{"kind", "outcome"}),
		fetchBytes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "form4_fetch_bytes_total",
			Help: "Bytes downloaded from the archive, labeled by kind.",
		}, []string{"kind"}),
		fetchDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "form4_fetch_duration_seconds",
			Help:    "Archive fetch latency, labeled by kind.",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
		}, []string{"kind"}),
	}
	for _, col := range []prometheus.Collector{c.httpRequests, c.httpDuration, c.fetches, c.fetchBytes, c.fetchDuration} {
		if err := reg.Register(col); err != nil {
			return nil, fmt.Errorf("register http metrics: %w", err)
		}
	}
	return c, nil
}

// ObserveHTTPRequest records one served request.
func (c *Collectors) ObserveHTTPRequest(method, route string, code int, d time.Duration) {
	c.httpRequests.WithLabelValues(method, strconv.Itoa(code)).Inc()
	c.httpDuration.WithLabelValues(method, route).Observe(d.Seconds())
}

// Middleware records every request under its chi route pattern.
func (c *Collectors) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}
		c.ObserveHTTPRequest(r.Method, route, rec.status, time.Since(start))
	})
}

// ObserveFetch records one archive fetch. A *filing.StatusError is counted
// under its status code; any other error under "error".
func (c *Collectors) ObserveFetch(kind string, resp filing.Response, err error, d time.Duration) {
	outcome := strconv.Itoa(resp.StatusCode)
	if err != nil {
		outcome = "error"
		var statusErr *filing.StatusError
		if errors.As(err, &statusErr) {
			outcome = strconv.Itoa(statusErr.Code)
		}
	}
	c.fetches.WithLabelValues(kind, outcome).Inc()
	c.fetchDuration.WithLabelValues(kind).Observe(d.Seconds())
	if len(resp.Body) > 0 {
		c.fetchBytes.WithLabelValues(kind).Add(float64(len(resp.Body)))
	}
}

// InstrumentFetcher wraps f so every fetch is observed.
func (c *Collectors) InstrumentFetcher(f filing.Fetcher) filing.Fetcher {
	return &instrumentedFetcher{next: f, metrics: c}
}

// FetchKind classifies an archive URL.
func FetchKind(url string) string {
	if strings.HasSuffix(url, ".idx") {
		return KindIndex
	}
	return KindDocument
}

type instrumentedFetcher struct {
	next    filing.Fetcher
	metrics *Collectors
}

func (f *instrumentedFetcher) Fetch(ctx context.Context, url string) (filing.Response, error) {
	start := time.Now()
	resp, err := f.next.Fetch(ctx, url)
	f.metrics.ObserveFetch(FetchKind(url), resp, err, time.Since(start))
	return resp, err
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}
