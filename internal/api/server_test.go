package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/form4-crawler/internal/crawl"
	"github.com/JakeFAU/form4-crawler/internal/filing"
	"github.com/JakeFAU/form4-crawler/internal/metrics"
	"github.com/JakeFAU/form4-crawler/internal/storage/memory"
	"github.com/JakeFAU/form4-crawler/internal/store"
)

type staticStatus struct{ snap crawl.Snapshot }

func (s staticStatus) Snapshot() crawl.Snapshot { return s.snap }

type panicStatus struct{}

func (panicStatus) Snapshot() crawl.Snapshot { panic("boom") }

type failingRepo struct {
	*memory.RunStore
}

func (failingRepo) ListDays(context.Context, int, int) ([]store.DayRun, error) {
	return nil, errors.New("db down")
}

func (failingRepo) GetDay(context.Context, filing.Date) (store.DayRun, error) {
	return store.DayRun{}, errors.New("db down")
}

func serve(t *testing.T, srv *Server, target string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	return rec
}

func seededRuns(t *testing.T) *memory.RunStore {
	t.Helper()
	ctx := context.Background()
	repo := memory.NewRunStore()
	runID := uuid.MustParse("11111111-2222-3333-4444-555555555555")
	at := time.Date(2023, time.January, 10, 12, 0, 0, 0, time.UTC)
	for d := 3; d <= 5; d++ {
		day := filing.NewDate(2023, time.January, d)
		require.NoError(t, repo.StartDay(ctx, runID, day, at))
		require.NoError(t, repo.CompleteDay(ctx, day, at.Add(time.Minute), store.DayOutcome{
			Status:       store.DayDone,
			Transactions: d,
			Inserted:     d,
		}))
	}
	return repo
}

func TestHealthz(t *testing.T) {
	t.Parallel()

	rec := serve(t, NewServer(Options{}, nil), "/healthz")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}

func TestReadyz(t *testing.T) {
	t.Parallel()

	ready := NewServer(Options{Ready: func(context.Context) error { return nil }}, nil)
	assert.Equal(t, http.StatusOK, serve(t, ready, "/readyz").Code)

	notReady := NewServer(Options{Ready: func(context.Context) error { return errors.New("pool closed") }}, nil)
	rec := serve(t, notReady, "/readyz")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "not ready")
}

func TestMetricsUsesGatherer(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	counter := prometheus.NewCounter(prometheus.CounterOpts{Name: "form4_test_total", Help: "test"})
	reg.MustRegister(counter)
	counter.Add(3)

	rec := serve(t, NewServer(Options{Gatherer: reg}, nil), "/metrics")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "form4_test_total 3")
}

func TestStatus(t *testing.T) {
	t.Parallel()

	snap := crawl.Snapshot{
		RunID:    "run-1",
		Day:      filing.NewDate(2023, time.January, 4),
		Phase:    "running",
		DaysDone: 3,
	}
	rec := serve(t, NewServer(Options{Status: staticStatus{snap: snap}}, nil), "/v1/status")
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Status struct {
			Day      string `json:"day"`
			Phase    string `json:"phase"`
			DaysDone int    `json:"days_done"`
		} `json:"status"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "2023-01-04", body.Status.Day)
	assert.Equal(t, "running", body.Status.Phase)
	assert.Equal(t, 3, body.Status.DaysDone)
}

func TestStatusWithoutCrawler(t *testing.T) {
	t.Parallel()

	rec := serve(t, NewServer(Options{}, nil), "/v1/status")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestRecoverMiddleware(t *testing.T) {
	t.Parallel()

	rec := serve(t, NewServer(Options{Status: panicStatus{}}, nil), "/v1/status")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestRequestIDIsPropagated(t *testing.T) {
	t.Parallel()

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set("X-Request-ID", "abc-123")
	rec := httptest.NewRecorder()
	NewServer(Options{}, nil).Handler().ServeHTTP(rec, req)
	assert.Equal(t, "abc-123", rec.Header().Get("X-Request-ID"))
}

func TestServerRecordsRequestMetrics(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	collectors, err := metrics.New(reg)
	require.NoError(t, err)
	srv := NewServer(Options{Gatherer: reg, Metrics: collectors}, nil)

	serve(t, srv, "/healthz")
	rec := serve(t, srv, "/metrics")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `form4_http_requests_total{code="200",method="GET"} 1`)
}
