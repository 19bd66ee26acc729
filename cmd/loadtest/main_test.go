package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vladislavdragonenkov/backoffice/internal/metrics"
	"github.com/vladislavdragonenkov/backoffice/internal/service/catalog"
	"github.com/vladislavdragonenkov/backoffice/internal/service/httpapi"
	"github.com/vladislavdragonenkov/backoffice/internal/service/order"
	"github.com/vladislavdragonenkov/backoffice/internal/storage/memory"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()

	quiet := log.New()
	quiet.SetOutput(io.Discard)
	logger := log.NewEntry(quiet)

	store := memory.NewStore()
	registry := prometheus.NewRegistry()
	srv := httptest.NewServer(httpapi.NewRouter(httpapi.Config{
		Orders: order.NewService(store, store.Customers(), store.Orders(), store.Timeline(),
			order.WithLogger(logger),
			order.WithMetrics(metrics.NewOrderMetricsWithRegisterer(registry)),
		),
		Catalog:     catalog.NewService(store.Products(), store.Customers(), logger),
		Idempotency: memory.NewIdempotencyRepository(),
		Logger:      logger,
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestParseMode(t *testing.T) {
	for _, value := range []string{"create", " create-get ", "create-delete"} {
		_, err := parseMode(value)
		assert.NoError(t, err, value)
	}
	_, err := parseMode("create-pay")
	assert.Error(t, err)
}

func TestParseConfig(t *testing.T) {
	cfg, err := parseConfig([]string{"-seed-stock=10", "-qty=2"}, io.Discard)
	require.NoError(t, err)
	assert.Equal(t, modeCreate, cfg.mode)
	assert.Equal(t, 400, cfg.total)
	assert.False(t, cfg.totalSet)
	assert.Equal(t, 5*time.Second, cfg.timeout)

	cfg, err = parseConfig([]string{"-customer=c", "-product=p", "-duration=1s", "-total=5", "-mode=create-get"}, io.Discard)
	require.NoError(t, err)
	assert.True(t, cfg.totalSet)
	assert.Equal(t, modeCreateGet, cfg.mode)

	invalid := [][]string{
		{},
		{"-customer=c"},
		{"-seed-stock=1", "-qty=0"},
		{"-seed-stock=1", "-concurrency=0"},
		{"-seed-stock=1", "-delete-rate=101"},
		{"-seed-stock=1", "-seed-price=abc"},
		{"-seed-stock=1", "-total=0"},
		{"-seed-stock=1", "-mode=bogus"},
		{"-seed-stock=-1", "-customer=c", "-product=p"},
	}
	for _, args := range invalid {
		_, err := parseConfig(args, io.Discard)
		assert.Error(t, err, "%v", args)
	}
}

func TestDispatchJobs(t *testing.T) {
	collect := func(ctx context.Context, cfg config) []int {
		jobs := make(chan int, 100)
		dispatchJobs(ctx, jobs, cfg)
		var got []int
		for id := range jobs {
			got = append(got, id)
		}
		return got
	}

	assert.Equal(t, []int{0, 1, 2}, collect(context.Background(), config{total: 3}))
	assert.Len(t, collect(context.Background(), config{total: 4, totalSet: true, duration: time.Second}), 4)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.Len(t, collect(ctx, config{duration: time.Hour}), 0)
}

func TestCollectorReport(t *testing.T) {
	c := newCollector()
	c.record(scenarioName, 10*time.Millisecond, outcome{code: "ok", ok: true})
	c.record(scenarioName, 20*time.Millisecond, outcome{code: "failed"})
	c.record("CreateOrder", 15*time.Millisecond, statusOutcome(201, 201, 409))
	c.record("CreateOrder", 5*time.Millisecond, statusOutcome(500, 201, 409))
	c.reject()

	r := c.buildReport(time.Now(), time.Second)
	assert.EqualValues(t, 2, r.TotalScenarios)
	assert.EqualValues(t, 1, r.FailedScenarios)
	assert.EqualValues(t, 1, r.RejectedOrders)
	assert.InDelta(t, 0.5, r.ErrorRate, 1e-9)
	assert.InDelta(t, 2.0, r.RPS, 1e-9)
	assert.Equal(t, map[string]int64{"201": 1, "500": 1}, r.Calls["CreateOrder"].Codes)
}

func TestLatencyHelpers(t *testing.T) {
	assert.Zero(t, percentile(nil, 50))
	assert.Equal(t, 7.0, percentile([]float64{7}, 99))
	assert.InDelta(t, 2.5, percentile([]float64{1, 2, 3, 4}, 50), 1e-9)

	s := buildLatencySummary([]float64{3, 1, 2})
	assert.Equal(t, latencySummary{Min: 1, Max: 3, Avg: 2, P50: 2, P95: 2.9, P99: 2.98}, roundSummary(s))
	assert.Zero(t, ratio(1, 0))
	assert.True(t, shouldDelete(5, 10))
	assert.False(t, shouldDelete(50, 10))
	assert.False(t, shouldDelete(0, 0))
}

func roundSummary(s latencySummary) latencySummary {
	r := func(v float64) float64 { return float64(int(v*1000+0.5)) / 1000 }
	return latencySummary{Min: r(s.Min), Max: r(s.Max), Avg: r(s.Avg), P50: r(s.P50), P95: r(s.P95), P99: r(s.P99)}
}

func TestWriteJSONReport(t *testing.T) {
	dir := t.TempDir()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(wd) })

	require.NoError(t, writeJSONReport("report.json", report{TotalScenarios: 3}))
	raw, err := os.ReadFile(filepath.Join(dir, "report.json"))
	require.NoError(t, err)
	var decoded report
	require.NoError(t, json.Unmarshal(raw, &decoded))
	assert.EqualValues(t, 3, decoded.TotalScenarios)

	assert.Error(t, writeJSONReport(".", report{}))
	assert.Error(t, writeJSONReport("../escape.json", report{}))
}

func TestRun_ConcurrentOrdersNeverOversell(t *testing.T) {
	srv := newTestServer(t)

	cfg := config{
		baseURL:     srv.URL,
		total:       20,
		concurrency: 8,
		timeout:     5 * time.Second,
		mode:        modeCreate,
		quantity:    3,
		seedStock:   10,
		seedPrice:   "2.50",
	}
	result, err := run(context.Background(), cfg)
	require.NoError(t, err)

	assert.EqualValues(t, 20, result.TotalScenarios)
	assert.Zero(t, result.FailedScenarios)
	assert.EqualValues(t, 17, result.RejectedOrders)
	assert.EqualValues(t, 3, result.Calls["CreateOrder"].Codes["201"])
	require.NotNil(t, result.FinalStock)
	assert.EqualValues(t, 1, *result.FinalStock)
}

func TestRun_CreateDeleteRestoresStock(t *testing.T) {
	srv := newTestServer(t)

	result, err := run(context.Background(), config{
		baseURL:     srv.URL,
		total:       30,
		concurrency: 6,
		timeout:     5 * time.Second,
		mode:        modeCreateDelete,
		quantity:    2,
		seedStock:   10,
		seedPrice:   "1.00",
	})
	require.NoError(t, err)

	assert.Zero(t, result.FailedScenarios)
	require.NotNil(t, result.FinalStock)
	assert.EqualValues(t, 10, *result.FinalStock)
	created := result.Calls["CreateOrder"].Codes["201"]
	assert.Equal(t, created, result.Calls["DeleteOrder"].Calls)

	var out bytes.Buffer
	printReport(&out, result, config{mode: modeCreateDelete, total: 30})
	assert.Contains(t, out.String(), "final stock=10")
	assert.Contains(t, out.String(), "DeleteOrder:")
}

func TestRun_CreateGet(t *testing.T) {
	srv := newTestServer(t)

	result, err := run(context.Background(), config{
		baseURL:     srv.URL,
		total:       5,
		concurrency: 2,
		timeout:     5 * time.Second,
		mode:        modeCreateGet,
		quantity:    1,
		seedStock:   100,
		seedPrice:   "3.00",
	})
	require.NoError(t, err)
	assert.Zero(t, result.FailedScenarios)
	assert.EqualValues(t, 5, result.Calls["GetOrder"].Success)
	assert.EqualValues(t, 95, *result.FinalStock)
}

func TestRun_UnknownProductFailsScenarios(t *testing.T) {
	srv := newTestServer(t)

	result, err := run(context.Background(), config{
		baseURL:     srv.URL,
		total:       3,
		concurrency: 1,
		timeout:     5 * time.Second,
		mode:        modeCreate,
		quantity:    1,
		customerID:  "missing-customer",
		productID:   "missing-product",
	})
	require.NoError(t, err)
	assert.EqualValues(t, 3, result.FailedScenarios)
	assert.EqualValues(t, 3, result.Calls["CreateOrder"].Codes["422"])
	assert.Nil(t, result.FinalStock)
}
