package prometheus

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/molfilter/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/molfilter/pkg/errors"
)

func newTestCollector(t *testing.T) MetricsCollector {
	cfg := CollectorConfig{
		Namespace: "test",
		Subsystem: "unit",
	}
	c, err := NewMetricsCollector(cfg, logging.NewNopLogger())
	require.NoError(t, err)
	return c
}

func snapshot(t *testing.T, c MetricsCollector) map[string]float64 {
	families, err := c.Gather()
	require.NoError(t, err)
	return Snapshot(families)
}

func TestNewMetricsCollector_ValidConfig(t *testing.T) {
	c := newTestCollector(t)
	assert.NotNil(t, c)
}

func TestNewMetricsCollector_EmptyNamespace(t *testing.T) {
	_, err := NewMetricsCollector(CollectorConfig{Subsystem: "unit"}, logging.NewNopLogger())
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.CodeInvalidParam))
}

func TestNewMetricsCollector_WithGoMetrics(t *testing.T) {
	c, err := NewMetricsCollector(CollectorConfig{Namespace: "test", EnableGoMetrics: true}, nil)
	require.NoError(t, err)
	snap := snapshot(t, c)
	_, ok := snap["go_goroutines"]
	assert.True(t, ok)
}

func TestRegisterCounter_Success(t *testing.T) {
	c := newTestCollector(t)
	counter := c.RegisterCounter("requests_total", "Total requests", "outcome")
	counter.WithLabelValues("passed").Inc()
	counter.WithLabelValues("passed").Add(2)

	assert.Equal(t, 3.0, snapshot(t, c)["test_unit_requests_total{outcome=passed}"])
}

func TestRegisterCounter_GetOrCreate(t *testing.T) {
	c := newTestCollector(t)
	c1 := c.RegisterCounter("dup_total", "help", "l")
	c2 := c.RegisterCounter("dup_total", "help", "l")
	c1.WithLabelValues("a").Inc()
	c2.WithLabelValues("a").Inc()

	assert.Equal(t, 2.0, snapshot(t, c)["test_unit_dup_total{l=a}"])
}

func TestRegisterGauge_TypeMismatchIsNoop(t *testing.T) {
	c := newTestCollector(t)
	c.RegisterCounter("mixed", "help")
	g := c.RegisterGauge("mixed", "help")
	assert.IsType(t, noopGaugeVec{}, g)
	assert.NotPanics(t, func() { g.WithLabelValues().Set(5) })
}

func TestRegisterGauge_Success(t *testing.T) {
	c := newTestCollector(t)
	g := c.RegisterGauge("workers", "Workers")
	g.WithLabelValues().Set(4)

	assert.Equal(t, 4.0, snapshot(t, c)["test_unit_workers"])
}

func TestRegisterHistogram_DefaultBuckets(t *testing.T) {
	c := newTestCollector(t)
	h := c.RegisterHistogram("latency_seconds", "Latency", nil, "predicate")
	h.WithLabelValues("substructure").Observe(0.01)
	h.WithLabelValues("substructure").Observe(0.03)

	snap := snapshot(t, c)
	assert.Equal(t, 2.0, snap["test_unit_latency_seconds_count{predicate=substructure}"])
	assert.InDelta(t, 0.04, snap["test_unit_latency_seconds_sum{predicate=substructure}"], 1e-9)
}

func TestConstLabels(t *testing.T) {
	c, err := NewMetricsCollector(CollectorConfig{
		Namespace:   "molfilter",
		ConstLabels: map[string]string{"tool": "pattern-filter", "run_id": "r1"},
	}, nil)
	require.NoError(t, err)
	c.RegisterGauge("workers", "Workers").WithLabelValues().Set(1)

	assert.Equal(t, 1.0, snapshot(t, c)["molfilter_workers{run_id=r1,tool=pattern-filter}"])
}

func TestMustRegister(t *testing.T) {
	c := newTestCollector(t)
	g := prometheus.NewGauge(prometheus.GaugeOpts{Name: "custom_gauge", Help: "custom"})
	c.MustRegister(g)
	g.Set(7)
	assert.Equal(t, 7.0, snapshot(t, c)["custom_gauge"])
}

func TestConcurrentRegistration(t *testing.T) {
	c := newTestCollector(t)
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.RegisterCounter("shared_total", "help").WithLabelValues().Inc()
		}()
	}
	wg.Wait()
	assert.Equal(t, 16.0, snapshot(t, c)["test_unit_shared_total"])
}

func TestWriteTextfile(t *testing.T) {
	c := newTestCollector(t)
	c.RegisterCounter("records_total", "Records", "outcome").WithLabelValues("read").Add(5)

	path := filepath.Join(t.TempDir(), "molfilter.prom")
	require.NoError(t, c.WriteTextfile(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `test_unit_records_total{outcome="read"} 5`)
}

func TestWriteTextfile_Unwritable(t *testing.T) {
	c := newTestCollector(t)
	err := c.WriteTextfile(filepath.Join(t.TempDir(), "missing", "dir", "m.prom"))
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.CodeOutputUnwritable))
}

func TestPush(t *testing.T) {
	var (
		mu     sync.Mutex
		method string
		path   string
		body   string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, _ := io.ReadAll(r.Body)
		mu.Lock()
		method, path, body = r.Method, r.URL.Path, string(data)
		mu.Unlock()
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := newTestCollector(t)
	c.RegisterGauge("workers", "Workers").WithLabelValues().Set(2)
	require.NoError(t, c.Push(context.Background(), srv.URL, "molfilter"))

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, http.MethodPut, method)
	assert.Equal(t, "/metrics/job/molfilter", path)
	assert.NotEmpty(t, body)
}

func TestPush_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := newTestCollector(t)
	c.RegisterGauge("workers", "Workers").WithLabelValues().Set(2)
	err := c.Push(context.Background(), srv.URL, "molfilter")
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.CodeOutputWriteFailed))
}
