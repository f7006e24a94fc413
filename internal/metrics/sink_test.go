package metrics

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSinkCounters(t *testing.T) {
	s := NewSink("futures-daily")

	s.RunStarted()
	s.StageError("fetcher", "connection")
	s.StageError("fetcher", "connection")
	s.RecordsProcessed(DatasetRaw, 10)
	s.RecordsProcessed(DatasetCleaned, 8)
	s.Completeness("ES", 0.8)
	s.StreamReconnect()

	assert.Equal(t, 1.0, testutil.ToFloat64(s.runs.WithLabelValues("futures-daily")))
	assert.Equal(t, 2.0, testutil.ToFloat64(s.stageErrors.WithLabelValues("fetcher", "futures-daily", "connection")))
	assert.Equal(t, 10.0, testutil.ToFloat64(s.records.WithLabelValues(DatasetRaw, "futures-daily")))
	assert.Equal(t, 8.0, testutil.ToFloat64(s.records.WithLabelValues(DatasetCleaned, "futures-daily")))
	assert.Equal(t, 0.8, testutil.ToFloat64(s.completeness.WithLabelValues("ES", "futures-daily")))
	assert.Equal(t, 1.0, testutil.ToFloat64(s.reconnects.WithLabelValues("futures-daily")))
}

func TestSinkLastSuccess(t *testing.T) {
	s := NewSink("p")
	at := time.Unix(1700000000, 0)
	s.RunSucceeded(at)
	assert.Equal(t, 1700000000.0, testutil.ToFloat64(s.lastSuccess.WithLabelValues("p")))
}

func TestSinkObserveStage(t *testing.T) {
	s := NewSink("p")
	s.ObserveStage("cleaner", 50*time.Millisecond)
	s.ObserveStage("cleaner", 70*time.Millisecond)
	assert.Equal(t, 1, testutil.CollectAndCount(s.stageSeconds))
}

func TestSinksAreIsolated(t *testing.T) {
	a := NewSink("a")
	b := NewSink("b")
	a.RunStarted()
	assert.Equal(t, 0, testutil.CollectAndCount(b.runs))
}

func TestSinkHandler(t *testing.T) {
	s := NewSink("futures-daily")
	s.RunStarted()

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(body), `data_ngin_pipeline_runs_total{pipeline="futures-daily"} 1`))
}
