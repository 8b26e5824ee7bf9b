package observability

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/require"
)

func TestNewLogger(t *testing.T) {
	logger, err := NewLogger("debug")
	require.NoError(t, err)
	require.NotNil(t, logger)

	_, err = NewLogger("chatty")
	require.Error(t, err)
}

func TestInstrumentCountsStatus(t *testing.T) {
	route := "GET /v1/test"
	before := testutil.ToFloat64(requestsTotal.WithLabelValues(route, "418"))

	handler := Instrument(route, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/test", nil))

	require.Equal(t, http.StatusTeapot, rec.Code)
	require.InDelta(t, before+1, testutil.ToFloat64(requestsTotal.WithLabelValues(route, "418")), 0.0001)
	require.Equal(t, uint64(1), histogramSampleCount(t, route))
}

func histogramSampleCount(t *testing.T, route string) uint64 {
	t.Helper()

	metric := &dto.Metric{}
	observer, err := requestDuration.GetMetricWithLabelValues(route)
	require.NoError(t, err)
	require.NoError(t, observer.(prometheus.Metric).Write(metric))
	hist := metric.GetHistogram()
	require.NotNil(t, hist)
	return hist.GetSampleCount()
}
