package testutil

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/require"
)

// TestMetrics reads metric values from a per-test registry
type TestMetrics struct {
	t        *testing.T
	registry *prometheus.Registry
}

// NewTestMetrics creates an empty registry for one test
func NewTestMetrics(t *testing.T) *TestMetrics {
	return &TestMetrics{t: t, registry: prometheus.NewRegistry()}
}

// Registry is the registry components under test register on
func (m *TestMetrics) Registry() *prometheus.Registry {
	return m.registry
}

// Value returns the value of the series name with the given label pairs
// ("status", "Healthy", ...). Histograms report their sample count.
func (m *TestMetrics) Value(name string, labelPairs ...string) (float64, error) {
	if len(labelPairs)%2 != 0 {
		return 0, fmt.Errorf("odd number of label arguments for %s", name)
	}
	families, err := m.registry.Gather()
	if err != nil {
		return 0, err
	}

	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
		for _, metric := range mf.GetMetric() {
			if !hasLabels(metric, labelPairs) {
				continue
			}
			switch mf.GetType() {
			case dto.MetricType_COUNTER:
				return metric.GetCounter().GetValue(), nil
			case dto.MetricType_GAUGE:
				return metric.GetGauge().GetValue(), nil
			case dto.MetricType_HISTOGRAM:
				return float64(metric.GetHistogram().GetSampleCount()), nil
			default:
				return metric.GetUntyped().GetValue(), nil
			}
		}
	}
	return 0, fmt.Errorf("metric not found: %s%v", name, labelPairs)
}

func hasLabels(metric *dto.Metric, pairs []string) bool {
	for i := 0; i < len(pairs); i += 2 {
		found := false
		for _, lp := range metric.GetLabel() {
			if lp.GetName() == pairs[i] && lp.GetValue() == pairs[i+1] {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// RequireValue asserts the current value of a series
func (m *TestMetrics) RequireValue(name string, expected float64, labelPairs ...string) {
	m.t.Helper()
	value, err := m.Value(name, labelPairs...)
	require.NoError(m.t, err)
	require.Equal(m.t, expected, value, "metric %s", name)
}

// WaitForValue polls until a series reaches expected
func (m *TestMetrics) WaitForValue(name string, expected float64, timeout time.Duration, labelPairs ...string) {
	m.t.Helper()
	RequireEventually(m.t, func() bool {
		value, err := m.Value(name, labelPairs...)
		return err == nil && value == expected
	}, timeout, "metric %s never reached %v", name, expected)
}

// Text renders the registry in the exposition format
func (m *TestMetrics) Text() string {
	rec := httptest.NewRecorder()
	promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{}).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(m.t, http.StatusOK, rec.Code)
	return rec.Body.String()
}

// RequireTextContains asserts the exposition output contains every line
func (m *TestMetrics) RequireTextContains(expected ...string) {
	m.t.Helper()
	output := m.Text()
	for _, exp := range expected {
		require.Contains(m.t, output, exp)
	}
}
