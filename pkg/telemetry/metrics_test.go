package telemetry

import (
	"net/http"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestObserveRequestCountsByRoute(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewHTTPMetricsWithRegisterer(reg)

	m.ObserveRequest(http.MethodPost, "/api/payments/webhooks/sepay", http.StatusOK, 20*time.Millisecond)
	m.ObserveRequest(http.MethodPost, "/api/payments/webhooks/sepay", http.StatusOK, 10*time.Millisecond)

	got := testutil.ToFloat64(m.requests.WithLabelValues(http.MethodPost, "/api/payments/webhooks/sepay", "200"))
	if got != 2 {
		t.Fatalf("expected 2 requests, got %v", got)
	}
}
