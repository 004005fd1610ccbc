package handler

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/meatcoin/meatcoin/internal/metrics"
)

func TestMetricsHandler(t *testing.T) {
	t.Parallel()

	rec := metrics.NewInMemory()
	rec.IncMint()
	rec.IncMint()
	rec.IncRedeem()
	rec.IncRejected("UNAUTHORIZED")
	rec.IncRejected("OVERFLOW")

	h := NewMetricsHandler(rec)

	w := httptest.NewRecorder()
	h.Metrics(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	body := w.Body.String()
	for _, want := range []string{
		"meatcoin_mints_total 2",
		"meatcoin_redeems_total 1",
		`meatcoin_transitions_rejected_total{reason="OVERFLOW"} 1`,
		`meatcoin_transitions_rejected_total{reason="UNAUTHORIZED"} 1`,
	} {
		if !strings.Contains(body, want) {
			t.Errorf("metrics output missing %q:\n%s", want, body)
		}
	}
}

func TestMetricsHandler_NoSnapshotter(t *testing.T) {
	t.Parallel()

	h := NewMetricsHandler(nil)

	w := httptest.NewRecorder()
	h.Metrics(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("expected 503, got %d", w.Code)
	}
}
