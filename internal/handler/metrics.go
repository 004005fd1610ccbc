package handler

import (
	"fmt"
	"net/http"
	"sort"

	"github.com/meatcoin/meatcoin/internal/metrics"
)

// MetricsHandler exposes in-memory metrics.
type MetricsHandler struct {
	snapshotter metrics.Snapshotter
}

// NewMetricsHandler creates a new MetricsHandler.
func NewMetricsHandler(snapshotter metrics.Snapshotter) *MetricsHandler {
	return &MetricsHandler{snapshotter: snapshotter}
}

// Metrics returns metrics in Prometheus exposition format.
func (h *MetricsHandler) Metrics(w http.ResponseWriter, r *http.Request) {
	if h.snapshotter == nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		return
	}

	snap := h.snapshotter.Snapshot()

	w.Header().Set("Content-Type", "text/plain; version=0.0.4")

	writeMetric(w, "meatcoin_state_cache_hits_total %d\n", snap.StateCacheHits)
	writeMetric(w, "meatcoin_state_cache_misses_total %d\n", snap.StateCacheMisses)

	writeMetric(w, "meatcoin_mints_total %d\n", snap.Mints)
	writeMetric(w, "meatcoin_redeems_total %d\n", snap.Redeems)
	writeMetric(w, "meatcoin_admin_changes_total %d\n", snap.AdminChanges)
	writeMetric(w, "meatcoin_records_closed_total %d\n", snap.RecordsClosed)

	// Stable output order for scrapers and tests.
	reasons := make([]string, 0, len(snap.Rejections))
	for reason := range snap.Rejections {
		reasons = append(reasons, reason)
	}
	sort.Strings(reasons)
	for _, reason := range reasons {
		writeMetric(w, "meatcoin_transitions_rejected_total{reason=%q} %d\n", reason, snap.Rejections[reason])
	}

	writeMetric(w, "meatcoin_transition_duration_seconds_count %d\n", snap.TransitionDurationCount)
	writeMetric(w, "meatcoin_transition_duration_seconds_sum %.6f\n", float64(snap.TransitionDurationTotalNs)/1e9)
}

func writeMetric(w http.ResponseWriter, format string, args ...any) {
	_, _ = fmt.Fprintf(w, format, args...)
}
