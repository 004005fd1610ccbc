package metrics

import "time"

// NoopRecorder implements Recorder with no-op methods.
type NoopRecorder struct{}

// NewNoop returns a Recorder that discards all metrics.
func NewNoop() Recorder {
	return &NoopRecorder{}
}

// IncStateCacheHit is a no-op.
func (n *NoopRecorder) IncStateCacheHit() {}

// IncStateCacheMiss is a no-op.
func (n *NoopRecorder) IncStateCacheMiss() {}

// IncMint is a no-op.
func (n *NoopRecorder) IncMint() {}

// IncRedeem is a no-op.
func (n *NoopRecorder) IncRedeem() {}

// IncAdminChange is a no-op.
func (n *NoopRecorder) IncAdminChange() {}

// IncRecordClosed is a no-op.
func (n *NoopRecorder) IncRecordClosed() {}

// IncRejected is a no-op.
func (n *NoopRecorder) IncRejected(reason string) {}

// ObserveTransitionDuration is a no-op.
func (n *NoopRecorder) ObserveTransitionDuration(op string, duration time.Duration) {}

// IncAuditEventPublished is a no-op.
func (n *NoopRecorder) IncAuditEventPublished(status string) {}

// IncAuditEventProcessed is a no-op.
func (n *NoopRecorder) IncAuditEventProcessed(status string) {}

// ObserveAuditBatchSize is a no-op.
func (n *NoopRecorder) ObserveAuditBatchSize(size int) {}

// ObserveAuditBatchDuration is a no-op.
func (n *NoopRecorder) ObserveAuditBatchDuration(duration time.Duration) {}

// SetAuditQueueDepth is a no-op.
func (n *NoopRecorder) SetAuditQueueDepth(depth int64) {}

// ObserveAuditIngestLag is a no-op.
func (n *NoopRecorder) ObserveAuditIngestLag(lag time.Duration) {}
