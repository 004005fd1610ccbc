package metrics

import (
	"sync"
	"sync/atomic"
	"time"
)

// Snapshot captures current in-memory counters.
type Snapshot struct {
	StateCacheHits            uint64
	StateCacheMisses          uint64
	Mints                     uint64
	Redeems                   uint64
	AdminChanges              uint64
	RecordsClosed             uint64
	Rejections                map[string]uint64
	TransitionDurationCount   uint64
	TransitionDurationTotalNs int64
}

// InMemoryRecorder stores metrics in memory for tests.
type InMemoryRecorder struct {
	stateCacheHits            uint64
	stateCacheMisses          uint64
	mints                     uint64
	redeems                   uint64
	adminChanges              uint64
	recordsClosed             uint64
	transitionDurationCount   uint64
	transitionDurationTotalNs int64

	mu         sync.Mutex
	rejections map[string]uint64
}

// NewInMemory returns a Recorder that stores counters in memory.
func NewInMemory() *InMemoryRecorder {
	return &InMemoryRecorder{rejections: make(map[string]uint64)}
}

// Snapshot returns a copy of the counters.
func (m *InMemoryRecorder) Snapshot() Snapshot {
	m.mu.Lock()
	rejections := make(map[string]uint64, len(m.rejections))
	for reason, n := range m.rejections {
		rejections[reason] = n
	}
	m.mu.Unlock()

	return Snapshot{
		StateCacheHits:            atomic.LoadUint64(&m.stateCacheHits),
		StateCacheMisses:          atomic.LoadUint64(&m.stateCacheMisses),
		Mints:                     atomic.LoadUint64(&m.mints),
		Redeems:                   atomic.LoadUint64(&m.redeems),
		AdminChanges:              atomic.LoadUint64(&m.adminChanges),
		RecordsClosed:             atomic.LoadUint64(&m.recordsClosed),
		Rejections:                rejections,
		TransitionDurationCount:   atomic.LoadUint64(&m.transitionDurationCount),
		TransitionDurationTotalNs: atomic.LoadInt64(&m.transitionDurationTotalNs),
	}
}

// IncStateCacheHit increments the state cache hit counter.
func (m *InMemoryRecorder) IncStateCacheHit() {
	atomic.AddUint64(&m.stateCacheHits, 1)
}

// IncStateCacheMiss increments the state cache miss counter.
func (m *InMemoryRecorder) IncStateCacheMiss() {
	atomic.AddUint64(&m.stateCacheMisses, 1)
}

// IncMint increments the mint counter.
func (m *InMemoryRecorder) IncMint() {
	atomic.AddUint64(&m.mints, 1)
}

// IncRedeem increments the redeem counter.
func (m *InMemoryRecorder) IncRedeem() {
	atomic.AddUint64(&m.redeems, 1)
}

// IncAdminChange increments the admin change counter.
func (m *InMemoryRecorder) IncAdminChange() {
	atomic.AddUint64(&m.adminChanges, 1)
}

// IncRecordClosed increments the record closed counter.
func (m *InMemoryRecorder) IncRecordClosed() {
	atomic.AddUint64(&m.recordsClosed, 1)
}

// IncRejected increments the rejection counter for the given reason.
func (m *InMemoryRecorder) IncRejected(reason string) {
	m.mu.Lock()
	m.rejections[reason]++
	m.mu.Unlock()
}

// ObserveTransitionDuration records transition duration.
func (m *InMemoryRecorder) ObserveTransitionDuration(op string, duration time.Duration) {
	atomic.AddUint64(&m.transitionDurationCount, 1)
	atomic.AddInt64(&m.transitionDurationTotalNs, duration.Nanoseconds())
}

// IncAuditEventPublished is a no-op in the in-memory recorder.
func (m *InMemoryRecorder) IncAuditEventPublished(status string) {}

// IncAuditEventProcessed is a no-op in the in-memory recorder.
func (m *InMemoryRecorder) IncAuditEventProcessed(status string) {}

// ObserveAuditBatchSize is a no-op in the in-memory recorder.
func (m *InMemoryRecorder) ObserveAuditBatchSize(size int) {}

// ObserveAuditBatchDuration is a no-op in the in-memory recorder.
func (m *InMemoryRecorder) ObserveAuditBatchDuration(duration time.Duration) {}

// SetAuditQueueDepth is a no-op in the in-memory recorder.
func (m *InMemoryRecorder) SetAuditQueueDepth(depth int64) {}

// ObserveAuditIngestLag is a no-op in the in-memory recorder.
func (m *InMemoryRecorder) ObserveAuditIngestLag(lag time.Duration) {}
