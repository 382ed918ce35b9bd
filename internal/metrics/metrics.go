// Package metrics provides the engine's in-process counters: fixed-slot
// atomic uint64 values, padded to avoid false sharing on hot paths.
package metrics

import "sync/atomic"

// MetricID identifies a specific counter slot.
type MetricID uint16

const (
	MetricJourneyStarted MetricID = iota
	MetricJourneyResumed
	MetricJourneyExpired
	MetricJourneyReset
	MetricGateRedirect
	MetricPasscodeGenerated
	MetricPasscodeResent
	MetricPasscodeRateLimited
	MetricPasscodeVerified
	MetricPasscodeIncorrect
	MetricPasscodeExpired
	MetricTRNLookupMatched
	MetricTRNLookupAmbiguous
	MetricTRNLookupNone
	MetricTRNConflictEntered
	MetricTRNConflictResolved
	MetricEmailChoiceRejected
	MetricAccountCreated
	MetricJourneyCompleted

	// MetricIDCount is the number of counter slots.
	MetricIDCount
)

const cacheLineSize = 64

type paddedCounter struct {
	value uint64
	_     [cacheLineSize - 8]byte
}

// Config controls whether counters record anything.
type Config struct {
	Enabled bool
}

// Metrics holds the counter slots. A nil or disabled Metrics is a no-op,
// so call sites never branch.
type Metrics struct {
	enabled  bool
	counters [MetricIDCount]paddedCounter
}

// New creates a Metrics registry.
func New(cfg Config) *Metrics {
	return &Metrics{enabled: cfg.Enabled}
}

// Inc increments a counter.
func (m *Metrics) Inc(id MetricID) {
	if m == nil || !m.enabled || id >= MetricIDCount {
		return
	}
	atomic.AddUint64(&m.counters[id].value, 1)
}

// Get reads a single counter.
func (m *Metrics) Get(id MetricID) uint64 {
	if m == nil || id >= MetricIDCount {
		return 0
	}
	return atomic.LoadUint64(&m.counters[id].value)
}

// Snapshot is a point-in-time copy of all counters.
type Snapshot struct {
	Counters [MetricIDCount]uint64
}

// Snapshot copies every counter atomically slot-by-slot.
func (m *Metrics) Snapshot() Snapshot {
	var s Snapshot
	if m == nil {
		return s
	}
	for i := MetricID(0); i < MetricIDCount; i++ {
		s.Counters[i] = atomic.LoadUint64(&m.counters[i].value)
	}
	return s
}
