package refresh

import (
	"sync"
	"time"

	"github.com/haven-collective/careatlas/internal/model"
)

// KindStats holds the outcome of the most recent refresh for one data
// kind in one state.
type KindStats struct {
	Records     int       `json:"records"`
	Errors      int       `json:"errors"`
	LastSuccess time.Time `json:"last_success,omitempty"`
}

// Snapshot is a point-in-time view of scheduler health.
type Snapshot struct {
	CyclesCompleted int                                     `json:"cycles_completed"`
	TicksSkipped    int                                     `json:"ticks_skipped"`
	LastCycleAt     time.Time                               `json:"last_cycle_at,omitempty"`
	LastCycleTook   string                                  `json:"last_cycle_took,omitempty"`
	Kinds           map[string]map[model.DataKind]KindStats `json:"kinds"`
	CollectedAt     time.Time                               `json:"collected_at"`
}

// Metrics accumulates cycle outcomes. Safe for concurrent use; the serve
// surface reads snapshots while the scheduler records.
type Metrics struct {
	mu            sync.Mutex
	cycles        int
	skipped       int
	lastCycleAt   time.Time
	lastCycleTook time.Duration
	kinds         map[string]map[model.DataKind]KindStats
}

// NewMetrics creates an empty Metrics.
func NewMetrics() *Metrics {
	return &Metrics{kinds: make(map[string]map[model.DataKind]KindStats)}
}

// RecordCycle notes one completed cycle.
func (m *Metrics) RecordCycle(took time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cycles++
	m.lastCycleAt = time.Now().UTC()
	m.lastCycleTook = took
}

// RecordSkip notes a tick skipped because a cycle was still running.
func (m *Metrics) RecordSkip() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.skipped++
}

// RecordKind notes a successful refresh of one kind for one state.
func (m *Metrics) RecordKind(state string, kind model.DataKind, records int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	stats := m.stats(state, kind)
	stats.Records = records
	stats.LastSuccess = time.Now().UTC()
	m.kinds[state][kind] = stats
}

// RecordKindError notes a failed refresh of one kind for one state.
func (m *Metrics) RecordKindError(state string, kind model.DataKind) {
	m.mu.Lock()
	defer m.mu.Unlock()
	stats := m.stats(state, kind)
	stats.Errors++
	m.kinds[state][kind] = stats
}

func (m *Metrics) stats(state string, kind model.DataKind) KindStats {
	if m.kinds[state] == nil {
		m.kinds[state] = make(map[model.DataKind]KindStats)
	}
	return m.kinds[state][kind]
}

// Collect returns a copy of the current counters.
func (m *Metrics) Collect() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	kinds := make(map[string]map[model.DataKind]KindStats, len(m.kinds))
	for state, byKind := range m.kinds {
		inner := make(map[model.DataKind]KindStats, len(byKind))
		for k, v := range byKind {
			inner[k] = v
		}
		kinds[state] = inner
	}

	snap := Snapshot{
		CyclesCompleted: m.cycles,
		TicksSkipped:    m.skipped,
		LastCycleAt:     m.lastCycleAt,
		Kinds:           kinds,
		CollectedAt:     time.Now().UTC(),
	}
	if m.lastCycleTook > 0 {
		snap.LastCycleTook = m.lastCycleTook.String()
	}
	return snap
}
