package engine

import "sync/atomic"

// Metrics captures lightweight runtime counters for observability.
type Metrics struct {
	comparisons    atomic.Int64
	merges         atomic.Int64
	classesCreated atomic.Int64
	clamped        atomic.Int64
	blocks         atomic.Int64
}

func (m *Metrics) IncComparisons()    { m.comparisons.Add(1) }
func (m *Metrics) IncMerges()         { m.merges.Add(1) }
func (m *Metrics) IncClassesCreated() { m.classesCreated.Add(1) }
func (m *Metrics) IncClamped(n int)   { m.clamped.Add(int64(n)) }
func (m *Metrics) IncBlocks()         { m.blocks.Add(1) }

// MetricsSnapshot returns the current values for reporting/logging.
type MetricsSnapshot struct {
	Comparisons    int64 `json:"comparisons"`
	Merges         int64 `json:"merges"`
	ClassesCreated int64 `json:"classes_created"`
	Clamped        int64 `json:"clamped"`
	Blocks         int64 `json:"blocks"`
}

func (m *Metrics) Snapshot() MetricsSnapshot {
	if m == nil {
		return MetricsSnapshot{}
	}
	return MetricsSnapshot{
		Comparisons:    m.comparisons.Load(),
		Merges:         m.merges.Load(),
		ClassesCreated: m.classesCreated.Load(),
		Clamped:        m.clamped.Load(),
		Blocks:         m.blocks.Load(),
	}
}
