package engine

import "time"

// Strategy selects how a block of ranked words is turned into classes.
type Strategy uint8

const (
	// StrategyBlock tries existing classes first, then greedily expands a
	// new class over the rest of the block.
	StrategyBlock Strategy = iota
	// StrategySingletons keeps unmatched words in a provisional pool; two
	// mutually similar singletons seed a new class.
	StrategySingletons
)

// Options configures the clustering engine.
type Options struct {
	// CosineThreshold is the similarity a pair must reach to merge.
	CosineThreshold float64
	// MergeFraction governs how much mass from unshared bases crosses
	// into the class. Zero is a valid setting (intersection-only).
	MergeFraction float64
	// MinObservations filters out entities with fewer total observations
	// before ranking.
	MinObservations float64
	// InitialChunkSize is the size of the first ranked block; each later
	// block doubles.
	InitialChunkSize int
	// SkipFraction scales the squared class count into the number of
	// ranked entities skipped on resume.
	SkipFraction float64
	// Strategy picks the block-assignment path.
	Strategy Strategy
	// Workers bounds the parallel similarity comparisons per word.
	Workers int
	// Clock supplies timestamps for log output.
	Clock func() time.Time
}

// DefaultOptions returns the recommended defaults for the engine.
func DefaultOptions() Options {
	return Options{
		CosineThreshold:  0.65,
		MergeFraction:    0.3,
		MinObservations:  20,
		InitialChunkSize: 20,
		SkipFraction:     0.35,
		Strategy:         StrategyBlock,
		Workers:          4,
		Clock:            time.Now,
	}
}

// withDefaults fills fields whose zero value is unusable. MergeFraction,
// MinObservations and SkipFraction keep their zero values: each is a
// meaningful setting in its own right.
func (o Options) withDefaults() Options {
	defaults := DefaultOptions()
	if o.CosineThreshold == 0 {
		o.CosineThreshold = defaults.CosineThreshold
	}
	if o.InitialChunkSize <= 0 {
		o.InitialChunkSize = defaults.InitialChunkSize
	}
	if o.Workers <= 0 {
		o.Workers = defaults.Workers
	}
	if o.Clock == nil {
		o.Clock = time.Now
	}
	return o
}
