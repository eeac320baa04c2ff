package opt

import (
	"log/slog"
	"math"
)

// StallConfig stops a population search early when the best cost stops improving
type StallConfig struct {
	// Patience is the number of generations with no significant improvement
	// before stopping. Zero disables stall detection.
	Patience int `yaml:"patience"`

	// Threshold is the minimum relative improvement that counts as progress.
	// Relative improvement = (lastSignificant - cost) / |lastSignificant|
	Threshold float64 `yaml:"threshold"`
}

// Enabled reports whether stall detection is active
func (c StallConfig) Enabled() bool {
	return c.Patience > 0
}

// StallTracker tracks the best cost per generation and detects stalls
type StallTracker struct {
	config          StallConfig
	generations     int
	bestCost        float64
	lastSignificant float64
	staleCount      int
}

// NewStallTracker creates a tracker with the given config
func NewStallTracker(config StallConfig) *StallTracker {
	return &StallTracker{
		config:          config,
		bestCost:        math.Inf(1),
		lastSignificant: math.Inf(1),
	}
}

// Update records the best cost of a generation and returns true once the
// search has stalled for Patience generations.
func (s *StallTracker) Update(cost float64) bool {
	if !s.config.Enabled() {
		return false
	}

	s.generations++
	if cost < s.bestCost {
		s.bestCost = cost
	}

	if s.generations == 1 {
		s.lastSignificant = cost
		return false
	}

	significant := false
	switch {
	case math.IsInf(s.lastSignificant, 1):
		significant = !math.IsInf(cost, 1)
	case s.lastSignificant == 0:
		significant = cost < 0
	default:
		rel := (s.lastSignificant - cost) / math.Abs(s.lastSignificant)
		significant = rel >= s.config.Threshold && cost < s.lastSignificant
	}

	if significant {
		s.lastSignificant = cost
		s.staleCount = 0
		return false
	}

	s.staleCount++
	slog.Debug("No significant cost improvement",
		"cost", cost,
		"last_significant", s.lastSignificant,
		"stale_count", s.staleCount,
		"patience", s.config.Patience,
	)
	if s.staleCount >= s.config.Patience {
		slog.Info("Search stalled - stopping early",
			"generations", s.generations,
			"stale_count", s.staleCount,
			"best_cost", s.bestCost,
		)
		return true
	}
	return false
}

// BestCost returns the best cost seen so far
func (s *StallTracker) BestCost() float64 {
	return s.bestCost
}

// Generations returns the number of generations seen by Update
func (s *StallTracker) Generations() int {
	return s.generations
}

// StaleCount returns the number of generations without improvement
func (s *StallTracker) StaleCount() int {
	return s.staleCount
}
