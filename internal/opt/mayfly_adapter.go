package opt

import (
	"fmt"
	"log/slog"
	"math/rand"

	"github.com/cwbudde/mayfly"
	"github.com/cwbudde/mlefit/internal/fit"
	"gonum.org/v1/gonum/mat"
)

// MayflyConfig configures the Mayfly minimizer
type MayflyConfig struct {
	Iterations int `yaml:"iterations"` // default 500
	Population int `yaml:"population"` // default 20, the library minimum
}

const minMayflyPopulation = 20

// Mayfly wraps the external Mayfly library as a Minimizer
type Mayfly struct {
	maxIters int
	popSize  int
	seed     int64

	// Progress, if set, is called once per iteration after the run. The
	// library exposes only the best cost per iteration, so params are nil
	// except on the last call.
	Progress ProgressFunc
}

// NewMayfly creates a new Mayfly minimizer
func NewMayfly(cfg MayflyConfig, seed int64) *Mayfly {
	m := &Mayfly{
		maxIters: cfg.Iterations,
		popSize:  cfg.Population,
		seed:     seed,
	}
	if m.maxIters == 0 {
		m.maxIters = 500
	}
	if m.popSize < minMayflyPopulation {
		m.popSize = minMayflyPopulation
	}
	return m
}

// Train runs the Mayfly optimization using the external library.
// The library only takes scalar bounds, so it searches the unit cube and
// every candidate is scaled onto the model's per-dimension bounds.
func (m *Mayfly) Train(model fit.Model, data *mat.Dense) ([]float64, error) {
	eval, bounds, err := bind(model, data)
	if err != nil {
		return nil, err
	}

	config := mayfly.NewDefaultConfig()
	config.ObjectiveFunc = func(u []float64) float64 {
		return eval.Cost(bounds.Scale(u))
	}
	config.ProblemSize = bounds.Dim()
	config.MaxIterations = m.maxIters
	config.NPop = m.popSize
	config.LowerBound = 0
	config.UpperBound = 1
	config.Rand = rand.New(rand.NewSource(m.seed))

	slog.Info("Starting mayfly training", "params", bounds.Dim(), "iterations", m.maxIters, "population", m.popSize)

	result, err := mayfly.Optimize(config)
	if eval.Err() != nil {
		return finish(eval, nil)
	}
	if err != nil {
		return nil, fmt.Errorf("mayfly failed: %w", err)
	}

	best := bounds.Scale(result.GlobalBest.Position)
	if m.Progress != nil {
		for i, c := range result.BestSolution {
			var params []float64
			if i == len(result.BestSolution)-1 {
				params = best
			}
			m.Progress(i+1, c, params)
		}
	}
	slog.Info("Mayfly training complete", "cost", result.GlobalBest.Cost, "evaluations", eval.Evaluations())
	return finish(eval, best)
}
