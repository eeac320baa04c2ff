package opt

import (
	"fmt"
	"log/slog"
	"math"
	"math/rand"

	"github.com/cwbudde/mlefit/internal/fit"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/optimize"
	"gonum.org/v1/gonum/stat"
)

// DEConfig configures the differential-evolution minimizer.
// Zero values receive the defaults noted on each field.
type DEConfig struct {
	MaxGenerations int     `yaml:"max_generations"` // default 1000
	PopSize        int     `yaml:"pop_size"`        // per dimension, default 15
	MutationMin    float64 `yaml:"mutation_min"`    // default 0.5
	MutationMax    float64 `yaml:"mutation_max"`    // default 1.0
	Recombination  float64 `yaml:"recombination"`   // default 0.7
	Tol            float64 `yaml:"tol"`             // default 0.01
	Atol           float64 `yaml:"atol"`
	NoPolish       bool    `yaml:"no_polish"`
	Quiet          bool    `yaml:"quiet"` // disables per-generation progress logging

	Stall StallConfig `yaml:"stall"`
}

func (c DEConfig) withDefaults() DEConfig {
	if c.MaxGenerations == 0 {
		c.MaxGenerations = 1000
	}
	if c.PopSize == 0 {
		c.PopSize = 15
	}
	if c.MutationMin == 0 && c.MutationMax == 0 {
		c.MutationMin, c.MutationMax = 0.5, 1.0
	}
	if c.MutationMax < c.MutationMin {
		c.MutationMax = c.MutationMin
	}
	if c.Recombination == 0 {
		c.Recombination = 0.7
	}
	if c.Tol == 0 {
		c.Tol = 0.01
	}
	return c
}

const minDEPopulation = 5

// DifferentialEvolution minimizes the cost with a best1bin differential
// evolution over the model's bounds, one (min, max) pair per dimension.
// The population lives in the unit cube and is scaled onto the bounds.
type DifferentialEvolution struct {
	cfg  DEConfig
	seed int64

	// Progress, if set, is called after every generation
	Progress ProgressFunc
}

// NewDifferentialEvolution creates a DE minimizer. Runs with the same seed
// on the same problem are reproducible.
func NewDifferentialEvolution(cfg DEConfig, seed int64) *DifferentialEvolution {
	return &DifferentialEvolution{cfg: cfg.withDefaults(), seed: seed}
}

// Train runs the search and assigns the best vector found
func (d *DifferentialEvolution) Train(model fit.Model, data *mat.Dense) ([]float64, error) {
	eval, bounds, err := bind(model, data)
	if err != nil {
		return nil, err
	}

	cfg := d.cfg
	rng := rand.New(rand.NewSource(d.seed))
	dim := bounds.Dim()
	size := max(cfg.PopSize*dim, minDEPopulation)
	cost := func(u []float64) float64 {
		return eval.Cost(bounds.Scale(u))
	}

	slog.Info("Starting differential evolution", "params", dim, "population", size, "max_generations", cfg.MaxGenerations)

	pop := latinHypercube(rng, size, dim)
	energies := make([]float64, size)
	best := 0
	for i := range pop {
		energies[i] = cost(pop[i])
		if energies[i] < energies[best] {
			best = i
		}
	}

	stall := NewStallTracker(cfg.Stall)
	generation := 0
	for generation = 1; generation <= cfg.MaxGenerations; generation++ {
		if err := eval.Err(); err != nil {
			return finish(eval, nil)
		}

		scale := cfg.MutationMin + rng.Float64()*(cfg.MutationMax-cfg.MutationMin)
		for i := range pop {
			trial := d.trial(rng, pop, i, best, scale)
			energy := cost(trial)
			if energy <= energies[i] {
				pop[i] = trial
				energies[i] = energy
				if energy < energies[best] {
					best = i
				}
			}
		}

		if !cfg.Quiet {
			slog.Info("differential_evolution step", "generation", generation, "cost", energies[best])
		}
		if d.Progress != nil {
			d.Progress(generation, energies[best], bounds.Scale(pop[best]))
		}

		if converged(energies, cfg.Tol, cfg.Atol) {
			break
		}
		if stall.Update(energies[best]) {
			break
		}
	}

	x := bounds.Scale(pop[best])
	f := energies[best]

	if !cfg.NoPolish && !math.IsInf(f, 1) && eval.Err() == nil {
		polished, pf, err := polish(eval, bounds, x)
		if err != nil {
			return nil, err
		}
		if pf < f {
			x, f = polished, pf
		}
	}

	slog.Info("Differential evolution complete",
		"cost", f,
		"generations", min(generation, cfg.MaxGenerations),
		"evaluations", eval.Evaluations(),
	)
	return finish(eval, x)
}

// trial builds a best1bin candidate for population member i
func (d *DifferentialEvolution) trial(rng *rand.Rand, pop [][]float64, i, best int, scale float64) []float64 {
	r0, r1 := distinctPair(rng, len(pop), i)
	dim := len(pop[i])

	trial := append([]float64{}, pop[i]...)
	fill := rng.Intn(dim)
	for j := 0; j < dim; j++ {
		if j == fill || rng.Float64() < d.cfg.Recombination {
			trial[j] = pop[best][j] + scale*(pop[r0][j]-pop[r1][j])
		}
	}
	for j, v := range trial {
		if v < 0 || v > 1 {
			trial[j] = rng.Float64()
		}
	}
	return trial
}

// distinctPair draws two different indices in [0, n), both different from skip
func distinctPair(rng *rand.Rand, n, skip int) (int, int) {
	r0 := rng.Intn(n)
	for r0 == skip {
		r0 = rng.Intn(n)
	}
	r1 := rng.Intn(n)
	for r1 == skip || r1 == r0 {
		r1 = rng.Intn(n)
	}
	return r0, r1
}

// latinHypercube samples n points in the unit cube with one point per
// stratum in every dimension.
func latinHypercube(rng *rand.Rand, n, dim int) [][]float64 {
	pop := make([][]float64, n)
	for i := range pop {
		pop[i] = make([]float64, dim)
	}
	for j := 0; j < dim; j++ {
		perm := rng.Perm(n)
		for k := 0; k < n; k++ {
			pop[perm[k]][j] = (float64(k) + rng.Float64()) / float64(n)
		}
	}
	return pop
}

// converged reports whether population energies have collapsed:
// std(energies) <= atol + tol*|mean(energies)|. Infinite energies never converge.
func converged(energies []float64, tol, atol float64) bool {
	mean, std := stat.MeanStdDev(energies, nil)
	return std <= atol+tol*math.Abs(mean)
}

// polish refines x with Nelder-Mead on the box-repaired objective
func polish(eval *fit.Evaluator, bounds *fit.Bounds, x []float64) ([]float64, float64, error) {
	problem := optimize.Problem{Func: boxObjective(eval.Cost, bounds, boundPenalty)}
	settings := &optimize.Settings{FuncEvaluations: 200 * max(len(x), 1)}

	result, err := optimize.Minimize(problem, x, settings, &optimize.NelderMead{})
	if eval.Err() != nil {
		return nil, 0, fmt.Errorf("model evaluation failed: %w", eval.Err())
	}
	if err != nil {
		return nil, 0, fmt.Errorf("polish failed: %w", err)
	}

	best := bounds.Clamp(result.X)
	slog.Debug("Polished differential evolution result", "before", x, "after", best, "cost", result.F)
	return best, eval.Cost(best), nil
}
