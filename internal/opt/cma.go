package opt

import (
	"fmt"
	"log/slog"

	"github.com/cwbudde/mlefit/internal/fit"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/optimize"
)

const (
	cmaInitialValue = 1e-5
	cmaStepSize     = 2
	boundPenalty    = 1
)

// CMAConfig configures the evolutionary-strategy minimizer
type CMAConfig struct {
	StepSize       float64 `yaml:"step_size"`       // default 2
	Population     int     `yaml:"population"`      // 0 = backend default
	MaxEvaluations int     `yaml:"max_evaluations"` // 0 = no limit
}

// CMA minimizes the cost with the covariance matrix adaptation evolution
// strategy, starting from a mean of 1e-5 in every coordinate.
type CMA struct {
	stepSize   float64
	population int
	maxEvals   int

	// Progress, if set, is called after every major backend iteration
	Progress ProgressFunc
}

// NewCMA creates a CMA-ES minimizer
func NewCMA(cfg CMAConfig) *CMA {
	c := &CMA{
		stepSize:   cfg.StepSize,
		population: cfg.Population,
		maxEvals:   cfg.MaxEvaluations,
	}
	if c.stepSize == 0 {
		c.stepSize = cmaStepSize
	}
	return c
}

// Train runs CMA-ES over the model's bounds and assigns the best point found
func (c *CMA) Train(model fit.Model, data *mat.Dense) ([]float64, error) {
	eval, bounds, err := bind(model, data)
	if err != nil {
		return nil, err
	}

	x0 := make([]float64, model.Size())
	for i := range x0 {
		x0[i] = cmaInitialValue
	}

	slog.Info("Starting CMA-ES training", "params", len(x0), "step_size", c.stepSize, "population", c.population)

	problem := optimize.Problem{Func: boxObjective(eval.Cost, bounds, boundPenalty)}
	settings := &optimize.Settings{
		FuncEvaluations: c.maxEvals,
		Recorder:        &cmaRecorder{eval: eval, bounds: bounds, progress: c.Progress},
	}
	method := &optimize.CmaEsChol{
		InitStepSize: c.stepSize,
		Population:   c.population,
	}

	result, err := optimize.Minimize(problem, x0, settings, method)
	if eval.Err() != nil {
		return finish(eval, nil)
	}
	if err != nil {
		return nil, fmt.Errorf("cma-es failed: %w", err)
	}

	best := bounds.Clamp(result.X)
	slog.Info("CMA-ES training complete",
		"cost", result.F,
		"status", result.Status,
		"evaluations", eval.Evaluations(),
	)
	return finish(eval, best)
}

// cmaRecorder reports major iterations and stops the run on structural model errors
type cmaRecorder struct {
	eval     *fit.Evaluator
	bounds   *fit.Bounds
	progress ProgressFunc
}

func (r *cmaRecorder) Init() error { return nil }

func (r *cmaRecorder) Record(loc *optimize.Location, op optimize.Operation, stats *optimize.Stats) error {
	if err := r.eval.Err(); err != nil {
		return err
	}
	if op&optimize.MajorIteration == 0 || loc.X == nil {
		return nil
	}
	slog.Debug("cma-es iteration", "iteration", stats.MajorIterations, "cost", loc.F)
	if r.progress != nil {
		r.progress(stats.MajorIterations, loc.F, r.bounds.Clamp(loc.X))
	}
	return nil
}
