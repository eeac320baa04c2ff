package opt

import (
	"fmt"
	"log/slog"

	"github.com/cwbudde/mlefit/internal/fit"
	"gonum.org/v1/gonum/mat"
)

// Minimizer fits a model's parameters to data by minimizing the negative
// log-likelihood with some backend solver.
//
// Train leaves the model assigned with the returned parameters. It makes a
// single backend call and blocks until the backend stops. Concurrent Train
// calls on the same model are not safe: both would mutate its parameters.
type Minimizer interface {
	Train(model fit.Model, data *mat.Dense) ([]float64, error)
}

// ProgressFunc receives the best cost and parameters after each backend generation
type ProgressFunc func(generation int, cost float64, params []float64)

// Names of the available minimizers
const (
	NameCMA    = "cma"
	NameDE     = "de"
	NameMayfly = "mayfly"
)

// Config selects backend settings for every minimizer. Zero values get defaults.
type Config struct {
	Seed   int64        `yaml:"seed"`
	CMA    CMAConfig    `yaml:"cma"`
	DE     DEConfig     `yaml:"de"`
	Mayfly MayflyConfig `yaml:"mayfly"`
}

// New creates the minimizer registered under name
func New(name string, cfg Config) (Minimizer, error) {
	switch name {
	case NameCMA:
		return NewCMA(cfg.CMA), nil
	case NameDE:
		return NewDifferentialEvolution(cfg.DE, cfg.Seed), nil
	case NameMayfly:
		return NewMayfly(cfg.Mayfly, cfg.Seed), nil
	default:
		return nil, fmt.Errorf("unknown minimizer: %s", name)
	}
}

// bind validates the model's declared box and binds model and data into a
// fresh cost evaluator for one training run.
func bind(model fit.Model, data *mat.Dense) (*fit.Evaluator, *fit.Bounds, error) {
	if data == nil {
		return nil, nil, fit.ErrEmptyDataset
	}
	if model.Size() <= 0 {
		return nil, nil, fmt.Errorf("model has no parameters")
	}
	bounds := fit.BoundsOf(model)
	if err := bounds.Validate(model.Size()); err != nil {
		return nil, nil, fmt.Errorf("invalid model bounds: %w", err)
	}
	return fit.NewEvaluator(model, data), bounds, nil
}

// finish assigns the best parameters to the model, unless the run hit a
// structural model error, and returns them.
func finish(eval *fit.Evaluator, best []float64) ([]float64, error) {
	if err := eval.Err(); err != nil {
		return nil, fmt.Errorf("model evaluation failed: %w", err)
	}
	if err := eval.Model().Assign(best); err != nil {
		return nil, fmt.Errorf("failed to assign best parameters: %w", err)
	}
	slog.Debug("Assigned best parameters", "params", best, "evaluations", eval.Evaluations())
	return best, nil
}

// boxObjective lets an unconstrained solver search the bounded problem.
// Points outside the box are evaluated at their projection, plus a
// quadratic penalty on the distance to it.
func boxObjective(cost func([]float64) float64, bounds *fit.Bounds, weight float64) func([]float64) float64 {
	return func(x []float64) float64 {
		repaired := bounds.Clamp(x)
		var d2 float64
		for i := range x {
			d := x[i] - repaired[i]
			d2 += d * d
		}
		return cost(repaired) + weight*d2
	}
}
