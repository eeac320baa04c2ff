package fit

import (
	"errors"
	"log/slog"
	"math"

	"gonum.org/v1/gonum/mat"
)

// NegLogLikelihood reduces per-sample likelihoods to -sum(log(l_i)).
// Zero likelihoods give +Inf and negative ones NaN, as math.Log does.
func NegLogLikelihood(likelihoods []float64) float64 {
	var sum float64
	for _, l := range likelihoods {
		sum += math.Log(l)
	}
	return -sum
}

// Evaluator is the cost function shared by all minimizers. It binds one
// model and one dataset for the duration of a training run.
//
// Cost mutates the bound model through Assign; an Evaluator must not be
// shared between concurrent training runs on the same model.
type Evaluator struct {
	model Model
	data  *mat.Dense

	evals int
	err   error
}

// NewEvaluator binds model and data
func NewEvaluator(model Model, data *mat.Dense) *Evaluator {
	return &Evaluator{model: model, data: data}
}

// Cost assigns params to the model and returns the negative log-likelihood
// of the dataset. It never panics on model errors and never returns NaN:
// failed or non-finite evaluations cost +Inf.
//
// Errors wrapping ErrNumerical are absorbed. Any other error is also
// mapped to +Inf for the solver, but the first one is kept and reported
// by Err so training can fail loudly.
func (e *Evaluator) Cost(params []float64) float64 {
	e.evals++

	if err := e.model.Assign(params); err != nil {
		e.record(err)
		return math.Inf(1)
	}

	likelihoods, err := e.model.Evaluate(e.data)
	if err != nil {
		e.record(err)
		return math.Inf(1)
	}

	res := NegLogLikelihood(likelihoods)
	if math.IsNaN(res) || math.IsInf(res, -1) {
		return math.Inf(1)
	}
	return res
}

func (e *Evaluator) record(err error) {
	if errors.Is(err, ErrNumerical) || e.err != nil {
		return
	}
	slog.Debug("Structural model error during cost evaluation", "error", err, "evaluation", e.evals)
	e.err = err
}

// Err returns the first structural (non-numerical) model error seen by Cost
func (e *Evaluator) Err() error {
	return e.err
}

// Evaluations returns the number of Cost calls so far
func (e *Evaluator) Evaluations() int {
	return e.evals
}

// Model returns the bound model
func (e *Evaluator) Model() Model {
	return e.model
}
