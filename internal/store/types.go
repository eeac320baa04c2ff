package store

import (
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
)

// RunConfig records how a training run was set up
type RunConfig struct {
	DataPath   string `json:"dataPath"`
	Model      string `json:"model"`     // gaussian, mixture
	Minimizer  string `json:"minimizer"` // cma, de, mayfly
	Components int    `json:"components,omitempty"`
	Seed       int64  `json:"seed"`
}

// Run is the persisted outcome of one Train call.
type Run struct {
	// ID is the unique identifier of this run
	ID string `json:"id"`

	// Params is the best parameter vector returned by the minimizer
	Params []float64 `json:"params"`

	// Cost is the negative log-likelihood of the data at Params.
	// JSON cannot encode +Inf, so infeasible results are stored with Infeasible set.
	Cost       float64 `json:"cost"`
	Infeasible bool    `json:"infeasible,omitempty"`

	// Samples is the number of dataset rows
	Samples int `json:"samples"`

	// Evaluations is the number of cost evaluations, when known
	Evaluations int `json:"evaluations,omitempty"`

	// Duration is the wall time spent in Train
	Duration time.Duration `json:"duration"`

	// Timestamp records when the run finished
	Timestamp time.Time `json:"timestamp"`

	Config RunConfig `json:"config"`
}

// RunInfo contains run metadata without the parameter vector
type RunInfo struct {
	ID        string    `json:"id"`
	Cost      float64   `json:"cost"`
	Timestamp time.Time `json:"timestamp"`
	Model     string    `json:"model"`
	Minimizer string    `json:"minimizer"`
	DataPath  string    `json:"dataPath"`
}

// NewRunID returns a fresh unique run identifier
func NewRunID() string {
	return uuid.New().String()
}

// NewRun creates a run record. An empty id gets a fresh one.
func NewRun(id string, params []float64, cost float64, samples int, duration time.Duration, config RunConfig) *Run {
	if id == "" {
		id = NewRunID()
	}
	run := &Run{
		ID:        id,
		Params:    params,
		Cost:      cost,
		Samples:   samples,
		Duration:  duration,
		Timestamp: time.Now(),
		Config:    config,
	}
	if math.IsInf(cost, 1) {
		run.Cost = 0
		run.Infeasible = true
	}
	return run
}

// BestCost returns the stored cost, +Inf for infeasible runs
func (r *Run) BestCost() float64 {
	if r.Infeasible {
		return math.Inf(1)
	}
	return r.Cost
}

// ToInfo converts a full Run to RunInfo (metadata only)
func (r *Run) ToInfo() RunInfo {
	return RunInfo{
		ID:        r.ID,
		Cost:      r.BestCost(),
		Timestamp: r.Timestamp,
		Model:     r.Config.Model,
		Minimizer: r.Config.Minimizer,
		DataPath:  r.Config.DataPath,
	}
}

// Validate checks if the run has valid data
func (r *Run) Validate() error {
	if r.ID == "" {
		return &ValidationError{Field: "ID", Reason: "cannot be empty"}
	}
	if len(r.Params) == 0 {
		return &ValidationError{Field: "Params", Reason: "cannot be empty"}
	}
	for i, p := range r.Params {
		if math.IsNaN(p) || math.IsInf(p, 0) {
			return &ValidationError{Field: "Params", Reason: fmt.Sprintf("element %d is not finite", i)}
		}
	}
	if math.IsNaN(r.Cost) || math.IsInf(r.Cost, 0) {
		return &ValidationError{Field: "Cost", Reason: "must be finite"}
	}
	if r.Samples <= 0 {
		return &ValidationError{Field: "Samples", Reason: "must be positive"}
	}
	if r.Timestamp.IsZero() {
		return &ValidationError{Field: "Timestamp", Reason: "cannot be zero"}
	}
	if r.Config.Model == "" {
		return &ValidationError{Field: "Config.Model", Reason: "cannot be empty"}
	}
	if r.Config.Minimizer == "" {
		return &ValidationError{Field: "Config.Minimizer", Reason: "cannot be empty"}
	}
	return nil
}

// ValidationError represents a run validation error.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return "validation error: " + e.Field + " " + e.Reason
}
