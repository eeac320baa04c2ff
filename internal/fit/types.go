package fit

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// ErrNumerical marks a model failure caused by the candidate parameters
// (overflow, invalid domain, degenerate density). The Cost Evaluator absorbs
// these into +Inf; any other model error is treated as structural.
var ErrNumerical = errors.New("fit: numerical failure")

// Model is a probabilistic model whose parameters are fitted by maximum likelihood.
type Model interface {
	// Assign sets the model parameters. len(params) must equal Size().
	Assign(params []float64) error

	// Evaluate returns the likelihood of every sample (row) in data under
	// the currently assigned parameters.
	Evaluate(data *mat.Dense) ([]float64, error)

	// Size returns the parameter vector length
	Size() int

	// Bounds returns elementwise lower and upper bounds for the parameters
	Bounds() (lower, upper []float64)
}

// Bounds defines the feasible parameter box
type Bounds struct {
	Lower []float64
	Upper []float64
}

// BoundsOf returns the bounds declared by m.
func BoundsOf(m Model) *Bounds {
	lower, upper := m.Bounds()
	return &Bounds{Lower: lower, Upper: upper}
}

// Dim returns the number of bounded parameters
func (b *Bounds) Dim() int {
	return len(b.Lower)
}

// Validate checks that the box is well formed for a model of the given size.
func (b *Bounds) Validate(size int) error {
	if len(b.Lower) != len(b.Upper) {
		return fmt.Errorf("bounds length mismatch: %d lower, %d upper", len(b.Lower), len(b.Upper))
	}
	if len(b.Lower) != size {
		return fmt.Errorf("bounds length %d does not match model size %d", len(b.Lower), size)
	}
	for i := range b.Lower {
		lo, hi := b.Lower[i], b.Upper[i]
		if math.IsNaN(lo) || math.IsNaN(hi) || math.IsInf(lo, 0) || math.IsInf(hi, 0) {
			return fmt.Errorf("bounds[%d] must be finite: [%g, %g]", i, lo, hi)
		}
		if lo > hi {
			return fmt.Errorf("bounds[%d] inverted: [%g, %g]", i, lo, hi)
		}
	}
	return nil
}

// Clamp returns a copy of x projected into the box
func (b *Bounds) Clamp(x []float64) []float64 {
	out := make([]float64, len(x))
	for i := range x {
		out[i] = clamp(x[i], b.Lower[i], b.Upper[i])
	}
	return out
}

// Contains reports whether x lies inside the box.
func (b *Bounds) Contains(x []float64) bool {
	if len(x) != len(b.Lower) {
		return false
	}
	for i, v := range x {
		if v < b.Lower[i] || v > b.Upper[i] {
			return false
		}
	}
	return true
}

// Scale maps a point of the unit cube onto the box. Dimensions with
// Lower == Upper always map to that fixed value.
func (b *Bounds) Scale(u []float64) []float64 {
	out := make([]float64, len(u))
	for i := range u {
		lo, hi := b.Lower[i], b.Upper[i]
		if lo == hi {
			out[i] = lo
			continue
		}
		out[i] = clamp(lo+u[i]*(hi-lo), lo, hi)
	}
	return out
}

func clamp(val, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, val))
}
