package fit

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// Mixture is a one-dimensional Gaussian mixture with K components.
// Parameters are laid out as [w_1..w_K, mu_1..mu_K, sigma_1..sigma_K];
// weights are normalised by their sum at evaluation time.
type Mixture struct {
	k      int
	params []float64
	bounds *Bounds
}

// NewMixture creates a K-component mixture whose means range over [lo, hi]
func NewMixture(k int, lo, hi float64) (*Mixture, error) {
	if k <= 0 {
		return nil, fmt.Errorf("mixture needs at least one component, got %d", k)
	}
	lower := make([]float64, 3*k)
	upper := make([]float64, 3*k)
	for i := 0; i < k; i++ {
		lower[i], upper[i] = 0, 1
		lower[k+i], upper[k+i] = lo, hi
		lower[2*k+i], upper[2*k+i] = minSigma, math.Max(hi-lo, minSigma)
	}
	b := &Bounds{Lower: lower, Upper: upper}
	if err := b.Validate(3 * k); err != nil {
		return nil, fmt.Errorf("mixture bounds: %w", err)
	}
	return &Mixture{k: k, params: make([]float64, 3*k), bounds: b}, nil
}

// NewMixtureFromData sizes the mean range from the single column of data
func NewMixtureFromData(k int, data *mat.Dense) (*Mixture, error) {
	_, c := data.Dims()
	if c != 1 {
		return nil, fmt.Errorf("mixture expects 1 feature, data has %d", c)
	}
	col := mat.Col(nil, 0, data)
	return NewMixture(k, floats.Min(col), floats.Max(col))
}

// Assign sets [w..., mu..., sigma...]
func (m *Mixture) Assign(params []float64) error {
	if len(params) != len(m.params) {
		return fmt.Errorf("mixture expects %d parameters, got %d", len(m.params), len(params))
	}
	copy(m.params, params)
	return nil
}

// Evaluate returns the mixture density of every sample
func (m *Mixture) Evaluate(data *mat.Dense) ([]float64, error) {
	r, c := data.Dims()
	if c != 1 {
		return nil, fmt.Errorf("mixture expects 1 feature, data has %d", c)
	}
	w := m.params[:m.k]
	mu := m.params[m.k : 2*m.k]
	sigma := m.params[2*m.k:]

	total := floats.Sum(w)
	if !(total > 0) || math.IsInf(total, 1) {
		return nil, fmt.Errorf("%w: mixture weight sum %g", ErrNumerical, total)
	}
	for i := range sigma {
		if !(sigma[i] > 0) {
			return nil, fmt.Errorf("%w: sigma[%d] = %g", ErrNumerical, i, sigma[i])
		}
	}

	out := make([]float64, r)
	for i := 0; i < r; i++ {
		x := data.At(i, 0)
		var p float64
		for j := 0; j < m.k; j++ {
			p += w[j] / total * normalPDF(x, mu[j], sigma[j])
		}
		out[i] = p
	}
	return out, nil
}

// Size returns 3*K
func (m *Mixture) Size() int { return len(m.params) }

// Bounds returns the parameter box
func (m *Mixture) Bounds() (lower, upper []float64) {
	return m.bounds.Lower, m.bounds.Upper
}

// Params returns a copy of the assigned parameters
func (m *Mixture) Params() []float64 {
	return append([]float64{}, m.params...)
}
