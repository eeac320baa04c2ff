package fit

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

const minSigma = 1e-3

var invSqrt2Pi = 1 / math.Sqrt(2*math.Pi)

func normalPDF(x, mu, sigma float64) float64 {
	z := (x - mu) / sigma
	return invSqrt2Pi / sigma * math.Exp(-0.5*z*z)
}

// Gaussian is a diagonal multivariate normal density.
// Parameters are laid out as [mu_1..mu_d, sigma_1..sigma_d].
type Gaussian struct {
	dim    int
	params []float64
	bounds *Bounds
}

// NewGaussian creates a d-dimensional Gaussian with the given parameter box
func NewGaussian(dim int, bounds *Bounds) (*Gaussian, error) {
	if dim <= 0 {
		return nil, fmt.Errorf("gaussian dimension must be positive, got %d", dim)
	}
	if err := bounds.Validate(2 * dim); err != nil {
		return nil, fmt.Errorf("gaussian bounds: %w", err)
	}
	return &Gaussian{
		dim:    dim,
		params: make([]float64, 2*dim),
		bounds: bounds,
	}, nil
}

// GaussianBoundsFromData derives a parameter box from the column ranges of data:
// means within [min, max] of each column, sigmas within [1e-3, max-min].
func GaussianBoundsFromData(data *mat.Dense) *Bounds {
	_, c := data.Dims()
	lower := make([]float64, 2*c)
	upper := make([]float64, 2*c)
	for j := 0; j < c; j++ {
		col := mat.Col(nil, j, data)
		lo, hi := floats.Min(col), floats.Max(col)
		lower[j], upper[j] = lo, hi
		lower[c+j] = minSigma
		upper[c+j] = math.Max(hi-lo, minSigma)
	}
	return &Bounds{Lower: lower, Upper: upper}
}

// Assign sets [mu..., sigma...]
func (g *Gaussian) Assign(params []float64) error {
	if len(params) != len(g.params) {
		return fmt.Errorf("gaussian expects %d parameters, got %d", len(g.params), len(params))
	}
	copy(g.params, params)
	return nil
}

// Evaluate returns the density of every row of data
func (g *Gaussian) Evaluate(data *mat.Dense) ([]float64, error) {
	r, c := data.Dims()
	if c != g.dim {
		return nil, fmt.Errorf("gaussian expects %d features, data has %d", g.dim, c)
	}
	mu, sigma := g.params[:g.dim], g.params[g.dim:]
	for j, s := range sigma {
		if !(s > 0) || math.IsInf(s, 1) {
			return nil, fmt.Errorf("%w: sigma[%d] = %g", ErrNumerical, j, s)
		}
	}

	out := make([]float64, r)
	for i := 0; i < r; i++ {
		p := 1.0
		for j := 0; j < c; j++ {
			p *= normalPDF(data.At(i, j), mu[j], sigma[j])
		}
		out[i] = p
	}
	return out, nil
}

// Size returns 2*dim
func (g *Gaussian) Size() int { return len(g.params) }

// Bounds returns the parameter box
func (g *Gaussian) Bounds() (lower, upper []float64) {
	return g.bounds.Lower, g.bounds.Upper
}

// Params returns a copy of the assigned parameters
func (g *Gaussian) Params() []float64 {
	return append([]float64{}, g.params...)
}
