package fit

import (
	"errors"
	"math"
	"strings"
	"testing"

	"gonum.org/v1/gonum/mat"
)

func TestGaussianEvaluate(t *testing.T) {
	g, err := NewGaussian(1, &Bounds{Lower: []float64{-5, 0.1}, Upper: []float64{5, 5}})
	if err != nil {
		t.Fatalf("NewGaussian failed: %v", err)
	}
	if g.Size() != 2 {
		t.Fatalf("Expected size 2, got %d", g.Size())
	}
	if err := g.Assign([]float64{0, 1}); err != nil {
		t.Fatalf("Assign failed: %v", err)
	}

	l, err := g.Evaluate(mat.NewDense(2, 1, []float64{0, 1}))
	if err != nil {
		t.Fatalf("Evaluate failed: %v", err)
	}
	if math.Abs(l[0]-1/math.Sqrt(2*math.Pi)) > 1e-12 {
		t.Errorf("Density at mean = %f", l[0])
	}
	if math.Abs(l[1]-math.Exp(-0.5)/math.Sqrt(2*math.Pi)) > 1e-12 {
		t.Errorf("Density at 1 sigma = %f", l[1])
	}
}

func TestGaussianErrors(t *testing.T) {
	g, err := NewGaussian(2, &Bounds{Lower: []float64{0, 0, 0, 0}, Upper: []float64{1, 1, 1, 1}})
	if err != nil {
		t.Fatalf("NewGaussian failed: %v", err)
	}

	if err := g.Assign([]float64{1}); err == nil {
		t.Error("Expected error for wrong parameter count")
	}

	g.Assign([]float64{0, 0, 1, 0})
	_, err = g.Evaluate(mat.NewDense(1, 2, []float64{0, 0}))
	if !errors.Is(err, ErrNumerical) {
		t.Errorf("Zero sigma should be numerical, got %v", err)
	}

	g.Assign([]float64{0, 0, 1, 1})
	_, err = g.Evaluate(mat.NewDense(1, 3, []float64{0, 0, 0}))
	if err == nil || errors.Is(err, ErrNumerical) {
		t.Errorf("Column mismatch should be structural, got %v", err)
	}
}

func TestGaussianBoundsFromData(t *testing.T) {
	data := mat.NewDense(3, 2, []float64{
		1, 10,
		2, 30,
		4, 20,
	})
	b := GaussianBoundsFromData(data)

	if err := b.Validate(4); err != nil {
		t.Fatalf("Derived bounds invalid: %v", err)
	}
	if b.Lower[0] != 1 || b.Upper[0] != 4 {
		t.Errorf("Mean bounds for column 0: [%f, %f]", b.Lower[0], b.Upper[0])
	}
	if b.Upper[3] != 20 {
		t.Errorf("Sigma upper bound for column 1 = %f, want 20", b.Upper[3])
	}
}

func TestMixtureEvaluate(t *testing.T) {
	m, err := NewMixture(2, -5, 5)
	if err != nil {
		t.Fatalf("NewMixture failed: %v", err)
	}
	// Equal weights, identical components: same density as a single Gaussian
	m.Assign([]float64{0.3, 0.3, 0, 0, 1, 1})

	l, err := m.Evaluate(mat.NewDense(1, 1, []float64{0}))
	if err != nil {
		t.Fatalf("Evaluate failed: %v", err)
	}
	if math.Abs(l[0]-1/math.Sqrt(2*math.Pi)) > 1e-12 {
		t.Errorf("Unexpected mixture density %f", l[0])
	}

	m.Assign([]float64{0, 0, 0, 0, 1, 1})
	if _, err := m.Evaluate(mat.NewDense(1, 1, []float64{0})); !errors.Is(err, ErrNumerical) {
		t.Errorf("Zero weights should be numerical, got %v", err)
	}
}

func TestLoadCSV(t *testing.T) {
	input := "x,y\n1,2\n3, 4\n\n5,6\n"

	data, err := LoadCSV(strings.NewReader(input))
	if err != nil {
		t.Fatalf("LoadCSV failed: %v", err)
	}
	r, c := data.Dims()
	if r != 3 || c != 2 {
		t.Fatalf("Expected 3x2, got %dx%d", r, c)
	}
	if data.At(1, 1) != 4 {
		t.Errorf("Expected 4 at (1,1), got %f", data.At(1, 1))
	}
}

func TestLoadCSVErrors(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"empty", ""},
		{"header only", "a,b\n"},
		{"ragged", "1,2\n3\n"},
		{"bad number", "1,2\n3,x\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := LoadCSV(strings.NewReader(tt.input)); err == nil {
				t.Error("Expected error")
			}
		})
	}
}
