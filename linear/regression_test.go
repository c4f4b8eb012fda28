package linear

import (
	"math"
	"testing"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/penreg/pkg/errors"
)

func TestLinearRegression_Basic(t *testing.T) {
	// y = 2x + 1
	X := mat.NewDense(4, 1, []float64{1, 2, 3, 4})
	y := mat.NewVecDense(4, []float64{3, 5, 7, 9})

	lr := NewLinearRegression()
	if err := lr.Fit(X, y); err != nil {
		t.Fatalf("Failed to fit: %v", err)
	}
	if math.Abs(lr.Coef()[0]-2) > 1e-9 {
		t.Errorf("Expected coefficient ~2.0, got %f", lr.Coef()[0])
	}
	if math.Abs(lr.Intercept()-1) > 1e-9 {
		t.Errorf("Expected intercept ~1.0, got %f", lr.Intercept())
	}

	pred, err := lr.Predict(mat.NewDense(2, 1, []float64{5, 6}))
	if err != nil {
		t.Fatalf("Failed to predict: %v", err)
	}
	expected := []float64{11, 13}
	for i := 0; i < 2; i++ {
		if math.Abs(pred.AtVec(i)-expected[i]) > 1e-9 {
			t.Errorf("Expected prediction %f, got %f", expected[i], pred.AtVec(i))
		}
	}

	score, err := lr.Score(X, y)
	if err != nil {
		t.Fatal(err)
	}
	if math.Abs(score-1) > 1e-12 {
		t.Errorf("Score = %v, want 1", score)
	}
}

func TestLinearRegression_MultipleFeatures(t *testing.T) {
	// y = 2*x1 + 3*x2 + 1
	X := mat.NewDense(5, 2, []float64{
		1, 1,
		2, 1,
		3, 2,
		4, 2,
		5, 3,
	})
	y := mat.NewVecDense(5, []float64{6, 8, 13, 15, 20})

	lr := NewLinearRegression()
	if err := lr.Fit(X, y); err != nil {
		t.Fatalf("Failed to fit: %v", err)
	}
	want := []float64{2, 3}
	for j, c := range lr.Coef() {
		if math.Abs(c-want[j]) > 1e-9 {
			t.Errorf("coef[%d] = %f, want %f", j, c, want[j])
		}
	}
	if math.Abs(lr.Intercept()-1) > 1e-9 {
		t.Errorf("intercept = %f, want 1", lr.Intercept())
	}
}

func TestLinearRegression_Singular(t *testing.T) {
	tests := []struct {
		name string
		X    *mat.Dense
		y    *mat.VecDense
	}{
		{
			name: "duplicate columns",
			X:    mat.NewDense(4, 2, []float64{1, 1, 2, 2, 3, 3, 4, 4}),
			y:    mat.NewVecDense(4, []float64{1, 2, 3, 4}),
		},
		{
			name: "constant column",
			X:    mat.NewDense(4, 2, []float64{1, 5, 2, 5, 3, 5, 4, 5}),
			y:    mat.NewVecDense(4, []float64{1, 2, 3, 4}),
		},
		{
			name: "more parameters than rows",
			X:    mat.NewDense(2, 2, []float64{1, 2, 3, 5}),
			y:    mat.NewVecDense(2, []float64{1, 2}),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := NewLinearRegression().Fit(tt.X, tt.y)
			if !errors.Is(err, errors.ErrSingularMatrix) {
				t.Errorf("expected ErrSingularMatrix, got %v", err)
			}
		})
	}
}

func TestLinearRegression_NotFitted(t *testing.T) {
	lr := NewLinearRegression()
	if _, err := lr.Predict(mat.NewDense(1, 1, []float64{1})); err == nil {
		t.Error("expected error predicting with unfitted model")
	}
	if lr.Coef() != nil {
		t.Error("unfitted model should have no coefficients")
	}
}
