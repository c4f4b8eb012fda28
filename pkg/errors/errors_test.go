package errors

import (
	"fmt"
	"strings"
	"sync"
	"testing"
)

func TestNewModelError(t *testing.T) {
	tests := []struct {
		name    string
		op      string
		kind    string
		err     error
		wantMsg string
	}{
		{
			name:    "with original error",
			op:      "Fit",
			kind:    "invalid input",
			err:     fmt.Errorf("test error"),
			wantMsg: "penreg: Fit: invalid input: test error",
		},
		{
			name:    "without original error",
			op:      "Predict",
			kind:    "not fitted",
			wantMsg: "penreg: Predict: not fitted",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := NewModelError(tt.op, tt.kind, tt.err)

			if err.Error() != tt.wantMsg {
				t.Errorf("Error() = %v, want %v", err.Error(), tt.wantMsg)
			}

			// スタックトレースの存在確認
			formatted := fmt.Sprintf("%+v", err)
			if !strings.Contains(formatted, "errors_test.go") {
				t.Error("Expected stack trace to contain test file name")
			}

			var modelErr *ModelError
			if !As(err, &modelErr) {
				t.Error("Error should be castable to *ModelError")
			}
		})
	}
}

func TestTaxonomy(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		check   func(error) bool
		wantMsg string
	}{
		{
			name:    "invalid configuration",
			err:     NewValidationError("train_fraction", "must be in (0, 1)", 1.5),
			check:   IsInvalidConfiguration,
			wantMsg: "penreg: invalid configuration for parameter 'train_fraction': must be in (0, 1) (got: 1.5)",
		},
		{
			name:    "unknown column",
			err:     NewUnknownColumnError("Recipe.Fit", "region", []string{"age", "bmi"}),
			check:   IsUnknownColumn,
			wantMsg: `penreg: Recipe.Fit: unknown column "region" (available: age, bmi)`,
		},
		{
			name:    "data integrity with row and column",
			err:     NewDataIntegrityError("insurance.csv", 7, "bmi", "not a number", nil),
			check:   IsDataIntegrity,
			wantMsg: `penreg: malformed data in insurance.csv at row 7, column "bmi": not a number`,
		},
		{
			name:    "data integrity without location",
			err:     NewDataIntegrityError("insurance.csv", 0, "", "empty file", nil),
			check:   IsDataIntegrity,
			wantMsg: "penreg: malformed data in insurance.csv: empty file",
		},
		{
			name:    "non-convergence wrapped",
			err:     Wrap(NewConvergenceWarning("ElasticNet", 100, "max change 0.1"), "fold 3"),
			check:   IsNonConvergence,
			wantMsg: "fold 3: ElasticNet failed to converge after 100 iterations: max change 0.1",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if !tt.check(tt.err) {
				t.Errorf("classification failed for %v", tt.err)
			}
			if tt.err.Error() != tt.wantMsg {
				t.Errorf("Error() = %q, want %q", tt.err.Error(), tt.wantMsg)
			}
		})
	}

	// 分類が排他的であることの確認
	if IsUnknownColumn(NewValidationError("folds", "must be >= 2", 1)) {
		t.Error("ValidationError must not classify as UnknownColumn")
	}
	if IsInvalidConfiguration(NewUnknownColumnError("op", "x", nil)) {
		t.Error("UnknownColumnError must not classify as InvalidConfiguration")
	}
}

func TestNewDimensionError(t *testing.T) {
	err := NewDimensionError("Predict", 10, 9, 1)

	want := "penreg: Predict: dimension mismatch on axis 1 (features). Expected 10, got 9"
	if err.Error() != want {
		t.Errorf("Error() = %v, want %v", err.Error(), want)
	}

	var dimErr *DimensionError
	if !As(err, &dimErr) {
		t.Error("Error should be castable to *DimensionError")
	}
}

func TestNewNotFittedError(t *testing.T) {
	err := NewNotFittedError("ElasticNet", "Predict")

	want := "penreg: ElasticNet: this model is not fitted yet. Call Fit() before using Predict()"
	if err.Error() != want {
		t.Errorf("Error() = %v, want %v", err.Error(), want)
	}
}

func TestWrapAndIs(t *testing.T) {
	wrapped := Wrapf(ErrInvalidState, "Search called in state %s", "NEW")

	if !Is(wrapped, ErrInvalidState) {
		t.Error("Expected Is(wrapped, ErrInvalidState) to be true")
	}
	if !strings.Contains(wrapped.Error(), "Search called in state NEW") {
		t.Error("Expected wrapped error to contain wrapping message")
	}
	if !IsInvalidConfiguration(wrapped) {
		t.Error("Expected a state error to count as invalid configuration")
	}
}

func TestWarnRouting(t *testing.T) {
	var mu sync.Mutex
	var got []error

	SetZerologWarnFunc(func(w error) {
		mu.Lock()
		defer mu.Unlock()
		got = append(got, w)
	})
	defer SetZerologWarnFunc(nil)

	Warn(NewUndefinedMetricWarning("rsq", "zero variance in held-out targets"))

	if len(got) != 1 {
		t.Fatalf("expected 1 routed warning, got %d", len(got))
	}
	want := "'rsq' is ill-defined due to zero variance in held-out targets; the value is treated as missing."
	if got[0].Error() != want {
		t.Errorf("warning = %q, want %q", got[0].Error(), want)
	}
}

func TestWarnFallsBackToHandler(t *testing.T) {
	var got []string
	SetWarningHandler(func(w error) { got = append(got, w.Error()) })
	defer SetWarningHandler(func(w error) {})

	// zerolog が未設定なら従来のハンドラを使う
	SetZerologWarnFunc(nil)
	Warn(NewConvergenceWarning("ElasticNet", 3, "max change 0.5"))
	if len(got) != 1 || !strings.Contains(got[0], "ElasticNet") {
		t.Fatalf("handler received %v", got)
	}

	// zerolog が設定されていればそちらが優先される
	routed := 0
	SetZerologWarnFunc(func(error) { routed++ })
	defer SetZerologWarnFunc(nil)
	Warn(NewConvergenceWarning("ElasticNet", 3, "max change 0.5"))
	if routed != 1 || len(got) != 1 {
		t.Errorf("routed=%d handler calls=%d", routed, len(got))
	}
}
