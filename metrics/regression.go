// Package metrics は回帰モデルの評価指標と、フォールド間の集約を提供する。
package metrics

import (
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/YuminosukeSato/penreg/pkg/errors"
)

// residuals は yTrue - yPred を返す。長さの検証もここで行う
func residuals(op string, yTrue, yPred mat.Vector) (*mat.VecDense, error) {
	n := yTrue.Len()
	if n == 0 {
		return nil, errors.NewValueError(op, "empty vector")
	}
	if yPred.Len() != n {
		return nil, errors.NewDimensionError(op, n, yPred.Len(), 0)
	}
	diff := mat.NewVecDense(n, nil)
	diff.SubVec(yTrue, yPred)
	return diff, nil
}

// SSE は残差平方和（Sum of Squared Errors）を計算する
func SSE(yTrue, yPred mat.Vector) (float64, error) {
	diff, err := residuals("SSE", yTrue, yPred)
	if err != nil {
		return 0, err
	}
	return mat.Dot(diff, diff), nil
}

// MSE は平均二乗誤差（Mean Squared Error）を計算する
func MSE(yTrue, yPred mat.Vector) (float64, error) {
	diff, err := residuals("MSE", yTrue, yPred)
	if err != nil {
		return 0, err
	}
	// MSE = (1/n) * Σ(yTrue - yPred)²
	return mat.Dot(diff, diff) / float64(diff.Len()), nil
}

// RMSE は平方根平均二乗誤差（Root Mean Squared Error）を計算する
func RMSE(yTrue, yPred mat.Vector) (float64, error) {
	mse, err := MSE(yTrue, yPred)
	if err != nil {
		return 0, err
	}
	return math.Sqrt(mse), nil
}

// MAE は平均絶対誤差（Mean Absolute Error）を計算する
func MAE(yTrue, yPred mat.Vector) (float64, error) {
	diff, err := residuals("MAE", yTrue, yPred)
	if err != nil {
		return 0, err
	}
	return mat.Norm(diff, 1) / float64(diff.Len()), nil
}

// R2Score は決定係数（R²）を計算する。
// yTrue に分散がない場合は UndefinedMetricWarning を含むエラーを返し、
// 値を 0 で代用することはしない。
func R2Score(yTrue, yPred mat.Vector) (float64, error) {
	diff, err := residuals("R2Score", yTrue, yPred)
	if err != nil {
		return 0, err
	}
	n := yTrue.Len()

	var yMean float64
	for i := 0; i < n; i++ {
		yMean += yTrue.AtVec(i)
	}
	yMean /= float64(n)

	var tss float64
	for i := 0; i < n; i++ {
		d := yTrue.AtVec(i) - yMean
		tss += d * d
	}
	if tss == 0 {
		return 0, errors.WithStack(errors.NewUndefinedMetricWarning("rsq", "zero variance in observed values"))
	}

	// R² = 1 - RSS/TSS
	return 1 - mat.Dot(diff, diff)/tss, nil
}

// MeanStdErr はフォールドごとの値の平均と標準誤差（標本標準偏差 / √n）を返す。
// 値が1つの場合の標準誤差は 0、空の場合は NaN を返す。
func MeanStdErr(values []float64) (mean, stdErr float64) {
	switch len(values) {
	case 0:
		return math.NaN(), math.NaN()
	case 1:
		return values[0], 0
	}
	mean, std := stat.MeanStdDev(values, nil)
	return mean, std / math.Sqrt(float64(len(values)))
}
