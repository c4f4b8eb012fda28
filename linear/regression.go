package linear

import (
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/penreg/core/model"
	"github.com/YuminosukeSato/penreg/core/parallel"
	"github.com/YuminosukeSato/penreg/metrics"
	"github.com/YuminosukeSato/penreg/pkg/errors"
)

// rankTol は R の対角成分をランク落ちとみなす相対閾値
const rankTol = 1e-10

// LinearRegression は切片付きの最小二乗線形回帰モデル
type LinearRegression struct {
	state     *model.StateManager
	weights   *mat.VecDense // 重み（係数）
	intercept float64       // 切片
}

// NewLinearRegression は新しい線形回帰モデルを作成する
func NewLinearRegression() *LinearRegression {
	return &LinearRegression{state: model.NewStateManager()}
}

// Fit はモデルを訓練データで学習させる。
// 正規方程式ではなく [1, X] の QR 分解で解く。計画行列がランク落ちしている場合は
// ErrSingularMatrix を返す。
func (lr *LinearRegression) Fit(X mat.Matrix, y mat.Vector) error {
	r, c := X.Dims()
	if r == 0 || c == 0 {
		return errors.NewModelError("LinearRegression.Fit", "empty data", errors.ErrEmptyData)
	}
	if y.Len() != r {
		return errors.NewDimensionError("LinearRegression.Fit", r, y.Len(), 0)
	}
	if r < c+1 {
		return errors.NewModelError("LinearRegression.Fit", "fewer samples than parameters", errors.ErrSingularMatrix)
	}

	// 切片項のために X に 1 の列を追加
	// X_with_intercept = [1, X]
	XWithIntercept := mat.NewDense(r, c+1, nil)

	// 並列処理の閾値（この値以下の行数では逐次処理を使用）
	const parallelThreshold = 1000

	parallel.ParallelizeWithThreshold(r, parallelThreshold, func(start, end int) {
		for i := start; i < end; i++ {
			XWithIntercept.Set(i, 0, 1.0)
			for j := 0; j < c; j++ {
				XWithIntercept.Set(i, j+1, X.At(i, j))
			}
		}
	})

	var qr mat.QR
	qr.Factorize(XWithIntercept)

	var R mat.Dense
	qr.RTo(&R)
	var maxDiag float64
	for j := 0; j <= c; j++ {
		maxDiag = math.Max(maxDiag, math.Abs(R.At(j, j)))
	}
	for j := 0; j <= c; j++ {
		if math.Abs(R.At(j, j)) <= rankTol*maxDiag {
			return errors.NewModelError("LinearRegression.Fit", "rank deficient design", errors.ErrSingularMatrix)
		}
	}

	weights := mat.NewVecDense(c+1, nil)
	if err := qr.SolveVecTo(weights, false, y); err != nil {
		return errors.NewModelError("LinearRegression.Fit", "ill-conditioned design", errors.ErrSingularMatrix)
	}
	if err := errors.CheckNumericalStability("LinearRegression.Fit", weights.RawVector().Data, 0); err != nil {
		return err
	}

	// 切片と重みを分離
	lr.intercept = weights.AtVec(0)
	lr.weights = mat.NewVecDense(c, nil)
	lr.weights.CopyVec(weights.SliceVec(1, c+1))

	lr.state.SetFitted(c, r)
	return nil
}

// Predict は入力データに対する予測を行う
func (lr *LinearRegression) Predict(X mat.Matrix) (*mat.VecDense, error) {
	if err := lr.state.RequireFitted("LinearRegression", "Predict"); err != nil {
		return nil, err
	}
	return predictLinear("LinearRegression.Predict", X, lr.weights, lr.intercept)
}

// Coef は学習された係数を返す
func (lr *LinearRegression) Coef() []float64 {
	if lr.weights == nil {
		return nil
	}
	return mat.Col(nil, 0, lr.weights)
}

// Intercept は学習された切片を返す
func (lr *LinearRegression) Intercept() float64 {
	return lr.intercept
}

// Score はモデルの決定係数（R²）を計算する
func (lr *LinearRegression) Score(X mat.Matrix, y mat.Vector) (float64, error) {
	yPred, err := lr.Predict(X)
	if err != nil {
		return 0, err
	}
	return metrics.R2Score(y, yPred)
}

// predictLinear は y = X * weights + intercept を計算する
func predictLinear(op string, X mat.Matrix, weights *mat.VecDense, intercept float64) (*mat.VecDense, error) {
	r, c := X.Dims()
	if c != weights.Len() {
		return nil, errors.NewDimensionError(op, weights.Len(), c, 1)
	}
	if r == 0 {
		return nil, errors.NewModelError(op, "empty data", errors.ErrEmptyData)
	}
	pred := mat.NewVecDense(r, nil)
	pred.MulVec(X, weights)
	for i := 0; i < r; i++ {
		pred.SetVec(i, pred.AtVec(i)+intercept)
	}
	return pred, nil
}
