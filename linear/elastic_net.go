package linear

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/penreg/core/model"
	"github.com/YuminosukeSato/penreg/metrics"
	"github.com/YuminosukeSato/penreg/pkg/errors"
)

const (
	// DefaultMaxIter は座標降下法の既定の最大スイープ回数
	DefaultMaxIter = 10000
	// DefaultTol は既定の収束閾値
	DefaultTol = 1e-7
)

// ElasticNet は L1 と L2 の混合ペナルティ付き線形回帰モデル。
//
// 目的関数は glmnet と同じ
//
//	(1/2n)·Σ(y - β₀ - xβ)² + λ·(α·‖β‖₁ + (1-α)/2·‖β‖₂²)
//
// で、λ が Penalty、α が Mixture に対応する。説明変数は内部で標準化され
// （母標準偏差）、係数は元のスケールで報告される。分散が 0 の列の係数は 0。
type ElasticNet struct {
	state *model.StateManager

	penalty float64
	mixture float64

	maxIter      int
	tol          float64
	standardize  bool
	leastSquares bool

	coef      []float64
	intercept float64
	nIter     int
}

// NewElasticNet は penalty（λ ≥ 0）と mixture（α ∈ [0,1]）を持つモデルを作成する
func NewElasticNet(penalty, mixture float64, opts ...Option) *ElasticNet {
	en := &ElasticNet{
		state:        model.NewStateManager(),
		penalty:      penalty,
		mixture:      mixture,
		maxIter:      DefaultMaxIter,
		tol:          DefaultTol,
		standardize:  true,
		leastSquares: true,
	}
	for _, opt := range opts {
		opt(en)
	}
	return en
}

// Factory は同じオプションを共有する ElasticNet の生成関数を返す
func Factory(opts ...Option) model.RegressorFactory {
	return func(penalty, mixture float64) model.Regressor {
		return NewElasticNet(penalty, mixture, opts...)
	}
}

// Penalty は正則化の強さ λ を返す
func (en *ElasticNet) Penalty() float64 { return en.penalty }

// Mixture は L1 の割合 α を返す
func (en *ElasticNet) Mixture() float64 { return en.mixture }

// NIter は直近の Fit で実行したスイープ回数を返す（QR 経路では 0）
func (en *ElasticNet) NIter() int { return en.nIter }

func (en *ElasticNet) validate() error {
	if math.IsNaN(en.penalty) || math.IsInf(en.penalty, 0) || en.penalty < 0 {
		return errors.NewValidationError("penalty", "must be a finite non-negative number", en.penalty)
	}
	if math.IsNaN(en.mixture) || en.mixture < 0 || en.mixture > 1 {
		return errors.NewValidationError("mixture", "must be within [0, 1]", en.mixture)
	}
	if en.maxIter < 1 {
		return errors.NewValidationError("max_iter", "must be at least 1", en.maxIter)
	}
	if !(en.tol > 0) {
		return errors.NewValidationError("tol", "must be positive", en.tol)
	}
	return nil
}

// Fit はモデルを学習する。収束しない場合は *errors.ConvergenceWarning を返し、
// モデルは未学習のままになる。
func (en *ElasticNet) Fit(X mat.Matrix, y mat.Vector) error {
	en.state.Reset()
	en.coef, en.intercept, en.nIter = nil, 0, 0

	if err := en.validate(); err != nil {
		return err
	}
	n, p := X.Dims()
	if n == 0 || p == 0 {
		return errors.NewModelError("ElasticNet.Fit", "empty data", errors.ErrEmptyData)
	}
	if y.Len() != n {
		return errors.NewDimensionError("ElasticNet.Fit", n, y.Len(), 0)
	}

	if en.penalty == 0 && en.leastSquares {
		ols := NewLinearRegression()
		err := ols.Fit(X, y)
		switch {
		case err == nil:
			en.coef = ols.Coef()
			en.intercept = ols.Intercept()
			en.state.SetFitted(p, n)
			return nil
		case !errors.Is(err, errors.ErrSingularMatrix):
			return err
		}
		// ランク落ちは座標降下法で解く
	}

	return en.fitCoordinateDescent(X, y, n, p)
}

// fitCoordinateDescent は標準化した列に対して巡回座標降下法を実行する
func (en *ElasticNet) fitCoordinateDescent(X mat.Matrix, y mat.Vector, n, p int) error {
	nf := float64(n)

	// 列ごとの連続スライスに詰め替える
	cols := make([][]float64, p)
	means := make([]float64, p)
	scales := make([]float64, p)
	active := make([]bool, p)
	for j := 0; j < p; j++ {
		col := mat.Col(nil, j, X)
		m := floats.Sum(col) / nf
		floats.AddConst(-m, col)
		sd := math.Sqrt(floats.Dot(col, col) / nf)
		means[j] = m
		scales[j] = 1
		if sd > 0 {
			active[j] = true
			if en.standardize {
				floats.Scale(1/sd, col)
				scales[j] = sd
			}
		}
		cols[j] = col
	}
	// xv_j = (1/n)Σx²。標準化時は 1
	xv := make([]float64, p)
	for j := 0; j < p; j++ {
		xv[j] = floats.Dot(cols[j], cols[j]) / nf
	}

	yMean := 0.0
	resid := make([]float64, n)
	for i := 0; i < n; i++ {
		resid[i] = y.AtVec(i)
		yMean += resid[i]
	}
	yMean /= nf
	floats.AddConst(-yMean, resid)
	nullDev := floats.Dot(resid, resid) / nf

	beta := make([]float64, p)
	l1 := en.penalty * en.mixture
	l2 := en.penalty * (1 - en.mixture)
	thr := en.tol * nullDev

	converged := nullDev == 0
	iter := 0
	for !converged && iter < en.maxIter {
		iter++
		maxChange := 0.0
		for j := 0; j < p; j++ {
			if !active[j] {
				continue
			}
			old := beta[j]
			rho := floats.Dot(cols[j], resid)/nf + xv[j]*old
			updated := softThreshold(rho, l1) / (xv[j] + l2)
			if updated == old {
				continue
			}
			floats.AddScaled(resid, old-updated, cols[j])
			beta[j] = updated
			d := updated - old
			if change := xv[j] * d * d; change > maxChange {
				maxChange = change
			}
		}
		if maxChange < thr {
			converged = true
		}
	}
	en.nIter = iter

	if !converged {
		return errors.WithStack(errors.NewConvergenceWarning("ElasticNet", iter,
			fmt.Sprintf("coordinate descent did not converge (penalty=%g, mixture=%g)", en.penalty, en.mixture)))
	}
	if err := errors.CheckNumericalStability("ElasticNet.Fit", beta, iter); err != nil {
		return err
	}

	// 元のスケールに戻す
	en.coef = make([]float64, p)
	en.intercept = yMean
	for j := 0; j < p; j++ {
		if !active[j] {
			continue
		}
		en.coef[j] = beta[j] / scales[j]
		en.intercept -= en.coef[j] * means[j]
	}

	en.state.SetFitted(p, n)
	return nil
}

// softThreshold は S(z, γ) = sign(z)·max(|z| - γ, 0)
func softThreshold(z, gamma float64) float64 {
	switch {
	case z > gamma:
		return z - gamma
	case z < -gamma:
		return z + gamma
	default:
		return 0
	}
}

// Predict は入力データに対する予測を行う
func (en *ElasticNet) Predict(X mat.Matrix) (*mat.VecDense, error) {
	if err := en.state.RequireFitted("ElasticNet", "Predict"); err != nil {
		return nil, err
	}
	return predictLinear("ElasticNet.Predict", X, mat.NewVecDense(len(en.coef), en.coef), en.intercept)
}

// Coef は元のスケールでの係数のコピーを返す
func (en *ElasticNet) Coef() []float64 {
	return append([]float64(nil), en.coef...)
}

// Intercept は切片を返す
func (en *ElasticNet) Intercept() float64 {
	return en.intercept
}

// IsFitted は学習済みかどうかを返す
func (en *ElasticNet) IsFitted() bool {
	return en.state.IsFitted()
}

// Score は決定係数（R²）を計算する
func (en *ElasticNet) Score(X mat.Matrix, y mat.Vector) (float64, error) {
	yPred, err := en.Predict(X)
	if err != nil {
		return 0, err
	}
	return metrics.R2Score(y, yPred)
}

// ExportWeights は特徴量名付きの重みを書き出し用の形式に変換する
func (en *ElasticNet) ExportWeights(features []string) (*model.ModelWeights, error) {
	if err := en.state.RequireFitted("ElasticNet", "ExportWeights"); err != nil {
		return nil, err
	}
	if len(features) != len(en.coef) {
		return nil, errors.NewDimensionError("ElasticNet.ExportWeights", len(en.coef), len(features), 0)
	}
	return model.NewModelWeights("ElasticNet", features, en.coef, en.intercept, map[string]float64{
		"penalty": en.penalty,
		"mixture": en.mixture,
	}), nil
}
