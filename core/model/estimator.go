package model

import "gonum.org/v1/gonum/mat"

// Fitter は学習可能な回帰モデルのインターフェース
type Fitter interface {
	// Fit はモデルを訓練データで学習させる。y は X の行数と同じ長さのベクトル
	Fit(X mat.Matrix, y mat.Vector) error
}

// Predictor は予測可能なモデルのインターフェース
type Predictor interface {
	// Predict は入力データに対する予測を行う
	Predict(X mat.Matrix) (*mat.VecDense, error)
}

// LinearModel は線形モデルのインターフェース
type LinearModel interface {
	// Coef は学習された係数を元のスケールで返す
	Coef() []float64
	// Intercept は学習された切片を返す
	Intercept() float64
}

// Regressor はチューニングと最終学習で使われる回帰モデル
type Regressor interface {
	Fitter
	Predictor
	LinearModel
}

// RegressorFactory は (penalty, mixture) から未学習のモデルを作る。
// クロスバリデーションの各ユニットは自分専用のインスタンスを持つ。
type RegressorFactory func(penalty, mixture float64) Regressor
