package linear

// Option は ElasticNet の設定を変更する関数
type Option func(*ElasticNet)

// WithMaxIter は座標降下法の最大スイープ回数を設定する
func WithMaxIter(n int) Option {
	return func(en *ElasticNet) {
		en.maxIter = n
	}
}

// WithTol は収束判定の閾値を設定する（帰無偏差に対する相対値）
func WithTol(tol float64) Option {
	return func(en *ElasticNet) {
		en.tol = tol
	}
}

// WithStandardize は内部で説明変数を標準化するかを設定する。
// 係数は常に元のスケールで報告される。
func WithStandardize(standardize bool) Option {
	return func(en *ElasticNet) {
		en.standardize = standardize
	}
}

// WithLeastSquaresPath は penalty = 0 のとき QR 分解による最小二乗を使うかを設定する
func WithLeastSquaresPath(enabled bool) Option {
	return func(en *ElasticNet) {
		en.leastSquares = enabled
	}
}
