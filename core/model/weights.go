package model

import (
	"encoding/binary"
	"encoding/json"
	"math"
	"os"
	"strconv"

	"github.com/cespare/xxhash/v2"

	"github.com/YuminosukeSato/penreg/pkg/errors"
)

// ModelWeights はモデルの重みを表す構造体（シリアライゼーション用）
type ModelWeights struct {
	// ModelType はモデルの種類（ElasticNet 等）
	ModelType string `json:"model_type"`

	// Version は書き出し形式のバージョン
	Version string `json:"version"`

	// Features は係数に対応する特徴量名
	Features []string `json:"features"`

	// Coefficients は元のスケールでの係数
	Coefficients []float64 `json:"coefficients"`

	// Intercept は切片
	Intercept float64 `json:"intercept"`

	// Hyperparameters は学習時のハイパーパラメータ（penalty, mixture）
	Hyperparameters map[string]float64 `json:"hyperparameters"`

	// Checksum は係数と切片の xxhash64（16進）
	Checksum string `json:"checksum"`
}

// NewModelWeights はチェックサム付きの ModelWeights を作成する
func NewModelWeights(modelType string, features []string, coef []float64, intercept float64, hyper map[string]float64) *ModelWeights {
	w := &ModelWeights{
		ModelType:       modelType,
		Version:         "1",
		Features:        append([]string(nil), features...),
		Coefficients:    append([]float64(nil), coef...),
		Intercept:       intercept,
		Hyperparameters: hyper,
	}
	w.Checksum = w.computeChecksum()
	return w
}

// computeChecksum は係数のビット列からハッシュを計算する。
// 浮動小数点のビット単位の再現性を検証できる。
func (mw *ModelWeights) computeChecksum() string {
	d := xxhash.New()
	var buf [8]byte
	for _, c := range mw.Coefficients {
		binary.LittleEndian.PutUint64(buf[:], math.Float64bits(c))
		_, _ = d.Write(buf[:])
	}
	binary.LittleEndian.PutUint64(buf[:], math.Float64bits(mw.Intercept))
	_, _ = d.Write(buf[:])
	return strconv.FormatUint(d.Sum64(), 16)
}

// Validate はModelWeightsの妥当性を検証
func (mw *ModelWeights) Validate() error {
	if mw.ModelType == "" {
		return errors.NewValueError("ModelWeights.Validate", "model_type is required")
	}
	if len(mw.Coefficients) != len(mw.Features) {
		return errors.NewDimensionError("ModelWeights.Validate", len(mw.Features), len(mw.Coefficients), 1)
	}
	if mw.Checksum != mw.computeChecksum() {
		return errors.NewValueError("ModelWeights.Validate", "checksum mismatch: weights may be corrupted")
	}
	return nil
}

// ToJSON はModelWeightsをJSON形式にシリアライズ
func (mw *ModelWeights) ToJSON() ([]byte, error) {
	return json.MarshalIndent(mw, "", "  ")
}

// SaveWeights は重みを JSON ファイルに保存する
func SaveWeights(mw *ModelWeights, filename string) error {
	data, err := mw.ToJSON()
	if err != nil {
		return errors.Wrap(err, "failed to encode weights")
	}
	if err := os.WriteFile(filename, data, 0o644); err != nil {
		return errors.Wrapf(err, "failed to write %s", filename)
	}
	return nil
}

// LoadWeights は JSON ファイルから重みを読み込み、チェックサムを検証する
func LoadWeights(filename string) (*ModelWeights, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read %s", filename)
	}
	var mw ModelWeights
	if err := json.Unmarshal(data, &mw); err != nil {
		return nil, errors.Wrap(err, "failed to decode weights")
	}
	if err := mw.Validate(); err != nil {
		return nil, err
	}
	return &mw, nil
}
