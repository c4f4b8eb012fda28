package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/klauspost/compress/gzip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/YuminosukeSato/penreg/core/model"
	"github.com/YuminosukeSato/penreg/pkg/errors"
)

func writeCSV(t *testing.T) string {
	t.Helper()
	var sb strings.Builder
	sb.WriteString("id,x1,x2,y\n")
	for i := 0; i < 40; i++ {
		x1 := float64(i % 13)
		x2 := float64((i * 7) % 5)
		y := 1 + 2*x1 - x2 + 0.2*math.Sin(float64(i))
		fmt.Fprintf(&sb, "%d,%g,%g,%g\n", i, x1, x2, y)
	}
	path := filepath.Join(t.TempDir(), "data.csv")
	require.NoError(t, os.WriteFile(path, []byte(sb.String()), 0o600))
	return path
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func tuneArgs(path string, extra ...string) []string {
	return append([]string{
		"tune", "--data", path, "--target", "y", "--exclude", "id",
		"--folds", "3", "--penalty-max", "1", "--mixture-step", "0.5",
		"--workers", "2", "--log-level", "error",
	}, extra...)
}

func TestTuneCommand_JSON(t *testing.T) {
	out, err := execute(t, tuneArgs(writeCSV(t), "--format", "json")...)
	require.NoError(t, err)

	var rep struct {
		Records  []map[string]any `json:"records"`
		Excluded int              `json:"excluded"`
		Folds    int              `json:"folds"`
		Features []string         `json:"features"`
		Test     struct {
			RMSE float64 `json:"rmse"`
			N    int     `json:"n"`
		} `json:"test"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &rep))
	assert.Len(t, rep.Records, 2*2*3, "2 penalties x 3 mixtures x 2 metrics")
	assert.Equal(t, 3, rep.Folds)
	assert.Equal(t, []string{"x1", "x2"}, rep.Features)
	assert.Equal(t, 12, rep.Test.N)
}

func TestTuneCommand_GzipInput(t *testing.T) {
	raw, err := os.ReadFile(writeCSV(t))
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "data.csv.gz")
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	_, err = zw.Write(raw)
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o600))

	out, err := execute(t, tuneArgs(path, "--format", "json")...)
	require.NoError(t, err, "exit code %d", exitCode(err))
	var rep struct {
		Rows int `json:"rows"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &rep))
	assert.Equal(t, 40, rep.Rows)
}

func TestTuneCommand_TableAndOutputs(t *testing.T) {
	dir := t.TempDir()
	metricsFile := filepath.Join(dir, "penreg.prom")
	out, err := execute(t, tuneArgs(writeCSV(t),
		"--out-dir", dir, "--plot", "--metrics-file", metricsFile, "--top", "2")...)
	require.NoError(t, err)
	assert.Contains(t, out, "excluded_fold_evaluations")
	assert.Contains(t, out, "Variable importance")

	for _, name := range []string{"report.json", "weights.json", "tuning.png"} {
		_, err := os.Stat(filepath.Join(dir, name))
		assert.NoError(t, err, name)
	}
	w, err := model.LoadWeights(filepath.Join(dir, "weights.json"))
	require.NoError(t, err)
	assert.Equal(t, []string{"x1", "x2"}, w.Features)

	prom, err := os.ReadFile(metricsFile)
	require.NoError(t, err)
	assert.Contains(t, string(prom), `penreg_fold_fits_total{status="ok"} 18`)
}

func TestTuneCommand_ConfigFileAndEnv(t *testing.T) {
	path := writeCSV(t)
	cfgPath := filepath.Join(t.TempDir(), "penreg.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte(fmt.Sprintf(`
data:
  path: %s
  target: y
recipe:
  exclude: [id]
tune:
  folds: 4
  penalty: {values: [0, 0.5]}
  mixture: {values: [1]}
output:
  format: json
log:
  level: error
`, path)), 0o600))
	t.Setenv("PENREG_TUNE_FOLDS", "2")

	out, err := execute(t, "tune", "--config", cfgPath)
	require.NoError(t, err)
	var rep struct {
		Records []any `json:"records"`
		Folds   int   `json:"folds"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &rep))
	assert.Len(t, rep.Records, 4)
	assert.Equal(t, 2, rep.Folds, "environment overrides the file")

	// フラグは環境変数より優先される
	out, err = execute(t, "tune", "--config", cfgPath, "--folds", "5")
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal([]byte(out), &rep))
	assert.Equal(t, 5, rep.Folds)
}

func TestTuneCommand_ValidationErrors(t *testing.T) {
	path := writeCSV(t)
	tests := []struct {
		name string
		args []string
		code int
	}{
		{"bad fraction", tuneArgs(path, "--train-fraction", "1.5"), 2},
		{"one fold", tuneArgs(path, "--folds", "1"), 2},
		{"bad format", tuneArgs(path, "--format", "xml"), 2},
		{"unknown target", []string{"tune", "--data", path, "--target", "price", "--log-level", "error"}, 2},
		{"unknown excluded column", tuneArgs(path, "--exclude", "zip"), 2},
		{"missing data", []string{"tune", "--target", "y"}, 2},
		{"comment equals delimiter", tuneArgs(path, "--comment", ","), 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := execute(t, tt.args...)
			require.Error(t, err)
			assert.Equal(t, tt.code, exitCode(err), "%v", err)
		})
	}
}

func TestTuneCommand_MalformedInput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.csv")
	require.NoError(t, os.WriteFile(path, []byte("x,y\n1,2\n3\n"), 0o600))
	_, err := execute(t, "tune", "--data", path, "--target", "y", "--log-level", "error")
	require.Error(t, err)
	assert.True(t, errors.IsDataIntegrity(err))
	assert.Equal(t, 3, exitCode(err))
}

func TestSplitCommand(t *testing.T) {
	out, err := execute(t, "split", "--data", writeCSV(t), "--target", "y", "--seed", "7", "--log-level", "error")
	require.NoError(t, err)
	assert.Contains(t, out, "train        28")
	assert.Contains(t, out, "test         12")
	assert.Contains(t, out, "seed         7")
}

func TestVersionCommand(t *testing.T) {
	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.Equal(t, "penreg dev\n", out)
}

func TestTuneCommand_CloudLogFormat(t *testing.T) {
	cmd := newRootCmd()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	// 後から指定した --log-level が優先される
	cmd.SetArgs(tuneArgs(writeCSV(t), "--log-format", "cloud", "--format", "json", "--log-level", "info"))
	require.NoError(t, cmd.ExecuteContext(context.Background()))

	line, _, _ := strings.Cut(errOut.String(), "\n")
	var entry map[string]any
	require.NoError(t, json.Unmarshal([]byte(line), &entry))
	assert.Equal(t, "INFO", entry["severity"])
	assert.Contains(t, entry, "message")
}
