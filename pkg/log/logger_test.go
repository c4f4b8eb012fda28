package log

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/YuminosukeSato/penreg/pkg/errors"
)

func TestTestLogger(t *testing.T) {
	testLogger, buffer := NewTestLogger(LevelDebug)

	testLogger.Debug("debug message", "key1", "value1", "number", 42)
	testLogger.Info("info message", OperationKey, OperationSearch)
	testLogger.Warn("warning message", ErrorCodeKey, ErrorPointOmitted)
	testLogger.Error("error message", fmt.Errorf("boom"), FoldKey, 3)

	require.NotEmpty(t, buffer.String())
	assert.True(t, testLogger.ContainsMessage("debug message"))
	assert.True(t, testLogger.ContainsField("key1", "value1"))
	assert.True(t, testLogger.ContainsField("number", 42.0))
	assert.True(t, testLogger.ContainsField(ErrAttrKey, "boom"))
	assert.True(t, testLogger.ContainsField(FoldKey, 3.0))
	assert.Equal(t, 1, testLogger.CountLevel(LevelWarn))
}

func TestTestLoggerWithAndLevel(t *testing.T) {
	testLogger, _ := NewTestLogger(LevelInfo)

	ctxLogger := testLogger.With(ComponentKey, "tune", RunIDKey, "run-1")
	ctxLogger.Debug("hidden")
	ctxLogger.Info("visible", PenaltyKey, 2.0, MixtureKey, 0.5)

	assert.False(t, testLogger.ContainsMessage("hidden"))
	assert.True(t, testLogger.ContainsField(ComponentKey, "tune"))
	assert.True(t, testLogger.ContainsField(MixtureKey, 0.5))
	assert.False(t, testLogger.Enabled(context.Background(), LevelDebug))
	assert.True(t, testLogger.Enabled(context.Background(), LevelError))
}

func TestTestLoggerConcurrent(t *testing.T) {
	testLogger, _ := NewTestLogger(LevelInfo)

	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			for j := 0; j < 25; j++ {
				testLogger.Info("unit done", FoldKey, j, "worker", id)
			}
		}(g)
	}
	wg.Wait()

	entries, err := testLogger.GetLogEntries()
	require.NoError(t, err)
	assert.Len(t, entries, 200)
}

func TestZerologLoggerJSON(t *testing.T) {
	var buf bytes.Buffer
	logger := NewZerologLogger(&buf, LevelInfo, "json")

	logger.Debug("skipped")
	logger.With(ComponentKey, "dataset").Info("loaded", SamplesKey, 1338, FeaturesKey, 6)
	logger.Error("split failed", errors.NewValidationError("train_fraction", "must be in (0, 1)", 0.0))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)

	var info map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &info))
	assert.Equal(t, "info", info["level"])
	assert.Equal(t, "loaded", info["message"])
	assert.Equal(t, "dataset", info[ComponentKey])
	assert.Equal(t, 1338.0, info[SamplesKey])

	var errEntry map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(lines[1]), &errEntry))
	assert.Equal(t, "error", errEntry["level"])
	assert.Contains(t, errEntry["error"], "train_fraction")

	assert.False(t, logger.Enabled(context.Background(), LevelDebug))
}

func TestRouteWarningsToZerolog(t *testing.T) {
	var buf bytes.Buffer
	logger := NewZerologLogger(&buf, LevelDebug, "json")
	RouteWarnings(logger)
	defer errors.SetZerologWarnFunc(nil)

	errors.Warn(errors.NewConvergenceWarning("ElasticNet", 50, "max coefficient change 0.3"))

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &entry))
	assert.Equal(t, "warn", entry["level"])
	assert.Equal(t, "ConvergenceWarning", entry["type"])
	assert.Equal(t, "ElasticNet", entry["algorithm"])
	assert.Equal(t, 50.0, entry["iterations"])
}

func TestSlogLoggerAddsStacktrace(t *testing.T) {
	var buf bytes.Buffer
	logger := NewCloudLogger(&buf, "info")

	logger.Error("load failed", errors.NewDataIntegrityError("x.csv", 3, "age", "not a number", nil))

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &entry))
	assert.Equal(t, "ERROR", entry["severity"])
	assert.Equal(t, "load failed", entry["message"])
	assert.Equal(t, "*errors.DataIntegrityError", entry["error.type"])
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want Level
		ok   bool
	}{
		{"debug", LevelDebug, true},
		{"info", LevelInfo, true},
		{"", LevelInfo, true},
		{"warn", LevelWarn, true},
		{"error", LevelError, true},
		{"verbose", LevelInfo, false},
	}
	for _, tt := range tests {
		got, ok := ParseLevel(tt.in)
		if got != tt.want || ok != tt.ok {
			t.Errorf("ParseLevel(%q) = (%v, %v), want (%v, %v)", tt.in, got, ok, tt.want, tt.ok)
		}
	}
}
