package tune

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/YuminosukeSato/penreg/pkg/errors"
)

func TestDefaultGrid(t *testing.T) {
	points, err := DefaultGrid().Points()
	require.NoError(t, err)
	require.Len(t, points, 121)

	assert.Equal(t, Point{0, 0}, points[0])
	assert.Equal(t, Point{0, 0.1}, points[1])
	assert.Equal(t, Point{0, 1}, points[10])
	assert.Equal(t, Point{1, 0}, points[11])
	assert.Equal(t, Point{10, 1}, points[120])

	// 0.1 刻みの累積誤差が残らない
	assert.Equal(t, 0.3, points[3].Mixture)
	assert.Equal(t, 0.7, points[7].Mixture)
}

func TestRange_Generate(t *testing.T) {
	tests := []struct {
		name    string
		r       Range
		want    []float64
		wantErr bool
	}{
		{name: "single value", r: Range{Min: 2, Max: 2, Step: 1}, want: []float64{2}},
		{name: "max not on step", r: Range{Min: 0, Max: 1, Step: 0.4}, want: []float64{0, 0.4, 0.8}},
		{name: "explicit values", r: Range{Values: []float64{0.5, 0.1}}, want: []float64{0.5, 0.1}},
		{name: "zero step", r: Range{Min: 0, Max: 1, Step: 0}, wantErr: true},
		{name: "negative step", r: Range{Min: 0, Max: 1, Step: -1}, wantErr: true},
		{name: "max below min", r: Range{Min: 1, Max: 0, Step: 1}, wantErr: true},
		{name: "NaN value", r: Range{Values: []float64{math.NaN()}}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.r.Generate("penalty")
			if tt.wantErr {
				assert.True(t, errors.IsInvalidConfiguration(err), "got %v", err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestGrid_InvalidValues(t *testing.T) {
	tests := []struct {
		name string
		grid Grid
	}{
		{name: "negative penalty", grid: Grid{Penalty: Range{Values: []float64{-1}}, Mixture: Range{Values: []float64{0}}}},
		{name: "mixture above one", grid: Grid{Penalty: Range{Values: []float64{0}}, Mixture: Range{Min: 0, Max: 1.5, Step: 0.5}}},
		{name: "empty penalty axis", grid: Grid{Penalty: Range{}, Mixture: Range{Values: []float64{0}}}},
		{name: "repeated penalty", grid: Grid{Penalty: Range{Values: []float64{1, 1}}, Mixture: Range{Values: []float64{0}}}},
		{name: "repeated mixture", grid: Grid{Penalty: Range{Values: []float64{0}}, Mixture: Range{Values: []float64{0.5, 1, 0.5}}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.grid.Points()
			assert.True(t, errors.IsInvalidConfiguration(err), "got %v", err)
		})
	}
}
