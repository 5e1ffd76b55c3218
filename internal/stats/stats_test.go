package stats

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMean(t *testing.T) {
	assert.Equal(t, 0.0, Mean(nil))
	assert.Equal(t, 2.0, Mean([]float64{1, 2, 3}))
}

func TestStdDevSample(t *testing.T) {
	assert.Equal(t, 0.0, StdDevSample(nil))
	assert.Equal(t, 0.0, StdDevSample([]float64{5}))
	assert.InDelta(t, 1.0, StdDevSample([]float64{1, 2, 3}), 1e-9)
	assert.Equal(t, 0.0, StdDevSample([]float64{4, 4, 4, 4}))
}

func TestStdDevPop(t *testing.T) {
	assert.Equal(t, 0.0, StdDevPop(nil))
	assert.InDelta(t, math.Sqrt(2.0/3.0), StdDevPop([]float64{1, 2, 3}), 1e-9)
}

func TestMinMax(t *testing.T) {
	assert.Equal(t, 0.0, Min(nil))
	assert.Equal(t, 0.0, Max(nil))
	assert.Equal(t, -3.0, Min([]float64{2, -3, 7}))
	assert.Equal(t, 7.0, Max([]float64{2, -3, 7}))
}

func TestRateOfChange(t *testing.T) {
	assert.Equal(t, 0.0, RateOfChange([]float64{5}))
	assert.InDelta(t, 1.0, RateOfChange([]float64{10, 15, 20}), 1e-9)
	// first sample zero must not divide
	assert.Equal(t, 0.0, RateOfChange([]float64{0, 20}))
}

func TestSafeDivide(t *testing.T) {
	assert.Equal(t, 0.0, SafeDivide(10, 0))
	assert.Equal(t, 2.5, SafeDivide(5, 2))
	assert.False(t, math.IsInf(SafeDivide(1, 0), 1))
}

func TestClamp(t *testing.T) {
	assert.Equal(t, 0.0, Clamp(-5, 0, 100))
	assert.Equal(t, 100.0, Clamp(250, 0, 100))
	assert.Equal(t, 42.0, Clamp(42, 0, 100))
}
