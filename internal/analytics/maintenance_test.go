package analytics

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"smartcity/internal/config"
	"smartcity/internal/models"
	"smartcity/internal/telemetry"
)

func newPredictor(repo telemetry.Repository) *MaintenancePredictor {
	return NewMaintenancePredictor(repo, config.DefaultThresholds(), zap.NewNop())
}

func TestMaintenanceLightingRiskFactors(t *testing.T) {
	repo := telemetry.NewMemoryRepository()
	repo.AddDevice(models.Device{DeviceID: "L1", Fleet: models.FleetLighting})
	for i := 0; i < 20; i++ {
		voltage := 200.0
		state := 0
		if i%2 == 0 {
			voltage = 230.0
			state = 1
		}
		repo.AddReadings(models.FleetLighting, models.Reading{
			DeviceID: "L1", Timestamp: int64(i),
			Voltage: voltage, Current: 2.0, State: state, OperatingHours: 50000,
		})
	}

	predictions, err := newPredictor(repo).Predict(context.Background(), models.FleetLighting, testWindow, 70)
	require.NoError(t, err)
	require.Len(t, predictions, 1)

	// 25 (voltage instability) + 20 (current out of range) +
	// 20 (uptime 50%) + 25 (past lifetime hours)
	assert.InDelta(t, 90, predictions[0].RiskScore, 0.01)
	// above the steep cutoff: (100-90) * 0.8
	assert.InDelta(t, 8, predictions[0].PredictedFailureDays, 0.01)
}

func TestMaintenanceGasLeaksWeighHeavierThanWater(t *testing.T) {
	build := func(fleet models.Fleet) *telemetry.MemoryRepository {
		repo := telemetry.NewMemoryRepository()
		repo.AddDevice(models.Device{DeviceID: "M1", Fleet: fleet})
		pressure := 3.0
		if fleet == models.FleetGas {
			pressure = 0.7
		}
		for i := 0; i < 10; i++ {
			repo.AddReadings(fleet, models.Reading{
				DeviceID: "M1", Timestamp: int64(i),
				FlowRate: 1.0, Pressure: pressure, Battery: 90,
				LeakDetected: i < 3,
			})
		}
		return repo
	}

	waterPred, err := newPredictor(build(models.FleetWater)).Predict(context.Background(), models.FleetWater, testWindow, 0)
	require.NoError(t, err)
	gasPred, err := newPredictor(build(models.FleetGas)).Predict(context.Background(), models.FleetGas, testWindow, 0)
	require.NoError(t, err)

	require.Len(t, waterPred, 1)
	require.Len(t, gasPred, 1)
	assert.Greater(t, gasPred[0].RiskScore, waterPred[0].RiskScore)
}

func TestMaintenanceThresholdFilterAndOrder(t *testing.T) {
	repo := telemetry.NewMemoryRepository()
	repo.AddDevice(models.Device{DeviceID: "W-HIGH", Fleet: models.FleetWater})
	repo.AddDevice(models.Device{DeviceID: "W-MID", Fleet: models.FleetWater})
	repo.AddDevice(models.Device{DeviceID: "W-LOW", Fleet: models.FleetWater})
	for i := 0; i < 10; i++ {
		// high: leaks, low battery, bad pressure
		repo.AddReadings(models.FleetWater, models.Reading{
			DeviceID: "W-HIGH", Timestamp: int64(i),
			FlowRate: 1, Pressure: 1.0, Battery: 10, LeakDetected: i < 5,
		})
		// mid: bad pressure only
		repo.AddReadings(models.FleetWater, models.Reading{
			DeviceID: "W-MID", Timestamp: int64(i),
			FlowRate: 1, Pressure: 1.0, Battery: 90,
		})
		// low: healthy
		repo.AddReadings(models.FleetWater, models.Reading{
			DeviceID: "W-LOW", Timestamp: int64(i),
			FlowRate: 1, Pressure: 3.0, Battery: 90,
		})
	}

	predictions, err := newPredictor(repo).Predict(context.Background(), models.FleetWater, testWindow, 20)
	require.NoError(t, err)
	require.Len(t, predictions, 2)
	assert.Equal(t, "W-HIGH", predictions[0].DeviceID)
	assert.Equal(t, "W-MID", predictions[1].DeviceID)
	assert.GreaterOrEqual(t, predictions[0].RiskScore, predictions[1].RiskScore)
}

func TestRiskScoreAlwaysInRange(t *testing.T) {
	repo := telemetry.NewMemoryRepository()
	repo.AddDevice(models.Device{DeviceID: "G1", Fleet: models.FleetGas})
	for i := 0; i < 30; i++ {
		repo.AddReadings(models.FleetGas, models.Reading{
			DeviceID: "G1", Timestamp: int64(i),
			FlowRate: float64(i * i), Pressure: 99, Battery: 1, LeakDetected: true,
		})
	}

	predictions, err := newPredictor(repo).Predict(context.Background(), models.FleetGas, testWindow, 0)
	require.NoError(t, err)
	require.Len(t, predictions, 1)
	assert.LessOrEqual(t, predictions[0].RiskScore, 100.0)
	assert.GreaterOrEqual(t, predictions[0].RiskScore, 0.0)
	assert.GreaterOrEqual(t, predictions[0].PredictedFailureDays, 0.0)
}

func TestFailureDaysMonotonicNonIncreasing(t *testing.T) {
	p := newPredictor(telemetry.NewMemoryRepository())
	for _, fleet := range models.Fleets {
		prev := p.FailureDays(fleet, 0)
		for risk := 0.5; risk <= 100; risk += 0.5 {
			days := p.FailureDays(fleet, risk)
			assert.LessOrEqual(t, days, prev, "fleet %s risk %.1f", fleet, risk)
			prev = days
		}
	}
}

func FuzzLightingRiskBounds(f *testing.F) {
	f.Add(220.0, 230.0, 1.0, 50000.0, uint8(5))
	f.Add(0.0, 0.0, 0.0, 0.0, uint8(0))
	f.Add(-1e9, 1e9, -7.0, 1e12, uint8(255))
	p := newPredictor(telemetry.NewMemoryRepository())

	f.Fuzz(func(t *testing.T, voltA, voltB, current, hours float64, stateBits uint8) {
		for _, v := range []float64{voltA, voltB, current, hours} {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				t.Skip("non-finite sensor value")
			}
		}
		rs := make([]models.Reading, 0, 8)
		for i := 0; i < 8; i++ {
			voltage := voltA
			if i%2 == 1 {
				voltage = voltB
			}
			rs = append(rs, models.Reading{
				DeviceID: "L", Timestamp: int64(i),
				Voltage: voltage, Current: current, OperatingHours: hours,
				State: int(stateBits>>i) & 1,
			})
		}
		pred := p.predictLighting(rs)
		assert.False(t, math.IsNaN(pred.RiskScore))
		assert.GreaterOrEqual(t, pred.RiskScore, 0.0)
		assert.LessOrEqual(t, pred.RiskScore, 100.0)
		assert.GreaterOrEqual(t, pred.PredictedFailureDays, 0.0)
	})
}

func FuzzMeterRiskBounds(f *testing.F) {
	f.Add(1.0, 3.0, 90.0, uint8(0))
	f.Add(-50.0, 9999.0, -1.0, uint8(255))
	f.Add(0.0, 0.0, 0.0, uint8(3))
	p := newPredictor(telemetry.NewMemoryRepository())

	f.Fuzz(func(t *testing.T, flow, pressure, battery float64, leakBits uint8) {
		for _, v := range []float64{flow, pressure, battery} {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				t.Skip("non-finite sensor value")
			}
		}
		rs := make([]models.Reading, 0, 8)
		for i := 0; i < 8; i++ {
			rs = append(rs, models.Reading{
				DeviceID: "M", Timestamp: int64(i),
				FlowRate: flow * float64(i), Pressure: pressure, Battery: battery,
				LeakDetected: leakBits>>i&1 == 1,
			})
		}
		for _, fleet := range []models.Fleet{models.FleetWater, models.FleetGas} {
			pred := p.predictMeter(fleet, rs)
			assert.False(t, math.IsNaN(pred.RiskScore))
			assert.GreaterOrEqual(t, pred.RiskScore, 0.0)
			assert.LessOrEqual(t, pred.RiskScore, 100.0)
			assert.GreaterOrEqual(t, pred.PredictedFailureDays, 0.0)
		}
	})
}

func TestMaintenanceInvalidThreshold(t *testing.T) {
	p := newPredictor(telemetry.NewMemoryRepository())
	_, err := p.Predict(context.Background(), models.FleetWater, testWindow, -1)
	assert.ErrorIs(t, err, telemetry.ErrInvalidParameter)
}
