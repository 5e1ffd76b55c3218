package analytics

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"smartcity/internal/config"
	"smartcity/internal/models"
	"smartcity/internal/telemetry"
)

func newAnomalyDetector(repo telemetry.Repository) *AnomalyDetector {
	return NewAnomalyDetector(repo, config.DefaultThresholds(), zap.NewNop())
}

func TestAnomalyConstantSignalsNotFlagged(t *testing.T) {
	repo := telemetry.NewMemoryRepository()
	repo.AddDevice(models.Device{DeviceID: "L1", Fleet: models.FleetLighting})
	for i := 0; i < 50; i++ {
		repo.AddReadings(models.FleetLighting, models.Reading{
			DeviceID: "L1", Timestamp: int64(i),
			PowerConsumption: 100, Voltage: 220, Temp: 25,
		})
	}

	reports, err := newAnomalyDetector(repo).Detect(context.Background(), models.FleetLighting, testWindow, SensitivityHigh)
	require.NoError(t, err)
	assert.Empty(t, reports)
}

func TestAnomalyAbsoluteRulesFireWithZeroVariance(t *testing.T) {
	repo := telemetry.NewMemoryRepository()
	repo.AddDevice(models.Device{DeviceID: "W1", Fleet: models.FleetWater})
	for i := 0; i < 20; i++ {
		repo.AddReadings(models.FleetWater, models.Reading{
			DeviceID: "W1", Timestamp: int64(i),
			FlowRate: 1.0, Pressure: 3.0, Consumption: 0.5, Battery: 90,
			LeakDetected: i == 7,
		})
	}

	reports, err := newAnomalyDetector(repo).Detect(context.Background(), models.FleetWater, testWindow, SensitivityLow)
	require.NoError(t, err)
	require.Len(t, reports, 1)
	assert.Equal(t, 1, reports[0].AnomalyCount)
	assert.True(t, reports[0].Samples[0].LeakDetected)
}

func TestAnomalyBatteryFloor(t *testing.T) {
	repo := telemetry.NewMemoryRepository()
	repo.AddDevice(models.Device{DeviceID: "G1", Fleet: models.FleetGas})
	repo.AddReadings(models.FleetGas,
		models.Reading{DeviceID: "G1", Timestamp: 1, FlowRate: 1, Pressure: 0.7, Battery: 10},
		models.Reading{DeviceID: "G1", Timestamp: 2, FlowRate: 1, Pressure: 0.7, Battery: 90},
	)

	reports, err := newAnomalyDetector(repo).Detect(context.Background(), models.FleetGas, testWindow, SensitivityLow)
	require.NoError(t, err)
	require.Len(t, reports, 1)
	assert.Equal(t, 1, reports[0].AnomalyCount)
	assert.Equal(t, int64(1), reports[0].Samples[0].Timestamp)
}

func TestAnomalyBandOutlier(t *testing.T) {
	repo := telemetry.NewMemoryRepository()
	repo.AddDevice(models.Device{DeviceID: "L1", Fleet: models.FleetLighting})
	for i := 0; i < 19; i++ {
		repo.AddReadings(models.FleetLighting, models.Reading{
			DeviceID: "L1", Timestamp: int64(i), PowerConsumption: 100, Voltage: 220,
		})
	}
	repo.AddReadings(models.FleetLighting, models.Reading{
		DeviceID: "L1", Timestamp: 19, PowerConsumption: 1000, Voltage: 220,
	})

	reports, err := newAnomalyDetector(repo).Detect(context.Background(), models.FleetLighting, testWindow, SensitivityMedium)
	require.NoError(t, err)
	require.Len(t, reports, 1)
	assert.Equal(t, 1, reports[0].AnomalyCount)
	assert.Equal(t, 1000.0, reports[0].Samples[0].PowerConsumption)
}

func TestAnomalySampleCapKeepsFullCount(t *testing.T) {
	repo := telemetry.NewMemoryRepository()
	repo.AddDevice(models.Device{DeviceID: "W1", Fleet: models.FleetWater})
	for i := 0; i < 15; i++ {
		repo.AddReadings(models.FleetWater, models.Reading{
			DeviceID: "W1", Timestamp: int64(i),
			FlowRate: 1, Pressure: 3, Battery: 90, LeakDetected: true,
		})
	}

	reports, err := newAnomalyDetector(repo).Detect(context.Background(), models.FleetWater, testWindow, SensitivityLow)
	require.NoError(t, err)
	require.Len(t, reports, 1)
	assert.Equal(t, 15, reports[0].AnomalyCount)
	assert.Len(t, reports[0].Samples, 10)
	// samples are the earliest flagged readings
	assert.Equal(t, int64(0), reports[0].Samples[0].Timestamp)
}

func TestAnomalyInvalidSensitivity(t *testing.T) {
	repo := telemetry.NewMemoryRepository()
	_, err := newAnomalyDetector(repo).Detect(context.Background(), models.FleetWater, testWindow, Sensitivity("extreme"))
	assert.ErrorIs(t, err, telemetry.ErrInvalidParameter)
}
