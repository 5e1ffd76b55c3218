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

func newCorrelator(repo telemetry.Repository) *CrossFleetCorrelator {
	return NewCrossFleetCorrelator(repo, config.DefaultThresholds(), zap.NewNop())
}

// correlationRepo seeds one device per fleet in one region with readings
// in hour slot 0
func correlationRepo(region string, energy, water, gas float64) *telemetry.MemoryRepository {
	repo := telemetry.NewMemoryRepository()
	repo.AddDevice(models.Device{DeviceID: region + "-L", Fleet: models.FleetLighting, Region: region})
	repo.AddDevice(models.Device{DeviceID: region + "-W", Fleet: models.FleetWater, Region: region})
	repo.AddDevice(models.Device{DeviceID: region + "-G", Fleet: models.FleetGas, Region: region})
	repo.AddReadings(models.FleetLighting, models.Reading{
		DeviceID: region + "-L", Region: region, Timestamp: 100, PowerConsumption: energy,
	})
	repo.AddReadings(models.FleetWater, models.Reading{
		DeviceID: region + "-W", Region: region, Timestamp: 200, Consumption: water,
	})
	repo.AddReadings(models.FleetGas, models.Reading{
		DeviceID: region + "-G", Region: region, Timestamp: 300, Consumption: gas,
	})
	return repo
}

func TestCorrelateBalancedRegion(t *testing.T) {
	repo := correlationRepo("Centro", 50, 10, 2)

	report, err := newCorrelator(repo).Correlate(context.Background(), testWindow, "")
	require.NoError(t, err)
	require.Len(t, report.PerRegionPatterns, 1)

	p := report.PerRegionPatterns[0]
	assert.Equal(t, "Centro", p.Region)
	assert.InDelta(t, 5, p.EnergyWaterRatio, 0.01)
	assert.Equal(t, "balanced", p.ConsumptionProfile)
	assert.Equal(t, "normal", p.LeakRisk)
	assert.Empty(t, p.Insights)
}

func TestCorrelateZeroWaterGivesZeroRatio(t *testing.T) {
	repo := correlationRepo("Centro", 500, 0, 2)

	report, err := newCorrelator(repo).Correlate(context.Background(), testWindow, "")
	require.NoError(t, err)
	require.Len(t, report.PerRegionPatterns, 1)

	p := report.PerRegionPatterns[0]
	assert.Zero(t, p.EnergyWaterRatio)
	assert.Equal(t, "balanced", p.ConsumptionProfile)
}

func TestCorrelateHighEnergyProfile(t *testing.T) {
	repo := correlationRepo("Centro", 5000, 10, 2)

	report, err := newCorrelator(repo).Correlate(context.Background(), testWindow, "")
	require.NoError(t, err)
	require.Len(t, report.PerRegionPatterns, 1)

	p := report.PerRegionPatterns[0]
	assert.InDelta(t, 500, p.EnergyWaterRatio, 0.01)
	assert.Equal(t, "high_energy_consumption", p.ConsumptionProfile)
	require.Len(t, p.Insights, 1)
	assert.Contains(t, p.Insights[0], "Centro")
}

func TestCorrelateLeakDensity(t *testing.T) {
	repo := correlationRepo("Centro", 50, 10, 2)
	repo.AddReadings(models.FleetWater, models.Reading{
		DeviceID: "Centro-W", Region: "Centro", Timestamp: 400, Consumption: 1, LeakDetected: true,
	})

	report, err := newCorrelator(repo).Correlate(context.Background(), testWindow, "")
	require.NoError(t, err)
	require.Len(t, report.PerRegionPatterns, 1)

	p := report.PerRegionPatterns[0]
	assert.Equal(t, 1, p.LeakCount)
	// one leak over two meter devices
	assert.InDelta(t, 0.5, p.LeakDensity, 0.01)
	assert.Equal(t, "high", p.LeakRisk)
}

func TestTemporalPairsRequireAllThreeFleets(t *testing.T) {
	repo := correlationRepo("Centro", 50, 10, 2)
	// second slot carries lighting and water but no gas
	repo.AddReadings(models.FleetLighting, models.Reading{
		DeviceID: "Centro-L", Region: "Centro", Timestamp: 3700, PowerConsumption: 40,
	})
	repo.AddReadings(models.FleetWater, models.Reading{
		DeviceID: "Centro-W", Region: "Centro", Timestamp: 3800, Consumption: 8,
	})

	report, err := newCorrelator(repo).Correlate(context.Background(), testWindow, "")
	require.NoError(t, err)
	require.Len(t, report.TemporalPairs, 1)

	pair := report.TemporalPairs[0]
	assert.Equal(t, "Centro", pair.Region)
	assert.Equal(t, int64(0), pair.TimeSlot)
	assert.InDelta(t, 50, pair.Energy, 0.01)
	assert.InDelta(t, 10, pair.Water, 0.01)
	assert.InDelta(t, 2, pair.Gas, 0.01)
}

func TestCorrelateRegionFilter(t *testing.T) {
	repo := correlationRepo("Centro", 50, 10, 2)
	repo.AddDevice(models.Device{DeviceID: "Lapa-W", Fleet: models.FleetWater, Region: "Lapa"})
	repo.AddReadings(models.FleetWater, models.Reading{
		DeviceID: "Lapa-W", Region: "Lapa", Timestamp: 500, Consumption: 99,
	})

	report, err := newCorrelator(repo).Correlate(context.Background(), testWindow, "Centro")
	require.NoError(t, err)
	require.Len(t, report.PerRegionPatterns, 1)
	assert.Equal(t, "Centro", report.PerRegionPatterns[0].Region)
	assert.InDelta(t, 10, report.CorrelationMetrics["totalWater"], 0.01)
}

func TestCorrelateMetrics(t *testing.T) {
	repo := correlationRepo("Centro", 50, 10, 2)

	report, err := newCorrelator(repo).Correlate(context.Background(), testWindow, "")
	require.NoError(t, err)

	m := report.CorrelationMetrics
	assert.InDelta(t, 50, m["totalEnergy"], 0.01)
	assert.InDelta(t, 10, m["totalWater"], 0.01)
	assert.InDelta(t, 2, m["totalGas"], 0.01)
	assert.InDelta(t, 5, m["energyWaterRatio"], 0.01)
	assert.InDelta(t, 1, m["regions"], 0.01)
	assert.InDelta(t, 1, m["temporalBuckets"], 0.01)
}

func TestCorrelateInvalidWindow(t *testing.T) {
	_, err := newCorrelator(telemetry.NewMemoryRepository()).Correlate(context.Background(), models.TimeWindow{Start: 10, End: 5}, "")
	assert.ErrorIs(t, err, telemetry.ErrInvalidRange)
}
