package analytics

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"smartcity/internal/config"
	"smartcity/internal/models"
	"smartcity/internal/telemetry"
)

func newComposer(repo telemetry.Repository) *DashboardComposer {
	return NewDashboardComposer(repo, config.DefaultThresholds(), zap.NewNop())
}

// dashboardRepo seeds one healthy device per fleet inside the last hour
// before now
func dashboardRepo(now time.Time) *telemetry.MemoryRepository {
	repo := telemetry.NewMemoryRepository()
	ts := now.Unix() - 60

	repo.AddDevice(models.Device{DeviceID: "L1", Fleet: models.FleetLighting, Region: "Centro"})
	repo.AddReadings(models.FleetLighting, models.Reading{
		DeviceID: "L1", Region: "Centro", Timestamp: ts,
		Voltage: 220, PowerConsumption: 60, PowerFactor: 0.9, Temp: 28, State: 1,
	})

	repo.AddDevice(models.Device{DeviceID: "W1", Fleet: models.FleetWater, Region: "Centro"})
	repo.AddReadings(models.FleetWater, models.Reading{
		DeviceID: "W1", Region: "Centro", Timestamp: ts,
		Pressure: 3, FlowRate: 2, Consumption: 10, Battery: 90,
	})

	repo.AddDevice(models.Device{DeviceID: "G1", Fleet: models.FleetGas, Region: "Centro"})
	repo.AddReadings(models.FleetGas, models.Reading{
		DeviceID: "G1", Region: "Centro", Timestamp: ts,
		Pressure: 0.7, FlowRate: 0.5, Consumption: 2, Battery: 85,
	})
	return repo
}

func TestDashboardHealthyCity(t *testing.T) {
	now := time.Unix(1_000_000, 0)
	snapshot, err := newComposer(dashboardRepo(now)).Compose(context.Background(), RangeHour, now)
	require.NoError(t, err)

	assert.Equal(t, 3, snapshot.Totals.Devices)
	assert.Equal(t, 0, snapshot.Totals.Leaks)
	assert.InDelta(t, 60, snapshot.Totals.EnergyConsumption, 0.01)
	assert.InDelta(t, 10, snapshot.Totals.WaterConsumption, 0.01)
	assert.InDelta(t, 2, snapshot.Totals.GasConsumption, 0.01)

	assert.Empty(t, snapshot.Alerts.Critical)
	assert.Empty(t, snapshot.Alerts.Warning)
	require.Len(t, snapshot.Alerts.Info, 1)
	assert.Equal(t, "info", snapshot.Alerts.Info[0].Level)
}

func TestDashboardAlertsDeterministicOrder(t *testing.T) {
	now := time.Unix(1_000_000, 0)
	repo := dashboardRepo(now)
	// leaks plus low lighting uptime plus hot lamps in one snapshot
	repo.AddReadings(models.FleetWater, models.Reading{
		DeviceID: "W1", Region: "Centro", Timestamp: now.Unix() - 30,
		Pressure: 3, FlowRate: 2, Consumption: 5, Battery: 10, LeakDetected: true,
	})
	for i := 0; i < 9; i++ {
		repo.AddReadings(models.FleetLighting, models.Reading{
			DeviceID: "L1", Region: "Centro", Timestamp: now.Unix() - int64(120+i),
			Voltage: 220, PowerFactor: 0.9, Temp: 50, State: 0,
		})
	}

	first, err := newComposer(repo).Compose(context.Background(), RangeHour, now)
	require.NoError(t, err)
	second, err := newComposer(repo).Compose(context.Background(), RangeHour, now)
	require.NoError(t, err)
	assert.Equal(t, first.Alerts, second.Alerts)

	require.Len(t, first.Alerts.Critical, 2)
	assert.Equal(t, "leaks", first.Alerts.Critical[0].Source)
	assert.Equal(t, "lighting", first.Alerts.Critical[1].Source)
	require.Len(t, first.Alerts.Warning, 2)
	assert.Equal(t, "battery", first.Alerts.Warning[0].Source)
	assert.Equal(t, "lighting", first.Alerts.Warning[1].Source)
	assert.Empty(t, first.Alerts.Info)
}

func TestDashboardDegradesFailedFleet(t *testing.T) {
	now := time.Unix(1_000_000, 0)
	repo := dashboardRepo(now)
	repo.Fail[models.FleetWater] = fmt.Errorf("%w: connection refused", telemetry.ErrUnavailable)

	snapshot, err := newComposer(repo).Compose(context.Background(), RangeHour, now)
	require.NoError(t, err)

	// failed fleet present with an explicit empty overview
	water, ok := snapshot.Overview[models.FleetWater]
	require.True(t, ok)
	assert.Equal(t, models.FleetSummary{}, water)

	assert.Equal(t, 1, snapshot.Overview[models.FleetLighting].DeviceCount)
	assert.Equal(t, 1, snapshot.Overview[models.FleetGas].DeviceCount)
	assert.Equal(t, 2, snapshot.Totals.Devices)
}

func TestDashboardTimeoutFailsWholeCall(t *testing.T) {
	now := time.Unix(1_000_000, 0)
	repo := dashboardRepo(now)
	repo.Fail[models.FleetGas] = fmt.Errorf("%w: query canceled", telemetry.ErrTimeout)

	_, err := newComposer(repo).Compose(context.Background(), RangeHour, now)
	assert.ErrorIs(t, err, telemetry.ErrTimeout)
}

func TestDashboardInvalidRange(t *testing.T) {
	_, err := newComposer(telemetry.NewMemoryRepository()).Compose(context.Background(), TimeRange("year"), time.Now())
	assert.ErrorIs(t, err, telemetry.ErrInvalidParameter)
	assert.False(t, errors.Is(err, telemetry.ErrInvalidRange))
}

func TestTimeRangeWindows(t *testing.T) {
	now := time.Unix(10_000_000, 0)
	cases := []struct {
		r       TimeRange
		seconds int64
	}{
		{RangeHour, 3600},
		{RangeDay, 86400},
		{RangeWeek, 7 * 86400},
		{RangeMonth, 30 * 86400},
	}
	for _, tc := range cases {
		w, err := tc.r.Window(now)
		require.NoError(t, err)
		assert.Equal(t, now.Unix(), w.End)
		assert.Equal(t, tc.seconds, w.End-w.Start)
	}
}
