package analytics

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"smartcity/internal/config"
	"smartcity/internal/models"
	"smartcity/internal/stats"
	"smartcity/internal/telemetry"
)

// TimeRange is a fixed-length dashboard window ending now
type TimeRange string

const (
	RangeHour  TimeRange = "hour"
	RangeDay   TimeRange = "day"
	RangeWeek  TimeRange = "week"
	RangeMonth TimeRange = "month"
)

// Window resolves the range to a concrete window ending at now
func (t TimeRange) Window(now time.Time) (models.TimeWindow, error) {
	var length time.Duration
	switch t {
	case RangeHour:
		length = time.Hour
	case RangeDay:
		length = 24 * time.Hour
	case RangeWeek:
		length = 7 * 24 * time.Hour
	case RangeMonth:
		length = 30 * 24 * time.Hour
	default:
		return models.TimeWindow{}, fmt.Errorf("%w: range must be hour, day, week or month, got %q",
			telemetry.ErrInvalidParameter, string(t))
	}
	end := now.Unix()
	return models.TimeWindow{Start: end - int64(length.Seconds()), End: end}, nil
}

// DashboardComposer merges per-fleet overviews, cross-fleet totals and
// rule-based alerts into one snapshot. Fleets are queried concurrently;
// a failing fleet degrades to an explicit empty summary instead of
// aborting the dashboard, except on repository timeout which fails the
// whole call.
type DashboardComposer struct {
	repo telemetry.Repository
	cfg  *config.Thresholds
	log  *zap.Logger
}

// NewDashboardComposer creates a dashboard composer
func NewDashboardComposer(repo telemetry.Repository, cfg *config.Thresholds, log *zap.Logger) *DashboardComposer {
	return &DashboardComposer{repo: repo, cfg: cfg, log: log}
}

// fleetStats carries the intermediate per-fleet aggregates alert rules need
type fleetStats struct {
	summary   models.FleetSummary
	available bool
}

// Compose builds a snapshot for the requested range ending at now
func (d *DashboardComposer) Compose(ctx context.Context, timeRange TimeRange, now time.Time) (models.DashboardSnapshot, error) {
	window, err := timeRange.Window(now)
	if err != nil {
		return models.DashboardSnapshot{}, err
	}

	var mu sync.Mutex
	results := make(map[models.Fleet]fleetStats, len(models.Fleets))

	g, gctx := errgroup.WithContext(ctx)
	for _, fleet := range models.Fleets {
		g.Go(func() error {
			summary, err := d.fleetSummary(gctx, fleet, window)
			if err != nil {
				if errors.Is(err, telemetry.ErrTimeout) {
					return err
				}
				// Partial failure: one fleet missing must not
				// invalidate the others
				d.log.Warn("fleet summary failed, degrading",
					zap.String("fleet", string(fleet)), zap.Error(err))
				mu.Lock()
				results[fleet] = fleetStats{}
				mu.Unlock()
				return nil
			}
			mu.Lock()
			results[fleet] = fleetStats{summary: summary, available: true}
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return models.DashboardSnapshot{}, err
	}

	snapshot := models.DashboardSnapshot{
		Timestamp: now.Unix(),
		Window:    window,
		Overview:  make(map[models.Fleet]models.FleetSummary, len(results)),
	}
	for fleet, r := range results {
		snapshot.Overview[fleet] = r.summary
		snapshot.Totals.Devices += r.summary.DeviceCount
		snapshot.Totals.Leaks += r.summary.LeakCount
	}
	snapshot.Totals.EnergyConsumption = results[models.FleetLighting].summary.TotalConsumption
	snapshot.Totals.WaterConsumption = results[models.FleetWater].summary.TotalConsumption
	snapshot.Totals.GasConsumption = results[models.FleetGas].summary.TotalConsumption

	snapshot.Alerts = d.buildAlerts(results, snapshot.Totals)
	return snapshot, nil
}

func (d *DashboardComposer) fleetSummary(ctx context.Context, fleet models.Fleet, window models.TimeWindow) (models.FleetSummary, error) {
	devices, err := d.repo.ListDevices(ctx, fleet, telemetry.Filter{})
	if err != nil {
		return models.FleetSummary{}, err
	}

	rows, err := d.repo.QueryGrouped(ctx, fleet, window, []string{"region"}, regionalAggs(fleet), telemetry.Filter{})
	if err != nil {
		return models.FleetSummary{}, err
	}

	summary := models.FleetSummary{DeviceCount: len(devices)}
	var totalReadings, uptimeWeighted, tempWeighted float64
	for _, row := range rows {
		n := row.Values["readings"]
		totalReadings += n
		summary.TotalConsumption += row.Values["totalConsumption"]
		summary.LeakCount += int(row.Values["leakCount"])
		uptimeWeighted += row.Values["uptimeRatio"] * n
	}
	summary.AvgConsumption = stats.SafeDivide(summary.TotalConsumption, totalReadings)
	summary.Uptime = stats.SafeDivide(uptimeWeighted, totalReadings)

	if fleet == models.FleetLighting {
		tempRows, err := d.repo.QueryGrouped(ctx, fleet, window, []string{"region"},
			[]telemetry.Agg{
				{Field: "temp", Op: telemetry.AggAvg, As: "avgTemp"},
				{Op: telemetry.AggCount, As: "readings"},
			}, telemetry.Filter{})
		if err != nil {
			return models.FleetSummary{}, err
		}
		var tr float64
		for _, row := range tempRows {
			tempWeighted += row.Values["avgTemp"] * row.Values["readings"]
			tr += row.Values["readings"]
		}
		summary.AvgTemperature = stats.SafeDivide(tempWeighted, tr)
	}

	if fleet.IsMeter() {
		low, err := d.lowBatteryCount(ctx, fleet, window)
		if err != nil {
			return models.FleetSummary{}, err
		}
		summary.LowBatteryCount = low
	}
	return summary, nil
}

// lowBatteryCount counts devices whose weakest reading in the window is
// below the battery floor, via a device-grouped min pushed down to the
// repository
func (d *DashboardComposer) lowBatteryCount(ctx context.Context, fleet models.Fleet, window models.TimeWindow) (int, error) {
	rows, err := d.repo.QueryGrouped(ctx, fleet, window, []string{"device_id"},
		[]telemetry.Agg{{Field: "battery", Op: telemetry.AggMin, As: "minBattery"}},
		telemetry.Filter{})
	if err != nil {
		return 0, err
	}
	count := 0
	for _, row := range rows {
		if row.Values["minBattery"] < d.cfg.Anomaly.BatteryFloor {
			count++
		}
	}
	return count, nil
}

// buildAlerts evaluates the fixed rule sequence: critical rules first,
// then warnings. Identical inputs produce identical alerts in identical
// order.
func (d *DashboardComposer) buildAlerts(results map[models.Fleet]fleetStats, totals models.DashboardTotals) models.AlertSet {
	t := d.cfg.Alerts
	lighting := results[models.FleetLighting]

	alerts := models.AlertSet{
		Critical: []models.Alert{},
		Warning:  []models.Alert{},
		Info:     []models.Alert{},
	}

	if totals.Leaks > 0 {
		alerts.Critical = append(alerts.Critical, models.Alert{
			Level:   "critical",
			Source:  "leaks",
			Message: fmt.Sprintf("%d leak events detected across water and gas fleets", totals.Leaks),
		})
	}
	if lighting.available && lighting.summary.Uptime < t.LightingUptimeMin {
		alerts.Critical = append(alerts.Critical, models.Alert{
			Level:   "critical",
			Source:  "lighting",
			Message: fmt.Sprintf("lighting uptime %.1f%% below %.0f%%", lighting.summary.Uptime*100, t.LightingUptimeMin*100),
		})
	}

	lowBattery := 0
	for _, fleet := range models.Fleets {
		lowBattery += results[fleet].summary.LowBatteryCount
	}
	if lowBattery > 0 {
		alerts.Warning = append(alerts.Warning, models.Alert{
			Level:   "warning",
			Source:  "battery",
			Message: fmt.Sprintf("%d devices with battery below floor", lowBattery),
		})
	}
	if lighting.available && lighting.summary.AvgTemperature > t.LightingTempWarn {
		alerts.Warning = append(alerts.Warning, models.Alert{
			Level:   "warning",
			Source:  "lighting",
			Message: fmt.Sprintf("average lighting temperature %.1f°C above %.0f°C", lighting.summary.AvgTemperature, t.LightingTempWarn),
		})
	}

	if len(alerts.Critical) == 0 && len(alerts.Warning) == 0 {
		alerts.Info = append(alerts.Info, models.Alert{
			Level:   "info",
			Source:  "city",
			Message: fmt.Sprintf("all fleets nominal: %d devices reporting", totals.Devices),
		})
	}
	return alerts
}
