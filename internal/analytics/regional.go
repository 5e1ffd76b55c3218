package analytics

import (
	"context"
	"sort"

	"go.uber.org/zap"

	"smartcity/internal/config"
	"smartcity/internal/models"
	"smartcity/internal/stats"
	"smartcity/internal/telemetry"
)

// RegionalAggregator rolls per-device metrics up by (fleet, region).
// Aggregation is pushed down to the repository; only grouped rows reach
// this process.
type RegionalAggregator struct {
	repo telemetry.Repository
	cfg  *config.Thresholds
	log  *zap.Logger
}

// NewRegionalAggregator creates a regional aggregator
func NewRegionalAggregator(repo telemetry.Repository, cfg *config.Thresholds, log *zap.Logger) *RegionalAggregator {
	return &RegionalAggregator{repo: repo, cfg: cfg, log: log}
}

// Summaries returns one row per region carrying devices for the fleet.
// Regions without devices are omitted rather than emitted as NaN rows.
func (a *RegionalAggregator) Summaries(ctx context.Context, fleet models.Fleet, window models.TimeWindow) ([]models.RegionalSummary, error) {
	if err := telemetry.ValidateWindow(window); err != nil {
		return nil, err
	}

	devices, err := a.repo.ListDevices(ctx, fleet, telemetry.Filter{})
	if err != nil {
		return nil, err
	}
	deviceCounts := make(map[string]int)
	for _, d := range devices {
		deviceCounts[d.Region]++
	}

	aggs := regionalAggs(fleet)
	rows, err := a.repo.QueryGrouped(ctx, fleet, window, []string{"region"}, aggs, telemetry.Filter{})
	if err != nil {
		return nil, err
	}
	byRegion := make(map[string]telemetry.GroupedRow, len(rows))
	for _, row := range rows {
		byRegion[row.Keys["region"]] = row
	}

	regions := make([]string, 0, len(deviceCounts))
	for region := range deviceCounts {
		regions = append(regions, region)
	}
	sort.Strings(regions)

	var summaries []models.RegionalSummary
	for _, region := range regions {
		count := deviceCounts[region]
		if count == 0 {
			continue
		}
		metrics := map[string]float64{}
		if row, ok := byRegion[region]; ok {
			for k, v := range row.Values {
				metrics[k] = v
			}
			metrics["consumptionPerDevice"] = stats.SafeDivide(row.Values["totalConsumption"], float64(count))
		}
		summaries = append(summaries, models.RegionalSummary{
			Region:           region,
			Fleet:            fleet,
			DeviceCount:      count,
			AggregateMetrics: metrics,
		})
	}

	a.log.Debug("regional aggregation done",
		zap.String("fleet", string(fleet)),
		zap.Int("regions", len(summaries)))
	return summaries, nil
}

func regionalAggs(fleet models.Fleet) []telemetry.Agg {
	if fleet.IsMeter() {
		return []telemetry.Agg{
			{Field: "consumption", Op: telemetry.AggSum, As: "totalConsumption"},
			{Field: "consumption", Op: telemetry.AggAvg, As: "avgConsumption"},
			{Field: "flow_rate", Op: telemetry.AggAvg, As: "avgFlowRate"},
			{Field: "battery", Op: telemetry.AggAvg, As: "avgBattery"},
			{Field: "leak_detected", Op: telemetry.AggSum, As: "leakCount"},
			{Op: telemetry.AggCount, As: "readings"},
		}
	}
	return []telemetry.Agg{
		{Field: "power_consumption", Op: telemetry.AggSum, As: "totalConsumption"},
		{Field: "power_consumption", Op: telemetry.AggAvg, As: "avgConsumption"},
		{Field: "power_factor", Op: telemetry.AggAvg, As: "avgEfficiency"},
		{Field: "state", Op: telemetry.AggAvg, As: "uptimeRatio"},
		{Op: telemetry.AggCount, As: "readings"},
	}
}
