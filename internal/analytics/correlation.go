package analytics

import (
	"context"
	"fmt"
	"sort"
	"strconv"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"smartcity/internal/config"
	"smartcity/internal/models"
	"smartcity/internal/stats"
	"smartcity/internal/telemetry"
)

// CrossFleetCorrelator joins per-region, per-time-bucket consumption
// across fleets to surface consumption ratios, leak density and
// temporally correlated buckets.
type CrossFleetCorrelator struct {
	repo telemetry.Repository
	cfg  *config.Thresholds
	log  *zap.Logger
}

// NewCrossFleetCorrelator creates a cross-fleet correlator
func NewCrossFleetCorrelator(repo telemetry.Repository, cfg *config.Thresholds, log *zap.Logger) *CrossFleetCorrelator {
	return &CrossFleetCorrelator{repo: repo, cfg: cfg, log: log}
}

type bucketRow struct {
	region      string
	slot        int64
	consumption float64
	leaks       int
}

type fleetBuckets struct {
	rows            []bucketRow
	devicesByRegion map[string]int
}

// Correlate analyzes the window, optionally restricted to one region
func (c *CrossFleetCorrelator) Correlate(ctx context.Context, window models.TimeWindow, region string) (models.CorrelationReport, error) {
	if err := telemetry.ValidateWindow(window); err != nil {
		return models.CorrelationReport{}, err
	}

	fetched := make([]*fleetBuckets, len(models.Fleets))
	g, gctx := errgroup.WithContext(ctx)
	for i, fleet := range models.Fleets {
		g.Go(func() error {
			fb, err := c.fetchFleet(gctx, fleet, window, region)
			if err != nil {
				return err
			}
			fetched[i] = fb
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return models.CorrelationReport{}, err
	}
	perFleet := make(map[models.Fleet]*fleetBuckets, len(models.Fleets))
	for i, fleet := range models.Fleets {
		perFleet[fleet] = fetched[i]
	}

	report := models.CorrelationReport{
		Window: window,
		Region: region,
	}
	report.PerRegionPatterns = c.regionPatterns(perFleet)
	report.TemporalPairs = c.temporalPairs(perFleet)
	report.CorrelationMetrics = c.metrics(report)
	return report, nil
}

func (c *CrossFleetCorrelator) fetchFleet(ctx context.Context, fleet models.Fleet, window models.TimeWindow, region string) (*fleetBuckets, error) {
	field := "consumption"
	if fleet == models.FleetLighting {
		field = "power_consumption"
	}
	aggs := []telemetry.Agg{
		{Field: field, Op: telemetry.AggSum, As: "consumption"},
	}
	if fleet.IsMeter() {
		aggs = append(aggs, telemetry.Agg{Field: "leak_detected", Op: telemetry.AggSum, As: "leaks"})
	}

	filter := telemetry.Filter{Region: region}
	rows, err := c.repo.QueryGrouped(ctx, fleet, window,
		[]string{"region", telemetry.GroupTimeSlot}, aggs, filter)
	if err != nil {
		return nil, err
	}

	fb := &fleetBuckets{devicesByRegion: make(map[string]int)}
	for _, row := range rows {
		slot, err := strconv.ParseInt(row.Keys[telemetry.GroupTimeSlot], 10, 64)
		if err != nil {
			continue
		}
		fb.rows = append(fb.rows, bucketRow{
			region:      row.Keys["region"],
			slot:        slot,
			consumption: row.Values["consumption"],
			leaks:       int(row.Values["leaks"]),
		})
	}

	devices, err := c.repo.ListDevices(ctx, fleet, filter)
	if err != nil {
		return nil, err
	}
	for _, d := range devices {
		fb.devicesByRegion[d.Region]++
	}
	return fb, nil
}

func (c *CrossFleetCorrelator) regionPatterns(perFleet map[models.Fleet]*fleetBuckets) []models.RegionPattern {
	t := c.cfg.Correlation

	type totals struct {
		energy, water, gas float64
		leaks              int
	}
	regionTotals := make(map[string]*totals)
	get := func(region string) *totals {
		if _, ok := regionTotals[region]; !ok {
			regionTotals[region] = &totals{}
		}
		return regionTotals[region]
	}
	for _, row := range perFleet[models.FleetLighting].rows {
		get(row.region).energy += row.consumption
	}
	for _, row := range perFleet[models.FleetWater].rows {
		rt := get(row.region)
		rt.water += row.consumption
		rt.leaks += row.leaks
	}
	for _, row := range perFleet[models.FleetGas].rows {
		rt := get(row.region)
		rt.gas += row.consumption
		rt.leaks += row.leaks
	}

	regions := make([]string, 0, len(regionTotals))
	for region := range regionTotals {
		regions = append(regions, region)
	}
	sort.Strings(regions)

	var patterns []models.RegionPattern
	for _, region := range regions {
		rt := regionTotals[region]
		lightDevices := perFleet[models.FleetLighting].devicesByRegion[region]
		waterDevices := perFleet[models.FleetWater].devicesByRegion[region]
		gasDevices := perFleet[models.FleetGas].devicesByRegion[region]
		meterDevices := waterDevices + gasDevices

		p := models.RegionPattern{
			Region:           region,
			TotalEnergy:      rt.energy,
			TotalWater:       rt.water,
			TotalGas:         rt.gas,
			EnergyPerDevice:  stats.SafeDivide(rt.energy, float64(lightDevices)),
			WaterPerDevice:   stats.SafeDivide(rt.water, float64(waterDevices)),
			GasPerDevice:     stats.SafeDivide(rt.gas, float64(gasDevices)),
			LeakCount:        rt.leaks,
			EnergyWaterRatio: stats.SafeDivide(rt.energy, rt.water),
			LeakDensity:      stats.SafeDivide(float64(rt.leaks), float64(meterDevices)),
		}

		p.ConsumptionProfile = "balanced"
		if p.EnergyWaterRatio > t.EnergyWaterRatioMax {
			p.ConsumptionProfile = "high_energy_consumption"
			p.Insights = append(p.Insights, fmt.Sprintf(
				"region %s consumes %.0fx more energy than water; check lighting efficiency", region, p.EnergyWaterRatio))
		}
		p.LeakRisk = "normal"
		if p.LeakDensity > t.LeakDensityMax {
			p.LeakRisk = "high"
			p.Insights = append(p.Insights, fmt.Sprintf(
				"region %s leak density %.3f per device exceeds %.3f; prioritize meter inspection", region, p.LeakDensity, t.LeakDensityMax))
		}
		patterns = append(patterns, p)
	}
	return patterns
}

// temporalPairs joins buckets present in all three fleets at once.
// Partial buckets are dropped, not zero-filled, so missing data never
// masquerades as correlation.
func (c *CrossFleetCorrelator) temporalPairs(perFleet map[models.Fleet]*fleetBuckets) []models.TemporalPair {
	type key struct {
		region string
		slot   int64
	}
	index := func(fb *fleetBuckets) map[key]float64 {
		m := make(map[key]float64, len(fb.rows))
		for _, row := range fb.rows {
			m[key{row.region, row.slot}] += row.consumption
		}
		return m
	}
	energy := index(perFleet[models.FleetLighting])
	water := index(perFleet[models.FleetWater])
	gas := index(perFleet[models.FleetGas])

	var pairs []models.TemporalPair
	for k, e := range energy {
		w, okW := water[k]
		g, okG := gas[k]
		if !okW || !okG {
			continue
		}
		pairs = append(pairs, models.TemporalPair{
			Region:   k.region,
			TimeSlot: k.slot,
			Energy:   e,
			Water:    w,
			Gas:      g,
		})
	}
	sort.Slice(pairs, func(i, j int) bool {
		if pairs[i].Region != pairs[j].Region {
			return pairs[i].Region < pairs[j].Region
		}
		return pairs[i].TimeSlot < pairs[j].TimeSlot
	})
	return pairs
}

func (c *CrossFleetCorrelator) metrics(report models.CorrelationReport) map[string]float64 {
	var energy, water, gas float64
	leaks := 0
	for _, p := range report.PerRegionPatterns {
		energy += p.TotalEnergy
		water += p.TotalWater
		gas += p.TotalGas
		leaks += p.LeakCount
	}
	return map[string]float64{
		"totalEnergy":      energy,
		"totalWater":       water,
		"totalGas":         gas,
		"totalLeaks":       float64(leaks),
		"energyWaterRatio": stats.SafeDivide(energy, water),
		"regions":          float64(len(report.PerRegionPatterns)),
		"temporalBuckets":  float64(len(report.TemporalPairs)),
	}
}
