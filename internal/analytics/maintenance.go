package analytics

import (
	"context"
	"sort"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"smartcity/internal/config"
	"smartcity/internal/models"
	"smartcity/internal/stats"
	"smartcity/internal/telemetry"
)

// MaintenancePredictor scores near-term failure risk per device from a
// capped weighted sum of penalty terms, then derives a days-to-failure
// estimate from an explicit piecewise decay.
type MaintenancePredictor struct {
	repo telemetry.Repository
	cfg  *config.Thresholds
	log  *zap.Logger
}

// NewMaintenancePredictor creates a maintenance predictor
func NewMaintenancePredictor(repo telemetry.Repository, cfg *config.Thresholds, log *zap.Logger) *MaintenancePredictor {
	return &MaintenancePredictor{repo: repo, cfg: cfg, log: log}
}

// Predict returns predictions for devices at or above riskThreshold,
// sorted descending by risk. Callers typically pass a 30-day lookback
// window.
func (p *MaintenancePredictor) Predict(ctx context.Context, fleet models.Fleet, window models.TimeWindow, riskThreshold float64) ([]models.MaintenancePrediction, error) {
	if err := validateScoreThreshold("riskThreshold", riskThreshold); err != nil {
		return nil, err
	}
	if err := telemetry.ValidateWindow(window); err != nil {
		return nil, err
	}

	readings, err := p.repo.Query(ctx, fleet, window, telemetry.Filter{})
	if err != nil {
		return nil, err
	}
	byDevice, ids := groupByDevice(readings)

	var mu sync.Mutex
	var predictions []models.MaintenancePrediction

	g, _ := errgroup.WithContext(ctx)
	g.SetLimit(workerCount())
	for _, id := range ids {
		rs := byDevice[id]
		g.Go(func() error {
			pred := p.predictDevice(fleet, rs)
			if pred.RiskScore >= riskThreshold {
				mu.Lock()
				predictions = append(predictions, pred)
				mu.Unlock()
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	sort.Slice(predictions, func(i, j int) bool {
		if predictions[i].RiskScore != predictions[j].RiskScore {
			return predictions[i].RiskScore > predictions[j].RiskScore
		}
		return predictions[i].DeviceID < predictions[j].DeviceID
	})

	p.log.Debug("maintenance prediction done",
		zap.String("fleet", string(fleet)),
		zap.Int("devices", len(ids)),
		zap.Int("atRisk", len(predictions)))
	return predictions, nil
}

func (p *MaintenancePredictor) predictDevice(fleet models.Fleet, rs []models.Reading) models.MaintenancePrediction {
	if fleet.IsMeter() {
		return p.predictMeter(fleet, rs)
	}
	return p.predictLighting(rs)
}

func (p *MaintenancePredictor) predictLighting(rs []models.Reading) models.MaintenancePrediction {
	w := p.cfg.Maintenance.Lighting

	var voltages, currents, hours []float64
	on := 0
	for _, r := range rs {
		voltages = append(voltages, r.Voltage)
		currents = append(currents, r.Current)
		hours = append(hours, r.OperatingHours)
		if r.State == 1 {
			on++
		}
	}
	voltageStdDev := stats.StdDevSample(voltages)
	avgCurrent := stats.Mean(currents)
	uptime := stats.SafeDivide(float64(on), float64(len(rs)))
	maxHours := stats.Max(hours)

	risk := 0.0
	if voltageStdDev > w.InstabilityBound {
		risk += w.InstabilityWeight
	}
	if avgCurrent < w.RangeLow || avgCurrent > w.RangeHigh {
		risk += w.RangeWeight
	}
	if uptime < w.UptimeMin {
		risk += w.UptimeWeight
	}
	if maxHours > w.LifetimeHours {
		risk += w.WearWeight
	}
	risk = stats.Clamp(risk, 0, 100)

	return models.MaintenancePrediction{
		DeviceID:             rs[0].DeviceID,
		RiskScore:            risk,
		PredictedFailureDays: p.FailureDays(models.FleetLighting, risk),
		Metrics: map[string]float64{
			"voltageStdDev":     voltageStdDev,
			"avgCurrent":        avgCurrent,
			"uptimeRatio":       uptime,
			"maxOperatingHours": maxHours,
		},
	}
}

func (p *MaintenancePredictor) predictMeter(fleet models.Fleet, rs []models.Reading) models.MaintenancePrediction {
	w := p.cfg.Maintenance.ForFleet(string(fleet))

	var flows, pressures, batteries []float64
	leaks := 0
	for _, r := range rs {
		flows = append(flows, r.FlowRate)
		pressures = append(pressures, r.Pressure)
		batteries = append(batteries, r.Battery)
		if r.LeakDetected {
			leaks++
		}
	}
	flowStdDev := stats.StdDevSample(flows)
	avgPressure := stats.Mean(pressures)
	avgBattery := stats.Mean(batteries)

	risk := 0.0
	if flowStdDev > w.InstabilityBound {
		risk += w.InstabilityWeight
	}
	if avgPressure < w.RangeLow || avgPressure > w.RangeHigh {
		risk += w.RangeWeight
	}
	if avgBattery < w.BatteryMin {
		risk += w.BatteryWeight
	}
	// Gas leaks weigh heavier than water leaks
	risk += w.LeakWeight * float64(leaks)
	risk = stats.Clamp(risk, 0, 100)

	return models.MaintenancePrediction{
		DeviceID:             rs[0].DeviceID,
		RiskScore:            risk,
		PredictedFailureDays: p.FailureDays(fleet, risk),
		Metrics: map[string]float64{
			"flowStdDev":  flowStdDev,
			"avgPressure": avgPressure,
			"avgBattery":  avgBattery,
			"leakCount":   float64(leaks),
		},
	}
}

// FailureDays derives the days-to-likely-failure estimate. Above the
// steep cutoff the decay multiplier drops, modeling fast decline near
// critical risk. The constants are preserved deployment behavior, not a
// learned model.
func (p *MaintenancePredictor) FailureDays(fleet models.Fleet, risk float64) float64 {
	w := p.cfg.Maintenance.ForFleet(string(fleet))
	decay := w.DecayNormal
	if risk > p.cfg.Maintenance.SteepDecayCutoff {
		decay = w.DecaySteep
	}
	return (100 - risk) * decay
}
