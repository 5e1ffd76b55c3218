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

// HealthScorer computes per-device 0-100 health scores from recent
// telemetry. Only devices below the caller's threshold are returned,
// worst first.
type HealthScorer struct {
	repo telemetry.Repository
	cfg  *config.Thresholds
	log  *zap.Logger
}

// NewHealthScorer creates a health scorer
func NewHealthScorer(repo telemetry.Repository, cfg *config.Thresholds, log *zap.Logger) *HealthScorer {
	return &HealthScorer{repo: repo, cfg: cfg, log: log}
}

// Score returns health reports for devices scoring below healthThreshold,
// sorted ascending by health. Devices with no readings in the window are
// omitted.
func (h *HealthScorer) Score(ctx context.Context, fleet models.Fleet, window models.TimeWindow, healthThreshold float64) ([]models.HealthReport, error) {
	if err := validateScoreThreshold("healthThreshold", healthThreshold); err != nil {
		return nil, err
	}
	if err := telemetry.ValidateWindow(window); err != nil {
		return nil, err
	}

	readings, err := h.repo.Query(ctx, fleet, window, telemetry.Filter{})
	if err != nil {
		return nil, err
	}
	byDevice, ids := groupByDevice(readings)

	var mu sync.Mutex
	var reports []models.HealthReport

	g, _ := errgroup.WithContext(ctx)
	g.SetLimit(workerCount())
	for _, id := range ids {
		rs := byDevice[id]
		g.Go(func() error {
			report := h.scoreDevice(fleet, rs)
			if report.HealthScore < healthThreshold {
				mu.Lock()
				reports = append(reports, report)
				mu.Unlock()
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	sort.Slice(reports, func(i, j int) bool {
		if reports[i].HealthScore != reports[j].HealthScore {
			return reports[i].HealthScore < reports[j].HealthScore
		}
		return reports[i].DeviceID < reports[j].DeviceID
	})

	h.log.Debug("health scoring done",
		zap.String("fleet", string(fleet)),
		zap.Int("devices", len(ids)),
		zap.Int("belowThreshold", len(reports)))
	return reports, nil
}

func (h *HealthScorer) scoreDevice(fleet models.Fleet, rs []models.Reading) models.HealthReport {
	if fleet.IsMeter() {
		return h.scoreMeter(fleet, rs)
	}
	return h.scoreLighting(rs)
}

// scoreLighting rewards uptime, nominal voltage, cool operation and a
// good power factor
func (h *HealthScorer) scoreLighting(rs []models.Reading) models.HealthReport {
	t := h.cfg.Health

	var voltages, temps, pfs []float64
	on := 0
	for _, r := range rs {
		voltages = append(voltages, r.Voltage)
		temps = append(temps, r.Temp)
		pfs = append(pfs, r.PowerFactor)
		if r.State == 1 {
			on++
		}
	}
	uptime := stats.SafeDivide(float64(on), float64(len(rs)))
	avgVoltage := stats.Mean(voltages)
	avgTemp := stats.Mean(temps)
	avgPF := stats.Mean(pfs)

	voltCredit := t.VoltageCreditOutOfBand
	if avgVoltage >= t.VoltageNominalLow && avgVoltage <= t.VoltageNominalHigh {
		voltCredit = t.VoltageCreditFull
	}
	tempCredit := t.TempCreditFull
	if avgTemp > t.TempSafeMax {
		tempCredit = stats.Clamp(t.TempCreditFull-(avgTemp-t.TempSafeMax), 0, t.TempCreditFull)
	}

	score := stats.Clamp(
		t.UptimeWeight*uptime+voltCredit+tempCredit+t.PowerFactorWeight*avgPF,
		0, 100)

	return models.HealthReport{
		DeviceID:    rs[0].DeviceID,
		Region:      rs[0].Region,
		HealthScore: score,
		Metrics: map[string]float64{
			"uptimeRatio":    uptime,
			"avgVoltage":     avgVoltage,
			"avgTemp":        avgTemp,
			"avgPowerFactor": avgPF,
			"readings":       float64(len(rs)),
		},
	}
}

// scoreMeter starts from 100 and accumulates penalties for low battery,
// pressure out of the nominal band, and leak events
func (h *HealthScorer) scoreMeter(fleet models.Fleet, rs []models.Reading) models.HealthReport {
	t := h.cfg.Health

	var batteries, pressures []float64
	leaks := 0
	for _, r := range rs {
		batteries = append(batteries, r.Battery)
		pressures = append(pressures, r.Pressure)
		if r.LeakDetected {
			leaks++
		}
	}
	avgBattery := stats.Mean(batteries)
	avgPressure := stats.Mean(pressures)

	lo, hi := t.WaterPressureLow, t.WaterPressureHigh
	if fleet == models.FleetGas {
		lo, hi = t.GasPressureLow, t.GasPressureHigh
	}
	penalty := 0.0
	if avgBattery < t.BatteryTierLow {
		penalty += t.BatteryTierPenalty
	}
	if avgBattery < t.BatteryTierCritical {
		penalty += t.BatteryTierPenalty
	}
	if avgPressure < lo || avgPressure > hi {
		penalty += t.PressurePenalty
	}
	penalty += stats.Clamp(t.LeakPenalty*float64(leaks), 0, t.LeakPenaltyCap)

	return models.HealthReport{
		DeviceID:    rs[0].DeviceID,
		Region:      rs[0].Region,
		HealthScore: stats.Clamp(100-penalty, 0, 100),
		Metrics: map[string]float64{
			"avgBattery":  avgBattery,
			"avgPressure": avgPressure,
			"leakCount":   float64(leaks),
			"readings":    float64(len(rs)),
		},
	}
}
