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

// AnomalyDetector flags per-device readings falling outside mean±k·σ
// bands or tripping fleet-specific absolute rules. Detection only, no
// root-cause attribution.
type AnomalyDetector struct {
	repo telemetry.Repository
	cfg  *config.Thresholds
	log  *zap.Logger
}

// NewAnomalyDetector creates an anomaly detector
func NewAnomalyDetector(repo telemetry.Repository, cfg *config.Thresholds, log *zap.Logger) *AnomalyDetector {
	return &AnomalyDetector{repo: repo, cfg: cfg, log: log}
}

// signal is one numeric series of interest with a value accessor
type signal struct {
	name  string
	value func(models.Reading) float64
}

func fleetSignals(fleet models.Fleet) []signal {
	if fleet.IsMeter() {
		return []signal{
			{"flowRate", func(r models.Reading) float64 { return r.FlowRate }},
			{"pressure", func(r models.Reading) float64 { return r.Pressure }},
			{"consumption", func(r models.Reading) float64 { return r.Consumption }},
		}
	}
	return []signal{
		{"powerConsumption", func(r models.Reading) float64 { return r.PowerConsumption }},
		{"voltage", func(r models.Reading) float64 { return r.Voltage }},
	}
}

// Detect returns anomaly reports for devices with at least one flagged
// reading in the window. Devices without flags are omitted.
func (a *AnomalyDetector) Detect(ctx context.Context, fleet models.Fleet, window models.TimeWindow, sensitivity Sensitivity) ([]models.AnomalyReport, error) {
	k, err := a.kFor(sensitivity)
	if err != nil {
		return nil, err
	}
	if err := telemetry.ValidateWindow(window); err != nil {
		return nil, err
	}

	readings, err := a.repo.Query(ctx, fleet, window, telemetry.Filter{})
	if err != nil {
		return nil, err
	}
	byDevice, ids := groupByDevice(readings)

	var reports []models.AnomalyReport
	for _, id := range ids {
		if report, flagged := a.detectDevice(fleet, byDevice[id], k); flagged {
			reports = append(reports, report)
		}
	}

	sort.Slice(reports, func(i, j int) bool { return reports[i].DeviceID < reports[j].DeviceID })
	a.log.Debug("anomaly detection done",
		zap.String("fleet", string(fleet)),
		zap.Float64("k", k),
		zap.Int("flaggedDevices", len(reports)))
	return reports, nil
}

func (a *AnomalyDetector) kFor(s Sensitivity) (float64, error) {
	t := a.cfg.Anomaly
	switch s {
	case SensitivityLow:
		return t.KLow, nil
	case SensitivityMedium:
		return t.KMedium, nil
	case SensitivityHigh:
		return t.KHigh, nil
	}
	_, err := ParseSensitivity(string(s))
	return 0, err
}

func (a *AnomalyDetector) detectDevice(fleet models.Fleet, rs []models.Reading, k float64) (models.AnomalyReport, bool) {
	t := a.cfg.Anomaly
	signals := fleetSignals(fleet)

	// Per-signal bands over the device's window batch. A zero-σ signal
	// gets no band rule: a constant series is not an outlier.
	type band struct {
		lo, hi float64
		active bool
		value  func(models.Reading) float64
	}
	bands := make([]band, 0, len(signals))
	for _, sig := range signals {
		xs := make([]float64, len(rs))
		for i, r := range rs {
			xs[i] = sig.value(r)
		}
		mean := stats.Mean(xs)
		sigma := stats.StdDevSample(xs)
		bands = append(bands, band{
			lo:     mean - k*sigma,
			hi:     mean + k*sigma,
			active: sigma > 0,
			value:  sig.value,
		})
	}

	var flagged []models.Reading
	for _, r := range rs {
		anomalous := false
		for _, b := range bands {
			if b.active {
				if v := b.value(r); v > b.hi || v < b.lo {
					anomalous = true
					break
				}
			}
		}
		// Absolute rules fire regardless of variance
		if !anomalous && fleet.IsMeter() {
			anomalous = r.LeakDetected || r.Battery < t.BatteryFloor
		}
		if !anomalous && !fleet.IsMeter() {
			anomalous = r.Temp > t.LightingTempLimit
		}
		if anomalous {
			flagged = append(flagged, r)
		}
	}

	if len(flagged) == 0 {
		return models.AnomalyReport{}, false
	}
	samples := flagged
	if len(samples) > t.SampleCap {
		samples = samples[:t.SampleCap]
	}
	return models.AnomalyReport{
		DeviceID:     rs[0].DeviceID,
		AnomalyCount: len(flagged),
		Samples:      samples,
	}, true
}
