// Package analytics holds the six analytic components that turn raw
// fleet telemetry into decision-grade reports. Components are stateless:
// each call fetches once through the repository boundary, computes in
// memory, and returns a derived report object.
package analytics

import (
	"fmt"
	"runtime"
	"sort"

	"smartcity/internal/models"
	"smartcity/internal/telemetry"
)

// Sensitivity controls the standard-deviation multiplier for anomaly bands
type Sensitivity string

const (
	SensitivityLow    Sensitivity = "low"
	SensitivityMedium Sensitivity = "medium"
	SensitivityHigh   Sensitivity = "high"
)

// ParseSensitivity validates a sensitivity value
func ParseSensitivity(s string) (Sensitivity, error) {
	switch Sensitivity(s) {
	case SensitivityLow, SensitivityMedium, SensitivityHigh:
		return Sensitivity(s), nil
	}
	return "", fmt.Errorf("%w: sensitivity must be low, medium or high, got %q",
		telemetry.ErrInvalidParameter, s)
}

// validateScoreThreshold checks a 0-100 score bound before any repository call
func validateScoreThreshold(name string, v float64) error {
	if v < 0 || v > 100 {
		return fmt.Errorf("%w: %s must be in [0,100], got %g", telemetry.ErrInvalidParameter, name, v)
	}
	return nil
}

// groupByDevice splits window readings per device, returning device ids
// in a stable order. Input may be unsorted and gapped; each device's
// readings are ordered by timestamp.
func groupByDevice(readings []models.Reading) (map[string][]models.Reading, []string) {
	byDevice := make(map[string][]models.Reading)
	for _, r := range readings {
		byDevice[r.DeviceID] = append(byDevice[r.DeviceID], r)
	}
	ids := make([]string, 0, len(byDevice))
	for id, rs := range byDevice {
		sort.Slice(rs, func(i, j int) bool { return rs[i].Timestamp < rs[j].Timestamp })
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return byDevice, ids
}

// workerCount bounds per-device parallelism to the CPU count
func workerCount() int {
	return runtime.NumCPU()
}
