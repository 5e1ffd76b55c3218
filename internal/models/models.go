package models

import "fmt"

// Fleet identifies one of the three device populations
type Fleet string

const (
	FleetLighting Fleet = "lighting"
	FleetWater    Fleet = "water"
	FleetGas      Fleet = "gas"
)

// Fleets lists all fleets in a fixed order
var Fleets = []Fleet{FleetLighting, FleetWater, FleetGas}

// ParseFleet validates a fleet name
func ParseFleet(s string) (Fleet, error) {
	switch Fleet(s) {
	case FleetLighting, FleetWater, FleetGas:
		return Fleet(s), nil
	}
	return "", fmt.Errorf("unknown fleet %q", s)
}

// IsMeter reports whether the fleet uses meter-style readings (water/gas)
func (f Fleet) IsMeter() bool {
	return f == FleetWater || f == FleetGas
}

// Coords holds a device location
type Coords struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Device represents fleet device metadata
type Device struct {
	DeviceID    string `json:"deviceId"`
	Fleet       Fleet  `json:"fleet"`
	Region      string `json:"region"`
	Status      string `json:"status"`
	InstalledAt int64  `json:"installedAt"`
	Coords      Coords `json:"coords"`
}

// Reading is one telemetry sample. Lighting and meter fleets populate
// disjoint subsets of the signal fields.
type Reading struct {
	DeviceID  string `json:"deviceId"`
	Timestamp int64  `json:"timestamp"`
	Region    string `json:"region,omitempty"`

	// lighting signals
	Voltage          float64 `json:"voltage,omitempty"`
	Current          float64 `json:"current,omitempty"`
	PowerConsumption float64 `json:"powerConsumption,omitempty"`
	PowerFactor      float64 `json:"powerFactor,omitempty"`
	Temp             float64 `json:"temp,omitempty"`
	Lux              float64 `json:"lux,omitempty"`
	State            int     `json:"state,omitempty"`
	EnergyAcc        float64 `json:"energyAcc,omitempty"`
	OperatingHours   float64 `json:"operatingHours,omitempty"`

	// water/gas signals
	Pressure     float64 `json:"pressure,omitempty"`
	FlowRate     float64 `json:"flowRate,omitempty"`
	Consumption  float64 `json:"consumption,omitempty"`
	Battery      float64 `json:"battery,omitempty"`
	Temperature  float64 `json:"temperature,omitempty"`
	LeakDetected bool    `json:"leakDetected,omitempty"`
}

// TimeWindow is a half-open range over epoch seconds, start <= end
type TimeWindow struct {
	Start int64 `json:"start"`
	End   int64 `json:"end"`
}

// Duration returns the window length in seconds
func (w TimeWindow) Duration() int64 {
	return w.End - w.Start
}

// HealthReport is the per-device health score with explanatory metrics
type HealthReport struct {
	DeviceID    string             `json:"deviceId"`
	Region      string             `json:"region,omitempty"`
	HealthScore float64            `json:"healthScore"`
	Metrics     map[string]float64 `json:"metrics"`
}

// AnomalyReport lists flagged readings for one device
type AnomalyReport struct {
	DeviceID     string    `json:"deviceId"`
	AnomalyCount int       `json:"anomalyCount"`
	Samples      []Reading `json:"samples"`
}

// MaintenancePrediction is the per-device failure risk estimate
type MaintenancePrediction struct {
	DeviceID             string             `json:"deviceId"`
	RiskScore            float64            `json:"riskScore"`
	PredictedFailureDays float64            `json:"predictedFailureDays"`
	Metrics              map[string]float64 `json:"metrics"`
}

// RegionalSummary aggregates one (fleet, region) group
type RegionalSummary struct {
	Region           string             `json:"region"`
	Fleet            Fleet              `json:"fleet"`
	DeviceCount      int                `json:"deviceCount"`
	AggregateMetrics map[string]float64 `json:"aggregateMetrics"`
}

// FleetSummary is one dashboard overview row. All fields are omitempty so
// a fleet whose query failed marshals as an explicit empty object.
type FleetSummary struct {
	DeviceCount      int     `json:"deviceCount,omitempty"`
	TotalConsumption float64 `json:"totalConsumption,omitempty"`
	AvgConsumption   float64 `json:"avgConsumption,omitempty"`
	Uptime           float64 `json:"uptime,omitempty"`
	AvgTemperature   float64 `json:"avgTemperature,omitempty"`
	LeakCount        int     `json:"leakCount,omitempty"`
	LowBatteryCount  int     `json:"lowBatteryCount,omitempty"`
}

// DashboardTotals are cross-fleet sums
type DashboardTotals struct {
	Devices           int     `json:"devices"`
	EnergyConsumption float64 `json:"energyConsumption"`
	WaterConsumption  float64 `json:"waterConsumption"`
	GasConsumption    float64 `json:"gasConsumption"`
	Leaks             int     `json:"leaks"`
}

// Alert is a single dashboard alert
type Alert struct {
	Level   string `json:"level"`
	Source  string `json:"source"`
	Message string `json:"message"`
}

// AlertSet groups alerts by severity
type AlertSet struct {
	Critical []Alert `json:"critical"`
	Warning  []Alert `json:"warning"`
	Info     []Alert `json:"info"`
}

// DashboardSnapshot is the composite city view
type DashboardSnapshot struct {
	Timestamp int64                  `json:"timestamp"`
	Window    TimeWindow             `json:"window"`
	Overview  map[Fleet]FleetSummary `json:"overview"`
	Totals    DashboardTotals        `json:"totals"`
	Alerts    AlertSet               `json:"alerts"`
}

// RegionPattern is one region's cross-fleet consumption profile
type RegionPattern struct {
	Region             string   `json:"region"`
	TotalEnergy        float64  `json:"totalEnergy"`
	TotalWater         float64  `json:"totalWater"`
	TotalGas           float64  `json:"totalGas"`
	EnergyPerDevice    float64  `json:"energyPerDevice"`
	WaterPerDevice     float64  `json:"waterPerDevice"`
	GasPerDevice       float64  `json:"gasPerDevice"`
	LeakCount          int      `json:"leakCount"`
	EnergyWaterRatio   float64  `json:"energyWaterRatio"`
	ConsumptionProfile string   `json:"consumptionProfile"`
	LeakDensity        float64  `json:"leakDensity"`
	LeakRisk           string   `json:"leakRisk"`
	Insights           []string `json:"insights,omitempty"`
}

// TemporalPair is one time bucket present in all three fleets
type TemporalPair struct {
	Region   string  `json:"region"`
	TimeSlot int64   `json:"timeSlot"`
	Energy   float64 `json:"energy"`
	Water    float64 `json:"water"`
	Gas      float64 `json:"gas"`
}

// CorrelationReport joins consumption behavior across fleets
type CorrelationReport struct {
	Window             TimeWindow         `json:"window"`
	Region             string             `json:"region,omitempty"`
	PerRegionPatterns  []RegionPattern    `json:"perRegionPatterns"`
	CorrelationMetrics map[string]float64 `json:"correlationMetrics"`
	TemporalPairs      []TemporalPair     `json:"temporalPairs"`
}
