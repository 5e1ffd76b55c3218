package config

// HealthThresholds tunes the per-fleet health scoring formulas
type HealthThresholds struct {
	DefaultHealthThreshold float64 `mapstructure:"default_health_threshold"`
	VoltageNominalLow      float64 `mapstructure:"voltage_nominal_low"`
	VoltageNominalHigh     float64 `mapstructure:"voltage_nominal_high"`
	VoltageCreditFull      float64 `mapstructure:"voltage_credit_full"`
	VoltageCreditOutOfBand float64 `mapstructure:"voltage_credit_out_of_band"`
	TempSafeMax            float64 `mapstructure:"temp_safe_max"`
	TempCreditFull         float64 `mapstructure:"temp_credit_full"`
	UptimeWeight           float64 `mapstructure:"uptime_weight"`
	PowerFactorWeight      float64 `mapstructure:"power_factor_weight"`

	BatteryTierLow      float64 `mapstructure:"battery_tier_low"`
	BatteryTierCritical float64 `mapstructure:"battery_tier_critical"`
	BatteryTierPenalty  float64 `mapstructure:"battery_tier_penalty"`
	PressurePenalty     float64 `mapstructure:"pressure_penalty"`
	LeakPenalty         float64 `mapstructure:"leak_penalty"`
	LeakPenaltyCap      float64 `mapstructure:"leak_penalty_cap"`
	WaterPressureLow    float64 `mapstructure:"water_pressure_low"`
	WaterPressureHigh   float64 `mapstructure:"water_pressure_high"`
	GasPressureLow      float64 `mapstructure:"gas_pressure_low"`
	GasPressureHigh     float64 `mapstructure:"gas_pressure_high"`
}

// AnomalyThresholds tunes outlier detection
type AnomalyThresholds struct {
	KLow              float64 `mapstructure:"k_low"`
	KMedium           float64 `mapstructure:"k_medium"`
	KHigh             float64 `mapstructure:"k_high"`
	BatteryFloor      float64 `mapstructure:"battery_floor"`
	LightingTempLimit float64 `mapstructure:"lighting_temp_limit"`
	SampleCap         int     `mapstructure:"sample_cap"`
}

// FleetRiskWeights are the maintenance risk penalty weights for one fleet
type FleetRiskWeights struct {
	InstabilityBound  float64 `mapstructure:"instability_bound"`
	InstabilityWeight float64 `mapstructure:"instability_weight"`
	RangeLow          float64 `mapstructure:"range_low"`
	RangeHigh         float64 `mapstructure:"range_high"`
	RangeWeight       float64 `mapstructure:"range_weight"`
	UptimeMin         float64 `mapstructure:"uptime_min"`
	UptimeWeight      float64 `mapstructure:"uptime_weight"`
	BatteryMin        float64 `mapstructure:"battery_min"`
	BatteryWeight     float64 `mapstructure:"battery_weight"`
	LeakWeight        float64 `mapstructure:"leak_weight"`
	LifetimeHours     float64 `mapstructure:"lifetime_hours"`
	WearWeight        float64 `mapstructure:"wear_weight"`
	DecayNormal       float64 `mapstructure:"decay_normal"`
	DecaySteep        float64 `mapstructure:"decay_steep"`
}

// MaintenanceThresholds tunes risk prediction
type MaintenanceThresholds struct {
	DefaultRiskThreshold float64          `mapstructure:"default_risk_threshold"`
	SteepDecayCutoff     float64          `mapstructure:"steep_decay_cutoff"`
	Lighting             FleetRiskWeights `mapstructure:"lighting"`
	Water                FleetRiskWeights `mapstructure:"water"`
	Gas                  FleetRiskWeights `mapstructure:"gas"`
}

// ForFleet returns the risk weights for a fleet name
// (lighting, water or gas)
func (m *MaintenanceThresholds) ForFleet(fleet string) FleetRiskWeights {
	switch fleet {
	case "water":
		return m.Water
	case "gas":
		return m.Gas
	default:
		return m.Lighting
	}
}

// AlertThresholds tunes dashboard alert rules
type AlertThresholds struct {
	LightingUptimeMin float64 `mapstructure:"lighting_uptime_min"`
	LightingTempWarn  float64 `mapstructure:"lighting_temp_warn"`
}

// CorrelationThresholds tunes cross-fleet classification
type CorrelationThresholds struct {
	EnergyWaterRatioMax float64 `mapstructure:"energy_water_ratio_max"`
	LeakDensityMax      float64 `mapstructure:"leak_density_max"`
}

// Thresholds bundles every tunable analytic constant so deployments can
// adjust them without rebuilding
type Thresholds struct {
	Health      HealthThresholds      `mapstructure:"health"`
	Anomaly     AnomalyThresholds     `mapstructure:"anomaly"`
	Maintenance MaintenanceThresholds `mapstructure:"maintenance"`
	Alerts      AlertThresholds       `mapstructure:"alerts"`
	Correlation CorrelationThresholds `mapstructure:"correlation"`
}

// DefaultThresholds returns the baseline tuning
func DefaultThresholds() *Thresholds {
	return &Thresholds{
		Health: HealthThresholds{
			DefaultHealthThreshold: 70,
			VoltageNominalLow:      210,
			VoltageNominalHigh:     230,
			VoltageCreditFull:      25,
			VoltageCreditOutOfBand: 10,
			TempSafeMax:            35,
			TempCreditFull:         20,
			UptimeWeight:           40,
			PowerFactorWeight:      15,
			BatteryTierLow:         40,
			BatteryTierCritical:    15,
			BatteryTierPenalty:     30,
			PressurePenalty:        15,
			LeakPenalty:            10,
			LeakPenaltyCap:         40,
			WaterPressureLow:       2.0,
			WaterPressureHigh:      5.0,
			GasPressureLow:         0.5,
			GasPressureHigh:        1.0,
		},
		Anomaly: AnomalyThresholds{
			KLow:              3,
			KMedium:           2,
			KHigh:             1.5,
			BatteryFloor:      15,
			LightingTempLimit: 45,
			SampleCap:         10,
		},
		Maintenance: MaintenanceThresholds{
			DefaultRiskThreshold: 70,
			SteepDecayCutoff:     80,
			Lighting: FleetRiskWeights{
				InstabilityBound:  8,
				InstabilityWeight: 25,
				RangeLow:          0.2,
				RangeHigh:         1.5,
				RangeWeight:       20,
				UptimeMin:         0.90,
				UptimeWeight:      20,
				LifetimeHours:     40000,
				WearWeight:        25,
				DecayNormal:       1.5,
				DecaySteep:        0.8,
			},
			Water: FleetRiskWeights{
				InstabilityBound:  1.0,
				InstabilityWeight: 20,
				RangeLow:          2.0,
				RangeHigh:         5.0,
				RangeWeight:       20,
				BatteryMin:        25,
				BatteryWeight:     15,
				LeakWeight:        8,
				DecayNormal:       1.2,
				DecaySteep:        0.7,
			},
			Gas: FleetRiskWeights{
				InstabilityBound:  0.5,
				InstabilityWeight: 20,
				RangeLow:          0.5,
				RangeHigh:         1.0,
				RangeWeight:       20,
				BatteryMin:        25,
				BatteryWeight:     15,
				LeakWeight:        12,
				DecayNormal:       1.0,
				DecaySteep:        0.5,
			},
		},
		Alerts: AlertThresholds{
			LightingUptimeMin: 0.90,
			LightingTempWarn:  35,
		},
		Correlation: CorrelationThresholds{
			EnergyWaterRatioMax: 100,
			LeakDensityMax:      0.01,
		},
	}
}
