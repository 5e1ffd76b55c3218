package telemetry

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"smartcity/internal/models"
	"smartcity/internal/stats"
)

// MemoryRepository is an in-memory Repository used by tests and local
// runs without a database. Grouping semantics mirror the Postgres
// implementation.
type MemoryRepository struct {
	devices  map[models.Fleet][]models.Device
	readings map[models.Fleet][]models.Reading

	// Fail forces an error per fleet, for exercising degraded paths
	Fail map[models.Fleet]error
}

// NewMemoryRepository creates an empty in-memory repository
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		devices:  make(map[models.Fleet][]models.Device),
		readings: make(map[models.Fleet][]models.Reading),
		Fail:     make(map[models.Fleet]error),
	}
}

// AddDevice registers device metadata
func (m *MemoryRepository) AddDevice(d models.Device) {
	m.devices[d.Fleet] = append(m.devices[d.Fleet], d)
}

// AddReadings appends readings for a fleet
func (m *MemoryRepository) AddReadings(fleet models.Fleet, readings ...models.Reading) {
	m.readings[fleet] = append(m.readings[fleet], readings...)
}

func (m *MemoryRepository) regionOf(fleet models.Fleet, deviceID string) string {
	for _, d := range m.devices[fleet] {
		if d.DeviceID == deviceID {
			return d.Region
		}
	}
	return ""
}

func (m *MemoryRepository) matching(fleet models.Fleet, window models.TimeWindow, filter Filter) []models.Reading {
	var out []models.Reading
	for _, r := range m.readings[fleet] {
		if r.Timestamp < window.Start || r.Timestamp > window.End {
			continue
		}
		if filter.DeviceID != "" && r.DeviceID != filter.DeviceID {
			continue
		}
		region := r.Region
		if region == "" {
			region = m.regionOf(fleet, r.DeviceID)
		}
		if filter.Region != "" && region != filter.Region {
			continue
		}
		r.Region = region
		out = append(out, r)
	}
	return out
}

func (m *MemoryRepository) Query(ctx context.Context, fleet models.Fleet, window models.TimeWindow, filter Filter) ([]models.Reading, error) {
	if err := ValidateWindow(window); err != nil {
		return nil, err
	}
	if err := m.Fail[fleet]; err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTimeout, err)
	}
	return m.matching(fleet, window, filter), nil
}

func (m *MemoryRepository) QueryGrouped(ctx context.Context, fleet models.Fleet, window models.TimeWindow, groupBy []string, aggs []Agg, filter Filter) ([]GroupedRow, error) {
	if err := ValidateWindow(window); err != nil {
		return nil, err
	}
	if err := m.Fail[fleet]; err != nil {
		return nil, err
	}
	if len(groupBy) == 0 || len(aggs) == 0 {
		return nil, fmt.Errorf("%w: groupBy and aggregations must be non-empty", ErrInvalidParameter)
	}

	groups := make(map[string][]models.Reading)
	keysByGroup := make(map[string]map[string]string)
	for _, r := range m.matching(fleet, window, filter) {
		keys := make(map[string]string, len(groupBy))
		parts := make([]string, 0, len(groupBy))
		for _, g := range groupBy {
			var k string
			switch g {
			case "device_id":
				k = r.DeviceID
			case "region":
				k = r.Region
			case GroupTimeSlot:
				k = fmt.Sprintf("%d", TimeSlot(r.Timestamp, 3600))
			default:
				return nil, fmt.Errorf("%w: unsupported group field %q", ErrInvalidParameter, g)
			}
			keys[g] = k
			parts = append(parts, k)
		}
		gk := strings.Join(parts, "\x00")
		groups[gk] = append(groups[gk], r)
		keysByGroup[gk] = keys
	}

	groupKeys := make([]string, 0, len(groups))
	for gk := range groups {
		groupKeys = append(groupKeys, gk)
	}
	sort.Strings(groupKeys)

	var out []GroupedRow
	for _, gk := range groupKeys {
		rs := groups[gk]
		row := GroupedRow{Keys: keysByGroup[gk], Values: make(map[string]float64, len(aggs))}
		for _, a := range aggs {
			v, err := aggregate(fleet, rs, a)
			if err != nil {
				return nil, err
			}
			row.Values[a.As] = v
		}
		out = append(out, row)
	}
	return out, nil
}

func (m *MemoryRepository) CountReadings(ctx context.Context, fleet models.Fleet, window models.TimeWindow, filter Filter) (int64, error) {
	if err := ValidateWindow(window); err != nil {
		return 0, err
	}
	if err := m.Fail[fleet]; err != nil {
		return 0, err
	}
	return int64(len(m.matching(fleet, window, filter))), nil
}

func (m *MemoryRepository) ListDevices(ctx context.Context, fleet models.Fleet, filter Filter) ([]models.Device, error) {
	if err := m.Fail[fleet]; err != nil {
		return nil, err
	}
	var out []models.Device
	for _, d := range m.devices[fleet] {
		if filter.DeviceID != "" && d.DeviceID != filter.DeviceID {
			continue
		}
		if filter.Region != "" && d.Region != filter.Region {
			continue
		}
		if filter.Status != "" && d.Status != filter.Status {
			continue
		}
		out = append(out, d)
	}
	return out, nil
}

func aggregate(fleet models.Fleet, rs []models.Reading, a Agg) (float64, error) {
	if a.Op == AggCount {
		return float64(len(rs)), nil
	}
	xs := make([]float64, 0, len(rs))
	for _, r := range rs {
		v, err := fieldValue(fleet, r, a.Field)
		if err != nil {
			return 0, err
		}
		xs = append(xs, v)
	}
	switch a.Op {
	case AggSum:
		var sum float64
		for _, x := range xs {
			sum += x
		}
		return sum, nil
	case AggAvg:
		return stats.Mean(xs), nil
	case AggMin:
		return stats.Min(xs), nil
	case AggMax:
		return stats.Max(xs), nil
	case AggStdDev:
		return stats.StdDevSample(xs), nil
	}
	return 0, fmt.Errorf("%w: unsupported aggregation %q", ErrInvalidParameter, a.Op)
}

func fieldValue(fleet models.Fleet, r models.Reading, field string) (float64, error) {
	switch field {
	case "voltage":
		return r.Voltage, nil
	case "current":
		return r.Current, nil
	case "power_consumption":
		return r.PowerConsumption, nil
	case "power_factor":
		return r.PowerFactor, nil
	case "temp":
		return r.Temp, nil
	case "lux":
		return r.Lux, nil
	case "state":
		return float64(r.State), nil
	case "energy_acc":
		return r.EnergyAcc, nil
	case "operating_hours":
		return r.OperatingHours, nil
	case "pressure":
		return r.Pressure, nil
	case "flow_rate":
		return r.FlowRate, nil
	case "consumption":
		return r.Consumption, nil
	case "battery":
		return r.Battery, nil
	case "temperature":
		return r.Temperature, nil
	case "leak_detected":
		if r.LeakDetected {
			return 1, nil
		}
		return 0, nil
	}
	return 0, fmt.Errorf("%w: unknown field %q for fleet %s", ErrInvalidParameter, field, fleet)
}
