package telemetry

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"

	"smartcity/internal/models"
)

// PostgresRepository serves telemetry from Postgres, one device and one
// telemetry table per fleet. Grouping and aggregation are pushed down as
// SQL so lookback windows spanning millions of rows never reach the
// process as raw readings.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository creates a repository backed by a pgx pool
func NewPostgresRepository(url string) (*PostgresRepository, error) {
	pool, err := pgxpool.New(context.Background(), url)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return &PostgresRepository{pool: pool}, nil
}

// Close releases the connection pool
func (r *PostgresRepository) Close() {
	r.pool.Close()
}

var lightingColumns = []string{
	"voltage", "current", "power_consumption", "power_factor",
	"temp", "lux", "state", "energy_acc", "operating_hours",
}

var meterColumns = []string{
	"pressure", "flow_rate", "consumption", "battery", "temperature", "leak_detected",
}

func telemetryTable(fleet models.Fleet) string {
	return string(fleet) + "_telemetry"
}

func deviceTable(fleet models.Fleet) string {
	return string(fleet) + "_devices"
}

func signalColumns(fleet models.Fleet) []string {
	if fleet.IsMeter() {
		return meterColumns
	}
	return lightingColumns
}

// columnAllowed guards group/aggregation identifiers against injection
func columnAllowed(fleet models.Fleet, col string) bool {
	for _, c := range signalColumns(fleet) {
		if c == col {
			return true
		}
	}
	return col == "device_id" || col == "region" || col == "timestamp"
}

type sqlFilter struct {
	clauses []string
	args    []any
}

func (f *sqlFilter) add(clause string, arg any) {
	f.args = append(f.args, arg)
	f.clauses = append(f.clauses, fmt.Sprintf(clause, len(f.args)))
}

func buildFilter(window models.TimeWindow, filter Filter) *sqlFilter {
	f := &sqlFilter{}
	f.add("t.timestamp >= $%d", window.Start)
	f.add("t.timestamp <= $%d", window.End)
	if filter.DeviceID != "" {
		f.add("t.device_id = $%d", filter.DeviceID)
	}
	if filter.Region != "" {
		f.add("d.region = $%d", filter.Region)
	}
	if filter.Status != "" {
		f.add("d.status = $%d", filter.Status)
	}
	return f
}

func (r *PostgresRepository) Query(ctx context.Context, fleet models.Fleet, window models.TimeWindow, filter Filter) ([]models.Reading, error) {
	if err := ValidateWindow(window); err != nil {
		return nil, err
	}
	f := buildFilter(window, filter)
	query := fmt.Sprintf(
		"SELECT t.device_id, t.timestamp, d.region, t.%s FROM %s t JOIN %s d USING (device_id) WHERE %s",
		strings.Join(signalColumns(fleet), ", t."),
		telemetryTable(fleet), deviceTable(fleet),
		strings.Join(f.clauses, " AND "),
	)

	rows, err := r.pool.Query(ctx, query, f.args...)
	if err != nil {
		return nil, mapPgError(ctx, err)
	}
	defer rows.Close()

	var readings []models.Reading
	for rows.Next() {
		var rd models.Reading
		var err error
		if fleet.IsMeter() {
			err = rows.Scan(&rd.DeviceID, &rd.Timestamp, &rd.Region,
				&rd.Pressure, &rd.FlowRate, &rd.Consumption, &rd.Battery, &rd.Temperature, &rd.LeakDetected)
		} else {
			err = rows.Scan(&rd.DeviceID, &rd.Timestamp, &rd.Region,
				&rd.Voltage, &rd.Current, &rd.PowerConsumption, &rd.PowerFactor,
				&rd.Temp, &rd.Lux, &rd.State, &rd.EnergyAcc, &rd.OperatingHours)
		}
		if err != nil {
			return nil, mapPgError(ctx, err)
		}
		readings = append(readings, rd)
	}
	if err := rows.Err(); err != nil {
		return nil, mapPgError(ctx, err)
	}
	return readings, nil
}

func (r *PostgresRepository) QueryGrouped(ctx context.Context, fleet models.Fleet, window models.TimeWindow, groupBy []string, aggs []Agg, filter Filter) ([]GroupedRow, error) {
	if err := ValidateWindow(window); err != nil {
		return nil, err
	}
	if len(groupBy) == 0 || len(aggs) == 0 {
		return nil, fmt.Errorf("%w: groupBy and aggregations must be non-empty", ErrInvalidParameter)
	}

	groupExprs := make([]string, 0, len(groupBy))
	for _, g := range groupBy {
		switch g {
		case "device_id":
			groupExprs = append(groupExprs, "t.device_id")
		case "region":
			groupExprs = append(groupExprs, "d.region")
		case GroupTimeSlot:
			groupExprs = append(groupExprs, "(t.timestamp - t.timestamp % 3600)")
		default:
			return nil, fmt.Errorf("%w: unsupported group field %q", ErrInvalidParameter, g)
		}
	}

	aggExprs := make([]string, 0, len(aggs))
	for _, a := range aggs {
		expr, err := aggExpr(fleet, a)
		if err != nil {
			return nil, err
		}
		aggExprs = append(aggExprs, expr)
	}

	f := buildFilter(window, filter)
	query := fmt.Sprintf(
		"SELECT %s, %s FROM %s t JOIN %s d USING (device_id) WHERE %s GROUP BY %s",
		strings.Join(groupExprs, ", "),
		strings.Join(aggExprs, ", "),
		telemetryTable(fleet), deviceTable(fleet),
		strings.Join(f.clauses, " AND "),
		strings.Join(groupExprs, ", "),
	)

	rows, err := r.pool.Query(ctx, query, f.args...)
	if err != nil {
		return nil, mapPgError(ctx, err)
	}
	defer rows.Close()

	var out []GroupedRow
	for rows.Next() {
		values, err := rows.Values()
		if err != nil {
			return nil, mapPgError(ctx, err)
		}
		row := GroupedRow{
			Keys:   make(map[string]string, len(groupBy)),
			Values: make(map[string]float64, len(aggs)),
		}
		for i, g := range groupBy {
			row.Keys[g] = keyString(values[i])
		}
		for i, a := range aggs {
			row.Values[a.As] = toFloat(values[len(groupBy)+i])
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, mapPgError(ctx, err)
	}
	return out, nil
}

func (r *PostgresRepository) CountReadings(ctx context.Context, fleet models.Fleet, window models.TimeWindow, filter Filter) (int64, error) {
	if err := ValidateWindow(window); err != nil {
		return 0, err
	}
	f := buildFilter(window, filter)
	query := fmt.Sprintf(
		"SELECT COUNT(*) FROM %s t JOIN %s d USING (device_id) WHERE %s",
		telemetryTable(fleet), deviceTable(fleet),
		strings.Join(f.clauses, " AND "),
	)
	var n int64
	if err := r.pool.QueryRow(ctx, query, f.args...).Scan(&n); err != nil {
		return 0, mapPgError(ctx, err)
	}
	return n, nil
}

func (r *PostgresRepository) ListDevices(ctx context.Context, fleet models.Fleet, filter Filter) ([]models.Device, error) {
	f := &sqlFilter{}
	if filter.DeviceID != "" {
		f.add("device_id = $%d", filter.DeviceID)
	}
	if filter.Region != "" {
		f.add("region = $%d", filter.Region)
	}
	if filter.Status != "" {
		f.add("status = $%d", filter.Status)
	}
	query := fmt.Sprintf(
		"SELECT device_id, region, status, installed_at, latitude, longitude FROM %s",
		deviceTable(fleet),
	)
	if len(f.clauses) > 0 {
		query += " WHERE " + strings.Join(f.clauses, " AND ")
	}

	rows, err := r.pool.Query(ctx, query, f.args...)
	if err != nil {
		return nil, mapPgError(ctx, err)
	}
	defer rows.Close()

	var devices []models.Device
	for rows.Next() {
		d := models.Device{Fleet: fleet}
		if err := rows.Scan(&d.DeviceID, &d.Region, &d.Status, &d.InstalledAt,
			&d.Coords.Latitude, &d.Coords.Longitude); err != nil {
			return nil, mapPgError(ctx, err)
		}
		devices = append(devices, d)
	}
	if err := rows.Err(); err != nil {
		return nil, mapPgError(ctx, err)
	}
	return devices, nil
}

func aggExpr(fleet models.Fleet, a Agg) (string, error) {
	if a.Op == AggCount {
		return fmt.Sprintf("COUNT(*) AS %q", a.As), nil
	}
	if !columnAllowed(fleet, a.Field) {
		return "", fmt.Errorf("%w: unknown field %q for fleet %s", ErrInvalidParameter, a.Field, fleet)
	}
	col := "t." + a.Field
	if a.Field == "leak_detected" {
		// bool column, aggregated as a 0/1 count
		col = "(CASE WHEN t.leak_detected THEN 1 ELSE 0 END)"
	}
	switch a.Op {
	case AggSum:
		return fmt.Sprintf("SUM(%s) AS %q", col, a.As), nil
	case AggAvg:
		return fmt.Sprintf("AVG(%s) AS %q", col, a.As), nil
	case AggMin:
		return fmt.Sprintf("MIN(%s) AS %q", col, a.As), nil
	case AggMax:
		return fmt.Sprintf("MAX(%s) AS %q", col, a.As), nil
	case AggStdDev:
		return fmt.Sprintf("COALESCE(STDDEV_SAMP(%s), 0) AS %q", col, a.As), nil
	}
	return "", fmt.Errorf("%w: unsupported aggregation %q", ErrInvalidParameter, a.Op)
}

func keyString(v any) string {
	switch k := v.(type) {
	case string:
		return k
	case int64:
		return strconv.FormatInt(k, 10)
	case int32:
		return strconv.FormatInt(int64(k), 10)
	default:
		return fmt.Sprint(v)
	}
}

func toFloat(v any) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case float32:
		return float64(n)
	case int64:
		return float64(n)
	case int32:
		return float64(n)
	case nil:
		return 0
	default:
		return 0
	}
}

// mapPgError translates driver failures into the boundary error kinds
func mapPgError(ctx context.Context, err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	}
	return fmt.Errorf("%w: %v", ErrUnavailable, err)
}
