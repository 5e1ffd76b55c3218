// Package telemetry defines the query boundary between the analytic
// components and the reading store, plus its concrete backends.
package telemetry

import (
	"context"
	"errors"
	"fmt"

	"smartcity/internal/models"
)

// Error kinds surfaced across the repository boundary. Callers match
// them with errors.Is.
var (
	ErrInvalidRange     = errors.New("invalid time range: start after end")
	ErrInvalidParameter = errors.New("invalid parameter")
	ErrTimeout          = errors.New("repository timeout")
	ErrUnavailable      = errors.New("repository unavailable")
)

// Filter narrows a query to one device and/or region. Zero values mean
// no filtering.
type Filter struct {
	DeviceID string
	Region   string
	Status   string
}

// Aggregation ops supported by QueryGrouped
const (
	AggSum    = "sum"
	AggAvg    = "avg"
	AggMin    = "min"
	AggMax    = "max"
	AggStdDev = "stddev"
	AggCount  = "count"
)

// Agg is one aggregation over a reading field, named As in the result row
type Agg struct {
	Field string
	Op    string
	As    string
}

// GroupTimeSlot is the pseudo-field grouping readings into fixed 1-hour
// buckets, available alongside real columns in QueryGrouped groupBy.
const GroupTimeSlot = "time_slot"

// GroupedRow is one row of a grouped aggregation
type GroupedRow struct {
	Keys   map[string]string
	Values map[string]float64
}

// Repository is the query capability the analytics core consumes. All
// methods honor ctx cancellation; aggregation is pushed down so callers
// never materialize whole-fleet raw scans.
type Repository interface {
	// Query returns readings for a fleet within a window, region-enriched
	Query(ctx context.Context, fleet models.Fleet, window models.TimeWindow, filter Filter) ([]models.Reading, error)

	// QueryGrouped returns pre-aggregated rows grouped by the given fields
	QueryGrouped(ctx context.Context, fleet models.Fleet, window models.TimeWindow, groupBy []string, aggs []Agg, filter Filter) ([]GroupedRow, error)

	// CountReadings counts readings matching the window and filter
	CountReadings(ctx context.Context, fleet models.Fleet, window models.TimeWindow, filter Filter) (int64, error)

	// ListDevices returns fleet device metadata matching the filter
	ListDevices(ctx context.Context, fleet models.Fleet, filter Filter) ([]models.Device, error)
}

// ValidateWindow enforces the start <= end precondition
func ValidateWindow(w models.TimeWindow) error {
	if w.Start > w.End {
		return fmt.Errorf("%w: start=%d end=%d", ErrInvalidRange, w.Start, w.End)
	}
	return nil
}

// TimeSlot buckets a timestamp into a fixed-size slot
func TimeSlot(ts, bucketSeconds int64) int64 {
	if bucketSeconds <= 0 {
		return ts
	}
	return ts - ts%bucketSeconds
}
