package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"smartcity/internal/analytics"
	"smartcity/internal/config"
	"smartcity/internal/models"
	"smartcity/internal/telemetry"
)

// Dependencies carries everything the analytics routes need
type Dependencies struct {
	Health      *analytics.HealthScorer
	Anomalies   *analytics.AnomalyDetector
	Maintenance *analytics.MaintenancePredictor
	Regional    *analytics.RegionalAggregator
	Dashboard   *analytics.DashboardComposer
	Correlator  *analytics.CrossFleetCorrelator
	Thresholds  *config.Thresholds
	Timeout     time.Duration
}

// RegisterAnalyticsRoutes wires one route per analysis operation
func RegisterAnalyticsRoutes(r *gin.Engine, deps Dependencies) {
	r.GET("/api/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "timestamp": time.Now().Unix()})
	})

	api := r.Group("/api/analytics")
	{
		api.GET("/health", deps.deviceHealth)
		api.GET("/anomalies", deps.anomalies)
		api.GET("/maintenance", deps.maintenance)
		api.GET("/regions", deps.regions)
		api.GET("/correlation", deps.correlation)
	}
	r.GET("/api/dashboard", deps.dashboard)
}

func (d Dependencies) deviceHealth(c *gin.Context) {
	fleet, ok := parseFleet(c)
	if !ok {
		return
	}
	window, ok := parseWindow(c, 24*time.Hour)
	if !ok {
		return
	}
	threshold, ok := parseFloat(c, "threshold", d.Thresholds.Health.DefaultHealthThreshold)
	if !ok {
		return
	}

	ctx, cancel := d.requestContext(c)
	defer cancel()
	reports, err := d.Health.Score(ctx, fleet, window, threshold)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"fleet": fleet, "window": window, "devices": emptyIfNil(reports)})
}

func (d Dependencies) anomalies(c *gin.Context) {
	fleet, ok := parseFleet(c)
	if !ok {
		return
	}
	window, ok := parseWindow(c, 24*time.Hour)
	if !ok {
		return
	}
	sensitivity, err := analytics.ParseSensitivity(c.DefaultQuery("sensitivity", string(analytics.SensitivityMedium)))
	if err != nil {
		writeError(c, err)
		return
	}

	ctx, cancel := d.requestContext(c)
	defer cancel()
	reports, err := d.Anomalies.Detect(ctx, fleet, window, sensitivity)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"fleet": fleet, "window": window, "devices": emptyIfNil(reports)})
}

func (d Dependencies) maintenance(c *gin.Context) {
	fleet, ok := parseFleet(c)
	if !ok {
		return
	}
	window, ok := parseWindow(c, 30*24*time.Hour)
	if !ok {
		return
	}
	threshold, ok := parseFloat(c, "riskThreshold", d.Thresholds.Maintenance.DefaultRiskThreshold)
	if !ok {
		return
	}

	ctx, cancel := d.requestContext(c)
	defer cancel()
	predictions, err := d.Maintenance.Predict(ctx, fleet, window, threshold)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"fleet": fleet, "window": window, "devices": emptyIfNil(predictions)})
}

func (d Dependencies) regions(c *gin.Context) {
	fleet, ok := parseFleet(c)
	if !ok {
		return
	}
	window, ok := parseWindow(c, 24*time.Hour)
	if !ok {
		return
	}

	ctx, cancel := d.requestContext(c)
	defer cancel()
	summaries, err := d.Regional.Summaries(ctx, fleet, window)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"fleet": fleet, "window": window, "regions": emptyIfNil(summaries)})
}

func (d Dependencies) dashboard(c *gin.Context) {
	timeRange := analytics.TimeRange(c.DefaultQuery("range", string(analytics.RangeDay)))

	ctx, cancel := d.requestContext(c)
	defer cancel()
	snapshot, err := d.Dashboard.Compose(ctx, timeRange, time.Now())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, snapshot)
}

func (d Dependencies) correlation(c *gin.Context) {
	window, ok := parseWindow(c, 24*time.Hour)
	if !ok {
		return
	}
	region := c.Query("region")

	ctx, cancel := d.requestContext(c)
	defer cancel()
	report, err := d.Correlator.Correlate(ctx, window, region)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, report)
}

func (d Dependencies) requestContext(c *gin.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.Request.Context(), d.Timeout)
}

func parseFleet(c *gin.Context) (models.Fleet, bool) {
	fleet, err := models.ParseFleet(c.Query("fleet"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return "", false
	}
	return fleet, true
}

// parseWindow reads start/end epoch seconds, defaulting to a window of
// the given length ending now
func parseWindow(c *gin.Context, defaultLength time.Duration) (models.TimeWindow, bool) {
	now := time.Now().Unix()
	window := models.TimeWindow{Start: now - int64(defaultLength.Seconds()), End: now}
	if s := c.Query("start"); s != "" {
		v, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "start must be epoch seconds"})
			return window, false
		}
		window.Start = v
	}
	if s := c.Query("end"); s != "" {
		v, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "end must be epoch seconds"})
			return window, false
		}
		window.End = v
	}
	if err := telemetry.ValidateWindow(window); err != nil {
		writeError(c, err)
		return window, false
	}
	return window, true
}

func parseFloat(c *gin.Context, key string, fallback float64) (float64, bool) {
	s := c.Query(key)
	if s == "" {
		return fallback, true
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": key + " must be a number"})
		return 0, false
	}
	return v, true
}

// writeError maps boundary error kinds to HTTP statuses
func writeError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, telemetry.ErrInvalidRange), errors.Is(err, telemetry.ErrInvalidParameter):
		status = http.StatusBadRequest
	case errors.Is(err, telemetry.ErrTimeout):
		status = http.StatusRequestTimeout
	case errors.Is(err, telemetry.ErrUnavailable):
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

// emptyIfNil keeps JSON arrays over nulls for empty result sets
func emptyIfNil[T any](xs []T) []T {
	if xs == nil {
		return []T{}
	}
	return xs
}
