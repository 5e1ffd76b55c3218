package api

import (
	"net/http"
	"sort"
	"time"

	"github.com/gin-gonic/gin"

	"smartcity/internal/geo"
	"smartcity/internal/models"
	"smartcity/internal/telemetry"
)

// RegisterDeviceRoutes exposes fleet device listings with metadata
// filters and an optional geographic filter, plus raw per-device
// telemetry over a window
func RegisterDeviceRoutes(r *gin.Engine, repo telemetry.Repository, deps Dependencies) {
	r.GET("/api/devices", func(c *gin.Context) {
		fleet, ok := parseFleet(c)
		if !ok {
			return
		}
		filter := telemetry.Filter{
			Region: c.Query("region"),
			Status: c.Query("status"),
		}

		ctx, cancel := deps.requestContext(c)
		defer cancel()
		devices, err := repo.ListDevices(ctx, fleet, filter)
		if err != nil {
			writeError(c, err)
			return
		}

		// geoRegion filters by coordinates instead of the stored
		// region field, for devices provisioned before region
		// backfill
		if geoRegion := c.Query("geoRegion"); geoRegion != "" {
			devices = geo.FilterDevices(devices, geoRegion)
		}

		if devices == nil {
			devices = []models.Device{}
		}
		c.JSON(http.StatusOK, gin.H{"fleet": fleet, "count": len(devices), "devices": devices})
	})

	r.GET("/api/telemetry", func(c *gin.Context) {
		fleet, ok := parseFleet(c)
		if !ok {
			return
		}
		deviceID := c.Query("deviceId")
		if deviceID == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "deviceId is required"})
			return
		}
		window, ok := parseWindow(c, 24*time.Hour)
		if !ok {
			return
		}

		ctx, cancel := deps.requestContext(c)
		defer cancel()
		readings, err := repo.Query(ctx, fleet, window, telemetry.Filter{DeviceID: deviceID})
		if err != nil {
			writeError(c, err)
			return
		}
		sort.Slice(readings, func(i, j int) bool { return readings[i].Timestamp < readings[j].Timestamp })

		c.JSON(http.StatusOK, gin.H{
			"fleet":    fleet,
			"deviceId": deviceID,
			"window":   window,
			"count":    len(readings),
			"readings": emptyIfNil(readings),
		})
	})
}
