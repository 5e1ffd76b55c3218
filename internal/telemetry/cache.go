package telemetry

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"smartcity/internal/models"
)

// DeviceCache fronts a Repository with a redis cache for device
// metadata. Readings and aggregations always hit the backing store;
// only ListDevices results are cached, since device rows change rarely
// and every analysis joins against them.
type DeviceCache struct {
	inner Repository
	rdb   *redis.Client
	ttl   time.Duration
	log   *zap.Logger
}

// NewDeviceCache wraps a repository with a metadata cache
func NewDeviceCache(inner Repository, rdb *redis.Client, ttl time.Duration, log *zap.Logger) *DeviceCache {
	return &DeviceCache{inner: inner, rdb: rdb, ttl: ttl, log: log}
}

func (c *DeviceCache) Query(ctx context.Context, fleet models.Fleet, window models.TimeWindow, filter Filter) ([]models.Reading, error) {
	return c.inner.Query(ctx, fleet, window, filter)
}

func (c *DeviceCache) QueryGrouped(ctx context.Context, fleet models.Fleet, window models.TimeWindow, groupBy []string, aggs []Agg, filter Filter) ([]GroupedRow, error) {
	return c.inner.QueryGrouped(ctx, fleet, window, groupBy, aggs, filter)
}

func (c *DeviceCache) CountReadings(ctx context.Context, fleet models.Fleet, window models.TimeWindow, filter Filter) (int64, error) {
	return c.inner.CountReadings(ctx, fleet, window, filter)
}

func (c *DeviceCache) ListDevices(ctx context.Context, fleet models.Fleet, filter Filter) ([]models.Device, error) {
	key := fmt.Sprintf("devices:%s:%s:%s:%s", fleet, filter.DeviceID, filter.Region, filter.Status)

	if cached, err := c.rdb.Get(ctx, key).Result(); err == nil {
		var devices []models.Device
		if err := json.Unmarshal([]byte(cached), &devices); err == nil {
			return devices, nil
		}
		// Corrupt entry, fall through to the store
		c.rdb.Del(ctx, key)
	}

	devices, err := c.inner.ListDevices(ctx, fleet, filter)
	if err != nil {
		return nil, err
	}

	if payload, err := json.Marshal(devices); err == nil {
		if err := c.rdb.Set(ctx, key, payload, c.ttl).Err(); err != nil {
			c.log.Warn("device cache write failed", zap.String("fleet", string(fleet)), zap.Error(err))
		}
	}
	return devices, nil
}
