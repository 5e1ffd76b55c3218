package scheduler

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"smartcity/internal/analytics"
	"smartcity/internal/config"
	"smartcity/internal/telemetry"
)

func testScheduler() *Scheduler {
	composer := analytics.NewDashboardComposer(telemetry.NewMemoryRepository(), config.DefaultThresholds(), zap.NewNop())
	return NewScheduler(composer, nil, 5*time.Second, zap.NewNop())
}

func TestScheduleFleetScans(t *testing.T) {
	s := testScheduler()
	assert.NoError(t, s.ScheduleFleetScans("@daily", 70, 30))
	assert.Error(t, s.ScheduleFleetScans("not a cron spec", 70, 30))
}

func TestStartRejectsBadSpec(t *testing.T) {
	s := testScheduler()
	assert.Error(t, s.Start("every day at noon"))
}
