// Package scheduler runs the periodic jobs: the dashboard sweep that
// composes a snapshot and hands its alerts to the notifier, and the
// fleet maintenance scans enqueued to the task queue.
package scheduler

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"smartcity/internal/analytics"
	"smartcity/internal/models"
	"smartcity/internal/notify"
	"smartcity/internal/taskqueue"
)

// Scheduler manages the cron-driven sweep
type Scheduler struct {
	cron     *cron.Cron
	composer *analytics.DashboardComposer
	notifier *notify.Notifier
	timeout  time.Duration
	log      *zap.Logger
}

// NewScheduler creates a scheduler
func NewScheduler(composer *analytics.DashboardComposer, notifier *notify.Notifier, timeout time.Duration, log *zap.Logger) *Scheduler {
	return &Scheduler{
		cron:     cron.New(),
		composer: composer,
		notifier: notifier,
		timeout:  timeout,
		log:      log,
	}
}

// Start registers and starts the sweep on the given cron spec
func (s *Scheduler) Start(spec string) error {
	if _, err := s.cron.AddFunc(spec, s.sweep); err != nil {
		return err
	}
	s.cron.Start()
	s.log.Info("dashboard sweep scheduled", zap.String("cron", spec))
	return nil
}

// ScheduleFleetScans enqueues one maintenance scan task per fleet on
// the given cron spec
func (s *Scheduler) ScheduleFleetScans(spec string, riskThreshold float64, lookbackDays int) error {
	_, err := s.cron.AddFunc(spec, func() {
		for _, fleet := range models.Fleets {
			if err := taskqueue.EnqueueFleetScan(fleet, riskThreshold, lookbackDays); err != nil {
				s.log.Error("failed to enqueue fleet scan",
					zap.String("fleet", string(fleet)), zap.Error(err))
			}
		}
	})
	if err != nil {
		return err
	}
	s.log.Info("fleet scans scheduled",
		zap.String("cron", spec),
		zap.Float64("riskThreshold", riskThreshold),
		zap.Int("lookbackDays", lookbackDays))
	return nil
}

// Stop stops the scheduler and waits for a running sweep to finish
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.log.Info("scheduler stopped")
}

func (s *Scheduler) sweep() {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	snapshot, err := s.composer.Compose(ctx, analytics.RangeHour, time.Now())
	if err != nil {
		s.log.Error("dashboard sweep failed", zap.Error(err))
		return
	}

	s.log.Info("dashboard sweep done",
		zap.Int("devices", snapshot.Totals.Devices),
		zap.Int("critical", len(snapshot.Alerts.Critical)),
		zap.Int("warning", len(snapshot.Alerts.Warning)))

	if s.notifier != nil {
		s.notifier.PublishAlerts(snapshot.Alerts)
	}
}
