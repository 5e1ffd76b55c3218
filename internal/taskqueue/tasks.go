package taskqueue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"

	"smartcity/internal/analytics"
	"smartcity/internal/models"
	"smartcity/internal/notify"
)

// TypeFleetScan is the scheduled maintenance scan task
const TypeFleetScan = "fleet_scan"

// FleetScanPayload selects the fleet and risk cutoff for one scan
type FleetScanPayload struct {
	Fleet         models.Fleet `json:"fleet"`
	RiskThreshold float64      `json:"riskThreshold"`
	LookbackDays  int          `json:"lookbackDays"`
}

// Global instances - initialized by the main application
var (
	predictor *analytics.MaintenancePredictor
	notifier  *notify.Notifier
	logger    *zap.Logger
	timeout   time.Duration
)

// SetGlobalInstances wires the worker dependencies
func SetGlobalInstances(p *analytics.MaintenancePredictor, n *notify.Notifier, log *zap.Logger, queryTimeout time.Duration) {
	predictor = p
	notifier = n
	logger = log
	timeout = queryTimeout
}

// EnqueueFleetScan queues a maintenance scan for one fleet
func EnqueueFleetScan(fleet models.Fleet, riskThreshold float64, lookbackDays int) error {
	if asynqClient == nil {
		return fmt.Errorf("task queue not started")
	}
	payload, err := json.Marshal(FleetScanPayload{
		Fleet:         fleet,
		RiskThreshold: riskThreshold,
		LookbackDays:  lookbackDays,
	})
	if err != nil {
		return err
	}
	_, err = asynqClient.Enqueue(asynq.NewTask(TypeFleetScan, payload))
	return err
}

// processFleetScanTask runs the predictor over the lookback window and
// publishes a warning per high-risk device
func processFleetScanTask(ctx context.Context, t *asynq.Task) error {
	var payload FleetScanPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("unmarshal fleet scan payload: %w", err)
	}
	if payload.LookbackDays <= 0 {
		payload.LookbackDays = 30
	}

	now := time.Now().Unix()
	window := models.TimeWindow{
		Start: now - int64(payload.LookbackDays)*24*3600,
		End:   now,
	}

	scanCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	predictions, err := predictor.Predict(scanCtx, payload.Fleet, window, payload.RiskThreshold)
	if err != nil {
		return fmt.Errorf("fleet scan %s: %w", payload.Fleet, err)
	}

	logger.Info("fleet scan complete",
		zap.String("fleet", string(payload.Fleet)),
		zap.Int("atRisk", len(predictions)))

	if notifier == nil {
		return nil
	}
	for _, pred := range predictions {
		notifier.PublishAlerts(models.AlertSet{Warning: []models.Alert{{
			Level:  "warning",
			Source: "maintenance",
			Message: fmt.Sprintf("device %s risk %.0f, estimated %.0f days to failure",
				pred.DeviceID, pred.RiskScore, pred.PredictedFailureDays),
		}}})
	}
	return nil
}
