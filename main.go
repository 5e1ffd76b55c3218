package main

import (
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"smartcity/internal/analytics"
	"smartcity/internal/config"
	"smartcity/internal/notify"
	"smartcity/internal/scheduler"
	"smartcity/internal/taskqueue"
	"smartcity/internal/telemetry"
	"smartcity/internal/utils"
	"smartcity/internal/web"
	"smartcity/internal/web/api"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := utils.NewLogger(cfg.LogLevel)
	if err != nil {
		log.Fatalf("Failed to init logging: %v", err)
	}
	defer logger.Sync()

	store, err := telemetry.NewPostgresRepository(cfg.DBURL)
	if err != nil {
		logger.Fatal("failed to connect to telemetry store", zap.Error(err))
	}
	defer store.Close()

	redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	repo := telemetry.NewDeviceCache(store, redisClient, 5*time.Minute, logger)

	mqttClient, err := notify.NewClient(cfg.MQTTBroker, cfg.MQTTClientID)
	if err != nil {
		logger.Fatal("failed to connect to MQTT", zap.Error(err))
	}
	defer mqttClient.Disconnect(250)
	notifier := notify.NewNotifier(mqttClient, logger)

	health := analytics.NewHealthScorer(repo, cfg.Thresholds, logger)
	anomalies := analytics.NewAnomalyDetector(repo, cfg.Thresholds, logger)
	maintenance := analytics.NewMaintenancePredictor(repo, cfg.Thresholds, logger)
	regional := analytics.NewRegionalAggregator(repo, cfg.Thresholds, logger)
	dashboard := analytics.NewDashboardComposer(repo, cfg.Thresholds, logger)
	correlator := analytics.NewCrossFleetCorrelator(repo, cfg.Thresholds, logger)

	taskqueue.SetGlobalInstances(maintenance, notifier, logger, cfg.QueryTimeout)
	go taskqueue.StartWorkers(cfg.RedisAddr, logger)

	sched := scheduler.NewScheduler(dashboard, notifier, cfg.QueryTimeout, logger)
	if err := sched.Start(cfg.SweepCron); err != nil {
		logger.Fatal("failed to start scheduler", zap.Error(err))
	}
	if err := sched.ScheduleFleetScans(cfg.ScanCron, cfg.Thresholds.Maintenance.DefaultRiskThreshold, 30); err != nil {
		logger.Fatal("failed to schedule fleet scans", zap.Error(err))
	}

	webServer := web.NewWebServer(repo, api.Dependencies{
		Health:      health,
		Anomalies:   anomalies,
		Maintenance: maintenance,
		Regional:    regional,
		Dashboard:   dashboard,
		Correlator:  correlator,
		Thresholds:  cfg.Thresholds,
		Timeout:     cfg.QueryTimeout,
	}, logger)
	go func() {
		if err := webServer.Start(cfg.HTTPAddr); err != nil {
			logger.Fatal("web server failed", zap.Error(err))
		}
	}()

	// Graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	sched.Stop()
	taskqueue.StopWorkers()
	logger.Info("shutdown complete")
}
