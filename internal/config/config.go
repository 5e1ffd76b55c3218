package config

import (
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds application configuration
type Config struct {
	HTTPAddr     string `mapstructure:"HTTP_ADDR"`
	DBURL        string `mapstructure:"DB_URL"`
	RedisAddr    string `mapstructure:"REDIS_ADDR"`
	MQTTBroker   string `mapstructure:"MQTT_BROKER"`
	MQTTClientID string `mapstructure:"MQTT_CLIENT_ID"`
	LogLevel     string `mapstructure:"LOG_LEVEL"`
	SweepCron    string `mapstructure:"SWEEP_CRON"`
	ScanCron     string `mapstructure:"SCAN_CRON"`

	// QueryTimeout is propagated as the context deadline on every
	// repository call.
	QueryTimeout time.Duration

	Thresholds *Thresholds
}

// LoadConfig reads configuration from .env, env vars, and config.yaml
func LoadConfig() (*Config, error) {
	// .env is optional, env vars may be set directly
	_ = godotenv.Load()

	viper.AutomaticEnv()
	viper.SetDefault("HTTP_ADDR", ":5069")
	viper.SetDefault("MQTT_CLIENT_ID", "smartcity-analytics")
	viper.SetDefault("LOG_LEVEL", "info")
	viper.SetDefault("SWEEP_CRON", "@every 15m")
	viper.SetDefault("SCAN_CRON", "@daily")
	viper.SetDefault("QUERY_TIMEOUT_SECONDS", 30)

	cfg := &Config{
		HTTPAddr:     viper.GetString("HTTP_ADDR"),
		DBURL:        viper.GetString("DB_URL"),
		RedisAddr:    viper.GetString("REDIS_ADDR"),
		MQTTBroker:   viper.GetString("MQTT_BROKER"),
		MQTTClientID: viper.GetString("MQTT_CLIENT_ID"),
		LogLevel:     viper.GetString("LOG_LEVEL"),
		SweepCron:    viper.GetString("SWEEP_CRON"),
		ScanCron:     viper.GetString("SCAN_CRON"),
		QueryTimeout: time.Duration(viper.GetInt("QUERY_TIMEOUT_SECONDS")) * time.Second,
	}

	thr, err := LoadThresholds()
	if err != nil {
		return nil, fmt.Errorf("load thresholds: %w", err)
	}
	cfg.Thresholds = thr
	return cfg, nil
}

// LoadThresholds reads the analytic tuning block from config.yaml,
// falling back to defaults when the file is absent
func LoadThresholds() (*Thresholds, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	thr := DefaultThresholds()
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return thr, nil
		}
		return nil, err
	}
	if err := v.UnmarshalKey("thresholds", thr); err != nil {
		return nil, err
	}
	return thr, nil
}
