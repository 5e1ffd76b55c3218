// Package notify publishes generated alerts over MQTT so operations
// dashboards and field tooling can subscribe to them.
package notify

import (
	"encoding/json"
	"fmt"

	MQTT "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"

	"smartcity/internal/models"
)

// NewClient initializes and returns a raw MQTT.Client
func NewClient(broker, clientID string) (MQTT.Client, error) {
	opts := MQTT.NewClientOptions().AddBroker(broker).SetClientID(clientID)
	c := MQTT.NewClient(opts)
	if token := c.Connect(); token.Wait() && token.Error() != nil {
		return nil, token.Error()
	}
	return c, nil
}

// Notifier publishes alert sets to per-level topics
type Notifier struct {
	client MQTT.Client
	log    *zap.Logger
}

// NewNotifier creates a notifier over an existing MQTT client
func NewNotifier(client MQTT.Client, log *zap.Logger) *Notifier {
	return &Notifier{client: client, log: log}
}

// PublishAlerts pushes each critical and warning alert to
// alerts/{level}. Info alerts stay local; they carry no action.
func (n *Notifier) PublishAlerts(alerts models.AlertSet) {
	for _, alert := range alerts.Critical {
		n.publish(alert)
	}
	for _, alert := range alerts.Warning {
		n.publish(alert)
	}
}

func (n *Notifier) publish(alert models.Alert) {
	payload, err := json.Marshal(alert)
	if err != nil {
		n.log.Error("alert marshal failed", zap.Error(err))
		return
	}
	topic := fmt.Sprintf("alerts/%s", alert.Level)
	token := n.client.Publish(topic, 1, false, payload)
	token.Wait()
	if token.Error() != nil {
		n.log.Warn("alert publish failed", zap.String("topic", topic), zap.Error(token.Error()))
		return
	}
	n.log.Info("alert published",
		zap.String("topic", topic),
		zap.String("source", alert.Source),
		zap.String("message", alert.Message))
}
