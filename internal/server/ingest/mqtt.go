package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/Alia5/dofstream/sample"
)

// publisher is the subset of mqtt.Client the sink needs.
type publisher interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
}

// MQTTSink republishes every received state as JSON on an MQTT topic.
type MQTTSink struct {
	client     publisher
	disconnect func()
	cfg        MQTTConfig
}

// DialMQTT connects to the configured broker.
func DialMQTT(cfg MQTTConfig, logger *slog.Logger) (*MQTTSink, error) {
	opts := mqtt.NewClientOptions().
		AddBroker(cfg.Broker).
		SetClientID(cfg.ClientID).
		SetConnectTimeout(cfg.Timeout).
		SetAutoReconnect(true).
		SetConnectionLostHandler(func(_ mqtt.Client, err error) {
			logger.Warn("MQTT connection lost", "broker", cfg.Broker, "error", err)
		})

	client := mqtt.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(cfg.Timeout) {
		return nil, fmt.Errorf("MQTT connect to %s timed out after %s", cfg.Broker, cfg.Timeout)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("MQTT connect to %s: %w", cfg.Broker, err)
	}
	logger.Info("Connected to MQTT broker", "broker", cfg.Broker, "topic", cfg.Topic)

	return &MQTTSink{
		client:     client,
		disconnect: func() { client.Disconnect(250) },
		cfg:        cfg,
	}, nil
}

func newMQTTSink(p publisher, cfg MQTTConfig) *MQTTSink {
	return &MQTTSink{client: p, disconnect: func() {}, cfg: cfg}
}

// Handle publishes st and waits for the broker to acknowledge it (per QoS).
func (m *MQTTSink) Handle(_ context.Context, st sample.State) error {
	payload, err := json.Marshal(&st)
	if err != nil {
		return fmt.Errorf("MQTT payload: %w", err)
	}
	token := m.client.Publish(m.cfg.Topic, byte(m.cfg.QoS), m.cfg.Retained, payload)
	if m.cfg.Timeout > 0 && !token.WaitTimeout(m.cfg.Timeout) {
		return fmt.Errorf("MQTT publish to %s timed out", m.cfg.Topic)
	} else if m.cfg.Timeout <= 0 {
		token.Wait()
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("MQTT publish to %s: %w", m.cfg.Topic, err)
	}
	return nil
}

// Close disconnects from the broker.
func (m *MQTTSink) Close() {
	m.disconnect()
}
