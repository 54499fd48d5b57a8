package notify

import (
	"encoding/json"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	log "github.com/sirupsen/logrus"

	"multicam/pkg/config"
)

const defaultTopic = "multicam/captures"

// CaptureEvent is published after every capture attempt.
type CaptureEvent struct {
	Timestamp time.Time `json:"timestamp"`
	Serials   []string  `json:"serials"`
	Count     int       `json:"count"`
	Success   bool      `json:"success"`
	Error     string    `json:"error,omitempty"`
}

// Publisher sends capture events to an MQTT broker.
type Publisher struct {
	client mqtt.Client
	topic  string
	logger log.FieldLogger
}

// NewPublisher connects to the configured broker and returns a publisher.
func NewPublisher(cfg config.MQTTConfig, logger log.FieldLogger) (*Publisher, error) {
	opts := mqtt.NewClientOptions()
	opts.SetClientID("multicam")
	opts.AddBroker(cfg.Broker)
	opts.SetUsername(cfg.Username)
	opts.SetPassword(cfg.Password)

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("failed to connect to MQTT broker: %v", token.Error())
	}

	topic := cfg.Topic
	if topic == "" {
		topic = defaultTopic
	}

	logger.Infof("Connected to MQTT broker %s", cfg.Broker)
	return &Publisher{client: client, topic: topic, logger: logger}, nil
}

// Publish sends one capture event. Failures are returned, not logged;
// callers treat publishing as best-effort.
func (p *Publisher) Publish(event CaptureEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}

	if token := p.client.Publish(p.topic, 0, false, payload); token.Wait() && token.Error() != nil {
		return fmt.Errorf("failed to publish capture event: %v", token.Error())
	}
	return nil
}

// Close disconnects from the broker.
func (p *Publisher) Close() {
	p.client.Disconnect(100)
	p.logger.Info("Disconnected from MQTT broker")
}
