// Package events fans dispatch outcomes out to an MQTT broker.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"

	"github.com/atinyakov/CovertKeeper/internal/models"
)

// DispatchEvent records one dispatch attempt. It carries no phone number or PIN.
type DispatchEvent struct {
	DeviceID      string             `json:"device_id"`
	Succeeded     bool               `json:"succeeded"`
	ContactName   string             `json:"contact_name,omitempty"`
	FailureKind   models.FailureKind `json:"failure_kind,omitempty"`
	FailureReason string             `json:"failure_reason,omitempty"`
	At            time.Time          `json:"at"`
}

// NewDispatchEvent builds the event for outcome.
func NewDispatchEvent(deviceID string, outcome models.DispatchOutcome, at time.Time) DispatchEvent {
	return DispatchEvent{
		DeviceID:      deviceID,
		Succeeded:     outcome.Succeeded,
		ContactName:   outcome.ContactName,
		FailureKind:   outcome.Failure,
		FailureReason: outcome.FailureReason,
		At:            at.UTC(),
	}
}

// Publisher delivers dispatch events.
type Publisher interface {
	Publish(ctx context.Context, ev DispatchEvent) error
	Close()
}

// Nop drops every event.
type Nop struct{}

func (Nop) Publish(context.Context, DispatchEvent) error { return nil }
func (Nop) Close()                                       {}

// publishClient is the part of mqtt.Client we use.
type publishClient interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
	Disconnect(quiesce uint)
}

// MQTTPublisher publishes events as JSON at QoS 1.
type MQTTPublisher struct {
	client publishClient
	topic  string
	logger *zap.Logger
}

// NewMQTTPublisher connects to broker and returns a publisher for topic.
func NewMQTTPublisher(broker, clientID, topic string, logger *zap.Logger) (*MQTTPublisher, error) {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(broker)
	opts.SetClientID(clientID)
	opts.SetAutoReconnect(true)
	opts.SetCleanSession(true)
	opts.SetConnectTimeout(10 * time.Second)

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("failed to connect to MQTT broker: %w", token.Error())
	}
	logger.Info("connected to MQTT broker", zap.String("broker", broker), zap.String("topic", topic))
	return newMQTTPublisher(client, topic, logger), nil
}

func newMQTTPublisher(client publishClient, topic string, logger *zap.Logger) *MQTTPublisher {
	return &MQTTPublisher{client: client, topic: topic, logger: logger}
}

// Publish sends ev and waits for the broker acknowledgement or ctx.
func (p *MQTTPublisher) Publish(ctx context.Context, ev DispatchEvent) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}

	token := p.client.Publish(p.topic, 1, false, payload)
	select {
	case <-token.Done():
	case <-ctx.Done():
		return fmt.Errorf("publish to %s: %w", p.topic, ctx.Err())
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("failed to publish to topic %s: %w", p.topic, err)
	}
	p.logger.Debug("dispatch event published", zap.String("topic", p.topic), zap.Bool("succeeded", ev.Succeeded))
	return nil
}

// Close disconnects from the broker.
func (p *MQTTPublisher) Close() {
	p.client.Disconnect(250)
}
