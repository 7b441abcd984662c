// Package mqttingest classifies agent samples arriving over MQTT and stores
// them through the gateway.
package mqttingest

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/sirupsen/logrus"
	"github.com/ukydev/road-vision/internal/gateway"
	"github.com/ukydev/road-vision/internal/models"
	"github.com/ukydev/road-vision/internal/processing"
)

const (
	connectTimeout = 10 * time.Second
	subscribeQoS   = 1
)

// Creator stores classified samples.
type Creator interface {
	Create(ctx context.Context, items []models.ProcessedAgentData) []gateway.Outcome
}

// NewClient builds a paho client for broker that reconnects on its own.
func NewClient(broker, clientID string) mqtt.Client {
	opts := mqtt.NewClientOptions().
		AddBroker(broker).
		SetClientID(clientID).
		SetAutoReconnect(true).
		SetConnectTimeout(connectTimeout)
	return mqtt.NewClient(opts)
}

// Subscriber consumes AgentData JSON from one topic.
type Subscriber struct {
	client  mqtt.Client
	topic   string
	creator Creator
	logger  logrus.FieldLogger
}

// NewSubscriber creates a subscriber. Nothing happens until Run.
func NewSubscriber(client mqtt.Client, topic string, creator Creator, logger logrus.FieldLogger) *Subscriber {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Subscriber{client: client, topic: topic, creator: creator, logger: logger}
}

// Run connects, subscribes and blocks until ctx is done.
func (s *Subscriber) Run(ctx context.Context) error {
	if token := s.client.Connect(); !token.WaitTimeout(connectTimeout) {
		return errors.New("mqtt connect timed out")
	} else if err := token.Error(); err != nil {
		return fmt.Errorf("mqtt connect: %w", err)
	}
	defer s.client.Disconnect(250)

	if token := s.client.Subscribe(s.topic, subscribeQoS, s.onMessage); !token.WaitTimeout(connectTimeout) {
		return errors.New("mqtt subscribe timed out")
	} else if err := token.Error(); err != nil {
		return fmt.Errorf("mqtt subscribe %s: %w", s.topic, err)
	}
	s.logger.WithField("topic", s.topic).Info("subscribed to agent data")

	<-ctx.Done()
	s.client.Unsubscribe(s.topic).WaitTimeout(time.Second)
	return nil
}

func (s *Subscriber) onMessage(_ mqtt.Client, msg mqtt.Message) {
	if err := s.HandlePayload(context.Background(), msg.Payload()); err != nil {
		s.logger.WithFields(logrus.Fields{
			"topic":      msg.Topic(),
			"message_id": msg.MessageID(),
		}).WithError(err).Warn("dropping agent data message")
	}
}

// HandlePayload decodes one AgentData object or an array of them, classifies
// each sample and stores the batch. It returns an error when decoding fails or
// any item could not be stored.
func (s *Subscriber) HandlePayload(ctx context.Context, payload []byte) error {
	samples, err := decodeSamples(payload)
	if err != nil {
		return err
	}
	if len(samples) == 0 {
		return errors.New("empty agent data payload")
	}
	for i, sample := range samples {
		if err := sample.Validate(); err != nil {
			return fmt.Errorf("sample %d: %w", i, err)
		}
	}

	outcomes := s.creator.Create(ctx, processing.ProcessBatch(samples))

	var errs []error
	for _, o := range outcomes {
		if !o.OK() {
			errs = append(errs, fmt.Errorf("sample %d: %w", o.Index, o.Err))
		}
	}
	s.logger.WithFields(logrus.Fields{
		"samples": len(samples),
		"failed":  len(errs),
	}).Debug("agent data ingested")
	return errors.Join(errs...)
}

func decodeSamples(payload []byte) ([]models.AgentData, error) {
	trimmed := bytes.TrimSpace(payload)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		var samples []models.AgentData
		if err := json.Unmarshal(trimmed, &samples); err != nil {
			return nil, fmt.Errorf("decode agent data: %w", err)
		}
		return samples, nil
	}
	var sample models.AgentData
	if err := json.Unmarshal(trimmed, &sample); err != nil {
		return nil, fmt.Errorf("decode agent data: %w", err)
	}
	return []models.AgentData{sample}, nil
}
