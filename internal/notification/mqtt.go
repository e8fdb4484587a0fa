package notification

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/goccy/go-json"
)

// Publisher is the part of mqtt.Client the scheduler needs.
type Publisher interface {
	Publish(topic string, qos byte, retained bool, payload any) mqtt.Token
}

// MQTTOptions configures the broker connection.
type MQTTOptions struct {
	Broker   string
	ClientID string
	Username string
	Password string
	Timeout  time.Duration
}

const (
	scheduleSuffix = "/schedule"
	cancelSuffix   = "/cancel"
	publishQoS     = 1
)

var errPublishTimeout = errors.New("mqtt publish timed out")

// MQTTScheduler publishes schedule and cancel messages to a broker.
type MQTTScheduler struct {
	publisher Publisher
	topic     string
	timeout   time.Duration
}

type scheduleMessage struct {
	AlarmID string    `json:"alarm_id"`
	FireAt  time.Time `json:"fire_at"`
	Payload Payload   `json:"payload"`
}

type cancelMessage struct {
	AlarmID string `json:"alarm_id"`
}

// DialMQTT connects to the broker.
func DialMQTT(opts MQTTOptions) (mqtt.Client, error) {
	clientOptions := mqtt.NewClientOptions().
		AddBroker(opts.Broker).
		SetClientID(opts.ClientID).
		SetAutoReconnect(true).
		SetCleanSession(true)

	if opts.Username != "" {
		clientOptions.SetUsername(opts.Username)
	}

	if opts.Password != "" {
		clientOptions.SetPassword(opts.Password)
	}

	if opts.Timeout > 0 {
		clientOptions.SetConnectTimeout(opts.Timeout)
	}

	client := mqtt.NewClient(clientOptions)

	token := client.Connect()
	if token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("failed to connect to MQTT broker %s: %w", opts.Broker, token.Error())
	}

	return client, nil
}

// NewMQTTScheduler creates a scheduler publishing under the topic prefix.
func NewMQTTScheduler(publisher Publisher, topic string, timeout time.Duration) *MQTTScheduler {
	return &MQTTScheduler{
		publisher: publisher,
		topic:     strings.TrimSuffix(topic, "/"),
		timeout:   timeout,
	}
}

// Schedule publishes a schedule message.
func (s *MQTTScheduler) Schedule(ctx context.Context, alarmID string, fireAt time.Time, payload Payload) error {
	return s.publish(ctx, s.topic+scheduleSuffix, scheduleMessage{
		AlarmID: alarmID,
		FireAt:  fireAt,
		Payload: payload,
	})
}

// Cancel publishes a cancel message.
func (s *MQTTScheduler) Cancel(ctx context.Context, alarmID string) error {
	return s.publish(ctx, s.topic+cancelSuffix, cancelMessage{AlarmID: alarmID})
}

func (s *MQTTScheduler) publish(ctx context.Context, topic string, message any) error {
	body, err := json.Marshal(message)
	if err != nil {
		return fmt.Errorf("failed to encode %s message: %w", topic, err)
	}

	token := s.publisher.Publish(topic, publishQoS, false, body)

	timeout := s.timeout
	if deadline, ok := ctx.Deadline(); ok {
		timeout = time.Until(deadline)
	}

	if timeout > 0 {
		if !token.WaitTimeout(timeout) {
			return fmt.Errorf("%s: %w", topic, errPublishTimeout)
		}
	} else {
		token.Wait()
	}

	if err = token.Error(); err != nil {
		return fmt.Errorf("failed to publish to topic %s: %w", topic, err)
	}

	return nil
}
