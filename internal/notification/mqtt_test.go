package notification

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/goccy/go-json"
	"github.com/stretchr/testify/require"
)

type fakeToken struct {
	err     error
	pending bool
}

func (t *fakeToken) Wait() bool {
	return !t.pending
}

func (t *fakeToken) WaitTimeout(time.Duration) bool {
	return !t.pending
}

func (t *fakeToken) Done() <-chan struct{} {
	done := make(chan struct{})
	if !t.pending {
		close(done)
	}

	return done
}

func (t *fakeToken) Error() error {
	return t.err
}

type published struct {
	topic   string
	qos     byte
	payload []byte
}

type fakePublisher struct {
	mu       sync.Mutex
	messages []published
	token    *fakeToken
}

func (p *fakePublisher) Publish(topic string, qos byte, _ bool, payload any) mqtt.Token {
	p.mu.Lock()
	defer p.mu.Unlock()

	body, _ := payload.([]byte)
	p.messages = append(p.messages, published{topic: topic, qos: qos, payload: body})

	if p.token != nil {
		return p.token
	}

	return &fakeToken{}
}

// TestMQTTScheduler_Publish encodes schedule and cancel messages.
func TestMQTTScheduler_Publish(t *testing.T) {
	t.Parallel()

	var (
		publisher = &fakePublisher{}
		s         = NewMQTTScheduler(publisher, "alarms/notifications/", time.Second)
		ctx       = context.Background()
		fireAt    = time.Date(2026, 10, 12, 7, 0, 0, 0, time.UTC)
	)

	require.NoError(t, s.Schedule(ctx, "a1", fireAt, Payload{Label: "Gym", VoiceMood: "motivational"}))
	require.NoError(t, s.Cancel(ctx, "a1"))

	require.Len(t, publisher.messages, 2)
	require.Equal(t, "alarms/notifications/schedule", publisher.messages[0].topic)
	require.Equal(t, byte(publishQoS), publisher.messages[0].qos)
	require.Equal(t, "alarms/notifications/cancel", publisher.messages[1].topic)

	var message scheduleMessage
	require.NoError(t, json.Unmarshal(publisher.messages[0].payload, &message))
	require.Equal(t, "a1", message.AlarmID)
	require.True(t, fireAt.Equal(message.FireAt))
	require.Equal(t, "Gym", message.Payload.Label)

	require.JSONEq(t, `{"alarm_id":"a1"}`, string(publisher.messages[1].payload))
}

// TestMQTTScheduler_Failures reports broker errors and timeouts.
func TestMQTTScheduler_Failures(t *testing.T) {
	t.Parallel()

	brokerErr := errors.New("not connected")

	s := NewMQTTScheduler(&fakePublisher{token: &fakeToken{err: brokerErr}}, "n", time.Second)
	require.ErrorIs(t, s.Cancel(context.Background(), "a1"), brokerErr)

	s = NewMQTTScheduler(&fakePublisher{token: &fakeToken{pending: true}}, "n", time.Second)
	require.ErrorIs(t, s.Cancel(context.Background(), "a1"), errPublishTimeout)
}
