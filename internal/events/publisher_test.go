package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/atinyakov/CovertKeeper/internal/models"
)

type fakeToken struct {
	done chan struct{}
	err  error
}

func newFakeToken(err error, complete bool) *fakeToken {
	t := &fakeToken{done: make(chan struct{}), err: err}
	if complete {
		close(t.done)
	}
	return t
}

func (t *fakeToken) Wait() bool                       { <-t.done; return true }
func (t *fakeToken) WaitTimeout(d time.Duration) bool { return true }
func (t *fakeToken) Done() <-chan struct{}            { return t.done }
func (t *fakeToken) Error() error                     { return t.err }

type fakeClient struct {
	token        mqtt.Token
	topic        string
	qos          byte
	payload      []byte
	disconnected bool
}

func (c *fakeClient) Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token {
	c.topic = topic
	c.qos = qos
	c.payload = payload.([]byte)
	return c.token
}

func (c *fakeClient) Disconnect(uint) { c.disconnected = true }

func TestMQTTPublisher_Publish(t *testing.T) {
	client := &fakeClient{token: newFakeToken(nil, true)}
	p := newMQTTPublisher(client, "covert/sos", zap.NewNop())

	at := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	ev := NewDispatchEvent("dev1", models.DispatchOutcome{Succeeded: true, ContactName: "Sam"}, at)
	require.NoError(t, p.Publish(context.Background(), ev))

	assert.Equal(t, "covert/sos", client.topic)
	assert.Equal(t, byte(1), client.qos)

	var got map[string]any
	require.NoError(t, json.Unmarshal(client.payload, &got))
	assert.Equal(t, "dev1", got["device_id"])
	assert.Equal(t, true, got["succeeded"])
	assert.Equal(t, "Sam", got["contact_name"])
	assert.NotContains(t, got, "failure_kind")

	p.Close()
	assert.True(t, client.disconnected)
}

func TestMQTTPublisher_BrokerError(t *testing.T) {
	client := &fakeClient{token: newFakeToken(errors.New("not connected"), true)}
	p := newMQTTPublisher(client, "covert/sos", zap.NewNop())

	err := p.Publish(context.Background(), NewDispatchEvent("dev1", models.DispatchOutcome{Failure: models.FailureProvider}, time.Now()))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not connected")
}

func TestMQTTPublisher_ContextCancelled(t *testing.T) {
	client := &fakeClient{token: newFakeToken(nil, false)}
	p := newMQTTPublisher(client, "covert/sos", zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := p.Publish(ctx, DispatchEvent{DeviceID: "dev1"})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestNop(t *testing.T) {
	var p Publisher = Nop{}
	assert.NoError(t, p.Publish(context.Background(), DispatchEvent{}))
	p.Close()
}
