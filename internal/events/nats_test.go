package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingConn struct {
	subjects []string
	payloads [][]byte
	err      error
}

func (c *recordingConn) Publish(subject string, data []byte) error {
	if c.err != nil {
		return c.err
	}
	c.subjects = append(c.subjects, subject)
	c.payloads = append(c.payloads, data)
	return nil
}

func TestPublisher_PublishWrapsPayload(t *testing.T) {
	rc := &recordingConn{}
	p := &Publisher{conn: rc, source: "taptapgo", prefix: "taptapgo"}

	err := p.Publish(context.Background(), "ride.completed", map[string]any{"ride_id": "ride-1", "final_price": 500})
	require.NoError(t, err)

	require.Len(t, rc.subjects, 1)
	assert.Equal(t, "taptapgo.ride.completed", rc.subjects[0])

	var event Event
	require.NoError(t, json.Unmarshal(rc.payloads[0], &event))
	assert.Equal(t, "ride.completed", event.Type)
	assert.Equal(t, "taptapgo", event.Source)
	assert.NotEmpty(t, event.ID)
	assert.False(t, event.OccurredAt.IsZero())
	assert.JSONEq(t, `{"ride_id":"ride-1","final_price":500}`, string(event.Data))
}

func TestPublisher_NoPrefix(t *testing.T) {
	rc := &recordingConn{}
	p := &Publisher{conn: rc}

	require.NoError(t, p.Publish(context.Background(), "retrait.traite", struct{}{}))
	assert.Equal(t, []string{"retrait.traite"}, rc.subjects)
}

func TestPublisher_PropagatesConnError(t *testing.T) {
	p := &Publisher{conn: &recordingConn{err: errors.New("nats: connection closed")}}

	err := p.Publish(context.Background(), "ride.accepted", struct{}{})
	assert.ErrorContains(t, err, "publish to ride.accepted")
}

func TestPublisher_CancelledContext(t *testing.T) {
	rc := &recordingConn{}
	p := &Publisher{conn: rc}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.ErrorIs(t, p.Publish(ctx, "ride.accepted", struct{}{}), context.Canceled)
	assert.Empty(t, rc.subjects)
}

func TestNewEvent_RejectsUnmarshalable(t *testing.T) {
	_, err := NewEvent("bad", "test", make(chan int))
	assert.Error(t, err)
}
