package amqp

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewEvent(t *testing.T) {
	ev := NewEvent(OpDeleted, "wallet", "user-1", "w-1")

	assert.Equal(t, OpDeleted, ev.Op)
	assert.Equal(t, "wallet.deleted", ev.RoutingKey())
	assert.WithinDuration(t, time.Now(), ev.Timestamp, time.Second)
	assert.NoError(t, ev.Validate())
}

func TestEvent_JSONRoundTrip(t *testing.T) {
	ev := &Event{
		Op:        OpCreated,
		Entity:    "transaction",
		UserID:    "user-1",
		EntityID:  "tx-1",
		Timestamp: time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC),
	}

	data, err := ev.ToJSON()
	require.NoError(t, err)
	assert.Contains(t, string(data), `"userId":"user-1"`)

	parsed, err := EventFromJSON(data)
	require.NoError(t, err)
	assert.Equal(t, ev.Op, parsed.Op)
	assert.Equal(t, ev.EntityID, parsed.EntityID)
	assert.True(t, parsed.Timestamp.Equal(ev.Timestamp))
}

func TestEventFromJSON_Rejects(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"not json", `nope`},
		{"unknown op", `{"op":"renamed","entity":"wallet","userId":"u"}`},
		{"missing user", `{"op":"created","entity":"wallet"}`},
		{"missing entity", `{"op":"created","userId":"u"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := EventFromJSON([]byte(tt.body))
			assert.ErrorIs(t, err, ErrInvalidEvent)
		})
	}
}

func TestResyncEvent(t *testing.T) {
	ev := NewEvent(OpResync, "", "user-1", "")
	assert.NoError(t, ev.Validate())
	assert.Equal(t, "resync", ev.RoutingKey())
}
