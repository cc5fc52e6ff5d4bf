package events

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventValidRequiresDeviceAndTimestamp(t *testing.T) {
	assert.True(t, Event{DeviceID: "door-1", Timestamp: "2024-07-01T10:00:00Z"}.Valid())
	assert.False(t, Event{DeviceID: "door-1"}.Valid())
	assert.False(t, Event{Timestamp: "2024-07-01T10:00:00Z"}.Valid())
	assert.False(t, Event{DeviceID: "  ", Timestamp: "2024-07-01T10:00:00Z"}.Valid())
}

func TestEventMarshalUsesNullForEmptyOptionals(t *testing.T) {
	raw, err := json.Marshal(Event{DeviceID: "door-1", Timestamp: "2024-07-01T10:00:00Z", ActorID: "m-1"})
	require.NoError(t, err)

	assert.JSONEq(t, `{
		"device_id": "door-1",
		"timestamp": "2024-07-01T10:00:00Z",
		"event_type": null,
		"actor_id": "m-1",
		"actor_name": null,
		"actor_email": null,
		"labels": []
	}`, string(raw))
}

func TestEventRoundTripsThroughWireShape(t *testing.T) {
	in := Event{
		DeviceID:   "door-1",
		Timestamp:  "2024-07-01T10:00:00Z",
		EventType:  "Entry Unlocked",
		ActorName:  "Tester Smith",
		ActorEmail: "test@example.com",
		Labels:     []string{"Normal Entry", "ALREADY CHECKED IN"},
	}
	raw, err := json.Marshal(in)
	require.NoError(t, err)

	var out Event
	require.NoError(t, json.Unmarshal(raw, &out))
	assert.Equal(t, in, out)
}

func TestDeviceMarshalNullName(t *testing.T) {
	raw, err := json.Marshal(DevicesPayload{Readers: []Device{{DeviceID: "station-1"}}})
	require.NoError(t, err)
	assert.JSONEq(t, `{"readers":[{"device_id":"station-1","device_name":null}]}`, string(raw))
}
