package events

import (
	"encoding/json"
	"strings"
)

// TimestampLayout is the ISO-8601 UTC layout the PACS API expects.
const TimestampLayout = "2006-01-02T15:04:05Z"

// Event is the canonical, vendor-neutral access control event.
// DeviceID and Timestamp are required; every other field may be empty,
// which is encoded as JSON null.
type Event struct {
	DeviceID   string   `json:"device_id"`
	Timestamp  string   `json:"timestamp"`
	EventType  string   `json:"event_type"`
	ActorID    string   `json:"actor_id"`
	ActorName  string   `json:"actor_name"`
	ActorEmail string   `json:"actor_email"`
	Labels     []string `json:"labels"`
}

// Valid reports whether the event carries the fields the PACS API correlates on.
func (e Event) Valid() bool {
	return strings.TrimSpace(e.DeviceID) != "" && strings.TrimSpace(e.Timestamp) != ""
}

type eventWire struct {
	DeviceID   string   `json:"device_id"`
	Timestamp  string   `json:"timestamp"`
	EventType  *string  `json:"event_type"`
	ActorID    *string  `json:"actor_id"`
	ActorName  *string  `json:"actor_name"`
	ActorEmail *string  `json:"actor_email"`
	Labels     []string `json:"labels"`
}

// MarshalJSON encodes empty optional fields as null and labels as an array.
func (e Event) MarshalJSON() ([]byte, error) {
	labels := e.Labels
	if labels == nil {
		labels = []string{}
	}
	return json.Marshal(eventWire{
		DeviceID:   e.DeviceID,
		Timestamp:  e.Timestamp,
		EventType:  nullable(e.EventType),
		ActorID:    nullable(e.ActorID),
		ActorName:  nullable(e.ActorName),
		ActorEmail: nullable(e.ActorEmail),
		Labels:     labels,
	})
}

// Device is a PACS reader/door/station registered with the ingestion API.
type Device struct {
	DeviceID   string `json:"device_id"`
	DeviceName string `json:"device_name"`
}

// MarshalJSON encodes an empty device name as null.
func (d Device) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		DeviceID   string  `json:"device_id"`
		DeviceName *string `json:"device_name"`
	}{
		DeviceID:   d.DeviceID,
		DeviceName: nullable(d.DeviceName),
	})
}

// EventsPayload is the body POSTed to the PACS webhooks endpoint.
type EventsPayload struct {
	Events []Event `json:"events"`
}

// DevicesPayload is the body POSTed to the PACS devices endpoint.
type DevicesPayload struct {
	Readers []Device `json:"readers"`
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
