package stream

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"

	"github.com/preston-bernstein/pacs-bridge/internal/domain/events"
)

// decodeRecord accepts a single event object, a bare array of events, or an
// {"events": [...]} envelope. Blank records decode to nothing.
func decodeRecord(record []byte) ([]events.Event, error) {
	record = bytes.TrimSpace(record)
	if len(record) == 0 {
		return nil, nil
	}
	switch record[0] {
	case '[':
		var list []events.Event
		if err := json.Unmarshal(record, &list); err != nil {
			return nil, fmt.Errorf("decode event list: %w", err)
		}
		return list, nil
	case '{':
		var envelope map[string]json.RawMessage
		if err := json.Unmarshal(record, &envelope); err != nil {
			return nil, fmt.Errorf("decode record: %w", err)
		}
		if raw, ok := envelope["events"]; ok {
			var list []events.Event
			if err := json.Unmarshal(raw, &list); err != nil {
				return nil, fmt.Errorf("decode events envelope: %w", err)
			}
			return list, nil
		}
		var ev events.Event
		if err := json.Unmarshal(record, &ev); err != nil {
			return nil, fmt.Errorf("decode event: %w", err)
		}
		return []events.Event{ev}, nil
	default:
		return nil, fmt.Errorf("decode record: unexpected leading byte %q", record[0])
	}
}

func decodeDevices(r io.Reader) ([]events.Device, error) {
	var wrapped struct {
		Readers []events.Device `json:"readers"`
	}
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	raw = bytes.TrimSpace(raw)
	if len(raw) > 0 && raw[0] == '[' {
		var list []events.Device
		if err := json.Unmarshal(raw, &list); err != nil {
			return nil, fmt.Errorf("decode devices: %w", err)
		}
		return list, nil
	}
	if err := json.Unmarshal(raw, &wrapped); err != nil {
		return nil, fmt.Errorf("decode devices: %w", err)
	}
	return wrapped.Readers, nil
}
