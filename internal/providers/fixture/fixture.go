// Package fixture is an offline driver that fabricates deterministic events
// for local development.
package fixture

import (
	"context"
	"time"

	"github.com/preston-bernstein/pacs-bridge/internal/domain/events"
	"github.com/preston-bernstein/pacs-bridge/internal/providers"
	"github.com/preston-bernstein/pacs-bridge/internal/timeutil"
)

const eventsPerWindow = 3

var devices = []events.Device{
	{DeviceID: "front-door", DeviceName: "Front Door"},
	{DeviceID: "side-gate", DeviceName: "Side Gate"},
	{DeviceID: "staff-entrance"},
}

var statuses = []string{"Entry Unlocked", "Access Denied", "Entry Unlocked"}

// Provider returns a static device list and evenly spaced events.
type Provider struct{}

func New() *Provider {
	return &Provider{}
}

func (p *Provider) Name() string {
	return "fixture"
}

// FetchEvents spreads eventsPerWindow events across the window. An empty
// window yields none.
func (p *Provider) FetchEvents(ctx context.Context, w providers.Window) ([]events.Event, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	span := w.End.Sub(w.Start)
	if span <= 0 {
		return []events.Event{}, nil
	}
	step := span / eventsPerWindow
	out := make([]events.Event, 0, eventsPerWindow)
	for i := 0; i < eventsPerWindow; i++ {
		at := w.Start.Add(time.Duration(i) * step)
		d := devices[i%len(devices)]
		out = append(out, events.Event{
			DeviceID:  d.DeviceID,
			Timestamp: timeutil.FormatISO(at),
			EventType: statuses[i%len(statuses)],
			ActorID:   "fixture-member",
			ActorName: "Fixture Member",
			Labels:    []string{"fixture"},
		})
	}
	return out, nil
}

func (p *Provider) FetchDevices(ctx context.Context) ([]events.Device, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	out := make([]events.Device, len(devices))
	copy(out, devices)
	return out, nil
}

var (
	_ providers.EventFetcher  = (*Provider)(nil)
	_ providers.DeviceFetcher = (*Provider)(nil)
)
