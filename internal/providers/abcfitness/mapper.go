package abcfitness

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/preston-bernstein/pacs-bridge/internal/domain/events"
	"github.com/preston-bernstein/pacs-bridge/internal/normalize"
	"github.com/preston-bernstein/pacs-bridge/internal/timeutil"
)

var errMissingStation = errors.New("checkin has no station name")

var statusMap = normalize.StatusMap{
	"Normal Entry":  "Entry Unlocked",
	"Entry Allowed": "Entry Unlocked",
}

// checkinAdapter converts checkins whose timestamps are local to loc.
type checkinAdapter struct {
	loc *time.Location
}

func (a checkinAdapter) Convert(c checkin) (events.Event, error) {
	if strings.TrimSpace(c.StationName) == "" {
		return events.Event{}, fmt.Errorf("checkin %s: %w", c.CheckInID, errMissingStation)
	}
	at, err := timeutil.ParseInLocation(checkinLayout, strings.TrimSpace(c.CheckInTimestamp), a.loc)
	if err != nil {
		return events.Event{}, fmt.Errorf("checkin %s: %w", c.CheckInID, err)
	}
	ev := events.Event{
		DeviceID:  c.StationName,
		Timestamp: timeutil.FormatISO(at),
		EventType: statusMap.EventType(c.CheckInStatus),
		Labels:    normalize.Labels(c.CheckInStatus, c.CheckInMessage),
	}
	if c.Member != nil {
		ev.ActorID = c.Member.MemberID
	}
	return ev, nil
}

func mapStation(s station) (events.Device, bool) {
	name := strings.TrimSpace(s.Name)
	if name == "" {
		return events.Device{}, false
	}
	// checkins only carry the station name, so it doubles as the device id
	return events.Device{DeviceID: name, DeviceName: name}, true
}

func actorName(p *memberPersonal) string {
	if p == nil {
		return ""
	}
	return strings.TrimSpace(strings.TrimSpace(p.FirstName) + " " + strings.TrimSpace(p.LastName))
}

func actorEmail(p *memberPersonal) string {
	if p == nil {
		return ""
	}
	return strings.TrimSpace(p.Email)
}
