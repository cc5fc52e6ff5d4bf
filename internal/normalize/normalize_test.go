package normalize

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/preston-bernstein/pacs-bridge/internal/domain/events"
	"github.com/preston-bernstein/pacs-bridge/internal/metrics"
	"github.com/preston-bernstein/pacs-bridge/internal/testutil"
)

type checkin struct {
	Station string
	When    string
	Status  string
}

var checkinAdapter = AdapterFunc[checkin](func(c checkin) (events.Event, error) {
	if c.When == "bad" {
		return events.Event{}, errors.New("unparseable timestamp")
	}
	return events.Event{
		DeviceID:  c.Station,
		Timestamp: c.When,
		EventType: StatusMap{"Normal Entry": "Entry Unlocked"}.EventType(c.Status),
		Labels:    Labels(c.Status),
	}, nil
})

func TestNormalizeDropsInvalidRecordsKeepingOrder(t *testing.T) {
	items := []checkin{
		{Station: "front", When: "2024-01-01T10:00:00Z", Status: "Normal Entry"},
		{Station: "side", When: "2024-01-01T10:01:00Z", Status: "Denied"},
		{Station: "", When: "2024-01-01T10:02:00Z", Status: "Normal Entry"},
		{Station: "back", When: "2024-01-01T10:03:00Z"},
		{Station: "front", When: "2024-01-01T10:04:00Z", Status: "Normal Entry"},
	}
	rec := metrics.NewRecorder()
	logger, buf := testutil.NewBufferLogger()

	out := New[checkin](checkinAdapter, "events", logger, rec).Normalize(context.Background(), items)

	require.Len(t, out, 4)
	assert.Equal(t, []string{"front", "side", "back", "front"}, []string{out[0].DeviceID, out[1].DeviceID, out[2].DeviceID, out[3].DeviceID})
	assert.Equal(t, "Entry Unlocked", out[0].EventType)
	assert.Empty(t, out[1].EventType)
	assert.Equal(t, []string{"Denied"}, out[1].Labels)
	assert.Empty(t, out[2].Labels)
	assert.Equal(t, 1, rec.Snapshot("events").Dropped)
	assert.Contains(t, buf.String(), "dropping record")
}

func TestNormalizeContinuesPastConversionErrors(t *testing.T) {
	items := []checkin{
		{Station: "a", When: "bad"},
		{Station: "b", When: "2024-01-01T10:00:00Z"},
	}
	out := Normalize[checkin](context.Background(), checkinAdapter, items)
	require.Len(t, out, 1)
	assert.Equal(t, "b", out[0].DeviceID)
}

func TestIdentityIsIdempotent(t *testing.T) {
	in := []events.Event{
		{DeviceID: "door-1", Timestamp: "2024-01-01T10:00:00Z", EventType: "Entry Unlocked", Labels: []string{"ok"}},
		{DeviceID: "door-2", Timestamp: "2024-01-01T10:05:00Z"},
	}
	once := Normalize[events.Event](context.Background(), Identity{}, in)
	twice := Normalize[events.Event](context.Background(), Identity{}, once)
	assert.Equal(t, in, once)
	assert.Equal(t, once, twice)
}

func TestNormalizeEmptyBatch(t *testing.T) {
	out := Normalize[events.Event](context.Background(), Identity{}, nil)
	assert.NotNil(t, out)
	assert.Empty(t, out)
}

func TestLabelsSkipsBlankFields(t *testing.T) {
	assert.Equal(t, []string{"Normal Entry", "Welcome"}, Labels("Normal Entry", " ", "", "Welcome"))
	assert.Empty(t, Labels())
}
