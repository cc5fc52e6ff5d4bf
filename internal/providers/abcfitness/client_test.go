package abcfitness

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/preston-bernstein/pacs-bridge/internal/metrics"
	"github.com/preston-bernstein/pacs-bridge/internal/providers"
	"github.com/preston-bernstein/pacs-bridge/internal/retry"
)

const checkinsPage1 = `{
	"status": {"message": "success", "count": "2", "nextPage": "2"},
	"checkins": [
		{"checkInId": "c1", "checkInTimestamp": "2024-07-01 23:51:34.574000", "checkInMessage": "ALREADY CHECKED IN",
		 "stationName": "Door Access", "checkInStatus": "Normal Entry", "member": {"memberId": "m1", "homeClub": "9003"}},
		{"checkInId": "c2", "checkInTimestamp": "2024-07-01 23:55:00.000000", "stationName": null,
		 "checkInStatus": "Normal Entry", "member": {"memberId": "m2"}}
	]
}`

const checkinsPage2 = `{
	"status": {"message": "success", "count": "1", "nextPage": ""},
	"checkins": [
		{"checkInId": "c3", "checkInTimestamp": "2024-07-02 09:39:37.30", "checkInMessage": "Club Payment Overdue",
		 "stationName": "ABC Support", "checkInStatus": "Entry Allowed", "member": {"memberId": "m1"}},
		{"checkInId": "c4", "checkInTimestamp": "2024-07-02 10:00:00.000000", "stationName": "Side Door",
		 "checkInStatus": "Denied"}
	]
}`

const membersBody = `{
	"status": {"message": "success", "count": "1"},
	"members": [{"memberId": "m1", "personal": {"firstName": "Tester", "lastName": "Smith", "email": "test@example.com"}}]
}`

type vendorStub struct {
	mu      sync.Mutex
	queries []string
	paths   []string
	failOn  string
}

func (v *vendorStub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	v.mu.Lock()
	v.paths = append(v.paths, r.URL.Path)
	v.queries = append(v.queries, r.URL.RawQuery)
	v.mu.Unlock()

	if r.Header.Get("app_id") != "id" || r.Header.Get("app_key") != "key" || !strings.HasPrefix(r.Header.Get("Accept"), "application/json") {
		w.WriteHeader(http.StatusUnauthorized)
		return
	}
	if v.failOn != "" && strings.HasSuffix(r.URL.Path, v.failOn) {
		w.WriteHeader(http.StatusTooManyRequests)
		return
	}
	switch {
	case strings.HasSuffix(r.URL.Path, "/clubs/checkins/details"):
		if r.URL.Query().Get("page") == "2" {
			_, _ = w.Write([]byte(checkinsPage2))
			return
		}
		_, _ = w.Write([]byte(checkinsPage1))
	case strings.HasSuffix(r.URL.Path, "/members"):
		_, _ = w.Write([]byte(membersBody))
	case strings.HasSuffix(r.URL.Path, "/clubs/stations"):
		_, _ = w.Write([]byte(`{"status": {}, "stations": [
			{"stationId": "s1", "name": "Door Access", "status": "active", "abcCode": "ACCESS_CONTROL_0"},
			{"stationId": "s2", "name": "", "status": "inactive"}
		]}`))
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func newTestClient(t *testing.T, stub *vendorStub, cfg Config) (*Client, *metrics.Recorder) {
	t.Helper()
	srv := httptest.NewServer(stub)
	t.Cleanup(srv.Close)

	cfg.AppID, cfg.AppKey, cfg.ClubID = "id", "key", "9003"
	cfg.EventsURL = srv.URL + "/rest/{club_id}/clubs/checkins/details"
	cfg.DevicesURL = srv.URL + "/rest/{club_id}/clubs/stations"
	cfg.MembersURL = srv.URL + "/rest/{club_id}/members"
	rec := metrics.NewRecorder()
	req := retry.New(srv.Client(), retry.Policy{Start: time.Millisecond, Multiplier: 2, MaxAttempts: 1}, nil, rec)
	return NewClient(cfg, req, nil, rec), rec
}

func testWindow() providers.Window {
	end := time.Date(2024, 7, 2, 12, 0, 0, 0, time.UTC)
	return providers.Window{Start: end.Add(-12 * time.Hour), End: end}
}

func TestFetchEventsPaginatesAndMaps(t *testing.T) {
	stub := &vendorStub{}
	loc, err := time.LoadLocation("America/Chicago")
	require.NoError(t, err)
	c, rec := newTestClient(t, stub, Config{GetMemberInfo: true, Location: loc, PageSize: 2})

	evs, err := c.FetchEvents(context.Background(), testWindow())
	require.NoError(t, err)
	require.Len(t, evs, 3)

	first := evs[0]
	assert.Equal(t, "Door Access", first.DeviceID)
	assert.Equal(t, "2024-07-02T04:51:34Z", first.Timestamp)
	assert.Equal(t, "Entry Unlocked", first.EventType)
	assert.Equal(t, "m1", first.ActorID)
	assert.Equal(t, "Tester Smith", first.ActorName)
	assert.Equal(t, "test@example.com", first.ActorEmail)
	assert.Equal(t, []string{"Normal Entry", "ALREADY CHECKED IN"}, first.Labels)

	assert.Equal(t, "ABC Support", evs[1].DeviceID)
	assert.Equal(t, "Tester Smith", evs[1].ActorName)

	assert.Equal(t, "Side Door", evs[2].DeviceID)
	assert.Empty(t, evs[2].EventType)
	assert.Empty(t, evs[2].ActorID)
	assert.Equal(t, []string{"Denied"}, evs[2].Labels)

	assert.Equal(t, 1, rec.Snapshot("events").Dropped)

	require.Len(t, stub.paths, 3)
	assert.Equal(t, "/rest/9003/clubs/checkins/details", stub.paths[0])
	assert.Contains(t, stub.queries[0], "checkInTimestampRange=2024-07-02+00%3A00%3A00.000000%2C2024-07-02+12%3A00%3A00.000000")
	assert.Contains(t, stub.queries[0], "size=2")
	assert.Contains(t, stub.queries[1], "page=2")
	assert.Equal(t, "/rest/9003/members", stub.paths[2])
	assert.Contains(t, stub.queries[2], "memberIds=m1&")
}

func TestFetchEventsSkipsMemberLookupWhenDisabled(t *testing.T) {
	stub := &vendorStub{}
	c, _ := newTestClient(t, stub, Config{})

	evs, err := c.FetchEvents(context.Background(), testWindow())
	require.NoError(t, err)
	require.Len(t, evs, 3)
	assert.Empty(t, evs[0].ActorName)
	assert.Equal(t, "2024-07-01T23:51:34Z", evs[0].Timestamp)
	assert.Len(t, stub.paths, 2)
}

func TestFetchEventsMemberFailureKeepsEvents(t *testing.T) {
	stub := &vendorStub{failOn: "/members"}
	c, _ := newTestClient(t, stub, Config{GetMemberInfo: true})

	evs, err := c.FetchEvents(context.Background(), testWindow())
	require.NoError(t, err)
	require.Len(t, evs, 3)
	assert.Empty(t, evs[0].ActorName)
}

func TestFetchEventsRateLimited(t *testing.T) {
	stub := &vendorStub{failOn: "/checkins/details"}
	c, _ := newTestClient(t, stub, Config{})

	evs, err := c.FetchEvents(context.Background(), testWindow())
	assert.Empty(t, evs)
	_, ok := providers.AsRateLimitError(err)
	assert.True(t, ok, "expected rate limit error, got %v", err)
}

func TestFetchDevicesMapsStations(t *testing.T) {
	stub := &vendorStub{}
	c, _ := newTestClient(t, stub, Config{})
	assert.True(t, c.DevicesEnabled())

	devices, err := c.FetchDevices(context.Background())
	require.NoError(t, err)
	require.Len(t, devices, 1)
	assert.Equal(t, "Door Access", devices[0].DeviceID)
	assert.Equal(t, "Door Access", devices[0].DeviceName)
}

func TestNewClientDefaults(t *testing.T) {
	c := NewClient(Config{}, nil, nil, nil)
	assert.Equal(t, DefaultEventsURL, c.cfg.EventsURL)
	assert.Empty(t, c.cfg.DevicesURL, "station sync is opt-in")
	assert.False(t, c.DevicesEnabled())
	assert.Equal(t, defaultPageSize, c.cfg.PageSize)
	assert.Equal(t, time.UTC, c.cfg.Location)
	assert.Equal(t, "abc_fitness", c.Name())
	assert.Equal(t, "https://api.abcfinancial.com/rest/42/clubs/stations", (&Client{cfg: Config{ClubID: "42"}}).expandURL(StationsURL))
}
