// Package abcfitness polls ABC Fitness club check-ins and stations.
package abcfitness

import (
	"context"
	"log/slog"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/preston-bernstein/pacs-bridge/internal/domain/events"
	"github.com/preston-bernstein/pacs-bridge/internal/logging"
	"github.com/preston-bernstein/pacs-bridge/internal/metrics"
	"github.com/preston-bernstein/pacs-bridge/internal/normalize"
	"github.com/preston-bernstein/pacs-bridge/internal/paginate"
	"github.com/preston-bernstein/pacs-bridge/internal/providers"
)

// Config controls how the client reaches the ABC Fitness API.
type Config struct {
	AppID  string
	AppKey string
	ClubID string

	EventsURL string
	// DevicesURL enables station sync when set.
	DevicesURL string
	MembersURL string

	PageSize       int
	MemberPageSize int
	MaxPages       int
	GetMemberInfo  bool
	// Location is the zone check-in timestamps are recorded in.
	Location *time.Location
}

// Client fetches check-ins and stations and maps them to PACS events and
// devices.
type Client struct {
	cfg        Config
	requester  providers.Requester
	logger     *slog.Logger
	normalizer *normalize.Normalizer[checkin]
}

func NewClient(cfg Config, requester providers.Requester, logger *slog.Logger, recorder *metrics.Recorder) *Client {
	if cfg.EventsURL == "" {
		cfg.EventsURL = DefaultEventsURL
	}
	if cfg.MembersURL == "" {
		cfg.MembersURL = DefaultMembersURL
	}
	if cfg.PageSize <= 0 {
		cfg.PageSize = defaultPageSize
	}
	if cfg.MemberPageSize <= 0 {
		cfg.MemberPageSize = defaultPageSize
	}
	if cfg.MaxPages <= 0 {
		cfg.MaxPages = defaultMaxPages
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	return &Client{
		cfg:        cfg,
		requester:  requester,
		logger:     logger,
		normalizer: normalize.New[checkin](checkinAdapter{loc: cfg.Location}, string(events.KindEvents), logger, recorder),
	}
}

func (c *Client) Name() string {
	return providerName
}

// FetchEvents pages through check-ins inside w. Events gathered before a
// failing page are returned with the error.
func (c *Client) FetchEvents(ctx context.Context, w providers.Window) ([]events.Event, error) {
	rangeFilter := w.Start.UTC().Format(requestLayout) + "," + w.End.UTC().Format(requestLayout)
	list := func(ctx context.Context, page int) (paginate.Page[checkin], error) {
		q := url.Values{}
		q.Set("size", strconv.Itoa(c.cfg.PageSize))
		q.Set("page", strconv.Itoa(page))
		q.Set("checkInTimestampRange", rangeFilter)
		c.log(ctx, slog.LevelDebug, "requesting checkins", slog.Int(logging.FieldPage, page), slog.String("range", rangeFilter))

		var payload checkinsResponse
		if err := c.getJSON(ctx, c.cfg.EventsURL, q, &payload); err != nil {
			return paginate.Page[checkin]{}, err
		}
		return nextPage(payload.Checkins, payload.Status), nil
	}

	checkins, fetchErr := paginate.FetchAll(ctx, list, paginate.Options{MaxPages: c.cfg.MaxPages})
	evs := c.normalizer.Normalize(ctx, checkins)
	c.log(ctx, slog.LevelInfo, "converted checkins",
		slog.Int(logging.FieldCount, len(evs)),
		slog.Int("checkins", len(checkins)),
	)

	if c.cfg.GetMemberInfo && len(evs) > 0 {
		c.enrichMembers(ctx, evs)
	}
	return evs, fetchErr
}

// DevicesEnabled reports whether a stations URL was configured.
func (c *Client) DevicesEnabled() bool {
	return c.cfg.DevicesURL != ""
}

// FetchDevices lists the club's stations.
func (c *Client) FetchDevices(ctx context.Context) ([]events.Device, error) {
	list := func(ctx context.Context, page int) (paginate.Page[station], error) {
		q := url.Values{}
		q.Set("size", strconv.Itoa(c.cfg.PageSize))
		q.Set("page", strconv.Itoa(page))
		var payload stationsResponse
		if err := c.getJSON(ctx, c.cfg.DevicesURL, q, &payload); err != nil {
			return paginate.Page[station]{}, err
		}
		return nextPage(payload.Stations, payload.Status), nil
	}

	stations, err := paginate.FetchAll(ctx, list, paginate.Options{MaxPages: c.cfg.MaxPages})
	devices := make([]events.Device, 0, len(stations))
	for _, s := range stations {
		if d, ok := mapStation(s); ok {
			devices = append(devices, d)
		}
	}
	return devices, err
}

// enrichMembers fills actor name and email in place. Failures only leave
// the fields empty.
func (c *Client) enrichMembers(ctx context.Context, evs []events.Event) {
	var ids []string
	seen := make(map[string]bool)
	for _, ev := range evs {
		if ev.ActorID != "" && !seen[ev.ActorID] {
			seen[ev.ActorID] = true
			ids = append(ids, ev.ActorID)
		}
	}
	if len(ids) == 0 {
		return
	}
	c.log(ctx, slog.LevelInfo, "fetching member info", slog.Int(logging.FieldCount, len(ids)))

	joined := strings.Join(ids, ",")
	list := func(ctx context.Context, page int) (paginate.Page[member], error) {
		q := url.Values{}
		q.Set("memberIds", joined)
		q.Set("page", strconv.Itoa(page))
		q.Set("size", strconv.Itoa(c.cfg.MemberPageSize))
		var payload membersResponse
		if err := c.getJSON(ctx, c.cfg.MembersURL, q, &payload); err != nil {
			return paginate.Page[member]{}, err
		}
		return nextPage(payload.Members, payload.Status), nil
	}

	members, err := paginate.FetchAll(ctx, list, paginate.Options{MaxPages: c.cfg.MaxPages})
	if err != nil {
		c.log(ctx, slog.LevelWarn, "member lookup incomplete", "error", err, slog.Int(logging.FieldCount, len(members)))
	}

	byID := make(map[string]*memberPersonal, len(members))
	for _, m := range members {
		byID[m.MemberID] = m.Personal
	}
	for i := range evs {
		p, ok := byID[evs[i].ActorID]
		if !ok {
			continue
		}
		evs[i].ActorName = actorName(p)
		evs[i].ActorEmail = actorEmail(p)
	}
}

func (c *Client) log(ctx context.Context, level slog.Level, msg string, args ...any) {
	providers.LogWithProvider(ctx, c.logger, level, providerName, msg, args...)
}

func nextPage[T any](items []T, status requestStatus) paginate.Page[T] {
	next := int(status.NextPage)
	return paginate.Page[T]{Items: items, Next: next, Done: next <= 0}
}

var (
	_ providers.Driver        = (*Client)(nil)
	_ providers.EventFetcher  = (*Client)(nil)
	_ providers.DeviceFetcher = (*Client)(nil)
)
