package abcfitness

import "time"

const (
	providerName = "abc_fitness"

	DefaultEventsURL  = "https://api.abcfinancial.com/rest/{club_id}/clubs/checkins/details"
	DefaultMembersURL = "https://api.abcfinancial.com/rest/{club_id}/members"
	// StationsURL is the club stations listing. Device sync is off unless
	// urls.devices points here or at a compatible endpoint.
	StationsURL = "https://api.abcfinancial.com/rest/{club_id}/clubs/stations"

	DefaultPollingInterval = 12 * time.Hour
	defaultPageSize        = 100
	defaultMaxPages        = 1000

	// requestLayout is the timestamp format the checkins range filter expects.
	requestLayout = "2006-01-02 15:04:05.000000"
	// checkinLayout parses vendor timestamps; any fractional seconds are accepted.
	checkinLayout = "2006-01-02 15:04:05"

	acceptHeader = "application/json;charset=UTF-8"
)
