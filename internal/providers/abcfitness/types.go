package abcfitness

import (
	"bytes"
	"encoding/json"
	"strconv"
)

// flexInt accepts numbers that the vendor sometimes encodes as strings.
type flexInt int

func (f *flexInt) UnmarshalJSON(data []byte) error {
	data = bytes.Trim(data, `"`)
	if len(data) == 0 || string(data) == "null" {
		*f = 0
		return nil
	}
	n, err := strconv.Atoi(string(data))
	if err != nil {
		return err
	}
	*f = flexInt(n)
	return nil
}

type requestStatus struct {
	Message  string  `json:"message"`
	Count    flexInt `json:"count"`
	NextPage flexInt `json:"nextPage"`
}

type memberRef struct {
	MemberID string `json:"memberId"`
	HomeClub string `json:"homeClub"`
}

type checkin struct {
	CheckInID        string     `json:"checkInId"`
	CheckInTimestamp string     `json:"checkInTimestamp"`
	CheckInMessage   string     `json:"checkInMessage"`
	StationName      string     `json:"stationName"`
	CheckInStatus    string     `json:"checkInStatus"`
	Member           *memberRef `json:"member"`
}

type checkinsResponse struct {
	Status   requestStatus `json:"status"`
	Checkins []checkin     `json:"checkins"`
}

type memberPersonal struct {
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Email     string `json:"email"`
}

type member struct {
	MemberID string          `json:"memberId"`
	Personal *memberPersonal `json:"personal"`
}

type membersResponse struct {
	Status  requestStatus `json:"status"`
	Members []member      `json:"members"`
}

type station struct {
	StationID string `json:"stationId"`
	Name      string `json:"name"`
	Status    string `json:"status"`
	ABCCode   string `json:"abcCode"`
}

type stationsResponse struct {
	Status   requestStatus `json:"status"`
	Stations []station     `json:"stations"`
}

var _ json.Unmarshaler = (*flexInt)(nil)
