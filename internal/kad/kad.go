// Package kad talks to the public kad.arbitr.ru case registry.
package kad

import (
	"context"
	"errors"
	"time"
)

// ErrNoData signals that a scrape attempt produced no usable chronology:
// the page failed to load, access was blocked, or the case card carried no
// events. The case is skipped for this cycle without touching stored state.
var ErrNoData = errors.New("kad: no chronology data")

// Result is the transient outcome of one scrape attempt. It is consumed by
// the diff engine immediately and never persisted verbatim.
type Result struct {
	EventDate    string // DD.MM.YYYY
	EventTitle   string
	EventAuthor  string
	EventPublish string
	EventsCount  int
	DocLink      string
	HearingDate  string // DD.MM.YYYY, empty when no hearing is scheduled
	HearingTime  string // HH:MM
	HearingRoom  string
}

// HearingTuple reports the distinct hearing identity used for calendar
// idempotency.
func (r Result) HearingTuple() (date, timeOfDay, room string) {
	return r.HearingDate, r.HearingTime, r.HearingRoom
}

// Scraper fetches the latest chronology snapshot for a case. Implementations
// return ErrNoData when the registry yields nothing usable for this cycle.
type Scraper interface {
	FetchCase(ctx context.Context, caseNumber string) (Result, error)
	Close() error
}

// ParseEventDate parses a registry date in DD.MM.YYYY form. Dates that fail
// to parse are treated as unknown and never considered newer.
func ParseEventDate(value string) (time.Time, bool) {
	parsed, err := time.Parse("02.01.2006", value)
	if err != nil {
		return time.Time{}, false
	}
	return parsed, true
}

// HearingStart combines the hearing date and time into a wall-clock start.
func HearingStart(date, timeOfDay string) (time.Time, error) {
	return time.ParseInLocation("02.01.2006 15:04", date+" "+timeOfDay, time.Local)
}
