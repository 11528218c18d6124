// Package chronology detects meaningful changes between a freshly scraped
// case snapshot and the stored chronology record.
package chronology

import (
	"github.com/astrelkov/kadsync/internal/kad"
	"github.com/astrelkov/kadsync/internal/store"
)

// Decision classifies a scrape against the stored record.
type Decision int

const (
	// Unseen: no stored record exists for the case yet.
	Unseen Decision = iota
	// Unchanged: nothing meaningful differs; no mutation, no side effects.
	Unchanged
	// EventChanged: the scraped event date is strictly later than the
	// stored one (or the stored date is unknown).
	EventChanged
	// HearingChanged: the (date, time, room) hearing tuple differs.
	HearingChanged
	// BothChanged: event and hearing changed in the same scrape.
	BothChanged
)

func (d Decision) String() string {
	switch d {
	case Unseen:
		return "unseen"
	case Unchanged:
		return "unchanged"
	case EventChanged:
		return "event_changed"
	case HearingChanged:
		return "hearing_changed"
	case BothChanged:
		return "both_changed"
	default:
		return "unknown"
	}
}

// Actionable reports whether the decision triggers side effects.
func (d Decision) Actionable() bool {
	return d != Unchanged
}

// HearingMoved reports whether the hearing tuple moved.
func (d Decision) HearingMoved() bool {
	return d == HearingChanged || d == BothChanged
}

// Diff compares a scrape against the stored record. A nil stored record is
// Unseen. The event is newer only when the scraped date parses and is
// strictly later than the stored date; dates that fail to parse are treated
// as unknown and never considered newer. The hearing comparison is an exact
// tuple match, including transitions to and from the empty value.
func Diff(scraped kad.Result, stored *store.Chronology) Decision {
	if stored == nil {
		return Unseen
	}

	eventNewer := false
	if scrapedDate, ok := kad.ParseEventDate(scraped.EventDate); ok {
		storedDate, storedOK := kad.ParseEventDate(stored.EventDate)
		eventNewer = !storedOK || scrapedDate.After(storedDate)
	}

	hearingMoved := scraped.HearingDate != stored.HearingDate ||
		scraped.HearingTime != stored.HearingTime ||
		scraped.HearingRoom != stored.HearingRoom

	switch {
	case eventNewer && hearingMoved:
		return BothChanged
	case eventNewer:
		return EventChanged
	case hearingMoved:
		return HearingChanged
	default:
		return Unchanged
	}
}
