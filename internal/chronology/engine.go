package chronology

import (
	"context"
	"errors"
	"fmt"

	"github.com/astrelkov/kadsync/internal/kad"
	"github.com/astrelkov/kadsync/internal/store"
)

// Engine applies diff decisions to the case store.
type Engine struct {
	store *store.Store
}

func NewEngine(st *store.Store) *Engine {
	return &Engine{store: st}
}

// Observe diffs a scrape against the stored record and persists the outcome:
// Unseen inserts a fresh record, a change overwrites the stored fields, and
// a moved hearing additionally clears the calendar markers so the dispatcher
// creates a fresh event. Unchanged performs no mutation. The returned record
// reflects the persisted state.
func (e *Engine) Observe(ctx context.Context, caseNumber string, scraped kad.Result) (Decision, store.Chronology, error) {
	stored, err := e.store.LatestChronology(ctx, caseNumber)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return Unchanged, store.Chronology{}, fmt.Errorf("load chronology for %s: %w", caseNumber, err)
	}

	if errors.Is(err, store.ErrNotFound) {
		record := recordFromScrape(caseNumber, scraped)
		id, err := e.store.InsertChronology(ctx, record)
		if err != nil {
			return Unseen, store.Chronology{}, err
		}
		record.ID = id
		return Unseen, record, nil
	}

	decision := Diff(scraped, &stored)
	if decision == Unchanged {
		return Unchanged, stored, nil
	}

	record := recordFromScrape(caseNumber, scraped)
	record.ID = stored.ID
	if decision.HearingMoved() {
		// A new hearing tuple requires a fresh calendar event.
		record.HearingCreatedAt.Valid = false
		record.HearingEventID.Valid = false
	} else {
		record.HearingCreatedAt = stored.HearingCreatedAt
		record.HearingEventID = stored.HearingEventID
	}

	if err := e.store.UpdateChronology(ctx, record); err != nil {
		return decision, store.Chronology{}, err
	}
	return decision, record, nil
}

func recordFromScrape(caseNumber string, scraped kad.Result) store.Chronology {
	return store.Chronology{
		CaseNumber:   caseNumber,
		EventDate:    scraped.EventDate,
		EventTitle:   scraped.EventTitle,
		EventAuthor:  scraped.EventAuthor,
		EventPublish: scraped.EventPublish,
		EventsCount:  int64(scraped.EventsCount),
		DocLink:      scraped.DocLink,
		HearingDate:  scraped.HearingDate,
		HearingTime:  scraped.HearingTime,
		HearingRoom:  scraped.HearingRoom,
	}
}
