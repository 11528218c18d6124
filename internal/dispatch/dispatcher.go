// Package dispatch turns chronology decisions into CRM side effects:
// project comments for docket changes and calendar events for hearings.
package dispatch

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/astrelkov/kadsync/internal/chronology"
	"github.com/astrelkov/kadsync/internal/crm"
	"github.com/astrelkov/kadsync/internal/kad"
	"github.com/astrelkov/kadsync/internal/store"
)

const markerTimeLayout = "2006-01-02 15:04:05"

// Notifier posts a comment to a CRM project feed.
type Notifier interface {
	CreateComment(ctx context.Context, projectID int64, text string) error
}

// EventScheduler creates a hearing event in the shared calendar.
type EventScheduler interface {
	CreateHearingEvent(ctx context.Context, projectID int64, caseNumber string, start time.Time, room string) (string, error)
}

// Dispatcher delivers the CRM side effects for one observed chronology
// record. Comment delivery is best effort; calendar creation is guarded by
// the record's idempotency markers.
type Dispatcher struct {
	store     *store.Store
	notifier  Notifier
	scheduler EventScheduler
	comments  crm.CommentBuilder
	log       *slog.Logger
	now       func() time.Time
}

func New(st *store.Store, notifier Notifier, scheduler EventScheduler, comments crm.CommentBuilder, log *slog.Logger) *Dispatcher {
	return &Dispatcher{
		store:     st,
		notifier:  notifier,
		scheduler: scheduler,
		comments:  comments,
		log:       log,
		now:       time.Now,
	}
}

// Dispatch posts a comment for any actionable decision and schedules a
// calendar event for the record's hearing when one is pending. A case with
// no active CRM project is skipped entirely. Comment failures are logged
// and do not block the calendar step; only calendar or store failures are
// returned.
func (d *Dispatcher) Dispatch(ctx context.Context, decision chronology.Decision, rec store.Chronology) error {
	if !decision.Actionable() {
		return nil
	}

	projectID, err := d.store.ProjectIDForCase(ctx, rec.CaseNumber)
	if errors.Is(err, store.ErrNotFound) {
		d.log.WarnContext(ctx, "case has no active CRM project, skipping delivery",
			slog.String("case", rec.CaseNumber))
		return nil
	}
	if err != nil {
		return err
	}

	text := d.comments.Build(rec.EventTitle, rec.EventDate, rec.DocLink)
	if err := d.notifier.CreateComment(ctx, projectID, text); err != nil {
		d.log.ErrorContext(ctx, "failed to post project comment",
			slog.String("case", rec.CaseNumber),
			slog.Int64("project_id", projectID),
			slog.Any("error", err))
	}

	return d.scheduleHearing(ctx, projectID, rec)
}

func (d *Dispatcher) scheduleHearing(ctx context.Context, projectID int64, rec store.Chronology) error {
	if rec.HearingCreatedAt.Valid {
		// This hearing tuple already has a calendar event.
		return nil
	}
	if rec.HearingDate == "" || rec.HearingTime == "" {
		return nil
	}

	start, err := kad.HearingStart(rec.HearingDate, rec.HearingTime)
	if err != nil {
		d.log.WarnContext(ctx, "unparseable hearing date, skipping calendar event",
			slog.String("case", rec.CaseNumber),
			slog.String("hearing_date", rec.HearingDate),
			slog.String("hearing_time", rec.HearingTime))
		return nil
	}

	eventID, err := d.scheduler.CreateHearingEvent(ctx, projectID, rec.CaseNumber, start, rec.HearingRoom)
	if err != nil {
		return err
	}

	createdAt := d.now().Format(markerTimeLayout)
	if err := d.store.MarkHearingScheduled(ctx, rec.ID, createdAt, eventID); err != nil {
		return err
	}

	d.log.InfoContext(ctx, "hearing event scheduled",
		slog.String("case", rec.CaseNumber),
		slog.String("event_id", eventID),
		slog.Time("start", start))
	return nil
}
