package crm

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

const (
	hearingsCalendarName = "Судебные заседания"
	// An early deployment created the calendar with this misspelled name;
	// existing installs still carry it, so searches match both.
	hearingsCalendarLegacyName = "Зудебные заседания"

	hearingEventColor    = "#FF0000"
	hearingEventDuration = 60 * time.Minute
)

// Scheduler creates hearing reminders in the CRM calendar. The resolved
// calendar id is cached for the scheduler's lifetime, which callers scope
// to a single run.
type Scheduler struct {
	client *Client
	// configuredID pins the calendar; 0 means resolve by name or create it.
	configuredID int64
	cachedID     int64
	log          *slog.Logger
}

func NewScheduler(client *Client, configuredID int64, log *slog.Logger) *Scheduler {
	if log == nil {
		log = slog.Default()
	}
	return &Scheduler{client: client, configuredID: configuredID, log: log}
}

// ResolveCalendar returns the hearings calendar id: the configured id when
// set, otherwise a search by name, otherwise a freshly created calendar.
func (s *Scheduler) ResolveCalendar(ctx context.Context) (int64, error) {
	if s.cachedID != 0 {
		return s.cachedID, nil
	}

	if s.configuredID != 0 {
		s.cachedID = s.configuredID
		s.log.InfoContext(ctx, "using configured hearings calendar", "calendar_id", s.configuredID)
		return s.cachedID, nil
	}

	calendars, err := s.client.ListCalendars(ctx)
	if err != nil {
		return 0, fmt.Errorf("resolve hearings calendar: %w", err)
	}
	for _, calendar := range calendars {
		if calendar.Name == hearingsCalendarName || calendar.Name == hearingsCalendarLegacyName {
			s.cachedID = calendar.ID
			s.log.InfoContext(ctx, "found hearings calendar", "calendar_id", calendar.ID, "name", calendar.Name)
			return s.cachedID, nil
		}
	}

	id, err := s.client.CreateCalendar(ctx, CalendarParams{
		Name:        hearingsCalendarName,
		Description: "Календарь для судебных заседаний (создан kadsync)",
		Type:        20,
		Color:       hearingEventColor,
		Timezone:    "Europe/Moscow",
	})
	if err != nil {
		return 0, fmt.Errorf("create hearings calendar: %w", err)
	}
	s.cachedID = id
	s.log.InfoContext(ctx, "created hearings calendar", "calendar_id", id)
	return s.cachedID, nil
}

// CreateHearingEvent schedules one court-hearing reminder bound to the
// case's CRM project and returns the CRM event id.
func (s *Scheduler) CreateHearingEvent(ctx context.Context, projectID int64, caseNumber string, start time.Time, room string) (string, error) {
	calendarID, err := s.ResolveCalendar(ctx)
	if err != nil {
		return "", err
	}

	description := fmt.Sprintf("Автоматически добавлено из kadsync\nДело: %s", caseNumber)
	if room != "" {
		description += fmt.Sprintf("\nКабинет: %s", room)
	}

	eventID, err := s.client.CreateEvent(ctx, EventParams{
		Name:          fmt.Sprintf("Судебное заседание по делу %s", caseNumber),
		Description:   description,
		CalendarID:    calendarID,
		PlanStartDate: start,
		PlanEndDate:   start.Add(hearingEventDuration),
		Color:         hearingEventColor,
		BusyStatus:    20,
		AccessType:    30,
		ProjectID:     projectID,
	})
	if err != nil {
		return "", fmt.Errorf("create hearing event for %s: %w", caseNumber, err)
	}

	s.log.InfoContext(ctx, "created hearing event",
		"case", caseNumber, "project_id", projectID, "event_id", eventID,
		"start", start.Format(apiTimeLayout))
	return eventID, nil
}

// Reset clears the cached calendar id so independent runs re-resolve it.
func (s *Scheduler) Reset() {
	s.cachedID = 0
}
